package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/bomdiff/internal/compare"
	"github.com/JonMunkholm/bomdiff/internal/core"
	"github.com/JonMunkholm/bomdiff/internal/web/templates"
)

// formMemory is how much of a multipart body is held in memory before
// parts spill to temporary files.
const formMemory = 32 << 20

// healthTimeout bounds the backend probe in /health.
const healthTimeout = 3 * time.Second

// render writes a component as an HTML response.
func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render failed", "path", r.URL.Path, "error", err)
	}
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// readUploads reads the file1 and file2 parts of a multipart request.
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request) (core.SourceFile, core.SourceFile, error) {
	maxSize := s.cfg.Compare.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxSize+1<<20)

	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return core.SourceFile{}, core.SourceFile{}, fmt.Errorf("%w: request exceeds %d bytes", core.ErrFileTooLarge, tooBig.Limit)
		}
		return core.SourceFile{}, core.SourceFile{}, fmt.Errorf("%w: invalid form: %v", core.ErrNoFile, err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file1, err := readFormFile(r, "file1", maxSize)
	if err != nil {
		return core.SourceFile{}, core.SourceFile{}, err
	}
	file2, err := readFormFile(r, "file2", maxSize)
	if err != nil {
		return core.SourceFile{}, core.SourceFile{}, err
	}
	return file1, file2, nil
}

func readFormFile(r *http.Request, field string, maxSize int64) (core.SourceFile, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return core.SourceFile{}, fmt.Errorf("%s: %w", field, core.ErrNoFile)
	}
	if err != nil {
		return core.SourceFile{}, fmt.Errorf("%s: read upload: %w", field, err)
	}
	defer file.Close()

	if err := compare.CheckExtension(header.Filename); err != nil {
		return core.SourceFile{}, fmt.Errorf("%s: %w", field, err)
	}

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return core.SourceFile{}, fmt.Errorf("%s: read upload: %w", field, err)
	}
	if int64(len(data)) > maxSize {
		return core.SourceFile{}, fmt.Errorf("%s %q: %w", field, header.Filename, core.ErrFileTooLarge)
	}
	return core.SourceFile{Name: header.Filename, Data: data}, nil
}

// ----------------------------------------------------------------------------
// Pages
// ----------------------------------------------------------------------------

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, templates.UploadPage(s.cfg.Compare.MaxFileSize>>20))
}

// handleCompareForm runs a comparison from the upload form. HTMX requests
// get the results fragment; plain form posts are redirected to the
// session page.
func (s *Server) handleCompareForm(w http.ResponseWriter, r *http.Request) {
	file1, file2, err := s.readUploads(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sess, err := s.service.Compare(withRequestMetadata(r.Context(), r), file1, file2)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if !isHTMX(r) {
		http.Redirect(w, r, templates.ComparePath(sess.ID), http.StatusSeeOther)
		return
	}

	state := core.DefaultViewState()
	v, err := s.service.View(sess.ID, state)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("HX-Push-Url", templates.ViewURL(sess.ID, state))
	render(w, r, http.StatusOK, templates.Results(v))
}

// handleResults renders a session through the view state in the query.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state := core.ViewStateFromQuery(r.URL.Query())

	v, err := s.service.View(id, state)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		render(w, r, http.StatusOK, templates.Results(v))
		return
	}
	render(w, r, http.StatusOK, templates.ResultsPage(v))
}

// handlePrint renders every section expanded for printing.
func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state := core.ViewStateFromQuery(r.URL.Query()).ForPrint()

	v, err := s.service.View(id, state)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render(w, r, http.StatusOK, templates.PrintPage(v))
}

// handleDiscard drops a session and returns to the upload page.
func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.service.Discard(id) {
		slog.Info("comparison discarded", "session_id", id)
	}

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleHistoryPage lists recent comparisons.
func (s *Server) handleHistoryPage(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		render(w, r, http.StatusOK, templates.HistoryPage(nil, false))
		return
	}

	entries, err := s.history.Recent(r.Context(), parseIntParam(r, "limit", 50))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render(w, r, http.StatusOK, templates.HistoryPage(entries, true))
}

// ----------------------------------------------------------------------------
// JSON API
// ----------------------------------------------------------------------------

// CompareResponse is returned by POST /api/compare.
type CompareResponse struct {
	SessionID string                 `json:"session_id"`
	File1     string                 `json:"file1"`
	File2     string                 `json:"file2"`
	CreatedAt time.Time              `json:"created_at"`
	Result    *core.ComparisonResult `json:"result"`
}

// ViewResponse is returned by GET /api/compare/{id}.
type ViewResponse struct {
	SessionID  string                 `json:"session_id"`
	File1      string                 `json:"file1"`
	File2      string                 `json:"file2"`
	Search     string                 `json:"search,omitempty"`
	Result     *core.ComparisonResult `json:"result"`
	Unfiltered core.SummaryStats      `json:"unfiltered_stats"`
}

// handleAPICompare runs a comparison and returns the full result.
func (s *Server) handleAPICompare(w http.ResponseWriter, r *http.Request) {
	file1, file2, err := s.readUploads(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sess, err := s.service.Compare(withRequestMetadata(r.Context(), r), file1, file2)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/compare/"+sess.ID)
	writeJSON(w, http.StatusCreated, CompareResponse{
		SessionID: sess.ID,
		File1:     sess.Names.File1,
		File2:     sess.Names.File2,
		CreatedAt: sess.CreatedAt,
		Result:    core.WithDiffs(sess.Result),
	})
}

// handleAPIView returns a session filtered by ?q= with diff flags.
func (s *Server) handleAPIView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state := core.DefaultViewState().WithSearch(r.URL.Query().Get("q"))

	v, err := s.service.View(id, state)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ViewResponse{
		SessionID:  v.ID,
		File1:      v.Names.File1,
		File2:      v.Names.File2,
		Search:     v.State.Search,
		Result:     v.Result,
		Unfiltered: v.Unfiltered,
	})
}

// handleExport downloads the session, filtered by ?q=, as an xlsx workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	artifact, err := s.service.Export(id, r.URL.Query().Get("q"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifact.FileName}))
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifact.Data); err != nil {
		slog.Warn("export write failed", "session_id", id, "error", err)
	}
}

// handleAPIDiscard drops a session.
func (s *Server) handleAPIDiscard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.service.Discard(id) {
		s.respondError(w, r, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAPIHistory returns recent comparison summaries.
func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, r, http.StatusNotFound, "comparison history is not enabled")
		return
	}

	entries, err := s.history.Recent(r.Context(), parseIntParam(r, "limit", 50))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status      string                    `json:"status"`
	Service     string                    `json:"service"`
	Backend     string                    `json:"backend,omitempty"`
	Sessions    int                       `json:"sessions"`
	Comparisons core.CompareLimiterStatus `json:"comparisons"`
}

// handleHealth reports service status. The response is 503 when the
// comparison backend is configured for probing and does not answer.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "healthy",
		Service:     "bom-comparison",
		Sessions:    s.service.ActiveSessions(),
		Comparisons: s.service.Limiter().Status(),
	}

	status := http.StatusOK
	if s.backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp.Backend = "ok"
		if err := s.backend.Health(ctx); err != nil {
			slog.Warn("backend health check failed", "error", err)
			resp.Status = "degraded"
			resp.Backend = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}
