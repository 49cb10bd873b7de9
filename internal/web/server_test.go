package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/bomdiff/internal/config"
	"github.com/JonMunkholm/bomdiff/internal/core"
)

type stubComparer struct {
	result *core.ComparisonResult
	err    error
}

func (s stubComparer) Compare(ctx context.Context, file1, file2 core.SourceFile) (*core.ComparisonResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result.Clone(), nil
}

type stubHistory struct {
	entries []core.HistoryEntry
	err     error
	limit   int
}

func (h *stubHistory) Recent(ctx context.Context, limit int) ([]core.HistoryEntry, error) {
	h.limit = limit
	return h.entries, h.err
}

type stubHealth struct{ err error }

func (h stubHealth) Health(ctx context.Context) error { return h.err }

func sampleResult() *core.ComparisonResult {
	r := &core.ComparisonResult{
		NewParts:     []core.BOMPart{{MPN: "C100", RefDes: "R5,R6", Qty: "2"}},
		RemovedParts: []core.BOMPart{{MPN: "LM358", RefDes: "U1", Qty: "1"}},
		ModifiedParts: []core.ModifiedPart{{
			MPN: "GRM155", File1RefDes: "C1,C2", File2RefDes: "C1,C2,C3", File1Qty: "2", File2Qty: "3",
		}},
		UnchangedParts: []core.BOMPart{{MPN: "BAT54", RefDes: "D1", Qty: "1"}},
		SummaryStats:   core.SummaryStats{TotalPartsFile1: 3, TotalPartsFile2: 4},
	}
	r.Resync()
	return r
}

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{RequestTimeout: 10 * time.Second},
		Compare:  config.CompareConfig{MaxFileSize: 1 << 20},
		Security: config.SecurityConfig{EnableCSP: true},
		Metrics:  config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, comparer core.Comparer, opts ...Option) *Server {
	t.Helper()
	svc := core.NewService(comparer, core.WithMaxFileSize(cfg.Compare.MaxFileSize))
	s := NewServer(cfg, svc, opts...)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

// uploadRequest builds a multipart request; an empty name omits the part.
func uploadRequest(t *testing.T, path, name1, name2 string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, name := range map[string]string{"file1": name1, "file2": name2} {
		if name == "" {
			continue
		}
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte("PK\x03\x04 workbook " + field))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&er); err != nil {
		t.Fatalf("decode error body: %v (body %q)", err, rec.Body.String())
	}
	return er
}

func apiCompare(t *testing.T, s *Server) CompareResponse {
	t.Helper()
	rec := serve(s, uploadRequest(t, "/api/compare", "rev-a.xlsx", "rev-b.xlsx"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/compare status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp CompareResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestIndex(t *testing.T) {
	s := newTestServer(t, testConfig(), stubComparer{result: sampleResult()})
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `name="file1"`) {
		t.Error("upload form missing")
	}
	if csp := rec.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "https://unpkg.com") {
		t.Errorf("CSP = %q", csp)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
}

func TestCompareForm_RedirectsToSession(t *testing.T) {
	s := newTestServer(t, testConfig(), stubComparer{result: sampleResult()})
	rec := serve(s, uploadRequest(t, "/compare", "rev-a.xlsx", "rev-b.xls"))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "/compare/") {
		t.Fatalf("Location = %q", loc)
	}

	page := serve(s, httptest.NewRequest(http.MethodGet, loc, nil))
	if page.Code != http.StatusOK {
		t.Fatalf("GET %s status = %d", loc, page.Code)
	}
	for _, want := range []string{"<!DOCTYPE html>", "File 1: rev-a.xlsx", "GRM155"} {
		if !strings.Contains(page.Body.String(), want) {
			t.Errorf("results page missing %q", want)
		}
	}
}

func TestCompareForm_HTMXReturnsFragment(t *testing.T) {
	s := newTestServer(t, testConfig(), stubComparer{result: sampleResult()})
	req := uploadRequest(t, "/compare", "rev-a.xlsx", "rev-b.xlsx")
	req.Header.Set("HX-Request", "true")
	rec := serve(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "<!DOCTYPE html>") {
		t.Error("HTMX response contains the full layout")
	}
	if push := rec.Header().Get("HX-Push-Url"); !strings.HasPrefix(push, "/compare/") {
		t.Errorf("HX-Push-Url = %q", push)
	}
}

func TestCompareForm_HTMXErrorAlert(t *testing.T) {
	s := newTestServer(t, testConfig(), stubComparer{result: sampleResult()})
	req := uploadRequest(t, "/compare", "rev-a.xlsx", "")
	req.Header.Set("HX-Request", "true")
	rec := serve(s, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for htmx swaps", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "FILE003") {
		t.Errorf("body = %s, want FILE003 alert", rec.Body.String())
	}
}

func TestAPICompare_Errors(t *testing.T) {
	tests := []struct {
		name     string
		comparer stubComparer
		file1    string
		file2    string
		wantCode int
		wantErr  string
	}{
		{"missing file", stubComparer{result: sampleResult()}, "a.xlsx", "", http.StatusBadRequest, "FILE003"},
		{"wrong type", stubComparer{result: sampleResult()}, "a.xlsx", "b.csv", http.StatusBadRequest, "FILE002"},
		{
			name:     "backend rejected",
			comparer: stubComparer{err: errors.Join(core.ErrComparisonRejected, errors.New("no MPN column"))},
			file1:    "a.xlsx",
			file2:    "b.xlsx",
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "CMP001",
		},
		{
			name:     "backend down",
			comparer: stubComparer{err: core.ErrBackendUnavailable},
			file1:    "a.xlsx",
			file2:    "b.xlsx",
			wantCode: http.StatusBadGateway,
			wantErr:  "CMP002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(), tt.comparer)
			rec := serve(s, uploadRequest(t, "/api/compare", tt.file1, tt.file2))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if er := decodeError(t, rec); er.Code != tt.wantErr {
				t.Errorf("code = %s, want %s", er.Code, tt.wantErr)
			}
		})
	}
}

func TestAPICompare_FileTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Compare.MaxFileSize = 8
	s := newTestServer(t, cfg, stubComparer{result: sampleResult()})

	rec := serve(s, uploadRequest(t, "/api/compare", "a.xlsx", "b.xlsx"))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestAPI_SessionLifecycle(t *testing.T) {
	s := newTestServer(t, testConfig(), stubComparer{result: sampleResult()})
	created := apiCompare(t, s)

	if created.File1 != "rev-a.xlsx" || created.Result.SummaryStats.NewPartsCount != 1 {
		t.Errorf("compare response = %+v", created)
	}
	if d := created.Result.ModifiedParts[0].Diffs; d == nil || !d.Qty {
		t.Errorf("diffs = %+v, want Qty", d)
	}

	// Filtered view
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/compare/"+created.SessionID+"?q=r5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("view status = %d", rec.Code)
	}
	var view ViewResponse
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.Search != "r5" || len(view.Result.NewParts) != 1 || len(view.Result.RemovedParts) != 0 {
		t.Errorf("view = %+v", view.Result)
	}
	if view.Unfiltered.RemovedPartsCount != 1 {
		t.Errorf("unfiltered removed = %d, want 1", view.Unfiltered.RemovedPartsCount)
	}

	// Export
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/compare/"+created.SessionID+"/export?q=r5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != core.XLSXContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "bom_comparison_rev-a.xlsx_vs_rev-b.xlsx.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("export body is not a zip container")
	}

	// Discard
	del := httptest.NewRequest(http.MethodDelete, "/api/compare/"+created.SessionID, nil)
	if rec := serve(s, del); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/compare/"+created.SessionID, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("view after delete status = %d", rec.Code)
	}
	if er := decodeError(t, rec); er.Code != "SES001" {
		t.Errorf("code = %s, want SES001", er.Code)
	}
}

func TestResults_ViewStateFromQuery(t *testing.T) {
	s := newTestServer(t, testConfig(), stubComparer{result: sampleResult()})
	created := apiCompare(t, s)

	req := httptest.NewRequest(http.MethodGet, "/compare/"+created.SessionID+"?open=unchanged", nil)
	req.Header.Set("HX-Request", "true")
	rec := serve(s, req)

	body := rec.Body.String()
	if !strings.Contains(body, "BAT54") {
		t.Error("expanded unchanged section missing its rows")
	}
	if strings.Contains(body, "LM358") {
		t.Error("collapsed delete section rendered its rows")
	}
}

func TestPrintAndDiscardPages(t *testing.T) {
	s := newTestServer(t, testConfig(), stubComparer{result: sampleResult()})
	created := apiCompare(t, s)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/compare/"+created.SessionID+"/print?open=", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("print status = %d", rec.Code)
	}
	for _, mpn := range []string{"LM358", "C100", "GRM155", "BAT54"} {
		if !strings.Contains(rec.Body.String(), mpn) {
			t.Errorf("print page missing %s", mpn)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/compare/"+created.SessionID+"/discard", nil)
	req.Header.Set("HX-Request", "true")
	rec = serve(s, req)
	if rec.Header().Get("HX-Redirect") != "/" {
		t.Errorf("HX-Redirect = %q", rec.Header().Get("HX-Redirect"))
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/compare/"+created.SessionID, nil))
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "SES001") {
		t.Errorf("discarded page status = %d", rec.Code)
	}
}

func TestRateLimit_Compare(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, CompareLimit: 1}
	s := newTestServer(t, cfg, stubComparer{result: sampleResult()})

	first := serve(s, uploadRequest(t, "/api/compare", "a.xlsx", "b.xlsx"))
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d", first.Code)
	}
	second := serve(s, uploadRequest(t, "/api/compare", "a.xlsx", "b.xlsx"))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if er := decodeError(t, second); er.Code != "RATE001" {
		t.Errorf("code = %s, want RATE001", er.Code)
	}

	// Other routes use the global limit.
	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil)); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter("test", 2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.allow("1.1.1.1") || !rl.allow("1.1.1.1") {
		t.Fatal("first two requests rejected")
	}
	if rl.allow("1.1.1.1") {
		t.Error("third request allowed")
	}
	if !rl.allow("2.2.2.2") {
		t.Error("other client limited")
	}

	now = now.Add(61 * time.Second)
	if !rl.allow("1.1.1.1") {
		t.Error("request after window rejected")
	}

	now = now.Add(3 * time.Minute)
	rl.evictStale()
	if len(rl.visitors) != 0 {
		t.Errorf("visitors = %d after eviction, want 0", len(rl.visitors))
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s := newTestServer(t, cfg, stubComparer{result: sampleResult()})

	if rec := serve(s, uploadRequest(t, "/api/compare", "a.xlsx", "b.xlsx")); rec.Code != http.StatusUnauthorized {
		t.Errorf("without key status = %d, want 401", rec.Code)
	}
	req := uploadRequest(t, "/api/compare", "a.xlsx", "b.xlsx")
	req.Header.Set("X-API-Key", "secret")
	if rec := serve(s, req); rec.Code != http.StatusCreated {
		t.Errorf("with key status = %d, want 201", rec.Code)
	}
	// Pages stay open.
	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil)); rec.Code != http.StatusOK {
		t.Errorf("index status = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		wantStatus int
		want       string
	}{
		{"no probe", nil, http.StatusOK, "healthy"},
		{"backend ok", []Option{WithBackendHealth(stubHealth{})}, http.StatusOK, "healthy"},
		{"backend down", []Option{WithBackendHealth(stubHealth{err: core.ErrBackendUnavailable})}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(), stubComparer{result: sampleResult()}, tt.opts...)
			rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.want || resp.Comparisons.MaxConcurrent == 0 {
				t.Errorf("health = %+v", resp)
			}
		})
	}
}

func TestHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := newTestServer(t, testConfig(), stubComparer{result: sampleResult()})
		if rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/history", nil)); rec.Code != http.StatusNotFound {
			t.Errorf("api status = %d, want 404", rec.Code)
		}
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/history", nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "not enabled") {
			t.Errorf("page status = %d", rec.Code)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		h := &stubHistory{entries: []core.HistoryEntry{{SessionID: "s1", Names: core.DisplayNames{File1: "a.xlsx", File2: "b.xlsx"}}}}
		s := newTestServer(t, testConfig(), stubComparer{result: sampleResult()}, WithHistory(h))

		rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/history?limit=5", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var entries []core.HistoryEntry
		if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].SessionID != "s1" || h.limit != 5 {
			t.Errorf("entries = %+v, limit = %d", entries, h.limit)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig(), stubComparer{result: sampleResult()})
	apiCompare(t, s)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bomdiff_http_requests_total") {
		t.Error("metrics output missing http counter")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrSessionNotFound, http.StatusNotFound},
		{core.ErrNoFile, http.StatusBadRequest},
		{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{core.ErrComparisonRejected, http.StatusUnprocessableEntity},
		{core.ErrTooManyComparisons, http.StatusServiceUnavailable},
		{core.ErrBackendUnavailable, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
