// Package compare is the HTTP client for the comparison backend, the
// service that parses two BOM workbooks, pairs their parts and classifies
// every row.
package compare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/bomdiff/internal/core"
)

// ErrUnsupportedFile is returned before any request is sent when a file
// is not an Excel workbook.
var ErrUnsupportedFile = errors.New("unsupported file type")

// DefaultTimeout bounds one comparison call.
const DefaultTimeout = 120 * time.Second

// maxResponseSize caps the decoded result (64 MB).
const maxResponseSize = 64 << 20

// allowedExtensions are the workbook types the backend can parse.
var allowedExtensions = map[string]bool{".xlsx": true, ".xls": true}

// BackendError is a non-2xx answer from the backend.
type BackendError struct {
	Status int
	Detail string
	// parsed is true when the body carried a detail or error field, i.e.
	// the backend itself answered rather than a proxy in front of it.
	parsed bool
}

func (e *BackendError) Error() string {
	kind := core.ErrBackendUnavailable
	if e.Rejected() {
		kind = core.ErrComparisonRejected
	}
	if e.Detail == "" {
		return fmt.Sprintf("%s (%d)", kind, e.Status)
	}
	return fmt.Sprintf("%s (%d): %s", kind, e.Status, e.Detail)
}

// Rejected reports whether the backend refused the input. The backend
// reports parse failures of the workbooks as 500 with a detail message, so
// any answer carrying a detail counts, as does every 4xx.
func (e *BackendError) Rejected() bool {
	return (e.Status >= 400 && e.Status < 500) || (e.parsed && e.Status != http.StatusServiceUnavailable)
}

// Unwrap maps the error onto the core sentinels.
func (e *BackendError) Unwrap() error {
	if e.Rejected() {
		return core.ErrComparisonRejected
	}
	return core.ErrBackendUnavailable
}

// Client talks to one comparison backend.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the logger used for warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Compare uploads both workbooks and returns the classified result.
// Counts the backend reports inconsistently are resynced with a warning.
func (c *Client) Compare(ctx context.Context, file1, file2 core.SourceFile) (*core.ComparisonResult, error) {
	for _, f := range []core.SourceFile{file1, file2} {
		if err := CheckExtension(f.Name); err != nil {
			return nil, err
		}
	}

	body, contentType, err := encodeForm(file1, file2)
	if err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/compare"), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read comparison result: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseError(resp.StatusCode, data)
	}
	if len(data) > maxResponseSize {
		return nil, fmt.Errorf("decode comparison result: response exceeds %d bytes", maxResponseSize)
	}

	var result core.ComparisonResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode comparison result: %w", err)
	}
	if !result.Consistent() {
		c.logger.Warn("backend summary counts disagree with part lists",
			"reported", result.SummaryStats,
		)
		result.Resync()
	}
	return &result, nil
}

// Health checks the backend's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/health"), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return &BackendError{Status: resp.StatusCode}
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &status); err == nil && status.Status != "" && status.Status != "healthy" {
		return fmt.Errorf("%w: status %q", core.ErrBackendUnavailable, status.Status)
	}
	return nil
}

// CheckExtension accepts .xlsx and .xls names, case-insensitively.
func CheckExtension(name string) error {
	if !allowedExtensions[strings.ToLower(filepath.Ext(name))] {
		return fmt.Errorf("%w: %q (only .xlsx and .xls files are supported)", ErrUnsupportedFile, name)
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

// transportError classifies a failed round trip. Cancellation and timeouts
// keep their own identity; everything else means the backend is unreachable.
func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("comparison request: %w", ctxErr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("comparison request timeout: %w", err)
	}
	return fmt.Errorf("%w: %w", core.ErrBackendUnavailable, err)
}

// encodeForm builds the multipart body with fields file1 and file2.
func encodeForm(file1, file2 core.SourceFile) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, part := range []struct {
		field string
		file  core.SourceFile
	}{
		{"file1", file1},
		{"file2", file2},
	} {
		fw, err := w.CreateFormFile(part.field, filepath.Base(part.file.Name))
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(part.file.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// parseError turns an error body into a BackendError. The backend answers
// {"detail": ...}; other services in front of it may answer {"error": ...}.
func parseError(status int, body []byte) error {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return &BackendError{Status: status, Detail: truncate(strings.TrimSpace(string(body)), 200)}
	}

	detail := payload.Error
	if len(payload.Detail) > 0 {
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil {
			detail = s
		} else {
			// Validation errors carry a list of objects.
			detail = string(payload.Detail)
		}
	}
	return &BackendError{Status: status, Detail: truncate(detail, 500), parsed: detail != ""}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
