package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeComparer struct {
	result *ComparisonResult
	err    error
	calls  int
}

func (f *fakeComparer) Compare(ctx context.Context, file1, file2 SourceFile) (*ComparisonResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []HistoryEntry
	err     error
}

func (h *fakeHistory) Record(ctx context.Context, e HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	return h.err
}

type fakeMetrics struct {
	outcomes []string
	exports  []int
	active   int
}

func (m *fakeMetrics) ComparisonFinished(outcome string, d time.Duration) {
	m.outcomes = append(m.outcomes, outcome)
}
func (m *fakeMetrics) ExportFinished(rows int, d time.Duration) { m.exports = append(m.exports, rows) }
func (m *fakeMetrics) SessionsActive(n int)                     { m.active = n }

// fakeClock is a manually advanced time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var (
	bom1 = SourceFile{Name: "rev-a.xlsx", Data: []byte("a")}
	bom2 = SourceFile{Name: "rev-b.xlsx", Data: []byte("b")}
)

func newTestService(c Comparer, opts ...ServiceOption) (*Service, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s := NewService(c, opts...)
	s.now = clock.Now
	return s, clock
}

func TestService_CompareStoresSession(t *testing.T) {
	hist := &fakeHistory{}
	m := &fakeMetrics{}
	svc, _ := newTestService(&fakeComparer{result: sampleResult()}, WithHistory(hist), WithMetrics(m))

	ctx := ContextWithClientIP(context.Background(), "10.0.0.7")
	sess, err := svc.Compare(ctx, bom1, bom2)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if sess.ID == "" {
		t.Fatal("session has no ID")
	}
	if sess.Names != (DisplayNames{File1: "rev-a.xlsx", File2: "rev-b.xlsx"}) {
		t.Errorf("Names = %+v", sess.Names)
	}

	got, err := svc.Session(sess.ID)
	if err != nil || got != sess {
		t.Errorf("Session(%q) = %v, %v", sess.ID, got, err)
	}

	if len(hist.entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(hist.entries))
	}
	if e := hist.entries[0]; e.SessionID != sess.ID || e.ClientIP != "10.0.0.7" || e.Stats.NewPartsCount != 2 {
		t.Errorf("history entry = %+v", e)
	}
	if len(m.outcomes) != 1 || m.outcomes[0] != OutcomeOK || m.active != 1 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestService_CompareRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name  string
		file1 SourceFile
		file2 SourceFile
		want  error
	}{
		{"missing first", SourceFile{}, bom2, ErrNoFile},
		{"missing second", bom1, SourceFile{}, ErrNoFile},
		{"empty data", SourceFile{Name: "x.xlsx"}, bom2, ErrEmptyFile},
		{"too large", bom1, SourceFile{Name: "big.xlsx", Data: make([]byte, 11)}, ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comparer := &fakeComparer{result: sampleResult()}
			svc, _ := newTestService(comparer, WithMaxFileSize(10))

			_, err := svc.Compare(context.Background(), tt.file1, tt.file2)
			if !errors.Is(err, tt.want) {
				t.Errorf("Compare() error = %v, want %v", err, tt.want)
			}
			if comparer.calls != 0 {
				t.Error("backend called for invalid input")
			}
		})
	}
}

func TestService_CompareBackendError(t *testing.T) {
	m := &fakeMetrics{}
	hist := &fakeHistory{}
	backendErr := errors.Join(ErrComparisonRejected, errors.New("missing MPN column"))
	svc, _ := newTestService(&fakeComparer{err: backendErr}, WithMetrics(m), WithHistory(hist))

	_, err := svc.Compare(context.Background(), bom1, bom2)
	if !errors.Is(err, ErrComparisonRejected) {
		t.Fatalf("Compare() error = %v, want ErrComparisonRejected", err)
	}
	if svc.ActiveSessions() != 0 {
		t.Error("failed comparison created a session")
	}
	if len(hist.entries) != 0 {
		t.Error("failed comparison recorded history")
	}
	if len(m.outcomes) != 1 || m.outcomes[0] != OutcomeRejected {
		t.Errorf("outcomes = %v, want [rejected]", m.outcomes)
	}
}

func TestService_CompareResyncsBadCounts(t *testing.T) {
	bad := sampleResult()
	bad.SummaryStats.NewPartsCount = 99
	svc, _ := newTestService(&fakeComparer{result: bad})

	sess, err := svc.Compare(context.Background(), bom1, bom2)
	if err != nil {
		t.Fatal(err)
	}
	if !sess.Result.Consistent() {
		t.Errorf("stored counts %+v not resynced", sess.Result.SummaryStats)
	}
	if bad.SummaryStats.NewPartsCount != 99 {
		t.Error("backend result was modified in place")
	}
}

func TestService_HistoryFailureDoesNotFailCompare(t *testing.T) {
	hist := &fakeHistory{err: errors.New("db down")}
	svc, _ := newTestService(&fakeComparer{result: sampleResult()}, WithHistory(hist))

	if _, err := svc.Compare(context.Background(), bom1, bom2); err != nil {
		t.Errorf("Compare() error = %v, want nil", err)
	}
}

func TestService_CompareBusy(t *testing.T) {
	limiter := NewCompareLimiter(1, 20*time.Millisecond)
	m := &fakeMetrics{}
	svc, _ := newTestService(&fakeComparer{result: sampleResult()}, WithLimiter(limiter), WithMetrics(m))

	if !limiter.TryAcquire() {
		t.Fatal("TryAcquire failed")
	}
	defer limiter.Release()

	_, err := svc.Compare(context.Background(), bom1, bom2)
	if !errors.Is(err, ErrTooManyComparisons) {
		t.Errorf("Compare() error = %v, want ErrTooManyComparisons", err)
	}
	if len(m.outcomes) != 1 || m.outcomes[0] != OutcomeBusy {
		t.Errorf("outcomes = %v, want [busy]", m.outcomes)
	}
}

func TestService_SessionExpiry(t *testing.T) {
	svc, clock := newTestService(&fakeComparer{result: sampleResult()}, WithSessionTTL(10*time.Minute))

	sess, err := svc.Compare(context.Background(), bom1, bom2)
	if err != nil {
		t.Fatal(err)
	}

	// Access slides the deadline forward.
	clock.Advance(8 * time.Minute)
	if _, err := svc.Session(sess.ID); err != nil {
		t.Fatalf("Session() before expiry error = %v", err)
	}
	clock.Advance(8 * time.Minute)
	if _, err := svc.Session(sess.ID); err != nil {
		t.Fatalf("Session() after sliding error = %v", err)
	}

	clock.Advance(10 * time.Minute)
	if _, err := svc.Session(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Session() after expiry error = %v, want ErrSessionNotFound", err)
	}
}

func TestService_EvictExpired(t *testing.T) {
	svc, clock := newTestService(&fakeComparer{result: sampleResult()}, WithSessionTTL(time.Minute))

	for i := 0; i < 3; i++ {
		if _, err := svc.Compare(context.Background(), bom1, bom2); err != nil {
			t.Fatal(err)
		}
	}
	if n := svc.EvictExpired(); n != 0 {
		t.Errorf("EvictExpired() = %d before TTL, want 0", n)
	}

	clock.Advance(2 * time.Minute)
	if n := svc.EvictExpired(); n != 3 {
		t.Errorf("EvictExpired() = %d, want 3", n)
	}
	if svc.ActiveSessions() != 0 {
		t.Errorf("ActiveSessions() = %d, want 0", svc.ActiveSessions())
	}
}

func TestService_View(t *testing.T) {
	svc, _ := newTestService(&fakeComparer{result: sampleResult()})
	sess, err := svc.Compare(context.Background(), bom1, bom2)
	if err != nil {
		t.Fatal(err)
	}

	v, err := svc.View(sess.ID, DefaultViewState().WithSearch("grm"))
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if !v.Filtered() {
		t.Error("Filtered() = false with a search term")
	}
	if len(v.Result.ModifiedParts) != 1 || v.Result.SummaryStats.ModifiedPartsCount != 1 {
		t.Fatalf("modified = %v", v.Result.ModifiedParts)
	}
	d := v.Result.ModifiedParts[0].Diffs
	if d == nil || !d.Qty || !d.RefDes {
		t.Errorf("diffs = %+v, want Qty and RefDes", d)
	}
	if v.Unfiltered.ModifiedPartsCount != 2 {
		t.Errorf("Unfiltered.ModifiedPartsCount = %d, want 2", v.Unfiltered.ModifiedPartsCount)
	}
	if sess.Result.ModifiedParts[0].Diffs != nil {
		t.Error("View annotated the stored result")
	}
}

func TestService_ExportAndDiscard(t *testing.T) {
	m := &fakeMetrics{}
	svc, _ := newTestService(&fakeComparer{result: sampleResult()}, WithMetrics(m))
	sess, err := svc.Compare(context.Background(), bom1, bom2)
	if err != nil {
		t.Fatal(err)
	}

	a, err := svc.Export(sess.ID, "R5")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if a.FileName != "bom_comparison_rev-a.xlsx_vs_rev-b.xlsx.xlsx" {
		t.Errorf("FileName = %q", a.FileName)
	}
	if len(m.exports) != 1 || m.exports[0] != 1 {
		t.Errorf("exported rows = %v, want [1]", m.exports)
	}

	if !svc.Discard(sess.ID) {
		t.Error("Discard() = false for live session")
	}
	if svc.Discard(sess.ID) {
		t.Error("Discard() = true for discarded session")
	}
	if _, err := svc.Export(sess.ID, ""); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Export() after discard error = %v, want ErrSessionNotFound", err)
	}
}

func TestService_StartJanitorStops(t *testing.T) {
	svc, _ := newTestService(&fakeComparer{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.StartJanitor(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}
