package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an idle comparison stays available.
const DefaultSessionTTL = 30 * time.Minute

// DefaultMaxFileSize is the per-file upload limit (32 MB).
const DefaultMaxFileSize int64 = 32 << 20

var (
	// ErrSessionNotFound is returned for unknown, discarded or expired sessions.
	ErrSessionNotFound = errors.New("comparison session not found")

	ErrNoFile       = errors.New("no file provided")
	ErrEmptyFile    = errors.New("empty file")
	ErrFileTooLarge = errors.New("file too large")

	// ErrComparisonRejected marks backend refusals of the input files (4xx).
	ErrComparisonRejected = errors.New("comparison rejected")
	// ErrBackendUnavailable marks backend failures (5xx, transport errors).
	ErrBackendUnavailable = errors.New("comparison backend unavailable")
)

// Comparer runs the part-matching comparison of two BOM files.
// The comparison backend client implements it.
type Comparer interface {
	Compare(ctx context.Context, file1, file2 SourceFile) (*ComparisonResult, error)
}

// HistoryRecorder persists comparison metadata. It never receives parts,
// only the session summary.
type HistoryRecorder interface {
	Record(ctx context.Context, entry HistoryEntry) error
}

// Metrics receives service events. The zero implementation discards them.
type Metrics interface {
	ComparisonFinished(outcome string, d time.Duration)
	ExportFinished(rows int, d time.Duration)
	SessionsActive(n int)
}

type nopMetrics struct{}

func (nopMetrics) ComparisonFinished(string, time.Duration) {}
func (nopMetrics) ExportFinished(int, time.Duration)        {}
func (nopMetrics) SessionsActive(int)                       {}

// Comparison outcomes reported to Metrics.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeBusy     = "busy"
	OutcomeError    = "error"
)

// Session is one completed comparison held in memory.
// Result is shared with every reader and must not be modified.
type Session struct {
	ID        string
	Names     DisplayNames
	Result    *ComparisonResult
	CreatedAt time.Time

	expiresAt time.Time
}

// HistoryEntry is the persisted summary of a session.
type HistoryEntry struct {
	SessionID string
	Names     DisplayNames
	Stats     SummaryStats
	ClientIP  string
	UserAgent string
	Duration  time.Duration
	CreatedAt time.Time
}

// View is a session rendered through a ViewState: filtered by the search
// term, with diff flags on every modified row.
type View struct {
	ID     string
	Names  DisplayNames
	State  ViewState
	Result *ComparisonResult

	// Unfiltered holds the counts before the search term was applied.
	Unfiltered SummaryStats
}

// Filtered reports whether a search term narrowed the result.
func (v *View) Filtered() bool {
	return v.State.Search != ""
}

// Service coordinates comparisons and the sessions that hold their results.
type Service struct {
	comparer    Comparer
	limiter     *CompareLimiter
	history     HistoryRecorder
	metrics     Metrics
	ttl         time.Duration
	maxFileSize int64
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLimiter bounds concurrent backend calls.
func WithLimiter(l *CompareLimiter) ServiceOption {
	return func(s *Service) { s.limiter = l }
}

// WithHistory records every successful comparison.
func WithHistory(h HistoryRecorder) ServiceOption {
	return func(s *Service) { s.history = h }
}

// WithMetrics reports service events.
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithSessionTTL sets how long an idle session survives.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxFileSize sets the per-file size limit in bytes.
func WithMaxFileSize(n int64) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxFileSize = n
		}
	}
}

// NewService creates a Service backed by comparer.
func NewService(comparer Comparer, opts ...ServiceOption) *Service {
	s := &Service{
		comparer:    comparer,
		metrics:     nopMetrics{},
		ttl:         DefaultSessionTTL,
		maxFileSize: DefaultMaxFileSize,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = NewCompareLimiter(0, 0)
	}
	return s
}

// Limiter exposes the comparison limiter for health reporting and shutdown.
func (s *Service) Limiter() *CompareLimiter {
	return s.limiter
}

// Compare sends both files to the backend and stores the result in a new
// session. The result's counts are resynced if the backend got them wrong.
func (s *Service) Compare(ctx context.Context, file1, file2 SourceFile) (*Session, error) {
	if err := s.checkFile("file1", file1); err != nil {
		return nil, err
	}
	if err := s.checkFile("file2", file2); err != nil {
		return nil, err
	}

	start := s.now()
	if err := s.limiter.Acquire(ctx); err != nil {
		s.metrics.ComparisonFinished(OutcomeBusy, 0)
		return nil, err
	}
	result, err := s.comparer.Compare(ctx, file1, file2)
	s.limiter.Release()
	elapsed := s.now().Sub(start)

	if err != nil {
		outcome := OutcomeError
		if errors.Is(err, ErrComparisonRejected) {
			outcome = OutcomeRejected
		}
		s.metrics.ComparisonFinished(outcome, elapsed)
		return nil, fmt.Errorf("compare %s with %s: %w", file1.Name, file2.Name, err)
	}
	if result == nil {
		s.metrics.ComparisonFinished(OutcomeError, elapsed)
		return nil, ErrNoResult
	}
	if !result.Consistent() {
		slog.Warn("comparison counts disagree with lists, resyncing",
			"file1", file1.Name,
			"file2", file2.Name,
		)
		result = result.Clone()
		result.Resync()
	}
	s.metrics.ComparisonFinished(OutcomeOK, elapsed)

	sess := &Session{
		ID:        uuid.New().String(),
		Names:     DisplayNames{File1: file1.Name, File2: file2.Name},
		Result:    result,
		CreatedAt: s.now(),
	}
	sess.expiresAt = sess.CreatedAt.Add(s.ttl)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SessionsActive(n)

	slog.Info("comparison complete",
		"session_id", sess.ID,
		"file1", file1.Name,
		"file2", file2.Name,
		"new", result.SummaryStats.NewPartsCount,
		"removed", result.SummaryStats.RemovedPartsCount,
		"modified", result.SummaryStats.ModifiedPartsCount,
		"duration_ms", elapsed.Milliseconds(),
	)

	s.recordHistory(ctx, sess, elapsed)
	return sess, nil
}

func (s *Service) checkFile(field string, f SourceFile) error {
	switch {
	case f.Name == "":
		return fmt.Errorf("%s: %w", field, ErrNoFile)
	case len(f.Data) == 0:
		return fmt.Errorf("%s %q: %w", field, f.Name, ErrEmptyFile)
	case int64(len(f.Data)) > s.maxFileSize:
		return fmt.Errorf("%s %q: %w: %d bytes exceeds %d", field, f.Name, ErrFileTooLarge, len(f.Data), s.maxFileSize)
	}
	return nil
}

// recordHistory logs history failures instead of failing the comparison;
// the user already has their result.
func (s *Service) recordHistory(ctx context.Context, sess *Session, elapsed time.Duration) {
	if s.history == nil {
		return
	}
	entry := HistoryEntry{
		SessionID: sess.ID,
		Names:     sess.Names,
		Stats:     sess.Result.SummaryStats,
		ClientIP:  ClientIPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		Duration:  elapsed,
		CreatedAt: sess.CreatedAt,
	}
	if err := s.history.Record(context.WithoutCancel(ctx), entry); err != nil {
		slog.Error("failed to record comparison history",
			"session_id", sess.ID,
			"error", err,
		)
	}
}

// Session returns a live session and extends its lifetime.
func (s *Service) Session(id string) (*Session, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if !now.Before(sess.expiresAt) {
		delete(s.sessions, id)
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.expiresAt = now.Add(s.ttl)
	return sess, nil
}

// View filters a session by the state's search term and annotates diffs.
func (s *Service) View(id string, state ViewState) (*View, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	filtered, err := Filter(sess.Result, state.Search)
	if err != nil {
		return nil, err
	}
	return &View{
		ID:         sess.ID,
		Names:      sess.Names,
		State:      state,
		Result:     WithDiffs(filtered),
		Unfiltered: sess.Result.SummaryStats,
	}, nil
}

// Export renders the session, filtered by search, as an xlsx workbook.
func (s *Service) Export(id, search string) (*Artifact, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	filtered, err := Filter(sess.Result, search)
	if err != nil {
		return nil, err
	}

	start := s.now()
	artifact, err := Export(filtered, sess.Names)
	if err != nil {
		return nil, fmt.Errorf("export session %s: %w", id, err)
	}
	rows := len(filtered.ModifiedParts) + len(filtered.RemovedParts) + len(filtered.NewParts)
	s.metrics.ExportFinished(rows, s.now().Sub(start))
	return artifact, nil
}

// Discard drops a session. It reports whether the session existed.
func (s *Service) Discard(id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	if ok {
		s.metrics.SessionsActive(n)
	}
	return ok
}

// ActiveSessions returns the number of sessions currently held.
func (s *Service) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// EvictExpired removes every expired session and returns how many went.
func (s *Service) EvictExpired() int {
	now := s.now()

	s.mu.Lock()
	evicted := 0
	for id, sess := range s.sessions {
		if !now.Before(sess.expiresAt) {
			delete(s.sessions, id)
			evicted++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	if evicted > 0 {
		s.metrics.SessionsActive(n)
	}
	return evicted
}

// StartJanitor evicts expired sessions every interval until ctx is done.
// It blocks; run it in its own goroutine.
func (s *Service) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	slog.Info("session janitor started", "interval", interval, "ttl", s.ttl)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session janitor stopped")
			return
		case <-ticker.C:
			if n := s.EvictExpired(); n > 0 {
				slog.Debug("evicted expired sessions", "count", n)
			}
		}
	}
}
