// Package history persists a summary of every completed comparison to
// PostgreSQL. Only file names, counts and request metadata are stored;
// part lists never leave the process.
package history

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/bomdiff/internal/core"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// DefaultRecentLimit and MaxRecentLimit bound Recent.
const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500
)

const createSchema = `
CREATE TABLE IF NOT EXISTS comparison_sessions (
    id                 UUID PRIMARY KEY,
    file1_name         TEXT,
    file2_name         TEXT,
    total_parts_file1  INTEGER NOT NULL DEFAULT 0,
    total_parts_file2  INTEGER NOT NULL DEFAULT 0,
    new_count          INTEGER NOT NULL DEFAULT 0,
    removed_count      INTEGER NOT NULL DEFAULT 0,
    modified_count     INTEGER NOT NULL DEFAULT 0,
    unchanged_count    INTEGER NOT NULL DEFAULT 0,
    unrecognized_count INTEGER NOT NULL DEFAULT 0,
    client_ip          INET,
    user_agent         TEXT,
    duration_ms        BIGINT NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS comparison_sessions_created_at_idx
    ON comparison_sessions (created_at DESC);
`

const insertSession = `
INSERT INTO comparison_sessions (
    id, file1_name, file2_name,
    total_parts_file1, total_parts_file2,
    new_count, removed_count, modified_count, unchanged_count, unrecognized_count,
    client_ip, user_agent, duration_ms, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO NOTHING
`

const selectRecent = `
SELECT id, file1_name, file2_name,
       total_parts_file1, total_parts_file2,
       new_count, removed_count, modified_count, unchanged_count, unrecognized_count,
       client_ip, user_agent, duration_ms, created_at
FROM comparison_sessions
ORDER BY created_at DESC
LIMIT $1
`

const deleteBefore = `DELETE FROM comparison_sessions WHERE created_at < $1`

// Store reads and writes comparison history.
type Store struct {
	db DBTX
}

// NewStore creates a Store on db.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the history table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createSchema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// Record stores one comparison summary. Recording the same session twice
// is a no-op.
func (s *Store) Record(ctx context.Context, e core.HistoryEntry) error {
	id, err := toPgUUID(e.SessionID)
	if err != nil {
		return fmt.Errorf("record comparison: %w", err)
	}

	st := e.Stats
	_, err = s.db.Exec(ctx, insertSession,
		id,
		toPgText(e.Names.File1),
		toPgText(e.Names.File2),
		toPgInt4(st.TotalPartsFile1),
		toPgInt4(st.TotalPartsFile2),
		toPgInt4(st.NewPartsCount),
		toPgInt4(st.RemovedPartsCount),
		toPgInt4(st.ModifiedPartsCount),
		toPgInt4(st.UnchangedPartsCount),
		toPgInt4(st.UnrecognizedPartsCount),
		toInet(e.ClientIP),
		toPgText(e.UserAgent),
		e.Duration.Milliseconds(),
		toPgTimestamptz(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("record comparison %s: %w", e.SessionID, err)
	}
	return nil
}

// Recent returns the newest entries first. limit is clamped to
// [1, MaxRecentLimit]; zero or less means DefaultRecentLimit.
func (s *Store) Recent(ctx context.Context, limit int) ([]core.HistoryEntry, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > MaxRecentLimit:
		limit = MaxRecentLimit
	}

	rows, err := s.db.Query(ctx, selectRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []core.HistoryEntry
	for rows.Next() {
		var (
			id                 pgtype.UUID
			file1, file2       pgtype.Text
			total1, total2     pgtype.Int4
			added, removed     pgtype.Int4
			modified           pgtype.Int4
			unchanged, unknown pgtype.Int4
			clientIP           *netip.Addr
			userAgent          pgtype.Text
			durationMS         int64
			createdAt          pgtype.Timestamptz
		)
		if err := rows.Scan(
			&id, &file1, &file2,
			&total1, &total2,
			&added, &removed, &modified, &unchanged, &unknown,
			&clientIP, &userAgent, &durationMS, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}

		entry := core.HistoryEntry{
			SessionID: fromPgUUID(id),
			Names:     core.DisplayNames{File1: file1.String, File2: file2.String},
			Stats: core.SummaryStats{
				TotalPartsFile1:        int(total1.Int32),
				TotalPartsFile2:        int(total2.Int32),
				NewPartsCount:          int(added.Int32),
				RemovedPartsCount:      int(removed.Int32),
				ModifiedPartsCount:     int(modified.Int32),
				UnchangedPartsCount:    int(unchanged.Int32),
				UnrecognizedPartsCount: int(unknown.Int32),
			},
			UserAgent: userAgent.String,
			Duration:  time.Duration(durationMS) * time.Millisecond,
			CreatedAt: createdAt.Time,
		}
		if clientIP != nil {
			entry.ClientIP = clientIP.String()
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return entries, nil
}

// Purge deletes entries older than cutoff and returns how many went.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, deleteBefore, toPgTimestamptz(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge history: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping reports whether the store's database answers.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping history database: %w", err)
	}
	if one != 1 {
		return errors.New("ping history database: unexpected answer")
	}
	return nil
}
