// Package postgres persists resolved lens records for long-running batch jobs.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lensvault/lensvault/core/record"
)

// LensStore persists lens records keyed by their deterministic uuid.
type LensStore struct {
	pool *pgxpool.Pool
}

// NewLensStore constructs a LensStore backed by the provided pgx pool.
func NewLensStore(pool *pgxpool.Pool) *LensStore {
	return &LensStore{pool: pool}
}

const (
	lensUpsertSQL = `
INSERT INTO lens_records (
    uuid,
    lens_name,
    user_name,
    lens_url,
    payload,
    updated_at
)
VALUES ($1, $2, $3, $4, $5::jsonb, NOW())
ON CONFLICT (uuid) DO UPDATE SET
    lens_name = EXCLUDED.lens_name,
    user_name = EXCLUDED.user_name,
    lens_url = EXCLUDED.lens_url,
    payload = EXCLUDED.payload,
    updated_at = NOW();
`
	lensSelectSQL = `SELECT payload FROM lens_records WHERE uuid = $1;`
	lensListSQL   = `SELECT payload FROM lens_records WHERE user_name = $1 ORDER BY uuid;`
	lensCountSQL  = `SELECT COUNT(*) FROM lens_records;`
)

// Save upserts a record. The record must carry a uuid; batch callers derive it
// deterministically so replays deduplicate.
func (s *LensStore) Save(ctx context.Context, rec record.LensRecord) error {
	uuid := strings.TrimSpace(rec.UUID)
	if uuid == "" {
		return fmt.Errorf("lens store: record uuid required")
	}
	if s.pool == nil {
		return fmt.Errorf("lens store: nil pool")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal lens record: %w", err)
	}

	if _, err := s.pool.Exec(ctx, lensUpsertSQL, uuid, rec.LensName, rec.UserName, rec.LensURL, payload); err != nil {
		return fmt.Errorf("upsert lens record: %w", err)
	}
	return nil
}

// Get loads the stored record for uuid. The boolean reports presence.
func (s *LensStore) Get(ctx context.Context, uuid string) (record.LensRecord, bool, error) {
	if s.pool == nil {
		return record.LensRecord{}, false, fmt.Errorf("lens store: nil pool")
	}
	var payload []byte
	err := s.pool.QueryRow(ctx, lensSelectSQL, strings.TrimSpace(uuid)).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return record.LensRecord{}, false, nil
		}
		return record.LensRecord{}, false, fmt.Errorf("select lens record: %w", err)
	}
	var rec record.LensRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return record.LensRecord{}, false, fmt.Errorf("unmarshal lens record: %w", err)
	}
	return rec, true, nil
}

// Upsert merges rec over the stored prior (fresh fields win, stored non-empty
// fields survive) and saves the result, returning the merged record.
func (s *LensStore) Upsert(ctx context.Context, rec record.LensRecord) (record.LensRecord, error) {
	prior, ok, err := s.Get(ctx, rec.UUID)
	if err != nil {
		return rec, err
	}
	if ok {
		rec = record.Merge(rec, prior)
	}
	if err := s.Save(ctx, rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// ListByUser returns the stored records published by the given user name.
func (s *LensStore) ListByUser(ctx context.Context, userName string) ([]record.LensRecord, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("lens store: nil pool")
	}
	rows, err := s.pool.Query(ctx, lensListSQL, strings.TrimSpace(userName))
	if err != nil {
		return nil, fmt.Errorf("list lens records: %w", err)
	}
	defer rows.Close()

	var out []record.LensRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan lens record: %w", err)
		}
		var rec record.LensRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal lens record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count reports the number of stored records.
func (s *LensStore) Count(ctx context.Context) (int64, error) {
	if s.pool == nil {
		return 0, fmt.Errorf("lens store: nil pool")
	}
	var count int64
	if err := s.pool.QueryRow(ctx, lensCountSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("count lens records: %w", err)
	}
	return count, nil
}
