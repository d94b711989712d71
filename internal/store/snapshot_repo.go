package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"findash/internal/series"
)

// ErrSnapshotStoreDisabled is returned when no database is configured.
var ErrSnapshotStoreDisabled = errors.New("snapshot store disabled")

// Snapshot is one persisted SeriesResult.
type Snapshot struct {
	Ticker    string          `json:"ticker"`
	CIK       string          `json:"cik"`
	RequestID string          `json:"request_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewSnapshot serializes a result for storage.
func NewSnapshot(result series.SeriesResult, cik string) (Snapshot, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to marshal series: %w", err)
	}
	return Snapshot{
		Ticker:    strings.ToUpper(result.Ticker),
		CIK:       cik,
		RequestID: result.Debug.RequestID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Result decodes the stored series.
func (s Snapshot) Result() (series.SeriesResult, error) {
	var r series.SeriesResult
	if err := json.Unmarshal(s.Payload, &r); err != nil {
		return series.SeriesResult{}, fmt.Errorf("failed to decode snapshot %s: %w", s.RequestID, err)
	}
	return r, nil
}

const snapshotSchema = `
	CREATE TABLE IF NOT EXISTS series_snapshots (
		ticker     TEXT NOT NULL,
		cik        TEXT NOT NULL,
		request_id TEXT PRIMARY KEY,
		payload    JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS series_snapshots_ticker_created
		ON series_snapshots (ticker, created_at DESC);
`

// SnapshotRepo stores snapshots in Postgres. A zero SnapshotRepo is
// disabled and reports ErrSnapshotStoreDisabled.
type SnapshotRepo struct {
	pool *pgxpool.Pool
}

// OpenSnapshotRepo connects using the URL held in the urlEnv environment
// variable and makes sure the table exists.
func OpenSnapshotRepo(ctx context.Context, urlEnv string) (*SnapshotRepo, error) {
	dbURL := os.Getenv(urlEnv)
	if dbURL == "" {
		return nil, fmt.Errorf("%s environment variable not set", urlEnv)
	}

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := pool.Exec(ctx, snapshotSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create snapshot schema: %w", err)
	}
	return &SnapshotRepo{pool: pool}, nil
}

// Close releases the pool.
func (r *SnapshotRepo) Close() {
	if r != nil && r.pool != nil {
		r.pool.Close()
	}
}

// SaveSnapshot upserts a snapshot keyed by its request id.
func (r *SnapshotRepo) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	if r == nil || r.pool == nil {
		return ErrSnapshotStoreDisabled
	}

	query := `
		INSERT INTO series_snapshots (ticker, cik, request_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (request_id)
		DO UPDATE SET
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at;
	`
	_, err := r.pool.Exec(ctx, query, snap.Ticker, snap.CIK, snap.RequestID, []byte(snap.Payload), snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot for ticker, or nil if there is none.
func (r *SnapshotRepo) LatestSnapshot(ctx context.Context, ticker string) (*Snapshot, error) {
	if r == nil || r.pool == nil {
		return nil, ErrSnapshotStoreDisabled
	}

	query := `
		SELECT ticker, cik, request_id, payload, created_at
		FROM series_snapshots
		WHERE ticker = $1
		ORDER BY created_at DESC
		LIMIT 1;
	`
	var (
		s       Snapshot
		payload []byte
	)
	err := r.pool.QueryRow(ctx, query, strings.ToUpper(ticker)).Scan(&s.Ticker, &s.CIK, &s.RequestID, &payload, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	s.Payload = payload
	return &s, nil
}
