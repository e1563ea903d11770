package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"githubinsight/models"
	"githubinsight/store"
)

const schema = `
	CREATE TABLE IF NOT EXISTS snapshots (
		location   TEXT PRIMARY KEY,
		run_id     UUID NOT NULL,
		login      TEXT NOT NULL,
		document   JSONB NOT NULL,
		fetched_at TIMESTAMPTZ NOT NULL
	)
`

const upsertSnapshot = `
	INSERT INTO snapshots (location, run_id, login, document, fetched_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (location) DO UPDATE SET
		run_id = EXCLUDED.run_id,
		login = EXCLUDED.login,
		document = EXCLUDED.document,
		fetched_at = EXCLUDED.fetched_at
`

const selectSnapshot = `SELECT document FROM snapshots WHERE location = $1`

// SnapshotArchive is a store.Store keeping one JSONB document per location.
type SnapshotArchive struct {
	db  *DB
	now func() time.Time
}

var _ store.Store = (*SnapshotArchive)(nil)

// NewSnapshotArchive wraps an open connection.
func NewSnapshotArchive(db *DB) *SnapshotArchive {
	return &SnapshotArchive{db: db, now: time.Now}
}

// EnsureSchema creates the snapshots table if it does not exist.
func (a *SnapshotArchive) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create snapshots table: %w", err)
	}
	return nil
}

// Write upserts the whole snapshot document under location.
func (a *SnapshotArchive) Write(ctx context.Context, location string, s *models.Snapshot) error {
	if location == "" {
		return fmt.Errorf("%w: location cannot be empty", ErrInvalidInput)
	}
	doc, err := store.Encode(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	stmt, err := a.db.getStmt(ctx, upsertSnapshot)
	if err != nil {
		return err
	}
	runID := uuid.New()
	if _, err := stmt.ExecContext(ctx, location, runID.String(), s.Profile.Login, doc, a.now().UTC()); err != nil {
		return fmt.Errorf("failed to store snapshot %s: %w", location, err)
	}

	a.db.log.Info("Snapshot archived",
		zap.String("location", location),
		zap.String("run_id", runID.String()),
		zap.Int("repo_count", len(s.Repositories)))
	return nil
}

// Read returns the snapshot archived under location, or store.ErrNotFound.
func (a *SnapshotArchive) Read(ctx context.Context, location string) (*models.Snapshot, error) {
	if location == "" {
		return nil, fmt.Errorf("%w: location cannot be empty", ErrInvalidInput)
	}
	var doc []byte
	if err := a.db.conn.GetContext(ctx, &doc, selectSnapshot, location); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, location)
		}
		return nil, fmt.Errorf("failed to get snapshot %s: %w", location, err)
	}
	return store.Decode(doc)
}

// Close closes the underlying connection.
func (a *SnapshotArchive) Close() error {
	return a.db.Close()
}
