package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"githubinsight/models"
)

const defaultBucket = "snapshots"

// BoltStore keeps snapshots in a single bbolt bucket keyed by location.
type BoltStore struct {
	db         *bbolt.DB
	bucketName []byte
	log        *zap.Logger
}

// NewBoltStore opens (creating if needed) the database at dbPath.
func NewBoltStore(dbPath string, log *zap.Logger) (*BoltStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(defaultBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating database bucket: %w", err)
	}

	return &BoltStore{
		db:         db,
		bucketName: []byte(defaultBucket),
		log:        log,
	}, nil
}

// Write stores the snapshot under location, replacing any previous one.
func (s *BoltStore) Write(ctx context.Context, location string, snap *models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucketName).Put(boltKey(location), data)
	}); err != nil {
		return fmt.Errorf("writing to db: %w", err)
	}
	s.log.Info("Snapshot written", zap.String("location", location), zap.Int("repo_count", len(snap.Repositories)))
	return nil
}

// Read returns the snapshot stored under location.
func (s *BoltStore) Read(ctx context.Context, location string) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	if err := s.db.View(func(tx *bbolt.Tx) error {
		// Values are only valid inside the transaction.
		if v := tx.Bucket(s.bucketName).Get(boltKey(location)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("reading from db: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
	}
	return Decode(data)
}

// Close closes database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func boltKey(location string) []byte {
	return []byte(strings.ToLower(location))
}
