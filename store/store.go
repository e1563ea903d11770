package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"githubinsight/models"
)

// ErrNotFound is returned by Read when nothing was written at the location.
var ErrNotFound = errors.New("snapshot not found")

// Store persists whole snapshots. A Write fully replaces the previous snapshot
// at the same location.
type Store interface {
	Write(ctx context.Context, location string, s *models.Snapshot) error
	Read(ctx context.Context, location string) (*models.Snapshot, error)
}

// Encode renders a snapshot as the indented JSON document every backend stores.
func Encode(s *models.Snapshot) ([]byte, error) {
	if s == nil {
		return nil, errors.New("encoding snapshot: nil snapshot")
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a stored snapshot document.
func Decode(data []byte) (*models.Snapshot, error) {
	var s models.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &s, nil
}
