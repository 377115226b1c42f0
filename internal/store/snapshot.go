package store

import (
	"context"
	"fmt"

	"github.com/anineesan/anineesan-server/internal/domain"
)

// SaveSnapshot persists snap as the latest corpus snapshot, replacing any
// previous one.
func (s *Store) SaveSnapshot(ctx context.Context, snap *domain.CorpusSnapshot) error {
	if snap == nil {
		return fmt.Errorf("save snapshot: nil snapshot")
	}
	if err := s.set(ctx, snapshotKey, snap, 0); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.ID, err)
	}
	s.logger.Debug("corpus snapshot persisted", "snapshot_id", snap.ID, "records", snap.Len())
	return nil
}

// LoadSnapshot returns the last persisted snapshot, or ErrNotFound.
func (s *Store) LoadSnapshot(ctx context.Context) (*domain.CorpusSnapshot, error) {
	var snap domain.CorpusSnapshot
	if err := s.get(ctx, snapshotKey, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
