package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/anineesan/anineesan-server/internal/domain"
)

// RecordEntry is one cached by-id lookup.
type RecordEntry struct {
	Source    domain.Source    `json:"source"`
	ID        int              `json:"id"`
	StoredAt  time.Time        `json:"stored_at"`
	ExpiresAt time.Time        `json:"expires_at"` // zero when the entry never expires
	Record    domain.RawRecord `json:"record"`
}

// LookupRecord returns the cached record for id from src. A miss (including
// an expired entry) returns false with a nil error.
func (s *Store) LookupRecord(ctx context.Context, src domain.Source, id int) (*domain.RawRecord, bool, error) {
	var entry RecordEntry
	err := s.get(ctx, recordKey(src, id), &entry)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &entry.Record, true, nil
}

// StoreRecord caches rec as the answer for id from src. A non-positive ttl
// keeps the entry until it is purged.
func (s *Store) StoreRecord(ctx context.Context, src domain.Source, id int, rec *domain.RawRecord, ttl time.Duration) error {
	if rec == nil {
		return fmt.Errorf("store record %s/%d: nil record", src, id)
	}

	now := s.now()
	entry := RecordEntry{
		Source:   src,
		ID:       id,
		StoredAt: now,
		Record:   *rec,
	}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}

	if err := s.set(ctx, recordKey(src, id), &entry, ttl); err != nil {
		return fmt.Errorf("store record %s/%d: %w", src, id, err)
	}
	return nil
}

// ListRecords returns the live cache entries for src, or for every source
// when src is zero, in key order.
func (s *Store) ListRecords(ctx context.Context, src domain.Source) ([]RecordEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(recordPrefix)
	if src != 0 {
		prefix = recordSourcePrefix(src)
	}

	entries := []RecordEntry{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var entry RecordEntry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				s.logger.Warn("skipping unreadable cache entry", "key", string(item.Key()), "error", err)
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return entries, nil
}

// PurgeRecords drops every cached record and returns how many were removed.
func (s *Store) PurgeRecords(ctx context.Context) (int, error) {
	n, err := s.deletePrefix(ctx, []byte(recordPrefix))
	if err != nil {
		return n, fmt.Errorf("purge records: %w", err)
	}
	s.logger.Info("record cache purged", "removed", n)
	return n, nil
}
