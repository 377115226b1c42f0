package reconcile

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/source"
)

// Fanout queries every adapter concurrently under one deadline and returns
// whatever arrived in time, concatenated in source priority order.
type Fanout struct {
	adapters []source.Adapter
	deadline time.Duration
	logger   *slog.Logger
}

// NewFanout creates a fan-out over adapters. They are ordered by source so
// results always come back PrimaryMeta first.
func NewFanout(deadline time.Duration, logger *slog.Logger, adapters ...source.Adapter) *Fanout {
	ordered := slices.Clone(adapters)
	slices.SortStableFunc(ordered, func(a, b source.Adapter) int {
		return int(a.Source()) - int(b.Source())
	})
	return &Fanout{adapters: ordered, deadline: deadline, logger: logger}
}

// Adapters returns the adapters in query order.
func (f *Fanout) Adapters() []source.Adapter {
	return slices.Clone(f.adapters)
}

// Query searches every adapter for text.
func (f *Fanout) Query(ctx context.Context, text string) []domain.RawRecord {
	return f.run(ctx, "query", func(ctx context.Context, a source.Adapter) ([]domain.RawRecord, error) {
		return a.FetchByQuery(ctx, text)
	})
}

// ByID looks id up on every adapter.
func (f *Fanout) ByID(ctx context.Context, id int) []domain.RawRecord {
	return f.run(ctx, "id", func(ctx context.Context, a source.Adapter) ([]domain.RawRecord, error) {
		r, err := a.FetchByID(ctx, id)
		if r == nil {
			return nil, err
		}
		return []domain.RawRecord{*r}, err
	})
}

type fanoutResult struct {
	index   int
	records []domain.RawRecord
	err     error
}

func (f *Fanout) run(ctx context.Context, op string, call func(context.Context, source.Adapter) ([]domain.RawRecord, error)) []domain.RawRecord {
	if len(f.adapters) == 0 {
		return nil
	}
	if f.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.deadline)
		defer cancel()
	}

	// Buffered so late adapters can always deliver and exit after we stop reading.
	results := make(chan fanoutResult, len(f.adapters))
	for i, a := range f.adapters {
		go func() {
			records, err := call(ctx, a)
			results <- fanoutResult{index: i, records: records, err: err}
		}()
	}

	slots := make([][]domain.RawRecord, len(f.adapters))
	done := make([]bool, len(f.adapters))

collect:
	for range f.adapters {
		select {
		case r := <-results:
			done[r.index] = true
			if r.err != nil {
				f.logger.Debug("adapter returned no results", "op", op, "source", f.adapters[r.index].Source(), "error", r.err)
				continue
			}
			slots[r.index] = r.records
		case <-ctx.Done():
			break collect
		}
	}

	var out []domain.RawRecord
	for i, records := range slots {
		if !done[i] {
			f.logger.Warn("adapter missed the fan-out deadline", "op", op, "source", f.adapters[i].Source())
			continue
		}
		out = append(out, records...)
	}
	return out
}
