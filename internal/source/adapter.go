// Package source defines the uniform fetch contract implemented by every
// upstream adapter, plus the transport, retry, fallback and circuit breaking
// helpers the adapters share.
package source

import (
	"context"

	"github.com/anineesan/anineesan-server/internal/domain"
)

// Adapter fetches raw records from one upstream.
//
// FetchByID takes an id in the primary metadata id space and returns nil when
// the upstream has no such title. Implementations classify their failures with
// ErrTransient, ErrNotFound and ErrParse; Resilient turns those into empty results.
type Adapter interface {
	Source() domain.Source
	FetchByQuery(ctx context.Context, text string) ([]domain.RawRecord, error)
	FetchByID(ctx context.Context, id int) (*domain.RawRecord, error)
}
