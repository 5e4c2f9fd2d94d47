package marketdata

import (
	"context"
	"sync"

	"github.com/wonny/screener/internal/contracts"
)

// Serialized runs at most one upstream call at a time, for sources that are
// not safe for concurrent use
type Serialized struct {
	mu       sync.Mutex
	upstream contracts.BarSource
}

// NewSerialized wraps upstream
func NewSerialized(upstream contracts.BarSource) *Serialized {
	return &Serialized{upstream: upstream}
}

// GetBars holds the lock for the duration of the upstream call
func (s *Serialized) GetBars(ctx context.Context, code string, start, end contracts.Date) (contracts.BarSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.upstream.GetBars(ctx, code, start, end)
}
