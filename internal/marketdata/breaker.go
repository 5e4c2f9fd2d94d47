package marketdata

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/config"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/metrics"
)

// BreakerSource guards a BarSource with a circuit breaker. While open,
// calls fail fast with gobreaker.ErrOpenState.
type BreakerSource struct {
	upstream contracts.BarSource
	cb       *gobreaker.CircuitBreaker
}

// NewBreakerSource wraps upstream; name labels logs and metrics
func NewBreakerSource(name string, upstream contracts.BarSource, cfg config.CircuitBreakerConfig, log *logger.Logger) *BreakerSource {
	log = log.WithComponent("breaker")
	readyToTrip := cfg.ReadyToTrip
	if readyToTrip == 0 {
		readyToTrip = 20
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= readyToTrip
		},
		// 호출자 취소는 업스트림 장애가 아님
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(map[string]interface{}{
				"upstream": name,
				"from":     from.String(),
				"to":       to.String(),
			}).Warn("Circuit breaker state changed")
			if to == gobreaker.StateOpen {
				metrics.RecordBreakerTrip(name)
			}
		},
	}

	return &BreakerSource{
		upstream: upstream,
		cb:       gobreaker.NewCircuitBreaker(settings),
	}
}

// GetBars calls upstream through the breaker
func (b *BreakerSource) GetBars(ctx context.Context, code string, start, end contracts.Date) (contracts.BarSeries, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.upstream.GetBars(ctx, code, start, end)
	})
	if err != nil {
		return nil, err
	}
	series, _ := result.(contracts.BarSeries)
	return series, nil
}

// State returns the current breaker state
func (b *BreakerSource) State() gobreaker.State {
	return b.cb.State()
}
