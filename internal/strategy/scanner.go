package strategy

import (
	"context"
	"fmt"

	"github.com/wonny/screener/internal/contracts"
)

// ScanOutcome is the most recent base date at which a stock met a strategy
type ScanOutcome struct {
	BaseDate contracts.Date
	Bar      contracts.Bar       // bar on BaseDate
	Series   contracts.BarSeries // full fetched window
}

// MatchResult turns the outcome into the persisted record
func (o *ScanOutcome) MatchResult(stock contracts.Stock) contracts.MatchResult {
	current := 0.0
	if last, ok := o.Series.Last(); ok {
		current = last.Close
	}
	return contracts.MatchResult{
		Code:         stock.Code,
		Name:         stock.Name,
		MatchDate:    o.BaseDate,
		MatchPrice:   o.Bar.Close,
		CurrentPrice: current,
	}
}

// Scanner evaluates one stock against a strategy
// ⭐ SSOT: 종목 단위 매칭 로직은 여기서만
type Scanner struct {
	source contracts.BarSource
}

// NewScanner creates a scanner reading bars from source
func NewScanner(source contracts.BarSource) *Scanner {
	return &Scanner{source: source}
}

// Scan finds the newest base date within the lookback window that satisfies
// every condition. A nil outcome with a nil error means no match. Errors are
// returned only for a failed fetch or a cancelled context; callers treat them
// as no match.
func (s *Scanner) Scan(ctx context.Context, code string, strat *Strategy, start, end contracts.Date) (*ScanOutcome, error) {
	series, err := s.source.GetBars(ctx, code, start, end)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("get bars %s: %w", code, err)
	}
	if series.Len() == 0 {
		return nil, nil
	}

	return Match(series, strat), nil
}

// Match runs the scan over an already fetched series
func Match(series contracts.BarSeries, strat *Strategy) *ScanOutcome {
	n := series.Len()
	if n == 0 {
		return nil
	}

	// 상한가 조건이 있을 때만 사전 필터 적용
	if strat.HasLimitUp() && !series.AnyPctChangeAtLeast(LimitUpPct) {
		return nil
	}

	// 가장 먼 과거 오프셋을 담을 수 있는 첫 인덱스
	lowest := MaxBackwardOffset(strat.Conditions)
	if floor := n - strat.LookbackDays; floor > lowest {
		lowest = floor
	}

	index := series.Index()
	for i := n - 1; i >= lowest; i-- {
		base := series[i].TradeDate
		if EvaluateAll(strat.Conditions, base, series, index) {
			return &ScanOutcome{
				BaseDate: base,
				Bar:      series[i],
				Series:   series,
			}
		}
	}

	return nil
}
