package contracts

import "context"

// BarSource provides daily bars for one stock
// ⭐ SSOT: 일봉 조회 인터페이스 (실패는 "데이터 없음"과 동일하게 취급)
//
// An empty series with a nil error means no data. Implementations that wrap a
// non-thread-safe upstream must serialize their own calls.
type BarSource interface {
	GetBars(ctx context.Context, code string, start, end Date) (BarSeries, error)
}

// UniverseLister lists the tradable stocks
// ⭐ SSOT: 종목 목록 인터페이스 (실패 시 빈 목록)
type UniverseLister interface {
	ListUniverse(ctx context.Context) []Stock
}

// BarSourceFunc adapts a function to BarSource
type BarSourceFunc func(ctx context.Context, code string, start, end Date) (BarSeries, error)

// GetBars calls f
func (f BarSourceFunc) GetBars(ctx context.Context, code string, start, end Date) (BarSeries, error) {
	return f(ctx, code, start, end)
}

// StaticUniverse is a fixed stock list
type StaticUniverse []Stock

// ListUniverse returns a copy of the list
func (u StaticUniverse) ListUniverse(context.Context) []Stock {
	out := make([]Stock, len(u))
	copy(out, u)
	return out
}
