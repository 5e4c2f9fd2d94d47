package strategy

import (
	"sort"

	"github.com/wonny/screener/internal/contracts"
)

// Resolve moves base by offset trading days within series.
// The series must come from contracts.NewBarSeries (ascending, distinct dates).
//
// offset 0 returns base without a lookup. Otherwise base must be an exact
// trade date of the series and the target position must stay in range; any
// miss returns false.
func Resolve(base contracts.Date, offset int, series contracts.BarSeries) (contracts.Date, bool) {
	if offset == 0 {
		return base, true
	}

	pos, ok := Position(base, series)
	if !ok {
		return 0, false
	}

	target := pos + offset
	if target < 0 || target >= len(series) {
		return 0, false
	}
	return series[target].TradeDate, true
}

// Position returns the index of date in series by binary search
func Position(date contracts.Date, series contracts.BarSeries) (int, bool) {
	i := sort.Search(len(series), func(i int) bool {
		return series[i].TradeDate >= date
	})
	if i < len(series) && series[i].TradeDate == date {
		return i, true
	}
	return 0, false
}
