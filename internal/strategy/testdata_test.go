package strategy

import (
	"github.com/wonny/screener/internal/contracts"
)

var d = contracts.MustParseDate

// scenario600000 is the reference series: limit-up on 01-10, two pullback
// days on rising volume, then a breakout on 01-15 (a Monday).
func scenario600000() contracts.BarSeries {
	return contracts.NewBarSeries([]contracts.Bar{
		{TradeDate: d("2024-01-10"), Close: 11.0, PctChange: 9.9, Volume: 800},
		{TradeDate: d("2024-01-11"), Close: 10.89, PctChange: -1.0, Volume: 1000},
		{TradeDate: d("2024-01-12"), Close: 10.84, PctChange: -0.5, Volume: 1500},
		{TradeDate: d("2024-01-15"), Close: 11.06, PctChange: 2.0, Volume: 3000},
	})
}

func seriesOf(dates ...string) contracts.BarSeries {
	bars := make([]contracts.Bar, len(dates))
	for i, s := range dates {
		bars[i] = contracts.Bar{TradeDate: d(s), Close: float64(10 + i), PctChange: 1, Volume: 100}
	}
	return contracts.NewBarSeries(bars)
}
