package contracts

import "sort"

// Bar is one trading day of one stock
type Bar struct {
	TradeDate   Date    `json:"trade_date"`
	Open        float64 `json:"open"`
	Close       float64 `json:"close"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Volume      float64 `json:"volume"`       // 거래량 (주, shares)
	Amount      float64 `json:"amount"`       // 거래대금
	Amplitude   float64 `json:"amplitude"`    // (high-low)/low*100
	PctChange   float64 `json:"pct_change"`   // 등락률 %
	PriceChange float64 `json:"price_change"` // close - prev close
	Turnover    float64 `json:"turnover"`     // 회전율 %
}

// BarSeries is one stock's bars, strictly increasing by TradeDate
// Read-only after NewBarSeries returns.
type BarSeries []Bar

// DateIndex maps a trade date to its bar
type DateIndex map[Date]Bar

// Derive selects bar fields a source does not supply
type Derive uint8

const (
	DeriveAmplitude   Derive = 1 << iota // (high-low)/low*100
	DerivePriceChange                    // close - prev close, 0 for the first bar
	DerivePctChange                      // (close-prev)/prev*100, 0 for the first bar
)

// NewBarSeries sorts bars by date and drops duplicate dates (first wins).
// Field values are kept as the source reported them, zero included.
func NewBarSeries(bars []Bar) BarSeries {
	return NewDerivedBarSeries(bars, 0)
}

// NewDerivedBarSeries is NewBarSeries for sources that omit some fields:
// every field named in derive is computed for every bar.
func NewDerivedBarSeries(bars []Bar, derive Derive) BarSeries {
	if len(bars) == 0 {
		return nil
	}

	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TradeDate < sorted[j].TradeDate
	})

	series := make(BarSeries, 0, len(sorted))
	for _, bar := range sorted {
		if n := len(series); n > 0 && series[n-1].TradeDate == bar.TradeDate {
			continue
		}
		series = append(series, bar)
	}

	if derive == 0 {
		return series
	}

	for i := range series {
		bar := &series[i]
		if derive&DeriveAmplitude != 0 {
			bar.Amplitude = 0
			if bar.Low > 0 {
				bar.Amplitude = (bar.High - bar.Low) / bar.Low * 100
			}
		}

		var prevClose float64
		if i > 0 {
			prevClose = series[i-1].Close
		}
		if derive&DerivePriceChange != 0 {
			bar.PriceChange = 0
			if i > 0 {
				bar.PriceChange = bar.Close - prevClose
			}
		}
		if derive&DerivePctChange != 0 {
			bar.PctChange = 0
			if prevClose > 0 {
				bar.PctChange = (bar.Close - prevClose) / prevClose * 100
			}
		}
	}

	return series
}

// Len returns the number of bars
func (s BarSeries) Len() int { return len(s) }

// First returns the oldest bar
func (s BarSeries) First() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[0], true
}

// Last returns the most recent bar
func (s BarSeries) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// Dates returns the trade dates in ascending order
func (s BarSeries) Dates() []Date {
	dates := make([]Date, len(s))
	for i, bar := range s {
		dates[i] = bar.TradeDate
	}
	return dates
}

// Index builds a date -> bar map in one pass
func (s BarSeries) Index() DateIndex {
	index := make(DateIndex, len(s))
	for _, bar := range s {
		index[bar.TradeDate] = bar
	}
	return index
}

// Between returns the bars with start <= TradeDate <= end
func (s BarSeries) Between(start, end Date) BarSeries {
	lo := sort.Search(len(s), func(i int) bool { return s[i].TradeDate >= start })
	hi := sort.Search(len(s), func(i int) bool { return s[i].TradeDate > end })
	if lo >= hi {
		return nil
	}
	return s[lo:hi]
}

// AnyPctChangeAtLeast reports whether some bar moved by at least pct
func (s BarSeries) AnyPctChangeAtLeast(pct float64) bool {
	for _, bar := range s {
		if bar.PctChange >= pct {
			return true
		}
	}
	return false
}
