package backtest

import (
	"math"
	"sort"

	"github.com/wonny/screener/internal/contracts"
)

// Summary aggregates the returns of matched stocks since their match date
type Summary struct {
	Count       int     `json:"count"`
	Winners     int     `json:"winners"`  // current price above match price
	Losers      int     `json:"losers"`   // current price below match price
	WinRate     float64 `json:"win_rate"` // 0..1
	AvgReturn   float64 `json:"avg_return_pct"`
	BestCode    string  `json:"best_code,omitempty"`
	BestReturn  float64 `json:"best_return_pct"`
	WorstCode   string  `json:"worst_code,omitempty"`
	WorstReturn float64 `json:"worst_return_pct"`
	Volatility  float64 `json:"volatility_pct"` // std dev of returns
}

// Summarize computes the summary of a result list
func Summarize(matches []contracts.MatchResult) Summary {
	s := Summary{Count: len(matches)}
	if len(matches) == 0 {
		return s
	}

	returns := make([]float64, 0, len(matches))
	sum := 0.0
	for i, m := range matches {
		r := m.ReturnPct()
		returns = append(returns, r)
		sum += r

		switch {
		case m.CurrentPrice > m.MatchPrice:
			s.Winners++
		case m.CurrentPrice < m.MatchPrice:
			s.Losers++
		}

		if i == 0 || r > s.BestReturn {
			s.BestReturn = r
			s.BestCode = m.Code
		}
		if i == 0 || r < s.WorstReturn {
			s.WorstReturn = r
			s.WorstCode = m.Code
		}
	}

	s.AvgReturn = sum / float64(len(matches))
	s.WinRate = float64(s.Winners) / float64(len(matches))
	s.Volatility = stdDev(returns)

	return s
}

// stdDev calculates the population standard deviation
func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	// Mean
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	// Variance
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
}

// RankByReturn returns a copy ordered by return, best first; ties by code
func RankByReturn(matches []contracts.MatchResult) []contracts.MatchResult {
	out := make([]contracts.MatchResult, len(matches))
	copy(out, matches)
	sortByReturn(out)
	return out
}

func sortByReturn(matches []contracts.MatchResult) {
	sort.SliceStable(matches, func(i, j int) bool {
		ri, rj := matches[i].ReturnPct(), matches[j].ReturnPct()
		if ri != rj {
			return ri > rj
		}
		return matches[i].Code < matches[j].Code
	})
}
