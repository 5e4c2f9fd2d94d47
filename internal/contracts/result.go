package contracts

import "time"

// MatchResult is one stock that satisfied a strategy
// ⭐ SSOT: 백테스트 결과 레코드 (생성 후 불변)
type MatchResult struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	MatchDate    Date    `json:"match_date"`    // 조건을 만족한 기준일
	MatchPrice   float64 `json:"match_price"`   // 기준일 종가
	CurrentPrice float64 `json:"current_price"` // 조회 구간 마지막 종가
}

// ReturnPct is the move from match price to current price in percent
func (r MatchResult) ReturnPct() float64 {
	if r.MatchPrice == 0 {
		return 0
	}
	return (r.CurrentPrice - r.MatchPrice) / r.MatchPrice * 100
}

// Less orders results by (MatchDate, Code)
func (r MatchResult) Less(other MatchResult) bool {
	if r.MatchDate != other.MatchDate {
		return r.MatchDate < other.MatchDate
	}
	return r.Code < other.Code
}

// RunMeta is the header record of a result file
type RunMeta struct {
	RunName      string    `json:"run_name"`
	StrategyName string    `json:"strategy_name"`
	RunID        string    `json:"run_id"`
	RunAt        time.Time `json:"run_at"`
	StrategyHash string    `json:"strategy_hash,omitempty"`
	Count        *int      `json:"count,omitempty"` // final rewrite only
}
