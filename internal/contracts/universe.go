package contracts

// Universe is the filtered stock list of one run
// ⭐ SSOT: 제외 규칙 적용 후 종목 목록
type Universe struct {
	Date       Date              `json:"date"`
	Stocks     []Stock           `json:"stocks"`                // 스캔 대상
	Excluded   map[string]string `json:"excluded"`              // 제외 종목: 사유
	TotalCount int               `json:"total_count,omitempty"` // 전체 종목 수
}

// Contains checks if a stock code is in the universe
func (u *Universe) Contains(code string) bool {
	for _, stock := range u.Stocks {
		if stock.Code == code {
			return true
		}
	}
	return false
}

// IsExcluded checks if a stock code is excluded with reason
func (u *Universe) IsExcluded(code string) (bool, string) {
	reason, exists := u.Excluded[code]
	return exists, reason
}

// Count returns the number of stocks to scan
func (u *Universe) Count() int {
	return len(u.Stocks)
}

// ExcludeRules are the per-strategy universe filters
type ExcludeRules struct {
	ST      bool `json:"st" yaml:"st"`         // ST, *ST
	Delist  bool `json:"delist" yaml:"delist"` // 退市
	STAR    bool `json:"kcb" yaml:"kcb"`       // 科创板 688
	ChiNext bool `json:"cyb" yaml:"cyb"`       // 创业板 300/301
	Beijing bool `json:"bjs" yaml:"bjs"`       // 北交所
}

// ExcludeAll turns every filter on
func ExcludeAll() ExcludeRules {
	return ExcludeRules{ST: true, Delist: true, STAR: true, ChiNext: true, Beijing: true}
}
