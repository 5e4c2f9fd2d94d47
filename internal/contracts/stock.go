package contracts

import "strings"

// Stock is one listed entity
type Stock struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Board is the listing segment of a stock code
type Board string

const (
	BoardMainSH  Board = "main_sh" // 60xxxx
	BoardMainSZ  Board = "main_sz" // 00xxxx
	BoardSTAR    Board = "star"    // 688xxx, 689xxx (科创板)
	BoardChiNext Board = "chinext" // 300xxx, 301xxx (创业板)
	BoardBeijing Board = "beijing" // 8xxxxx, 4xxxxx, 92xxxx (北交所)
	BoardUnknown Board = "unknown"
)

// BoardOf classifies a 6 digit code by prefix
func BoardOf(code string) Board {
	switch {
	case len(code) != 6:
		return BoardUnknown
	case strings.HasPrefix(code, "688"), strings.HasPrefix(code, "689"):
		return BoardSTAR
	case strings.HasPrefix(code, "60"):
		return BoardMainSH
	case strings.HasPrefix(code, "300"), strings.HasPrefix(code, "301"):
		return BoardChiNext
	case strings.HasPrefix(code, "00"):
		return BoardMainSZ
	case strings.HasPrefix(code, "8"), strings.HasPrefix(code, "4"), strings.HasPrefix(code, "92"):
		return BoardBeijing
	default:
		return BoardUnknown
	}
}

// Board returns the listing segment
func (s Stock) Board() Board {
	return BoardOf(s.Code)
}

// IsMainBoard reports whether the stock trades on a main board
func (s Stock) IsMainBoard() bool {
	b := s.Board()
	return b == BoardMainSH || b == BoardMainSZ
}

// IsST reports a special-treatment marker (ST, *ST) in the name
func (s Stock) IsST() bool {
	return strings.Contains(strings.ToUpper(s.Name), "ST")
}

// IsDelisting reports a delisting marker (退) in the name
func (s Stock) IsDelisting() bool {
	return strings.Contains(s.Name, "退")
}

// Exchange returns the exchange prefix used by quote vendors: sh, sz or bj
func (s Stock) Exchange() string {
	switch s.Board() {
	case BoardMainSH, BoardSTAR:
		return "sh"
	case BoardBeijing:
		return "bj"
	default:
		return "sz"
	}
}
