package universe

import (
	"context"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/logger"
)

// Exclusion reasons
const (
	ReasonInvalidCode = "invalid_code" // B shares, funds, malformed codes
	ReasonST          = "st"
	ReasonDelisting   = "delisting"
	ReasonSTAR        = "star_board"
	ReasonChiNext     = "chinext_board"
	ReasonBeijing     = "beijing_board"
)

// Builder applies a strategy's exclusion rules to the listed stocks
// ⭐ SSOT: 종목 제외 규칙은 여기서만
type Builder struct {
	lister contracts.UniverseLister
	logger *logger.Logger
}

// NewBuilder creates a new universe builder
func NewBuilder(lister contracts.UniverseLister, log *logger.Logger) *Builder {
	return &Builder{
		lister: lister,
		logger: log.WithComponent("universe"),
	}
}

// Build lists stocks and filters them; a failing lister yields an empty universe
func (b *Builder) Build(ctx context.Context, rules contracts.ExcludeRules, date contracts.Date) *contracts.Universe {
	stocks := b.lister.ListUniverse(ctx)
	universe := Filter(stocks, rules, date)

	b.logger.WithFields(map[string]interface{}{
		"listed":   len(stocks),
		"kept":     universe.Count(),
		"excluded": len(universe.Excluded),
	}).Info("Universe built")

	return universe
}

// Filter keeps the stocks no rule excludes, recording the reason for the rest.
// Duplicate codes keep their first occurrence.
func Filter(stocks []contracts.Stock, rules contracts.ExcludeRules, date contracts.Date) *contracts.Universe {
	universe := &contracts.Universe{
		Date:       date,
		Stocks:     make([]contracts.Stock, 0, len(stocks)),
		Excluded:   make(map[string]string),
		TotalCount: len(stocks),
	}

	seen := make(map[string]struct{}, len(stocks))
	for _, stock := range stocks {
		if _, dup := seen[stock.Code]; dup {
			continue
		}
		seen[stock.Code] = struct{}{}

		if reason := CheckExclusion(stock, rules); reason != "" {
			universe.Excluded[stock.Code] = reason
			continue
		}
		universe.Stocks = append(universe.Stocks, stock)
	}

	return universe
}

// CheckExclusion returns why a stock is excluded, or "" to keep it
func CheckExclusion(stock contracts.Stock, rules contracts.ExcludeRules) string {
	// 우선순위 순서로 체크

	// 1. 코드 형식 / 미지원 시장
	board := stock.Board()
	if board == contracts.BoardUnknown {
		return ReasonInvalidCode
	}

	// 2. 상태 (ST, 退市)
	if rules.Delist && stock.IsDelisting() {
		return ReasonDelisting
	}
	if rules.ST && stock.IsST() {
		return ReasonST
	}

	// 3. 시장 구분
	switch board {
	case contracts.BoardSTAR:
		if rules.STAR {
			return ReasonSTAR
		}
	case contracts.BoardChiNext:
		if rules.ChiNext {
			return ReasonChiNext
		}
	case contracts.BoardBeijing:
		if rules.Beijing {
			return ReasonBeijing
		}
	}

	return ""
}
