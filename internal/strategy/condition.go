package strategy

import (
	"fmt"

	"github.com/wonny/screener/internal/contracts"
)

// LimitUpPct is the daily move treated as a limit-up close
// 10% 상한가에서 반올림 오차를 허용
const LimitUpPct = 9.8

// Condition is one date-relative predicate of a strategy.
// The set of variants is closed: LimitUp, PctChangeGreaterThan,
// PctChangeLessThan and VolumeRatio.
type Condition interface {
	// Offsets lists every trading-day offset the condition reads
	Offsets() []int
	String() string
	sealed()
}

// LimitUp holds when the bar at base+Offset closed limit-up
type LimitUp struct {
	Offset int
}

// PctChangeGreaterThan holds when PctChange at base+Offset > Threshold
type PctChangeGreaterThan struct {
	Offset    int
	Threshold float64
}

// PctChangeLessThan holds when PctChange at base+Offset < Threshold
type PctChangeLessThan struct {
	Offset    int
	Threshold float64
}

// VolumeRatio holds when Volume(base+OffsetA) / Volume(base+OffsetB) > MinRatio
type VolumeRatio struct {
	OffsetA  int
	OffsetB  int
	MinRatio float64
}

func (LimitUp) sealed()              {}
func (PctChangeGreaterThan) sealed() {}
func (PctChangeLessThan) sealed()    {}
func (VolumeRatio) sealed()          {}

func (c LimitUp) Offsets() []int              { return []int{c.Offset} }
func (c PctChangeGreaterThan) Offsets() []int { return []int{c.Offset} }
func (c PctChangeLessThan) Offsets() []int    { return []int{c.Offset} }
func (c VolumeRatio) Offsets() []int          { return []int{c.OffsetA, c.OffsetB} }

func (c LimitUp) String() string {
	return fmt.Sprintf("limit_up(T%+d)", c.Offset)
}

func (c PctChangeGreaterThan) String() string {
	return fmt.Sprintf("pct_change(T%+d) > %g", c.Offset, c.Threshold)
}

func (c PctChangeLessThan) String() string {
	return fmt.Sprintf("pct_change(T%+d) < %g", c.Offset, c.Threshold)
}

func (c VolumeRatio) String() string {
	return fmt.Sprintf("volume(T%+d)/volume(T%+d) > %g", c.OffsetA, c.OffsetB, c.MinRatio)
}

// Evaluate checks one condition at base. Unresolvable dates, missing bars
// and zero volume denominators evaluate to false.
func Evaluate(c Condition, base contracts.Date, series contracts.BarSeries, index contracts.DateIndex) bool {
	switch c := c.(type) {
	case LimitUp:
		bar, ok := barAt(base, c.Offset, series, index)
		return ok && bar.PctChange >= LimitUpPct

	case PctChangeGreaterThan:
		bar, ok := barAt(base, c.Offset, series, index)
		return ok && bar.PctChange > c.Threshold

	case PctChangeLessThan:
		bar, ok := barAt(base, c.Offset, series, index)
		return ok && bar.PctChange < c.Threshold

	case VolumeRatio:
		a, ok := barAt(base, c.OffsetA, series, index)
		if !ok {
			return false
		}
		b, ok := barAt(base, c.OffsetB, series, index)
		if !ok || b.Volume == 0 {
			return false
		}
		return a.Volume/b.Volume > c.MinRatio

	default:
		return false
	}
}

// EvaluateAll ANDs conditions in declared order, stopping at the first false.
// An empty set is true.
func EvaluateAll(conditions []Condition, base contracts.Date, series contracts.BarSeries, index contracts.DateIndex) bool {
	for _, c := range conditions {
		if !Evaluate(c, base, series, index) {
			return false
		}
	}
	return true
}

// HasLimitUp reports whether any condition requires a limit-up day
func HasLimitUp(conditions []Condition) bool {
	for _, c := range conditions {
		if _, ok := c.(LimitUp); ok {
			return true
		}
	}
	return false
}

// MaxBackwardOffset is the largest |offset| over all negative offsets, 0 if none
func MaxBackwardOffset(conditions []Condition) int {
	max := 0
	for _, c := range conditions {
		for _, off := range c.Offsets() {
			if off < 0 && -off > max {
				max = -off
			}
		}
	}
	return max
}

func barAt(base contracts.Date, offset int, series contracts.BarSeries, index contracts.DateIndex) (contracts.Bar, bool) {
	date, ok := Resolve(base, offset, series)
	if !ok {
		return contracts.Bar{}, false
	}
	bar, ok := index[date]
	return bar, ok
}
