package strategy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/screener/internal/contracts"
)

func TestEvaluate(t *testing.T) {
	series := scenario600000()
	index := series.Index()
	base := d("2024-01-15")

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"limit up at T-3", LimitUp{Offset: -3}, true},
		{"no limit up at T-2", LimitUp{Offset: -2}, false},
		{"limit up out of range", LimitUp{Offset: -4}, false},
		{"T-2 not up", PctChangeGreaterThan{Offset: -2, Threshold: 0}, false},
		{"T-2 down", PctChangeLessThan{Offset: -2, Threshold: 0}, true},
		{"T-1 down", PctChangeLessThan{Offset: -1, Threshold: 0}, true},
		{"T up", PctChangeGreaterThan{Offset: 0, Threshold: 0}, true},
		{"T not up by 2", PctChangeGreaterThan{Offset: 0, Threshold: 2}, false},
		{"T-1 vs T-2 volume", VolumeRatio{OffsetA: -1, OffsetB: -2, MinRatio: 1}, true},
		{"T vs T-2 volume", VolumeRatio{OffsetA: 0, OffsetB: -2, MinRatio: 1}, true},
		{"T vs T-2 volume not 3x", VolumeRatio{OffsetA: 0, OffsetB: -2, MinRatio: 3}, false},
		{"volume future offset", VolumeRatio{OffsetA: 1, OffsetB: 0, MinRatio: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.cond, base, series, index))
		})
	}
}

func TestEvaluate_LimitUpBoundary(t *testing.T) {
	series := contracts.NewBarSeries([]contracts.Bar{
		{TradeDate: d("2024-01-10"), PctChange: 9.8},
		{TradeDate: d("2024-01-11"), PctChange: 9.79},
	})
	index := series.Index()

	assert.True(t, Evaluate(LimitUp{}, d("2024-01-10"), series, index))
	assert.False(t, Evaluate(LimitUp{}, d("2024-01-11"), series, index))
}

func TestEvaluate_ZeroVolumeDenominator(t *testing.T) {
	series := contracts.NewBarSeries([]contracts.Bar{
		{TradeDate: d("2024-01-10"), Volume: 0},
		{TradeDate: d("2024-01-11"), Volume: 5000},
	})
	index := series.Index()

	for _, ratio := range []float64{-1, 0, 1, 1e9} {
		assert.NotPanics(t, func() {
			assert.False(t, Evaluate(VolumeRatio{OffsetA: 0, OffsetB: -1, MinRatio: ratio}, d("2024-01-11"), series, index))
		})
	}
	// both zero
	assert.False(t, Evaluate(VolumeRatio{OffsetA: 0, OffsetB: 0, MinRatio: 0}, d("2024-01-10"), series, index))
}

func TestEvaluate_GreaterAndLessNeverBothTrue(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		pct := float64(rng.Intn(41) - 20)
		threshold := float64(rng.Intn(41) - 20)
		series := contracts.NewBarSeries([]contracts.Bar{{TradeDate: d("2024-01-10"), PctChange: pct}})
		index := series.Index()
		base := d("2024-01-10")

		gt := Evaluate(PctChangeGreaterThan{Threshold: threshold}, base, series, index)
		lt := Evaluate(PctChangeLessThan{Threshold: threshold}, base, series, index)
		assert.False(t, gt && lt, "pct=%v threshold=%v", pct, threshold)
	}
}

type unknownCondition struct{ LimitUp }

func TestEvaluate_UnknownVariantIsFalse(t *testing.T) {
	series := scenario600000()
	assert.False(t, Evaluate(unknownCondition{}, d("2024-01-10"), series, series.Index()))
}

func TestEvaluateAll(t *testing.T) {
	series := scenario600000()
	index := series.Index()
	base := d("2024-01-15")

	assert.True(t, EvaluateAll(nil, base, series, index))
	assert.True(t, EvaluateAll([]Condition{LimitUp{Offset: -3}, PctChangeGreaterThan{}}, base, series, index))
	assert.False(t, EvaluateAll([]Condition{LimitUp{Offset: -3}, LimitUp{Offset: 0}}, base, series, index))
}

func TestMaxBackwardOffset(t *testing.T) {
	assert.Equal(t, 0, MaxBackwardOffset(nil))
	assert.Equal(t, 0, MaxBackwardOffset([]Condition{LimitUp{Offset: 2}}))
	assert.Equal(t, 5, MaxBackwardOffset([]Condition{
		LimitUp{Offset: -3},
		VolumeRatio{OffsetA: 0, OffsetB: -5, MinRatio: 1},
		PctChangeLessThan{Offset: -1},
	}))
}

func TestHasLimitUp(t *testing.T) {
	assert.False(t, HasLimitUp([]Condition{PctChangeGreaterThan{}}))
	assert.True(t, HasLimitUp([]Condition{PctChangeGreaterThan{}, LimitUp{Offset: -1}}))
}

func TestConditionString(t *testing.T) {
	assert.Equal(t, "limit_up(T-3)", LimitUp{Offset: -3}.String())
	assert.Equal(t, "pct_change(T+0) > 0", PctChangeGreaterThan{}.String())
	assert.Equal(t, "volume(T-1)/volume(T-2) > 1.5", VolumeRatio{OffsetA: -1, OffsetB: -2, MinRatio: 1.5}.String())
}
