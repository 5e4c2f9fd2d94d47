package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBarSeries_SortsAndDedups(t *testing.T) {
	bars := []Bar{
		{TradeDate: MustParseDate("2024-01-12"), Close: 10.5},
		{TradeDate: MustParseDate("2024-01-10"), Close: 10.0},
		{TradeDate: MustParseDate("2024-01-12"), Close: 99.0}, // duplicate, dropped
		{TradeDate: MustParseDate("2024-01-11"), Close: 10.2},
	}

	series := NewBarSeries(bars)
	require.Equal(t, 3, series.Len())
	assert.Equal(t, []Date{
		MustParseDate("2024-01-10"),
		MustParseDate("2024-01-11"),
		MustParseDate("2024-01-12"),
	}, series.Dates())
	assert.Equal(t, 10.5, series[2].Close)

	// input untouched
	assert.Equal(t, MustParseDate("2024-01-12"), bars[0].TradeDate)
}

func TestNewBarSeries_KeepsReportedZeros(t *testing.T) {
	// a flat day on adjusted closes: the provider says 0% although closes differ
	series := NewBarSeries([]Bar{
		{TradeDate: MustParseDate("2024-01-10"), Close: 10, High: 11, Low: 10, PctChange: 1},
		{TradeDate: MustParseDate("2024-01-11"), Close: 10.3, High: 10.3, Low: 10.3, PctChange: 0},
	})

	assert.Equal(t, 0.0, series[1].PctChange)
	assert.Equal(t, 0.0, series[1].PriceChange)
	assert.Equal(t, 0.0, series[0].Amplitude)
}

func TestNewDerivedBarSeries(t *testing.T) {
	bars := []Bar{
		{TradeDate: MustParseDate("2024-01-10"), Close: 10, High: 11, Low: 10},
		{TradeDate: MustParseDate("2024-01-11"), Close: 11, High: 11, Low: 0, PctChange: 7},
		{TradeDate: MustParseDate("2024-01-12"), Close: 11, PctChange: 0, PriceChange: 0.5},
	}

	series := NewDerivedBarSeries(bars, DeriveAmplitude|DerivePriceChange)

	assert.InDelta(t, 10.0, series[0].Amplitude, 1e-9)
	assert.Equal(t, 0.0, series[0].PriceChange)
	assert.Equal(t, 0.0, series[1].Amplitude) // low = 0
	assert.InDelta(t, 1.0, series[1].PriceChange, 1e-9)
	assert.Equal(t, 0.0, series[2].PriceChange)

	// not requested: reported values stay
	assert.Equal(t, 7.0, series[1].PctChange)
	assert.Equal(t, 0.0, series[2].PctChange)

	series = NewDerivedBarSeries(bars, DerivePctChange)
	assert.Equal(t, 0.0, series[0].PctChange)
	assert.InDelta(t, 10.0, series[1].PctChange, 1e-9)
	assert.Equal(t, 0.0, series[2].PctChange)
	assert.Equal(t, 0.5, series[2].PriceChange)
}

func TestNewBarSeries_Empty(t *testing.T) {
	series := NewBarSeries(nil)
	assert.Equal(t, 0, series.Len())

	_, ok := series.Last()
	assert.False(t, ok)
	_, ok = series.First()
	assert.False(t, ok)
}

func TestBarSeries_IndexAndBetween(t *testing.T) {
	series := NewBarSeries([]Bar{
		{TradeDate: MustParseDate("2024-01-10"), Close: 1},
		{TradeDate: MustParseDate("2024-01-11"), Close: 2},
		{TradeDate: MustParseDate("2024-01-15"), Close: 3},
	})

	index := series.Index()
	assert.Len(t, index, 3)
	assert.Equal(t, 2.0, index[MustParseDate("2024-01-11")].Close)

	window := series.Between(MustParseDate("2024-01-11"), MustParseDate("2024-01-14"))
	require.Equal(t, 1, window.Len())
	assert.Equal(t, 2.0, window[0].Close)

	assert.Nil(t, series.Between(MustParseDate("2024-02-01"), MustParseDate("2024-02-05")))
}

func TestBarSeries_AnyPctChangeAtLeast(t *testing.T) {
	series := BarSeries{{PctChange: 3}, {PctChange: 9.8}}
	assert.True(t, series.AnyPctChangeAtLeast(9.8))
	assert.False(t, series.AnyPctChangeAtLeast(9.9))
}
