package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earnvol/dboundary/marketdata"
)

// rangeBars builds n identical bars whose high and low sit a log half-range
// above and below the level, with open and close pinned at the level.
func rangeBars(n int, level, halfRangeLog float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, n)
	for i := range bars {
		bars[i] = marketdata.Bar{
			Date:  "2024-01-02",
			Open:  level,
			High:  level * math.Exp(halfRangeLog),
			Low:   level * math.Exp(-halfRangeLog),
			Close: level,
		}
	}
	return bars
}

// gapBars builds bars that are flat intraday but gap the open away from the
// prior close by alternating +/- gapLog.
func gapBars(n int, level, gapLog float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, n)
	price := level
	for i := range bars {
		if i > 0 {
			sign := 1.0
			if i%2 == 0 {
				sign = -1
			}
			price *= math.Exp(sign * gapLog)
		}
		bars[i] = marketdata.Bar{Date: "2024-01-02", Open: price, High: price, Low: price, Close: price}
	}
	return bars
}

func TestEstimatorsOnQuietTape(t *testing.T) {
	bars := rangeBars(126, 100, 0)
	assert.Empty(t, CalculateYangZhangVolatility(bars))
	assert.Empty(t, CalculateRogersSatchellVolatility(bars))
	assert.Empty(t, CalculateParkinsonsVolatilities(bars))
	assert.Empty(t, CalculateGarmanKlassVolatilities(bars))
}

func TestParkinsonKnownRange(t *testing.T) {
	// ln(H/L) = 0.02 every day: daily vol 0.02 / (2 sqrt(ln 2)), annualized
	bars := rangeBars(126, 100, 0.01)
	want := 0.02 / (2 * math.Sqrt(math.Ln2)) * math.Sqrt(252)

	got := CalculateParkinsonsVolatilities(bars)
	require.Len(t, got, 4, "full history fills every window")
	for _, period := range []string{"1w", "1m", "3m", "6m"} {
		assert.InDelta(t, want, got[period], 1e-12, period)
	}
	assert.InDelta(t, 0.19067, got["6m"], 1e-4)
}

func TestGarmanKlassKnownRange(t *testing.T) {
	// open == close kills the close-open term: variance 0.5 ln(H/L)^2
	bars := rangeBars(126, 100, 0.01)
	want := math.Sqrt(0.5 * 0.02 * 0.02 * 252)

	got := CalculateGarmanKlassVolatilities(bars)
	require.Len(t, got, 4)
	assert.InDelta(t, want, got["6m"], 1e-12)
	assert.InDelta(t, 0.22450, got["6m"], 1e-4)
}

func TestRogersSatchellKnownRange(t *testing.T) {
	// with open = close at the geometric mid the daily term is 2 h^2
	bars := rangeBars(126, 100, 0.01)
	want := math.Sqrt(2 * 0.01 * 0.01 * 252)

	got := CalculateRogersSatchellVolatility(bars)
	require.Len(t, got, 4)
	assert.InDelta(t, want, got["3m"], 1e-12)
}

func TestYangZhangGapVariance(t *testing.T) {
	// flat sessions, alternating overnight gaps: only the overnight term
	// survives, with 20 returns of magnitude 0.01 and zero mean in the 1m
	// window
	bars := gapBars(126, 100, 0.01)

	got := CalculateYangZhangVolatility(bars)
	require.Contains(t, got, "1m")
	want := math.Sqrt(20.0 / 19.0 * 0.0001 * 252)
	assert.InDelta(t, want, got["1m"], 1e-12)
}

func TestYangZhangMixesIntradayAndGaps(t *testing.T) {
	// ranges plus gaps must read higher than ranges alone
	ranged := CalculateYangZhangVolatility(rangeBars(126, 100, 0.01))

	mixed := rangeBars(126, 100, 0.01)
	price := 100.0
	for i := 1; i < len(mixed); i++ {
		sign := 1.0
		if i%2 == 0 {
			sign = -1
		}
		price *= math.Exp(sign * 0.015)
		mixed[i].Open = price
		mixed[i].High = price * math.Exp(0.01)
		mixed[i].Low = price * math.Exp(-0.01)
		mixed[i].Close = price
	}
	withGaps := CalculateYangZhangVolatility(mixed)

	require.Contains(t, ranged, "3m")
	require.Contains(t, withGaps, "3m")
	assert.Greater(t, withGaps["3m"], ranged["3m"])
}

func TestWindowsRequireHistory(t *testing.T) {
	bars := rangeBars(30, 100, 0.01)

	got := CalculateParkinsonsVolatilities(bars)
	assert.Contains(t, got, "1w")
	assert.Contains(t, got, "1m")
	assert.NotContains(t, got, "3m")
	assert.NotContains(t, got, "6m")

	assert.Empty(t, CalculateGarmanKlassVolatilities(rangeBars(4, 100, 0.01)))
}

func TestSampleVariance(t *testing.T) {
	assert.Zero(t, sampleVariance(nil))
	assert.Zero(t, sampleVariance([]float64{0.5}))
	// {1, 2, 3}: mean 2, squared deviations 1+0+1, divisor 2
	assert.InDelta(t, 1.0, sampleVariance([]float64{1, 2, 3}), 1e-15)
}
