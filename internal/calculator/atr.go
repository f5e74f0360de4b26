package calculator

import (
	"math"

	"StockSentinel/internal/model"
)

// trueRange computes TR for bar i (i >= 1):
// max(high-low, |high-prevClose|, |low-prevClose|).
func trueRange(bars []model.OHLCV, i int) float64 {
	hl := bars[i].High - bars[i].Low
	hc := math.Abs(bars[i].High - bars[i-1].Close)
	lc := math.Abs(bars[i].Low - bars[i-1].Close)
	return math.Max(hl, math.Max(hc, lc))
}

// ATR computes the average true range as the mean of the last `period` true
// ranges. Uses as many as are available when the series is short; returns 0
// for fewer than two bars.
func ATR(bars []model.OHLCV, period int) float64 {
	if period <= 0 || len(bars) < 2 {
		return 0
	}
	n := len(bars) - 1 // number of TRs available
	if n > period {
		n = period
	}
	sum := 0.0
	for i := len(bars) - n; i < len(bars); i++ {
		sum += trueRange(bars, i)
	}
	return sum / float64(n)
}
