package calculator

import (
	"math"

	"StockSentinel/internal/model"
)

// Range52Week scans the most recent 252 trading days and returns the high
// and low. Uses the whole series when shorter.
func Range52Week(bars []model.OHLCV) (high, low float64) {
	if len(bars) == 0 {
		return 0, 0
	}
	start := len(bars) - 252
	if start < 0 {
		start = 0
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := start; i < len(bars); i++ {
		if bars[i].High > high {
			high = bars[i].High
		}
		if bars[i].Low < low {
			low = bars[i].Low
		}
	}
	return high, low
}
