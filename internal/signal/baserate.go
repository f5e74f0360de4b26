package signal

import "StockSentinel/internal/model"

// maxBaseRateWindows caps how many historical windows feed a base rate.
const maxBaseRateWindows = 120

// neutralBaseRate is used when the series has no complete window to sample.
const neutralBaseRate = 0.5

// upsideBaseRate measures how often the series actually gained targetPct
// within horizonDays. Only windows with a full lookahead count; the most
// recent eligible windows are used, capped at maxBaseRateWindows.
func upsideBaseRate(bars []model.OHLCV, targetPct float64, horizonDays int) float64 {
	return baseRate(bars, horizonDays, func(entry float64, window []model.OHLCV) bool {
		threshold := entry * (1 + targetPct/100)
		for _, b := range window {
			if b.High >= threshold {
				return true
			}
		}
		return false
	})
}

// downsideBaseRate is the symmetric measure against the lows.
func downsideBaseRate(bars []model.OHLCV, targetPct float64, horizonDays int) float64 {
	return baseRate(bars, horizonDays, func(entry float64, window []model.OHLCV) bool {
		threshold := entry * (1 - targetPct/100)
		for _, b := range window {
			if b.Low <= threshold {
				return true
			}
		}
		return false
	})
}

func baseRate(bars []model.OHLCV, horizonDays int, reached func(entry float64, window []model.OHLCV) bool) float64 {
	// Entry at bar i, lookahead bars i+1 .. i+horizonDays.
	lastStart := len(bars) - horizonDays - 1
	if lastStart < 0 {
		return neutralBaseRate
	}
	firstStart := lastStart - maxBaseRateWindows + 1
	if firstStart < 0 {
		firstStart = 0
	}

	hits, total := 0, 0
	for i := firstStart; i <= lastStart; i++ {
		total++
		if reached(bars[i].Close, bars[i+1:i+1+horizonDays]) {
			hits++
		}
	}
	if total == 0 {
		return neutralBaseRate
	}
	return float64(hits) / float64(total)
}
