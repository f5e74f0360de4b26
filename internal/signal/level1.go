package signal

import (
	"StockSentinel/internal/model"
)

// Factor weights shared by the upside and downside reach models.
const (
	weightMomentum = 0.25
	weightTrend    = 0.30
	weightBreakout = 0.20
	weightVolume   = 0.25
)

// Blend between the factor score and the historical base rate.
const (
	factorWeight   = 0.6
	baseRateWeight = 0.4
)

// Level1 estimates the probability of the close gaining at least the target
// percentage within horizonDays trading days. The target scales with recent
// volatility: 2x the ATR as a percentage of price, clamped to [5, 30].
func Level1(bars []model.OHLCV, ind *model.IndicatorBundle, horizonDays int) model.ReachSignal {
	lastClose := bars[len(bars)-1].Close
	target := targetPct(ind.ATR20, lastClose)

	factors := model.FactorScores{
		Momentum: upMomentum(ind.RSI14),
		Trend:    upTrend(lastClose, ind.SMA20, ind.SMA60),
		Breakout: upBreakout(lastClose, ind.High52w),
		Volume:   upVolume(ind.VolumeRatio),
	}

	score := weightMomentum*factors.Momentum +
		weightTrend*factors.Trend +
		weightBreakout*factors.Breakout +
		weightVolume*factors.Volume

	base := upsideBaseRate(bars, target, horizonDays)
	prob := clamp(factorWeight*score+baseRateWeight*base, 0.1, 0.9)

	return model.ReachSignal{
		Probability: prob,
		TargetPct:   target,
		HorizonDays: horizonDays,
		Factors:     factors,
	}
}

// targetPct converts the ATR into a percent move target, clamped to [5, 30].
func targetPct(atr, price float64) float64 {
	if price <= 0 {
		return 5.0
	}
	return clamp(atr/price*100*2, 5.0, 30.0)
}

// upMomentum scores oversold conditions as upside potential.
func upMomentum(rsi float64) float64 {
	switch {
	case rsi < 30:
		return 0.75
	case rsi < 50:
		return 0.6
	case rsi < 70:
		return 0.45
	default:
		return 0.3
	}
}

// upTrend scores the close position relative to the short and medium MAs,
// with a bonus when the short MA leads.
func upTrend(close, sma20, sma60 float64) float64 {
	var score float64
	switch {
	case close > sma20 && close > sma60:
		score = 0.7
	case close > sma60:
		score = 0.6
	case close > sma20:
		score = 0.5
	default:
		score = 0.35
	}
	if sma20 > sma60 {
		score += 0.1
		if score > 0.8 {
			score = 0.8
		}
	}
	return score
}

// upBreakout scores proximity to the 52-week high.
func upBreakout(close, high52w float64) float64 {
	if high52w <= 0 {
		return 0.35
	}
	distPct := (high52w - close) / high52w * 100
	switch {
	case distPct < 5:
		return 0.7
	case distPct < 15:
		return 0.55
	case distPct < 30:
		return 0.45
	default:
		return 0.35
	}
}

// upVolume rewards above-average participation.
func upVolume(ratio float64) float64 {
	switch {
	case ratio > 1.5:
		return 0.7
	case ratio > 1.0:
		return 0.55
	default:
		return 0.4
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
