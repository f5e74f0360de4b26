package signal

import (
	"StockSentinel/internal/model"
)

// Level2 mirrors Level1 for the downside: the probability of the low losing
// at least the target percentage within horizonDays trading days.
func Level2(bars []model.OHLCV, ind *model.IndicatorBundle, horizonDays int) model.ReachSignal {
	lastClose := bars[len(bars)-1].Close
	target := targetPct(ind.ATR20, lastClose)

	factors := model.FactorScores{
		Momentum: downMomentum(ind.RSI14),
		Trend:    downTrend(lastClose, ind.SMA20, ind.SMA60),
		Breakout: downProximity(lastClose, ind.Low52w),
		Volume:   downVolume(bars, ind.VolumeRatio),
	}

	score := weightMomentum*factors.Momentum +
		weightTrend*factors.Trend +
		weightBreakout*factors.Breakout +
		weightVolume*factors.Volume

	base := downsideBaseRate(bars, target, horizonDays)
	prob := clamp(factorWeight*score+baseRateWeight*base, 0.1, 0.9)

	return model.ReachSignal{
		Probability: prob,
		TargetPct:   target,
		HorizonDays: horizonDays,
		Factors:     factors,
	}
}

// downMomentum scores overbought conditions as downside potential.
func downMomentum(rsi float64) float64 {
	switch {
	case rsi > 70:
		return 0.75
	case rsi > 50:
		return 0.6
	case rsi > 30:
		return 0.45
	default:
		return 0.3
	}
}

// downTrend scores the close position below the MAs, with a bonus when the
// short MA trails.
func downTrend(close, sma20, sma60 float64) float64 {
	var score float64
	switch {
	case close < sma20 && close < sma60:
		score = 0.7
	case close < sma60:
		score = 0.6
	case close < sma20:
		score = 0.5
	default:
		score = 0.35
	}
	if sma20 < sma60 {
		score += 0.1
		if score > 0.8 {
			score = 0.8
		}
	}
	return score
}

// downProximity scores closeness to the 52-week low.
func downProximity(close, low52w float64) float64 {
	if low52w <= 0 {
		return 0.35
	}
	distPct := (close - low52w) / low52w * 100
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

// downVolume rewards heavy volume on a down day.
func downVolume(bars []model.OHLCV, ratio float64) float64 {
	n := len(bars)
	downDay := n >= 2 && bars[n-1].Close < bars[n-2].Close
	switch {
	case downDay && ratio > 1.5:
		return 0.7
	case downDay && ratio > 1.0:
		return 0.55
	default:
		return 0.4
	}
}
