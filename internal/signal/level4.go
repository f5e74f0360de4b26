package signal

import "StockSentinel/internal/model"

// ADX thresholds for regime classification and confidence adjustment.
const (
	adxRangeCeiling = 20
	adxStrongTrend  = 25
	adxVeryStrong   = 30
	adxVeryWeak     = 15
)

// Level4 classifies the trend regime and the expected next move from the
// ADX, the MA pair, RSI extremes, and the MACD histogram direction.
func Level4(ind *model.IndicatorBundle) model.TrendSignalResult {
	state := trendState(ind)
	sig, conf := trendSignal(state, ind)

	// Strong trends earn more confidence, weak ones less.
	if ind.ADX14 >= adxVeryStrong {
		conf += 0.1
	} else if ind.ADX14 < adxVeryWeak {
		conf -= 0.1
	}

	return model.TrendSignalResult{
		State:      state,
		Signal:     sig,
		ADX:        ind.ADX14,
		Confidence: clamp(conf, 0.3, 0.85),
	}
}

func trendState(ind *model.IndicatorBundle) model.TrendState {
	if ind.ADX14 < adxRangeCeiling {
		return model.TrendRange
	}
	if ind.DIPlus > ind.DIMinus {
		return model.TrendUp
	}
	return model.TrendDown
}

func trendSignal(state model.TrendState, ind *model.IndicatorBundle) (model.TrendSignal, float64) {
	histUp := ind.MACDHistogram > 0
	histDown := ind.MACDHistogram < 0
	goldenCross := ind.SMA20 > ind.SMA60
	deathCross := ind.SMA20 < ind.SMA60

	switch state {
	case model.TrendRange:
		if ind.RSI14 < 30 && histUp {
			return model.SignalReversalUp, 0.55
		}
		if ind.RSI14 > 70 && histDown {
			return model.SignalReversalDown, 0.55
		}
		return model.SignalContinue, 0.5

	case model.TrendUp:
		if deathCross || (ind.RSI14 > 70 && histDown) {
			return model.SignalReversalDown, 0.6
		}
		if ind.ADX14 > adxStrongTrend && histUp {
			return model.SignalContinue, 0.7
		}
		return model.SignalContinue, 0.55

	default: // TrendDown
		if goldenCross || (ind.RSI14 < 30 && histUp) {
			return model.SignalReversalUp, 0.6
		}
		if ind.ADX14 > adxStrongTrend && histDown {
			return model.SignalContinue, 0.7
		}
		return model.SignalContinue, 0.55
	}
}
