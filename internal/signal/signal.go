package signal

import "StockSentinel/internal/model"

// Evaluation horizons in trading days.
const (
	HorizonShort = 60
	HorizonLong  = 120
)

// HorizonSignals holds the reach and risk estimates for one horizon.
type HorizonSignals struct {
	L1 model.ReachSignal
	L2 model.ReachSignal
	L3 model.RiskSignal
}

// Result is the full signal evaluation: both horizons plus the trend read,
// which is horizon-independent.
type Result struct {
	H60  HorizonSignals
	H120 HorizonSignals
	L4   model.TrendSignalResult
}

// Evaluate runs the full signal stack over an ascending daily series and its
// indicator bundle.
func Evaluate(bars []model.OHLCV, ind *model.IndicatorBundle) *Result {
	return &Result{
		H60:  evalHorizon(bars, ind, HorizonShort),
		H120: evalHorizon(bars, ind, HorizonLong),
		L4:   Level4(ind),
	}
}

func evalHorizon(bars []model.OHLCV, ind *model.IndicatorBundle, horizonDays int) HorizonSignals {
	l1 := Level1(bars, ind, horizonDays)
	l2 := Level2(bars, ind, horizonDays)
	return HorizonSignals{
		L1: l1,
		L2: l2,
		L3: Level3(l1, l2, bars, horizonDays),
	}
}
