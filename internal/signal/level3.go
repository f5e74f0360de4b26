package signal

import (
	"math"

	"StockSentinel/internal/model"
)

// riskFreeRate is the annual risk-free return used in the Sharpe calculation,
// in fractional units.
const riskFreeRate = 0.005

// sharpeAdvantageBar marks the Sharpe ratio above which the expected return
// is considered a genuine edge.
const sharpeAdvantageBar = 0.5

// Level3 combines the upside and downside reach estimates into a
// risk-adjusted expectation for the given horizon. All return figures are
// fractional, not percentages.
func Level3(l1, l2 model.ReachSignal, bars []model.OHLCV, horizonDays int) model.RiskSignal {
	expectedReturn := (l1.Probability*l1.TargetPct - l2.Probability*l2.TargetPct) / 100

	returns := dailyReturns(bars)
	adjVol := annualizedStd(returns) * math.Sqrt(float64(horizonDays)/252.0)

	var sharpe float64
	if adjVol > 0 {
		sharpe = (expectedReturn - riskFreeRate) / adjVol
	}

	return model.RiskSignal{
		ExpectedReturn: expectedReturn,
		SharpeRatio:    sharpe,
		IsAdvantage:    sharpe > sharpeAdvantageBar,
	}
}

// dailyReturns computes close-to-close fractional returns.
func dailyReturns(bars []model.OHLCV) []float64 {
	if len(bars) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, (bars[i].Close-prev)/prev)
	}
	return returns
}

// annualizedStd scales the daily return standard deviation by sqrt(252).
func annualizedStd(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance) * math.Sqrt(252)
}
