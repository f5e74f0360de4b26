package aggregator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"StockSentinel/internal/calculator"
	"StockSentinel/internal/model"
	"StockSentinel/internal/signal"
)

// Input carries everything Decide needs for one instrument. Events must
// already be windowed to the next 14 days by the caller.
type Input struct {
	Symbol     string
	Name       string
	Bars       []model.OHLCV
	Thresholds model.Thresholds
	Events     []model.CalendarEvent
	IsHolding  bool
	Now        time.Time
}

// Decide runs the indicator and signal stack over the series and reconciles
// the four signals into a single recommendation.
func Decide(in Input) (*model.Decision, error) {
	ind, err := calculator.Compute(in.Bars)
	if err != nil {
		return nil, fmt.Errorf("decide %s: %w", in.Symbol, err)
	}

	res := signal.Evaluate(in.Bars, ind)

	// Each side picks its own best horizon. The reported horizon label is
	// always L1's, so L2 may carry a different horizon than the label.
	l1 := higherProbability(res.H60.L1, res.H120.L1)
	l2 := higherProbability(res.H60.L2, res.H120.L2)
	l3 := higherSharpe(res.H60.L3, res.H120.L3)

	return compose(in, ind, l1, l2, l3, res.L4), nil
}

func higherProbability(a, b model.ReachSignal) model.ReachSignal {
	if b.Probability > a.Probability {
		return b
	}
	return a
}

func higherSharpe(a, b model.RiskSignal) model.RiskSignal {
	if b.SharpeRatio > a.SharpeRatio {
		return b
	}
	return a
}

// compose applies the scoring and decision rules to already-selected signals.
func compose(in Input, ind *model.IndicatorBundle, l1, l2 model.ReachSignal, l3 model.RiskSignal, l4 model.TrendSignalResult) *model.Decision {
	th := in.Thresholds.Merge()

	var buyScore int
	if l1.Probability >= th.L1MinProbability {
		buyScore++
	}
	if l3.IsAdvantage || l3.SharpeRatio >= th.L3MinSharpe {
		buyScore++
	}
	if l4.State == model.TrendUp || l4.Signal == model.SignalReversalUp {
		buyScore++
	}

	var sellScore int
	if l2.Probability >= th.L2MinProbability {
		sellScore++
	}
	if l3.SharpeRatio < -0.3 {
		sellScore++
	}
	if l4.State == model.TrendDown || l4.Signal == model.SignalReversalDown {
		sellScore++
	}

	var (
		action     model.Action
		confidence float64
		warnings   []string
	)
	switch {
	case buyScore >= 2 && sellScore >= 2:
		action = model.ActionWatch
		confidence = 0.5
		warnings = append(warnings, "conflicting buy and sell signals")
	case buyScore >= 2:
		action = model.ActionBuy
		confidence = (l1.Probability + l4.Confidence) / 2
	case sellScore >= 2:
		action = model.ActionSell
		confidence = (l2.Probability + l4.Confidence) / 2
	case (buyScore >= 1) != (sellScore >= 1):
		action = model.ActionWatch
		confidence = 0.5
	default:
		action = model.ActionHold
		confidence = 0.5
	}

	reasons := buildReasons(ind, l4)

	// A held position only converts to SELL under strong downside evidence.
	if in.IsHolding && action == model.ActionSell &&
		!(l2.Probability >= 0.7 && l3.SharpeRatio <= -0.5) {
		action = model.ActionWatch
		reasons = append(reasons, "holding; cautious")
	}

	warnings = append(warnings, buildWarnings(in.Events, l2)...)

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	return &model.Decision{
		ID:         uuid.NewString(),
		Symbol:     in.Symbol,
		Name:       in.Name,
		Action:     action,
		Confidence: confidence,
		Horizon:    fmt.Sprintf("%dd", l1.HorizonDays),
		Reasons:    truncate(reasons, 5),
		Warnings:   truncate(warnings, 3),
		L1:         l1,
		L2:         l2,
		L3:         l3,
		L4:         l4,
		Timestamp:  now,
	}
}

func truncate(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
