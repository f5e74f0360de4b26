package aggregator

import (
	"fmt"
	"math"

	"StockSentinel/internal/model"
)

// buildReasons turns indicator extremes and the trend read into short
// human-readable lines, most significant first.
func buildReasons(ind *model.IndicatorBundle, l4 model.TrendSignalResult) []string {
	var reasons []string

	switch {
	case ind.RSI14 < 30:
		reasons = append(reasons, fmt.Sprintf("RSI %.0f oversold", ind.RSI14))
	case ind.RSI14 > 70:
		reasons = append(reasons, fmt.Sprintf("RSI %.0f overbought", ind.RSI14))
	}

	if ind.SMA20 > ind.SMA60 {
		reasons = append(reasons, "short MA above medium MA")
	} else if ind.SMA20 < ind.SMA60 {
		reasons = append(reasons, "short MA below medium MA")
	}

	if ind.VolumeRatio > 1.5 {
		reasons = append(reasons, fmt.Sprintf("volume %.1fx the 20-day average", ind.VolumeRatio))
	}

	if ind.MACDHistogram > 0 {
		reasons = append(reasons, "MACD histogram positive")
	} else if ind.MACDHistogram < 0 {
		reasons = append(reasons, "MACD histogram negative")
	}

	if ind.ADX14 > 25 {
		reasons = append(reasons, fmt.Sprintf("ADX %.0f strong trend", ind.ADX14))
	}

	reasons = append(reasons, trendDescription(l4))
	return reasons
}

func trendDescription(l4 model.TrendSignalResult) string {
	var state string
	switch l4.State {
	case model.TrendUp:
		state = "uptrend"
	case model.TrendDown:
		state = "downtrend"
	default:
		state = "range-bound"
	}
	switch l4.Signal {
	case model.SignalReversalUp:
		return state + ", upward reversal forming"
	case model.SignalReversalDown:
		return state + ", downward reversal forming"
	default:
		return state + ", continuing"
	}
}

// buildWarnings lists important upcoming events and a drawdown estimate when
// the downside expectation is material.
func buildWarnings(events []model.CalendarEvent, l2 model.ReachSignal) []string {
	var warnings []string
	for _, ev := range events {
		if ev.Importance >= 2 {
			warnings = append(warnings, fmt.Sprintf("%s %s", ev.Date, ev.Description))
		}
	}
	if dd := math.Round(l2.TargetPct * l2.Probability); dd > 5 {
		warnings = append(warnings, fmt.Sprintf("expected max drawdown around %.0f%%", dd))
	}
	return warnings
}
