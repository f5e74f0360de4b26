package notifier

import (
	"fmt"
	"strings"

	"StockSentinel/internal/model"
)

func actionBadge(a model.Action) string {
	switch a {
	case model.ActionBuy:
		return "🟢 BUY"
	case model.ActionSell:
		return "🔴 SELL"
	case model.ActionWatch:
		return "👀 WATCH"
	default:
		return "⏸ HOLD"
	}
}

func currencyMark(c model.Currency) string {
	if c == model.CurrencyUSD {
		return "$"
	}
	return "¥"
}

// FormatDecision renders one trade decision as a push message.
func FormatDecision(d *model.Decision) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s %s", actionBadge(d.Action), d.Symbol))
	if d.Name != "" && d.Name != d.Symbol {
		b.WriteString(fmt.Sprintf(" (%s)", d.Name))
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Confidence: %.0f%% | Horizon: %s\n\n", d.Confidence*100, d.Horizon))

	b.WriteString(fmt.Sprintf("Upside: %.0f%% to +%.1f%% | Downside: %.0f%% to -%.1f%%\n",
		d.L1.Probability*100, d.L1.TargetPct, d.L2.Probability*100, d.L2.TargetPct))
	edge := "no edge"
	if d.L3.IsAdvantage {
		edge = "edge"
	}
	b.WriteString(fmt.Sprintf("Sharpe: %.2f (%s) | Trend: %s %s (ADX %.0f)\n",
		d.L3.SharpeRatio, edge, d.L4.State, d.L4.Signal, d.L4.ADX))

	if len(d.Reasons) > 0 {
		b.WriteString("\nReasons:\n")
		for _, r := range d.Reasons {
			b.WriteString(fmt.Sprintf("  - %s\n", r))
		}
	}
	if len(d.Warnings) > 0 {
		b.WriteString("\n⚠ Warnings:\n")
		for _, w := range d.Warnings {
			b.WriteString(fmt.Sprintf("  - %s\n", w))
		}
	}
	return b.String()
}

// FormatDailySummary renders the per-market end-of-day report.
func FormatDailySummary(market model.Market, snap model.PortfolioSnapshot, weeklyPnL, monthlyPnL float64, holdings []model.Holding) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 %s Daily Summary | %s\n\n", market, snap.Date))
	b.WriteString(fmt.Sprintf("Total value: %.0f\n", snap.TotalValue))
	b.WriteString(fmt.Sprintf("Daily P&L: %+.0f\n", snap.DailyPnL))
	b.WriteString(fmt.Sprintf("Weekly P&L: %+.0f\n", weeklyPnL))
	b.WriteString(fmt.Sprintf("Monthly P&L: %+.0f\n", monthlyPnL))

	if len(holdings) > 0 {
		b.WriteString("\nHoldings:\n")
		for _, h := range holdings {
			mark := currencyMark(h.Currency)
			b.WriteString(fmt.Sprintf("  %s: %s%s (%s%s)\n",
				h.InstrumentID,
				mark, h.MarketValue.StringFixed(0),
				signOf(h.UnrealizedPnL.InexactFloat64()), h.UnrealizedPnL.Abs().StringFixed(0)))
		}
	}
	return b.String()
}

// FormatWeeklySummary renders the Saturday portfolio recap.
func FormatWeeklySummary(current, weekAgo model.PortfolioSnapshot, holdings []model.Holding) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📅 Weekly Summary | %s\n\n", current.Date))
	b.WriteString(fmt.Sprintf("Total value: %.0f\n", current.TotalValue))
	if weekAgo.TotalValue > 0 {
		diff := current.TotalValue - weekAgo.TotalValue
		pct := diff / weekAgo.TotalValue * 100
		b.WriteString(fmt.Sprintf("Weekly change: %+.0f (%+.1f%%)\n", diff, pct))
	} else {
		b.WriteString("Weekly change: n/a (no prior snapshot)\n")
	}
	b.WriteString(fmt.Sprintf("Positions: %d\n", len(holdings)))

	for _, h := range holdings {
		mark := currencyMark(h.Currency)
		b.WriteString(fmt.Sprintf("  %s: %s%s, P&L %s%s%s\n",
			h.InstrumentID,
			mark, h.MarketValue.StringFixed(0),
			signOf(h.UnrealizedPnL.InexactFloat64()), mark, h.UnrealizedPnL.Abs().StringFixed(0)))
	}
	return b.String()
}

// FormatFundRefresh renders the midday fund price update note.
func FormatFundRefresh(updated []model.Holding) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("💹 Fund prices refreshed (%d)\n", len(updated)))
	for _, h := range updated {
		b.WriteString(fmt.Sprintf("  %s: NAV %s\n", h.InstrumentID, h.CurrentPrice.StringFixed(0)))
	}
	return b.String()
}

// FormatStartup renders the boot notice.
func FormatStartup(instruments int) string {
	return fmt.Sprintf("🚀 StockSentinel started, watching %d instruments", instruments)
}

func signOf(v float64) string {
	if v < 0 {
		return "-"
	}
	return "+"
}
