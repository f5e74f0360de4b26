package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"StockSentinel/internal/aggregator"
	"StockSentinel/internal/collector"
	"StockSentinel/internal/gate"
	"StockSentinel/internal/metrics"
	"StockSentinel/internal/model"
	"StockSentinel/internal/notifier"
	"StockSentinel/internal/store"
)

// historyBars is how much series each decision sees; minimum bars to act is
// enforced by the indicator kernel.
const historyBars = 200

// eventWindowDays is how far ahead calendar events feed decision warnings.
const eventWindowDays = 14

// DecisionCache remembers the last computed decision per instrument so
// unchanged snapshots are not rewritten every tick.
type DecisionCache interface {
	LatestDecision(ctx context.Context, symbol string) (*model.Decision, error)
	SaveLatestDecision(ctx context.Context, d *model.Decision) error
}

// ConfigSource supplies the tunable thresholds.
type ConfigSource interface {
	Thresholds(ctx context.Context) (model.Thresholds, error)
}

// Pipeline sequences fetch, persist, signal, gate, and summary work. It owns
// no persistent state and every job is safe to rerun.
type Pipeline struct {
	Store     *store.Store
	Collector *collector.Collector
	Cache     DecisionCache
	Config    ConfigSource
	Gate      *gate.Gate
	Notifier  gate.Notifier

	now func() time.Time
}

// New wires the orchestrator.
func New(st *store.Store, col *collector.Collector, cache DecisionCache, cfg ConfigSource, g *gate.Gate, n gate.Notifier) *Pipeline {
	return &Pipeline{
		Store:     st,
		Collector: col,
		Cache:     cache,
		Config:    cfg,
		Gate:      g,
		Notifier:  n,
		now:       time.Now,
	}
}

// MonitoringTick refreshes quotes and runs the signal stack for every active
// instrument in the given market. Per-instrument failures are logged and do
// not stop the tick.
func (p *Pipeline) MonitoringTick(ctx context.Context, market model.Market) error {
	metrics.TicksTotal.Inc()

	instruments, err := p.Store.ActiveInstruments(ctx)
	if err != nil {
		return fmt.Errorf("monitoring tick: %w", err)
	}
	th, events := p.decisionContext(ctx)

	for _, inst := range instruments {
		if inst.Market != market || inst.Asset == model.AssetMutualFund {
			continue
		}
		p.refreshQuote(ctx, inst)
		if err := p.evaluateInstrument(ctx, inst, th, events); err != nil {
			log.Printf("[ERROR] tick %s: %v", inst.ID, err)
		}
	}
	return nil
}

// decisionContext loads thresholds and the upcoming event window. Failures
// degrade to defaults so a flaky kv store cannot stall the tick.
func (p *Pipeline) decisionContext(ctx context.Context) (model.Thresholds, []model.CalendarEvent) {
	th, err := p.Config.Thresholds(ctx)
	if err != nil {
		log.Printf("[WARN] load thresholds: %v, using defaults", err)
		th = model.DefaultThresholds()
	}
	today := p.now().UTC().Format("2006-01-02")
	horizon := p.now().UTC().AddDate(0, 0, eventWindowDays).Format("2006-01-02")
	events, err := p.Store.EventsBetween(ctx, today, horizon)
	if err != nil {
		log.Printf("[WARN] load events: %v", err)
		events = nil
	}
	return th, events
}

// refreshQuote writes a provisional bar for the current session. The daily
// job later replaces it with the confirmed close.
func (p *Pipeline) refreshQuote(ctx context.Context, inst model.Instrument) {
	q, err := p.Collector.Quote(ctx, inst)
	if err != nil {
		metrics.FetchErrorsTotal.WithLabelValues(p.Collector.Primary.Name()).Inc()
		log.Printf("[WARN] quote %s: %v, using stored series", inst.ID, err)
		return
	}
	bar := model.OHLCV{
		Date:     marketToday(inst.Market, p.now()),
		Open:     q.Price,
		High:     q.Price,
		Low:      q.Price,
		Close:    q.Price,
		AdjClose: q.Price,
	}
	if err := p.Store.SaveBars(ctx, inst.ID, []model.OHLCV{bar}); err != nil {
		log.Printf("[WARN] save provisional bar %s: %v", inst.ID, err)
	}
}

// evaluateInstrument runs series → indicators → signals → decision → gate
// for one instrument.
func (p *Pipeline) evaluateInstrument(ctx context.Context, inst model.Instrument, th model.Thresholds, events []model.CalendarEvent) error {
	bars, err := p.Store.RecentBars(ctx, inst.ID, historyBars)
	if err != nil {
		return fmt.Errorf("read bars: %w", err)
	}
	if len(bars) < 60 {
		log.Printf("[INFO] %s: only %d bars, skipping", inst.ID, len(bars))
		return nil
	}

	held, err := p.Store.IsHolding(ctx, inst.ID)
	if err != nil {
		return fmt.Errorf("holding check: %w", err)
	}

	d, err := aggregator.Decide(aggregator.Input{
		Symbol:     inst.ID,
		Name:       inst.Name,
		Bars:       bars,
		Thresholds: th,
		Events:     events,
		IsHolding:  held,
		Now:        p.now(),
	})
	if err != nil {
		return fmt.Errorf("decide: %w", err)
	}

	if d.Action != model.ActionHold {
		if err := p.Store.AddSignalHistory(ctx, d); err != nil {
			return fmt.Errorf("signal history: %w", err)
		}
	}

	prev, err := p.Cache.LatestDecision(ctx, inst.ID)
	if err != nil {
		log.Printf("[WARN] latest decision %s: %v", inst.ID, err)
	}
	if !d.Same(prev) {
		if err := p.Cache.SaveLatestDecision(ctx, d); err != nil {
			log.Printf("[WARN] save latest decision %s: %v", inst.ID, err)
		}
	}

	res, err := p.Gate.Process(ctx, d)
	if err != nil {
		return fmt.Errorf("gate: %w", err)
	}
	if res == gate.Sent {
		metrics.NotificationsSentTotal.Inc()
	} else {
		metrics.NotificationsSuppressedTotal.WithLabelValues(string(res)).Inc()
	}
	return nil
}

// DailySummary fetches confirmed closes for one market, reruns the signal
// stack, reprices holdings, persists today's snapshot, and sends the
// end-of-day report.
func (p *Pipeline) DailySummary(ctx context.Context, market model.Market) error {
	instruments, err := p.Store.ActiveInstruments(ctx)
	if err != nil {
		return fmt.Errorf("daily summary %s: %w", market, err)
	}
	th, events := p.decisionContext(ctx)

	for _, inst := range instruments {
		if inst.Market != market || inst.Asset == model.AssetMutualFund {
			continue
		}
		if err := p.refreshSeries(ctx, inst); err != nil {
			metrics.FetchErrorsTotal.WithLabelValues(p.Collector.Primary.Name()).Inc()
			log.Printf("[ERROR] daily fetch %s: %v", inst.ID, err)
			continue
		}
		if err := p.evaluateInstrument(ctx, inst, th, events); err != nil {
			log.Printf("[ERROR] daily eval %s: %v", inst.ID, err)
		}
	}

	snap, weeklyPnL, monthlyPnL, holdings, err := p.writeSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("daily summary %s: %w", market, err)
	}

	msg := notifier.FormatDailySummary(market, snap, weeklyPnL, monthlyPnL, holdings)
	if err := p.Notifier.SendAlert(ctx, msg); err != nil {
		return fmt.Errorf("daily summary %s: send: %w", market, err)
	}
	return nil
}

// refreshSeries replaces the stored series with the provider's confirmed
// bars and drops any provisional rows past the confirmed tail, then reprices
// holdings at the confirmed close.
func (p *Pipeline) refreshSeries(ctx context.Context, inst model.Instrument) error {
	bars, err := p.Collector.Series(ctx, inst, historyBars)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("empty series for %s", inst.ID)
	}
	if err := p.Store.SaveBars(ctx, inst.ID, bars); err != nil {
		return err
	}
	last := bars[len(bars)-1]
	if err := p.Store.CleanupIntradayPrices(ctx, inst.ID, last.Date); err != nil {
		return err
	}
	p.repriceHoldings(ctx, inst.ID, decimal.NewFromFloat(last.Close))
	return nil
}

// repriceHoldings updates every account-class position in the instrument.
func (p *Pipeline) repriceHoldings(ctx context.Context, symbol string, price decimal.Decimal) {
	holdings, err := p.Store.Holdings(ctx)
	if err != nil {
		log.Printf("[WARN] list holdings: %v", err)
		return
	}
	for _, h := range holdings {
		if h.InstrumentID != symbol {
			continue
		}
		if err := p.Store.UpdateHoldingPrice(ctx, symbol, h.AccountClass, price); err != nil {
			log.Printf("[WARN] reprice %s/%s: %v", symbol, h.AccountClass, err)
		}
	}
}

// writeSnapshot totals the portfolio, derives P&L from earlier snapshots,
// and persists today's row.
func (p *Pipeline) writeSnapshot(ctx context.Context) (model.PortfolioSnapshot, float64, float64, []model.Holding, error) {
	holdings, err := p.Store.Holdings(ctx)
	if err != nil {
		return model.PortfolioSnapshot{}, 0, 0, nil, fmt.Errorf("list holdings: %w", err)
	}

	total := 0.0
	for _, h := range holdings {
		total += h.MarketValue.InexactFloat64()
	}

	today := p.now().UTC().Format("2006-01-02")
	prev, err := p.Store.LatestSnapshotBefore(ctx, today)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return model.PortfolioSnapshot{}, 0, 0, nil, fmt.Errorf("previous snapshot: %w", err)
	}

	snap := model.PortfolioSnapshot{Date: today, TotalValue: total, MonthStartValue: total}
	if prev != nil {
		snap.DailyPnL = total - prev.TotalValue
		if prev.Date[:7] == today[:7] {
			snap.MonthStartValue = prev.MonthStartValue
		}
	}
	monthlyPnL := total - snap.MonthStartValue

	weekAgo := p.now().UTC().AddDate(0, 0, -6).Format("2006-01-02")
	weekly, err := p.Store.LatestSnapshotBefore(ctx, weekAgo)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return model.PortfolioSnapshot{}, 0, 0, nil, fmt.Errorf("weekly snapshot: %w", err)
	}
	weeklyPnL := 0.0
	if weekly != nil {
		weeklyPnL = total - weekly.TotalValue
	}

	if err := p.Store.SaveSnapshot(ctx, snap); err != nil {
		return model.PortfolioSnapshot{}, 0, 0, nil, fmt.Errorf("save snapshot: %w", err)
	}
	return snap, weeklyPnL, monthlyPnL, holdings, nil
}

// FundRefresh reprices mutual-fund holdings from the fund source and sends
// the midday note.
func (p *Pipeline) FundRefresh(ctx context.Context) error {
	instruments, err := p.Store.ActiveInstruments(ctx)
	if err != nil {
		return fmt.Errorf("fund refresh: %w", err)
	}

	var updated []model.Holding
	for _, inst := range instruments {
		if inst.Asset != model.AssetMutualFund {
			continue
		}
		q, err := p.Collector.Quote(ctx, inst)
		if err != nil {
			metrics.FetchErrorsTotal.WithLabelValues("fund").Inc()
			log.Printf("[ERROR] fund quote %s: %v", inst.ID, err)
			continue
		}
		price := decimal.NewFromFloat(q.Price)
		p.repriceHoldings(ctx, inst.ID, price)

		holdings, err := p.Store.Holdings(ctx)
		if err != nil {
			log.Printf("[WARN] list holdings: %v", err)
			continue
		}
		for _, h := range holdings {
			if h.InstrumentID == inst.ID {
				updated = append(updated, h)
			}
		}
	}
	if len(updated) == 0 {
		log.Println("[INFO] fund refresh: no fund holdings to update")
		return nil
	}
	if err := p.Notifier.SendAlert(ctx, notifier.FormatFundRefresh(updated)); err != nil {
		return fmt.Errorf("fund refresh: send: %w", err)
	}
	return nil
}

// WeeklySummary sends the Saturday portfolio recap.
func (p *Pipeline) WeeklySummary(ctx context.Context) error {
	snap, _, _, holdings, err := p.writeSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("weekly summary: %w", err)
	}

	weekAgo := p.now().UTC().AddDate(0, 0, -6).Format("2006-01-02")
	prev, err := p.Store.LatestSnapshotBefore(ctx, weekAgo)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("weekly summary: %w", err)
	}
	var prevSnap model.PortfolioSnapshot
	if prev != nil {
		prevSnap = *prev
	}

	msg := notifier.FormatWeeklySummary(snap, prevSnap, holdings)
	if err := p.Notifier.SendAlert(ctx, msg); err != nil {
		return fmt.Errorf("weekly summary: send: %w", err)
	}
	return nil
}
