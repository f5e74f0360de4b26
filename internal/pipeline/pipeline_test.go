package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"StockSentinel/internal/collector"
	"StockSentinel/internal/gate"
	"StockSentinel/internal/model"
	"StockSentinel/internal/store"
)

type fakeState struct {
	mu         sync.Mutex
	stopChecks int
	cooldowns  map[string]bool
	counts     map[string]int
	prev       map[string]*model.Decision
}

func newFakeState() *fakeState {
	return &fakeState{
		cooldowns: map[string]bool{},
		counts:    map[string]int{},
		prev:      map[string]*model.Decision{},
	}
}

func (f *fakeState) EmergencyStop(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopChecks++
	return false, nil
}
func (f *fakeState) SetEmergencyStop(context.Context, bool) error { return nil }
func (f *fakeState) DailyCount(_ context.Context, day string) (int, error) {
	return f.counts[day], nil
}
func (f *fakeState) IncrDailyCount(_ context.Context, day string) error {
	f.counts[day]++
	return nil
}
func (f *fakeState) InCooldown(_ context.Context, symbol string) (bool, error) {
	return f.cooldowns[symbol], nil
}
func (f *fakeState) SetCooldown(_ context.Context, symbol string, _ time.Duration) error {
	f.cooldowns[symbol] = true
	return nil
}
func (f *fakeState) PreviousDecision(_ context.Context, symbol string) (*model.Decision, error) {
	return f.prev[symbol], nil
}
func (f *fakeState) SavePreviousDecision(_ context.Context, d *model.Decision, _ time.Duration) error {
	f.prev[d.Symbol] = d
	return nil
}

type fakeNotifier struct {
	decisions []*model.Decision
	alerts    []string
}

func (f *fakeNotifier) SendDecision(_ context.Context, d *model.Decision) error {
	f.decisions = append(f.decisions, d)
	return nil
}
func (f *fakeNotifier) SendAlert(_ context.Context, text string) error {
	f.alerts = append(f.alerts, text)
	return nil
}

type fakeCache struct {
	latest map[string]*model.Decision
}

func (f *fakeCache) LatestDecision(_ context.Context, symbol string) (*model.Decision, error) {
	return f.latest[symbol], nil
}
func (f *fakeCache) SaveLatestDecision(_ context.Context, d *model.Decision) error {
	f.latest[d.Symbol] = d
	return nil
}

type fakeConfig struct{}

func (fakeConfig) Thresholds(context.Context) (model.Thresholds, error) {
	return model.DefaultThresholds(), nil
}

func testBars(n int, price float64) []model.OHLCV {
	bars := make([]model.OHLCV, n)
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = model.OHLCV{
			Date:     start.AddDate(0, 0, i).Format("2006-01-02"),
			Open:     price,
			High:     price * 1.01,
			Low:      price * 0.99,
			Close:    price,
			Volume:   100000,
			AdjClose: price,
		}
	}
	return bars
}

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store, *fakeState, *fakeNotifier, *fakeCache) {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	state := newFakeState()
	notif := &fakeNotifier{}
	cache := &fakeCache{latest: map[string]*model.Decision{}}

	mock := &collector.MockFetcher{Price: 100}
	col := collector.NewCollector(mock, mock, mock)
	col.Pace = 0
	col.FundPace = 0
	col.Retries = 1
	col.RetryDelay = 0

	g := gate.New(state, notif, st, model.Thresholds{})
	p := New(st, col, cache, fakeConfig{}, g, notif)
	p.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	return p, st, state, notif, cache
}

func TestMonitoringTick_FlowsThroughGate(t *testing.T) {
	p, st, state, _, cache := newTestPipeline(t)
	ctx := context.Background()

	inst := model.Instrument{ID: "AAPL", Name: "Apple", Market: model.MarketUS, Asset: model.AssetStock, Active: true}
	if err := st.UpsertInstrument(ctx, inst); err != nil {
		t.Fatalf("upsert instrument: %v", err)
	}
	if err := st.SaveBars(ctx, "AAPL", testBars(200, 100)); err != nil {
		t.Fatalf("save bars: %v", err)
	}

	if err := p.MonitoringTick(ctx, model.MarketUS); err != nil {
		t.Fatalf("MonitoringTick: %v", err)
	}
	if state.stopChecks == 0 {
		t.Error("gate was never consulted")
	}
	if cache.latest["AAPL"] == nil {
		t.Error("latest decision snapshot not written")
	}
}

func TestMonitoringTick_SkipsShortSeries(t *testing.T) {
	p, st, state, _, cache := newTestPipeline(t)
	ctx := context.Background()

	inst := model.Instrument{ID: "NEW", Name: "Fresh Listing", Market: model.MarketUS, Asset: model.AssetStock, Active: true}
	if err := st.UpsertInstrument(ctx, inst); err != nil {
		t.Fatalf("upsert instrument: %v", err)
	}
	if err := st.SaveBars(ctx, "NEW", testBars(30, 50)); err != nil {
		t.Fatalf("save bars: %v", err)
	}

	if err := p.MonitoringTick(ctx, model.MarketUS); err != nil {
		t.Fatalf("MonitoringTick: %v", err)
	}
	if state.stopChecks != 0 {
		t.Error("short series should not reach the gate")
	}
	if cache.latest["NEW"] != nil {
		t.Error("short series should not write a decision snapshot")
	}
}

func TestMonitoringTick_IsolatesFailures(t *testing.T) {
	p, st, state, _, _ := newTestPipeline(t)
	ctx := context.Background()

	// "BAD" has bars in the window but too few for indicators after the
	// provisional quote write; "GOOD" must still be evaluated.
	for _, inst := range []model.Instrument{
		{ID: "BAD", Name: "Broken", Market: model.MarketUS, Asset: model.AssetStock, Active: true},
		{ID: "GOOD", Name: "Healthy", Market: model.MarketUS, Asset: model.AssetStock, Active: true},
	} {
		if err := st.UpsertInstrument(ctx, inst); err != nil {
			t.Fatalf("upsert instrument: %v", err)
		}
	}
	if err := st.SaveBars(ctx, "GOOD", testBars(200, 80)); err != nil {
		t.Fatalf("save bars: %v", err)
	}

	if err := p.MonitoringTick(ctx, model.MarketUS); err != nil {
		t.Fatalf("MonitoringTick: %v", err)
	}
	if state.stopChecks == 0 {
		t.Error("healthy instrument was not evaluated")
	}
}

func TestDailySummary(t *testing.T) {
	p, st, _, notif, _ := newTestPipeline(t)
	ctx := context.Background()

	inst := model.Instrument{ID: "AAPL", Name: "Apple", Market: model.MarketUS, Asset: model.AssetStock, Active: true}
	if err := st.UpsertInstrument(ctx, inst); err != nil {
		t.Fatalf("upsert instrument: %v", err)
	}

	h := model.Holding{
		InstrumentID: "7203", AccountClass: "taxable",
		Quantity: decimal.NewFromInt(10), AvgCost: decimal.NewFromInt(150),
		CurrentPrice: decimal.NewFromInt(200), MarketValue: decimal.NewFromInt(2000),
		UnrealizedPnL: decimal.NewFromInt(500), Currency: model.CurrencyJPY,
		UpdatedAt: time.Now(),
	}
	if err := st.UpsertHolding(ctx, h); err != nil {
		t.Fatalf("upsert holding: %v", err)
	}
	for _, snap := range []model.PortfolioSnapshot{
		{Date: "2024-03-08", TotalValue: 950000, MonthStartValue: 990000},
		{Date: "2024-03-14", TotalValue: 1000000, DailyPnL: 100, MonthStartValue: 990000},
	} {
		if err := st.SaveSnapshot(ctx, snap); err != nil {
			t.Fatalf("save snapshot: %v", err)
		}
	}

	if err := p.DailySummary(ctx, model.MarketUS); err != nil {
		t.Fatalf("DailySummary: %v", err)
	}

	today, err := st.SnapshotOn(ctx, "2024-03-15")
	if err != nil {
		t.Fatalf("snapshot on: %v", err)
	}
	if today.TotalValue != 2000 {
		t.Errorf("total = %v, want 2000", today.TotalValue)
	}
	if today.MonthStartValue != 990000 {
		t.Errorf("month start = %v, want carried 990000", today.MonthStartValue)
	}

	if len(notif.alerts) == 0 {
		t.Fatal("no summary message sent")
	}
	msg := notif.alerts[len(notif.alerts)-1]
	for _, want := range []string{
		"US Daily Summary | 2024-03-15",
		fmt.Sprintf("Daily P&L: %+.0f", 2000.0-1000000),
		fmt.Sprintf("Weekly P&L: %+.0f", 2000.0-950000),
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("summary missing %q:\n%s", want, msg)
		}
	}

	bars, err := st.RecentBars(ctx, "AAPL", 10)
	if err != nil {
		t.Fatalf("recent bars: %v", err)
	}
	if len(bars) != 10 {
		t.Errorf("confirmed series not persisted, got %d bars", len(bars))
	}
}

func TestFundRefresh(t *testing.T) {
	p, st, _, notif, _ := newTestPipeline(t)
	ctx := context.Background()

	inst := model.Instrument{ID: "Global Fund", Name: "Global Fund", Market: model.MarketJP, Asset: model.AssetMutualFund, Active: true}
	if err := st.UpsertInstrument(ctx, inst); err != nil {
		t.Fatalf("upsert instrument: %v", err)
	}
	h := model.Holding{
		InstrumentID: "Global Fund", AccountClass: "nisa",
		Quantity: decimal.NewFromInt(2), AvgCost: decimal.NewFromInt(10000),
		CurrentPrice: decimal.NewFromInt(10000), MarketValue: decimal.NewFromInt(20000),
		UnrealizedPnL: decimal.Zero, Currency: model.CurrencyJPY,
		UpdatedAt: time.Now(),
	}
	if err := st.UpsertHolding(ctx, h); err != nil {
		t.Fatalf("upsert holding: %v", err)
	}

	p.Collector.Fund = &collector.MockFetcher{Price: 12000}

	if err := p.FundRefresh(ctx); err != nil {
		t.Fatalf("FundRefresh: %v", err)
	}

	holdings, err := st.Holdings(ctx)
	if err != nil {
		t.Fatalf("holdings: %v", err)
	}
	if len(holdings) != 1 {
		t.Fatalf("got %d holdings", len(holdings))
	}
	if holdings[0].MarketValue.String() != "24000" {
		t.Errorf("market value = %s, want 24000", holdings[0].MarketValue)
	}

	if len(notif.alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(notif.alerts))
	}
	if !strings.Contains(notif.alerts[0], "Fund prices refreshed (1)") {
		t.Errorf("alert = %q", notif.alerts[0])
	}
	if !strings.Contains(notif.alerts[0], "NAV 12000") {
		t.Errorf("alert missing NAV: %q", notif.alerts[0])
	}
}

func TestWeeklySummary(t *testing.T) {
	p, st, _, notif, _ := newTestPipeline(t)
	ctx := context.Background()

	if err := st.SaveSnapshot(ctx, model.PortfolioSnapshot{Date: "2024-03-08", TotalValue: 1000}); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	if err := p.WeeklySummary(ctx); err != nil {
		t.Fatalf("WeeklySummary: %v", err)
	}
	if len(notif.alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(notif.alerts))
	}
	if !strings.Contains(notif.alerts[0], "Weekly Summary | 2024-03-15") {
		t.Errorf("alert = %q", notif.alerts[0])
	}
}

func TestMarketOpen(t *testing.T) {
	cases := []struct {
		name   string
		market model.Market
		t      time.Time
		want   bool
	}{
		{"jp weekday open", model.MarketJP, time.Date(2024, 3, 12, 10, 0, 0, 0, tokyoTZ), true},
		{"jp before open", model.MarketJP, time.Date(2024, 3, 12, 8, 59, 0, 0, tokyoTZ), false},
		{"jp after close", model.MarketJP, time.Date(2024, 3, 12, 15, 0, 0, 0, tokyoTZ), false},
		{"jp saturday", model.MarketJP, time.Date(2024, 3, 16, 10, 0, 0, 0, tokyoTZ), false},
		{"us weekday open", model.MarketUS, time.Date(2024, 3, 12, 9, 30, 0, 0, newYorkTZ), true},
		{"us before open", model.MarketUS, time.Date(2024, 3, 12, 9, 29, 0, 0, newYorkTZ), false},
		{"us after close", model.MarketUS, time.Date(2024, 3, 12, 16, 0, 0, 0, newYorkTZ), false},
		{"us sunday", model.MarketUS, time.Date(2024, 3, 17, 12, 0, 0, 0, newYorkTZ), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MarketOpen(tc.market, tc.t); got != tc.want {
				t.Errorf("MarketOpen(%s, %v) = %v, want %v", tc.market, tc.t, got, tc.want)
			}
		})
	}
}
