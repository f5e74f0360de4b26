package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"StockSentinel/internal/model"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInstruments(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	instruments := []model.Instrument{
		{ID: "7203", Name: "Toyota", Market: model.MarketJP, Asset: model.AssetStock, Active: true},
		{ID: "AAPL", Name: "Apple", Market: model.MarketUS, Asset: model.AssetStock, Active: true},
		{ID: "VOO", Name: "Vanguard S&P 500", Market: model.MarketUS, Asset: model.AssetETF, Active: false},
	}
	for _, inst := range instruments {
		if err := s.UpsertInstrument(ctx, inst); err != nil {
			t.Fatalf("upsert %s: %v", inst.ID, err)
		}
	}

	active, err := s.ActiveInstruments(ctx)
	if err != nil {
		t.Fatalf("active instruments: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active = %d, want 2", len(active))
	}

	if err := s.SetInstrumentActive(ctx, "VOO", true); err != nil {
		t.Fatalf("set active: %v", err)
	}
	active, _ = s.ActiveInstruments(ctx)
	if len(active) != 3 {
		t.Errorf("after activation: %d, want 3", len(active))
	}

	if err := s.SetInstrumentActive(ctx, "NOPE", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown symbol: err = %v, want ErrNotFound", err)
	}
}

func TestSaveBars_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	bars := []model.OHLCV{
		{Date: "2024-03-01", Open: 100, High: 102, Low: 99, Close: 101, Volume: 1000},
		{Date: "2024-03-04", Open: 101, High: 103, Low: 100, Close: 102, Volume: 1100},
	}
	if err := s.SaveBars(ctx, "7203", bars); err != nil {
		t.Fatalf("save bars: %v", err)
	}

	// Re-saving the same dates with a corrected close must replace, not add.
	bars[1].Close = 105
	if err := s.SaveBars(ctx, "7203", bars); err != nil {
		t.Fatalf("re-save bars: %v", err)
	}

	got, err := s.RecentBars(ctx, "7203", 10)
	if err != nil {
		t.Fatalf("recent bars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("bars = %d, want 2", len(got))
	}
	if got[0].Date != "2024-03-01" || got[1].Date != "2024-03-04" {
		t.Errorf("dates not ascending: %v %v", got[0].Date, got[1].Date)
	}
	if got[1].Close != 105 {
		t.Errorf("replaced close = %v, want 105", got[1].Close)
	}
}

func TestRecentBars_Limit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	var bars []model.OHLCV
	for i := 1; i <= 9; i++ {
		bars = append(bars, model.OHLCV{
			Date: time.Date(2024, 3, i, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
			Close: float64(100 + i), Volume: 1000,
		})
	}
	if err := s.SaveBars(ctx, "AAPL", bars); err != nil {
		t.Fatalf("save bars: %v", err)
	}

	got, err := s.RecentBars(ctx, "AAPL", 3)
	if err != nil {
		t.Fatalf("recent bars: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("bars = %d, want 3", len(got))
	}
	if got[0].Date != "2024-03-07" || got[2].Date != "2024-03-09" {
		t.Errorf("window = %v .. %v, want most recent three ascending", got[0].Date, got[2].Date)
	}
}

func TestHoldings_DerivedFields(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	h := model.Holding{
		InstrumentID: "7203",
		AccountClass: "nisa",
		Quantity:     decimal.NewFromInt(100),
		AvgCost:      decimal.NewFromFloat(2500),
		Currency:     model.CurrencyJPY,
		UpdatedAt:    time.Now(),
	}
	h.Derive(decimal.NewFromFloat(2600))
	if err := s.UpsertHolding(ctx, h); err != nil {
		t.Fatalf("upsert holding: %v", err)
	}

	// A price update must atomically recompute both derived fields.
	if err := s.UpdateHoldingPrice(ctx, "7203", "nisa", decimal.NewFromFloat(2700)); err != nil {
		t.Fatalf("update price: %v", err)
	}

	holdings, err := s.Holdings(ctx)
	if err != nil {
		t.Fatalf("holdings: %v", err)
	}
	if len(holdings) != 1 {
		t.Fatalf("holdings = %d, want 1", len(holdings))
	}
	got := holdings[0]
	if !got.MarketValue.Equal(decimal.NewFromInt(270000)) {
		t.Errorf("market value = %s, want 270000", got.MarketValue)
	}
	if !got.UnrealizedPnL.Equal(decimal.NewFromInt(20000)) {
		t.Errorf("unrealized pnl = %s, want 20000", got.UnrealizedPnL)
	}

	holding, err := s.IsHolding(ctx, "7203")
	if err != nil || !holding {
		t.Errorf("IsHolding = (%v, %v), want true", holding, err)
	}
	holding, _ = s.IsHolding(ctx, "AAPL")
	if holding {
		t.Error("AAPL should not be held")
	}
}

func TestUpdateHoldingPrice_Missing(t *testing.T) {
	s := testStore(t)
	err := s.UpdateHoldingPrice(context.Background(), "NOPE", "nisa", decimal.NewFromInt(1))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSnapshots(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	days := []model.PortfolioSnapshot{
		{Date: "2024-03-13", TotalValue: 100000, DailyPnL: 0, MonthStartValue: 98000},
		{Date: "2024-03-14", TotalValue: 101500, DailyPnL: 1500, MonthStartValue: 98000},
	}
	for _, snap := range days {
		if err := s.SaveSnapshot(ctx, snap); err != nil {
			t.Fatalf("save snapshot: %v", err)
		}
	}

	got, err := s.SnapshotOn(ctx, "2024-03-14")
	if err != nil {
		t.Fatalf("snapshot on: %v", err)
	}
	if got.TotalValue != 101500 {
		t.Errorf("total = %v, want 101500", got.TotalValue)
	}

	prev, err := s.LatestSnapshotBefore(ctx, "2024-03-14")
	if err != nil {
		t.Fatalf("latest before: %v", err)
	}
	if prev.Date != "2024-03-13" {
		t.Errorf("previous date = %s, want 2024-03-13", prev.Date)
	}

	if _, err := s.LatestSnapshotBefore(ctx, "2024-03-13"); !errors.Is(err, ErrNotFound) {
		t.Errorf("no earlier snapshot: err = %v, want ErrNotFound", err)
	}
}

func TestEventsBetween(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	events := []model.CalendarEvent{
		{Date: "2024-03-10", Description: "past", Importance: 3},
		{Date: "2024-03-19", Description: "FOMC", Importance: 3},
		{Date: "2024-03-25", Description: "earnings", Importance: 2},
		{Date: "2024-04-10", Description: "far future", Importance: 3},
	}
	for _, ev := range events {
		if err := s.AddEvent(ctx, ev); err != nil {
			t.Fatalf("add event: %v", err)
		}
	}

	got, err := s.EventsBetween(ctx, "2024-03-15", "2024-03-29")
	if err != nil {
		t.Fatalf("events between: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].Description != "FOMC" {
		t.Errorf("first = %s, want FOMC", got[0].Description)
	}
}

func TestNotificationLog(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	d := &model.Decision{
		ID: "abc", Symbol: "7203", Action: model.ActionBuy,
		Confidence: 0.7, Timestamp: time.Now(),
	}
	if err := s.LogNotification(ctx, d, true, "BUY"); err != nil {
		t.Fatalf("log success: %v", err)
	}
	if err := s.LogNotification(ctx, d, false, "transport down"); err != nil {
		t.Fatalf("log failure: %v", err)
	}

	recs, err := s.NotificationsSince(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("notifications since: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	delivered := 0
	for _, r := range recs {
		if r.Delivered {
			delivered++
		}
	}
	if delivered != 1 {
		t.Errorf("delivered = %d, want 1", delivered)
	}
}

func TestSignalHistory(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	for i, action := range []model.Action{model.ActionWatch, model.ActionBuy} {
		d := &model.Decision{
			ID:         "id-" + string(rune('a'+i)),
			Symbol:     "AAPL",
			Action:     action,
			Confidence: 0.6 + float64(i)*0.1,
			Horizon:    "60d",
			L1:         model.ReachSignal{Probability: 0.65},
			L2:         model.ReachSignal{Probability: 0.62},
			L3:         model.RiskSignal{SharpeRatio: 0.8},
			L4:         model.TrendSignalResult{State: model.TrendUp},
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.AddSignalHistory(ctx, d); err != nil {
			t.Fatalf("add signal history: %v", err)
		}
	}

	recs, err := s.SignalHistory(ctx, "AAPL", 10)
	if err != nil {
		t.Fatalf("signal history: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0].Action != string(model.ActionBuy) {
		t.Errorf("newest first, got %q", recs[0].Action)
	}
	if recs[0].Sharpe != 0.8 || recs[0].L1Prob != 0.65 {
		t.Errorf("record = %+v", recs[0])
	}
}

func TestCleanupIntradayPrices(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	bars := []model.OHLCV{
		{Date: "2024-03-13", Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000},
		{Date: "2024-03-14", Open: 100, High: 102, Low: 100, Close: 101, Volume: 1200},
		{Date: "2024-03-15", Open: 101, High: 101, Low: 101, Close: 101, Volume: 0},
	}
	if err := s.SaveBars(ctx, "7203", bars); err != nil {
		t.Fatalf("save bars: %v", err)
	}

	if err := s.CleanupIntradayPrices(ctx, "7203", "2024-03-14"); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	got, err := s.RecentBars(ctx, "7203", 10)
	if err != nil {
		t.Fatalf("recent bars: %v", err)
	}
	if len(got) != 2 || got[len(got)-1].Date != "2024-03-14" {
		t.Errorf("bars after cleanup = %+v", got)
	}
}
