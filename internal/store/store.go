package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"StockSentinel/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Store persists instruments, price series, holdings, snapshots, calendar
// events, signal history, and the notification audit log to a SQLite
// database.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (or creates) the SQLite database and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so the admin server can read while the pipeline writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS instruments (
			symbol     TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			market     TEXT NOT NULL,
			asset_type TEXT NOT NULL,
			active     INTEGER NOT NULL DEFAULT 1
		)`,

		`CREATE TABLE IF NOT EXISTS prices (
			symbol    TEXT NOT NULL,
			date      TEXT NOT NULL,
			open      REAL,
			high      REAL,
			low       REAL,
			close     REAL,
			volume    REAL,
			adj_close REAL,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_symbol_date ON prices(symbol, date)`,

		`CREATE TABLE IF NOT EXISTS holdings (
			symbol         TEXT NOT NULL,
			account_class  TEXT NOT NULL,
			quantity       TEXT NOT NULL,
			avg_cost       TEXT NOT NULL,
			current_price  TEXT NOT NULL,
			market_value   TEXT NOT NULL,
			unrealized_pnl TEXT NOT NULL,
			currency       TEXT NOT NULL,
			updated_at     INTEGER NOT NULL,
			PRIMARY KEY (symbol, account_class)
		)`,

		`CREATE TABLE IF NOT EXISTS snapshots (
			date              TEXT PRIMARY KEY,
			total_value       REAL NOT NULL,
			daily_pnl         REAL NOT NULL,
			month_start_value REAL NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS calendar_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			date        TEXT NOT NULL,
			description TEXT NOT NULL,
			importance  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_date ON calendar_events(date)`,

		`CREATE TABLE IF NOT EXISTS signal_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			decision_id TEXT NOT NULL,
			symbol      TEXT NOT NULL,
			action      TEXT NOT NULL,
			confidence  REAL NOT NULL,
			horizon     TEXT NOT NULL,
			l1_prob     REAL NOT NULL,
			l2_prob     REAL NOT NULL,
			sharpe      REAL NOT NULL,
			trend_state TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signal_symbol_ts ON signal_history(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS notification_log (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			decision_id TEXT NOT NULL,
			symbol      TEXT NOT NULL,
			action      TEXT NOT NULL,
			confidence  REAL NOT NULL,
			delivered   INTEGER NOT NULL,
			detail      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_ts ON notification_log(timestamp)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertInstrument inserts or replaces an instrument row.
func (s *Store) UpsertInstrument(ctx context.Context, inst model.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := 0
	if inst.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO instruments (symbol, name, market, asset_type, active)
		 VALUES (?, ?, ?, ?, ?)`,
		inst.ID, inst.Name, string(inst.Market), string(inst.Asset), active)
	if err != nil {
		return fmt.Errorf("upsert instrument %s: %w", inst.ID, err)
	}
	return nil
}

// SetInstrumentActive flips the active flag.
func (s *Store) SetInstrumentActive(ctx context.Context, symbol string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := 0
	if active {
		v = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE instruments SET active = ? WHERE symbol = ?`, v, symbol)
	if err != nil {
		return fmt.Errorf("set active %s: %w", symbol, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveInstruments lists instruments with the active flag set.
func (s *Store) ActiveInstruments(ctx context.Context) ([]model.Instrument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, name, market, asset_type, active FROM instruments
		 WHERE active = 1 ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var out []model.Instrument
	for rows.Next() {
		var inst model.Instrument
		var market, asset string
		var active int
		if err := rows.Scan(&inst.ID, &inst.Name, &market, &asset, &active); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		inst.Market = model.Market(market)
		inst.Asset = model.AssetType(asset)
		inst.Active = active == 1
		out = append(out, inst)
	}
	return out, rows.Err()
}

// SaveBars writes a batch of daily bars. Inserts are idempotent: re-saving
// the same (symbol, date) replaces the row.
func (s *Store) SaveBars(ctx context.Context, symbol string, bars []model.OHLCV) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save bars: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO prices (symbol, date, open, high, low, close, volume, adj_close)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare save bars: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx,
			symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume, b.AdjClose); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert bar %s %s: %w", symbol, b.Date, err)
		}
	}
	return tx.Commit()
}

// RecentBars returns up to n most recent bars in ascending date order.
func (s *Store) RecentBars(ctx context.Context, symbol string, n int) ([]model.OHLCV, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, open, high, low, close, volume, adj_close
		 FROM (SELECT * FROM prices WHERE symbol = ? ORDER BY date DESC LIMIT ?)
		 ORDER BY date ASC`, symbol, n)
	if err != nil {
		return nil, fmt.Errorf("query bars %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []model.OHLCV
	for rows.Next() {
		var b model.OHLCV
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.AdjClose); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// UpsertHolding writes a holding row. Monetary fields round-trip as decimal
// strings to avoid float drift.
func (s *Store) UpsertHolding(ctx context.Context, h model.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO holdings
		 (symbol, account_class, quantity, avg_cost, current_price, market_value, unrealized_pnl, currency, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.InstrumentID, h.AccountClass,
		h.Quantity.String(), h.AvgCost.String(), h.CurrentPrice.String(),
		h.MarketValue.String(), h.UnrealizedPnL.String(),
		string(h.Currency), h.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert holding %s: %w", h.InstrumentID, err)
	}
	return nil
}

// UpdateHoldingPrice sets a new price and recomputes the derived fields in
// the same write.
func (s *Store) UpdateHoldingPrice(ctx context.Context, symbol, accountClass string, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.holding(ctx, symbol, accountClass)
	if err != nil {
		return err
	}
	h.Derive(price)
	h.UpdatedAt = time.Now()

	_, err = s.db.ExecContext(ctx,
		`UPDATE holdings SET current_price = ?, market_value = ?, unrealized_pnl = ?, updated_at = ?
		 WHERE symbol = ? AND account_class = ?`,
		h.CurrentPrice.String(), h.MarketValue.String(), h.UnrealizedPnL.String(),
		h.UpdatedAt.Unix(), symbol, accountClass)
	if err != nil {
		return fmt.Errorf("update holding price %s: %w", symbol, err)
	}
	return nil
}

func (s *Store) holding(ctx context.Context, symbol, accountClass string) (*model.Holding, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT symbol, account_class, quantity, avg_cost, current_price, market_value, unrealized_pnl, currency, updated_at
		 FROM holdings WHERE symbol = ? AND account_class = ?`, symbol, accountClass)
	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return h, err
}

// Holdings lists all holdings.
func (s *Store) Holdings(ctx context.Context) ([]model.Holding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, account_class, quantity, avg_cost, current_price, market_value, unrealized_pnl, currency, updated_at
		 FROM holdings ORDER BY symbol, account_class`)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()

	var out []model.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// IsHolding reports whether any account holds the instrument.
func (s *Store) IsHolding(ctx context.Context, symbol string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM holdings WHERE symbol = ?`, symbol).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count holdings %s: %w", symbol, err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHolding(r rowScanner) (*model.Holding, error) {
	var h model.Holding
	var qty, cost, price, value, pnl, currency string
	var updated int64
	if err := r.Scan(&h.InstrumentID, &h.AccountClass, &qty, &cost, &price, &value, &pnl, &currency, &updated); err != nil {
		return nil, err
	}
	var err error
	if h.Quantity, err = decimal.NewFromString(qty); err != nil {
		return nil, fmt.Errorf("parse quantity: %w", err)
	}
	if h.AvgCost, err = decimal.NewFromString(cost); err != nil {
		return nil, fmt.Errorf("parse avg cost: %w", err)
	}
	if h.CurrentPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	if h.MarketValue, err = decimal.NewFromString(value); err != nil {
		return nil, fmt.Errorf("parse market value: %w", err)
	}
	if h.UnrealizedPnL, err = decimal.NewFromString(pnl); err != nil {
		return nil, fmt.Errorf("parse pnl: %w", err)
	}
	h.Currency = model.Currency(currency)
	h.UpdatedAt = time.Unix(updated, 0)
	return &h, nil
}

// SaveSnapshot writes the day's portfolio snapshot. One row per calendar
// day; re-saving replaces it.
func (s *Store) SaveSnapshot(ctx context.Context, snap model.PortfolioSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots (date, total_value, daily_pnl, month_start_value)
		 VALUES (?, ?, ?, ?)`,
		snap.Date, snap.TotalValue, snap.DailyPnL, snap.MonthStartValue)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.Date, err)
	}
	return nil
}

// SnapshotOn returns the snapshot for one calendar day.
func (s *Store) SnapshotOn(ctx context.Context, date string) (*model.PortfolioSnapshot, error) {
	var snap model.PortfolioSnapshot
	err := s.db.QueryRowContext(ctx,
		`SELECT date, total_value, daily_pnl, month_start_value FROM snapshots WHERE date = ?`,
		date).Scan(&snap.Date, &snap.TotalValue, &snap.DailyPnL, &snap.MonthStartValue)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot %s: %w", date, err)
	}
	return &snap, nil
}

// LatestSnapshotBefore returns the most recent snapshot strictly before the
// given date.
func (s *Store) LatestSnapshotBefore(ctx context.Context, date string) (*model.PortfolioSnapshot, error) {
	var snap model.PortfolioSnapshot
	err := s.db.QueryRowContext(ctx,
		`SELECT date, total_value, daily_pnl, month_start_value FROM snapshots
		 WHERE date < ? ORDER BY date DESC LIMIT 1`,
		date).Scan(&snap.Date, &snap.TotalValue, &snap.DailyPnL, &snap.MonthStartValue)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot before %s: %w", date, err)
	}
	return &snap, nil
}

// AddEvent records a calendar event.
func (s *Store) AddEvent(ctx context.Context, ev model.CalendarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calendar_events (date, description, importance) VALUES (?, ?, ?)`,
		ev.Date, ev.Description, ev.Importance)
	if err != nil {
		return fmt.Errorf("add event: %w", err)
	}
	return nil
}

// EventsBetween lists events with from <= date <= to, ascending.
func (s *Store) EventsBetween(ctx context.Context, from, to string) ([]model.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, description, importance FROM calendar_events
		 WHERE date >= ? AND date <= ? ORDER BY date`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []model.CalendarEvent
	for rows.Next() {
		var ev model.CalendarEvent
		if err := rows.Scan(&ev.Date, &ev.Description, &ev.Importance); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// AddSignalHistory appends one row recording a non-HOLD decision.
func (s *Store) AddSignalHistory(ctx context.Context, d *model.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signal_history (timestamp, decision_id, symbol, action, confidence, horizon, l1_prob, l2_prob, sharpe, trend_state)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Timestamp.Unix(), d.ID, d.Symbol, string(d.Action), d.Confidence, d.Horizon,
		d.L1.Probability, d.L2.Probability, d.L3.SharpeRatio, string(d.L4.State))
	if err != nil {
		return fmt.Errorf("add signal history: %w", err)
	}
	return nil
}

// SignalHistory lists the most recent history rows for a symbol, newest
// first.
func (s *Store) SignalHistory(ctx context.Context, symbol string, limit int) ([]SignalRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, decision_id, action, confidence, horizon, l1_prob, l2_prob, sharpe, trend_state
		 FROM signal_history WHERE symbol = ? ORDER BY timestamp DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query signal history: %w", err)
	}
	defer rows.Close()

	var out []SignalRecord
	for rows.Next() {
		rec := SignalRecord{Symbol: symbol}
		var ts int64
		if err := rows.Scan(&ts, &rec.DecisionID, &rec.Action, &rec.Confidence, &rec.Horizon,
			&rec.L1Prob, &rec.L2Prob, &rec.Sharpe, &rec.TrendState); err != nil {
			return nil, fmt.Errorf("scan signal history: %w", err)
		}
		rec.Timestamp = time.Unix(ts, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SignalRecord is one signal_history row.
type SignalRecord struct {
	Timestamp  time.Time
	DecisionID string
	Symbol     string
	Action     string
	Confidence float64
	Horizon    string
	L1Prob     float64
	L2Prob     float64
	Sharpe     float64
	TrendState string
}

// CleanupIntradayPrices removes bars newer than the given trading day. The
// monitoring tick writes provisional bars for the current session; the daily
// job replaces them with the confirmed close.
func (s *Store) CleanupIntradayPrices(ctx context.Context, symbol, lastConfirmed string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM prices WHERE symbol = ? AND date > ?`, symbol, lastConfirmed)
	if err != nil {
		return fmt.Errorf("cleanup intraday prices: %w", err)
	}
	return nil
}

// LogNotification appends one delivery-attempt row to the audit log.
func (s *Store) LogNotification(ctx context.Context, d *model.Decision, delivered bool, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := 0
	if delivered {
		v = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_log (timestamp, decision_id, symbol, action, confidence, delivered, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().Unix(), d.ID, d.Symbol, string(d.Action), d.Confidence, v, detail)
	if err != nil {
		return fmt.Errorf("log notification: %w", err)
	}
	return nil
}

// NotificationsSince lists audit rows at or after the given unix timestamp,
// newest first.
func (s *Store) NotificationsSince(ctx context.Context, since time.Time) ([]NotificationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, decision_id, symbol, action, confidence, delivered, detail
		 FROM notification_log WHERE timestamp >= ? ORDER BY timestamp DESC`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []NotificationRecord
	for rows.Next() {
		var rec NotificationRecord
		var ts int64
		var delivered int
		if err := rows.Scan(&ts, &rec.DecisionID, &rec.Symbol, &rec.Action, &rec.Confidence, &delivered, &rec.Detail); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		rec.Timestamp = time.Unix(ts, 0)
		rec.Delivered = delivered == 1
		out = append(out, rec)
	}
	return out, rows.Err()
}

// NotificationRecord is one audit log row.
type NotificationRecord struct {
	Timestamp  time.Time
	DecisionID string
	Symbol     string
	Action     string
	Confidence float64
	Delivered  bool
	Detail     string
}
