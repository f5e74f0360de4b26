package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market identifies the exchange region an instrument trades in.
type Market string

const (
	MarketJP Market = "JP"
	MarketUS Market = "US"
)

// AssetType classifies an instrument.
type AssetType string

const (
	AssetStock      AssetType = "stock"
	AssetETF        AssetType = "etf"
	AssetMutualFund AssetType = "mutual_fund"
)

// Currency is the denomination of a holding.
type Currency string

const (
	CurrencyJPY Currency = "JPY"
	CurrencyUSD Currency = "USD"
)

// Instrument is a tracked equity or fund. Immutable after creation except
// for the Active flag.
type Instrument struct {
	ID     string
	Name   string
	Market Market
	Asset  AssetType
	Active bool
}

// OHLCV is one daily bar. Date is the trading day in YYYY-MM-DD; series are
// consumed chronologically ascending.
type OHLCV struct {
	Date     string
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	AdjClose float64
}

// Holding is a position in an instrument. MarketValue and UnrealizedPnL are
// derived: quantity*current_price and quantity*(current_price-avg_cost).
// Any price update must recompute both in the same write.
type Holding struct {
	InstrumentID  string
	AccountClass  string
	Quantity      decimal.Decimal
	AvgCost       decimal.Decimal
	CurrentPrice  decimal.Decimal
	MarketValue   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Currency      Currency
	UpdatedAt     time.Time
}

// Derive recomputes the derived fields from quantity, average cost and the
// given price.
func (h *Holding) Derive(price decimal.Decimal) {
	h.CurrentPrice = price
	h.MarketValue = h.Quantity.Mul(price)
	h.UnrealizedPnL = h.Quantity.Mul(price.Sub(h.AvgCost))
}

// PortfolioSnapshot records total portfolio value for one calendar day.
// Weekly and monthly P&L derive from earlier snapshots.
type PortfolioSnapshot struct {
	Date            string
	TotalValue      float64
	DailyPnL        float64
	MonthStartValue float64
}

// CalendarEvent is an upcoming market event. Importance runs 1 (minor) to
// 3 (major).
type CalendarEvent struct {
	Date        string
	Description string
	Importance  int
}
