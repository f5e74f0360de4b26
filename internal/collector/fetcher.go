package collector

import (
	"context"

	"StockSentinel/internal/model"
)

// Quote is the latest price pair from a provider.
type Quote struct {
	Price     float64
	PrevClose float64
}

// Fetcher is the capability set a price provider must offer. Variants cover
// CSV downloads, JSON chart APIs, and fund-price scraping.
type Fetcher interface {
	FetchSeries(ctx context.Context, symbol string, days int) ([]model.OHLCV, error)
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
	Name() string
}
