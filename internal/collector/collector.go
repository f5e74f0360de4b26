package collector

import (
	"context"
	"fmt"
	"log"
	"time"

	"StockSentinel/internal/model"
)

// Retry policy for transient provider failures.
const (
	maxFetchRetries   = 5
	initialRetryDelay = 2 * time.Second
)

// Collector routes instruments to providers. Equities and ETFs use the CSV
// source first and fall back to the JSON chart API; funds use the fund
// scraper. A pacing delay is interposed between outbound fetches to stay
// under provider rate limits.
type Collector struct {
	Primary    Fetcher
	Fallback   Fetcher
	Fund       Fetcher
	Pace       time.Duration
	FundPace   time.Duration
	Retries    int
	RetryDelay time.Duration

	lastFetch time.Time
}

// NewCollector wires the provider set with the default pacing and retry
// policy.
func NewCollector(primary, fallback, fund Fetcher) *Collector {
	return &Collector{
		Primary:    primary,
		Fallback:   fallback,
		Fund:       fund,
		Pace:       1200 * time.Millisecond,
		FundPace:   2 * time.Second,
		Retries:    maxFetchRetries,
		RetryDelay: initialRetryDelay,
	}
}

// Series fetches the last `days` daily bars for an instrument, retrying
// transient failures with exponential backoff and falling back to the
// secondary provider for non-fund instruments.
func (c *Collector) Series(ctx context.Context, inst model.Instrument, days int) ([]model.OHLCV, error) {
	if inst.Asset == model.AssetMutualFund {
		if err := c.pace(ctx, c.FundPace); err != nil {
			return nil, err
		}
		return c.fetchWithRetry(ctx, c.Fund, inst.ID, days)
	}

	if err := c.pace(ctx, c.Pace); err != nil {
		return nil, err
	}
	bars, err := c.fetchWithRetry(ctx, c.Primary, stooqSymbol(inst.ID, inst.Market), days)
	if err == nil {
		return bars, nil
	}
	log.Printf("[WARN] %s fetch via %s failed: %v, trying %s",
		inst.ID, c.Primary.Name(), err, c.Fallback.Name())

	if err := c.pace(ctx, c.Pace); err != nil {
		return nil, err
	}
	bars, err = c.fetchWithRetry(ctx, c.Fallback, yahooSymbol(inst.ID, inst.Market), days)
	if err != nil {
		return nil, fmt.Errorf("all providers failed for %s: %w", inst.ID, err)
	}
	return bars, nil
}

// Quote fetches the latest quote for an instrument.
func (c *Collector) Quote(ctx context.Context, inst model.Instrument) (Quote, error) {
	if inst.Asset == model.AssetMutualFund {
		if err := c.pace(ctx, c.FundPace); err != nil {
			return Quote{}, err
		}
		return c.Fund.FetchQuote(ctx, inst.ID)
	}
	if err := c.pace(ctx, c.Pace); err != nil {
		return Quote{}, err
	}
	q, err := c.Primary.FetchQuote(ctx, stooqSymbol(inst.ID, inst.Market))
	if err == nil {
		return q, nil
	}
	if err := c.pace(ctx, c.Pace); err != nil {
		return Quote{}, err
	}
	return c.Fallback.FetchQuote(ctx, yahooSymbol(inst.ID, inst.Market))
}

// pace sleeps long enough that consecutive outbound fetches are at least
// `delay` apart.
func (c *Collector) pace(ctx context.Context, delay time.Duration) error {
	if delay <= 0 || c.lastFetch.IsZero() {
		c.lastFetch = time.Now()
		return nil
	}
	wait := delay - time.Since(c.lastFetch)
	if wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	c.lastFetch = time.Now()
	return nil
}

// fetchWithRetry retries transient failures with exponential backoff.
func (c *Collector) fetchWithRetry(ctx context.Context, f Fetcher, symbol string, days int) ([]model.OHLCV, error) {
	var lastErr error
	delay := c.RetryDelay
	for attempt := 1; attempt <= c.Retries; attempt++ {
		bars, err := f.FetchSeries(ctx, symbol, days)
		if err == nil {
			return bars, nil
		}
		lastErr = err
		if attempt == c.Retries {
			break
		}
		log.Printf("[WARN] %s fetch %s failed (attempt %d/%d): %v, retrying in %v",
			f.Name(), symbol, attempt, c.Retries, err, delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, fmt.Errorf("%s: %d attempts exhausted: %w", f.Name(), c.Retries, lastErr)
}
