package collector

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"StockSentinel/internal/model"
)

// StooqFetcher downloads daily CSV series from the Stooq public endpoint.
// This is the primary source: free, daily granularity, no key.
type StooqFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewStooqFetcher creates a CSV fetcher with optional proxy support.
func NewStooqFetcher(proxyURL string) *StooqFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &StooqFetcher{
		BaseURL: "https://stooq.com/q/d/l/",
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *StooqFetcher) Name() string { return "stooq" }

// stooqSymbol maps an instrument id and market to the provider ticker:
// Tokyo listings get a .jp suffix, US listings a .us suffix.
func stooqSymbol(symbol string, market model.Market) string {
	s := strings.ToLower(symbol)
	if strings.Contains(s, ".") {
		return s
	}
	if market == model.MarketJP {
		return s + ".jp"
	}
	return s + ".us"
}

// FetchSeries downloads the last `days` daily bars, ascending. The symbol
// must already carry its provider suffix (see stooqSymbol).
func (f *StooqFetcher) FetchSeries(ctx context.Context, symbol string, days int) ([]model.OHLCV, error) {
	from := time.Now().AddDate(0, 0, -days*7/5).Format("20060102")
	reqURL := fmt.Sprintf("%s?s=%s&d1=%s&i=d", f.BaseURL, url.QueryEscape(symbol), from)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch csv %s: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("csv source %s: status %d", symbol, resp.StatusCode)
	}

	bars, err := parseCSVBars(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", symbol, err)
	}
	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

// FetchQuote derives the latest quote from the tail of the daily series.
func (f *StooqFetcher) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	bars, err := f.FetchSeries(ctx, symbol, 5)
	if err != nil {
		return Quote{}, err
	}
	if len(bars) == 0 {
		return Quote{}, fmt.Errorf("quote %s: empty series", symbol)
	}
	q := Quote{Price: bars[len(bars)-1].Close}
	if len(bars) >= 2 {
		q.PrevClose = bars[len(bars)-2].Close
	}
	return q, nil
}

// parseCSVBars reads a Date,Open,High,Low,Close,Volume CSV body in ascending
// date order. Rows with unparsable numbers are skipped.
func parseCSVBars(r io.Reader) ([]model.OHLCV, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("csv has no data rows")
	}

	var bars []model.OHLCV
	for _, rec := range records[1:] {
		if len(rec) < 6 {
			continue
		}
		open, err1 := strconv.ParseFloat(rec[1], 64)
		high, err2 := strconv.ParseFloat(rec[2], 64)
		low, err3 := strconv.ParseFloat(rec[3], 64)
		closeP, err4 := strconv.ParseFloat(rec[4], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		volume, _ := strconv.ParseFloat(rec[5], 64)
		bars = append(bars, model.OHLCV{
			Date:     rec[0],
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closeP,
			Volume:   volume,
			AdjClose: closeP,
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("csv rows all unparsable")
	}
	return bars, nil
}
