package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"StockSentinel/internal/model"
)

// FundFetcher scrapes mutual-fund NAV series published as CSV by fund code.
// Instruments carry display names; the curated CodeMap translates them.
type FundFetcher struct {
	BaseURL string
	CodeMap map[string]string
	Client  *http.Client
}

// NewFundFetcher creates a fund NAV fetcher.
func NewFundFetcher(baseURL string, codeMap map[string]string, proxyURL string) *FundFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if codeMap == nil {
		codeMap = map[string]string{}
	}
	return &FundFetcher{
		BaseURL: baseURL,
		CodeMap: codeMap,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *FundFetcher) Name() string { return "fund" }

func (f *FundFetcher) code(symbol string) (string, error) {
	if code, ok := f.CodeMap[symbol]; ok {
		return code, nil
	}
	return "", fmt.Errorf("no fund code mapping for %q", symbol)
}

// FetchSeries downloads the NAV CSV for the mapped fund code. Funds publish
// one NAV per day; open/high/low mirror the close.
func (f *FundFetcher) FetchSeries(ctx context.Context, symbol string, days int) ([]model.OHLCV, error) {
	code, err := f.code(symbol)
	if err != nil {
		return nil, err
	}
	reqURL := fmt.Sprintf("%s?code=%s", f.BaseURL, url.QueryEscape(code))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch fund %s: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fund source %s: status %d", symbol, resp.StatusCode)
	}

	bars, err := parseCSVBars(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse fund csv %s: %w", symbol, err)
	}
	for i := range bars {
		if bars[i].Open == 0 {
			bars[i].Open = bars[i].Close
		}
		if bars[i].High == 0 {
			bars[i].High = bars[i].Close
		}
		if bars[i].Low == 0 {
			bars[i].Low = bars[i].Close
		}
	}
	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

// FetchQuote returns the latest NAV pair.
func (f *FundFetcher) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	bars, err := f.FetchSeries(ctx, symbol, 5)
	if err != nil {
		return Quote{}, err
	}
	if len(bars) == 0 {
		return Quote{}, fmt.Errorf("fund quote %s: empty series", symbol)
	}
	q := Quote{Price: bars[len(bars)-1].Close}
	if len(bars) >= 2 {
		q.PrevClose = bars[len(bars)-2].Close
	}
	return q, nil
}
