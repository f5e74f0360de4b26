package collector

import (
	"context"
	"time"

	"StockSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price  float64
	Series []model.OHLCV
	Err    error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchSeries(_ context.Context, _ string, days int) ([]model.OHLCV, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Series != nil {
		return m.Series, nil
	}
	return generateMockBars(m.Price, days), nil
}

func (m *MockFetcher) FetchQuote(_ context.Context, _ string) (Quote, error) {
	if m.Err != nil {
		return Quote{}, m.Err
	}
	if n := len(m.Series); n >= 2 {
		return Quote{Price: m.Series[n-1].Close, PrevClose: m.Series[n-2].Close}, nil
	}
	return Quote{Price: m.Price, PrevClose: m.Price}, nil
}

func generateMockBars(basePrice float64, count int) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Date:     time.Now().AddDate(0, 0, -(count - i)).Format("2006-01-02"),
			Open:     p * 0.999,
			High:     p * 1.005,
			Low:      p * 0.995,
			Close:    p,
			Volume:   1000000,
			AdjClose: p,
		}
	}
	return bars
}
