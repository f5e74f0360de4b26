package pipeline

import (
	"time"

	"StockSentinel/internal/model"
)

var (
	tokyoTZ   = mustLoad("Asia/Tokyo", 9*3600)
	newYorkTZ = mustLoad("America/New_York", -5*3600)
)

func mustLoad(name string, fallbackOffset int) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, fallbackOffset)
	}
	return loc
}

// MarketOpen reports whether the market's regular session is in progress.
// Sessions are simplified to fixed weekday windows; exchange holidays are
// not modeled.
func MarketOpen(market model.Market, t time.Time) bool {
	switch market {
	case model.MarketJP:
		return sessionOpen(t.In(tokyoTZ), 9*60, 15*60)
	case model.MarketUS:
		return sessionOpen(t.In(newYorkTZ), 9*60+30, 16*60)
	default:
		return false
	}
}

func sessionOpen(local time.Time, openMin, closeMin int) bool {
	wd := local.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	m := local.Hour()*60 + local.Minute()
	return m >= openMin && m < closeMin
}

// marketToday is the current trading date in the market's local timezone.
func marketToday(market model.Market, t time.Time) string {
	if market == model.MarketUS {
		return t.In(newYorkTZ).Format("2006-01-02")
	}
	return t.In(tokyoTZ).Format("2006-01-02")
}

// AnyMarketOpen reports whether at least one tracked market is in session.
func AnyMarketOpen(t time.Time) bool {
	return MarketOpen(model.MarketJP, t) || MarketOpen(model.MarketUS, t)
}
