package calculator

import (
	"errors"

	"StockSentinel/internal/model"
)

// MinBars is the minimum series length for a full indicator bundle.
const MinBars = 60

// ErrInsufficientData is returned when a series is too short for a full
// indicator bundle.
var ErrInsufficientData = errors.New("insufficient data: need at least 60 bars")

// Compute derives the full indicator bundle from an ascending daily series.
func Compute(bars []model.OHLCV) (*model.IndicatorBundle, error) {
	if len(bars) < MinBars {
		return nil, ErrInsufficientData
	}

	closes := ExtractCloses(bars)
	bundle := &model.IndicatorBundle{
		SMA20:  SMA(closes, 20),
		SMA60:  SMA(closes, 60),
		SMA120: SMA(closes, 120),
		EMA12:  EMA(closes, 12),
		EMA26:  EMA(closes, 26),
		RSI14:  RSI(bars, 14),
	}

	bundle.MACDLine, bundle.MACDSignal, bundle.MACDHistogram = MACD(closes)
	bundle.ATR20 = ATR(bars, 20)
	bundle.ADX14, bundle.DIPlus, bundle.DIMinus = ADX(bars, 14)
	bundle.BollingerUpper, bundle.BollingerMiddle, bundle.BollingerLower = Bollinger(closes, 20, 2.0)
	bundle.VolumeRatio = VolumeRatio(bars, 20)
	bundle.High52w, bundle.Low52w = Range52Week(bars)

	return bundle, nil
}
