package model

// IndicatorBundle holds all computed technical indicators for one series.
type IndicatorBundle struct {
	SMA20  float64
	SMA60  float64
	SMA120 float64
	EMA12  float64
	EMA26  float64

	RSI14 float64

	MACDLine      float64
	MACDSignal    float64
	MACDHistogram float64

	ATR20 float64
	ADX14 float64
	DIPlus  float64
	DIMinus float64

	BollingerUpper  float64
	BollingerMiddle float64
	BollingerLower  float64

	VolumeRatio float64

	High52w float64
	Low52w  float64
}
