package calculator

import "math"

// Bollinger computes the Bollinger bands over `period` closes with the given
// sigma width: SMA(period) +/- width*stdev. The standard deviation is the
// population deviation of the window.
func Bollinger(closes []float64, period int, width float64) (upper, middle, lower float64) {
	if len(closes) == 0 || period <= 0 {
		return 0, 0, 0
	}
	n := period
	if len(closes) < n {
		n = len(closes)
	}
	window := closes[len(closes)-n:]

	middle = SMA(closes, period)
	variance := 0.0
	for _, c := range window {
		d := c - middle
		variance += d * d
	}
	variance /= float64(n)
	dev := math.Sqrt(variance)
	return middle + width*dev, middle, middle - width*dev
}
