package calculator

// MACD computes the 12/26 MACD line, its 9-point signal line and the
// histogram (line - signal). Returns zeros when fewer than 26 values are
// available.
func MACD(closes []float64) (line, signal, histogram float64) {
	e12 := emaSeries(closes, 12)
	e26 := emaSeries(closes, 26)
	if len(e26) == 0 || len(e12) == 0 {
		return 0, 0, 0
	}

	// The EMA26 series starts 14 bars after the EMA12 series; align on the
	// shorter one.
	offset := len(e12) - len(e26)
	macdLine := make([]float64, len(e26))
	for i := range e26 {
		macdLine[i] = e12[i+offset] - e26[i]
	}

	line = macdLine[len(macdLine)-1]
	sig := emaSeries(macdLine, 9)
	if len(sig) == 0 {
		signal = SMA(macdLine, 9)
	} else {
		signal = sig[len(sig)-1]
	}
	return line, signal, line - signal
}
