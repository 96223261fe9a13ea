package pulses

// timeAxis returns n samples spaced by dt starting at zero.
func timeAxis(n int, dt float64) []float64 {
	t := make([]float64, n)
	for k := range t {
		t[k] = float64(k) * dt
	}
	return t
}

// rectangular returns n zero samples with [from, to) set to amp.
func rectangular(n, from, to int, amp float64) []float64 {
	i := make([]float64, n)
	for k := from; k < to; k++ {
		i[k] = amp
	}
	return i
}

// recordOf builds a record around a current channel sampled every nanosecond.
func recordOf(i []float64) WaveformRecord {
	return WaveformRecord{
		T: timeAxis(len(i), 1e-9),
		V: make([]float64, len(i)),
		I: i,
	}
}

// addPulse sets amp over [from, to) of i.
func addPulse(i []float64, from, to int, amp float64) {
	for k := from; k < to; k++ {
		i[k] = amp
	}
}
