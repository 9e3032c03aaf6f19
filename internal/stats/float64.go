package stats

import (
	"math"
	"strconv"
)

// MeanFloat64 returns NaN for an empty input
func MeanFloat64(v ...float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, i := range v {
		sum += i
	}
	return sum / float64(len(v))
}

// StdDevFloat64 is the population standard deviation
func StdDevFloat64(v ...float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	mean := MeanFloat64(v...)
	var sq float64
	for _, i := range v {
		sq += (i - mean) * (i - mean)
	}
	return math.Sqrt(sq / float64(len(v)))
}

// MinFloat64 propagates NaN
func MinFloat64(v ...float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	lo := v[0]
	for _, i := range v[1:] {
		lo = math.Min(lo, i)
	}
	return lo
}

// MaxFloat64 propagates NaN
func MaxFloat64(v ...float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	hi := v[0]
	for _, i := range v[1:] {
		hi = math.Max(hi, i)
	}
	return hi
}

// ratio returns 100*num/den, NaN when den is zero
func ratio(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return 100 * num / den
}

// FormatFloat renders v with prec decimals, and NaN as "nan"
func FormatFloat(v float64, prec int) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}
