package audit

import (
	"math"
)

// Default curve parameters for time savings, in milliseconds.
const (
	DefaultScoreMedian = 750
	DefaultScorePODR   = 50
)

// Curve maps a value where lower is better onto a 0-100 score using the
// complementary log-normal CDF. Median scores 50; values at or below PODR
// (point of diminishing returns) score close to 100.
type Curve struct {
	Median float64
	PODR   float64
}

// DefaultCurve returns the curve used for byte-efficiency savings.
func DefaultCurve() Curve {
	return Curve{Median: DefaultScoreMedian, PODR: DefaultScorePODR}
}

// valid reports whether the parameters describe a log-normal curve.
func (c Curve) valid() bool {
	return c.Median > 0 && c.PODR > 0 && c.PODR < c.Median
}

// Score returns the score for value, rounded and clamped to [0, 100].
// Zero or negative values score 100.
func (c Curve) Score(value float64) int {
	if value <= 0 {
		return 100
	}
	if !c.valid() {
		c = DefaultCurve()
	}

	location := math.Log(c.Median)
	logRatio := math.Log(c.PODR / c.Median)
	shape := math.Sqrt(1-3*logRatio-math.Sqrt((logRatio-3)*(logRatio-3)-8)) / 2

	standardized := (math.Log(value) - location) / (math.Sqrt2 * shape)
	p := 0.5 * math.Erfc(standardized)
	return int(math.Round(min(max(p*100, 0), 100)))
}
