package experiment

import (
	"math"
)

// normalCDF approximates the standard normal CDF with the Zelen and Severo
// rational polynomial (Abramowitz and Stegun 26.2.17).
func normalCDF(z float64) float64 {
	t := 1 / (1 + 0.2316419*math.Abs(z))
	d := 0.3989423 * math.Exp(-z*z/2)
	prob := d * t * (0.3193815 + t*(-0.3565638+t*(1.781478+t*(-1.821256+t*1.330274))))
	if z > 0 {
		return 1 - prob
	}
	return prob
}

// twoSidedPValue returns 2·(1−Φ(|z|)).
func twoSidedPValue(z float64) float64 {
	if math.IsNaN(z) {
		return 1
	}
	return 2 * (1 - normalCDF(math.Abs(z)))
}

// twoProportion runs a pooled two-proportion z-test.
func twoProportion(successA, totalA, successB, totalB float64) (p1, p2, se, z float64) {
	p1 = successA / totalA
	p2 = successB / totalB
	pooled := (successA + successB) / (totalA + totalB)
	se = math.Sqrt(math.Max(pooled*(1-pooled)*(1/totalA+1/totalB), 1e-12))
	z = (p2 - p1) / se
	return p1, p2, se, z
}

// uniformSource yields uniform values in [0, 1).
type uniformSource func() float64

// betaApprox draws from an approximation of Beta(a, b) using two uniforms:
// x = U1^(1/a), y = U2^(1/b), x/(x+y). This is not an exact Beta draw; it
// is kept for result parity with existing decisions.
func betaApprox(u uniformSource, a, b float64) float64 {
	x := math.Pow(u(), 1/a)
	y := math.Pow(u(), 1/b)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}
