package analysis

import (
	"math"
)

// comoments accumulates running means, second moments and the co-moment of paired
// samples with Welford's update, so Pearson correlation needs one pass.
type comoments struct {
	n     int
	meanX float64
	meanY float64
	m2X   float64
	m2Y   float64
	cXY   float64
}

func (c *comoments) add(x, y float64) {
	c.n++
	dx := x - c.meanX
	c.meanX += dx / float64(c.n)
	dy := y - c.meanY
	c.meanY += dy / float64(c.n)
	c.m2X += dx * (x - c.meanX)
	c.m2Y += dy * (y - c.meanY)
	c.cXY += dx * (y - c.meanY)
}

// pearson returns the correlation coefficient; ok is false with fewer than two
// samples or when either side has zero variance.
func (c *comoments) pearson() (float64, bool) {
	if c.n < 2 || c.m2X <= 0 || c.m2Y <= 0 {
		return 0, false
	}
	r := c.cXY / math.Sqrt(c.m2X*c.m2Y)
	return math.Max(-1, math.Min(1, r)), true
}

func pearson(xs, ys []float64) (float64, bool) {
	var c comoments
	for i := range xs {
		c.add(xs[i], ys[i])
	}
	return c.pearson()
}
