package demo

import (
	"math/rand"

	"github.com/cwbudde/optdemo/internal/lsq"
)

// GenerateData samples n evenly spaced points on [lo, hi] and adds
// Gaussian noise with standard deviation sigma to the model values.
func GenerateData(model lsq.Model, truth []float64, lo, hi float64, n int, sigma float64, seed int64) (x, y []float64) {
	rng := rand.New(rand.NewSource(seed))
	x = Linspace(lo, hi, n)
	y = make([]float64, n)
	for i, xi := range x {
		y[i] = model.Eval(xi, truth) + sigma*rng.NormFloat64()
	}
	return x, y
}

// Linspace returns n evenly spaced points from lo to hi inclusive, or nil
// when n is not positive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}
