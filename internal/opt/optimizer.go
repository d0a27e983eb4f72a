// Package opt wraps derivative-free global optimizers. They serve as a
// baseline for the descent methods and as a warm start for Gauss-Newton
// fits whose initial guess is poor.
package opt

import (
	"fmt"
	"math"

	"github.com/cwbudde/optdemo/internal/objective"
)

// Optimizer searches a box for the minimum of eval.
type Optimizer interface {
	// Run minimizes eval over dim parameters inside [lower, upper] and
	// returns the best parameters and their cost.
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}

// Bounds is an axis-aligned search box.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// Box returns Bounds with the same interval [lo, hi] on every axis.
func Box(dim int, lo, hi float64) Bounds {
	b := Bounds{Lower: make([]float64, dim), Upper: make([]float64, dim)}
	for i := 0; i < dim; i++ {
		b.Lower[i] = lo
		b.Upper[i] = hi
	}
	return b
}

// Around returns the box center ± radius on every axis.
func Around(center []float64, radius float64) Bounds {
	b := Bounds{Lower: make([]float64, len(center)), Upper: make([]float64, len(center))}
	for i, c := range center {
		b.Lower[i] = c - radius
		b.Upper[i] = c + radius
	}
	return b
}

// Minimize runs o on fn inside bounds. Only fn.Value is used.
func Minimize(o Optimizer, fn objective.Function, bounds Bounds) ([]float64, float64, error) {
	dim := fn.Dim()
	if err := objective.CheckDim("lower bounds", bounds.Lower, dim); err != nil {
		return nil, 0, err
	}
	if err := objective.CheckDim("upper bounds", bounds.Upper, dim); err != nil {
		return nil, 0, err
	}
	for i := range bounds.Lower {
		if bounds.Lower[i] >= bounds.Upper[i] {
			return nil, 0, fmt.Errorf("empty search box on axis %d: [%g, %g]", i, bounds.Lower[i], bounds.Upper[i])
		}
	}

	// Points where fn is undefined, such as a·x/(b+x) at b = −x, cost +Inf.
	eval := func(x []float64) float64 {
		v := fn.Value(x)
		if math.IsNaN(v) {
			return math.Inf(1)
		}
		return v
	}

	x, cost := o.Run(eval, bounds.Lower, bounds.Upper, dim)
	return x, cost, nil
}
