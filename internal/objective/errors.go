package objective

import (
	"errors"
	"fmt"
)

// ErrDimension is returned when a point, vector or matrix does not have the
// dimension the problem expects. Use errors.Is(err, ErrDimension).
var ErrDimension = &DimensionError{}

// ErrSingular marks a linear solve that failed because the system matrix
// (Hessian, JᵀJ or Lagrangian Jacobian) is singular or numerically so.
var ErrSingular = errors.New("singular matrix")

// ErrNoHessian is returned by CheckHessian for a Func built without Hess.
var ErrNoHessian = errors.New("objective has no Hessian")

// DimensionError describes a dimension mismatch.
type DimensionError struct {
	What string
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	if e.What == "" {
		return "dimension mismatch"
	}
	return fmt.Sprintf("dimension mismatch: %s has length %d, want %d", e.What, e.Got, e.Want)
}

func (e *DimensionError) Is(target error) bool {
	_, ok := target.(*DimensionError)
	return ok
}

// CheckDim returns a *DimensionError if len(x) != want.
func CheckDim(what string, x []float64, want int) error {
	if len(x) != want {
		return &DimensionError{What: what, Want: want, Got: len(x)}
	}
	return nil
}

// CheckHessian reports ErrNoHessian when fn is a Func whose Hessian would
// panic.
func CheckHessian(fn Hessianer) error {
	switch f := fn.(type) {
	case Func:
		if f.Hess == nil {
			return ErrNoHessian
		}
	case *Func:
		if f == nil || f.Hess == nil {
			return ErrNoHessian
		}
	}
	return nil
}
