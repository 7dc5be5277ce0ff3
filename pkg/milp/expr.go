package milp

import "sort"

// LinearArgument is anything that can contribute terms to a LinearExpr.
// BoolVar and LinearExpr both implement it.
type LinearArgument interface {
	addToLinearExpr(e *LinearExpr, c float64)
}

// LinearExpr is a container for a weighted sum of variables plus a constant.
type LinearExpr struct {
	varCoeffs []varCoeff
	offset    float64
}

type varCoeff struct {
	ind   VarIndex
	coeff float64
}

// NewLinearExpr creates a new empty LinearExpr.
func NewLinearExpr() *LinearExpr {
	return &LinearExpr{}
}

// NewConstant creates a LinearExpr holding only the constant c.
func NewConstant(c float64) *LinearExpr {
	return &LinearExpr{offset: c}
}

// Add adds the linear argument with coefficient 1 and returns the expression.
func (l *LinearExpr) Add(la LinearArgument) *LinearExpr {
	return l.AddTerm(la, 1)
}

// AddConstant adds the constant to the expression and returns it.
func (l *LinearExpr) AddConstant(c float64) *LinearExpr {
	l.offset += c
	return l
}

// AddTerm adds the linear argument with the given coefficient and returns the
// expression.
func (l *LinearExpr) AddTerm(la LinearArgument, coeff float64) *LinearExpr {
	la.addToLinearExpr(l, coeff)
	return l
}

// AddSum adds all the linear arguments with coefficient 1 and returns the
// expression.
func (l *LinearExpr) AddSum(las ...LinearArgument) *LinearExpr {
	for _, la := range las {
		l.Add(la)
	}
	return l
}

// AddWeightedSum adds the linear arguments with the matching coefficients.
// The two slices must have the same length.
func (l *LinearExpr) AddWeightedSum(las []LinearArgument, coeffs []float64) *LinearExpr {
	for i, la := range las {
		l.AddTerm(la, coeffs[i])
	}
	return l
}

func (l *LinearExpr) addToLinearExpr(e *LinearExpr, c float64) {
	for _, vc := range l.varCoeffs {
		e.varCoeffs = append(e.varCoeffs, varCoeff{ind: vc.ind, coeff: vc.coeff * c})
	}
	e.offset += l.offset * c
}

// Evaluate computes the value of the expression under the given variable
// assignment.
func (l *LinearExpr) Evaluate(values []float64) float64 {
	result := l.offset
	for _, vc := range l.varCoeffs {
		result += values[vc.ind] * vc.coeff
	}
	return result
}

// terms returns the expression as merged (variable, coefficient) pairs in
// ascending variable order, dropping zero coefficients.
func (l *LinearExpr) terms() ([]Term, float64) {
	merged := make(map[VarIndex]float64, len(l.varCoeffs))
	for _, vc := range l.varCoeffs {
		merged[vc.ind] += vc.coeff
	}
	out := make([]Term, 0, len(merged))
	for ind, coeff := range merged {
		if coeff == 0 {
			continue
		}
		out = append(out, Term{Var: ind, Coeff: coeff})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Var < out[j].Var })
	return out, l.offset
}
