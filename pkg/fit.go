package pulses

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// FitMethod selects the least-squares optimizer.
type FitMethod string

const (
	LevenbergMarquardt FitMethod = "levenberg-marquardt"
	NelderMead         FitMethod = "nelder-mead"
)

// FitParams configures the model fit. InitialK and InitialLambda are seeds
// in units of the inverse pulse span; the amplitude seed is max(i).
type FitParams struct {
	Enabled        bool      `json:"enabled" yaml:"enabled"`
	Method         FitMethod `json:"method" yaml:"method"`
	MaxIterations  int       `json:"max_iterations" yaml:"max_iterations"`
	MaxEvaluations int       `json:"max_evaluations" yaml:"max_evaluations"`
	InitialK       float64   `json:"initial_k" yaml:"initial_k"`
	InitialLambda  float64   `json:"initial_lambda" yaml:"initial_lambda"`
}

func DefaultFitParams() FitParams {
	return FitParams{
		Enabled:        true,
		Method:         LevenbergMarquardt,
		MaxIterations:  1000,
		MaxEvaluations: 40000,
		InitialK:       5,
		InitialLambda:  1,
	}
}

func (p FitParams) Validate() error {
	switch p.Method {
	case LevenbergMarquardt, NelderMead, "":
	default:
		return configError("fit.method", p.Method, fmt.Sprintf("must be %q or %q", LevenbergMarquardt, NelderMead))
	}
	if p.MaxIterations < 1 {
		return configError("fit.max_iterations", p.MaxIterations, "must be at least 1")
	}
	if p.MaxEvaluations < 0 {
		return configError("fit.max_evaluations", p.MaxEvaluations, "must not be negative")
	}
	if math.IsNaN(p.InitialK) || math.IsInf(p.InitialK, 0) {
		return configError("fit.initial_k", p.InitialK, "must be finite")
	}
	if math.IsNaN(p.InitialLambda) || math.IsInf(p.InitialLambda, 0) {
		return configError("fit.initial_lambda", p.InitialLambda, "must be finite")
	}
	return nil
}

// FitResult is a converged fit. SSE is the residual sum of squares in A².
type FitResult struct {
	Method     FitMethod       `json:"method"`
	Params     ModelParameters `json:"params"`
	SSE        float64         `json:"sse"`
	Iterations int             `json:"iterations"`
}

const minFitSamples = 3

// Fit adjusts (A, K, Lambda) of the analytic model to the samples by least
// squares, holding TPeak at the time of the largest sample. When the
// iteration budget runs out the error is an *ErrFitDidNotConverge holding
// the last estimate.
func Fit(t, i []float64, p FitParams) (FitResult, error) {
	if err := p.Validate(); err != nil {
		return FitResult{}, err
	}
	if err := validatePair(t, i); err != nil {
		return FitResult{}, err
	}
	if len(t) < minFitSamples {
		return FitResult{}, &ErrMalformedRecord{
			Reason: fmt.Sprintf("need at least %d samples to fit, got %d", minFitSamples, len(t)),
			Index:  -1,
		}
	}

	peak := argMax(i)
	tPeak := t[peak]
	span := t[len(t)-1] - t[0]

	// Normalized time keeps K and Lambda of order one whatever the sample period.
	tau := make([]float64, len(t))
	for k, x := range t {
		tau[k] = (x - tPeak) / span
	}
	seed := []float64{i[peak], p.InitialK, p.InitialLambda}

	method := p.Method
	if method == "" {
		method = LevenbergMarquardt
	}

	var (
		x         []float64
		sse       float64
		iters     int
		converged bool
		err       error
	)
	switch method {
	case NelderMead:
		x, sse, iters, converged, err = fitNelderMead(tau, i, seed, p)
	default:
		x, sse, iters, converged, err = fitLevenbergMarquardt(tau, i, seed, p.MaxIterations)
	}

	params := ModelParameters{A: x[0], K: x[1] / span, Lambda: x[2] / span, TPeak: tPeak}
	if err != nil || !converged {
		logger.Info(fmt.Sprintf("%s fit stopped after %d iterations, sse=%g", method, iters, sse), "fit")
		return FitResult{}, &ErrFitDidNotConverge{Method: method, Iterations: iters, Last: params, Err: err}
	}
	return FitResult{Method: method, Params: params, SSE: sse, Iterations: iters}, nil
}

// modelResiduals fills r with f(tau)-y and, when jac is not nil, the
// Jacobian of f with respect to (A, k, lambda). It returns the sum of
// squared residuals.
func modelResiduals(x, tau, y []float64, r *mat.VecDense, jac *mat.Dense) float64 {
	var sse float64
	for k, s := range tau {
		rise := math.Exp(-x[1] * s)
		decay := 1.0
		if s > 0 {
			decay = math.Exp(-x[2] * s)
		}
		f := x[0] * rise * decay
		res := f - y[k]
		r.SetVec(k, res)
		sse += res * res

		if jac == nil {
			continue
		}
		jac.Set(k, 0, rise*decay)
		jac.Set(k, 1, -s*f)
		if s > 0 {
			jac.Set(k, 2, -s*f)
		} else {
			jac.Set(k, 2, 0)
		}
	}
	return sse
}

const (
	lmInitialDamping = 1e-3
	lmMaxDamping     = 1e16
	lmStepTolerance  = 1e-12
	lmCostTolerance  = 1e-15
)

// fitLevenbergMarquardt minimizes the residuals with Marquardt-scaled
// damping. It reports convergence when the cost vanishes, when an accepted
// step no longer moves the parameters or the cost, or when no damping can
// lower the cost any further.
func fitLevenbergMarquardt(tau, y, seed []float64, maxIterations int) ([]float64, float64, int, bool, error) {
	n := len(tau)
	x := append([]float64(nil), seed...)
	trial := make([]float64, len(x))

	res, trialRes := mat.NewVecDense(n, nil), mat.NewVecDense(n, nil)
	jac, trialJac := mat.NewDense(n, 3, nil), mat.NewDense(n, 3, nil)
	cost := modelResiduals(x, tau, y, res, jac)
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return x, cost, 0, false, errors.New("non-finite residuals at the initial estimate")
	}

	jtj := mat.NewSymDense(3, nil)
	var (
		jtr, step mat.VecDense
		damped    = mat.NewDense(3, 3, nil)
	)
	damping := lmInitialDamping
	for iter := 1; iter <= maxIterations; iter++ {
		if cost == 0 {
			return x, cost, iter - 1, true, nil
		}
		jtj.SymOuterK(1, jac.T())
		jtr.MulVec(jac.T(), res)

		var diagMax float64
		for d := 0; d < 3; d++ {
			diagMax = max(diagMax, jtj.At(d, d))
		}
		floor := max(diagMax*1e-15, math.SmallestNonzeroFloat64)
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				damped.Set(r, c, jtj.At(r, c))
			}
			damped.Set(r, r, jtj.At(r, r)+damping*max(jtj.At(r, r), floor))
		}

		if err := step.SolveVec(damped, &jtr); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				damping *= 10
				if damping > lmMaxDamping {
					return x, cost, iter, true, nil
				}
				continue
			}
		}
		for d := range x {
			trial[d] = x[d] - step.AtVec(d)
		}

		trialCost := modelResiduals(trial, tau, y, trialRes, trialJac)
		if !(trialCost < cost) {
			damping *= 10
			if damping > lmMaxDamping {
				return x, cost, iter, true, nil
			}
			continue
		}

		improvement := cost - trialCost
		stepNorm := floats.Norm(step.RawVector().Data, 2)
		xNorm := floats.Norm(x, 2)

		copy(x, trial)
		res, trialRes = trialRes, res
		jac, trialJac = trialJac, jac
		cost = trialCost
		damping = max(damping/10, 1e-12)

		if stepNorm <= lmStepTolerance*(xNorm+lmStepTolerance) || improvement <= lmCostTolerance*cost {
			return x, cost, iter, true, nil
		}
	}
	return x, cost, maxIterations, false, nil
}

// fitNelderMead minimizes the sum of squares with the gonum simplex method.
func fitNelderMead(tau, y, seed []float64, p FitParams) ([]float64, float64, int, bool, error) {
	r := mat.NewVecDense(len(tau), nil)
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return modelResiduals(x, tau, y, r, nil)
		},
	}
	settings := &optimize.Settings{
		MajorIterations: p.MaxIterations,
		FuncEvaluations: p.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-30,
			Relative:   1e-15,
			Iterations: 200,
		},
	}

	result, err := optimize.Minimize(problem, seed, settings, &optimize.NelderMead{})
	if result == nil {
		return seed, math.Inf(1), 0, false, err
	}
	x := result.X
	iters := result.Stats.MajorIterations
	switch result.Status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.RuntimeLimit:
		return x, result.F, iters, false, nil
	}
	if err != nil {
		return x, result.F, iters, false, err
	}
	return x, result.F, iters, true, nil
}
