// Package optimization solves the max-Sharpe weight allocation problem
// over historical return series.
package optimization

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/vega/internal/domain"
	"github.com/aristath/vega/pkg/formulas"
)

// penaltyWeight scales the quadratic penalty that enforces the
// sum-to-one constraint inside the unconstrained solver.
const penaltyWeight = 1000.0

// Optimizer finds long-only weights maximizing the annualized Sharpe
// ratio.
type Optimizer struct {
	log zerolog.Logger
}

// NewOptimizer creates a new optimizer.
func NewOptimizer(log zerolog.Logger) *Optimizer {
	return &Optimizer{log: log.With().Str("component", "optimizer").Logger()}
}

// Result is the outcome of one solve. Converged is false when the input
// was degenerate or the solver failed; the weights then fall back to an
// equal split so callers always receive a usable allocation.
type Result struct {
	Weights            map[string]float64 `json:"weights"`
	SharpeRatio        float64            `json:"sharpe_ratio"`
	ExpectedReturn     float64            `json:"expected_return"`
	ExpectedVolatility float64            `json:"expected_volatility"`
	Converged          bool               `json:"converged"`
	Observations       int                `json:"observations"`
	Diversification    Diversification    `json:"diversification"`
}

// Optimize maximizes (w·μ − rf) / sqrt(wᵀΣw) subject to Σw = 1 and
// 0 ≤ wᵢ ≤ 1, where μ and Σ are annualized estimates from the
// date-aligned daily series. The problem is solved as a
// penalty-augmented minimization from an equal-weight start, with BFGS
// first and NelderMead as fallback; the solution is clamped to the unit
// box and renormalized.
//
// Degenerate inputs (a single asset, too few aligned observations, NaN
// or vanishing covariance) and solver failures yield an equal-weight
// Result with Converged false. Only a request with no observations at
// all returns an error.
func (o *Optimizer) Optimize(returns map[string]*domain.ReturnSeries, riskFreeRate float64) (Result, error) {
	model := buildAssetModel(returns)
	if model == nil {
		symbols := usableSymbols(returns)
		if len(symbols) == 0 {
			return Result{}, domain.NewInsufficientDataError("optimization", 2, 0)
		}
		o.log.Warn().Int("assets", len(symbols)).Msg("Too few aligned observations to estimate, using equal weights")
		weights := make(map[string]float64, len(symbols))
		for _, symbol := range symbols {
			weights[symbol] = 1.0 / float64(len(symbols))
		}
		return Result{
			Weights:         weights,
			Diversification: diversificationReport(nil, weights),
		}, nil
	}

	if len(model.symbols) < 2 || model.degenerate() {
		return o.equalWeightResult(model, riskFreeRate), nil
	}

	x, ok := o.solve(model, riskFreeRate)
	if !ok {
		o.log.Warn().Int("assets", len(model.symbols)).Msg("Solver did not converge, using equal weights")
		return o.equalWeightResult(model, riskFreeRate), nil
	}

	return o.buildResult(model, normalizeClamped(x), riskFreeRate, true), nil
}

// solve minimizes the penalty-augmented negative Sharpe ratio from an
// equal-weight start. Candidate points are projected onto the unit box
// before evaluation.
func (o *Optimizer) solve(model *assetModel, riskFreeRate float64) ([]float64, bool) {
	n := len(model.symbols)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			xp := clampWeights(x)
			ret, variance := model.portfolioMoments(xp)
			sd := math.Sqrt(math.Max(variance, 1e-10))

			var sum float64
			for _, w := range xp {
				sum += w
			}

			obj := -(ret - riskFreeRate) / sd
			obj += penaltyWeight * (sum - 1) * (sum - 1)
			return obj
		},
		Grad: func(grad, x []float64) {
			xp := clampWeights(x)
			ret, variance := model.portfolioMoments(xp)
			sd := math.Sqrt(math.Max(variance, 1e-10))

			var sum float64
			for _, w := range xp {
				sum += w
			}

			for i := 0; i < n; i++ {
				var dVariance float64
				for j := 0; j < n; j++ {
					dVariance += 2 * model.cov[i][j] * xp[j]
				}
				grad[i] = -model.mu[i]/sd + (ret-riskFreeRate)*dVariance/(2*sd*sd*sd)
				grad[i] += 2 * penaltyWeight * (sum - 1)
			}
		},
	}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
	if err != nil || !acceptedStatus(result.Status) {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
		if err != nil || !acceptedStatus(result.Status) {
			return nil, false
		}
	}

	return result.X, true
}

// equalWeightResult scores an equal split over the model's assets.
func (o *Optimizer) equalWeightResult(model *assetModel, riskFreeRate float64) Result {
	n := len(model.symbols)
	x := make([]float64, n)
	for i := range x {
		x[i] = 1.0 / float64(n)
	}
	return o.buildResult(model, x, riskFreeRate, false)
}

// buildResult maps the weight vector back to symbols and computes the
// portfolio statistics and diversification report.
func (o *Optimizer) buildResult(model *assetModel, x []float64, riskFreeRate float64, converged bool) Result {
	weights := make(map[string]float64, len(model.symbols))
	for i, symbol := range model.symbols {
		weights[symbol] = x[i]
	}

	ret, variance := model.portfolioMoments(x)
	if math.IsNaN(ret) || math.IsNaN(variance) {
		// NaN estimates reach here through the equal-weight fallback.
		ret, variance = 0, 0
	}
	vol := math.Sqrt(math.Max(variance, 0))

	return Result{
		Weights:            weights,
		SharpeRatio:        formulas.SharpeRatio(ret, vol, riskFreeRate),
		ExpectedReturn:     ret,
		ExpectedVolatility: vol,
		Converged:          converged,
		Observations:       model.observations,
		Diversification:    diversificationReport(model.correlations(), weights),
	}
}

func acceptedStatus(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence:
		return true
	}
	return false
}

// clampWeights projects a candidate point onto the [0,1] box.
func clampWeights(x []float64) []float64 {
	clamped := make([]float64, len(x))
	for i, w := range x {
		clamped[i] = math.Max(0, math.Min(1, w))
	}
	return clamped
}

// normalizeClamped clamps the solution to the unit box and rescales it
// to sum to one. A solution clamped to all zeros falls back to an equal
// split.
func normalizeClamped(x []float64) []float64 {
	clamped := clampWeights(x)
	var sum float64
	for _, w := range clamped {
		sum += w
	}
	if sum <= 0 {
		for i := range clamped {
			clamped[i] = 1.0 / float64(len(clamped))
		}
		return clamped
	}
	for i := range clamped {
		clamped[i] /= sum
	}
	return clamped
}
