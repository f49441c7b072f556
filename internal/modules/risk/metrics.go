// Package risk computes portfolio risk reports over date-aligned return
// series: annualized return and volatility, risk-adjusted ratios, drawdown
// statistics, value-at-risk and historical stress scenarios.
package risk

import (
	"math"
	"time"

	"github.com/aristath/vega/internal/domain"
	"github.com/aristath/vega/pkg/formulas"
)

// Options configures one analysis run. MarketProxy is optional; without it
// beta falls back to 1.0 and the proxy-relative statistics stay undefined.
type Options struct {
	RiskFreeRate float64
	MarketProxy  *domain.ReturnSeries
}

// DrawdownReport summarizes the portfolio wealth-curve drawdowns. Depths
// are negative fractions; DrawdownDays counts days below -5%, RecoveryDays
// days below -10%.
type DrawdownReport struct {
	MaxDrawdown     float64 `json:"max_drawdown"`
	AvgDrawdown     float64 `json:"avg_drawdown"`
	CurrentDrawdown float64 `json:"current_drawdown"`
	DrawdownDays    int     `json:"drawdown_days"`
	RecoveryDays    int     `json:"recovery_days"`
}

// StressScenarios holds historical-shock outcomes as raw daily returns:
// the tail scenarios are negative, HighVolatility is a doubled daily sigma.
type StressScenarios struct {
	MarketCrash          float64 `json:"market_crash"`
	HighVolatility       float64 `json:"high_volatility"`
	CorrelationBreakdown float64 `json:"correlation_breakdown"`
	LiquidityCrisis      float64 `json:"liquidity_crisis"`
}

// Report is the full risk analysis of one portfolio. Pointer fields need a
// market proxy and stay nil without one; Beta defaults to 1.0 in that case.
type Report struct {
	AnnualizedReturn     float64            `json:"annualized_return"`
	AnnualizedVolatility float64            `json:"annualized_volatility"`
	SharpeRatio          float64            `json:"sharpe_ratio"`
	SortinoRatio         float64            `json:"sortino_ratio"`
	Drawdowns            DrawdownReport     `json:"drawdowns"`
	VaR95                float64            `json:"var_95"`
	CVaR95               float64            `json:"cvar_95"`
	ParametricVaR95      float64            `json:"parametric_var_95"`
	ParametricVaR99      float64            `json:"parametric_var_99"`
	Beta                 float64            `json:"beta"`
	TreynorRatio         float64            `json:"treynor_ratio"`
	InformationRatio     *float64           `json:"information_ratio"`
	RSquared             *float64           `json:"r_squared"`
	MarketCorrelation    *float64           `json:"market_correlation"`
	UpMarketCorrelation  *float64           `json:"up_market_correlation"`
	DownMarketCorrelation *float64          `json:"down_market_correlation"`
	Stress               StressScenarios    `json:"stress_test"`
	Weights              map[string]float64 `json:"weights"`
	Symbols              int                `json:"symbols"`
	Observations         int                `json:"observations"`
	Start                time.Time          `json:"start"`
	End                  time.Time          `json:"end"`
}

// Analyze computes the risk report for a weighted portfolio of return
// series. Weights are normalized to sum to 1 over the symbols that carry
// data; an empty weights map means equal weighting. Fewer than two aligned
// observations is an InsufficientDataError.
func Analyze(weights map[string]float64, returns map[string]*domain.ReturnSeries, opts Options) (Report, error) {
	portfolio, normalized, err := buildPortfolioSeries(weights, returns)
	if err != nil {
		return Report{}, err
	}

	daily := portfolio.Returns
	annRet := formulas.AnnualizedReturn(daily)
	annVol := formulas.AnnualizedVolatility(daily)

	dd := formulas.AnalyzeDrawdowns(formulas.WealthCurve(daily))

	report := Report{
		AnnualizedReturn:     annRet,
		AnnualizedVolatility: annVol,
		SharpeRatio:          formulas.SharpeRatio(annRet, annVol, opts.RiskFreeRate),
		SortinoRatio:         formulas.SortinoRatio(annRet, opts.RiskFreeRate, daily),
		Drawdowns: DrawdownReport{
			MaxDrawdown:     dd.MaxDrawdown,
			AvgDrawdown:     dd.AvgDrawdown,
			CurrentDrawdown: dd.CurrentDrawdown,
			DrawdownDays:    dd.DrawdownDays,
			RecoveryDays:    dd.RecoveryDays,
		},
		VaR95:           formulas.HistoricalVaR(daily, 0.95),
		CVaR95:          formulas.ConditionalVaR(daily, 0.95),
		ParametricVaR95: formulas.ParametricVaR(daily, 1.645),
		ParametricVaR99: formulas.ParametricVaR(daily, 2.326),
		Stress:          runStressScenarios(daily),
		Weights:         normalized,
		Symbols:         len(normalized),
		Observations:    len(daily),
		Start:           portfolio.Dates[0],
		End:             portfolio.Dates[len(portfolio.Dates)-1],
	}

	applyMarketLinkage(&report, portfolio, opts.MarketProxy)
	report.TreynorRatio = formulas.TreynorRatio(annRet, opts.RiskFreeRate, report.Beta)

	return report, nil
}

// applyMarketLinkage fills the proxy-relative statistics. Beta keeps its
// 1.0 fallback when the proxy is absent, too short, or has zero variance.
func applyMarketLinkage(report *Report, portfolio *domain.ReturnSeries, proxy *domain.ReturnSeries) {
	report.Beta = 1.0
	if proxy.Len() < 2 {
		return
	}

	dates, aligned := domain.AlignSeries(map[string]*domain.ReturnSeries{
		"portfolio": portfolio,
		"market":    proxy,
	})
	if len(dates) < 2 {
		return
	}
	p, m := aligned["portfolio"], aligned["market"]

	if beta := formulas.Beta(p, m); beta != nil {
		report.Beta = *beta
	}
	report.RSquared = formulas.RSquared(p, m)

	if corr := formulas.Correlation(p, m); !math.IsNaN(corr) {
		report.MarketCorrelation = &corr
	}

	excess := make([]float64, len(p))
	for i := range p {
		excess[i] = p[i] - m[i]
	}
	if ir := formulas.InformationRatio(excess); !math.IsNaN(ir) {
		report.InformationRatio = &ir
	}

	report.UpMarketCorrelation = conditionalCorrelation(p, m, func(x float64) bool { return x > 0 })
	report.DownMarketCorrelation = conditionalCorrelation(p, m, func(x float64) bool { return x < 0 })
}

// conditionalCorrelation correlates portfolio and market over the days the
// market filter admits, nil when fewer than two days qualify.
func conditionalCorrelation(p, m []float64, include func(float64) bool) *float64 {
	var sp, sm []float64
	for i, x := range m {
		if include(x) {
			sp = append(sp, p[i])
			sm = append(sm, x)
		}
	}
	if len(sp) < 2 {
		return nil
	}
	c := formulas.Correlation(sp, sm)
	if math.IsNaN(c) {
		return nil
	}
	return &c
}
