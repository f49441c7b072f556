package options

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/vega/internal/domain"
)

// Moneyness buckets for skew analysis. ATM is within 1% of spot, OTM puts
// sit more than 5% below, OTM calls more than 5% above.
const (
	atmBand      = 0.01
	otmPutBound  = -0.05
	otmCallBound = 0.05
)

// Analyzer computes aggregate statistics over an options chain
type Analyzer struct {
	riskFreeRate float64
	now          func() time.Time
	log          zerolog.Logger
}

// NewAnalyzer creates a new chain analyzer. riskFreeRate is the annualized
// rate used when valuing per-contract Greeks.
func NewAnalyzer(riskFreeRate float64, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		riskFreeRate: riskFreeRate,
		now:          time.Now,
		log:          log.With().Str("component", "chain_analyzer").Logger(),
	}
}

// ChainGreeks aggregates open-interest-weighted Greeks across the chain
type ChainGreeks struct {
	TotalDelta   float64                      `json:"total_delta"`
	TotalGamma   float64                      `json:"total_gamma"`
	TotalTheta   float64                      `json:"total_theta"`
	TotalVega    float64                      `json:"total_vega"`
	ByExpiration map[string]*ExpirationGreeks `json:"by_expiration"`
}

// ExpirationGreeks is the open-interest-weighted Greek subtotal for one expiration
type ExpirationGreeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// VolumeAnalysis describes how trading volume distributes over the chain
type VolumeAnalysis struct {
	Total        int64            `json:"total"`
	Calls        int64            `json:"calls"`
	Puts         int64            `json:"puts"`
	ByExpiration map[string]int64 `json:"by_expiration"`
	ByStrike     map[string]int64 `json:"by_strike"`
}

// OpenInterestAnalysis describes how open interest distributes over the chain
type OpenInterestAnalysis struct {
	Total        int64            `json:"total"`
	Calls        int64            `json:"calls"`
	Puts         int64            `json:"puts"`
	ByExpiration map[string]int64 `json:"by_expiration"`
	ByStrike     map[string]int64 `json:"by_strike"`
}

// SurfacePoint is one (expiration, strike) grid point of the IV surface
type SurfacePoint struct {
	Expiration string  `json:"expiration"`
	Strike     float64 `json:"strike"`
	MeanIV     float64 `json:"mean_iv"`
}

// IVSurface is the implied volatility surface over the deduplicated,
// ascending (expiration, strike) grid. Duplicate quotes at a grid point
// are averaged.
type IVSurface struct {
	Expirations []string       `json:"expirations"`
	Strikes     []float64      `json:"strikes"`
	Points      []SurfacePoint `json:"points"`
}

// ExpirationSkew holds the volatility skew for one expiration. A nil field
// means the moneyness bucket had no contracts; skews are only defined when
// both their buckets are populated.
type ExpirationSkew struct {
	ATMVol     *float64 `json:"atm_vol"`
	OTMPutVol  *float64 `json:"otm_put_vol"`
	OTMCallVol *float64 `json:"otm_call_vol"`
	PutSkew    *float64 `json:"put_skew"`
	CallSkew   *float64 `json:"call_skew"`
}

// SkewAnalysis aggregates per-expiration volatility skew. Averages span
// only the expirations where the skew is defined.
type SkewAnalysis struct {
	ByExpiration map[string]*ExpirationSkew `json:"by_expiration"`
	AvgPutSkew   *float64                   `json:"avg_put_skew"`
	AvgCallSkew  *float64                   `json:"avg_call_skew"`
}

// TermPoint is the ATM volatility at one expiration
type TermPoint struct {
	Expiration   string  `json:"expiration"`
	DaysToExpiry int     `json:"days_to_expiry"`
	ATMVol       float64 `json:"atm_vol"`
}

// TermStructure is the ATM volatility term structure. Slope is the
// least-squares coefficient of ATM vol against days to expiry, 0 when
// fewer than two expirations have an ATM quote.
type TermStructure struct {
	Points    []TermPoint `json:"points"`
	Slope     float64     `json:"slope"`
	MinATMVol float64     `json:"min_atm_vol"`
	MaxATMVol float64     `json:"max_atm_vol"`
}

// StrikeCluster is a strike near spot with unusually concentrated volume
type StrikeCluster struct {
	Strike          float64 `json:"strike"`
	Volume          int64   `json:"volume"`
	OpenInterest    int64   `json:"open_interest"`
	DistanceToPrice float64 `json:"distance_to_price"`
}

// ClusterAnalysis flags strikes within 10% of spot whose 3-point centered
// moving average of volume exceeds 1.5x the all-strike mean
type ClusterAnalysis struct {
	Clusters           []StrikeCluster `json:"clusters"`
	AvgVolumePerStrike float64         `json:"avg_volume_per_strike"`
	MaxVolumeStrike    float64         `json:"max_volume_strike"`
	MaxOIStrike        float64         `json:"max_oi_strike"`
}

// ChainAnalysis is the full analysis of one options chain
type ChainAnalysis struct {
	Underlying   string               `json:"underlying"`
	Spot         float64              `json:"spot"`
	Contracts    int                  `json:"contracts"`
	Greeks       ChainGreeks          `json:"greeks"`
	PutCallRatio float64              `json:"put_call_ratio"`
	Volume       VolumeAnalysis       `json:"volume"`
	OpenInterest OpenInterestAnalysis `json:"open_interest"`
	IVSurface    IVSurface            `json:"iv_surface"`
	Skew         SkewAnalysis         `json:"skew"`
	Term         TermStructure        `json:"term_structure"`
	StrikeFlow   ClusterAnalysis      `json:"strike_clusters"`
}

// AnalyzeChain computes the full analysis for a chain. An empty chain is
// legal and produces an explicitly empty analysis; a non-positive spot is
// a DomainError.
func (a *Analyzer) AnalyzeChain(chain domain.OptionsChain) (ChainAnalysis, error) {
	if chain.Spot <= 0 {
		return ChainAnalysis{}, domain.NewDomainError("chain_analysis", "spot must be positive")
	}

	analysis := ChainAnalysis{
		Underlying: chain.Underlying,
		Spot:       chain.Spot,
		Contracts:  len(chain.Contracts),
		Greeks:     ChainGreeks{ByExpiration: map[string]*ExpirationGreeks{}},
		Volume:     VolumeAnalysis{ByExpiration: map[string]int64{}, ByStrike: map[string]int64{}},
		OpenInterest: OpenInterestAnalysis{
			ByExpiration: map[string]int64{},
			ByStrike:     map[string]int64{},
		},
		Skew: SkewAnalysis{ByExpiration: map[string]*ExpirationSkew{}},
	}

	if len(chain.Contracts) == 0 {
		return analysis, nil
	}

	a.aggregateGreeks(chain, &analysis)
	a.aggregateFlow(chain, &analysis)
	analysis.PutCallRatio = putCallRatio(chain.Contracts)
	analysis.IVSurface = buildIVSurface(chain.Contracts)
	analysis.Skew = analyzeSkew(chain)
	analysis.Term = a.analyzeTermStructure(chain, analysis.Skew)
	analysis.StrikeFlow = analyzeStrikeClusters(chain)

	return analysis, nil
}

func (a *Analyzer) yearsToExpiry(expiration time.Time) float64 {
	return expiration.Sub(a.now()).Hours() / (24 * 365)
}

func (a *Analyzer) daysToExpiry(expiration time.Time) int {
	return int(expiration.Sub(a.now()).Hours() / 24)
}

func expirationKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func strikeKey(strike float64) string {
	return strconv.FormatFloat(strike, 'f', -1, 64)
}

// aggregateGreeks sums per-contract Greeks weighted by open interest.
// Expired contracts and contracts whose Greeks cannot be valued carry no
// weight.
func (a *Analyzer) aggregateGreeks(chain domain.OptionsChain, analysis *ChainAnalysis) {
	for _, c := range chain.Contracts {
		t := a.yearsToExpiry(c.Expiration)
		if t <= 0 {
			continue
		}

		quote, err := PriceAndGreeks(chain.Spot, c.Strike, t, c.ImpliedVolatility, a.riskFreeRate, c.OptionType)
		if err != nil || quote.Greeks == nil {
			a.log.Debug().
				Str("underlying", chain.Underlying).
				Float64("strike", c.Strike).
				Msg("Skipping contract without computable Greeks")
			continue
		}

		oi := float64(c.OpenInterest)
		analysis.Greeks.TotalDelta += quote.Greeks.Delta * oi
		analysis.Greeks.TotalGamma += quote.Greeks.Gamma * oi
		analysis.Greeks.TotalTheta += quote.Greeks.Theta * oi
		analysis.Greeks.TotalVega += quote.Greeks.Vega * oi

		key := expirationKey(c.Expiration)
		sub, ok := analysis.Greeks.ByExpiration[key]
		if !ok {
			sub = &ExpirationGreeks{}
			analysis.Greeks.ByExpiration[key] = sub
		}
		sub.Delta += quote.Greeks.Delta * oi
		sub.Gamma += quote.Greeks.Gamma * oi
		sub.Theta += quote.Greeks.Theta * oi
		sub.Vega += quote.Greeks.Vega * oi
	}
}

func (a *Analyzer) aggregateFlow(chain domain.OptionsChain, analysis *ChainAnalysis) {
	for _, c := range chain.Contracts {
		expKey := expirationKey(c.Expiration)
		stkKey := strikeKey(c.Strike)

		analysis.Volume.Total += c.Volume
		analysis.Volume.ByExpiration[expKey] += c.Volume
		analysis.Volume.ByStrike[stkKey] += c.Volume

		analysis.OpenInterest.Total += c.OpenInterest
		analysis.OpenInterest.ByExpiration[expKey] += c.OpenInterest
		analysis.OpenInterest.ByStrike[stkKey] += c.OpenInterest

		if c.OptionType == domain.OptionTypeCall {
			analysis.Volume.Calls += c.Volume
			analysis.OpenInterest.Calls += c.OpenInterest
		} else {
			analysis.Volume.Puts += c.Volume
			analysis.OpenInterest.Puts += c.OpenInterest
		}
	}
}

// putCallRatio is put volume over call volume. Zero call volume yields 0
// by convention rather than an undefined ratio.
func putCallRatio(contracts []domain.OptionContract) float64 {
	var calls, puts int64
	for _, c := range contracts {
		if c.OptionType == domain.OptionTypeCall {
			calls += c.Volume
		} else {
			puts += c.Volume
		}
	}
	if calls == 0 {
		return 0
	}
	return float64(puts) / float64(calls)
}

func buildIVSurface(contracts []domain.OptionContract) IVSurface {
	type gridKey struct {
		expiration string
		strike     float64
	}

	sums := make(map[gridKey]float64)
	counts := make(map[gridKey]int)
	expSet := make(map[string]struct{})
	strikeSet := make(map[float64]struct{})

	for _, c := range contracts {
		key := gridKey{expiration: expirationKey(c.Expiration), strike: c.Strike}
		sums[key] += c.ImpliedVolatility
		counts[key]++
		expSet[key.expiration] = struct{}{}
		strikeSet[c.Strike] = struct{}{}
	}

	surface := IVSurface{
		Expirations: make([]string, 0, len(expSet)),
		Strikes:     make([]float64, 0, len(strikeSet)),
		Points:      make([]SurfacePoint, 0, len(sums)),
	}
	for exp := range expSet {
		surface.Expirations = append(surface.Expirations, exp)
	}
	for strike := range strikeSet {
		surface.Strikes = append(surface.Strikes, strike)
	}
	sort.Strings(surface.Expirations)
	sort.Float64s(surface.Strikes)

	for _, exp := range surface.Expirations {
		for _, strike := range surface.Strikes {
			key := gridKey{expiration: exp, strike: strike}
			if n := counts[key]; n > 0 {
				surface.Points = append(surface.Points, SurfacePoint{
					Expiration: exp,
					Strike:     strike,
					MeanIV:     sums[key] / float64(n),
				})
			}
		}
	}

	return surface
}

func analyzeSkew(chain domain.OptionsChain) SkewAnalysis {
	type buckets struct {
		atm, otmPut, otmCall []float64
	}

	perExpiration := make(map[string]*buckets)
	for _, c := range chain.Contracts {
		key := expirationKey(c.Expiration)
		b, ok := perExpiration[key]
		if !ok {
			b = &buckets{}
			perExpiration[key] = b
		}

		m := c.Moneyness(chain.Spot)
		switch {
		case math.Abs(m) < atmBand:
			b.atm = append(b.atm, c.ImpliedVolatility)
		case m < otmPutBound && c.OptionType == domain.OptionTypePut:
			b.otmPut = append(b.otmPut, c.ImpliedVolatility)
		case m > otmCallBound && c.OptionType == domain.OptionTypeCall:
			b.otmCall = append(b.otmCall, c.ImpliedVolatility)
		}
	}

	analysis := SkewAnalysis{ByExpiration: make(map[string]*ExpirationSkew, len(perExpiration))}
	var putSkews, callSkews []float64

	for key, b := range perExpiration {
		skew := &ExpirationSkew{
			ATMVol:     meanOrNil(b.atm),
			OTMPutVol:  meanOrNil(b.otmPut),
			OTMCallVol: meanOrNil(b.otmCall),
		}

		if skew.ATMVol != nil && skew.OTMPutVol != nil {
			v := *skew.OTMPutVol - *skew.ATMVol
			skew.PutSkew = &v
			putSkews = append(putSkews, v)
		}
		if skew.ATMVol != nil && skew.OTMCallVol != nil {
			v := *skew.OTMCallVol - *skew.ATMVol
			skew.CallSkew = &v
			callSkews = append(callSkews, v)
		}

		analysis.ByExpiration[key] = skew
	}

	analysis.AvgPutSkew = meanOrNil(putSkews)
	analysis.AvgCallSkew = meanOrNil(callSkews)

	return analysis
}

func (a *Analyzer) analyzeTermStructure(chain domain.OptionsChain, skew SkewAnalysis) TermStructure {
	// One entry per expiration carrying an ATM quote.
	daysByKey := make(map[string]int)
	for _, c := range chain.Contracts {
		key := expirationKey(c.Expiration)
		if _, ok := daysByKey[key]; !ok {
			daysByKey[key] = a.daysToExpiry(c.Expiration)
		}
	}

	term := TermStructure{}
	for key, s := range skew.ByExpiration {
		if s.ATMVol == nil {
			continue
		}
		term.Points = append(term.Points, TermPoint{
			Expiration:   key,
			DaysToExpiry: daysByKey[key],
			ATMVol:       *s.ATMVol,
		})
	}

	sort.Slice(term.Points, func(i, j int) bool {
		return term.Points[i].Expiration < term.Points[j].Expiration
	})

	if len(term.Points) == 0 {
		return term
	}

	days := make([]float64, len(term.Points))
	vols := make([]float64, len(term.Points))
	term.MinATMVol = term.Points[0].ATMVol
	term.MaxATMVol = term.Points[0].ATMVol
	for i, p := range term.Points {
		days[i] = float64(p.DaysToExpiry)
		vols[i] = p.ATMVol
		term.MinATMVol = math.Min(term.MinATMVol, p.ATMVol)
		term.MaxATMVol = math.Max(term.MaxATMVol, p.ATMVol)
	}

	if len(term.Points) >= 2 {
		_, slope := stat.LinearRegression(days, vols, nil, false)
		if !math.IsNaN(slope) {
			term.Slope = slope
		}
	}

	return term
}

func analyzeStrikeClusters(chain domain.OptionsChain) ClusterAnalysis {
	type strikeFlow struct {
		strike       float64
		volume       int64
		openInterest int64
	}

	totals := make(map[float64]*strikeFlow)
	for _, c := range chain.Contracts {
		f, ok := totals[c.Strike]
		if !ok {
			f = &strikeFlow{strike: c.Strike}
			totals[c.Strike] = f
		}
		f.volume += c.Volume
		f.openInterest += c.OpenInterest
	}

	flows := make([]*strikeFlow, 0, len(totals))
	for _, f := range totals {
		flows = append(flows, f)
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].strike < flows[j].strike })

	analysis := ClusterAnalysis{}
	if len(flows) == 0 {
		return analysis
	}

	var volumeSum int64
	maxVolume, maxOI := flows[0], flows[0]
	for _, f := range flows {
		volumeSum += f.volume
		if f.volume > maxVolume.volume {
			maxVolume = f
		}
		if f.openInterest > maxOI.openInterest {
			maxOI = f
		}
	}
	analysis.AvgVolumePerStrike = float64(volumeSum) / float64(len(flows))
	analysis.MaxVolumeStrike = maxVolume.strike
	analysis.MaxOIStrike = maxOI.strike

	// The centered average needs both neighbours, so edge strikes never
	// qualify.
	threshold := analysis.AvgVolumePerStrike * 1.5
	for i := 1; i < len(flows)-1; i++ {
		f := flows[i]
		if math.Abs(f.strike-chain.Spot)/chain.Spot > 0.10 {
			continue
		}

		centered := float64(flows[i-1].volume+f.volume+flows[i+1].volume) / 3
		if centered > threshold {
			analysis.Clusters = append(analysis.Clusters, StrikeCluster{
				Strike:          f.strike,
				Volume:          f.volume,
				OpenInterest:    f.openInterest,
				DistanceToPrice: f.strike - chain.Spot,
			})
		}
	}

	return analysis
}

func meanOrNil(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))
	return &m
}
