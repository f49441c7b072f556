package options

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vega/internal/domain"
)

var analysisClock = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestAnalyzer() *Analyzer {
	a := NewAnalyzer(0.03, zerolog.New(nil).Level(zerolog.Disabled))
	a.now = func() time.Time { return analysisClock }
	return a
}

func contract(t *testing.T, typ domain.OptionType, expiration string, strike, iv float64, oi, volume int64) domain.OptionContract {
	t.Helper()
	exp, err := time.Parse("2006-01-02", expiration)
	require.NoError(t, err)
	c, err := domain.NewOptionContract("TEST", exp, strike, typ, 1.0, 1.2, iv, oi, volume)
	require.NoError(t, err)
	return c
}

func chainOf(t *testing.T, spot float64, contracts ...domain.OptionContract) domain.OptionsChain {
	t.Helper()
	chain, err := domain.NewOptionsChain("TEST", spot, contracts)
	require.NoError(t, err)
	return chain
}

func TestAnalyzeChain_Empty(t *testing.T) {
	analysis, err := newTestAnalyzer().AnalyzeChain(chainOf(t, 100))
	require.NoError(t, err)

	assert.Equal(t, "TEST", analysis.Underlying)
	assert.Equal(t, 0, analysis.Contracts)
	assert.Zero(t, analysis.Greeks.TotalDelta)
	assert.Zero(t, analysis.PutCallRatio)
	assert.Empty(t, analysis.Volume.ByExpiration)
	assert.Empty(t, analysis.IVSurface.Points)
	assert.Empty(t, analysis.StrikeFlow.Clusters)
}

func TestAnalyzeChain_RejectsInvalidSpot(t *testing.T) {
	_, err := newTestAnalyzer().AnalyzeChain(domain.OptionsChain{Underlying: "TEST", Spot: 0})
	assert.True(t, domain.IsDomainError(err))
}

func TestAnalyzeChain_GreeksWeightedByOpenInterest(t *testing.T) {
	analyzer := newTestAnalyzer()
	c := contract(t, domain.OptionTypeCall, "2026-07-02", 100, 0.2, 10, 50)

	analysis, err := analyzer.AnalyzeChain(chainOf(t, 100, c))
	require.NoError(t, err)

	// Expected Greeks valued the same way the analyzer does.
	years := c.Expiration.Sub(analysisClock).Hours() / (24 * 365)
	quote, err := PriceAndGreeks(100, 100, years, 0.2, 0.03, domain.OptionTypeCall)
	require.NoError(t, err)

	assert.InDelta(t, quote.Greeks.Delta*10, analysis.Greeks.TotalDelta, 1e-9)
	assert.InDelta(t, quote.Greeks.Gamma*10, analysis.Greeks.TotalGamma, 1e-9)
	assert.InDelta(t, quote.Greeks.Theta*10, analysis.Greeks.TotalTheta, 1e-9)
	assert.InDelta(t, quote.Greeks.Vega*10, analysis.Greeks.TotalVega, 1e-9)

	sub, ok := analysis.Greeks.ByExpiration["2026-07-02"]
	require.True(t, ok)
	assert.InDelta(t, analysis.Greeks.TotalDelta, sub.Delta, 1e-9)
}

func TestAnalyzeChain_ExpiredContractsCarryNoGreeks(t *testing.T) {
	expired := contract(t, domain.OptionTypeCall, "2025-12-01", 100, 0.2, 100, 10)

	analysis, err := newTestAnalyzer().AnalyzeChain(chainOf(t, 100, expired))
	require.NoError(t, err)

	assert.Zero(t, analysis.Greeks.TotalDelta)
	assert.Zero(t, analysis.Greeks.TotalVega)
	// Flow still counts expired contracts.
	assert.Equal(t, int64(10), analysis.Volume.Total)
	assert.Equal(t, int64(100), analysis.OpenInterest.Total)
}

func TestAnalyzeChain_PutCallRatio(t *testing.T) {
	analyzer := newTestAnalyzer()

	mixed := chainOf(t, 100,
		contract(t, domain.OptionTypeCall, "2026-03-20", 100, 0.2, 10, 60),
		contract(t, domain.OptionTypeCall, "2026-03-20", 105, 0.2, 10, 40),
		contract(t, domain.OptionTypePut, "2026-03-20", 95, 0.2, 10, 50),
	)
	analysis, err := analyzer.AnalyzeChain(mixed)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, analysis.PutCallRatio, 1e-9)

	// No call volume: ratio is 0 by convention.
	putsOnly := chainOf(t, 100,
		contract(t, domain.OptionTypePut, "2026-03-20", 95, 0.2, 10, 50),
	)
	analysis, err = analyzer.AnalyzeChain(putsOnly)
	require.NoError(t, err)
	assert.Zero(t, analysis.PutCallRatio)
}

func TestAnalyzeChain_FlowDistribution(t *testing.T) {
	analysis, err := newTestAnalyzer().AnalyzeChain(chainOf(t, 100,
		contract(t, domain.OptionTypeCall, "2026-03-20", 100, 0.2, 30, 200),
		contract(t, domain.OptionTypePut, "2026-03-20", 100, 0.2, 20, 100),
		contract(t, domain.OptionTypeCall, "2026-06-19", 102.5, 0.2, 5, 25),
	))
	require.NoError(t, err)

	assert.Equal(t, int64(325), analysis.Volume.Total)
	assert.Equal(t, int64(225), analysis.Volume.Calls)
	assert.Equal(t, int64(100), analysis.Volume.Puts)
	assert.Equal(t, int64(300), analysis.Volume.ByExpiration["2026-03-20"])
	assert.Equal(t, int64(25), analysis.Volume.ByExpiration["2026-06-19"])
	assert.Equal(t, int64(300), analysis.Volume.ByStrike["100"])
	assert.Equal(t, int64(25), analysis.Volume.ByStrike["102.5"])

	assert.Equal(t, int64(55), analysis.OpenInterest.Total)
	assert.Equal(t, int64(35), analysis.OpenInterest.Calls)
	assert.Equal(t, int64(20), analysis.OpenInterest.Puts)
	assert.Equal(t, int64(50), analysis.OpenInterest.ByStrike["100"])
}

func TestAnalyzeChain_IVSurface(t *testing.T) {
	analysis, err := newTestAnalyzer().AnalyzeChain(chainOf(t, 100,
		contract(t, domain.OptionTypeCall, "2026-03-20", 100, 0.20, 10, 10),
		contract(t, domain.OptionTypePut, "2026-03-20", 100, 0.30, 10, 10),
		contract(t, domain.OptionTypeCall, "2026-03-20", 110, 0.22, 10, 10),
		contract(t, domain.OptionTypeCall, "2026-06-19", 100, 0.24, 10, 10),
	))
	require.NoError(t, err)

	surface := analysis.IVSurface
	assert.Equal(t, []string{"2026-03-20", "2026-06-19"}, surface.Expirations)
	assert.Equal(t, []float64{100, 110}, surface.Strikes)

	require.Len(t, surface.Points, 3)
	// Duplicate quotes at (2026-03-20, 100) average to 0.25.
	assert.Equal(t, "2026-03-20", surface.Points[0].Expiration)
	assert.InDelta(t, 100.0, surface.Points[0].Strike, 1e-9)
	assert.InDelta(t, 0.25, surface.Points[0].MeanIV, 1e-9)
	assert.InDelta(t, 110.0, surface.Points[1].Strike, 1e-9)
	assert.InDelta(t, 0.22, surface.Points[1].MeanIV, 1e-9)
	assert.Equal(t, "2026-06-19", surface.Points[2].Expiration)
	assert.InDelta(t, 0.24, surface.Points[2].MeanIV, 1e-9)
}

func TestAnalyzeChain_SkewBuckets(t *testing.T) {
	analysis, err := newTestAnalyzer().AnalyzeChain(chainOf(t, 100,
		// ATM bucket: strike 100 and 99.5 are both within 1% of spot.
		contract(t, domain.OptionTypeCall, "2026-03-01", 100, 0.20, 10, 10),
		contract(t, domain.OptionTypePut, "2026-03-01", 99.5, 0.22, 10, 10),
		// OTM put at -10% moneyness.
		contract(t, domain.OptionTypePut, "2026-03-01", 90, 0.28, 10, 10),
	))
	require.NoError(t, err)

	skew, ok := analysis.Skew.ByExpiration["2026-03-01"]
	require.True(t, ok)

	require.NotNil(t, skew.ATMVol)
	assert.InDelta(t, 0.21, *skew.ATMVol, 1e-9)
	require.NotNil(t, skew.OTMPutVol)
	assert.InDelta(t, 0.28, *skew.OTMPutVol, 1e-9)
	require.NotNil(t, skew.PutSkew)
	assert.InDelta(t, 0.07, *skew.PutSkew, 1e-9)

	// No OTM calls anywhere: the bucket and its average stay undefined.
	assert.Nil(t, skew.OTMCallVol)
	assert.Nil(t, skew.CallSkew)
	assert.Nil(t, analysis.Skew.AvgCallSkew)

	require.NotNil(t, analysis.Skew.AvgPutSkew)
	assert.InDelta(t, 0.07, *analysis.Skew.AvgPutSkew, 1e-9)
}

func TestAnalyzeChain_SkewWithoutATMQuote(t *testing.T) {
	analysis, err := newTestAnalyzer().AnalyzeChain(chainOf(t, 100,
		contract(t, domain.OptionTypePut, "2026-06-01", 90, 0.30, 10, 10),
	))
	require.NoError(t, err)

	skew, ok := analysis.Skew.ByExpiration["2026-06-01"]
	require.True(t, ok)
	assert.Nil(t, skew.ATMVol)
	require.NotNil(t, skew.OTMPutVol)
	assert.Nil(t, skew.PutSkew)
	assert.Nil(t, analysis.Skew.AvgPutSkew)
}

func TestAnalyzeChain_TermStructure(t *testing.T) {
	analysis, err := newTestAnalyzer().AnalyzeChain(chainOf(t, 100,
		contract(t, domain.OptionTypeCall, "2026-01-31", 100, 0.20, 10, 10),
		contract(t, domain.OptionTypeCall, "2026-04-01", 100, 0.26, 10, 10),
	))
	require.NoError(t, err)

	term := analysis.Term
	require.Len(t, term.Points, 2)
	assert.Equal(t, 30, term.Points[0].DaysToExpiry)
	assert.Equal(t, 90, term.Points[1].DaysToExpiry)

	// Least squares through (30, 0.20) and (90, 0.26).
	assert.InDelta(t, 0.001, term.Slope, 1e-12)
	assert.InDelta(t, 0.20, term.MinATMVol, 1e-9)
	assert.InDelta(t, 0.26, term.MaxATMVol, 1e-9)
}

func TestAnalyzeChain_TermStructureSingleExpiration(t *testing.T) {
	analysis, err := newTestAnalyzer().AnalyzeChain(chainOf(t, 100,
		contract(t, domain.OptionTypeCall, "2026-01-31", 100, 0.20, 10, 10),
	))
	require.NoError(t, err)

	assert.Zero(t, analysis.Term.Slope)
	assert.InDelta(t, 0.20, analysis.Term.MinATMVol, 1e-9)
	assert.InDelta(t, 0.20, analysis.Term.MaxATMVol, 1e-9)
}

func TestAnalyzeChain_StrikeClusters(t *testing.T) {
	analysis, err := newTestAnalyzer().AnalyzeChain(chainOf(t, 100,
		contract(t, domain.OptionTypeCall, "2026-03-20", 80, 0.2, 10, 5),
		contract(t, domain.OptionTypeCall, "2026-03-20", 95, 0.2, 300, 10),
		contract(t, domain.OptionTypeCall, "2026-03-20", 100, 0.2, 50, 500),
		contract(t, domain.OptionTypeCall, "2026-03-20", 105, 0.2, 10, 10),
		contract(t, domain.OptionTypeCall, "2026-03-20", 120, 0.2, 10, 5),
	))
	require.NoError(t, err)

	flow := analysis.StrikeFlow
	assert.InDelta(t, 106.0, flow.AvgVolumePerStrike, 1e-9)
	assert.InDelta(t, 100.0, flow.MaxVolumeStrike, 1e-9)
	assert.InDelta(t, 95.0, flow.MaxOIStrike, 1e-9)

	// The heavy 100 strike lifts the centered average of itself and both
	// neighbours above the 1.5x threshold; 80 and 120 sit outside the
	// 10% band.
	require.Len(t, flow.Clusters, 3)
	assert.InDelta(t, 95.0, flow.Clusters[0].Strike, 1e-9)
	assert.InDelta(t, 100.0, flow.Clusters[1].Strike, 1e-9)
	assert.InDelta(t, 105.0, flow.Clusters[2].Strike, 1e-9)
	assert.InDelta(t, -5.0, flow.Clusters[0].DistanceToPrice, 1e-9)
	assert.InDelta(t, 0.0, flow.Clusters[1].DistanceToPrice, 1e-9)
	assert.Equal(t, int64(500), flow.Clusters[1].Volume)
	assert.Equal(t, int64(50), flow.Clusters[1].OpenInterest)
}

func TestAnalyzeChain_TooFewStrikesForClusters(t *testing.T) {
	analysis, err := newTestAnalyzer().AnalyzeChain(chainOf(t, 100,
		contract(t, domain.OptionTypeCall, "2026-03-20", 100, 0.2, 10, 500),
		contract(t, domain.OptionTypeCall, "2026-03-20", 105, 0.2, 10, 10),
	))
	require.NoError(t, err)

	// A centered window needs both neighbours.
	assert.Empty(t, analysis.StrikeFlow.Clusters)
	assert.InDelta(t, 255.0, analysis.StrikeFlow.AvgVolumePerStrike, 1e-9)
}
