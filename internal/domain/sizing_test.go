package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- KellyFraction / SizeBet modo kelly ---

func TestKellyFraction_Basic(t *testing.T) {
	// edge/(1-prob) = 0.10/0.45 = 0.2222
	assert.InDelta(t, 0.2222, KellyFraction(0.10, 0.55), 0.0001)
}

func kellyParams() SizingParams {
	return SizingParams{
		Mode:            SizeKelly,
		KellyMultiplier: 0.25,
		MaxBetFraction:  0.03,
		MinBetUSD:       5,
		MaxBetUSD:       100,
	}
}

func TestSizeBet_Kelly_CappedByMaxFraction(t *testing.T) {
	// kelly 0.2222 × 0.25 = 0.0556 → cap 0.03 → 1000 × 0.03 = 30 USD
	st, reason, ok := kellyParams().SizeBet(0.10, 0.025, 0.55, 0.50, 1000)
	require.True(t, ok, reason)
	assert.InDelta(t, 30.0, st.USD, 0.001)
	assert.InDelta(t, 60.0, st.Shares, 0.001)
}

func TestSizeBet_Kelly_MinBetFloor(t *testing.T) {
	// kelly 0.008 × 0.25 = 0.002 → 1000 × 0.002 = 2 USD → sube al mínimo de 5
	st, _, ok := kellyParams().SizeBet(0.004, 0.025, 0.50, 0.50, 1000)
	require.True(t, ok)
	assert.InDelta(t, 5.0, st.USD, 0.001)
}

func TestSizeBet_Kelly_MaxBetUSD(t *testing.T) {
	// 100000 × 0.03 = 3000 → recortado al máximo absoluto de 100
	st, _, ok := kellyParams().SizeBet(0.10, 0.025, 0.55, 0.50, 100000)
	require.True(t, ok)
	assert.InDelta(t, 100.0, st.USD, 0.001)
}

func TestSizeBet_Kelly_InsufficientBalance(t *testing.T) {
	_, reason, ok := kellyParams().SizeBet(0.10, 0.025, 0.55, 0.50, 3)
	assert.False(t, ok)
	assert.Equal(t, "insufficient balance for minimum bet", reason)
}

// --- SizeBet modo fixed_shares ---

func fixedParams() SizingParams {
	return SizingParams{
		Mode:              SizeFixedShares,
		MinBetUSD:         5,
		MaxBetUSD:         50,
		BaseShares:        50,
		EdgeScaling:       true,
		MaxEdgeMultiplier: 3,
	}
}

func TestSizeBet_FixedShares_EdgeScaling(t *testing.T) {
	// mult = min(0.10/0.025, 3) = 3 → 150 shares × 0.40 = 60 USD
	// recortado a MaxBetUSD 50 → 125 shares
	st, reason, ok := fixedParams().SizeBet(0.10, 0.025, 0.55, 0.40, 1000)
	require.True(t, ok, reason)
	assert.InDelta(t, 50.0, st.USD, 0.001)
	assert.InDelta(t, 125.0, st.Shares, 0.001)
}

func TestSizeBet_FixedShares_NoScaling(t *testing.T) {
	p := fixedParams()
	p.EdgeScaling = false
	st, _, ok := p.SizeBet(0.10, 0.025, 0.55, 0.40, 1000)
	require.True(t, ok)
	assert.InDelta(t, 20.0, st.USD, 0.001)
	assert.InDelta(t, 50.0, st.Shares, 0.001)
}

func TestSizeBet_FixedShares_BelowMin(t *testing.T) {
	p := fixedParams()
	p.BaseShares = 10
	p.EdgeScaling = false
	// 10 × 0.30 = 3 USD < mínimo de 5
	_, reason, ok := p.SizeBet(0.05, 0.025, 0.55, 0.30, 1000)
	assert.False(t, ok)
	assert.Equal(t, "size below minimum bet", reason)
}

// --- ExposureParams.ApplyCaps ---

func exposureParams() ExposureParams {
	return ExposureParams{
		MaxSharesPerOutcome: 100,
		MaxUSDPerOutcome:    25,
		MaxExposureFraction: 0.5,
		SameEventFactor:     0.8,
		SameDayFactor:       0.3,
	}
}

func TestApplyCaps_PerOutcomeDollarShrink(t *testing.T) {
	snap := NewExposureSnapshot(nil)
	snap.TokenCost["tok1"] = 20
	snap.TotalCostBasis = 20

	// 20 de 25 usados a 0.40/share: la petición de 10 USD encoge a 5 → 12.5 shares
	st, reason, ok := exposureParams().ApplyCaps(snap, "tok1", 0.40, Stake{USD: 10, Shares: 25}, 1000, 1, false)
	require.True(t, ok, reason)
	assert.InDelta(t, 5.0, st.USD, 0.001)
	assert.InDelta(t, 12.5, st.Shares, 0.001)
}

func TestApplyCaps_PerOutcomeReject(t *testing.T) {
	snap := NewExposureSnapshot(nil)
	snap.TokenCost["tok1"] = 25
	snap.TotalCostBasis = 25

	_, reason, ok := exposureParams().ApplyCaps(snap, "tok1", 0.40, Stake{USD: 10, Shares: 25}, 1000, 1, false)
	assert.False(t, ok)
	assert.Equal(t, "max exposure per outcome reached", reason)
}

func TestApplyCaps_ShareCapFixedMode(t *testing.T) {
	snap := NewExposureSnapshot(nil)
	snap.TokenShares["tok1"] = 80

	st, _, ok := exposureParams().ApplyCaps(snap, "tok1", 0.20, Stake{USD: 10, Shares: 50}, 1000, 1, true)
	require.True(t, ok)
	assert.InDelta(t, 20.0, st.Shares, 0.001)
	assert.InDelta(t, 4.0, st.USD, 0.001)
}

func TestApplyCaps_ShareCapRejectAtLimit(t *testing.T) {
	snap := NewExposureSnapshot(nil)
	snap.TokenShares["tok1"] = 100

	_, reason, ok := exposureParams().ApplyCaps(snap, "tok1", 0.20, Stake{USD: 10, Shares: 50}, 1000, 1, true)
	assert.False(t, ok)
	assert.Equal(t, "max shares per outcome reached", reason)
}

func TestApplyCaps_ShareCapIgnoredInKellyMode(t *testing.T) {
	snap := NewExposureSnapshot(nil)
	snap.TokenShares["tok1"] = 100

	st, _, ok := exposureParams().ApplyCaps(snap, "tok1", 0.20, Stake{USD: 10, Shares: 50}, 1000, 1, false)
	require.True(t, ok)
	assert.InDelta(t, 10.0, st.USD, 0.001)
}

func TestApplyCaps_GlobalReject(t *testing.T) {
	snap := NewExposureSnapshot(nil)
	snap.TotalCostBasis = 48

	// tope global 100 × 0.5 = 50; hueco 2 < mínimo 5 → rechazo
	_, reason, ok := exposureParams().ApplyCaps(snap, "tok2", 0.40, Stake{USD: 10, Shares: 25}, 100, 5, false)
	assert.False(t, ok)
	assert.Equal(t, "global exposure cap reached", reason)
}

func TestApplyCaps_GlobalShrink(t *testing.T) {
	snap := NewExposureSnapshot(nil)
	snap.TotalCostBasis = 42

	// hueco 8 ≥ mínimo 5 → encoge a 8 USD = 20 shares a 0.40
	st, reason, ok := exposureParams().ApplyCaps(snap, "tok2", 0.40, Stake{USD: 10, Shares: 25}, 100, 5, false)
	require.True(t, ok, reason)
	assert.InDelta(t, 8.0, st.USD, 0.001)
	assert.InDelta(t, 20.0, st.Shares, 0.001)
}

func TestApplyCaps_FloorAfterShrink(t *testing.T) {
	snap := NewExposureSnapshot(nil)
	snap.TokenCost["tok1"] = 24
	snap.TotalCostBasis = 24

	// el tope por token deja 1 USD de hueco, por debajo del mínimo de 5
	_, reason, ok := exposureParams().ApplyCaps(snap, "tok1", 0.40, Stake{USD: 10, Shares: 25}, 1000, 5, false)
	assert.False(t, ok)
	assert.Equal(t, "size below minimum after exposure caps", reason)
}

// --- CorrelatedExposure / ExposureSnapshot ---

func TestCorrelatedExposure_MixedWeights(t *testing.T) {
	now := time.Now()
	open := []Position{
		{EventID: "e1", CostBasis: 10, CreatedAt: now},
		{EventID: "e2", CostBasis: 15, CreatedAt: now},
		{EventID: "e3", CostBasis: 20, CreatedAt: now},
	}
	// e3 comparte partido (×0.8); e1 y e2 comparten día (×0.3):
	// 10×0.3 + 15×0.3 + 20×0.8 = 23.5
	got := exposureParams().CorrelatedExposure(open, "e3", now)
	assert.InDelta(t, 23.5, got, 0.001)
}

func TestCorrelatedExposure_UncorrelatedFullWeight(t *testing.T) {
	now := time.Now()
	open := []Position{
		{EventID: "e1", CostBasis: 10, CreatedAt: now.Add(-48 * time.Hour)},
	}
	got := exposureParams().CorrelatedExposure(open, "e9", now)
	assert.InDelta(t, 10.0, got, 0.001)
}

func TestExposureSnapshot_Record(t *testing.T) {
	snap := NewExposureSnapshot([]Position{
		{TokenID: "tok1", CostBasis: 10, Shares: 25},
	})
	assert.InDelta(t, 10.0, snap.TotalCostBasis, 0.001)

	snap.Record(Position{TokenID: "tok1", CostBasis: 5, Shares: 12.5})
	assert.InDelta(t, 15.0, snap.TotalCostBasis, 0.001)
	assert.InDelta(t, 15.0, snap.TokenCost["tok1"], 0.001)
	assert.InDelta(t, 37.5, snap.TokenShares["tok1"], 0.001)
	assert.Len(t, snap.Open, 2)
}
