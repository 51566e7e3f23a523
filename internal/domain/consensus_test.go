package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- ImpliedProbability / Devig ---

func TestImpliedProbability_NegativeOdds(t *testing.T) {
	// -118 → 118/218 = 0.54128
	assert.InDelta(t, 0.5413, ImpliedProbability(-118), 0.0001)
}

func TestImpliedProbability_PositiveOdds(t *testing.T) {
	// +100 → 100/200 = 0.5, +150 → 100/250 = 0.4
	assert.InDelta(t, 0.5, ImpliedProbability(100), 1e-12)
	assert.InDelta(t, 0.4, ImpliedProbability(150), 1e-12)
}

func TestDevig_SumsToOne(t *testing.T) {
	p1 := ImpliedProbability(-118)
	p2 := ImpliedProbability(100)
	f1, f2 := Devig(p1, p2)
	assert.InDelta(t, 1.0, f1+f2, 1e-12)
	// favorito: 0.54128/1.04128 ≈ 0.5198
	assert.InDelta(t, 0.5198, f1, 0.0005)
}

// --- QuotePair ---

func TestQuotePair_For_CaseInsensitive(t *testing.T) {
	pair := QuotePair{
		A: Quote{Outcome: "Los Angeles Lakers", Price: -120},
		B: Quote{Outcome: "Boston Celtics", Price: 110},
	}
	q, ok := pair.For("boston celtics")
	assert.True(t, ok)
	assert.Equal(t, 110, q.Price)

	_, ok = pair.For("Miami Heat")
	assert.False(t, ok)
}

func TestQuotePair_FairFor(t *testing.T) {
	pair := QuotePair{
		A: Quote{Outcome: "Los Angeles Lakers", Price: -118},
		B: Quote{Outcome: "Boston Celtics", Price: 100},
	}
	fair, ok := pair.FairFor("Los Angeles Lakers")
	assert.True(t, ok)
	assert.InDelta(t, 0.5198, fair, 0.0005)
}

func TestQuotePair_Complete_SingleSided(t *testing.T) {
	pair := QuotePair{A: Quote{Outcome: "Lakers", Price: -120}}
	assert.False(t, pair.Complete())
}

// --- BuildConsensus ---

func makeBook(source string, priceA, priceB int, updated time.Time) QuotePair {
	return QuotePair{
		A: Quote{Source: source, Outcome: "Los Angeles Lakers", Price: priceA, LastUpdate: updated},
		B: Quote{Source: source, Outcome: "Boston Celtics", Price: priceB, LastUpdate: updated},
	}
}

func consensusParams() ConsensusParams {
	return ConsensusParams{
		TrustedBooks: []string{"pinnacle", "betonlineag", "lowvig", "betus"},
		MaxQuoteAge:  5 * time.Minute,
		MinSources:   2,
	}
}

func TestBuildConsensus_MeanAndVariance(t *testing.T) {
	now := time.Now()
	m := MatchOdds{Books: []QuotePair{
		makeBook("pinnacle", -120, 120, now),    // fair 0.54545
		makeBook("betonlineag", -130, 130, now), // fair 0.56522
		makeBook("lowvig", -110, 110, now),      // fair 0.52381
	}}

	c, ok := BuildConsensus(m, "Los Angeles Lakers", now, consensusParams())
	require.True(t, ok)
	assert.Equal(t, 3, c.Sources)
	// media = (0.54545 + 0.56522 + 0.52381) / 3 = 0.54483
	assert.InDelta(t, 0.54483, c.Probability, 0.0001)
	// varianza poblacional = 0.000286
	assert.InDelta(t, 0.000286, c.Variance, 0.00001)
}

func TestBuildConsensus_OutlierRejected(t *testing.T) {
	now := time.Now()
	m := MatchOdds{Books: []QuotePair{
		makeBook("pinnacle", -120, 120, now),
		makeBook("betonlineag", -130, 130, now),
		makeBook("lowvig", -110, 110, now),
		makeBook("betus", -400, 400, now), // fair 0.80, a >2σ de la mediana
	}}

	c, ok := BuildConsensus(m, "Los Angeles Lakers", now, consensusParams())
	require.True(t, ok)
	assert.Equal(t, 3, c.Sources)
	// la media vuelve a la de las tres casas coherentes
	assert.InDelta(t, 0.54483, c.Probability, 0.0001)
}

func TestBuildConsensus_LowDispersionKeepsAll(t *testing.T) {
	now := time.Now()
	m := MatchOdds{Books: []QuotePair{
		makeBook("pinnacle", -120, 120, now),
		makeBook("betonlineag", -120, 120, now),
		makeBook("lowvig", -120, 120, now),
	}}

	c, ok := BuildConsensus(m, "Los Angeles Lakers", now, consensusParams())
	require.True(t, ok)
	assert.Equal(t, 3, c.Sources)
	assert.InDelta(t, 0.54545, c.Probability, 0.0001)
	assert.InDelta(t, 0.0, c.Variance, 1e-12)
}

func TestBuildConsensus_StaleQuoteDiscarded(t *testing.T) {
	now := time.Now()
	m := MatchOdds{Books: []QuotePair{
		makeBook("pinnacle", -120, 120, now),
		makeBook("betonlineag", -130, 130, now),
		makeBook("lowvig", -110, 110, now.Add(-10*time.Minute)), // fuera de ventana
	}}

	c, ok := BuildConsensus(m, "Los Angeles Lakers", now, consensusParams())
	require.True(t, ok)
	assert.Equal(t, 2, c.Sources)
}

func TestBuildConsensus_UntrustedIgnored(t *testing.T) {
	now := time.Now()
	m := MatchOdds{Books: []QuotePair{
		makeBook("pinnacle", -120, 120, now),
		makeBook("draftkings", -500, 500, now), // fuera de la allow-list
	}}

	_, ok := BuildConsensus(m, "Los Angeles Lakers", now, consensusParams())
	// solo sobrevive pinnacle y el mínimo son 2
	assert.False(t, ok)
}

func TestBuildConsensus_MismatchedOutcomeDiscarded(t *testing.T) {
	now := time.Now()
	odd := QuotePair{
		A: Quote{Source: "pinnacle", Outcome: "Over 210.5", Price: -110, LastUpdate: now},
		B: Quote{Source: "pinnacle", Outcome: "Under 210.5", Price: -110, LastUpdate: now},
	}
	m := MatchOdds{Books: []QuotePair{odd, makeBook("betonlineag", -120, 120, now)}}

	_, ok := BuildConsensus(m, "Los Angeles Lakers", now, consensusParams())
	assert.False(t, ok)
}

func TestBuildConsensus_BelowMinSources(t *testing.T) {
	now := time.Now()
	m := MatchOdds{Books: []QuotePair{makeBook("pinnacle", -120, 120, now)}}

	_, ok := BuildConsensus(m, "Los Angeles Lakers", now, consensusParams())
	assert.False(t, ok)
}

// --- Edge ---

func TestEdge_Basic(t *testing.T) {
	// (0.55 - 0.50) / 0.50 = 0.10
	assert.InDelta(t, 0.10, Edge(0.55, 0.50), 1e-12)
}

func edgeParams() EdgeParams {
	return EdgeParams{
		Dynamic:         true,
		Tier4Plus:       0.025,
		Tier3:           0.035,
		Tier2:           0.05,
		VarianceCeiling: 0.02,
		MinPrice:        0.10,
	}
}

func TestMinEdgeFor_Tiers(t *testing.T) {
	p := edgeParams()
	assert.InDelta(t, 0.025, p.MinEdgeFor(5, 0.01), 1e-12)
	assert.InDelta(t, 0.025, p.MinEdgeFor(4, 0.01), 1e-12)
	assert.InDelta(t, 0.035, p.MinEdgeFor(3, 0.01), 1e-12)
	assert.InDelta(t, 0.05, p.MinEdgeFor(2, 0.01), 1e-12)
}

func TestMinEdgeFor_VarianceScaling(t *testing.T) {
	p := edgeParams()
	// 0.035 × (1 + (0.03-0.02)/0.02) = 0.0525 → recortado al tier de 2 casas
	assert.InDelta(t, 0.05, p.MinEdgeFor(3, 0.03), 1e-12)
	// escalado moderado que no llega al techo: 0.025 × 1.25 = 0.03125
	assert.InDelta(t, 0.03125, p.MinEdgeFor(4, 0.025), 1e-12)
}

func TestMinEdgeFor_Monotonic(t *testing.T) {
	p := edgeParams()
	prev := 0.0
	for _, v := range []float64{0, 0.01, 0.02, 0.03, 0.05, 0.10} {
		got := p.MinEdgeFor(4, v)
		assert.GreaterOrEqual(t, got, prev)
		assert.LessOrEqual(t, got, p.Tier2)
		prev = got
	}
	for v := 0.0; v <= 0.1; v += 0.02 {
		assert.LessOrEqual(t, p.MinEdgeFor(4, v), p.MinEdgeFor(3, v))
		assert.LessOrEqual(t, p.MinEdgeFor(3, v), p.MinEdgeFor(2, v))
	}
}

func TestQualifies_PriceFloor(t *testing.T) {
	p := edgeParams()
	ok, _ := p.Qualifies(0.50, 0.08, Consensus{Sources: 4, Variance: 0.01})
	assert.False(t, ok)
}

func TestQualifies_BySourceCount(t *testing.T) {
	p := edgeParams()
	// edge 0.03 pasa con 4 casas (umbral 0.025) pero no con 2 (0.05)
	ok, minEdge := p.Qualifies(0.03, 0.50, Consensus{Sources: 4, Variance: 0.01})
	assert.True(t, ok)
	assert.InDelta(t, 0.025, minEdge, 1e-12)

	ok, minEdge = p.Qualifies(0.03, 0.50, Consensus{Sources: 2, Variance: 0.01})
	assert.False(t, ok)
	assert.InDelta(t, 0.05, minEdge, 1e-12)
}

func TestQualifies_StaticMode(t *testing.T) {
	p := EdgeParams{MinEdge: 0.04, MinPrice: 0.10}
	ok, minEdge := p.Qualifies(0.05, 0.50, Consensus{Sources: 2})
	assert.True(t, ok)
	assert.InDelta(t, 0.04, minEdge, 1e-12)
}

// --- Team matching ---

func TestNormalizeTeam(t *testing.T) {
	assert.Equal(t, "st louis blues", NormalizeTeam("St. Louis  Blues!"))
	assert.Equal(t, "lakers", NormalizeTeam("LAKERS"))
}

func TestSameTeam_NicknameVsFullName(t *testing.T) {
	assert.True(t, SameTeam("Lakers", "Los Angeles Lakers"))
	assert.True(t, SameTeam("Miami Heat", "Heat"))
	assert.False(t, SameTeam("Celtics", "Miami Heat"))
	assert.False(t, SameTeam("", "Lakers"))
}

func TestMarket_TokenFor(t *testing.T) {
	m := Market{Tokens: [2]Token{
		{TokenID: "tok-lal", Outcome: "Lakers"},
		{TokenID: "tok-bos", Outcome: "Celtics"},
	}}
	tok, ok := m.TokenFor("Boston Celtics")
	assert.True(t, ok)
	assert.Equal(t, "tok-bos", tok.TokenID)
}

func TestMarket_CoversEvent(t *testing.T) {
	game := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	m := Market{
		GameTime: game,
		Tokens: [2]Token{
			{Outcome: "Lakers"},
			{Outcome: "Celtics"},
		},
	}
	odds := MatchOdds{
		HomeTeam:     "Boston Celtics",
		AwayTeam:     "Los Angeles Lakers",
		CommenceTime: game.Add(30 * time.Minute),
	}
	assert.True(t, m.CoversEvent(odds))

	odds.CommenceTime = game.Add(48 * time.Hour)
	assert.False(t, m.CoversEvent(odds))

	odds.HomeTeam = "Miami Heat"
	assert.False(t, m.CoversEvent(odds))
}
