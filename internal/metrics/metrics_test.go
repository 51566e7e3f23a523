package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMonitor_Counters(t *testing.T) {
	m := New()

	m.RecordCycle(1.2, 5)
	m.RecordBetPlaced()
	m.RecordBetPlaced()
	m.RecordBetWon()
	m.RecordSkip("below_min_edge")
	m.RecordSkip("below_min_edge")
	m.RecordSkip("thin_book")
	m.RecordAPIError("rate_limited")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.candidates))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.betsPlaced))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.betsWon))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.skips.WithLabelValues("below_min_edge")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skips.WithLabelValues("thin_book")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiErrors.WithLabelValues("rate_limited")))
}

func TestMonitor_PortfolioGauges(t *testing.T) {
	m := New()

	m.UpdatePortfolio(3, 121.5, 87.2, 940.0)
	m.AddRealizedPnL(12.5)
	m.AddRealizedPnL(-4.0)
	m.UpdateBreaker(true)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.openPositions))
	assert.Equal(t, 121.5, testutil.ToFloat64(m.exposure))
	assert.Equal(t, 87.2, testutil.ToFloat64(m.corrExposure))
	assert.Equal(t, 940.0, testutil.ToFloat64(m.balance))
	assert.InDelta(t, 8.5, testutil.ToFloat64(m.realizedPnL), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerOpen))

	m.UpdateBreaker(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.breakerOpen))
}
