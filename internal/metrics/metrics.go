// Package metrics expone los indicadores Prometheus del motor en un
// registry propio, sin las métricas de runtime de Go mezcladas.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sharpbot"

// Monitor agrupa los contadores y gauges del ciclo de apuestas.
type Monitor struct {
	registry *prometheus.Registry

	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	candidates    prometheus.Counter
	betsPlaced    prometheus.Counter
	betsSold      prometheus.Counter
	betsWon       prometheus.Counter
	betsLost      prometheus.Counter
	skips         *prometheus.CounterVec
	apiErrors     *prometheus.CounterVec

	openPositions prometheus.Gauge
	exposure      prometheus.Gauge
	corrExposure  prometheus.Gauge
	balance       prometheus.Gauge
	realizedPnL   prometheus.Gauge
	breakerOpen   prometheus.Gauge

	clv prometheus.Histogram
}

// New crea un Monitor con registry propio.
func New() *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Monitor{
		registry: reg,

		cycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Ciclos de evaluación completados",
		}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duración del ciclo de evaluación",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		candidates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Candidatos evaluados",
		}),
		betsPlaced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bets_placed_total",
			Help:      "Apuestas colocadas (nuevas y acumulaciones)",
		}),
		betsSold: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bets_sold_total",
			Help:      "Posiciones vendidas antes de resolución",
		}),
		betsWon: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bets_won_total",
			Help:      "Posiciones resueltas ganadoras",
		}),
		betsLost: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bets_lost_total",
			Help:      "Posiciones resueltas perdedoras",
		}),
		skips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidate_skips_total",
				Help:      "Candidatos descartados por razón",
			},
			[]string{"reason"},
		),
		apiErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Errores de APIs externas por tipo",
			},
			[]string{"kind"},
		),

		openPositions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_positions",
			Help:      "Posiciones abiertas en el ledger",
		}),
		exposure: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "exposure_usd",
			Help:      "Coste abierto total en dólares",
		}),
		corrExposure: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "correlated_exposure_usd",
			Help:      "Exposición ponderada por correlación",
		}),
		balance: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "balance_usd",
			Help:      "Balance USDC disponible",
		}),
		realizedPnL: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realized_pnl_usd",
			Help:      "P&L realizado acumulado desde el arranque",
		}),
		breakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_open",
			Help:      "1 si el circuit breaker está bloqueando apuestas",
		}),

		clv: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "closing_line_value",
			Help:      "CLV al cierre de cada posición (consenso - precio de entrada)",
			Buckets:   []float64{-0.10, -0.05, -0.02, 0, 0.02, 0.05, 0.10},
		}),
	}
}

// RecordCycle registra un ciclo completado con su duración y candidatos.
func (m *Monitor) RecordCycle(seconds float64, candidates int) {
	m.cycles.Inc()
	m.cycleDuration.Observe(seconds)
	m.candidates.Add(float64(candidates))
}

func (m *Monitor) RecordBetPlaced() { m.betsPlaced.Inc() }
func (m *Monitor) RecordBetSold()   { m.betsSold.Inc() }
func (m *Monitor) RecordBetWon()    { m.betsWon.Inc() }
func (m *Monitor) RecordBetLost()   { m.betsLost.Inc() }

func (m *Monitor) RecordSkip(reason string) {
	m.skips.WithLabelValues(reason).Inc()
}

func (m *Monitor) RecordAPIError(kind string) {
	m.apiErrors.WithLabelValues(kind).Inc()
}

// UpdatePortfolio actualiza los gauges de cartera tras cada ciclo.
func (m *Monitor) UpdatePortfolio(open int, exposure, correlated, balance float64) {
	m.openPositions.Set(float64(open))
	m.exposure.Set(exposure)
	m.corrExposure.Set(correlated)
	m.balance.Set(balance)
}

// AddRealizedPnL acumula P&L realizado (puede ser negativo).
func (m *Monitor) AddRealizedPnL(v float64) {
	m.realizedPnL.Add(v)
}

func (m *Monitor) UpdateBreaker(open bool) {
	if open {
		m.breakerOpen.Set(1)
		return
	}
	m.breakerOpen.Set(0)
}

func (m *Monitor) RecordCLV(v float64) {
	m.clv.Observe(v)
}

// Handler devuelve el handler HTTP para /metrics.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry expone el registry para tests.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
