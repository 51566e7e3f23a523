package domain

import (
	"math"
	"sort"
	"time"
)

const (
	// dispersionNoiseFloor: por debajo de 1% de desviación estándar entre
	// casas no hay desacuerdo real, solo ruido — no se filtran outliers.
	dispersionNoiseFloor = 0.01

	// outlierSigmas: distancia a la mediana (en desviaciones estándar) a
	// partir de la cual una casa se considera outlier.
	outlierSigmas = 2.0

	// minSourcesForOutlierFilter: con menos de 3 casas la mediana no separa
	// nada — el filtro de outliers no aplica.
	minSourcesForOutlierFilter = 3
)

// ConsensusParams configura la construcción del consenso.
type ConsensusParams struct {
	TrustedBooks []string      // allow-list de casas sharp; todas pesan igual
	MaxQuoteAge  time.Duration // ventana de frescura por casa
	MinSources   int           // mínimo de casas supervivientes para emitir consenso
}

// Consensus es la probabilidad justa agregada para un (partido, outcome).
type Consensus struct {
	Probability float64   // media sin pesos de las probs justas supervivientes
	Sources     int       // casas que sobrevivieron todos los filtros
	Variance    float64   // varianza poblacional de las probs supervivientes
	Fair        []float64 // prob justa por casa superviviente
}

// BuildConsensus agrega las quotes de las casas de confianza en una
// probabilidad justa para el outcome dado.
//
// Filtrado por casa: fuera de la allow-list, par incompleto, más vieja que
// la ventana de frescura, o sin lado que coincida con el outcome → descartada.
// Con ≥3 supervivientes y desviación estándar > 1%, se eliminan las casas a
// más de 2σ de la mediana. Si tras todo quedan menos de MinSources casas no
// hay consenso (ok=false) para este outcome en este ciclo.
func BuildConsensus(m MatchOdds, outcome string, now time.Time, p ConsensusParams) (Consensus, bool) {
	trusted := make(map[string]bool, len(p.TrustedBooks))
	for _, b := range p.TrustedBooks {
		trusted[normalizeKey(b)] = true
	}

	fair := make([]float64, 0, len(m.Books))
	for _, pair := range m.Books {
		if !trusted[normalizeKey(pair.A.Source)] {
			continue
		}
		if !pair.Complete() {
			continue
		}
		if p.MaxQuoteAge > 0 && now.Sub(pair.OldestUpdate()) > p.MaxQuoteAge {
			continue
		}
		f, ok := pair.FairFor(outcome)
		if !ok {
			continue
		}
		fair = append(fair, f)
	}

	fair = rejectOutliers(fair)

	if len(fair) < p.MinSources {
		return Consensus{}, false
	}

	return Consensus{
		Probability: mean(fair),
		Sources:     len(fair),
		Variance:    populationVariance(fair),
		Fair:        fair,
	}, true
}

// rejectOutliers elimina las probabilidades a más de 2σ de la mediana.
// Solo actúa con ≥3 valores y dispersión por encima del suelo de ruido.
func rejectOutliers(fair []float64) []float64 {
	if len(fair) < minSourcesForOutlierFilter {
		return fair
	}
	sd := math.Sqrt(populationVariance(fair))
	if sd <= dispersionNoiseFloor {
		return fair
	}
	med := median(fair)
	kept := fair[:0]
	for _, f := range fair {
		if math.Abs(f-med) <= outlierSigmas*sd {
			kept = append(kept, f)
		}
	}
	return kept
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// populationVariance es la varianza poblacional (divide por N, no N-1).
func populationVariance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
