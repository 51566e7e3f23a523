package domain

import "time"

// ExposureParams configura los límites de riesgo en capas.
type ExposureParams struct {
	MaxSharesPerOutcome float64 // tope de shares por token (solo modo fixed_shares; 0 = sin límite)
	MaxUSDPerOutcome    float64 // tope de coste por token (0 = sin límite)
	MaxExposureFraction float64 // fracción máxima del balance en riesgo total
	SameEventFactor     float64 // peso de correlación: mismo partido
	SameDayFactor       float64 // peso de correlación: mismo día, distinto partido
}

// ExposureSnapshot es la vista de riesgo en uso al evaluar un candidato.
// Se reconstruye desde el ledger al empezar cada ciclo y se actualiza tras
// cada apuesta aceptada dentro del ciclo — la evaluación es secuencial, así
// que nunca hay lecturas rancias entre candidatos del mismo ciclo.
type ExposureSnapshot struct {
	TotalCostBasis float64
	TokenCost      map[string]float64
	TokenShares    map[string]float64
	Open           []Position
}

// NewExposureSnapshot construye el snapshot a partir de las posiciones abiertas.
func NewExposureSnapshot(open []Position) ExposureSnapshot {
	snap := ExposureSnapshot{
		TokenCost:   make(map[string]float64, len(open)),
		TokenShares: make(map[string]float64, len(open)),
		Open:        open,
	}
	for _, pos := range open {
		snap.TotalCostBasis += pos.CostBasis
		snap.TokenCost[pos.TokenID] += pos.CostBasis
		snap.TokenShares[pos.TokenID] += pos.Shares
	}
	return snap
}

// Record incorpora una apuesta recién aceptada al snapshot para que los
// candidatos restantes del ciclo la vean como exposición ya comprometida.
func (s *ExposureSnapshot) Record(pos Position) {
	s.TotalCostBasis += pos.CostBasis
	s.TokenCost[pos.TokenID] += pos.CostBasis
	s.TokenShares[pos.TokenID] += pos.Shares
	s.Open = append(s.Open, pos)
}

// ApplyCaps aplica los límites en orden estricto, cada uno capaz de rechazar
// o encoger el stake por su cuenta:
//
//  1. tope de shares por token (solo fixed_shares)
//  2. tope de dólares por token (recalcula shares al encoger)
//  3. tope global balance × MaxExposureFraction — siempre sobre exposición
//     real sin descontar correlaciones; el descuento jamás abre hueco extra
//
// Un rechazo devuelve una razón legible: el caller tiene que poder loguear
// por qué no se tomó un edge claramente rentable.
func (p ExposureParams) ApplyCaps(snap ExposureSnapshot, tokenID string, price float64, stake Stake, balance, minBetUSD float64, fixedShares bool) (Stake, string, bool) {
	if fixedShares && p.MaxSharesPerOutcome > 0 {
		held := snap.TokenShares[tokenID]
		if held >= p.MaxSharesPerOutcome {
			return Stake{}, "max shares per outcome reached", false
		}
		if held+stake.Shares > p.MaxSharesPerOutcome {
			stake.Shares = p.MaxSharesPerOutcome - held
			stake.USD = stake.Shares * price
		}
	}

	if p.MaxUSDPerOutcome > 0 {
		cost := snap.TokenCost[tokenID]
		if cost >= p.MaxUSDPerOutcome {
			return Stake{}, "max exposure per outcome reached", false
		}
		if cost+stake.USD > p.MaxUSDPerOutcome {
			stake.USD = p.MaxUSDPerOutcome - cost
			stake.Shares = stake.USD / price
		}
	}

	maxExposure := balance * p.MaxExposureFraction
	if snap.TotalCostBasis+stake.USD > maxExposure {
		room := maxExposure - snap.TotalCostBasis
		if room < minBetUSD {
			return Stake{}, "global exposure cap reached", false
		}
		stake.USD = room
		stake.Shares = stake.USD / price
	}

	if stake.USD < minBetUSD {
		return Stake{}, "size below minimum after exposure caps", false
	}
	return stake, "", true
}

// CorrelatedExposure pondera el coste de cada posición abierta por su
// correlación con el candidato: mismo partido → SameEventFactor, mismo día
// natural (UTC) → SameDayFactor, resto 1.0. Es una cifra informativa para
// logs y métricas; el límite duro del paso 3 nunca la usa.
func (p ExposureParams) CorrelatedExposure(open []Position, eventID string, now time.Time) float64 {
	day := now.UTC().Truncate(24 * time.Hour)
	var total float64
	for _, pos := range open {
		weight := 1.0
		switch {
		case eventID != "" && pos.EventID == eventID:
			weight = p.SameEventFactor
		case pos.CreatedAt.UTC().Truncate(24 * time.Hour).Equal(day):
			weight = p.SameDayFactor
		}
		total += pos.CostBasis * weight
	}
	return total
}
