package domain

import "time"

// PositionStatus es el estado de una posición en el ledger.
// Transiciones monótonas: open → sold | won | lost, exactamente una vez.
type PositionStatus string

const (
	StatusOpen PositionStatus = "open"
	StatusSold PositionStatus = "sold"
	StatusWon  PositionStatus = "won"
	StatusLost PositionStatus = "lost"
)

// Terminal devuelve true si el estado ya no admite transiciones.
func (s PositionStatus) Terminal() bool {
	return s == StatusSold || s == StatusWon || s == StatusLost
}

// Position es la unidad que posee el Bet Ledger: lo apostado a un token.
// Una fila por token abierto — las compras sucesivas del mismo token se
// acumulan sobre la fila existente, nunca crean duplicados.
type Position struct {
	ID          string
	EventID     string
	Sport       string
	HomeTeam    string
	AwayTeam    string
	Outcome     string // lado comprado (nombre de equipo)
	TokenID     string
	ConditionID string
	NegRisk     bool // mercado sobre el adapter NegRisk; decide el exchange al vender
	Shares      float64
	AvgPrice    float64 // precio medio de entrada ponderado por tamaño
	CostBasis   float64
	EntryEdge   float64 // edge en el momento de la primera compra
	OrderID     string
	Status      PositionStatus
	ExitPrice   float64 // precio de venta o de resolución (1.0 si won)
	Profit      float64
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

// Matchup devuelve "Away @ Home", la forma corta para logs y avisos.
func (p Position) Matchup() string {
	return p.AwayTeam + " @ " + p.HomeTeam
}

// Accumulate incorpora una compra adicional del mismo token: suma shares,
// recalcula el precio medio ponderado por tamaño y amplía el cost basis.
func (p *Position) Accumulate(shares, price float64) {
	total := p.Shares + shares
	if total <= 0 {
		return
	}
	p.AvgPrice = (p.Shares*p.AvgPrice + shares*price) / total
	p.Shares = total
	p.CostBasis += shares * price
}

// SellProfit devuelve el beneficio de vender toda la posición al precio dado.
func (p Position) SellProfit(exitPrice float64) float64 {
	return p.Shares*exitPrice - p.CostBasis
}

// UnrealizedReturn devuelve el retorno no realizado sobre el coste a un
// precio actual dado (1.0 = +100%). Es la cifra que alimenta el take-profit.
func (p Position) UnrealizedReturn(curPrice float64) float64 {
	if p.CostBasis <= 0 {
		return 0
	}
	return (p.Shares*curPrice - p.CostBasis) / p.CostBasis
}

// MatchesWinner compara el outcome de la posición con el ganador reportado
// por el mercado. El exchange publica apodos cortos ("Celtics") y el outcome
// guarda el nombre del feed de odds ("Boston Celtics"), así que la
// comparación pasa por SameTeam.
func (p Position) MatchesWinner(winner string) bool {
	return SameTeam(p.Outcome, winner)
}

// ClassifyClosed clasifica una posición interna abierta que el ledger
// externo ya no tiene (o tiene a cero), según su último precio conocido:
//
//	≥ 0.95          → won  (precio forzado a 1.0)
//	≤ 0.05 o desconocido → lost
//	resto           → sold al último precio
//
// Devuelve el estado terminal y el precio de salida a registrar.
func ClassifyClosed(lastPrice float64, known bool) (PositionStatus, float64) {
	switch {
	case known && lastPrice >= 0.95:
		return StatusWon, 1.0
	case !known || lastPrice <= 0.05:
		return StatusLost, 0
	default:
		return StatusSold, lastPrice
	}
}

// ExternalPosition es una posición según el ledger del exchange (data-api).
// Es la fuente de verdad contra la que se reconcilia el Bet Ledger.
type ExternalPosition struct {
	TokenID     string
	ConditionID string
	Title       string
	Outcome     string
	Shares      float64
	AvgPrice    float64
	CurPrice    float64
}

// Resolution es el estado de resolución de un mercado en el exchange.
type Resolution struct {
	Resolved       bool
	WinningOutcome string
}
