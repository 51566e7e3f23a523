package domain

import "time"

// GameState es el estado en vivo de un partido: marcador, periodo y reloj.
type GameState struct {
	EventID   string
	Sport     string
	HomeTeam  string
	AwayTeam  string
	HomeScore int
	AwayScore int
	Period    int           // 1-4 regulación, ≥5 prórroga (NBA)
	Clock     time.Duration // tiempo restante del periodo en curso
	Completed bool
}

// Margin devuelve la diferencia absoluta de marcador.
func (g GameState) Margin() int {
	d := g.HomeScore - g.AwayScore
	if d < 0 {
		return -d
	}
	return d
}

// ExitParams configura las reglas de salida anticipada de posiciones.
type ExitParams struct {
	// ReversalThreshold: salir cuando el edge recalculado con el consenso
	// fresco cae a este valor o por debajo (típicamente ≤0: el mercado ya
	// no está mal priceado a nuestro favor).
	ReversalThreshold float64

	// Árbol de take-profit sobre el estado del partido. TakeProfitAlways
	// sale sin mirar el partido; el resto son puertas condicionadas.
	TakeProfitAlways float64 // 2.0 → +200% sale siempre
	CrunchTimeProfit float64 // puerta en crunch time (la más baja)
	CloseGameProfit  float64 // puerta en partido igualado de segunda mitad
	BlowoutProfit    float64 // puerta en paliza

	CrunchMargin  int           // margen máximo para considerar crunch time
	CloseMargin   int           // margen máximo de partido igualado
	BlowoutMargin int           // margen mínimo de paliza
	CrunchClock   time.Duration // reloj restante máximo del último periodo

	RegulationPeriods int // periodos de regulación del deporte (4 en NBA)
}

// CurrentEdge recalcula el edge de una posición abierta contra el consenso
// fresco: (consensus - entryPrice) / entryPrice.
func CurrentEdge(consensus, entryPrice float64) float64 {
	return (consensus - entryPrice) / entryPrice
}

// ShouldExitOnReversal decide la salida por reversión de edge.
func (p ExitParams) ShouldExitOnReversal(currentEdge float64) bool {
	return currentEdge <= p.ReversalThreshold
}

// ShouldTakeProfit decide la salida por beneficio. ret es el retorno no
// realizado sobre coste (1.0 = +100%); haveState indica si hay estado en
// vivo del partido. Devuelve la razón para log y notificación.
//
// Árbol de decisión: ≥TakeProfitAlways sale incondicionalmente. Con estado
// en vivo, de más a menos urgente: crunch time (último periodo, poco reloj,
// partido cerrado) baja la puerta a CrunchTimeProfit; partido igualado en
// segunda mitad usa CloseGameProfit; una paliza consolidada usa
// BlowoutProfit. Partidos terminados no salen por aquí — eso es resolución.
func (p ExitParams) ShouldTakeProfit(ret float64, g GameState, haveState bool) (bool, string) {
	if ret >= p.TakeProfitAlways {
		return true, "take profit: return over always-exit level"
	}
	if !haveState || g.Completed {
		return false, ""
	}

	margin := g.Margin()
	secondHalf := g.Period > p.RegulationPeriods/2

	switch {
	case g.Period >= p.RegulationPeriods && g.Clock <= p.CrunchClock && margin <= p.CrunchMargin:
		if ret >= p.CrunchTimeProfit {
			return true, "take profit: crunch time in a close game"
		}
	case secondHalf && margin <= p.CloseMargin:
		if ret >= p.CloseGameProfit {
			return true, "take profit: close game in second half"
		}
	case margin >= p.BlowoutMargin:
		if ret >= p.BlowoutProfit {
			return true, "take profit: blowout margin"
		}
	}
	return false, ""
}
