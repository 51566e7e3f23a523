package domain

import "math"

// SizingMode selecciona la fórmula de tamaño de apuesta.
type SizingMode string

const (
	SizeKelly       SizingMode = "kelly"        // fracción del bankroll vía Kelly
	SizeFixedShares SizingMode = "fixed_shares" // shares fijos con escalado por edge
)

// Stake es el tamaño concreto de una apuesta: dólares y shares al precio
// del exchange. Shares puede ser fraccional; el redondeo a unidades del
// broker es cosa del executor.
type Stake struct {
	USD    float64
	Shares float64
}

// SizingParams configura el Position Sizer.
type SizingParams struct {
	Mode            SizingMode
	KellyMultiplier float64 // fracción de Kelly (0.25 = quarter Kelly)
	MaxBetFraction  float64 // tope de fracción del bankroll por apuesta
	MinBetUSD       float64
	MaxBetUSD       float64

	// Modo fixed_shares.
	BaseShares        float64
	EdgeScaling       bool    // escalar shares proporcionalmente al edge
	MaxEdgeMultiplier float64 // tope del multiplicador de escalado
}

// KellyFraction devuelve la fracción de Kelly completa para una apuesta
// binaria: edge / (1 - prob). El caller la reduce con su multiplicador.
func KellyFraction(edge, prob float64) float64 {
	if prob >= 1 {
		return 0
	}
	return edge / (1 - prob)
}

// SizeBet convierte un edge calificado en un stake concreto.
//
// Modo kelly: fracción de Kelly × multiplicador, topada por MaxBetFraction,
// aplicada al balance y recortada a [MinBetUSD, MaxBetUSD].
// Modo fixed_shares: BaseShares × min(edge/minEdge, MaxEdgeMultiplier)
// redondeado a shares enteros, convertido a dólares por el precio, recortado
// a MaxBetUSD (recalculando shares) y rechazado por debajo de MinBetUSD.
//
// ok=false con una razón legible cuando el tamaño final no llega al mínimo
// o el balance no lo cubre.
func (p SizingParams) SizeBet(edge, minEdge, prob, price, balance float64) (Stake, string, bool) {
	switch p.Mode {
	case SizeFixedShares:
		return p.sizeFixedShares(edge, minEdge, price)
	default:
		return p.sizeKelly(edge, prob, price, balance)
	}
}

func (p SizingParams) sizeKelly(edge, prob, price, balance float64) (Stake, string, bool) {
	frac := KellyFraction(edge, prob) * p.KellyMultiplier
	if frac <= 0 {
		return Stake{}, "non-positive kelly fraction", false
	}
	if frac > p.MaxBetFraction {
		frac = p.MaxBetFraction
	}

	usd := balance * frac
	if usd > p.MaxBetUSD {
		usd = p.MaxBetUSD
	}
	if usd < p.MinBetUSD {
		usd = p.MinBetUSD
	}
	if usd > balance {
		return Stake{}, "insufficient balance for minimum bet", false
	}
	return Stake{USD: usd, Shares: usd / price}, "", true
}

func (p SizingParams) sizeFixedShares(edge, minEdge, price float64) (Stake, string, bool) {
	shares := p.BaseShares
	if p.EdgeScaling && minEdge > 0 {
		mult := edge / minEdge
		if mult > p.MaxEdgeMultiplier {
			mult = p.MaxEdgeMultiplier
		}
		shares = math.Round(p.BaseShares * mult)
	}
	if shares <= 0 {
		return Stake{}, "non-positive share count", false
	}

	usd := shares * price
	if usd > p.MaxBetUSD {
		usd = p.MaxBetUSD
		shares = usd / price
	}
	if usd < p.MinBetUSD {
		return Stake{}, "size below minimum bet", false
	}
	return Stake{USD: usd, Shares: shares}, "", true
}
