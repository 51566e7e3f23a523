package domain

// EdgeParams configura el umbral mínimo de edge.
//
// En modo dinámico el umbral base depende de cuántas casas respaldan el
// consenso (más casas → umbral más bajo) y se escala hacia arriba cuando la
// varianza entre casas supera el techo configurado. El escalado nunca pasa
// del umbral de 2 casas: con ese nivel de confianza ya se exige el máximo.
type EdgeParams struct {
	MinEdge         float64 // umbral estático cuando Dynamic está apagado
	Dynamic         bool
	Tier4Plus       float64 // umbral con ≥4 casas (el más bajo)
	Tier3           float64 // umbral con exactamente 3 casas
	Tier2           float64 // umbral con 2 casas; también techo tras escalar
	VarianceCeiling float64 // varianza a partir de la cual se escala el umbral
	MinPrice        float64 // suelo de precio del exchange (anti-longshot)
}

// Edge devuelve la ventaja fraccional del consenso sobre el precio del
// exchange: (consensus - price) / price.
func Edge(consensus, price float64) float64 {
	return (consensus - price) / price
}

// MinEdgeFor devuelve el umbral mínimo de edge para el nivel de confianza
// dado. Monótono: no crece con más casas, no decrece con más varianza.
func (p EdgeParams) MinEdgeFor(sources int, variance float64) float64 {
	if !p.Dynamic {
		return p.MinEdge
	}

	var base float64
	switch {
	case sources >= 4:
		base = p.Tier4Plus
	case sources == 3:
		base = p.Tier3
	default:
		base = p.Tier2
	}

	if p.VarianceCeiling > 0 && variance > p.VarianceCeiling {
		base *= 1 + (variance-p.VarianceCeiling)/p.VarianceCeiling
		if base > p.Tier2 {
			base = p.Tier2
		}
	}
	return base
}

// Qualifies decide si un candidato pasa el filtro de edge. Devuelve el
// umbral dinámico aplicado para que el caller lo registre y lo use en el
// escalado proporcional del sizing. El suelo de precio rechaza por sí solo:
// por debajo de MinPrice el mispricing de longshots extremos es ruido, no señal.
func (p EdgeParams) Qualifies(edge, price float64, c Consensus) (bool, float64) {
	minEdge := p.MinEdgeFor(c.Sources, c.Variance)
	if price < p.MinPrice {
		return false, minEdge
	}
	return edge >= minEdge, minEdge
}
