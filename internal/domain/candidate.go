package domain

import "time"

// Candidate es un outcome apostable en un tick de poll: el cruce entre un
// partido del feed de odds y un token de Polymarket, con su consenso, edge
// y stake recomendado. Transitorio — vive solo lo que tarda el ciclo en
// aceptarlo o descartarlo.
type Candidate struct {
	EventID     string
	Sport       string
	HomeTeam    string
	AwayTeam    string
	Outcome     string // equipo cuyo token se compraría
	TokenID     string
	ConditionID string
	NegRisk     bool
	AskPrice    float64 // mejor ask del CLOB en el momento de evaluar
	Consensus   Consensus
	Edge        float64
	MinEdge     float64 // umbral dinámico aplicado a este candidato
	Stake       Stake   // recomendación tras sizing y límites de exposición

	// Exposición abierta ponderada por correlación con este partido, antes
	// de contar la apuesta evaluada. Cifra informativa, nunca un límite.
	CorrelatedExposure float64
}

// Matchup devuelve "Away @ Home", la forma corta para logs y tablas.
func (c Candidate) Matchup() string {
	return c.AwayTeam + " @ " + c.HomeTeam
}

// CycleReport resume un ciclo de evaluación para la consola y las métricas.
type CycleReport struct {
	StartedAt          time.Time
	Duration           time.Duration
	Matches            int // partidos con odds en el feed
	Markets            int // mercados del exchange emparejados
	Candidates         []Candidate
	Placed             int
	Skips              map[string]int // razón → número de candidatos
	Balance            float64
	Exposure           float64 // coste abierto real, sin ponderar
	CorrelatedExposure float64 // cifra informativa ponderada por correlación
	Open               []Position
}
