package domain

import "time"

// Market representa un mercado binario de partido en Polymarket.
type Market struct {
	ConditionID string
	QuestionID  string
	Question    string    // enriquecido desde Gamma
	Slug        string    // enriquecido desde Gamma
	GameTime    time.Time // inicio del partido según Gamma
	EndDate     time.Time // fecha de resolución
	Tokens      [2]Token
	NegRisk     bool // mercado sobre el adapter NegRisk
	Active      bool
	Closed      bool
}

// Token es uno de los dos lados del mercado. En mercados de partido el
// outcome es el nombre corto del equipo ("Lakers", "Celtics").
type Token struct {
	TokenID string
	Outcome string
	Price   float64 // último precio reportado por la API
}

// TokenFor devuelve el token cuyo outcome refiere al equipo dado.
// Acepta nombres largos del feed de odds ("Los Angeles Lakers") contra los
// nombres cortos de Polymarket.
func (m Market) TokenFor(team string) (Token, bool) {
	for _, t := range m.Tokens {
		if SameTeam(t.Outcome, team) {
			return t, true
		}
	}
	return Token{}, false
}

// CoversEvent devuelve true si este mercado corresponde al partido dado:
// ambos equipos aparecen como outcomes y la hora del partido cuadra.
func (m Market) CoversEvent(o MatchOdds) bool {
	_, home := m.TokenFor(o.HomeTeam)
	_, away := m.TokenFor(o.AwayTeam)
	if !home || !away {
		return false
	}
	if m.GameTime.IsZero() || o.CommenceTime.IsZero() {
		return true
	}
	diff := m.GameTime.Sub(o.CommenceTime)
	if diff < 0 {
		diff = -diff
	}
	return diff <= 12*time.Hour
}

