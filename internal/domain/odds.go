package domain

import (
	"math"
	"strings"
	"time"
)

// Quote es el precio de una casa de apuestas para un outcome en un instante.
// Efímera: se produce en cada poll y nunca se persiste.
type Quote struct {
	Source     string // clave de la casa (p.ej. "pinnacle")
	Outcome    string // nombre del outcome tal como lo publica la casa
	Price      int    // odds americanas con signo (-118, +100)
	LastUpdate time.Time
}

// QuotePair es un mercado limpio de dos outcomes de una misma casa.
// Par ordenado con accessors por nombre — nunca se indexa posicionalmente.
type QuotePair struct {
	A Quote
	B Quote
}

// Complete devuelve true si ambos lados traen precio y nombre.
// Una casa que solo publica un lado se descarta entera, no se usa a medias.
func (p QuotePair) Complete() bool {
	return p.A.Price != 0 && p.B.Price != 0 && p.A.Outcome != "" && p.B.Outcome != ""
}

// For devuelve la quote cuyo outcome coincide (case-insensitive) con name.
func (p QuotePair) For(name string) (Quote, bool) {
	if strings.EqualFold(p.A.Outcome, name) {
		return p.A, true
	}
	if strings.EqualFold(p.B.Outcome, name) {
		return p.B, true
	}
	return Quote{}, false
}

// OldestUpdate devuelve el timestamp más antiguo de los dos lados.
// Es el que se compara contra la ventana de frescura.
func (p QuotePair) OldestUpdate() time.Time {
	if p.A.LastUpdate.Before(p.B.LastUpdate) {
		return p.A.LastUpdate
	}
	return p.B.LastUpdate
}

// FairFor elimina el vig del par y devuelve la probabilidad justa del
// outcome pedido. ok=false si el nombre no coincide con ningún lado.
func (p QuotePair) FairFor(name string) (float64, bool) {
	q, ok := p.For(name)
	if !ok {
		return 0, false
	}
	pa := ImpliedProbability(p.A.Price)
	pb := ImpliedProbability(p.B.Price)
	fa, fb := Devig(pa, pb)
	if q.Outcome == p.A.Outcome {
		return fa, true
	}
	return fb, true
}

// MatchOdds agrupa las quotes de todas las casas para un partido.
type MatchOdds struct {
	EventID      string
	Sport        string // sport key del feed (p.ej. "basketball_nba")
	HomeTeam     string
	AwayTeam     string
	CommenceTime time.Time
	Books        []QuotePair // un par two-way por casa
}

// ImpliedProbability convierte odds americanas a probabilidad implícita.
// Positivas: 100/(odds+100). Negativas: |odds|/(|odds|+100).
// El resultado incluye el vig de la casa; odds de 0 son un error del caller.
func ImpliedProbability(american int) float64 {
	if american > 0 {
		return 100.0 / (float64(american) + 100.0)
	}
	a := math.Abs(float64(american))
	return a / (a + 100.0)
}

// Devig elimina el margen de la casa normalizando el par a suma exacta 1.
func Devig(p1, p2 float64) (float64, float64) {
	total := p1 + p2
	return p1 / total, p2 / total
}
