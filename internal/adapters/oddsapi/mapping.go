package oddsapi

import (
	"github.com/alejandrodnm/sharpbot/internal/domain"
)

const marketH2H = "h2h"

// toMatchOdds convierte un evento del feed al modelo de dominio. Solo se
// conservan mercados h2h de dos resultados con un par completo de cuotas;
// el resto (empates, props, pares incompletos) se descarta aquí mismo.
func toMatchOdds(ev eventDTO) domain.MatchOdds {
	m := domain.MatchOdds{
		EventID:      ev.ID,
		Sport:        ev.SportKey,
		HomeTeam:     ev.HomeTeam,
		AwayTeam:     ev.AwayTeam,
		CommenceTime: ev.CommenceTime,
	}

	for _, bk := range ev.Bookmakers {
		for _, mk := range bk.Markets {
			if mk.Key != marketH2H || len(mk.Outcomes) != 2 {
				continue
			}
			last := mk.LastUpdate
			if last.IsZero() {
				last = bk.LastUpdate
			}
			m.Books = append(m.Books, domain.QuotePair{
				A: domain.Quote{
					Source:     bk.Key,
					Outcome:    mk.Outcomes[0].Name,
					Price:      mk.Outcomes[0].Price,
					LastUpdate: last,
				},
				B: domain.Quote{
					Source:     bk.Key,
					Outcome:    mk.Outcomes[1].Name,
					Price:      mk.Outcomes[1].Price,
					LastUpdate: last,
				},
			})
		}
	}

	return m
}
