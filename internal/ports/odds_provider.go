package ports

import (
	"context"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

// OddsProvider obtiene las cuotas de las casas de apuestas.
type OddsProvider interface {
	// FetchOdds devuelve las cuotas moneyline de todas las casas para los
	// partidos próximos del sport key dado. Cada casa aporta un par
	// two-way completo o no aporta nada.
	FetchOdds(ctx context.Context, sport string) ([]domain.MatchOdds, error)
}
