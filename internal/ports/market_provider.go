package ports

import (
	"context"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

// MarketProvider descubre los mercados de partido operables en el exchange.
type MarketProvider interface {
	// FetchGameMarkets devuelve los mercados binarios de partido activos
	// para el sport key dado, con metadata de Gamma (equipos, hora del
	// partido, condition/token IDs). Pagina hasta agotar resultados.
	FetchGameMarkets(ctx context.Context, sport string) ([]domain.Market, error)
}
