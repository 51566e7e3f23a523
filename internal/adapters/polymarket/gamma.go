package polymarket

// gamma.go — descubrimiento de mercados deportivos vía la Gamma API.
//
// Gamma etiqueta los mercados por deporte (tag_id). Descargamos las páginas
// de mercados abiertos del tag y el emparejamiento con los eventos del feed
// de cuotas se hace después contra los nombres de los equipos, así los
// mercados de spreads/totals con outcomes Yes/No quedan fuera solos.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

const (
	gammaMarketsPath = "/markets"
	gammaPageSize    = 100
	gammaMaxPages    = 10
)

// defaultSportTags mapea sport keys del feed de odds a tag IDs de Gamma.
// Ampliable por configuración sin tocar código.
var defaultSportTags = map[string]string{
	"basketball_nba": "745",
}

// FetchGameMarkets devuelve los mercados abiertos del deporte dado.
// Pagina con limit/offset hasta agotar resultados.
func (c *Client) FetchGameMarkets(ctx context.Context, sport string) ([]domain.Market, error) {
	tagID, ok := c.sportTags[sport]
	if !ok {
		return nil, fmt.Errorf("gamma.FetchGameMarkets: no tag configured for sport %q", sport)
	}

	var all []domain.Market
	for page := 0; page < gammaMaxPages; page++ {
		offset := page * gammaPageSize
		url := fmt.Sprintf("%s%s?tag_id=%s&active=true&closed=false&limit=%d&offset=%d",
			c.gammaBase, gammaMarketsPath, tagID, gammaPageSize, offset)

		var resp gammaMarketsResponse
		if err := c.get(ctx, c.gammaLimiter, maxRetries, url, &resp); err != nil {
			return nil, fmt.Errorf("gamma.FetchGameMarkets: sport %s: %w", sport, err)
		}
		if len(resp) == 0 {
			break
		}

		all = append(all, mapGammaMarkets(resp)...)

		if len(resp) < gammaPageSize {
			break
		}
	}

	slog.Debug("game markets fetched", "sport", sport, "markets", len(all))
	return all, nil
}
