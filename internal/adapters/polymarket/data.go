package polymarket

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

const (
	positionsPath     = "/positions"
	positionsPerPage  = 500
	positionsMaxPages = 4
)

// FetchPositions obtiene las posiciones abiertas del wallet usando la Data API
// pública. La reconciliación compara esto contra el ledger local al arrancar.
func (c *Client) FetchPositions(ctx context.Context, user string) ([]domain.ExternalPosition, error) {
	var all []domain.ExternalPosition

	for page := 0; page < positionsMaxPages; page++ {
		offset := page * positionsPerPage
		url := fmt.Sprintf("%s%s?user=%s&sizeThreshold=0.1&limit=%d&offset=%d",
			c.dataBase, positionsPath, user, positionsPerPage, offset)

		var resp []rawDataPosition
		if err := c.get(ctx, c.dataLimiter, maxRetries, url, &resp); err != nil {
			return nil, fmt.Errorf("data-api.FetchPositions: %w", err)
		}

		if len(resp) == 0 {
			break
		}

		all = append(all, mapPositions(resp)...)

		if len(resp) < positionsPerPage {
			break
		}
	}

	slog.Debug("wallet positions fetched", "user", user, "positions", len(all))
	return all, nil
}
