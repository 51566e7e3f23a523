package ports

import (
	"context"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

// OrderExecutor coloca órdenes reales en el CLOB de Polymarket y expone la
// vista del propio exchange sobre balance y holdings.
type OrderExecutor interface {
	// PlaceOrder firma y envía una orden límite marketable al CLOB.
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.PlacedOrder, error)

	// GetBalance devuelve el balance USDC.e disponible del wallet.
	GetBalance(ctx context.Context) (float64, error)

	// Positions devuelve todas las posiciones según la data API del
	// exchange. Es la verdad de referencia para la reconciliación.
	Positions(ctx context.Context) ([]domain.ExternalPosition, error)

	// MarketResolution informa si un mercado ya resolvió y, en ese caso,
	// el nombre del outcome ganador.
	MarketResolution(ctx context.Context, conditionID string) (domain.Resolution, error)
}
