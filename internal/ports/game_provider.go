package ports

import (
	"context"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

// GameStateProvider obtiene el estado en vivo de los partidos de un deporte
// (marcador, periodo, reloj). Alimenta el árbol de take-profit.
type GameStateProvider interface {
	// FetchGameStates devuelve los partidos del día del sport key dado.
	FetchGameStates(ctx context.Context, sport string) ([]domain.GameState, error)
}
