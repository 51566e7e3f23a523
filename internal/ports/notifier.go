package ports

import (
	"context"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

// Notifier publica los eventos que mueven dinero en riesgo. Un fallo de
// notificación se loguea y jamás bloquea el ciclo — los rechazos por riesgo
// NO pasan por aquí, solo por el log, para no fatigar con avisos rutinarios.
type Notifier interface {
	// BetPlaced anuncia una apuesta nueva o una acumulación sobre una
	// posición existente, con la razón que la justificó.
	BetPlaced(ctx context.Context, pos domain.Position, rationale string) error

	// BetSold anuncia una venta anticipada (take profit o edge revertido).
	BetSold(ctx context.Context, pos domain.Position, rationale string) error

	// BetResolved anuncia la resolución de un mercado (won o lost).
	BetResolved(ctx context.Context, pos domain.Position) error

	// CycleSummary presenta el resumen de un ciclo de evaluación.
	CycleSummary(ctx context.Context, report domain.CycleReport) error
}
