package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

// Ledger es el repositorio del Bet Ledger: una fila por posición, con las
// operaciones open/accumulate/settle que el motor necesita. Cada mutación
// corre en su propia transacción.
type Ledger interface {
	// Open persiste una posición recién abierta.
	Open(ctx context.Context, p domain.Position) error

	// OpenByToken devuelve la posición con estado open para el token, si
	// existe. Garantiza la regla de una-fila-por-token del ledger.
	OpenByToken(ctx context.Context, tokenID string) (domain.Position, bool, error)

	// OpenPositions devuelve todas las posiciones con estado open.
	OpenPositions(ctx context.Context) ([]domain.Position, error)

	// Accumulate funde una compra adicional en una posición abierta:
	// suma shares, recalcula el precio medio ponderado y amplía el coste.
	Accumulate(ctx context.Context, id string, shares, price float64) error

	// UpdateHoldings corrige shares y precio medio de una posición abierta
	// que ha derivado respecto al ledger externo. No toca el estado.
	UpdateHoldings(ctx context.Context, id string, shares, avgPrice float64) error

	// KnownToken informa si existe alguna fila para el token, abierta o
	// terminal. Evita que la reconciliación re-adopte posiciones cerradas.
	KnownToken(ctx context.Context, tokenID string) (bool, error)

	// Settle cierra una posición con estado terminal (sold/won/lost),
	// precio de salida y beneficio. Las filas terminales nunca se reabren.
	Settle(ctx context.Context, id string, status domain.PositionStatus, exitPrice, profit float64, at time.Time) error

	// History devuelve las posiciones creadas en el rango dado, más
	// recientes primero.
	History(ctx context.Context, from, to time.Time) ([]domain.Position, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
