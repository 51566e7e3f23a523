package storage

// sqlite.go — el Bet Ledger en SQLite (pure Go, sin CGo).
//
// Estrategia:
//   - `positions`: UNA fila por posición. Las compras repetidas del mismo
//     token se funden sobre la fila abierta (Accumulate), nunca duplican.
//   - Transiciones monótonas: open → sold|won|lost se aplican con UPDATEs
//     condicionados a status='open'; una fila terminal nunca se reabre.
//   - Un índice único parcial garantiza a nivel de schema que no pueden
//     existir dos filas open para el mismo token.
//   - No se borra histórico: las filas terminales son el registro de P&L.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS positions (
    id           TEXT PRIMARY KEY,
    event_id     TEXT NOT NULL,
    sport        TEXT NOT NULL,
    home_team    TEXT,
    away_team    TEXT,
    outcome      TEXT NOT NULL,
    token_id     TEXT NOT NULL,
    condition_id TEXT NOT NULL,
    neg_risk     INTEGER NOT NULL DEFAULT 0,
    shares       REAL NOT NULL DEFAULT 0,
    avg_price    REAL NOT NULL DEFAULT 0,
    cost_basis   REAL NOT NULL DEFAULT 0,
    entry_edge   REAL NOT NULL DEFAULT 0,
    order_id     TEXT,
    status       TEXT NOT NULL DEFAULT 'open',
    exit_price   REAL NOT NULL DEFAULT 0,
    profit       REAL NOT NULL DEFAULT 0,
    created_at   DATETIME NOT NULL,
    resolved_at  DATETIME
);

-- Una sola posición abierta por token
CREATE UNIQUE INDEX IF NOT EXISTS idx_pos_open_token
    ON positions(token_id) WHERE status = 'open';
CREATE INDEX IF NOT EXISTS idx_pos_status  ON positions(status);
CREATE INDEX IF NOT EXISTS idx_pos_created ON positions(created_at DESC);
`

// SQLiteLedger implementa ports.Ledger usando SQLite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger abre (o crea) la base de datos en la ruta dada y aplica
// el schema.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteLedger: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteLedger: apply schema: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

// Open persiste una posición recién abierta. Si ya existe una fila open
// para el mismo token, el índice único la rechaza.
func (s *SQLiteLedger) Open(ctx context.Context, p domain.Position) error {
	status := p.Status
	if status == "" {
		status = domain.StatusOpen
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions
			(id, event_id, sport, home_team, away_team, outcome, token_id,
			 condition_id, neg_risk, shares, avg_price, cost_basis, entry_edge,
			 order_id, status, exit_price, profit, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.EventID, p.Sport, p.HomeTeam, p.AwayTeam, p.Outcome, p.TokenID,
		p.ConditionID, boolToInt(p.NegRisk), p.Shares, p.AvgPrice, p.CostBasis, p.EntryEdge,
		p.OrderID, string(status), p.ExitPrice, p.Profit, p.CreatedAt.UTC(), nullableTime(p.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.Open: insert %s: %w", p.TokenID, err)
	}
	return nil
}

// OpenByToken devuelve la posición abierta para el token, si existe.
func (s *SQLiteLedger) OpenByToken(ctx context.Context, tokenID string) (domain.Position, bool, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+` FROM positions WHERE token_id = ? AND status = 'open'`, tokenID)

	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return domain.Position{}, false, nil
	}
	if err != nil {
		return domain.Position{}, false, fmt.Errorf("storage.OpenByToken: %w", err)
	}
	return p, true, nil
}

// OpenPositions devuelve todas las posiciones con estado open, las más
// antiguas primero.
func (s *SQLiteLedger) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` FROM positions WHERE status = 'open' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage.OpenPositions: query: %w", err)
	}
	defer rows.Close()

	return collectPositions(rows)
}

// Accumulate funde una compra adicional sobre la fila abierta. El UPDATE
// evalúa todas las expresiones contra los valores previos de la fila, así
// el precio medio ponderado se calcula de forma atómica.
func (s *SQLiteLedger) Accumulate(ctx context.Context, id string, shares, price float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE positions SET
			avg_price  = (shares * avg_price + ? * ?) / (shares + ?),
			cost_basis = cost_basis + ? * ?,
			shares     = shares + ?
		WHERE id = ? AND status = 'open' AND shares + ? > 0
	`, shares, price, shares, shares, price, shares, id, shares)
	if err != nil {
		return fmt.Errorf("storage.Accumulate: %s: %w", id, err)
	}
	return requireRow(res, "storage.Accumulate", id)
}

// UpdateHoldings corrige shares y precio medio tras una reconciliación.
func (s *SQLiteLedger) UpdateHoldings(ctx context.Context, id string, shares, avgPrice float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE positions SET shares = ?, avg_price = ?, cost_basis = ? * ?
		WHERE id = ? AND status = 'open'
	`, shares, avgPrice, shares, avgPrice, id)
	if err != nil {
		return fmt.Errorf("storage.UpdateHoldings: %s: %w", id, err)
	}
	return requireRow(res, "storage.UpdateHoldings", id)
}

// Settle cierra una posición abierta con su estado terminal. El filtro
// status='open' hace imposible reabrir o re-cerrar una fila terminal.
func (s *SQLiteLedger) Settle(ctx context.Context, id string, status domain.PositionStatus, exitPrice, profit float64, at time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("storage.Settle: %s: status %q no es terminal", id, status)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE positions SET status = ?, exit_price = ?, profit = ?, resolved_at = ?
		WHERE id = ? AND status = 'open'
	`, string(status), exitPrice, profit, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("storage.Settle: %s: %w", id, err)
	}
	return requireRow(res, "storage.Settle", id)
}

// KnownToken informa si existe alguna fila para el token, abierta o
// terminal. La reconciliación lo usa para no re-adoptar como nuevas las
// posiciones que ya cerró (el exchange puede seguir listando shares
// residuales de mercados perdidos).
func (s *SQLiteLedger) KnownToken(ctx context.Context, tokenID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM positions WHERE token_id = ?`, tokenID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("storage.KnownToken: %w", err)
	}
	return n > 0, nil
}

// History devuelve las posiciones creadas en el rango dado, más recientes
// primero.
func (s *SQLiteLedger) History(ctx context.Context, from, to time.Time) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` FROM positions WHERE created_at BETWEEN ? AND ? ORDER BY created_at DESC`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("storage.History: query: %w", err)
	}
	defer rows.Close()

	return collectPositions(rows)
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

const selectColumns = `
	SELECT id, event_id, sport, home_team, away_team, outcome, token_id,
	       condition_id, neg_risk, shares, avg_price, cost_basis, entry_edge,
	       order_id, status, exit_price, profit, created_at, resolved_at`

// rowScanner cubre tanto *sql.Row como *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(r rowScanner) (domain.Position, error) {
	var p domain.Position
	var status, createdAt string
	var negRisk int
	var resolvedAt sql.NullString

	if err := r.Scan(
		&p.ID, &p.EventID, &p.Sport, &p.HomeTeam, &p.AwayTeam, &p.Outcome, &p.TokenID,
		&p.ConditionID, &negRisk, &p.Shares, &p.AvgPrice, &p.CostBasis, &p.EntryEdge,
		&p.OrderID, &status, &p.ExitPrice, &p.Profit, &createdAt, &resolvedAt,
	); err != nil {
		return domain.Position{}, err
	}

	p.NegRisk = negRisk != 0
	p.Status = domain.PositionStatus(status)
	p.CreatedAt = parseDBTime(createdAt)
	if resolvedAt.Valid && resolvedAt.String != "" {
		t := parseDBTime(resolvedAt.String)
		p.ResolvedAt = &t
	}
	return p, nil
}

func collectPositions(rows *sql.Rows) ([]domain.Position, error) {
	var out []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// requireRow convierte un UPDATE sin filas afectadas en error: la posición
// no existe o ya no está open.
func requireRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: position %s not open", op, id)
	}
	return nil
}

// parseDBTime intenta los layouts con los que el driver serializa DATETIME.
func parseDBTime(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// nullableTime convierte *time.Time en el valor que espera el driver.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
