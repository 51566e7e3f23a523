package engine

// resolution.go — el barrido de resolución: liquida posiciones de mercados
// resueltos y reconcilia el ledger contra las posiciones reales del exchange.

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

// driftTolerance es la diferencia absoluta de shares o precio medio a partir
// de la cual el ledger se corrige desde el exchange.
const driftTolerance = 0.01

// ResolveSweep liquida las posiciones cuyos mercados ya resolvieron y
// después reconcilia el ledger con el exchange. Corre en el mismo loop que
// los ciclos de evaluación, nunca en paralelo con ellos, así que puede
// escribir el ledger sin coordinación extra. Es idempotente: un barrido
// sobre un ledger ya reconciliado no muta nada.
func (e *Engine) ResolveSweep(ctx context.Context) error {
	open, err := e.deps.Ledger.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("engine.ResolveSweep: open positions: %w", err)
	}
	settled := 0
	if len(open) > 0 {
		settled = e.resolveMarkets(ctx, open)
	}
	if err := e.reconcile(ctx); err != nil {
		return fmt.Errorf("engine.ResolveSweep: %w", err)
	}
	if settled > 0 {
		e.logDailyRecord(ctx)
	}
	return nil
}

// resolveMarkets consulta la resolución de cada condition con posición
// abierta y devuelve cuántas posiciones liquidó. Una resolución no
// disponible no es un error del barrido: el oráculo puede tardar horas y se
// reintenta en el siguiente.
func (e *Engine) resolveMarkets(ctx context.Context, open []domain.Position) int {
	byCondition := make(map[string][]domain.Position)
	for _, pos := range open {
		byCondition[pos.ConditionID] = append(byCondition[pos.ConditionID], pos)
	}

	settled := 0
	for conditionID, positions := range byCondition {
		res, err := e.deps.Executor.MarketResolution(ctx, conditionID)
		if err != nil {
			slog.Warn("Resolución no disponible, se reintenta en el próximo barrido",
				"condition_id", conditionID, "error", err)
			e.deps.Monitor.RecordAPIError(domain.KindOf(err).String())
			continue
		}
		if !res.Resolved {
			continue
		}
		for _, pos := range positions {
			if e.settleResolved(ctx, pos, res.WinningOutcome) {
				settled++
			}
		}
	}
	return settled
}

// settleResolved liquida una posición de un mercado resuelto: 1.0 por share
// si el outcome ganó, cero si perdió.
func (e *Engine) settleResolved(ctx context.Context, pos domain.Position, winner string) bool {
	status := domain.StatusLost
	exitPrice := 0.0
	if pos.MatchesWinner(winner) {
		status = domain.StatusWon
		exitPrice = 1.0
	}
	profit := pos.SellProfit(exitPrice)

	if err := e.deps.Ledger.Settle(ctx, pos.ID, status, exitPrice, profit, time.Now()); err != nil {
		slog.Error("Fallo liquidando resolución", "id", pos.ID, "error", err)
		return false
	}
	e.recordOutcome(status, profit)

	pos.Status = status
	pos.ExitPrice = exitPrice
	pos.Profit = profit
	slog.Info("Mercado resuelto",
		"matchup", pos.Matchup(),
		"outcome", pos.Outcome,
		"winner", winner,
		"status", status,
		"profit", fmt.Sprintf("$%+.2f", profit))
	e.notifyResolved(ctx, pos)
	return true
}

// logDailyRecord deja en el log el balance de las últimas 24 horas cada vez
// que un barrido liquida algo: posiciones cerradas, ganadas, perdidas y el
// neto realizado según el historial del ledger.
func (e *Engine) logDailyRecord(ctx context.Context) {
	now := time.Now()
	hist, err := e.deps.Ledger.History(ctx, now.Add(-24*time.Hour), now)
	if err != nil {
		slog.Warn("No se pudo leer el historial para el balance diario", "error", err)
		return
	}

	var wins, losses int
	var net float64
	for _, p := range hist {
		if !p.Status.Terminal() {
			continue
		}
		net += p.Profit
		if p.Profit >= 0 {
			wins++
		} else {
			losses++
		}
	}
	slog.Info("Balance de las últimas 24h",
		"closed", wins+losses,
		"wins", wins,
		"losses", losses,
		"net", fmt.Sprintf("$%+.2f", net))
}

// reconcile alinea el ledger con las posiciones reales del exchange en las
// tres direcciones: posiciones del ledger que el exchange ya no tiene se
// liquidan por último precio, holdings con deriva se corrigen en sitio y
// posiciones del exchange desconocidas para el ledger se adoptan.
func (e *Engine) reconcile(ctx context.Context) error {
	external, err := e.deps.Executor.Positions(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: exchange positions: %w", err)
	}
	open, err := e.deps.Ledger.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: open positions: %w", err)
	}

	extByToken := make(map[string]domain.ExternalPosition, len(external))
	for _, ext := range external {
		extByToken[ext.TokenID] = ext
	}

	for _, pos := range open {
		ext, held := extByToken[pos.TokenID]
		if !held || ext.Shares <= 0 {
			lastPrice := 0.0
			if held {
				lastPrice = ext.CurPrice
			}
			slog.Info("Posición del ledger ausente en el exchange",
				"matchup", pos.Matchup(), "outcome", pos.Outcome, "token", pos.TokenID)
			e.settleClosedExternally(ctx, pos, lastPrice)
			continue
		}
		if holdingsDrifted(pos, ext) {
			if err := e.deps.Ledger.UpdateHoldings(ctx, pos.ID, ext.Shares, ext.AvgPrice); err != nil {
				slog.Error("Fallo corrigiendo holdings", "id", pos.ID, "error", err)
				continue
			}
			slog.Info("Holdings corregidos desde el exchange",
				"matchup", pos.Matchup(),
				"shares", fmt.Sprintf("%.2f -> %.2f", pos.Shares, ext.Shares),
				"avg_price", fmt.Sprintf("%.3f -> %.3f", pos.AvgPrice, ext.AvgPrice))
		}
	}

	e.adoptUnknown(ctx, external, open)
	return nil
}

// holdingsDrifted compara el ledger con el exchange. El exchange manda:
// fills parciales y redondeos del CLOB hacen que el estado local derive.
func holdingsDrifted(pos domain.Position, ext domain.ExternalPosition) bool {
	return math.Abs(pos.Shares-ext.Shares) > driftTolerance ||
		math.Abs(pos.AvgPrice-ext.AvgPrice) > driftTolerance
}

// adoptUnknown registra como posiciones propias los holdings del exchange
// que el ledger no conoce — órdenes colocadas a mano o estado perdido. Solo
// se adoptan posiciones relevantes según el predicado configurado y nunca
// tokens con historial: una fila terminal significa que ya se cerró y lo
// que lista el exchange son shares residuales.
func (e *Engine) adoptUnknown(ctx context.Context, external []domain.ExternalPosition, open []domain.Position) {
	openTokens := make(map[string]bool, len(open))
	for _, pos := range open {
		openTokens[pos.TokenID] = true
	}

	for _, ext := range external {
		if ext.Shares <= 0 || openTokens[ext.TokenID] {
			continue
		}
		if !e.belongs(ext) {
			continue
		}
		known, err := e.deps.Ledger.KnownToken(ctx, ext.TokenID)
		if err != nil {
			slog.Warn("No se pudo comprobar el historial del token, adopción pospuesta",
				"token", ext.TokenID, "error", err)
			continue
		}
		if known {
			continue
		}

		home, away := splitTitle(ext.Title)
		pos := domain.Position{
			ID:          uuid.NewString(),
			HomeTeam:    home,
			AwayTeam:    away,
			Outcome:     ext.Outcome,
			TokenID:     ext.TokenID,
			ConditionID: ext.ConditionID,
			Shares:      ext.Shares,
			AvgPrice:    ext.AvgPrice,
			CostBasis:   ext.Shares * ext.AvgPrice,
			EntryEdge:   0,
			OrderID:     "external",
			Status:      domain.StatusOpen,
			CreatedAt:   time.Now(),
		}
		if err := e.deps.Ledger.Open(ctx, pos); err != nil {
			slog.Error("Fallo adoptando posición externa", "token", ext.TokenID, "error", err)
			continue
		}
		slog.Info("Posición externa adoptada",
			"title", ext.Title,
			"outcome", ext.Outcome,
			"shares", fmt.Sprintf("%.1f", ext.Shares),
			"avg_price", fmt.Sprintf("%.3f", ext.AvgPrice))
	}
}

// belongs decide si una posición externa es de este bot. Sin predicado
// configurado se adoptan solo tokens de mercados vistos en el último
// descubrimiento: lo demás es cartera ajena del mismo wallet.
func (e *Engine) belongs(ext domain.ExternalPosition) bool {
	if e.deps.Adopt != nil {
		return e.deps.Adopt(ext)
	}
	return e.seenConditions[ext.ConditionID]
}

// splitTitle separa "Away vs. Home" o "Away @ Home" del título del mercado.
// Gamma titula visitante primero en ambas formas.
func splitTitle(title string) (home, away string) {
	for _, sep := range []string{" vs. ", " vs ", " @ "} {
		if i := strings.Index(title, sep); i > 0 {
			return strings.TrimSpace(title[i+len(sep):]), strings.TrimSpace(title[:i])
		}
	}
	return title, ""
}
