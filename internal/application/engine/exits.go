package engine

// exits.go — salidas anticipadas de posiciones abiertas: reversión de edge
// contra el consenso fresco y take-profit condicionado al estado del partido.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

// manageExits revisa cada posición abierta contra el bid actual, el consenso
// fresco y el marcador en vivo. Devuelve cuántas filas del ledger cambiaron
// —ventas completas, recortes por fill parcial o cierres reconciliados— para
// que el ciclo relea el ledger antes de evaluar entradas.
func (e *Engine) manageExits(ctx context.Context, st *cycleState, open []domain.Position, matches []domain.MatchOdds) int {
	exits := exitParams(st.cfg)

	oddsByEvent := make(map[string]domain.MatchOdds, len(matches))
	for _, m := range matches {
		oddsByEvent[m.EventID] = m
	}
	games := e.liveGames(ctx, open)

	changed := 0
	for _, pos := range open {
		book := st.books[pos.TokenID]
		bid := book.BestBid()
		if bid <= 0 {
			// Sin bid no hay salida posible; el barrido de resolución se
			// ocupará si el mercado ya terminó.
			continue
		}
		if depth := book.BidDepthUSDC(liquidityBand); depth < st.cfg.Risk.MinBidLiquidityUSD {
			slog.Debug("Lado bid demasiado fino para salir este ciclo",
				"matchup", pos.Matchup(), "outcome", pos.Outcome,
				"depth", fmt.Sprintf("$%.0f", depth),
				"mid", fmt.Sprintf("%.3f", book.Midpoint()),
				"spread", fmt.Sprintf("%.3f", book.Spread()))
			continue
		}

		var consensus float64
		haveConsensus := false
		if m, ok := oddsByEvent[pos.EventID]; ok {
			if c, ok := domain.BuildConsensus(m, pos.Outcome, st.now, st.consensus); ok {
				consensus = c.Probability
				haveConsensus = true
			}
		}

		if haveConsensus {
			cur := domain.CurrentEdge(consensus, pos.AvgPrice)
			if exits.ShouldExitOnReversal(cur) {
				reason := fmt.Sprintf("edge reversed: %+.1f%% at entry price", cur*100)
				if e.sellPosition(ctx, st, pos, bid, reason, consensus, true) {
					changed++
				}
				continue
			}
		}

		ret := pos.UnrealizedReturn(bid)
		g, haveGame := findGame(games, pos)
		if take, reason := exits.ShouldTakeProfit(ret, g, haveGame); take {
			if e.sellPosition(ctx, st, pos, bid, reason, consensus, haveConsensus) {
				changed++
			}
		}
	}
	return changed
}

// liveGames obtiene el estado en vivo de los deportes con posición abierta.
// Un fallo del proveedor deja ese deporte sin marcador este ciclo: el árbol
// de take-profit sigue funcionando con la puerta incondicional.
func (e *Engine) liveGames(ctx context.Context, open []domain.Position) []domain.GameState {
	sports := make(map[string]bool)
	for _, pos := range open {
		if pos.Sport != "" {
			sports[pos.Sport] = true
		}
	}

	var games []domain.GameState
	for sport := range sports {
		gs, err := e.deps.Games.FetchGameStates(ctx, sport)
		if err != nil {
			slog.Warn("Fallo obteniendo marcadores en vivo", "sport", sport, "error", err)
			e.deps.Monitor.RecordAPIError(domain.KindOf(err).String())
			continue
		}
		games = append(games, gs...)
	}
	return games
}

// findGame empareja una posición con su partido en vivo por nombres de
// equipo normalizados.
func findGame(games []domain.GameState, pos domain.Position) (domain.GameState, bool) {
	for _, g := range games {
		if domain.SameTeam(g.HomeTeam, pos.HomeTeam) && domain.SameTeam(g.AwayTeam, pos.AwayTeam) {
			return g, true
		}
	}
	return domain.GameState{}, false
}

// minResidualShares es el resto mínimo que justifica mantener abierta una
// fila tras un fill parcial; por debajo la venta se trata como completa.
const minResidualShares = 0.01

// sellPosition vende una posición al bid y liquida la fila del ledger con lo
// que el CLOB cruzó de verdad: un fill parcial liquida solo ese tramo y deja
// la fila abierta con el resto. Devuelve true si la fila cambió — venta total
// o parcial, o la vía de reconciliación: un rechazo por balance insuficiente
// significa que el exchange ya no tiene esas shares, la posición se cerró
// fuera del bot y se clasifica por el último precio en vez de reintentar.
func (e *Engine) sellPosition(ctx context.Context, st *cycleState, pos domain.Position, bid float64, reason string, consensus float64, haveConsensus bool) bool {
	placed, err := e.deps.Executor.PlaceOrder(ctx, domain.OrderRequest{
		TokenID:     pos.TokenID,
		ConditionID: pos.ConditionID,
		Side:        domain.OrderSell,
		Price:       bid,
		Shares:      pos.Shares,
		NegRisk:     pos.NegRisk,
	})
	if err != nil {
		if domain.KindOf(err) == domain.ErrInsufficientBalance {
			slog.Info("Venta rechazada por balance: la posición ya no existe en el exchange, reconciliando",
				"matchup", pos.Matchup(), "outcome", pos.Outcome)
			return e.settleClosedExternally(ctx, pos, bid)
		}
		slog.Warn("Fallo vendiendo posición",
			"matchup", pos.Matchup(), "outcome", pos.Outcome, "error", err)
		e.deps.Monitor.RecordAPIError(domain.KindOf(err).String())
		return false
	}

	// Sin matched shares en la respuesta se asume fill completo, igual que
	// en las compras; un resto de polvo tampoco merece fila propia.
	matched := placed.MatchedShares
	if matched <= 0 || matched > pos.Shares-minResidualShares {
		matched = pos.Shares
	}
	if matched < pos.Shares {
		return e.trimPartialFill(ctx, st, pos, bid, matched, reason, consensus, haveConsensus)
	}

	profit := pos.SellProfit(bid)
	if err := e.deps.Ledger.Settle(ctx, pos.ID, domain.StatusSold, bid, profit, time.Now()); err != nil {
		slog.Error("Fallo liquidando venta en el ledger", "id", pos.ID, "error", err)
		return false
	}
	e.recordOutcome(domain.StatusSold, profit)

	// La venta libera capital para los candidatos de este mismo ciclo.
	st.balance += bid * pos.Shares

	if haveConsensus {
		clv := consensus - pos.AvgPrice
		e.deps.Monitor.RecordCLV(clv)
		slog.Info("CLV de la salida",
			"matchup", pos.Matchup(), "clv", fmt.Sprintf("%+.3f", clv))
	}

	pos.Status = domain.StatusSold
	pos.ExitPrice = bid
	pos.Profit = profit
	slog.Info("Posición vendida",
		"matchup", pos.Matchup(),
		"outcome", pos.Outcome,
		"shares", fmt.Sprintf("%.1f", pos.Shares),
		"exit_price", fmt.Sprintf("%.3f", bid),
		"profit", fmt.Sprintf("$%+.2f", profit),
		"reason", reason)
	e.notifySold(ctx, pos, reason)
	return true
}

// trimPartialFill liquida el tramo que el CLOB cruzó de una venta parcial y
// recorta la fila abierta al resto, que se reintenta vender en los ciclos
// siguientes. Solo entra al balance y al PnL lo efectivamente vendido; el
// resto conserva su precio medio de entrada.
func (e *Engine) trimPartialFill(ctx context.Context, st *cycleState, pos domain.Position, bid, matched float64, reason string, consensus float64, haveConsensus bool) bool {
	remaining := pos.Shares - matched
	profit := matched * (bid - pos.AvgPrice)

	if err := e.deps.Ledger.UpdateHoldings(ctx, pos.ID, remaining, pos.AvgPrice); err != nil {
		slog.Error("Fallo recortando la posición tras un fill parcial", "id", pos.ID, "error", err)
		return false
	}
	e.recordOutcome(domain.StatusSold, profit)
	st.balance += bid * matched

	if haveConsensus {
		clv := consensus - pos.AvgPrice
		e.deps.Monitor.RecordCLV(clv)
		slog.Info("CLV de la salida",
			"matchup", pos.Matchup(), "clv", fmt.Sprintf("%+.3f", clv))
	}

	slog.Info("Venta cruzada parcialmente, la fila sigue abierta con el resto",
		"matchup", pos.Matchup(),
		"outcome", pos.Outcome,
		"matched", fmt.Sprintf("%.1f", matched),
		"remaining", fmt.Sprintf("%.1f", remaining),
		"exit_price", fmt.Sprintf("%.3f", bid),
		"profit", fmt.Sprintf("$%+.2f", profit),
		"reason", reason)

	tranche := pos
	tranche.Shares = matched
	tranche.CostBasis = matched * pos.AvgPrice
	tranche.Status = domain.StatusSold
	tranche.ExitPrice = bid
	tranche.Profit = profit
	e.notifySold(ctx, tranche, fmt.Sprintf("%s (partial fill %.1f/%.1f)", reason, matched, pos.Shares))
	return true
}

// settleClosedExternally liquida una posición que el exchange cerró fuera
// del bot, clasificando el desenlace por el último precio conocido: cerca
// de 1.0 resolvió a favor, cerca de 0 en contra, un precio intermedio fue
// una venta externa a ese precio.
func (e *Engine) settleClosedExternally(ctx context.Context, pos domain.Position, lastPrice float64) bool {
	known := lastPrice > 0
	status, exitPrice := domain.ClassifyClosed(lastPrice, known)
	profit := pos.SellProfit(exitPrice)

	if err := e.deps.Ledger.Settle(ctx, pos.ID, status, exitPrice, profit, time.Now()); err != nil {
		slog.Error("Fallo liquidando posición cerrada externamente", "id", pos.ID, "error", err)
		return false
	}
	e.recordOutcome(status, profit)

	pos.Status = status
	pos.ExitPrice = exitPrice
	pos.Profit = profit
	slog.Info("Posición cerrada fuera del bot, liquidada por último precio",
		"matchup", pos.Matchup(),
		"outcome", pos.Outcome,
		"status", status,
		"exit_price", fmt.Sprintf("%.3f", exitPrice),
		"profit", fmt.Sprintf("$%+.2f", profit))

	if status == domain.StatusSold {
		e.notifySold(ctx, pos, "reconciled: closed on exchange")
	} else {
		e.notifyResolved(ctx, pos)
	}
	return true
}
