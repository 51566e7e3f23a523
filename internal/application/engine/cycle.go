package engine

// cycle.go — un ciclo de evaluación: descubrimiento, emparejado, salidas y
// el pipeline consenso → edge → sizing → límites → orden por outcome.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/sharpbot/config"
	"github.com/alejandrodnm/sharpbot/internal/domain"
)

// liquidityBand es la banda de precio junto al mejor nivel dentro de la
// cual se mide la liquidez para los gates de book fino: ask al entrar, bid
// al salir.
const liquidityBand = 0.02

// Razones de descarte de candidatos: claves estables para el CycleReport y
// la métrica de skips. El detalle legible va al log.
const (
	skipNoConsensus   = "no_consensus"
	skipNoToken       = "no_token"
	skipEmptyBook     = "empty_book"
	skipThinBook      = "thin_book"
	skipBelowMinEdge  = "below_min_edge"
	skipBelowMinPrice = "below_min_price"
	skipSizing        = "sizing_rejected"
	skipExposure      = "exposure_capped"
	skipOrderFailed   = "order_failed"
)

// pairing es un partido del feed de odds emparejado con el mercado del
// exchange que lo cubre.
type pairing struct {
	odds   domain.MatchOdds
	market domain.Market
}

// cycleState es el estado de trabajo de un ciclo: el snapshot de
// configuración convertido a parámetros de dominio, los orderbooks del
// tick y la exposición acumulada según avanza la evaluación.
type cycleState struct {
	cfg       *config.Config
	now       time.Time
	consensus domain.ConsensusParams
	edge      domain.EdgeParams
	sizing    domain.SizingParams
	exposure  domain.ExposureParams
	balance   float64
	books     map[string]domain.OrderBook
	snap      domain.ExposureSnapshot
	report    *domain.CycleReport
}

// RunOnce ejecuta un ciclo de evaluación completo y devuelve su resumen.
//
//  1. Configuración y protección: snapshot de knobs + circuit breaker
//  2. Descubrimiento: balance, odds y mercados por deporte
//  3. Emparejado partido ↔ mercado y orderbooks en batch
//  4. Salidas: reversión de edge y take-profit sobre posiciones abiertas
//  5. Evaluación y ejecución por outcome, estrictamente secuencial
//  6. Reporte: consola, avisos, métricas
func (e *Engine) RunOnce(ctx context.Context) (*domain.CycleReport, error) {
	start := time.Now()

	// 1. Configuración y protección. El breaker solo bloquea compras:
	// salidas, resolución y reconciliación siguen gestionando el riesgo ya
	// tomado aunque el breaker esté disparado.
	cfg := e.deps.Config.Snapshot()
	e.syncBreaker(cfg)
	canBet := !cfg.Breaker.Enabled || e.breaker.IsOpen()
	e.deps.Monitor.UpdateBreaker(!canBet)

	st := &cycleState{
		cfg:       cfg,
		now:       start,
		consensus: consensusParams(cfg),
		edge:      edgeParams(cfg),
		sizing:    sizingParams(cfg),
		exposure:  exposureParams(cfg),
		report: &domain.CycleReport{
			StartedAt: start,
			Skips:     make(map[string]int),
		},
	}

	// 2. Descubrimiento
	balance, err := e.deps.Executor.GetBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine.RunOnce: get balance: %w", err)
	}
	st.balance = balance

	matches, markets := e.discover(ctx, cfg)
	st.report.Matches = len(matches)

	// 3. Emparejado y orderbooks
	pairs := matchPairs(matches, markets)
	st.report.Markets = len(pairs)
	e.rememberConditions(pairs)

	open, err := e.deps.Ledger.OpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine.RunOnce: open positions: %w", err)
	}
	st.books = e.fetchBooks(ctx, pairs, open)

	// 4. Salidas anticipadas. Cualquier cambio de fila —venta completa o
	// recorte por fill parcial— obliga a releer antes de medir exposición.
	if cfg.Exits.Enabled && len(open) > 0 {
		if changed := e.manageExits(ctx, st, open, matches); changed > 0 {
			if open, err = e.deps.Ledger.OpenPositions(ctx); err != nil {
				return nil, fmt.Errorf("engine.RunOnce: reread positions: %w", err)
			}
		}
	}
	st.snap = domain.NewExposureSnapshot(open)

	// 5. Evaluación y ejecución
	if canBet {
		for _, p := range pairs {
			e.evaluateSide(ctx, st, p, p.odds.HomeTeam)
			e.evaluateSide(ctx, st, p, p.odds.AwayTeam)
		}
	} else {
		slog.Warn("Circuit breaker activo, ciclo sin apuestas nuevas",
			"reason", e.breaker.TriggeredReason,
			"until", e.breaker.CooldownUntil.Format("15:04:05"))
	}

	// 6. Reporte
	e.report(ctx, st)
	return st.report, nil
}

// discover obtiene odds y mercados por deporte. El fallo de una fuente no
// bloquea a las demás: se loguea, se cuenta y el deporte queda fuera del
// ciclo.
func (e *Engine) discover(ctx context.Context, cfg *config.Config) ([]domain.MatchOdds, []domain.Market) {
	var matches []domain.MatchOdds
	var markets []domain.Market
	for _, sport := range cfg.Engine.Sports {
		odds, err := e.deps.Odds.FetchOdds(ctx, sport)
		if err != nil {
			slog.Warn("Fallo obteniendo odds, deporte omitido este ciclo",
				"sport", sport, "error", err)
			e.deps.Monitor.RecordAPIError(domain.KindOf(err).String())
			continue
		}
		mkts, err := e.deps.Markets.FetchGameMarkets(ctx, sport)
		if err != nil {
			slog.Warn("Fallo obteniendo mercados, deporte omitido este ciclo",
				"sport", sport, "error", err)
			e.deps.Monitor.RecordAPIError(domain.KindOf(err).String())
			continue
		}
		matches = append(matches, odds...)
		markets = append(markets, mkts...)
	}
	return matches, markets
}

// matchPairs cruza cada partido del feed con el primer mercado activo del
// exchange que lo cubre: ambos equipos como outcomes y hora compatible.
func matchPairs(matches []domain.MatchOdds, markets []domain.Market) []pairing {
	var out []pairing
	for _, o := range matches {
		for _, m := range markets {
			if !m.Active || m.Closed {
				continue
			}
			if m.CoversEvent(o) {
				out = append(out, pairing{odds: o, market: m})
				break
			}
		}
	}
	return out
}

// rememberConditions guarda los condition IDs del último descubrimiento con
// mercados. Un ciclo vacío (p.ej. fallo de red) no borra el universo.
func (e *Engine) rememberConditions(pairs []pairing) {
	if len(pairs) == 0 {
		return
	}
	seen := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		seen[p.market.ConditionID] = true
	}
	e.seenConditions = seen
}

// fetchBooks pide en un batch los orderbooks de todos los tokens del ciclo:
// los dos lados de cada mercado emparejado más los tokens con posición
// abierta, que hacen falta para valorar salidas. Si el batch falla, el
// ciclo sigue sin books: sin evaluación ni salidas, pero con reporte.
func (e *Engine) fetchBooks(ctx context.Context, pairs []pairing, open []domain.Position) map[string]domain.OrderBook {
	seen := make(map[string]bool, len(pairs)*2+len(open))
	ids := make([]string, 0, len(pairs)*2+len(open))
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, p := range pairs {
		add(p.market.Tokens[0].TokenID)
		add(p.market.Tokens[1].TokenID)
	}
	for _, pos := range open {
		add(pos.TokenID)
	}
	if len(ids) == 0 {
		return map[string]domain.OrderBook{}
	}

	books, err := e.deps.Books.FetchOrderBooks(ctx, ids)
	if err != nil {
		slog.Warn("Fallo obteniendo orderbooks, ciclo sin evaluación", "error", err)
		e.deps.Monitor.RecordAPIError(domain.KindOf(err).String())
		return map[string]domain.OrderBook{}
	}
	return books
}

// skip registra un candidato descartado: cuenta en el reporte y en métricas.
// Los rechazos de capital y riesgo son decisiones normales y salen a Info
// con su motivo; los descartes por datos van a debug.
func (e *Engine) skip(st *cycleState, key, matchup, outcome, detail string) {
	st.report.Skips[key]++
	e.deps.Monitor.RecordSkip(key)
	switch key {
	case skipSizing, skipExposure:
		slog.Info("Candidato rechazado",
			"matchup", matchup, "outcome", outcome, "key", key, "reason", detail)
	default:
		if detail != "" {
			slog.Debug("Candidato descartado",
				"matchup", matchup, "outcome", outcome, "key", key, "reason", detail)
		}
	}
}

// evaluateSide corre el pipeline completo para un lado de un mercado:
// consenso → edge dinámico → gate de liquidez → sizing → límites de
// exposición → orden. Cada apuesta aceptada actualiza el snapshot de
// exposición y el balance antes de evaluar el siguiente candidato.
func (e *Engine) evaluateSide(ctx context.Context, st *cycleState, p pairing, team string) {
	matchup := p.odds.AwayTeam + " @ " + p.odds.HomeTeam

	tok, ok := p.market.TokenFor(team)
	if !ok {
		e.skip(st, skipNoToken, matchup, team, "market has no token for this team")
		return
	}

	cons, ok := domain.BuildConsensus(p.odds, team, st.now, st.consensus)
	if !ok {
		e.skip(st, skipNoConsensus, matchup, team, "")
		return
	}

	book, ok := st.books[tok.TokenID]
	ask := book.BestAsk()
	if !ok || ask <= 0 {
		e.skip(st, skipEmptyBook, matchup, team, "")
		return
	}

	if depth := book.AskDepthUSDC(liquidityBand); depth < st.cfg.Risk.MinAskLiquidityUSD {
		e.skip(st, skipThinBook, matchup, team,
			fmt.Sprintf("ask depth $%.0f under $%.0f", depth, st.cfg.Risk.MinAskLiquidityUSD))
		return
	}

	edge := domain.Edge(cons.Probability, ask)
	qualifies, minEdge := st.edge.Qualifies(edge, ask, cons)
	if !qualifies {
		if ask < st.cfg.Risk.MinPrice {
			e.skip(st, skipBelowMinPrice, matchup, team, "")
		} else {
			e.skip(st, skipBelowMinEdge, matchup, team, "")
		}
		return
	}

	stake, reason, ok := st.sizing.SizeBet(edge, minEdge, cons.Probability, ask, st.balance)
	if !ok {
		e.skip(st, skipSizing, matchup, team, reason)
		return
	}

	fixedShares := st.sizing.Mode == domain.SizeFixedShares
	stake, reason, ok = st.exposure.ApplyCaps(st.snap, tok.TokenID, ask, stake,
		st.balance, st.sizing.MinBetUSD, fixedShares)
	if !ok {
		e.skip(st, skipExposure, matchup, team, reason)
		return
	}

	cand := domain.Candidate{
		EventID:     p.odds.EventID,
		Sport:       p.odds.Sport,
		HomeTeam:    p.odds.HomeTeam,
		AwayTeam:    p.odds.AwayTeam,
		Outcome:     team,
		TokenID:     tok.TokenID,
		ConditionID: p.market.ConditionID,
		NegRisk:     p.market.NegRisk,
		AskPrice:    ask,
		Consensus:   cons,
		Edge:        edge,
		MinEdge:     minEdge,
		Stake:       stake,
		// Riesgo ya comprometido ponderado por correlación con este partido,
		// antes de contar la apuesta que se está evaluando.
		CorrelatedExposure: st.exposure.CorrelatedExposure(st.snap.Open, p.odds.EventID, st.now),
	}
	st.report.Candidates = append(st.report.Candidates, cand)

	e.placeBet(ctx, st, cand)
}

// placeBet envía la orden de compra y registra el resultado en el ledger:
// fila nueva para un token sin posición, acumulación sobre la fila abierta
// si ya la hay. El tamaño registrado es lo que el CLOB cruzó; si la
// respuesta no trae matched shares se asume fill completo y la
// reconciliación corregirá la deriva.
func (e *Engine) placeBet(ctx context.Context, st *cycleState, cand domain.Candidate) {
	placed, err := e.deps.Executor.PlaceOrder(ctx, domain.OrderRequest{
		TokenID:     cand.TokenID,
		ConditionID: cand.ConditionID,
		Side:        domain.OrderBuy,
		Price:       cand.AskPrice,
		Shares:      cand.Stake.Shares,
		NegRisk:     cand.NegRisk,
	})
	if err != nil {
		slog.Warn("Orden rechazada",
			"matchup", cand.Matchup(), "outcome", cand.Outcome, "error", err)
		e.skip(st, skipOrderFailed, cand.Matchup(), cand.Outcome, err.Error())
		e.deps.Monitor.RecordAPIError(domain.KindOf(err).String())
		return
	}

	shares := placed.MatchedShares
	if shares <= 0 {
		shares = cand.Stake.Shares
	}
	cost := shares * cand.AskPrice

	rationale := fmt.Sprintf("edge %+.1f%% vs consensus %.3f (%d books)",
		cand.Edge*100, cand.Consensus.Probability, cand.Consensus.Sources)

	existing, found, err := e.deps.Ledger.OpenByToken(ctx, cand.TokenID)
	if err != nil {
		slog.Error("Ledger ilegible tras colocar orden",
			"order_id", placed.OrderID, "error", err)
		return
	}

	var pos domain.Position
	if found {
		if err := e.deps.Ledger.Accumulate(ctx, existing.ID, shares, cand.AskPrice); err != nil {
			slog.Error("Fallo acumulando posición", "id", existing.ID, "error", err)
			return
		}
		pos = existing
		pos.Accumulate(shares, cand.AskPrice)
		rationale = "accumulated: " + rationale
	} else {
		pos = domain.Position{
			ID:          uuid.NewString(),
			EventID:     cand.EventID,
			Sport:       cand.Sport,
			HomeTeam:    cand.HomeTeam,
			AwayTeam:    cand.AwayTeam,
			Outcome:     cand.Outcome,
			TokenID:     cand.TokenID,
			ConditionID: cand.ConditionID,
			NegRisk:     cand.NegRisk,
			Shares:      shares,
			AvgPrice:    cand.AskPrice,
			CostBasis:   cost,
			EntryEdge:   cand.Edge,
			OrderID:     placed.OrderID,
			Status:      domain.StatusOpen,
			CreatedAt:   st.now,
		}
		if err := e.deps.Ledger.Open(ctx, pos); err != nil {
			slog.Error("Fallo persistiendo posición", "token", cand.TokenID, "error", err)
			return
		}
	}

	// Los candidatos restantes del ciclo ven esta compra como exposición
	// ya comprometida y un balance ya reducido.
	st.snap.Record(domain.Position{
		EventID:   cand.EventID,
		TokenID:   cand.TokenID,
		Shares:    shares,
		CostBasis: cost,
		CreatedAt: st.now,
	})
	st.balance -= cost

	slog.Info("Apuesta colocada",
		"matchup", cand.Matchup(),
		"outcome", cand.Outcome,
		"shares", fmt.Sprintf("%.1f", shares),
		"price", fmt.Sprintf("%.3f", cand.AskPrice),
		"usd", fmt.Sprintf("$%.2f", cost),
		"edge", fmt.Sprintf("%+.1f%%", cand.Edge*100),
		"min_edge", fmt.Sprintf("%.1f%%", cand.MinEdge*100),
		"correlated", fmt.Sprintf("$%.2f", cand.CorrelatedExposure),
		"order_id", placed.OrderID)

	st.report.Placed++
	e.deps.Monitor.RecordBetPlaced()
	e.notifyPlaced(ctx, pos, rationale)
}

// report cierra el ciclo: cifras finales, métricas y fan-out a los sinks.
func (e *Engine) report(ctx context.Context, st *cycleState) {
	st.report.Duration = time.Since(st.report.StartedAt)
	st.report.Balance = st.balance
	st.report.Exposure = st.snap.TotalCostBasis
	st.report.CorrelatedExposure = st.exposure.CorrelatedExposure(st.snap.Open, "", st.now)

	// Para la presentación se relee el ledger: el snapshot lleva deltas de
	// acumulación, no filas completas.
	open, err := e.deps.Ledger.OpenPositions(ctx)
	if err != nil {
		slog.Warn("No se pudieron releer posiciones para el resumen", "error", err)
		open = nil
	}
	st.report.Open = open

	e.deps.Monitor.RecordCycle(st.report.Duration.Seconds(), len(st.report.Candidates))
	e.deps.Monitor.UpdatePortfolio(len(open), st.snap.TotalCostBasis,
		st.report.CorrelatedExposure, st.balance)

	for _, n := range e.deps.Notifiers {
		if err := n.CycleSummary(ctx, *st.report); err != nil {
			slog.Warn("Fallo notificando resumen", "error", err)
		}
	}

	slog.Info("Ciclo completado",
		"duration", st.report.Duration.Round(time.Millisecond),
		"matches", st.report.Matches,
		"markets", st.report.Markets,
		"candidates", len(st.report.Candidates),
		"placed", st.report.Placed,
		"balance", fmt.Sprintf("$%.2f", st.balance),
		"exposure", fmt.Sprintf("$%.2f", st.snap.TotalCostBasis))
}
