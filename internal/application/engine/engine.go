package engine

// engine.go — el Orchestrator: un loop de polling secuencial que evalúa
// cada outcome apostable contra el consenso de las casas sharp y gestiona
// las posiciones abiertas hasta su resolución.
//
// Una sola goroutine muta estado: el ticker de evaluación y el barrido de
// resolución comparten el mismo select, así que nunca corren a la vez y
// ningún candidato ve lecturas rancias de otro candidato del mismo ciclo.

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/sharpbot/config"
	"github.com/alejandrodnm/sharpbot/internal/domain"
	"github.com/alejandrodnm/sharpbot/internal/metrics"
	"github.com/alejandrodnm/sharpbot/internal/ports"
)

// Deps agrupa los colaboradores del motor. Config, los providers, el
// executor y el ledger son obligatorios; Monitor, Notifiers y Adopt son
// opcionales.
type Deps struct {
	Config    *config.Watcher
	Odds      ports.OddsProvider
	Markets   ports.MarketProvider
	Books     ports.BookProvider
	Executor  ports.OrderExecutor
	Games     ports.GameStateProvider
	Ledger    ports.Ledger
	Notifiers []ports.Notifier
	Monitor   *metrics.Monitor

	// Adopt decide si una posición externa desconocida pertenece al
	// universo del bot y debe adoptarse en la reconciliación. Nil → se
	// adoptan solo tokens de mercados vistos en el último descubrimiento.
	Adopt func(domain.ExternalPosition) bool
}

// Engine es el orquestador. Posee el circuit breaker y la memoria de
// mercados vistos; todo lo demás entra por Deps.
type Engine struct {
	deps    Deps
	breaker domain.CircuitBreaker

	// Condition IDs del último descubrimiento con mercados. Universo por
	// defecto del predicado de adopción.
	seenConditions map[string]bool
}

// New crea el motor. El circuit breaker arranca limpio con los knobs del
// snapshot inicial; los knobs se refrescan en cada ciclo, el estado
// (pérdidas seguidas, PnL acumulado) sobrevive entre ciclos.
func New(deps Deps) *Engine {
	if deps.Monitor == nil {
		deps.Monitor = metrics.New()
	}
	cfg := deps.Config.Snapshot()
	return &Engine{
		deps: deps,
		breaker: domain.CircuitBreaker{
			MaxLosses:        cfg.Breaker.MaxConsecutiveLosses,
			CooldownDuration: cfg.BreakerCooldown(),
			MaxDrawdown:      -cfg.Breaker.MaxDrawdownUSD,
		},
		seenConditions: make(map[string]bool),
	}
}

// Run ejecuta el loop de polling hasta que el contexto se cancele. El
// barrido de resolución corre en el mismo select, intercalado entre ciclos
// de evaluación, nunca en paralelo con ellos.
func (e *Engine) Run(ctx context.Context) error {
	cfg := e.deps.Config.Snapshot()
	poll := time.NewTicker(cfg.PollInterval())
	defer poll.Stop()
	sweep := time.NewTicker(cfg.ResolutionInterval())
	defer sweep.Stop()

	slog.Info("Motor arrancado",
		"poll_interval", cfg.PollInterval(),
		"resolution_interval", cfg.ResolutionInterval(),
		"sports", cfg.Engine.Sports,
		"dry_run", cfg.Engine.DryRun)

	// Primer ciclo inmediato; el ticker marca los siguientes.
	if _, err := e.RunOnce(ctx); err != nil {
		slog.Error("Ciclo fallido", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Motor detenido")
			return nil
		case <-poll.C:
			if _, err := e.RunOnce(ctx); err != nil {
				slog.Error("Ciclo fallido", "error", err)
			}
		case <-sweep.C:
			if err := e.ResolveSweep(ctx); err != nil {
				slog.Warn("Barrido de resolución fallido, se reintenta en el próximo",
					"error", err)
			}
		}
	}
}

// syncBreaker refresca los knobs del breaker desde el snapshot vigente sin
// tocar su estado. Así el operador puede suavizar o endurecer los límites
// en caliente.
func (e *Engine) syncBreaker(cfg *config.Config) {
	e.breaker.MaxLosses = cfg.Breaker.MaxConsecutiveLosses
	e.breaker.CooldownDuration = cfg.BreakerCooldown()
	e.breaker.MaxDrawdown = -cfg.Breaker.MaxDrawdownUSD
}

// recordOutcome alimenta el circuit breaker y las métricas con el cierre
// de una posición, sea por venta, resolución o reconciliación.
func (e *Engine) recordOutcome(status domain.PositionStatus, profit float64) {
	if profit >= 0 {
		e.breaker.RecordWin(profit)
	} else {
		e.breaker.RecordLoss(profit)
	}
	switch status {
	case domain.StatusSold:
		e.deps.Monitor.RecordBetSold()
	case domain.StatusWon:
		e.deps.Monitor.RecordBetWon()
	case domain.StatusLost:
		e.deps.Monitor.RecordBetLost()
	}
	e.deps.Monitor.AddRealizedPnL(profit)
}

// --- notificaciones fan-out ---
//
// Un sink que falla se loguea y no bloquea ni al ciclo ni al resto de sinks.

func (e *Engine) notifyPlaced(ctx context.Context, pos domain.Position, rationale string) {
	for _, n := range e.deps.Notifiers {
		if err := n.BetPlaced(ctx, pos, rationale); err != nil {
			slog.Warn("Fallo notificando apuesta", "error", err)
		}
	}
}

func (e *Engine) notifySold(ctx context.Context, pos domain.Position, rationale string) {
	for _, n := range e.deps.Notifiers {
		if err := n.BetSold(ctx, pos, rationale); err != nil {
			slog.Warn("Fallo notificando venta", "error", err)
		}
	}
}

func (e *Engine) notifyResolved(ctx context.Context, pos domain.Position) {
	for _, n := range e.deps.Notifiers {
		if err := n.BetResolved(ctx, pos); err != nil {
			slog.Warn("Fallo notificando resolución", "error", err)
		}
	}
}

// --- parámetros de dominio desde el snapshot de configuración ---
//
// El snapshot se toma una vez al empezar el ciclo: todos los candidatos de
// un ciclo se evalúan con los mismos knobs aunque el archivo cambie a mitad.

func consensusParams(cfg *config.Config) domain.ConsensusParams {
	return domain.ConsensusParams{
		TrustedBooks: cfg.Odds.TrustedBooks,
		MaxQuoteAge:  cfg.MaxQuoteAge(),
		MinSources:   cfg.Odds.MinSources,
	}
}

func edgeParams(cfg *config.Config) domain.EdgeParams {
	return domain.EdgeParams{
		MinEdge:         cfg.Risk.MinEdge,
		Dynamic:         cfg.Risk.DynamicEdge,
		Tier4Plus:       cfg.Risk.EdgeTier4Plus,
		Tier3:           cfg.Risk.EdgeTier3,
		Tier2:           cfg.Risk.EdgeTier2,
		VarianceCeiling: cfg.Risk.VarianceCeiling,
		MinPrice:        cfg.Risk.MinPrice,
	}
}

func sizingParams(cfg *config.Config) domain.SizingParams {
	return domain.SizingParams{
		Mode:              domain.SizingMode(cfg.Sizing.Mode),
		KellyMultiplier:   cfg.Sizing.KellyMultiplier,
		MaxBetFraction:    cfg.Sizing.MaxBetFraction,
		MinBetUSD:         cfg.Sizing.MinBetUSD,
		MaxBetUSD:         cfg.Sizing.MaxBetUSD,
		BaseShares:        cfg.Sizing.BaseShares,
		EdgeScaling:       cfg.Sizing.EdgeScaling,
		MaxEdgeMultiplier: cfg.Sizing.MaxEdgeMultiplier,
	}
}

func exposureParams(cfg *config.Config) domain.ExposureParams {
	return domain.ExposureParams{
		MaxSharesPerOutcome: cfg.Exposure.MaxSharesPerOutcome,
		MaxUSDPerOutcome:    cfg.Exposure.MaxUSDPerOutcome,
		MaxExposureFraction: cfg.Exposure.MaxExposureFraction,
		SameEventFactor:     cfg.Exposure.SameEventFactor,
		SameDayFactor:       cfg.Exposure.SameDayFactor,
	}
}

func exitParams(cfg *config.Config) domain.ExitParams {
	return domain.ExitParams{
		ReversalThreshold: cfg.Exits.ReversalThreshold,
		TakeProfitAlways:  cfg.Exits.TakeProfitAlways,
		CrunchTimeProfit:  cfg.Exits.CrunchTimeProfit,
		CloseGameProfit:   cfg.Exits.CloseGameProfit,
		BlowoutProfit:     cfg.Exits.BlowoutProfit,
		CrunchMargin:      cfg.Exits.CrunchMargin,
		CloseMargin:       cfg.Exits.CloseMargin,
		BlowoutMargin:     cfg.Exits.BlowoutMargin,
		CrunchClock:       cfg.CrunchClock(),
		RegulationPeriods: cfg.Exits.RegulationPeriods,
	}
}
