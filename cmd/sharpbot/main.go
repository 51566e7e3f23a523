package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/sharpbot/config"
	"github.com/alejandrodnm/sharpbot/internal/adapters/notify"
	"github.com/alejandrodnm/sharpbot/internal/adapters/oddsapi"
	"github.com/alejandrodnm/sharpbot/internal/adapters/onchain"
	"github.com/alejandrodnm/sharpbot/internal/adapters/polymarket"
	"github.com/alejandrodnm/sharpbot/internal/adapters/scores"
	"github.com/alejandrodnm/sharpbot/internal/adapters/storage"
	"github.com/alejandrodnm/sharpbot/internal/application/engine"
	"github.com/alejandrodnm/sharpbot/internal/metrics"
	"github.com/alejandrodnm/sharpbot/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one evaluation cycle and exit")
	dryRun := flag.Bool("dry-run", false, "paper trading: real data, simulated orders")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full cycle tables (default: compact 1-line)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("No se pudo cargar la configuración", "error", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	paper := cfg.Engine.DryRun || *dryRun

	slog.Info("sharpbot arrancando",
		"config", *configPath,
		"sports", cfg.Engine.Sports,
		"poll", cfg.PollInterval(),
		"resolution", cfg.ResolutionInterval(),
		"dry_run", paper,
		"once", *once)

	if cfg.Odds.APIKey == "" {
		slog.Error("Falta la API key del feed de odds (ODDS_API_KEY)")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	watcher, err := config.NewWatcher(*configPath, cfg)
	if err != nil {
		slog.Error("No se pudo vigilar el archivo de configuración", "error", err)
		os.Exit(1)
	}
	defer watcher.Close()
	watcher.Start(ctx)

	odds := oddsapi.NewClient(cfg.Odds.BaseURL, cfg.Odds.APIKey, cfg.Odds.Regions)
	pm := polymarket.NewClient(cfg.Exchange.CLOBBase, cfg.Exchange.GammaBase,
		cfg.Exchange.DataBase, cfg.Exchange.SportTags)

	ledger, err := storage.NewSQLiteLedger(cfg.Storage.DSN)
	if err != nil {
		slog.Error("No se pudo abrir el ledger", "error", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer ledger.Close()

	executor, err := buildExecutor(ctx, cfg, pm, paper)
	if err != nil {
		slog.Error("No se pudo preparar el executor", "error", err)
		os.Exit(1)
	}

	notifiers := []ports.Notifier{notify.NewConsole(*table)}
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		if err != nil {
			slog.Warn("Telegram no disponible, solo consola", "error", err)
		} else {
			notifiers = append(notifiers, tg)
		}
	}

	monitor := metrics.New()
	if cfg.Metrics.Enabled {
		serveMetrics(ctx, cfg.Metrics.Addr, monitor)
	}

	eng := engine.New(engine.Deps{
		Config:    watcher,
		Odds:      odds,
		Markets:   pm,
		Books:     pm,
		Executor:  executor,
		Games:     scores.NewClient(""),
		Ledger:    ledger,
		Notifiers: notifiers,
		Monitor:   monitor,
	})

	if *once {
		if _, err := eng.RunOnce(ctx); err != nil {
			slog.Error("Ciclo fallido", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := eng.Run(ctx); err != nil {
		slog.Error("Motor terminado con error", "error", err)
		os.Exit(1)
	}
	slog.Info("sharpbot detenido limpiamente")
}

// buildExecutor cablea el executor según el modo: el real firma órdenes
// EIP-712 y asegura las aprobaciones on-chain antes de operar; el paper
// simula fills en memoria con los mismos datos de mercado.
func buildExecutor(ctx context.Context, cfg *config.Config, pm *polymarket.Client, paper bool) (ports.OrderExecutor, error) {
	if paper {
		slog.Info("Modo paper: órdenes simuladas", "balance", cfg.Engine.PaperBalance)
		return engine.NewPaperExecutor(cfg.Engine.PaperBalance), nil
	}

	if cfg.Exchange.PrivateKey == "" {
		return nil, errors.New("falta la clave privada del wallet (PM_PRIVATE_KEY)")
	}

	auth, err := polymarket.NewAuthClient(pm, cfg.Exchange.PrivateKey,
		cfg.Exchange.Funder, cfg.Exchange.SignatureType)
	if err != nil {
		return nil, err
	}

	chain, err := onchain.NewClient(cfg.Exchange.RPCURL, cfg.Exchange.PrivateKey)
	if err != nil {
		return nil, err
	}
	if err := chain.EnsureApprovals(ctx); err != nil {
		return nil, err
	}

	return polymarket.NewTradingClient(auth, chain, cfg.Exchange.BalanceSource), nil
}

// serveMetrics expone /metrics en background y lo apaga con el contexto.
func serveMetrics(ctx context.Context, addr string, monitor *metrics.Monitor) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitor.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		slog.Info("Métricas Prometheus expuestas", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Servidor de métricas caído", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
