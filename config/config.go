package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Odds     OddsConfig     `yaml:"odds"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Risk     RiskConfig     `yaml:"risk"`
	Sizing   SizingConfig   `yaml:"sizing"`
	Exposure ExposureConfig `yaml:"exposure"`
	Exits    ExitsConfig    `yaml:"exits"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	Storage  StorageConfig  `yaml:"storage"`
	Notify   NotifyConfig   `yaml:"notify"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// EngineConfig controla el loop de evaluación.
type EngineConfig struct {
	PollIntervalSeconds       int      `yaml:"poll_interval_seconds"`
	ResolutionIntervalMinutes int      `yaml:"resolution_interval_minutes"`
	Sports                    []string `yaml:"sports"` // sport keys del feed de odds
	DryRun                    bool     `yaml:"dry_run"`
	PaperBalance              float64  `yaml:"paper_balance"` // balance simulado en dry run
}

// OddsConfig configura el feed de cuotas (The Odds API).
type OddsConfig struct {
	BaseURL            string   `yaml:"base_url"`
	APIKey             string   `yaml:"api_key"` // normalmente via ODDS_API_KEY
	Regions            string   `yaml:"regions"`
	TrustedBooks       []string `yaml:"trusted_books"` // allow-list de casas sharp
	MaxQuoteAgeSeconds int      `yaml:"max_quote_age_seconds"`
	MinSources         int      `yaml:"min_sources"`
}

// ExchangeConfig configura el acceso a Polymarket.
type ExchangeConfig struct {
	CLOBBase      string            `yaml:"clob_base"`
	GammaBase     string            `yaml:"gamma_base"`
	DataBase      string            `yaml:"data_base"`
	SportTags     map[string]string `yaml:"sport_tags"`  // sport key → tag_id de Gamma
	PrivateKey    string            `yaml:"private_key"` // via PM_PRIVATE_KEY, nunca en YAML
	Funder        string            `yaml:"funder"`      // dirección del proxy wallet con los fondos
	SignatureType int               `yaml:"signature_type"`
	RPCURL        string            `yaml:"rpc_url"`        // nodo Polygon para el balance on-chain
	BalanceSource string            `yaml:"balance_source"` // clob | onchain
}

// RiskConfig son los knobs del filtro de edge. Hot-reloadable.
type RiskConfig struct {
	MinEdge            float64 `yaml:"min_edge"` // umbral estático si dynamic_edge: false
	DynamicEdge        bool    `yaml:"dynamic_edge"`
	EdgeTier4Plus      float64 `yaml:"edge_tier_4plus"`
	EdgeTier3          float64 `yaml:"edge_tier_3"`
	EdgeTier2          float64 `yaml:"edge_tier_2"`
	VarianceCeiling    float64 `yaml:"variance_ceiling"`
	MinPrice           float64 `yaml:"min_price"`
	MinAskLiquidityUSD float64 `yaml:"min_ask_liquidity_usd"` // book demasiado fino para entrar por debajo
	MinBidLiquidityUSD float64 `yaml:"min_bid_liquidity_usd"` // lado bid demasiado fino para salir por debajo
}

// SizingConfig son los knobs del Position Sizer. Hot-reloadable.
type SizingConfig struct {
	Mode              string  `yaml:"mode"` // kelly | fixed_shares
	KellyMultiplier   float64 `yaml:"kelly_multiplier"`
	MaxBetFraction    float64 `yaml:"max_bet_fraction"`
	MinBetUSD         float64 `yaml:"min_bet_usd"`
	MaxBetUSD         float64 `yaml:"max_bet_usd"`
	BaseShares        float64 `yaml:"base_shares"`
	EdgeScaling       bool    `yaml:"edge_scaling"`
	MaxEdgeMultiplier float64 `yaml:"max_edge_multiplier"`
}

// ExposureConfig son los límites de exposición. Hot-reloadable.
type ExposureConfig struct {
	MaxSharesPerOutcome float64 `yaml:"max_shares_per_outcome"`
	MaxUSDPerOutcome    float64 `yaml:"max_usd_per_outcome"`
	MaxExposureFraction float64 `yaml:"max_exposure_fraction"`
	SameEventFactor     float64 `yaml:"same_event_factor"`
	SameDayFactor       float64 `yaml:"same_day_factor"`
}

// ExitsConfig configura las salidas anticipadas.
type ExitsConfig struct {
	Enabled            bool    `yaml:"enabled"`
	ReversalThreshold  float64 `yaml:"reversal_threshold"`
	TakeProfitAlways   float64 `yaml:"take_profit_always"`
	CrunchTimeProfit   float64 `yaml:"crunch_time_profit"`
	CloseGameProfit    float64 `yaml:"close_game_profit"`
	BlowoutProfit      float64 `yaml:"blowout_profit"`
	CrunchMargin       int     `yaml:"crunch_margin"`
	CloseMargin        int     `yaml:"close_margin"`
	BlowoutMargin      int     `yaml:"blowout_margin"`
	CrunchClockSeconds int     `yaml:"crunch_clock_seconds"`
	RegulationPeriods  int     `yaml:"regulation_periods"`
}

// BreakerConfig configura el circuit breaker de pérdidas.
type BreakerConfig struct {
	Enabled              bool    `yaml:"enabled"`
	MaxConsecutiveLosses int     `yaml:"max_consecutive_losses"`
	CooldownMinutes      int     `yaml:"cooldown_minutes"`
	MaxDrawdownUSD       float64 `yaml:"max_drawdown_usd"` // positivo; se aplica como suelo negativo
}

// StorageConfig controla dónde se persiste el ledger.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// NotifyConfig configura el canal de notificaciones.
type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`   // via TELEGRAM_BOT_TOKEN
	TelegramChatID int64  `yaml:"telegram_chat_id"` // via TELEGRAM_CHAT_ID
}

// MetricsConfig controla el endpoint Prometheus.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del entorno sobreescriben los del YAML para las keys sensibles.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// PollInterval devuelve el intervalo entre ciclos como time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollIntervalSeconds) * time.Second
}

// ResolutionInterval devuelve cada cuánto corre el barrido de resolución.
func (c *Config) ResolutionInterval() time.Duration {
	return time.Duration(c.Engine.ResolutionIntervalMinutes) * time.Minute
}

// MaxQuoteAge devuelve la ventana de frescura de las quotes.
func (c *Config) MaxQuoteAge() time.Duration {
	return time.Duration(c.Odds.MaxQuoteAgeSeconds) * time.Second
}

// CrunchClock devuelve el reloj máximo del último periodo para crunch time.
func (c *Config) CrunchClock() time.Duration {
	return time.Duration(c.Exits.CrunchClockSeconds) * time.Second
}

// BreakerCooldown devuelve la pausa tras pérdidas consecutivas.
func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.Breaker.CooldownMinutes) * time.Minute
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
// Los secretos (API keys, clave privada, token de Telegram) viven en el
// entorno, no en el YAML.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ODDS_API_KEY"); v != "" {
		cfg.Odds.APIKey = v
	}
	if v := os.Getenv("PM_PRIVATE_KEY"); v != "" {
		cfg.Exchange.PrivateKey = v
	}
	if v := os.Getenv("PM_FUNDER"); v != "" {
		cfg.Exchange.Funder = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notify.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Notify.TelegramChatID = id
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Engine.PollIntervalSeconds <= 0 {
		cfg.Engine.PollIntervalSeconds = 60
	}
	if cfg.Engine.ResolutionIntervalMinutes <= 0 {
		cfg.Engine.ResolutionIntervalMinutes = 10
	}
	if len(cfg.Engine.Sports) == 0 {
		cfg.Engine.Sports = []string{"basketball_nba"}
	}
	if cfg.Engine.PaperBalance <= 0 {
		cfg.Engine.PaperBalance = 1000
	}

	if cfg.Odds.BaseURL == "" {
		cfg.Odds.BaseURL = "https://api.the-odds-api.com"
	}
	if cfg.Odds.Regions == "" {
		cfg.Odds.Regions = "us"
	}
	if len(cfg.Odds.TrustedBooks) == 0 {
		cfg.Odds.TrustedBooks = []string{"pinnacle", "betonlineag", "lowvig", "betus"}
	}
	if cfg.Odds.MaxQuoteAgeSeconds <= 0 {
		cfg.Odds.MaxQuoteAgeSeconds = 600
	}
	if cfg.Odds.MinSources <= 0 {
		cfg.Odds.MinSources = 2
	}

	if cfg.Exchange.CLOBBase == "" {
		cfg.Exchange.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.Exchange.GammaBase == "" {
		cfg.Exchange.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.Exchange.DataBase == "" {
		cfg.Exchange.DataBase = "https://data-api.polymarket.com"
	}
	if cfg.Exchange.RPCURL == "" {
		cfg.Exchange.RPCURL = "https://polygon-rpc.com"
	}
	if cfg.Exchange.BalanceSource == "" {
		cfg.Exchange.BalanceSource = "clob"
	}

	if cfg.Risk.MinEdge <= 0 {
		cfg.Risk.MinEdge = 0.05
	}
	if cfg.Risk.EdgeTier4Plus <= 0 {
		cfg.Risk.EdgeTier4Plus = 0.025
	}
	if cfg.Risk.EdgeTier3 <= 0 {
		cfg.Risk.EdgeTier3 = 0.035
	}
	if cfg.Risk.EdgeTier2 <= 0 {
		cfg.Risk.EdgeTier2 = 0.05
	}
	if cfg.Risk.VarianceCeiling <= 0 {
		cfg.Risk.VarianceCeiling = 0.02
	}
	if cfg.Risk.MinPrice <= 0 {
		cfg.Risk.MinPrice = 0.10
	}
	if cfg.Risk.MinAskLiquidityUSD <= 0 {
		cfg.Risk.MinAskLiquidityUSD = 50
	}
	// Más laxo que el de entrada: retener riesgo ya tomado por falta de
	// liquidez es peor que venderlo algo peor.
	if cfg.Risk.MinBidLiquidityUSD <= 0 {
		cfg.Risk.MinBidLiquidityUSD = 10
	}

	if cfg.Sizing.Mode == "" {
		cfg.Sizing.Mode = "kelly"
	}
	if cfg.Sizing.KellyMultiplier <= 0 {
		cfg.Sizing.KellyMultiplier = 0.25
	}
	if cfg.Sizing.MaxBetFraction <= 0 {
		cfg.Sizing.MaxBetFraction = 0.03
	}
	if cfg.Sizing.MinBetUSD <= 0 {
		cfg.Sizing.MinBetUSD = 5
	}
	if cfg.Sizing.MaxBetUSD <= 0 {
		cfg.Sizing.MaxBetUSD = 250
	}
	if cfg.Sizing.BaseShares <= 0 {
		cfg.Sizing.BaseShares = 50
	}
	if cfg.Sizing.MaxEdgeMultiplier <= 0 {
		cfg.Sizing.MaxEdgeMultiplier = 3
	}

	if cfg.Exposure.MaxSharesPerOutcome <= 0 {
		cfg.Exposure.MaxSharesPerOutcome = 300
	}
	if cfg.Exposure.MaxUSDPerOutcome <= 0 {
		cfg.Exposure.MaxUSDPerOutcome = 150
	}
	if cfg.Exposure.MaxExposureFraction <= 0 {
		cfg.Exposure.MaxExposureFraction = 0.5
	}
	if cfg.Exposure.SameEventFactor <= 0 {
		cfg.Exposure.SameEventFactor = 0.8
	}
	if cfg.Exposure.SameDayFactor <= 0 {
		cfg.Exposure.SameDayFactor = 0.3
	}

	// ReversalThreshold por defecto es 0: salir cuando el edge deja de ser positivo.
	if cfg.Exits.TakeProfitAlways <= 0 {
		cfg.Exits.TakeProfitAlways = 2.0
	}
	if cfg.Exits.CrunchTimeProfit <= 0 {
		cfg.Exits.CrunchTimeProfit = 0.5
	}
	if cfg.Exits.CloseGameProfit <= 0 {
		cfg.Exits.CloseGameProfit = 1.0
	}
	if cfg.Exits.BlowoutProfit <= 0 {
		cfg.Exits.BlowoutProfit = 1.5
	}
	if cfg.Exits.CrunchMargin <= 0 {
		cfg.Exits.CrunchMargin = 5
	}
	if cfg.Exits.CloseMargin <= 0 {
		cfg.Exits.CloseMargin = 10
	}
	if cfg.Exits.BlowoutMargin <= 0 {
		cfg.Exits.BlowoutMargin = 20
	}
	if cfg.Exits.CrunchClockSeconds <= 0 {
		cfg.Exits.CrunchClockSeconds = 300
	}
	if cfg.Exits.RegulationPeriods <= 0 {
		cfg.Exits.RegulationPeriods = 4
	}

	if cfg.Breaker.MaxConsecutiveLosses <= 0 {
		cfg.Breaker.MaxConsecutiveLosses = 4
	}
	if cfg.Breaker.CooldownMinutes <= 0 {
		cfg.Breaker.CooldownMinutes = 120
	}
	if cfg.Breaker.MaxDrawdownUSD <= 0 {
		cfg.Breaker.MaxDrawdownUSD = 200
	}

	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "sharpbot.db"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
