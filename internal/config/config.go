// Package config loads and validates process configuration from the
// environment. Every tunable named in the component design has a
// default here; unknown env keys are simply ignored by envconfig (it
// only binds fields it knows about), and every required secret fails
// fast in Validate.
package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the root configuration object, constructed once at startup
// and threaded through internal/appctx.AppContext.
type Config struct {
	Listen   ListenConfig
	Vault    VaultConfig
	Auth     AuthConfig
	Market   MarketConfig
	Exchanges ExchangesConfig
	Risk     RiskConfig
	Breaker  BreakerConfig
	Router   RouterConfig
	Users    UsersConfig
	Database DatabaseConfig
	ClickHouse ClickHouseConfig
	Redis    RedisConfig
	AI       AIConfig
	Telegram TelegramConfig
	Notify   NotifyConfig
	Logging  LoggingConfig
}

type ListenConfig struct {
	Addr string `envconfig:"LISTEN_ADDR" default:":8080"`
}

// VaultConfig holds the symmetric key used by internal/vault.
type VaultConfig struct {
	KeyBase64 string `envconfig:"VAULT_KEY" required:"true"`
}

// Key decodes and validates the vault key, returning exactly 32 bytes
// for AES-256-GCM. Called by Validate and again by appctx.New.
func (v VaultConfig) Key() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(v.KeyBase64)
	if err != nil {
		return nil, fmt.Errorf("VAULT_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("VAULT_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
}

// MarketConfig tunes the Market Data Aggregator (§4.2).
type MarketConfig struct {
	FreshnessWindow   time.Duration `envconfig:"MARKET_FRESHNESS_WINDOW" default:"30s"`
	SourceTimeout     time.Duration `envconfig:"MARKET_SOURCE_TIMEOUT" default:"5s"`
	CryptoSourceURL   string        `envconfig:"MARKET_CRYPTO_SOURCE_URL" default:"https://api.coingecko.com/api/v3"`
	EquitySourceURL   string        `envconfig:"MARKET_EQUITY_SOURCE_URL" default:""`
	ForexSourceURL    string        `envconfig:"MARKET_FOREX_SOURCE_URL" default:""`
}

// ExchangesConfig holds per-exchange live credentials (used only to seed
// adapters at Platform-test time; long-lived credentials live encrypted
// in internal/platform, never in config).
type ExchangesConfig struct {
	Binance ExchangeConfig
	Bybit   ExchangeConfig
	OKX     ExchangeConfig
}

type ExchangeConfig struct {
	Sandbox bool `envconfig:"SANDBOX" default:"true"`
}

// RiskConfig holds the Risk Engine's configurable limits (§4.5).
type RiskConfig struct {
	PerTradeMax    float64 `envconfig:"RISK_PER_TRADE_MAX" default:"0.005"`
	LeverageMax    float64 `envconfig:"RISK_LEVERAGE_MAX" default:"3.0"`
	DailyDDSoft    float64 `envconfig:"RISK_DAILY_DD_SOFT" default:"0.03"`
	DailyDDHard    float64 `envconfig:"RISK_DAILY_DD_HARD" default:"0.05"`
	TotalDDMax     float64 `envconfig:"RISK_TOTAL_DD_MAX" default:"0.05"`
	DefaultRiskPct float64 `envconfig:"RISK_DEFAULT_RISK_PCT" default:"0.01"`

	// MonitorInterval is how often the risk monitor re-assesses every
	// user's unrealized drawdown against daily_dd_hard/total_dd_max
	// independent of any new order submission (§4.5.3).
	MonitorInterval time.Duration `envconfig:"RISK_MONITOR_INTERVAL" default:"30s"`
}

// BreakerConfig holds the Circuit Breaker Registry's defaults (§4.4).
type BreakerConfig struct {
	FailureThreshold int           `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"5"`
	FailureWindow    time.Duration `envconfig:"BREAKER_FAILURE_WINDOW" default:"60s"`
	Cooldown         time.Duration `envconfig:"BREAKER_COOLDOWN" default:"30s"`
	ProbeLimit       int           `envconfig:"BREAKER_PROBE_LIMIT" default:"1"`
}

// RouterConfig holds the Trade Router's mode/timeout defaults (§4.6).
type RouterConfig struct {
	AssistedApprovalTTL time.Duration `envconfig:"ROUTER_ASSISTED_TTL" default:"5m"`
	QuoteFreshnessMax   time.Duration `envconfig:"ROUTER_QUOTE_FRESHNESS_MAX" default:"5s"`
}

// UsersConfig holds account-level defaults.
type UsersConfig struct {
	SeedBalance float64 `envconfig:"USERS_SEED_BALANCE" default:"10000"`
}

type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"tradecore"`
	User     string `envconfig:"DB_USER" default:"tradecore"`
	Password string `envconfig:"DB_PASSWORD" default:""`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	URL      string `envconfig:"DB_URL" default:""`
}

func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// MigrationURL returns a scheme-prefixed connection string for
// golang-migrate, which selects its database driver from the URL
// scheme rather than accepting lib/pq's key=value DSN form.
func (c DatabaseConfig) MigrationURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Addr     string `envconfig:"CLICKHOUSE_ADDR" default:"localhost:9000"`
	Database string `envconfig:"CLICKHOUSE_DATABASE" default:"tradecore_audit"`
	Username string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD" default:""`
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
}

type RedisConfig struct {
	Addr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	DB   int    `envconfig:"REDIS_DB" default:"0"`
}

// AIConfig configures the opaque AI completion provider (§1).
// Absence of AI_PROVIDER_KEY disables AI endpoints gracefully rather
// than failing startup.
type AIConfig struct {
	ProviderKey string        `envconfig:"AI_PROVIDER_KEY" required:"false"`
	Timeout     time.Duration `envconfig:"AI_TIMEOUT" default:"20s"`
}

func (c AIConfig) Enabled() bool { return c.ProviderKey != "" }

// TelegramConfig configures the optional ops alert channel (critical
// notifications only — not a user-facing bot).
type TelegramConfig struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"false"`
	ChatID   int64  `envconfig:"TELEGRAM_CHAT_ID" required:"false"`
}

func (c TelegramConfig) Enabled() bool { return c.BotToken != "" && c.ChatID != 0 }

// NotifyConfig tunes the SmartAlert engine (§4.8): how often armed
// alerts are re-evaluated against the latest quote and how often the
// opportunity scanner runs.
type NotifyConfig struct {
	AlertScanInterval       time.Duration `envconfig:"NOTIFY_ALERT_SCAN_INTERVAL" default:"10s"`
	OpportunityScanInterval time.Duration `envconfig:"NOTIFY_OPPORTUNITY_SCAN_INTERVAL" default:"60s"`
	RSIPeriod               int           `envconfig:"NOTIFY_RSI_PERIOD" default:"14"`
}

type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" default:""`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate fails fast on missing/malformed required secrets and
// nonsensical tunables. A non-nil return must map to CLI exit code 1.
func (c *Config) Validate() error {
	if _, err := c.Vault.Key(); err != nil {
		return err
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.Auth.JWTSecret))
	}
	if c.Risk.PerTradeMax <= 0 || c.Risk.PerTradeMax >= 1 {
		return fmt.Errorf("RISK_PER_TRADE_MAX must be in (0, 1), got %v", c.Risk.PerTradeMax)
	}
	if c.Risk.LeverageMax <= 0 {
		return fmt.Errorf("RISK_LEVERAGE_MAX must be positive")
	}
	if c.Risk.DailyDDSoft <= 0 || c.Risk.DailyDDHard <= c.Risk.DailyDDSoft {
		return fmt.Errorf("RISK_DAILY_DD_HARD must be greater than RISK_DAILY_DD_SOFT")
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be at least 1")
	}
	if c.Breaker.ProbeLimit < 1 {
		return fmt.Errorf("BREAKER_PROBE_LIMIT must be at least 1")
	}
	if c.Users.SeedBalance <= 0 {
		return fmt.Errorf("USERS_SEED_BALANCE must be positive")
	}
	return nil
}
