package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coredatabase "github.com/getbits/solbot/core/database"
)

// TelegramConfig holds Telegram bot transport settings.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
	File   string `yaml:"file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// SolanaConfig points the chain gateway at a ledger RPC node.
type SolanaConfig struct {
	RPCURL string `yaml:"rpc_url" envconfig:"SOLANA_RPC_URL"`
	// ConfirmTimeoutSeconds bounds how long a submitted transaction is
	// polled for confirmation before the result is reported as unknown.
	ConfirmTimeoutSeconds int `yaml:"confirm_timeout_seconds" envconfig:"SOLANA_CONFIRM_TIMEOUT_SECONDS"`
}

// JupiterConfig configures the swap aggregator endpoints.
type JupiterConfig struct {
	APIURL       string `yaml:"api_url" envconfig:"JUPITER_API_URL"`
	TokenListURL string `yaml:"token_list_url" envconfig:"JUPITER_TOKEN_LIST_URL"`
	SlippageBps  int    `yaml:"slippage_bps" envconfig:"JUPITER_SLIPPAGE_BPS"`
}

// PricingConfig configures the price oracle.
type PricingConfig struct {
	CoinGeckoURL string `yaml:"coingecko_url" envconfig:"COINGECKO_URL"`
}

// VaultConfig carries the process-wide encryption key for secrets at rest.
type VaultConfig struct {
	// EncryptionKey is hex-encoded and must decode to 32 bytes.
	EncryptionKey string `yaml:"encryption_key" envconfig:"ENCRYPTION_KEY"`
}

// SessionConfig controls per-chat conversation state retention.
type SessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
}

// Config aggregates every section the bot needs at startup.
type Config struct {
	Telegram  TelegramConfig      `yaml:"telegram"`
	Logging   LoggingConfig       `yaml:"logging"`
	RateLimit RateLimitConfig     `yaml:"rate_limit"`
	Database  coredatabase.Config `yaml:"database"`
	Solana    SolanaConfig        `yaml:"solana"`
	Jupiter   JupiterConfig       `yaml:"jupiter"`
	Pricing   PricingConfig       `yaml:"pricing"`
	Vault     VaultConfig         `yaml:"vault"`
	Session   SessionConfig       `yaml:"session"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if cfg.Telegram.LongPollTimeoutSeconds < 0 {
		return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
	}

	if strings.TrimSpace(cfg.Solana.RPCURL) == "" {
		return fmt.Errorf("solana.rpc_url is required")
	}
	if cfg.Solana.ConfirmTimeoutSeconds <= 0 {
		cfg.Solana.ConfirmTimeoutSeconds = 60
	}

	if cfg.Jupiter.APIURL == "" {
		cfg.Jupiter.APIURL = "https://lite-api.jup.ag/swap/v1"
	}
	if cfg.Jupiter.TokenListURL == "" {
		cfg.Jupiter.TokenListURL = "https://token.jup.ag/strict"
	}
	if cfg.Jupiter.SlippageBps <= 0 {
		cfg.Jupiter.SlippageBps = 50
	}

	if cfg.Pricing.CoinGeckoURL == "" {
		cfg.Pricing.CoinGeckoURL = "https://api.coingecko.com/api/v3"
	}

	key, err := hex.DecodeString(strings.TrimSpace(cfg.Vault.EncryptionKey))
	if err != nil {
		return fmt.Errorf("vault.encryption_key must be hex-encoded: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("vault.encryption_key must decode to 32 bytes, got %d", len(key))
	}

	if cfg.Session.TTLMinutes <= 0 {
		cfg.Session.TTLMinutes = 15
	}

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(v))
		if kind == "" {
			continue
		}
		if _, ok := allowed[kind]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = kind
	}
	return nil
}

// EncryptionKey returns the decoded vault key. Normalize must have passed.
func (c *Config) EncryptionKey() []byte {
	key, _ := hex.DecodeString(strings.TrimSpace(c.Vault.EncryptionKey))
	return key
}
