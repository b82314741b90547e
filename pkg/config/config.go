// Package config loads pocketledger settings from an optional .env file, an
// optional JSON config file and the environment, in that order of precedence
// from lowest to highest.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	kJson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default paths of the Google OAuth credentials and the token saved by setup.
const (
	ClientSecretFile = "data/client_secret.json"
	TokenFile        = "data/token.json"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds the application configuration.
type Config struct {
	// Addr is the HTTP listen address.
	// Environment variable: POCKETLEDGER_ADDR
	Addr string `koanf:"POCKETLEDGER_ADDR"`

	// Store selects the persistence backend: postgres or memory.
	// Environment variable: POCKETLEDGER_STORE
	Store string `koanf:"POCKETLEDGER_STORE"`

	// Environment variable: SESSION_SECRET
	SessionSecret string `koanf:"SESSION_SECRET"`

	// SessionAudience is checked against the token's aud claim when set.
	// Environment variable: SESSION_AUDIENCE
	SessionAudience string `koanf:"SESSION_AUDIENCE"`

	// Environment variables: RATE_LIMIT_RPS, RATE_LIMIT_BURST
	RateLimitRPS   float64 `koanf:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `koanf:"RATE_LIMIT_BURST"`

	// LookupTTL is how long known accounts and categories are cached per user.
	// Environment variable: LOOKUP_TTL
	LookupTTL time.Duration `koanf:"LOOKUP_TTL"`

	// KeywordRulesFile replaces the built-in keyword classifier vocabulary.
	// Environment variable: KEYWORD_RULES_FILE
	KeywordRulesFile string `koanf:"KEYWORD_RULES_FILE"`

	// Currency and Locale control amount formatting in summaries.
	// Environment variables: POCKETLEDGER_CURRENCY, POCKETLEDGER_LOCALE
	Currency string `koanf:"POCKETLEDGER_CURRENCY"`
	Locale   string `koanf:"POCKETLEDGER_LOCALE"`

	// ExportWriter is the name of the writer plugin used by the export daemon.
	// Environment variable: EXPORT_WRITER
	ExportWriter string `koanf:"EXPORT_WRITER"`

	// ExportWriterConfig is the JSON configuration for the writer plugin.
	// Environment variable: EXPORT_WRITER_CONFIG
	ExportWriterConfig json.RawMessage `koanf:"EXPORT_WRITER_CONFIG"`

	// ExportInterval is how often the daemon polls for unexported records.
	// Environment variable: EXPORT_INTERVAL
	ExportInterval time.Duration `koanf:"EXPORT_INTERVAL"`

	// Google OAuth files used by the sheets writer and the setup command.
	// Environment variables: GOOGLE_CLIENT_SECRET_FILE, GOOGLE_TOKEN_FILE
	GoogleClientSecretFile string `koanf:"GOOGLE_CLIENT_SECRET_FILE"`
	GoogleTokenFile        string `koanf:"GOOGLE_TOKEN_FILE"`

	// Environment variables: LOG_LEVEL, LOG_JSON
	LogLevel string `koanf:"LOG_LEVEL"`
	LogJSON  bool   `koanf:"LOG_JSON"`

	Postgres `koanf:",squash"`
}

// Postgres holds PostgreSQL connection configuration.
type Postgres struct {
	Host        string `koanf:"POSTGRES_HOST"`
	Port        int    `koanf:"POSTGRES_PORT"`
	Database    string `koanf:"POSTGRES_DB"`
	User        string `koanf:"POSTGRES_USER"`
	Password    string `koanf:"POSTGRES_PASSWORD"`
	SSLMode     string `koanf:"POSTGRES_SSLMODE"`
	MaxPoolSize int    `koanf:"POSTGRES_MAX_POOL_SIZE"`
}

// Defaults.
const (
	DefaultAddr           = ":8080"
	DefaultRateLimitRPS   = 10
	DefaultRateLimitBurst = 20
	DefaultLookupTTL      = 5 * time.Minute
	DefaultExportWriter   = "csv"
	DefaultExportInterval = time.Minute
	DefaultCurrency       = "USD"
	DefaultLocale         = "en"
)

// Options says where Load looks for its optional files.
type Options struct {
	// EnvFile is a dotenv file loaded into the process environment.
	// Defaults to ".env".
	EnvFile string
	// ConfigFile is a JSON document with the same keys as the environment.
	// Defaults to "config.json".
	ConfigFile string
}

// Load reads the configuration. Missing files are skipped.
func Load(opts Options) (Config, error) {
	if opts.EnvFile == "" {
		opts.EnvFile = ".env"
	}
	if opts.ConfigFile == "" {
		opts.ConfigFile = "config.json"
	}

	if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading env file: %w", err)
	}

	k := koanf.New(".")
	if _, err := os.Stat(opts.ConfigFile); err == nil {
		if err := k.Load(file.Provider(opts.ConfigFile), kJson.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading config file: %w", err)
		}
	}
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	if c.Store == "" {
		c.Store = StorePostgres
	}
	if c.RateLimitRPS <= 0 {
		c.RateLimitRPS = DefaultRateLimitRPS
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = DefaultRateLimitBurst
	}
	if c.LookupTTL <= 0 {
		c.LookupTTL = DefaultLookupTTL
	}
	if c.ExportWriter == "" {
		c.ExportWriter = DefaultExportWriter
	}
	if c.ExportInterval <= 0 {
		c.ExportInterval = DefaultExportInterval
	}
	if c.GoogleClientSecretFile == "" {
		c.GoogleClientSecretFile = ClientSecretFile
	}
	if c.GoogleTokenFile == "" {
		c.GoogleTokenFile = TokenFile
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	if c.Locale == "" {
		c.Locale = DefaultLocale
	}
}

// Validate checks settings that cannot be defaulted.
func (c Config) Validate() error {
	switch c.Store {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("POCKETLEDGER_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}
	if len(c.ExportWriterConfig) > 0 && !json.Valid(c.ExportWriterConfig) {
		return errors.New("EXPORT_WRITER_CONFIG is not valid JSON")
	}
	return nil
}
