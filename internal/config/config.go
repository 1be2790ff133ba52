// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for the query pipeline and HTTP API.
type Config struct {
	DBPath     string // path to the SQLite statistics file
	TableName  string // statistics table name (default "player_stats")
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// Completion service
	AnthropicAPIKey   string        // required for live completions
	ModelName         string        // Anthropic model identifier
	CompletionTimeout time.Duration // per-call deadline (default 60s)
	CompletionRetries int           // transient retry count (default 2)
	MaxTokens         int           // max completion tokens per call (default 1000)
	CompletionRPS     float64       // sustained completion calls per second (default 2)

	// Pipeline tunables
	SimilarityThreshold float64       // fuzzy match acceptance, 0..1 (default 0.75)
	GenerationAttempts  int           // total SQL generation attempts (default 2)
	QueryTimeout        time.Duration // per-query execution deadline (default 15s)
	RowCap              int           // maximum rows returned per query (default 50)

	// Catalog refresh schedule, cron syntax. Empty disables refresh.
	CatalogRefreshCron string

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
// The Anthropic key is optional at load time; the pipeline degrades to its
// deterministic extractors and renderers without it.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DBPath:             os.Getenv("DB_PATH"),
		TableName:          os.Getenv("TABLE_NAME"),
		ListenAddr:         os.Getenv("LISTEN_ADDR"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		Env:                os.Getenv("ENV"),
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		ModelName:          os.Getenv("ANTHROPIC_MODEL_NAME"),
		CatalogRefreshCron: os.Getenv("CATALOG_REFRESH_CRON"),
	}

	if v := os.Getenv("COMPLETION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CompletionTimeout = d
		}
	}
	if v := os.Getenv("COMPLETION_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CompletionRetries = n
		}
	}
	if v := os.Getenv("COMPLETION_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxTokens = n
		}
	}
	if v := os.Getenv("COMPLETION_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.CompletionRPS = f
		}
	}
	if v := os.Getenv("SIMILARITY_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 1 {
			return nil, fmt.Errorf("SIMILARITY_THRESHOLD must be in (0, 1], got %q", v)
		}
		cfg.SimilarityThreshold = f
	}
	if v := os.Getenv("GENERATION_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("GENERATION_ATTEMPTS must be a positive integer, got %q", v)
		}
		cfg.GenerationAttempts = n
	}
	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.QueryTimeout = d
		}
	}
	if v := os.Getenv("ROW_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RowCap = n
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	// Defaults
	if cfg.DBPath == "" {
		cfg.DBPath = "stats.sqlite"
	}
	if cfg.TableName == "" {
		cfg.TableName = "player_stats"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "claude-sonnet-4-5-20250929"
	}
	if cfg.CompletionTimeout == 0 {
		cfg.CompletionTimeout = 60 * time.Second
	}
	if cfg.CompletionRetries == 0 {
		cfg.CompletionRetries = 2
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.CompletionRPS == 0 {
		cfg.CompletionRPS = 2
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = 0.75
	}
	if cfg.GenerationAttempts == 0 {
		cfg.GenerationAttempts = 2
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 15 * time.Second
	}
	if cfg.RowCap == 0 {
		cfg.RowCap = 50
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if cfg.AnthropicAPIKey == "" {
		cfg.Warnings = append(cfg.Warnings, "ANTHROPIC_API_KEY not set, running with deterministic extractors only")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY must be set in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
