// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Storage   StorageConfig
	MAL       MALConfig
	AniList   AniListConfig
	Scrape    ScrapeConfig
	Stream    StreamConfig
	Fetch     FetchConfig
	Corpus    CorpusConfig
	Recommend RecommendConfig
	Metrics   MetricsConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json, text, pretty; empty picks by environment
}

// StorageConfig holds the on-disk cache location.
type StorageConfig struct {
	DataPath  string
	RecordTTL time.Duration // how long fetched-by-id records stay valid
}

// MALConfig holds MyAnimeList API configuration.
type MALConfig struct {
	BaseURL  string
	SiteURL  string // used for page scrapes (recommendations, details)
	ClientID string
}

// AniListConfig holds AniList GraphQL configuration.
type AniListConfig struct {
	URL string
}

// ScrapeConfig holds the scraped catalog configuration.
type ScrapeConfig struct {
	// APIURLs are tried in order for every page or search request.
	APIURLs []string
	SiteURL string
}

// StreamConfig holds the stream catalog configuration.
type StreamConfig struct {
	BaseURL string
	Server  string
}

// FetchConfig tunes how adapters talk to upstreams.
type FetchConfig struct {
	AdapterTimeout time.Duration
	Deadline       time.Duration // overall fan-out deadline per request
	Retries        int
	RetryBackoff   time.Duration
	RatePerSecond  float64
	Burst          int
	SearchLimit    int
}

// CorpusConfig controls the scraped corpus snapshot.
type CorpusConfig struct {
	TTL             time.Duration
	MaxPages        int
	RefreshInterval time.Duration
}

// RecommendConfig controls the recommendation index.
type RecommendConfig struct {
	Neighbors       int
	RebuildInterval time.Duration
	SeedQueries     []string
}

// MetricsConfig holds the optional prometheus listener.
type MetricsConfig struct {
	Addr string // empty disables the listener
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("anineesan", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, text, pretty)")
	dataPath := fs.String("data-path", "", "Directory for the cache database")
	malClientID := fs.String("mal-client-id", "", "MyAnimeList API client id")
	deadline := fs.String("fetch-deadline", "", "Overall fan-out deadline (default: 8s)")
	corpusTTL := fs.String("corpus-ttl", "", "Corpus snapshot time to live (default: 6h)")
	metricsAddr := fs.String("metrics-addr", "", "Prometheus listen address (empty disables)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Missing .env is fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "LOG_LEVEL", "info"),
			Format: getConfigValue(*logFormat, "LOG_FORMAT", ""),
		},
		Storage: StorageConfig{
			DataPath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		MAL: MALConfig{
			BaseURL:  getConfigValue("", "MAL_BASE_URL", "https://api.myanimelist.net/v2"),
			SiteURL:  getConfigValue("", "MAL_SITE_URL", "https://myanimelist.net"),
			ClientID: getConfigValue(*malClientID, "MAL_CLIENT_ID", ""),
		},
		AniList: AniListConfig{
			URL: getConfigValue("", "ANILIST_URL", "https://graphql.anilist.co"),
		},
		Scrape: ScrapeConfig{
			APIURLs: getListConfigValue("", "SCRAPE_API_URLS", []string{"https://api.miruro.tv"}),
			SiteURL: getConfigValue("", "SCRAPE_SITE_URL", "https://zoro.bid"),
		},
		Stream: StreamConfig{
			BaseURL: getConfigValue("", "STREAM_BASE_URL", "https://api.consumet.org/anime/gogoanime"),
			Server:  getConfigValue("", "STREAM_SERVER", "gogocdn"),
		},
		Fetch: FetchConfig{
			Retries:       getIntConfigValue("", "FETCH_RETRIES", 2),
			RatePerSecond: getFloatConfigValue("", "FETCH_RATE_PER_SECOND", 2),
			Burst:         getIntConfigValue("", "FETCH_BURST", 4),
			SearchLimit:   getIntConfigValue("", "FETCH_SEARCH_LIMIT", 20),
		},
		Corpus: CorpusConfig{
			MaxPages: getIntConfigValue("", "CORPUS_MAX_PAGES", 5),
		},
		Recommend: RecommendConfig{
			Neighbors:   getIntConfigValue("", "RECOMMEND_NEIGHBORS", 10),
			SeedQueries: getListConfigValue("", "RECOMMEND_SEED_QUERIES", nil),
		},
		Metrics: MetricsConfig{
			Addr: getConfigValue(*metricsAddr, "METRICS_ADDR", ""),
		},
	}

	durations := []struct {
		target   *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Storage.RecordTTL, "", "RECORD_TTL", "24h"},
		{&cfg.Fetch.AdapterTimeout, "", "FETCH_ADAPTER_TIMEOUT", "5s"},
		{&cfg.Fetch.Deadline, *deadline, "FETCH_DEADLINE", "8s"},
		{&cfg.Fetch.RetryBackoff, "", "FETCH_RETRY_BACKOFF", "500ms"},
		{&cfg.Corpus.TTL, *corpusTTL, "CORPUS_TTL", "6h"},
		{&cfg.Corpus.RefreshInterval, "", "CORPUS_REFRESH_INTERVAL", "5m"},
		{&cfg.Recommend.RebuildInterval, "", "RECOMMEND_REBUILD_INTERVAL", "1h"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.target = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	for name, raw := range map[string]string{
		"MAL_BASE_URL":    c.MAL.BaseURL,
		"MAL_SITE_URL":    c.MAL.SiteURL,
		"ANILIST_URL":     c.AniList.URL,
		"SCRAPE_SITE_URL": c.Scrape.SiteURL,
		"STREAM_BASE_URL": c.Stream.BaseURL,
	} {
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if len(c.Scrape.APIURLs) == 0 {
		return errors.New("SCRAPE_API_URLS needs at least one endpoint")
	}
	for _, raw := range c.Scrape.APIURLs {
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("SCRAPE_API_URLS: %w", err)
		}
	}

	if c.Fetch.Retries < 0 {
		return fmt.Errorf("FETCH_RETRIES must not be negative, got %d", c.Fetch.Retries)
	}
	if c.Fetch.AdapterTimeout <= 0 || c.Fetch.Deadline <= 0 {
		return errors.New("fetch timeouts must be positive")
	}
	if c.Fetch.RatePerSecond <= 0 || c.Fetch.Burst < 1 {
		return errors.New("FETCH_RATE_PER_SECOND must be positive and FETCH_BURST at least 1")
	}
	if c.Corpus.MaxPages < 1 {
		return fmt.Errorf("CORPUS_MAX_PAGES must be at least 1, got %d", c.Corpus.MaxPages)
	}
	if c.Recommend.Neighbors < 1 {
		return fmt.Errorf("RECOMMEND_NEIGHBORS must be at least 1, got %d", c.Recommend.Neighbors)
	}

	// An empty MAL client id is allowed; the primary adapter is then skipped.

	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme in %q", raw)
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, ".anineesan", "data")

	expanded, err := expandPath(c.Storage.DataPath, defaultPath)
	if err != nil {
		return err
	}
	c.Storage.DataPath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// getListConfigValue splits a comma separated value, dropping blanks.
func getListConfigValue(flagValue, envKey string, defaultValue []string) []string {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var out []string
	for part := range strings.SplitSeq(strValue, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Real environment variables win over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
