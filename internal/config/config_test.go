package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:     AppConfig{Environment: "development"},
		Logger:  LoggerConfig{Level: "info"},
		Storage: StorageConfig{DataPath: "/var/lib/anineesan"},
		MAL:     MALConfig{BaseURL: "https://api.myanimelist.net/v2", SiteURL: "https://myanimelist.net"},
		AniList: AniListConfig{URL: "https://graphql.anilist.co"},
		Scrape:  ScrapeConfig{APIURLs: []string{"https://api.miruro.tv"}, SiteURL: "https://zoro.bid"},
		Stream:  StreamConfig{BaseURL: "https://api.consumet.org/anime/gogoanime"},
		Fetch: FetchConfig{
			AdapterTimeout: time.Second,
			Deadline:       2 * time.Second,
			Retries:        2,
			RatePerSecond:  1,
			Burst:          1,
		},
		Corpus:    CorpusConfig{MaxPages: 5},
		Recommend: RecommendConfig{Neighbors: 10},
	}
}

func noEnvFile(t *testing.T) string {
	t.Helper()
	return "-env-file=" + filepath.Join(t.TempDir(), "missing.env")
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown environment", func(c *Config) { c.App.Environment = "test" }},
		{"uppercase environment", func(c *Config) { c.App.Environment = "DEVELOPMENT" }},
		{"unknown log level", func(c *Config) { c.Logger.Level = "trace" }},
		{"empty data path", func(c *Config) { c.Storage.DataPath = "" }},
		{"bad anilist scheme", func(c *Config) { c.AniList.URL = "ftp://graphql.anilist.co" }},
		{"no scrape endpoints", func(c *Config) { c.Scrape.APIURLs = nil }},
		{"bad scrape endpoint", func(c *Config) { c.Scrape.APIURLs = []string{"https://ok.example", "::nope"} }},
		{"negative retries", func(c *Config) { c.Fetch.Retries = -1 }},
		{"zero deadline", func(c *Config) { c.Fetch.Deadline = 0 }},
		{"zero burst", func(c *Config) { c.Fetch.Burst = 0 }},
		{"zero pages", func(c *Config) { c.Corpus.MaxPages = 0 }},
		{"zero neighbors", func(c *Config) { c.Recommend.Neighbors = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("DATA_PATH", dataDir)

	cfg, err := LoadConfig([]string{noEnvFile(t)})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, dataDir, cfg.Storage.DataPath)
	assert.Equal(t, 2, cfg.Fetch.Retries)
	assert.Equal(t, 500*time.Millisecond, cfg.Fetch.RetryBackoff)
	assert.Equal(t, 8*time.Second, cfg.Fetch.Deadline)
	assert.Equal(t, 6*time.Hour, cfg.Corpus.TTL)
	assert.Equal(t, 5, cfg.Corpus.MaxPages)
	assert.Equal(t, 20, cfg.Fetch.SearchLimit)
	assert.Equal(t, []string{"https://api.miruro.tv"}, cfg.Scrape.APIURLs)
	assert.Equal(t, "gogocdn", cfg.Stream.Server)
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("CORPUS_TTL", "1h")

	cfg, err := LoadConfig([]string{noEnvFile(t), "-log-level=debug", "-corpus-ttl=30m"})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 30*time.Minute, cfg.Corpus.TTL)
}

func TestLoadConfig_ListValues(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("SCRAPE_API_URLS", " https://a.example , ,https://b.example")
	t.Setenv("RECOMMEND_SEED_QUERIES", "naruto,one piece")

	cfg, err := LoadConfig([]string{noEnvFile(t)})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Scrape.APIURLs)
	assert.Equal(t, []string{"naruto", "one piece"}, cfg.Recommend.SeedQueries)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("FETCH_DEADLINE", "soon")

	_, err := LoadConfig([]string{noEnvFile(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_DEADLINE")
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "# cache settings\nDATA_PATH=" + dir + "\nMAL_CLIENT_ID=\"from-file\"\nCORPUS_MAX_PAGES=3\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))

	// t.Setenv restores these after the test; loadEnvFile sets them through os.Setenv.
	t.Setenv("DATA_PATH", "")
	t.Setenv("MAL_CLIENT_ID", "")
	t.Setenv("CORPUS_MAX_PAGES", "")

	cfg, err := LoadConfig([]string{"-env-file=" + envPath})
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.MAL.ClientID)
	assert.Equal(t, 3, cfg.Corpus.MaxPages)
	assert.Equal(t, dir, cfg.Storage.DataPath)
}

func TestLoadEnvFile_InvalidLine(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("VALID=1\nnot a pair\n"), 0o600))
	t.Setenv("VALID", "")

	err := loadEnvFile(envPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/cache", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cache"), got)

	got, err = expandPath("", "/fallback")
	require.NoError(t, err)
	assert.Equal(t, "/fallback", got)
}
