package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
crawler:
  seeds: ["https://example.com"]
  allowed_domains: ["example.com"]
  max_depth: 3
  workers: 8
  batch_size: 16
  default_lang: en
  lang_rules:
    ".ca/fr": fr
frontier:
  backend: sqlite
  db_path: /tmp/frontier.db
fetch:
  mode: static+promote
  user_agent: harvester-test
  timeout_seconds: 30
  render_wait_ms: 250
  max_concurrent_renders: 3
  domain_qps: 1.5
chunking:
  target_tokens: 256
  encoding: cl100k_base
sink:
  mode: fs
  dir: /tmp/harvest
pubsub:
  enabled: true
  project_id: proj
  topic_name: chunk-events
api:
  enabled: true
  port: 9090
logging:
  development: false
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, []string{"https://example.com"}, cfg.Crawler.Seeds)
	require.Equal(t, 3, cfg.Crawler.MaxDepth)
	require.Equal(t, 8, cfg.Crawler.Workers)
	require.Equal(t, "fr", cfg.Crawler.LangRules[".ca/fr"])
	require.Equal(t, "sqlite", cfg.Frontier.Backend)
	require.Equal(t, "static+promote", cfg.Fetch.Mode)
	require.Equal(t, 30*time.Second, cfg.FetchTimeout())
	require.Equal(t, 250*time.Millisecond, cfg.RenderWait())
	require.Equal(t, 256, cfg.Chunking.TargetTokens)
	require.True(t, cfg.PubSub.Enabled)
	require.Equal(t, 9090, cfg.API.Port)
	require.False(t, cfg.Logging.Development)
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 1, cfg.Crawler.MaxDepth)
	require.Equal(t, 4, cfg.Crawler.Workers)
	require.Equal(t, "file", cfg.Frontier.Backend)
	require.Equal(t, "static", cfg.Fetch.Mode)
	require.Equal(t, 512, cfg.Chunking.TargetTokens)
	require.Equal(t, "cl100k_base", cfg.Chunking.Encoding)
	require.Equal(t, "fs", cfg.Sink.Mode)
	require.False(t, cfg.PubSub.Enabled)
}

func TestLoadFindsDefaultFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	configYAML := `
crawler:
  workers: 9
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "harvester.yaml"), []byte(configYAML), 0o600))
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 9, cfg.Crawler.Workers)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "negative depth",
			mutate:  func(c *Config) { c.Crawler.MaxDepth = -1 },
			wantErr: "max_depth",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Crawler.Workers = 0 },
			wantErr: "workers",
		},
		{
			name:    "unknown frontier backend",
			mutate:  func(c *Config) { c.Frontier.Backend = "redis" },
			wantErr: "frontier.backend",
		},
		{
			name:    "unknown fetch mode",
			mutate:  func(c *Config) { c.Fetch.Mode = "carrier-pigeon" },
			wantErr: "fetch.mode",
		},
		{
			name:    "cached mode without dir",
			mutate:  func(c *Config) { c.Fetch.Mode = "cached"; c.Fetch.CacheDir = "" },
			wantErr: "cache_dir",
		},
		{
			name:    "postgres sink without dsn",
			mutate:  func(c *Config) { c.Sink.Mode = "postgres" },
			wantErr: "postgres_dsn",
		},
		{
			name:    "pubsub without project",
			mutate:  func(c *Config) { c.PubSub.Enabled = true; c.PubSub.TopicName = "t" },
			wantErr: "project_id",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := Load("")
			require.NoError(t, err)
			tc.mutate(&cfg)

			err = cfg.Validate()
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tc.wantErr), "error %q should mention %q", err, tc.wantErr)
		})
	}
}
