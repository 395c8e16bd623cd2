package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/edgecomet/ssr-gateway/internal/common/configtypes"
	"github.com/edgecomet/ssr-gateway/pkg/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ssr-server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	t.Setenv(EnvProjectID, "")
	os.Unsetenv(EnvProjectID)

	path := writeConfig(t, `
server:
  listen: ":8080"
  timeout: 20s
  client_ip_headers: ["X-Real-IP", "X-Forwarded-For"]

graphql:
  host: "graph.cool"
  namespace: "simple"
  project_id: "cj0abc"
  timeout: 5s

cache:
  max_entries: 250
  max_age: 2h
  shared:
    enabled: true
    redis:
      addr: "localhost:6379"
      db: 2
    compression: lz4

render:
  timeout: 15s
  coalesce: true

internal:
  auth_key: "secret"

log:
  level: "debug"
  console:
    enabled: true
    format: "json"

metrics:
  enabled: true
  listen: ":9090"
  path: "/metrics"
  namespace: "ssr"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, 20*time.Second, cfg.Server.Timeout.ToDuration())
	assert.Equal(t, []string{"X-Real-IP", "X-Forwarded-For"}, cfg.Server.ClientIPHeaders)
	assert.Equal(t, "cj0abc", cfg.GraphQL.ProjectID)
	assert.Equal(t, 5*time.Second, cfg.GraphQL.Timeout.ToDuration())
	assert.Equal(t, 250, cfg.Cache.MaxEntries)
	assert.Equal(t, 2*time.Hour, cfg.Cache.MaxAge.ToDuration())
	assert.True(t, cfg.Cache.Shared.Enabled)
	assert.Equal(t, 2, cfg.Cache.Shared.Redis.DB)
	assert.Equal(t, types.CompressionLZ4, cfg.Cache.Shared.Compression)
	assert.Equal(t, DefaultSharedKeyPrefix, cfg.Cache.Shared.KeyPrefix)
	assert.Equal(t, 15*time.Second, cfg.Render.Timeout.ToDuration())
	assert.True(t, cfg.Render.Coalesce)
	assert.Equal(t, "secret", cfg.Internal.AuthKey)
}

func TestParse_EmptyConfigUsesDefaults(t *testing.T) {
	os.Unsetenv(EnvProjectID)
	os.Unsetenv(EnvListen)

	cfg, err := Parse([]byte(""))
	require.NoError(t, err)

	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.Equal(t, DefaultGraphQLHost, cfg.GraphQL.Host)
	assert.Equal(t, DefaultGraphQLNamespace, cfg.GraphQL.Namespace)
	assert.Empty(t, cfg.GraphQL.ProjectID)
	assert.Equal(t, DefaultMaxEntries, cfg.Cache.MaxEntries)
	assert.Equal(t, DefaultMaxAge, cfg.Cache.MaxAge.ToDuration())
	assert.False(t, cfg.Cache.Shared.Enabled)
	assert.Equal(t, types.CompressionSnappy, cfg.Cache.Shared.Compression)
	assert.Zero(t, cfg.Render.Timeout)
	assert.False(t, cfg.Render.Coalesce)
	assert.Equal(t, DefaultBundleURL, cfg.Render.BundleURL)
	assert.True(t, cfg.Log.Console.Enabled)
	assert.Equal(t, configtypes.LogFormatConsole, cfg.Log.Console.Format)
	assert.Equal(t, configtypes.LogLevelInfo, cfg.Log.Level)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
}

func TestParse_EnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvProjectID, "from-env")
	t.Setenv(EnvListen, ":4000")

	cfg, err := Parse([]byte(`
server:
  listen: ":8080"
graphql:
  project_id: "from-file"
`))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.GraphQL.ProjectID)
	assert.Equal(t, ":4000", cfg.Server.Listen)
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	_, err := Parse([]byte(`
cache:
  max_entrys: 10
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown configuration field")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		errContains string
	}{
		{
			name:        "invalid listen",
			yaml:        "server:\n  listen: \"not-a-port\"\n",
			errContains: "server.listen",
		},
		{
			name:        "negative capacity",
			yaml:        "cache:\n  max_entries: -1\n",
			errContains: "cache.max_entries",
		},
		{
			name:        "unknown compression",
			yaml:        "cache:\n  shared:\n    compression: gzip\n",
			errContains: "cache.shared.compression",
		},
		{
			name:        "shared cache without redis address",
			yaml:        "cache:\n  shared:\n    enabled: true\n",
			errContains: "cache.shared.redis.addr",
		},
		{
			name:        "unknown log level",
			yaml:        "log:\n  level: verbose\n",
			errContains: "log.level",
		},
		{
			name:        "file logging without path",
			yaml:        "log:\n  file:\n    enabled: true\n",
			errContains: "log.file.path",
		},
		{
			name:        "metrics on server port",
			yaml:        "server:\n  listen: \":3000\"\nmetrics:\n  enabled: true\n  listen: \":3000\"\n",
			errContains: "metrics.listen must differ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv(EnvListen)
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestNewManager(t *testing.T) {
	os.Unsetenv(EnvProjectID)
	path := writeConfig(t, "graphql:\n  project_id: \"abc\"\n")

	cm, err := NewManager(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "abc", cm.GetConfig().GraphQL.ProjectID)
}

func TestNewManager_MissingFile(t *testing.T) {
	_, err := NewManager(filepath.Join(t.TempDir(), "missing.yaml"), zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestWarnings(t *testing.T) {
	os.Unsetenv(EnvProjectID)

	cfg, err := Parse([]byte(""))
	require.NoError(t, err)
	warnings := Warnings(cfg)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "graphql.project_id")
	assert.Contains(t, warnings[1], "internal.auth_key")

	cfg, err = Parse([]byte("graphql:\n  project_id: p1\ninternal:\n  auth_key: k\n"))
	require.NoError(t, err)
	assert.Empty(t, Warnings(cfg))
}
