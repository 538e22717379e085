package schemaregistry_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/typeresolve/typeresolve/internal/registrytest"
	"github.com/typeresolve/typeresolve/schemaregistry"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("REGISTRY_PASSWORD", "hunter2")

	path := writeConfigFile(t, `
registry:
  url: "https://registry.example.com"
  subject: "orders-value"
  username: "svc-typeresolve"
  password: "${REGISTRY_PASSWORD}"
  timeout: 5s
  max_parallel: 4
  max_schema_size: 1048576

cache:
  store: sqlite
  dsn: "schemas.db"

logging:
  level: debug
  format: console
`)

	cfg, err := schemaregistry.LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "https://registry.example.com", cfg.Registry.URL)
	require.Equal(t, "orders-value", cfg.Registry.Subject)
	require.Equal(t, "svc-typeresolve", cfg.Registry.Username)
	require.Equal(t, "hunter2", cfg.Registry.Password)
	require.Equal(t, 5*time.Second, cfg.Registry.Timeout)
	require.Equal(t, 4, cfg.Registry.MaxParallel)
	require.Equal(t, 1048576, cfg.Registry.MaxSchemaSize)
	require.Equal(t, "sqlite", cfg.Cache.Store)
	require.Equal(t, "schemas.db", cfg.Cache.DSN)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfigFile(t, `
registry:
  url: "http://localhost:8081"
`)

	cfg, err := schemaregistry.LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 30*time.Second, cfg.Registry.Timeout)
	require.Equal(t, 8, cfg.Registry.MaxParallel)
	require.Equal(t, 8<<20, cfg.Registry.MaxSchemaSize)
	require.Equal(t, "memory", cfg.Cache.Store)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TYPERESOLVE_REGISTRY_URL", "http://override:8081")
	t.Setenv("TYPERESOLVE_REGISTRY_MAX_PARALLEL", "32")

	path := writeConfigFile(t, `
registry:
  url: "http://file:8081"
  max_parallel: 4
`)

	cfg, err := schemaregistry.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "http://override:8081", cfg.Registry.URL)
	require.Equal(t, 32, cfg.Registry.MaxParallel)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := schemaregistry.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing url",
			content: "registry: {}\n",
		},
		{
			name: "unknown cache store",
			content: `
registry:
  url: "http://localhost:8081"
cache:
  store: redis
`,
		},
		{
			name: "sqlite without dsn",
			content: `
registry:
  url: "http://localhost:8081"
cache:
  store: sqlite
`,
		},
		{
			name: "negative max_parallel",
			content: `
registry:
  url: "http://localhost:8081"
  max_parallel: -1
`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfigFile(t, tc.content)
			_, err := schemaregistry.LoadConfig(path)
			require.Error(t, err)
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("TYPERESOLVE_REGISTRY_URL", "http://env:8081")
	t.Setenv("TYPERESOLVE_REGISTRY_SUBJECT", "payments-value")
	t.Setenv("TYPERESOLVE_REGISTRY_TIMEOUT", "10s")
	t.Setenv("TYPERESOLVE_CACHE_STORE", "sqlite")
	t.Setenv("TYPERESOLVE_CACHE_DSN", "env.db")

	cfg, err := schemaregistry.LoadConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, "http://env:8081", cfg.Registry.URL)
	require.Equal(t, "payments-value", cfg.Registry.Subject)
	require.Equal(t, 10*time.Second, cfg.Registry.Timeout)
	require.Equal(t, "sqlite", cfg.Cache.Store)
	require.Equal(t, "env.db", cfg.Cache.DSN)
}

func TestLoadConfigWithFallback(t *testing.T) {
	t.Run("file wins when present", func(t *testing.T) {
		t.Setenv("TYPERESOLVE_REGISTRY_URL", "")
		path := writeConfigFile(t, "registry:\n  url: \"http://file:8081\"\n")
		cfg, err := schemaregistry.LoadConfigWithFallback(path)
		require.NoError(t, err)
		require.Equal(t, "http://file:8081", cfg.Registry.URL)
	})

	t.Run("env fallback", func(t *testing.T) {
		t.Setenv("TYPERESOLVE_REGISTRY_URL", "http://env:8081")
		cfg, err := schemaregistry.LoadConfigWithFallback(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		require.Equal(t, "http://env:8081", cfg.Registry.URL)
	})

	t.Run("nothing available", func(t *testing.T) {
		t.Setenv("TYPERESOLVE_REGISTRY_URL", "")
		_, err := schemaregistry.LoadConfigWithFallback(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}

func TestNewClientFromConfig(t *testing.T) {
	registry := registrytest.New()
	defer registry.Close()
	registry.Register(schemaregistry.Schema{ID: 1, Type: schemaregistry.TypeProtobuf, Schema: testProtoSchema})

	cfg := &schemaregistry.Config{
		Registry: schemaregistry.RegistryConfig{
			URL:      registry.URL(),
			Username: "svc",
			Password: "pass",
		},
	}

	client, err := schemaregistry.NewClientFromConfig(cfg)
	require.NoError(t, err)

	_, err = client.SchemaByID(context.Background(), 1, "")
	require.NoError(t, err)
	require.Contains(t, registry.LastHeader().Get("Authorization"), "Basic ")
}

func TestNewLogger(t *testing.T) {
	logger := schemaregistry.NewLogger(schemaregistry.LoggingConfig{Level: "debug", Format: "json"})
	require.Equal(t, zerolog.DebugLevel, logger.GetLevel())

	logger = schemaregistry.NewLogger(schemaregistry.LoggingConfig{Level: "bogus"})
	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	logger = schemaregistry.NewLogger(schemaregistry.LoggingConfig{Level: "warn", Format: "console"})
	require.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}
