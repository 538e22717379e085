package schemaregistry_test

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/typeresolve/typeresolve/schemaregistry"
)

func holderConfig(subject string) string {
	return `
registry:
  url: "http://localhost:8081"
  subject: "` + subject + `"
`
}

func TestConfigHolder_Get(t *testing.T) {
	path := writeConfigFile(t, holderConfig("orders-value"))

	h, err := schemaregistry.NewConfigHolder(path, zerolog.Nop())
	require.NoError(t, err)
	defer h.Stop()

	cfg := h.Get()
	require.NotNil(t, cfg)
	require.Equal(t, "http://localhost:8081", cfg.Registry.URL)
	require.Equal(t, "orders-value", cfg.Registry.Subject)
}

func TestConfigHolder_Reload(t *testing.T) {
	path := writeConfigFile(t, holderConfig("orders-value"))

	h, err := schemaregistry.NewConfigHolder(path, zerolog.Nop())
	require.NoError(t, err)
	defer h.Stop()

	require.NoError(t, os.WriteFile(path, []byte(holderConfig("payments-value")), 0o644))
	require.NoError(t, h.Reload())

	require.Equal(t, "payments-value", h.Get().Registry.Subject)
}

func TestConfigHolder_ReloadInvalidKeepsOld(t *testing.T) {
	path := writeConfigFile(t, holderConfig("orders-value"))

	h, err := schemaregistry.NewConfigHolder(path, zerolog.Nop())
	require.NoError(t, err)
	defer h.Stop()

	// missing required registry.url
	require.NoError(t, os.WriteFile(path, []byte("registry: {}\n"), 0o644))
	require.Error(t, h.Reload())

	require.Equal(t, "orders-value", h.Get().Registry.Subject)
}

func TestConfigHolder_OnChange(t *testing.T) {
	path := writeConfigFile(t, holderConfig("orders-value"))

	h, err := schemaregistry.NewConfigHolder(path, zerolog.Nop())
	require.NoError(t, err)
	defer h.Stop()

	var mu sync.Mutex
	var received *schemaregistry.Config
	h.OnChange(func(cfg *schemaregistry.Config) {
		mu.Lock()
		received = cfg
		mu.Unlock()
	})

	require.NoError(t, os.WriteFile(path, []byte(holderConfig("payments-value")), 0o644))
	require.NoError(t, h.Reload())

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, received)
	require.Equal(t, "payments-value", received.Registry.Subject)
}

func TestConfigHolder_WatchFile(t *testing.T) {
	path := writeConfigFile(t, holderConfig("orders-value"))

	h, err := schemaregistry.NewConfigHolder(path, zerolog.Nop())
	require.NoError(t, err)
	defer h.Stop()

	require.NoError(t, h.WatchFile())

	require.NoError(t, os.WriteFile(path, []byte(holderConfig("payments-value")), 0o644))

	require.Eventually(t, func() bool {
		return h.Get().Registry.Subject == "payments-value"
	}, 5*time.Second, 10*time.Millisecond, "file watcher did not trigger reload")
}

func TestConfigHolder_ConcurrentAccess(t *testing.T) {
	path := writeConfigFile(t, holderConfig("orders-value"))

	h, err := schemaregistry.NewConfigHolder(path, zerolog.Nop())
	require.NoError(t, err)
	defer h.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				require.NotNil(t, h.Get())
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Reload()
		}()
	}
	wg.Wait()
}

func TestReloadableFields(t *testing.T) {
	require.Contains(t, schemaregistry.ReloadableFields(), "registry.subject")
	require.Contains(t, schemaregistry.NonReloadableFields(), "registry.url")
}
