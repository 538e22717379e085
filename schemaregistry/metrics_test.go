package schemaregistry_test

import (
	"context"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/typeresolve/typeresolve/internal/registrytest"
	"github.com/typeresolve/typeresolve/schemaregistry"
)

func TestMetrics_FetchOutcomes(t *testing.T) {
	m := schemaregistry.NewMetricsWithRegistry(prometheus.NewRegistry())

	registry := registrytest.New()
	defer registry.Close()
	registry.Register(schemaregistry.Schema{ID: 1, Type: schemaregistry.TypeProtobuf, Schema: testProtoSchema})

	httpClient, err := schemaregistry.NewHTTPClient(registry.URL(), schemaregistry.WithMetrics(m))
	require.NoError(t, err)
	client := schemaregistry.NewCachingClient(httpClient, schemaregistry.WithCacheMetrics(m))

	_, err = client.SchemaByID(context.Background(), 1, "")
	require.NoError(t, err)
	_, err = client.SchemaByID(context.Background(), 1, "")
	require.NoError(t, err)
	_, err = client.SchemaByID(context.Background(), 999, "")
	require.ErrorIs(t, err, schemaregistry.ErrSchemaNotFound)

	require.Equal(t, float64(1), testutil.ToFloat64(m.FetchesTotal.WithLabelValues("ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.FetchesTotal.WithLabelValues("not_found")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.CacheHits))
	require.Equal(t, float64(2), testutil.ToFloat64(m.CacheMisses))
}

func TestMetrics_UnavailableOutcome(t *testing.T) {
	m := schemaregistry.NewMetricsWithRegistry(prometheus.NewRegistry())

	registry := registrytest.New()
	defer registry.Close()
	registry.SetUnavailable(true)

	client, err := schemaregistry.NewHTTPClient(registry.URL(), schemaregistry.WithMetrics(m))
	require.NoError(t, err)

	_, err = client.SchemaByID(context.Background(), 1, "")
	require.ErrorIs(t, err, schemaregistry.ErrRegistryUnavailable)
	require.Equal(t, float64(1), testutil.ToFloat64(m.FetchesTotal.WithLabelValues("unavailable")))
}

func TestMetrics_ObserveResolution(t *testing.T) {
	m := schemaregistry.NewMetricsWithRegistry(prometheus.NewRegistry())

	m.ObserveResolution("protobuf", "ok")
	m.ObserveResolution("protobuf", "ok")
	m.ObserveResolution("avro", "error")

	require.Equal(t, float64(2), testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("protobuf", "ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("avro", "error")))
}

func TestMetrics_ConfigReloads(t *testing.T) {
	m := schemaregistry.NewMetricsWithRegistry(prometheus.NewRegistry())

	path := writeConfigFile(t, holderConfig("orders-value"))
	h, err := schemaregistry.NewConfigHolder(path, zerolog.Nop())
	require.NoError(t, err)
	defer h.Stop()
	h.SetMetrics(m)

	require.NoError(t, h.Reload())
	require.Equal(t, float64(1), testutil.ToFloat64(m.ConfigReloads))

	require.NoError(t, os.WriteFile(path, []byte("registry: {}\n"), 0o644))
	require.Error(t, h.Reload())
	require.Equal(t, float64(1), testutil.ToFloat64(m.ConfigReloadErrors))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *schemaregistry.Metrics
	require.NotPanics(t, func() {
		m.ObserveResolution("protobuf", "ok")
	})
}
