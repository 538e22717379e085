package typename

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/typeresolve/typeresolve/schemacache"
	"github.com/typeresolve/typeresolve/schemaregistry"
)

// Pipeline is a fully wired resolution stack built from configuration: an
// HTTP registry client, a coalescing schema cache (optionally persisted to
// SQLite), and a name-memoizing resolver on top.
type Pipeline struct {
	// Resolver is the entry point for resolutions.
	Resolver NameResolver

	store *schemacache.SQLiteStore
}

// NewPipeline assembles a Pipeline from config. The logger and metrics are
// shared across all layers; pass zerolog.Nop() and nil to run silent and
// unobserved. Extra resolver options are applied after the config-derived
// ones.
func NewPipeline(cfg *schemaregistry.Config, logger zerolog.Logger, metrics *schemaregistry.Metrics, opts ...Option) (*Pipeline, error) {
	httpClient, err := schemaregistry.NewClientFromConfig(cfg,
		schemaregistry.WithLogger(logger),
		schemaregistry.WithMetrics(metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("build registry client: %w", err)
	}

	p := &Pipeline{}
	cachingOpts := []schemaregistry.CachingOption{
		schemaregistry.WithCacheLogger(logger),
		schemaregistry.WithCacheMetrics(metrics),
	}
	if cfg.Cache.Store == "sqlite" {
		store, err := schemacache.OpenSQLite(cfg.Cache.DSN)
		if err != nil {
			return nil, fmt.Errorf("open schema store: %w", err)
		}
		p.store = store
		cachingOpts = append(cachingOpts, schemaregistry.WithStore(store))
	}
	client := schemaregistry.NewCachingClient(httpClient, cachingOpts...)

	resolverOpts := []Option{
		WithSubject(cfg.Registry.Subject),
		WithLogger(logger),
		WithMetrics(metrics),
	}
	p.Resolver = NewCachingResolver(New(client, append(resolverOpts, opts...)...))
	return p, nil
}

// Close releases the pipeline's resources. It is safe to call on a pipeline
// without a persistent store.
func (p *Pipeline) Close() error {
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}
