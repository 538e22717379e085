package schemaregistry

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ConfigHolder provides thread-safe access to configuration with hot reload
// support. Reloads can be triggered by file changes (WatchFile), SIGHUP
// (WatchSignals), or explicitly (Reload).
type ConfigHolder struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	logger   zerolog.Logger
	metrics  *Metrics
	watcher  *fsnotify.Watcher
	onChange []func(*Config)
	stopCh   chan struct{}
}

// NewConfigHolder creates a config holder and loads the initial
// configuration from path.
func NewConfigHolder(path string, logger zerolog.Logger) (*ConfigHolder, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	h := &ConfigHolder{
		config: cfg,
		path:   absPath,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	return h, nil
}

// SetMetrics attaches a metrics collector for reload counts. Call it before
// WatchFile or WatchSignals.
func (h *ConfigHolder) SetMetrics(metrics *Metrics) {
	h.metrics = metrics
}

// Get returns the current configuration (thread-safe).
func (h *ConfigHolder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Reload reloads the configuration from disk.
// Returns error if loading fails (keeps old config).
func (h *ConfigHolder) Reload() error {
	h.logger.Info().Str("path", h.path).Msg("reloading configuration")

	newCfg, err := LoadConfig(h.path)
	h.metrics.observeReload(err)
	if err != nil {
		h.logger.Error().Err(err).Msg("config reload failed, keeping old config")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.config
	h.config = newCfg
	listeners := h.onChange
	h.mu.Unlock()

	// Log what changed
	h.logChanges(oldCfg, newCfg)

	// Notify listeners
	for _, fn := range listeners {
		fn(newCfg)
	}

	h.logger.Info().Msg("configuration reloaded successfully")
	return nil
}

// OnChange registers a callback to be called when config changes.
func (h *ConfigHolder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// WatchFile starts watching the config file for changes.
// Changes trigger automatic reload.
func (h *ConfigHolder) WatchFile() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	// Watch the directory (more reliable for editors that do atomic saves)
	dir := filepath.Dir(h.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go h.watchLoop()

	h.logger.Info().Str("path", h.path).Msg("watching config file for changes")
	return nil
}

// WatchSignals starts listening for SIGHUP to trigger reload.
func (h *ConfigHolder) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				h.logger.Info().Msg("received SIGHUP, reloading config")
				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-h.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	h.logger.Info().Msg("listening for SIGHUP to reload config")
}

// Stop stops watching for file changes and signals.
func (h *ConfigHolder) Stop() {
	close(h.stopCh)
	if h.watcher != nil {
		h.watcher.Close()
	}
}

func (h *ConfigHolder) watchLoop() {
	filename := filepath.Base(h.path)

	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}

			// Only react to our config file
			if filepath.Base(event.Name) != filename {
				continue
			}

			// React to write or create (atomic save = create)
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				h.logger.Debug().
					Str("event", event.Op.String()).
					Str("file", event.Name).
					Msg("config file changed")

				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("file watch reload failed")
				}
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("file watcher error")

		case <-h.stopCh:
			return
		}
	}
}

func (h *ConfigHolder) logChanges(old, new *Config) {
	if old.Registry.URL != new.Registry.URL {
		h.logger.Info().
			Str("old", old.Registry.URL).
			Str("new", new.Registry.URL).
			Msg("registry URL changed")
	}

	if old.Registry.Subject != new.Registry.Subject {
		h.logger.Info().
			Str("old", old.Registry.Subject).
			Str("new", new.Registry.Subject).
			Msg("subject hint changed")
	}

	credentialsChanged := old.Registry.Username != new.Registry.Username ||
		old.Registry.Password != new.Registry.Password ||
		old.Registry.BearerToken != new.Registry.BearerToken
	if credentialsChanged {
		// Never log credential values
		h.logger.Info().Msg("registry credentials changed")
	}

	if old.Cache.Store != new.Cache.Store {
		h.logger.Info().
			Str("old", old.Cache.Store).
			Str("new", new.Cache.Store).
			Msg("cache store changed")
	}

	if old.Logging.Level != new.Logging.Level {
		h.logger.Info().
			Str("old", old.Logging.Level).
			Str("new", new.Logging.Level).
			Msg("log level changed")
	}
}

// ReloadableFields returns which fields can be changed without rebuilding
// the client and resolver.
func ReloadableFields() []string {
	return []string{
		"registry.subject",
		"logging.level",
		"logging.format",
	}
}

// NonReloadableFields returns which fields require rebuilding the pipeline.
// OnChange callbacks are the place to do that.
func NonReloadableFields() []string {
	return []string{
		"registry.url",
		"registry.username",
		"registry.password",
		"registry.bearer_token",
		"cache.store",
		"cache.dsn",
	}
}
