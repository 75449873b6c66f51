package config

import (
	"fmt"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/douban-harvester/internal/douban"
)

// Watcher re-reads the config file when it changes and pushes the session
// settings to subscribers. It implements douban.SettingsSource.
type Watcher struct {
	v      *viper.Viper
	logger *zap.Logger

	mu        sync.RWMutex
	cfg       Config
	listeners []func(douban.Settings)
	started   bool
}

// NewWatcher loads path and prepares a watcher for it.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	v, cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{v: v, logger: logger, cfg: cfg}, nil
}

// SetLogger replaces the logger. Build loads the file before a logger exists,
// so the watcher starts out silent.
func (w *Watcher) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logger = logger
}

func (w *Watcher) log() *zap.Logger {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.logger
}

// Config returns the latest valid configuration.
func (w *Watcher) Config() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// Current implements douban.SettingsSource.
func (w *Watcher) Current() douban.Settings {
	return w.Config().Settings()
}

// Subscribe implements douban.SettingsSource.
func (w *Watcher) Subscribe(fn func(douban.Settings)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Start begins watching the config file. Without a file there is nothing to
// watch and Start is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.v.ConfigFileUsed() == "" {
		return
	}
	w.started = true
	w.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := w.reload(); err != nil {
			w.log().Warn("Ignoring invalid config change", zap.String("file", e.Name), zap.Error(err))
		}
	})
	w.v.WatchConfig()
	w.logger.Info("Watching config file", zap.String("file", w.v.ConfigFileUsed()))
}

// reload decodes the current viper state and notifies subscribers when the
// session settings changed. An invalid file keeps the previous config.
func (w *Watcher) reload() error {
	cfg, err := decode(w.v)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}

	w.mu.Lock()
	prev := w.cfg.Settings()
	w.cfg = cfg
	listeners := slices.Clone(w.listeners)
	w.mu.Unlock()

	next := cfg.Settings()
	if next == prev {
		return nil
	}
	w.log().Info("Douban settings changed", zap.Bool("avoid_risk_control", next.AvoidRiskControl))
	for _, fn := range listeners {
		fn(next)
	}
	return nil
}
