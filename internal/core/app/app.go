package app

import (
	"cppmsplit/internal/core/config"
	"cppmsplit/internal/core/ports"
	"cppmsplit/internal/core/watcher"
	"cppmsplit/internal/shared/util"
	"fmt"
	"log/slog"
	"sync"
)

// Dependencies are the optional collaborators of an App.
type Dependencies struct {
	History ports.HistoryStore
	Logger  *slog.Logger
}

type App struct {
	Config *config.Config
	Paths  config.ResolvedPaths

	history ports.HistoryStore
	logger  *slog.Logger

	// cfgMu guards Config, Paths, filter and limiter across config reloads.
	cfgMu   sync.RWMutex
	filter  *watcher.Filter
	limiter *util.Limiter

	// batchMu serializes batches so watch-mode flushes never overlap.
	batchMu sync.Mutex

	// Generated pair per unit, used to clean up after a unit is deleted.
	outputs   map[string]generatedPair
	outputsMu sync.Mutex

	watcherMu     sync.Mutex
	activeWatcher *watcher.Watcher

	updateMu   sync.RWMutex
	onUpdate   func(ports.TranslateReport)
	lastReport *ports.TranslateReport
}

type generatedPair struct {
	header string
	source string
}

func New(cfg *config.Config, paths config.ResolvedPaths) (*App, error) {
	return NewWithDependencies(cfg, paths, Dependencies{})
}

func NewWithDependencies(cfg *config.Config, paths config.ResolvedPaths, deps Dependencies) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	filter, err := watcher.NewFilter(cfg.Units.Extensions, cfg.Exclude.Dirs, cfg.Exclude.Files)
	if err != nil {
		return nil, fmt.Errorf("compile unit filter: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &App{
		Config:  cfg,
		Paths:   paths,
		history: deps.History,
		logger:  logger,
		filter:  filter,
		limiter: util.NewLimiter(cfg.Watch.MaxRate, cfg.Watch.Burst),
		outputs: make(map[string]generatedPair),
	}, nil
}

// ApplyConfig swaps in a reloaded configuration. Filters, rate limits and the
// watcher debounce take effect for the next batch.
func (a *App) ApplyConfig(cfg *config.Config, paths config.ResolvedPaths) error {
	filter, err := watcher.NewFilter(cfg.Units.Extensions, cfg.Exclude.Dirs, cfg.Exclude.Files)
	if err != nil {
		return fmt.Errorf("compile unit filter: %w", err)
	}

	a.cfgMu.Lock()
	a.Config = cfg
	a.Paths = paths
	a.filter = filter
	a.limiter = util.NewLimiter(cfg.Watch.MaxRate, cfg.Watch.Burst)
	a.cfgMu.Unlock()

	a.watcherMu.Lock()
	if a.activeWatcher != nil {
		a.activeWatcher.SetDebounce(cfg.Watch.Debounce)
		a.activeWatcher.SetFilter(filter)
	}
	a.watcherMu.Unlock()
	a.logger.Info("configuration applied", "output_dir", paths.OutputDir, "workers", cfg.Performance.Workers)
	return nil
}

type settings struct {
	cfg     *config.Config
	paths   config.ResolvedPaths
	filter  *watcher.Filter
	limiter *util.Limiter
}

func (a *App) current() settings {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return settings{cfg: a.Config, paths: a.Paths, filter: a.filter, limiter: a.limiter}
}

func (a *App) CurrentConfig() *config.Config {
	return a.current().cfg
}

func (a *App) CurrentPaths() config.ResolvedPaths {
	return a.current().paths
}

func (a *App) SetUpdateHandler(handler func(ports.TranslateReport)) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.onUpdate = handler
}

// LastReport returns the most recent batch report, if any.
func (a *App) LastReport() (ports.TranslateReport, bool) {
	a.updateMu.RLock()
	defer a.updateMu.RUnlock()
	if a.lastReport == nil {
		return ports.TranslateReport{}, false
	}
	return *a.lastReport, true
}

func (a *App) publish(report ports.TranslateReport) {
	a.updateMu.Lock()
	a.lastReport = &report
	handler := a.onUpdate
	a.updateMu.Unlock()

	if handler != nil {
		handler(report)
	}
}

func (a *App) rememberOutputs(unitPath, header, source string) {
	a.outputsMu.Lock()
	defer a.outputsMu.Unlock()
	a.outputs[unitPath] = generatedPair{header: header, source: source}
}

func (a *App) takeOutputs(unitPath string) (generatedPair, bool) {
	a.outputsMu.Lock()
	defer a.outputsMu.Unlock()
	pair, ok := a.outputs[unitPath]
	delete(a.outputs, unitPath)
	return pair, ok
}

// Close stops the watcher, if one is running.
func (a *App) Close() error {
	a.watcherMu.Lock()
	defer a.watcherMu.Unlock()
	if a.activeWatcher == nil {
		return nil
	}
	err := a.activeWatcher.Close()
	a.activeWatcher = nil
	return err
}
