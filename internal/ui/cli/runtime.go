package cli

import (
	"context"
	coreapp "cppmsplit/internal/core/app"
	"cppmsplit/internal/core/config"
	"cppmsplit/internal/core/ports"
	"cppmsplit/internal/data/history"
	"cppmsplit/internal/shared/observability"
	"cppmsplit/internal/shared/version"
	"cppmsplit/internal/ui/report"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const defaultConfigName = config.DefaultFile

// Exit codes. exitBadUnit matches EX_USAGE from sysexits.h.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
	exitBadUnit = 64
)

func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if opts.version {
		fmt.Fprintf(stdout, "cppmsplit v%s\n", version.Version)
		return exitOK
	}

	cleanupLogs := configureLogging(stderr, opts.ui, opts.verbose)
	defer cleanupLogs()

	if opts.cppm != "" {
		return runSingleUnit(opts, stdout, stderr)
	}

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to detect working directory", "error", err)
		return exitFailure
	}

	cfg, cfgPath, err := loadConfig(opts.configPath, cwd)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitFailure
	}
	config.ApplyEnvOverrides(cfg)

	if err := applyModeOptions(&opts, cfg); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return exitUsage
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(stderr, "config:", e.Error())
		}
		return exitFailure
	}

	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		slog.Error("failed to resolve runtime paths", "error", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := startTracing(ctx, cfg)
	defer shutdownTracing()

	store, err := openHistoryStore(cfg, paths)
	if err != nil {
		if opts.history {
			slog.Error("history setup failed", "error", err)
			return exitFailure
		}
		slog.Warn("translation history unavailable, caching disabled", "path", paths.DBPath, "error", err)
	}
	deps := coreapp.Dependencies{Logger: slog.Default()}
	if store != nil {
		defer store.Close()
		deps.History = store
	}

	app, err := coreapp.NewWithDependencies(cfg, paths, deps)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return exitFailure
	}
	defer app.Close()
	svc := app.TranslationService()

	if opts.history {
		return runHistoryMode(ctx, svc, opts.historyLimit, stdout, stderr)
	}

	if cfg.Observability.Enabled {
		server := NewObservabilityServer(cfg.Observability.Address, coreapp.NewHealthService(app))
		if err := server.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			return exitFailure
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(shutdownCtx)
		}()
	}

	if opts.once {
		res, err := svc.TranslateAll(ctx, ports.TranslateRequest{Force: opts.force, Mode: ports.ModeOnce})
		if err != nil {
			slog.Error("translation failed", "error", err)
			return exitFailure
		}
		fmt.Fprint(stdout, report.RenderSummary(res, opts.verbose))
		alert(stderr, cfg, res)
		if !res.OK() {
			return exitFailure
		}
		return exitOK
	}

	return runWatchMode(ctx, app, opts, cfgPath, cwd, stdout, stderr)
}

// runSingleUnit is the build-system entry point: it translates one unit and
// prints only the absolute path of the generated source file on stdout.
func runSingleUnit(opts cliOptions, stdout, stderr io.Writer) int {
	info, err := os.Stat(opts.cppm)
	if err != nil || info.IsDir() {
		fmt.Fprintf(stderr, "FATAL: Given cppm path '%s' is not a file! Aborting.\n", opts.cppm)
		return exitBadUnit
	}

	unitPath, err := filepath.Abs(opts.cppm)
	if err != nil {
		slog.Error("failed to resolve unit path", "path", opts.cppm, "error", err)
		return exitFailure
	}
	outputDir := opts.outputDir
	if outputDir != "" {
		if outputDir, err = filepath.Abs(outputDir); err != nil {
			slog.Error("failed to resolve output directory", "path", opts.outputDir, "error", err)
			return exitFailure
		}
	}

	app, err := coreapp.NewWithDependencies(config.DefaultConfig(), config.ResolvedPaths{}, coreapp.Dependencies{Logger: slog.Default()})
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return exitFailure
	}

	outcome, err := app.TranslationService().TranslateUnit(context.Background(), unitPath, outputDir)
	if err != nil {
		fmt.Fprintf(stderr, "cppmsplit: %s: %v\n", unitPath, err)
		return exitFailure
	}
	fmt.Fprintln(stdout, outcome.SourcePath)
	return exitOK
}

func runHistoryMode(ctx context.Context, svc ports.TranslationService, limit int, stdout, stderr io.Writer) int {
	rows, err := svc.History(ctx, limit)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return exitFailure
	}
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "History: no translations recorded yet.")
		return exitOK
	}
	fmt.Fprint(stdout, report.RenderHistory(rows))
	return exitOK
}

func runWatchMode(ctx context.Context, app *coreapp.App, opts cliOptions, cfgPath, cwd string, stdout, stderr io.Writer) int {
	watch := app.WatchService()

	var program *tuiProgram
	if opts.ui {
		program = newTUIProgram(app.TranslationService())
		watch.Subscribe(program.Send)
	} else {
		watch.Subscribe(func(res ports.TranslateReport) {
			cfg := app.CurrentConfig()
			if cfg.Alerts.Terminal {
				fmt.Fprint(stdout, report.RenderSummary(res, opts.verbose))
			}
			alert(stderr, cfg, res)
		})
	}

	initial, err := app.TranslateAll(ctx, ports.TranslateRequest{Force: opts.force, Mode: ports.ModeWatch})
	if err != nil {
		slog.Error("initial translation failed", "error", err)
		return exitFailure
	}
	if !opts.ui && !app.CurrentConfig().Alerts.Terminal {
		fmt.Fprint(stdout, report.RenderSummary(initial, opts.verbose))
	}

	if err := watch.Start(ctx); err != nil {
		slog.Error("failed to start watcher", "error", err)
		return exitFailure
	}
	defer watch.Close()

	if cfgPath != "" {
		cfgWatcher := config.NewWatcher(cfgPath, func(next *config.Config) {
			reloadConfig(app, opts, next, cwd)
		})
		if err := cfgWatcher.Start(ctx); err != nil {
			slog.Warn("config hot reload disabled", "path", cfgPath, "error", err)
		} else {
			defer cfgWatcher.Stop()
		}
	}

	slog.Info("watching for changes", "inputs", app.CurrentPaths().Inputs)

	if program != nil {
		if err := program.Run(ctx); err != nil {
			slog.Error("failed to run UI", "error", err)
			return exitFailure
		}
		return exitOK
	}

	<-ctx.Done()
	slog.Info("shutting down")
	return exitOK
}

func reloadConfig(app *coreapp.App, opts cliOptions, next *config.Config, cwd string) {
	config.ApplyEnvOverrides(next)
	applyOverrides(opts, next)
	if errs := config.Validate(next); len(errs) > 0 {
		slog.Warn("ignoring invalid config reload", "error", errors.Join(errs...))
		return
	}
	paths, err := config.ResolvePaths(next, cwd)
	if err != nil {
		slog.Warn("ignoring config reload", "error", err)
		return
	}
	if err := app.ApplyConfig(next, paths); err != nil {
		slog.Warn("ignoring config reload", "error", err)
	}
}

// loadConfig reads path, or ./cppmsplit.toml when path is empty. A missing
// default file yields the built-in defaults and an empty config path.
func loadConfig(path, cwd string) (*config.Config, string, error) {
	if strings.TrimSpace(path) != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	candidate := filepath.Join(cwd, defaultConfigName)
	cfg, err := config.Load(candidate)
	if err == nil {
		return cfg, candidate, nil
	}
	if os.IsNotExist(err) {
		slog.Debug("no config file found, using defaults", "path", candidate)
		return config.DefaultConfig(), "", nil
	}
	return nil, "", err
}

func applyModeOptions(opts *cliOptions, cfg *config.Config) error {
	if opts.ui && opts.once {
		return fmt.Errorf("-ui cannot be combined with -once")
	}
	if opts.history && (opts.ui || opts.once || opts.force) {
		return fmt.Errorf("-history cannot be combined with -ui, -once or -force")
	}
	if opts.history && !cfg.DB.IsEnabled() {
		return fmt.Errorf("-history requires db.enabled = true")
	}
	if opts.workers < 0 {
		return fmt.Errorf("-workers must be >= 0")
	}
	if opts.history && opts.historyLimit <= 0 {
		return fmt.Errorf("-history-limit must be > 0")
	}
	applyOverrides(*opts, cfg)
	return nil
}

// applyOverrides copies command-line values over the loaded configuration.
// Positional arguments replace the configured inputs.
func applyOverrides(opts cliOptions, cfg *config.Config) {
	if len(opts.args) > 0 {
		cfg.Inputs = append([]string(nil), opts.args...)
	}
	if opts.outputDir != "" {
		cfg.OutputDir = opts.outputDir
	}
	if opts.workers > 0 {
		cfg.Performance.Workers = opts.workers
	}
}

func openHistoryStore(cfg *config.Config, paths config.ResolvedPaths) (*history.Store, error) {
	if !cfg.DB.IsEnabled() {
		return nil, nil
	}
	store, err := history.Open(paths.DBPath, cfg.DB.BusyTimeout)
	if err != nil {
		if history.IsCorruptError(err) {
			return nil, fmt.Errorf("history database %q looks corrupt, remove it to start fresh: %w", paths.DBPath, err)
		}
		return nil, err
	}
	return store, nil
}

func startTracing(ctx context.Context, cfg *config.Config) func() {
	if !cfg.Observability.EnableTracing {
		return func() {}
	}
	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Endpoint:    cfg.Observability.OTLPEndpoint,
		ServiceName: cfg.Observability.ServiceName,
		Version:     version.Version,
		Insecure:    cfg.Observability.OTLPInsecure,
	})
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
		return func() {}
	}
	return func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}
}

func alert(w io.Writer, cfg *config.Config, res ports.TranslateReport) {
	if cfg.Alerts.Beep && !res.OK() {
		fmt.Fprint(w, "\a")
	}
}

func configureLogging(w io.Writer, uiMode, verbose bool) func() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	output := w
	var closeFn func() = func() {}
	if uiMode {
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else {
			if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
				fmt.Fprintf(os.Stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
			} else {
				f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
				if err == nil {
					output = f
					closeFn = func() { _ = f.Close() }
				} else {
					fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
				}
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return closeFn
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "cppmsplit", "cppmsplit.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "cppmsplit", "cppmsplit.log")
	}

	return "cppmsplit.log"
}
