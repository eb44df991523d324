package config

import (
	"cppmsplit/internal/shared/util"
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
)

const maxWorkers = 64

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateUnits(cfg *Config) error {
	if len(cfg.Units.Extensions) == 0 {
		return fmt.Errorf("units.extensions must not be empty")
	}
	seen := make(map[string]bool, len(cfg.Units.Extensions))
	for i, ext := range cfg.Units.Extensions {
		if ext == "" || ext == "." {
			return fmt.Errorf("units.extensions[%d] must not be empty", i)
		}
		if util.ContainsPathSeparator(ext) {
			return fmt.Errorf("units.extensions[%d] %q must not contain a path separator", i, ext)
		}
		if seen[ext] {
			return fmt.Errorf("units.extensions repeats %q", ext)
		}
		seen[ext] = true
	}
	return nil
}

func validateExclude(cfg *Config) error {
	for i, pattern := range cfg.Exclude.Dirs {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("exclude.dirs[%d] %q is not a valid glob: %w", i, pattern, err)
		}
	}
	for i, pattern := range cfg.Exclude.Files {
		if util.ContainsPathSeparator(pattern) {
			return fmt.Errorf("exclude.files[%d] %q matches base names and must not contain a path separator", i, pattern)
		}
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("exclude.files[%d] %q is not a valid glob: %w", i, pattern, err)
		}
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if cfg.Watch.MaxRate < 0 {
		return fmt.Errorf("watch.max_rate must not be negative")
	}
	if cfg.Watch.Burst < 0 {
		return fmt.Errorf("watch.burst must not be negative")
	}
	return nil
}

func validatePerformance(cfg *Config) error {
	if cfg.Performance.Workers < 1 || cfg.Performance.Workers > maxWorkers {
		return fmt.Errorf("performance.workers must be between 1 and %d, got %d", maxWorkers, cfg.Performance.Workers)
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if !cfg.DB.IsEnabled() {
		return nil
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	obs := cfg.Observability
	if obs.Enabled && obs.Address == "" {
		return fmt.Errorf("observability.address must not be empty when observability.enabled=true")
	}
	if obs.EnableTracing && obs.OTLPEndpoint == "" {
		return fmt.Errorf("observability.otlp_endpoint is required when observability.enable_tracing=true")
	}
	if strings.ContainsAny(obs.ServiceName, " \t\n") {
		return fmt.Errorf("observability.service_name must not contain whitespace")
	}
	return nil
}

// Validate runs every check and collects all failures instead of stopping at
// the first one. It also verifies that configured inputs exist.
func Validate(cfg *Config) []error {
	var errs []error

	checks := []func(*Config) error{
		validateVersion,
		validateUnits,
		validateExclude,
		validateWatch,
		validatePerformance,
		validateDatabase,
		validateObservability,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}

	// Path verification
	errs = append(errs, validatePaths(cfg)...)
	return errs
}

func validatePaths(cfg *Config) []error {
	var errs []error

	for i, path := range cfg.Inputs {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("inputs[%d] %q does not exist", i, path))
		}
	}

	if cfg.OutputDir != "" {
		if stat, err := os.Stat(cfg.OutputDir); err == nil && !stat.IsDir() {
			errs = append(errs, fmt.Errorf("output_dir %q is not a directory", cfg.OutputDir))
		}
	}
	return errs
}
