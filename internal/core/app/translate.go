package app

import (
	"context"
	"cppmsplit/internal/core/errors"
	"cppmsplit/internal/core/ports"
	"cppmsplit/internal/data/history"
	"cppmsplit/internal/engine/translator"
	"cppmsplit/internal/shared/observability"
	"cppmsplit/internal/shared/version"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// TranslateAll scans the requested paths, or the configured inputs when none
// are given, and translates every unit found.
func (a *App) TranslateAll(ctx context.Context, req ports.TranslateRequest) (ports.TranslateReport, error) {
	paths := req.Paths
	if len(paths) == 0 {
		paths = a.current().paths.Inputs
	}
	units, err := a.ScanUnits(paths)
	if err != nil {
		return ports.TranslateReport{}, errors.AddContext(err, errors.CtxOperation, "scan_units")
	}
	mode := req.Mode
	if mode == "" {
		mode = ports.ModeOnce
	}
	return a.runBatch(ctx, mode, units, nil, req.Force)
}

// runBatch translates units concurrently and drops the generated pairs of
// removed units. The run and every unit are recorded in history when it is
// enabled.
func (a *App) runBatch(ctx context.Context, mode string, units, removed []string, force bool) (ports.TranslateReport, error) {
	a.batchMu.Lock()
	defer a.batchMu.Unlock()

	s := a.current()
	run := history.Run{
		ID:          uuid.NewString(),
		Mode:        mode,
		ToolVersion: version.Version,
		StartedAt:   time.Now().UTC(),
		Units:       len(units),
	}

	ctx, span := observability.Tracer.Start(ctx, "app.runBatch", trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("run.mode", mode),
		attribute.Int("run.units", len(units)),
	))
	defer span.End()

	a.recordRun(run)

	outcomes := make([]ports.UnitOutcome, len(units))
	workers := s.cfg.Performance.Workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, unit := range units {
		i, unit := i, unit
		g.Go(func() error {
			if err := s.limiter.Wait(gctx, 1); err != nil {
				return err
			}
			outcomes[i] = a.translateUnit(gctx, run.ID, unit, s.paths.OutputDir, force)
			return nil
		})
	}
	waitErr := g.Wait()

	report := ports.TranslateReport{
		RunID:     run.ID,
		Mode:      mode,
		StartedAt: run.StartedAt,
	}
	for _, outcome := range outcomes {
		if outcome.UnitPath == "" {
			continue
		}
		report.Units = append(report.Units, outcome)
		switch outcome.Status {
		case history.StatusTranslated:
			report.Translated++
		case history.StatusCached:
			report.Cached++
		default:
			report.Failed++
		}
	}
	for _, unit := range removed {
		if a.removeOutputs(run.ID, unit) {
			report.Removed++
		}
	}

	report.Duration = time.Since(run.StartedAt)
	run.FinishedAt = time.Now().UTC()
	run.Translated = report.Translated
	run.Cached = report.Cached
	run.Failed = report.Failed
	a.recordRun(run)

	observability.RunsTotal.WithLabelValues(mode).Inc()
	observability.RunDuration.WithLabelValues(mode).Observe(report.Duration.Seconds())
	span.SetAttributes(
		attribute.Int("run.translated", report.Translated),
		attribute.Int("run.cached", report.Cached),
		attribute.Int("run.failed", report.Failed),
	)

	if waitErr != nil {
		span.RecordError(waitErr)
		span.SetStatus(codes.Error, waitErr.Error())
		return report, waitErr
	}

	a.logger.Info("batch finished",
		"run", run.ID,
		"mode", mode,
		"units", len(units),
		"translated", report.Translated,
		"cached", report.Cached,
		"failed", report.Failed,
		"removed", report.Removed,
		"duration", report.Duration,
	)
	a.publish(report)
	return report, nil
}

// translateUnit produces the pair for one unit. A unit whose content hash and
// tool version match its last successful record is skipped while both
// generated files are still in place, unless force is set.
func (a *App) translateUnit(ctx context.Context, runID, unitPath, outputDir string, force bool) ports.UnitOutcome {
	ctx, span := observability.Tracer.Start(ctx, "app.translateUnit", trace.WithAttributes(
		attribute.String("unit.path", unitPath),
	))
	defer span.End()

	start := time.Now()
	outcome := ports.UnitOutcome{UnitPath: unitPath}
	record := history.Translation{
		RunID:       runID,
		UnitPath:    unitPath,
		ToolVersion: version.Version,
	}

	data, err := os.ReadFile(unitPath)
	if err != nil {
		err = errors.AddContext(errors.Wrap(err, errors.CodeIOFailure, "read unit"), errors.CtxPath, unitPath)
		return a.finishFailure(span, outcome, record, start, err)
	}
	sum := sha256.Sum256(data)
	record.ContentHash = hex.EncodeToString(sum[:])

	expectedDir := outputDir
	if expectedDir == "" {
		expectedDir = filepath.Dir(unitPath)
	}
	if !force {
		if prev, ok := a.cached(unitPath, record.ContentHash, expectedDir); ok {
			outcome.Status = history.StatusCached
			outcome.HeaderPath = prev.HeaderPath
			outcome.SourcePath = prev.SourcePath
			outcome.Constructs = prev.Constructs
			outcome.Duration = time.Since(start)

			record.Status = history.StatusCached
			record.HeaderPath = prev.HeaderPath
			record.SourcePath = prev.SourcePath
			record.Constructs = prev.Constructs
			record.Duration = outcome.Duration
			a.recordTranslation(record)
			a.rememberOutputs(unitPath, prev.HeaderPath, prev.SourcePath)

			observability.UnitsTotal.WithLabelValues(history.StatusCached).Inc()
			span.SetAttributes(attribute.Bool("unit.cached", true))
			a.logger.Debug("unit unchanged", "path", unitPath)
			return outcome
		}
	}

	res, err := translator.TranslateFile(ctx, unitPath, outputDir, translator.Options{Logger: a.logger})
	if err != nil {
		return a.finishFailure(span, outcome, record, start, err)
	}

	outcome.Status = history.StatusTranslated
	outcome.HeaderPath = res.HeaderPath
	outcome.SourcePath = res.SourcePath
	outcome.Constructs = res.ConstructCount()
	outcome.Kinds = make(map[string]int, len(res.Constructs))
	for kind, n := range res.Constructs {
		outcome.Kinds[kind.String()] = n
		observability.ConstructsTotal.WithLabelValues(kind.String()).Add(float64(n))
	}
	outcome.Duration = time.Since(start)

	record.Status = history.StatusTranslated
	record.HeaderPath = res.HeaderPath
	record.SourcePath = res.SourcePath
	record.Constructs = outcome.Constructs
	record.Duration = outcome.Duration
	a.recordTranslation(record)
	a.rememberOutputs(unitPath, res.HeaderPath, res.SourcePath)

	observability.UnitsTotal.WithLabelValues(history.StatusTranslated).Inc()
	observability.TranslationDuration.Observe(outcome.Duration.Seconds())
	span.SetAttributes(attribute.Int("unit.constructs", outcome.Constructs))
	a.logger.Info("translated unit",
		"path", unitPath,
		"header", res.HeaderPath,
		"source", res.SourcePath,
		"constructs", outcome.Constructs,
	)
	return outcome
}

func (a *App) finishFailure(span trace.Span, outcome ports.UnitOutcome, record history.Translation, start time.Time, err error) ports.UnitOutcome {
	code := string(errors.CodeOf(err))

	outcome.Status = history.StatusFailed
	outcome.ErrorCode = code
	outcome.Err = err
	outcome.Duration = time.Since(start)

	record.Status = history.StatusFailed
	record.ErrorCode = code
	record.ErrorMessage = err.Error()
	record.Duration = outcome.Duration
	a.recordTranslation(record)

	observability.UnitsTotal.WithLabelValues(history.StatusFailed).Inc()
	observability.FailuresTotal.WithLabelValues(code).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, code)
	if errors.IsCode(err, errors.CodeIOFailure) || errors.IsCode(err, errors.CodeNotFound) {
		a.logger.Error("unit could not be read or written", "path", outcome.UnitPath, "code", code, "error", err)
	} else {
		a.logger.Warn("translation failed", "path", outcome.UnitPath, "code", code, "error", err)
	}
	return outcome
}

func (a *App) cached(unitPath, hash, expectedDir string) (history.Translation, bool) {
	if a.history == nil {
		return history.Translation{}, false
	}
	prev, ok, err := a.history.Lookup(unitPath)
	if err != nil {
		a.logger.Warn("history lookup failed", "path", unitPath, "error", err)
		return history.Translation{}, false
	}
	if !ok || !prev.Succeeded() || prev.ContentHash != hash || prev.ToolVersion != version.Version {
		return history.Translation{}, false
	}
	if filepath.Dir(prev.HeaderPath) != filepath.Clean(expectedDir) {
		return history.Translation{}, false
	}
	if !fileExists(prev.HeaderPath) || !fileExists(prev.SourcePath) {
		return history.Translation{}, false
	}
	return prev, true
}

func (a *App) recordRun(run history.Run) {
	if a.history == nil {
		return
	}
	if err := a.history.RecordRun(run); err != nil {
		a.logger.Warn("failed to record run", "run", run.ID, "error", err)
	}
}

func (a *App) recordTranslation(t history.Translation) {
	if a.history == nil {
		return
	}
	if err := a.history.RecordTranslation(t); err != nil {
		a.logger.Warn("failed to record translation", "path", t.UnitPath, "error", err)
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
