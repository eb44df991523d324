package app

import (
	"context"
	"cppmsplit/internal/core/errors"
	"cppmsplit/internal/core/ports"
	"cppmsplit/internal/data/history"
	"cppmsplit/internal/shared/observability"
	"cppmsplit/internal/shared/version"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type translationService struct {
	app *App
}

var _ ports.TranslationService = (*translationService)(nil)

func NewTranslationService(app *App) ports.TranslationService {
	return &translationService{app: app}
}

func (a *App) TranslationService() ports.TranslationService {
	return NewTranslationService(a)
}

func (s *translationService) TranslateAll(ctx context.Context, req ports.TranslateRequest) (ports.TranslateReport, error) {
	if err := ctx.Err(); err != nil {
		return ports.TranslateReport{}, err
	}
	if s.app == nil {
		return ports.TranslateReport{}, fmt.Errorf("app is required")
	}
	return s.app.TranslateAll(ctx, req)
}

// TranslateUnit always translates unitPath, writing the pair into outputDir.
// The returned error is the unit's translation error, if any.
func (s *translationService) TranslateUnit(ctx context.Context, unitPath, outputDir string) (ports.UnitOutcome, error) {
	ctx, span := observability.Tracer.Start(ctx, "translationService.TranslateUnit", trace.WithAttributes(
		attribute.String("unit.path", unitPath),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return ports.UnitOutcome{}, err
	}
	if s.app == nil {
		return ports.UnitOutcome{}, fmt.Errorf("app is required")
	}

	run := history.Run{
		ID:          uuid.NewString(),
		Mode:        ports.ModeSingle,
		ToolVersion: version.Version,
		StartedAt:   time.Now().UTC(),
		Units:       1,
	}
	s.app.recordRun(run)

	outcome := s.app.translateUnit(ctx, run.ID, unitPath, outputDir, true)

	run.FinishedAt = time.Now().UTC()
	if outcome.Err != nil {
		run.Failed = 1
	} else {
		run.Translated = 1
	}
	s.app.recordRun(run)
	observability.RunsTotal.WithLabelValues(ports.ModeSingle).Inc()

	if outcome.Err != nil {
		return outcome, outcome.Err
	}
	return outcome, nil
}

func (s *translationService) History(ctx context.Context, limit int) ([]history.Translation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.app == nil {
		return nil, fmt.Errorf("app is required")
	}
	if s.app.history == nil {
		return nil, errors.New(errors.CodeValidationError, "translation history is disabled")
	}
	return s.app.history.Recent(limit)
}

type watchService struct {
	app *App
}

var _ ports.WatchService = (*watchService)(nil)

func (a *App) WatchService() ports.WatchService {
	return &watchService{app: a}
}

// Start watches the configured inputs until ctx is done.
func (s *watchService) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.app.StartWatcher(); err != nil {
		return errors.AddContext(err, errors.CtxOperation, "start_watcher")
	}
	go func() {
		<-ctx.Done()
		_ = s.app.Close()
	}()
	return nil
}

func (s *watchService) Subscribe(handler func(ports.TranslateReport)) {
	s.app.SetUpdateHandler(handler)
}

func (s *watchService) Close() error {
	return s.app.Close()
}
