package ports

import (
	"context"
	"cppmsplit/internal/data/history"
	"time"
)

// HistoryStore abstracts translation-history persistence for the cache and
// history listings.
type HistoryStore interface {
	RecordRun(run history.Run) error
	RecordTranslation(t history.Translation) error
	Lookup(unitPath string) (history.Translation, bool, error)
	Recent(limit int) ([]history.Translation, error)
	RecentRuns(limit int) ([]history.Run, error)
	Forget(unitPath string) error
}

// Run modes recorded in history and metrics.
const (
	ModeOnce   = "once"
	ModeWatch  = "watch"
	ModeSingle = "single"
)

// TranslateRequest defines a batch translation for driving adapters. Empty
// Paths means the configured inputs.
type TranslateRequest struct {
	Paths []string
	Force bool
	Mode  string
}

// UnitOutcome is the result of one unit within a batch.
type UnitOutcome struct {
	UnitPath   string
	Status     string
	HeaderPath string
	SourcePath string
	Constructs int
	// Kinds counts constructs per kind. It is nil for cached units.
	Kinds     map[string]int
	Duration  time.Duration
	ErrorCode string
	Err       error
}

// TranslateReport summarizes a completed batch.
type TranslateReport struct {
	RunID      string
	Mode       string
	StartedAt  time.Time
	Duration   time.Duration
	Units      []UnitOutcome
	Translated int
	Cached     int
	Failed     int
	Removed    int
}

// OK reports whether no unit failed.
func (r TranslateReport) OK() bool {
	return r.Failed == 0
}

// TranslationService is the driving-port surface over translation use cases.
type TranslationService interface {
	TranslateAll(ctx context.Context, req TranslateRequest) (TranslateReport, error)
	TranslateUnit(ctx context.Context, unitPath, outputDir string) (UnitOutcome, error)
	History(ctx context.Context, limit int) ([]history.Translation, error)
}

// WatchService exposes watch lifecycle and batch reports for driving adapters.
type WatchService interface {
	Start(ctx context.Context) error
	Subscribe(handler func(TranslateReport))
	Close() error
}
