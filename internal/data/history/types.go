package history

import "time"

const SchemaVersion = 1

// Translation outcomes recorded per unit.
const (
	StatusTranslated = "translated"
	StatusCached     = "cached"
	StatusFailed     = "failed"
	StatusRemoved    = "removed"
)

// Run is one batch invocation: a one-shot run or a single watch-mode batch.
type Run struct {
	ID          string
	Mode        string
	ToolVersion string
	StartedAt   time.Time
	FinishedAt  time.Time
	Units       int
	Translated  int
	Cached      int
	Failed      int
}

// Translation is the record of one unit processed in a run.
type Translation struct {
	RunID        string
	UnitPath     string
	ContentHash  string
	ToolVersion  string
	Status       string
	HeaderPath   string
	SourcePath   string
	ErrorCode    string
	ErrorMessage string
	Constructs   int
	Duration     time.Duration
	Timestamp    time.Time
}

// Succeeded reports whether the unit's outputs were produced or reused.
func (t Translation) Succeeded() bool {
	return t.Status == StatusTranslated || t.Status == StatusCached
}
