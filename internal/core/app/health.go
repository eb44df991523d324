package app

import (
	"context"
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}
	cfg := s.app.current().cfg

	// Check history store
	if s.app.history != nil {
		status.Components["history"] = "ok"
	} else if cfg.DB.IsEnabled() {
		status.Status = "degraded"
		status.Components["history"] = "missing but enabled in config"
	} else {
		status.Components["history"] = "disabled"
	}

	// Check watcher
	s.app.watcherMu.Lock()
	watching := s.app.activeWatcher != nil
	s.app.watcherMu.Unlock()
	if watching {
		status.Components["watcher"] = "ok"
	} else {
		status.Components["watcher"] = "inactive"
	}

	// Check last batch
	if report, ok := s.app.LastReport(); ok {
		status.Components["last_run"] = fmt.Sprintf("%s (%d translated, %d cached, %d failed)",
			report.Mode, report.Translated, report.Cached, report.Failed)
		if !report.OK() {
			status.Status = "degraded"
		}
	} else {
		status.Components["last_run"] = "none"
	}

	return status
}
