package app

import (
	"context"
	"cppmsplit/internal/core/ports"
	"cppmsplit/internal/core/watcher"
	"cppmsplit/internal/data/history"
	"cppmsplit/internal/shared/observability"
	"cppmsplit/internal/shared/util"
	"cppmsplit/internal/shared/version"
	"os"
	"path/filepath"
)

func (a *App) StartWatcher() error {
	s := a.current()
	w, err := watcher.NewWatcher(s.cfg.Watch.Debounce, s.filter, a.HandleChanges)
	if err != nil {
		return err
	}
	if err := w.Watch(watchRoots(s.paths.Inputs)); err != nil {
		_ = w.Close()
		return err
	}

	a.watcherMu.Lock()
	a.activeWatcher = w
	a.watcherMu.Unlock()
	return nil
}

// watchRoots maps file inputs to their directories.
func watchRoots(inputs []string) []string {
	seen := make(map[string]bool, len(inputs))
	roots := make([]string, 0, len(inputs))
	for _, in := range inputs {
		root := in
		if info, err := os.Stat(in); err == nil && !info.IsDir() {
			root = filepath.Dir(in)
		}
		if !seen[root] {
			seen[root] = true
			roots = append(roots, root)
		}
	}
	return roots
}

// coveredByInputs reports whether path is an input or lies under an input
// directory. Sibling units of a file input share its watched directory.
func coveredByInputs(path string, inputs []string) bool {
	for _, in := range inputs {
		if util.HasPathPrefix(filepath.ToSlash(path), filepath.ToSlash(in)) {
			return true
		}
	}
	return false
}

// HandleChanges re-translates changed units and removes the generated pair of
// units that no longer exist.
func (a *App) HandleChanges(paths []string) {
	inputs := a.current().paths.Inputs
	var present, removed []string
	for _, path := range paths {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if !coveredByInputs(path, inputs) {
			a.logger.Debug("ignoring change outside inputs", "path", path)
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			removed = append(removed, path)
			continue
		}
		present = append(present, path)
	}

	if len(present) == 0 && len(removed) == 0 {
		return
	}
	if _, err := a.runBatch(context.Background(), ports.ModeWatch, present, removed, false); err != nil {
		a.logger.Error("watch batch failed", "error", err)
	}
}

// removeOutputs deletes the generated pair of a removed unit and forgets its
// history. It reports whether a pair was known.
func (a *App) removeOutputs(runID, unitPath string) bool {
	pair, ok := a.takeOutputs(unitPath)
	if !ok && a.history != nil {
		prev, found, err := a.history.Lookup(unitPath)
		if err != nil {
			a.logger.Warn("history lookup failed", "path", unitPath, "error", err)
		}
		if found && prev.Succeeded() {
			pair = generatedPair{header: prev.HeaderPath, source: prev.SourcePath}
			ok = true
		}
	}
	if !ok {
		a.logger.Debug("no generated pair for removed unit", "path", unitPath)
		return false
	}

	for _, path := range []string{pair.header, pair.source} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			a.logger.Warn("failed to remove generated file", "path", path, "error", err)
		}
	}
	if a.history != nil {
		if err := a.history.Forget(unitPath); err != nil {
			a.logger.Warn("failed to forget unit", "path", unitPath, "error", err)
		}
		a.recordTranslation(history.Translation{
			RunID:       runID,
			UnitPath:    unitPath,
			ToolVersion: version.Version,
			Status:      history.StatusRemoved,
			HeaderPath:  pair.header,
			SourcePath:  pair.source,
		})
	}
	observability.RemovedOutputsTotal.Inc()
	a.logger.Info("removed generated pair", "unit", unitPath, "header", pair.header, "source", pair.source)
	return true
}
