package app

import (
	"cppmsplit/internal/core/errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ScanUnits expands paths into a sorted, de-duplicated list of absolute unit
// paths. Directories are walked with the configured filter; files named
// explicitly are taken as they are.
func (a *App) ScanUnits(paths []string) ([]string, error) {
	filter := a.current().filter
	seen := make(map[string]bool)
	var units []string

	add := func(path string) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		path = filepath.Clean(path)
		if !seen[path] {
			seen[path] = true
			units = append(units, path)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "input not found"), errors.CtxPath, root)
		}
		if !info.IsDir() {
			add(root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && filter.ExcludeDir(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if filter.IsUnit(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeIOFailure, "walk input"), errors.CtxPath, root)
		}
	}

	sort.Strings(units)
	return units, nil
}
