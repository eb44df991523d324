package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"cppmsplit/internal/core/config"
	"cppmsplit/internal/core/errors"
	"cppmsplit/internal/core/ports"
	"cppmsplit/internal/data/history"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unitSource = "export module demo.math;\nexport int add(int a, int b) { return a + b; }\n"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestApp(t *testing.T, root string, store ports.HistoryStore) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Inputs = []string{root}
	cfg.Performance.Workers = 2
	paths, err := config.ResolvePaths(cfg, root)
	require.NoError(t, err)

	app, err := NewWithDependencies(cfg, paths, Dependencies{History: store})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func openHistory(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestScanUnits_FiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.ixx"), unitSource)
	writeFile(t, filepath.Join(root, "a.cppm"), unitSource)
	writeFile(t, filepath.Join(root, "notes.txt"), "x")
	writeFile(t, filepath.Join(root, "build", "skip.cppm"), unitSource)

	app := newTestApp(t, root, nil)
	units, err := app.ScanUnits([]string{root, filepath.Join(root, "a.cppm")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.cppm"), filepath.Join(root, "b.ixx")}, units)
}

func TestScanUnits_MissingInput(t *testing.T) {
	app := newTestApp(t, t.TempDir(), nil)
	_, err := app.ScanUnits([]string{filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestTranslateAll_WritesPairNextToUnit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "math.cppm"), unitSource)

	app := newTestApp(t, root, nil)
	report, err := app.TranslateAll(context.Background(), ports.TranslateRequest{})
	require.NoError(t, err)

	assert.Equal(t, ports.ModeOnce, report.Mode)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, report.Translated)
	assert.True(t, report.OK())
	require.Len(t, report.Units, 1)

	unit := report.Units[0]
	assert.Equal(t, filepath.Join(root, "src", "demo_math.hpp"), unit.HeaderPath)
	assert.Equal(t, filepath.Join(root, "src", "demo_math.cpp"), unit.SourcePath)
	assert.Equal(t, 1, unit.Kinds["function"])
	assert.FileExists(t, unit.HeaderPath)
	assert.FileExists(t, unit.SourcePath)

	last, ok := app.LastReport()
	require.True(t, ok)
	assert.Equal(t, report.RunID, last.RunID)
}

func TestTranslateAll_OutputDir(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(t.TempDir(), "gen")
	writeFile(t, filepath.Join(root, "math.cppm"), unitSource)

	app := newTestApp(t, root, nil)
	app.Paths.OutputDir = out

	report, err := app.TranslateAll(context.Background(), ports.TranslateRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, report.Translated)
	assert.FileExists(t, filepath.Join(out, "demo_math.hpp"))
	assert.FileExists(t, filepath.Join(out, "demo_math.cpp"))
	assert.NoFileExists(t, filepath.Join(root, "demo_math.hpp"))
}

func TestTranslateAll_FailureDoesNotStopBatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "good.cppm"), unitSource)
	writeFile(t, filepath.Join(root, "bad.cppm"), "int f() { return 1; }\n")

	store := openHistory(t)
	app := newTestApp(t, root, store)
	report, err := app.TranslateAll(context.Background(), ports.TranslateRequest{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Translated)
	assert.Equal(t, 1, report.Failed)
	assert.False(t, report.OK())

	var failed ports.UnitOutcome
	for _, u := range report.Units {
		if u.Status == history.StatusFailed {
			failed = u
		}
	}
	assert.Equal(t, filepath.Join(root, "bad.cppm"), failed.UnitPath)
	assert.Equal(t, string(errors.CodeMissingModuleDeclaration), failed.ErrorCode)
	assert.Error(t, failed.Err)

	rec, ok, err := store.Lookup(filepath.Join(root, "bad.cppm"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, history.StatusFailed, rec.Status)
	assert.Equal(t, string(errors.CodeMissingModuleDeclaration), rec.ErrorCode)
}

func TestTranslateAll_CachesUnchangedUnits(t *testing.T) {
	root := t.TempDir()
	unitPath := filepath.Join(root, "math.cppm")
	writeFile(t, unitPath, unitSource)

	store := openHistory(t)
	app := newTestApp(t, root, store)
	ctx := context.Background()

	first, err := app.TranslateAll(ctx, ports.TranslateRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, first.Translated)

	second, err := app.TranslateAll(ctx, ports.TranslateRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Cached)
	assert.Equal(t, 0, second.Translated)
	assert.Equal(t, first.Units[0].HeaderPath, second.Units[0].HeaderPath)

	forced, err := app.TranslateAll(ctx, ports.TranslateRequest{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, forced.Translated)

	require.NoError(t, os.Remove(first.Units[0].HeaderPath))
	regenerated, err := app.TranslateAll(ctx, ports.TranslateRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, regenerated.Translated)
	assert.FileExists(t, first.Units[0].HeaderPath)

	writeFile(t, unitPath, unitSource+"export int sub(int a, int b) { return a - b; }\n")
	changed, err := app.TranslateAll(ctx, ports.TranslateRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, changed.Translated)

	runs, err := store.RecentRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 5)
}

func TestTranslateAll_CanceledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "math.cppm"), unitSource)

	app := newTestApp(t, root, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := app.TranslateAll(ctx, ports.TranslateRequest{})
	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(root, "demo_math.hpp"))
}

func TestHandleChanges_RetranslatesAndRemoves(t *testing.T) {
	root := t.TempDir()
	unitPath := filepath.Join(root, "math.cppm")
	writeFile(t, unitPath, unitSource)

	store := openHistory(t)
	app := newTestApp(t, root, store)

	var reports []ports.TranslateReport
	app.SetUpdateHandler(func(r ports.TranslateReport) { reports = append(reports, r) })

	app.HandleChanges([]string{unitPath})
	require.Len(t, reports, 1)
	assert.Equal(t, ports.ModeWatch, reports[0].Mode)
	assert.Equal(t, 1, reports[0].Translated)
	header := filepath.Join(root, "demo_math.hpp")
	source := filepath.Join(root, "demo_math.cpp")
	assert.FileExists(t, header)

	require.NoError(t, os.Remove(unitPath))
	app.HandleChanges([]string{unitPath})
	require.Len(t, reports, 2)
	assert.Equal(t, 1, reports[1].Removed)
	assert.NoFileExists(t, header)
	assert.NoFileExists(t, source)

	rec, ok, err := store.Lookup(unitPath)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, history.StatusRemoved, rec.Status)
}

func TestHandleChanges_RemovalUsesHistoryAfterRestart(t *testing.T) {
	root := t.TempDir()
	unitPath := filepath.Join(root, "math.cppm")
	writeFile(t, unitPath, unitSource)

	store := openHistory(t)
	first := newTestApp(t, root, store)
	_, err := first.TranslateAll(context.Background(), ports.TranslateRequest{})
	require.NoError(t, err)

	second := newTestApp(t, root, store)
	require.NoError(t, os.Remove(unitPath))
	second.HandleChanges([]string{unitPath})

	assert.NoFileExists(t, filepath.Join(root, "demo_math.hpp"))
	assert.NoFileExists(t, filepath.Join(root, "demo_math.cpp"))
}

func TestHandleChanges_IgnoresSiblingsOfFileInput(t *testing.T) {
	root := t.TempDir()
	unitPath := filepath.Join(root, "math.cppm")
	sibling := filepath.Join(root, "other.cppm")
	writeFile(t, unitPath, unitSource)
	writeFile(t, sibling, "export module demo.other;\nexport int one() { return 1; }\n")

	app := newTestApp(t, root, nil)
	app.Paths.Inputs = []string{unitPath}

	var reports []ports.TranslateReport
	app.SetUpdateHandler(func(r ports.TranslateReport) { reports = append(reports, r) })

	app.HandleChanges([]string{sibling})
	assert.Empty(t, reports)
	assert.NoFileExists(t, filepath.Join(root, "demo_other.hpp"))

	app.HandleChanges([]string{sibling, unitPath})
	require.Len(t, reports, 1)
	require.Len(t, reports[0].Units, 1)
	assert.Equal(t, unitPath, reports[0].Units[0].UnitPath)
	assert.FileExists(t, filepath.Join(root, "demo_math.hpp"))
}

func TestTranslateAll_WriteFailureLoggedAsError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "math.cppm"), unitSource)
	blocked := filepath.Join(t.TempDir(), "not-a-dir")
	writeFile(t, blocked, "")

	var logs bytes.Buffer
	cfg := config.DefaultConfig()
	cfg.Inputs = []string{root}
	paths, err := config.ResolvePaths(cfg, root)
	require.NoError(t, err)
	paths.OutputDir = blocked
	app, err := NewWithDependencies(cfg, paths, Dependencies{
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
	})
	require.NoError(t, err)

	report, err := app.TranslateAll(context.Background(), ports.TranslateRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	assert.Equal(t, string(errors.CodeIOFailure), report.Units[0].ErrorCode)
	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "unit could not be read or written")
}

func TestTranslateAll_TranslationFailureLoggedAsWarning(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "bad.cppm"), "int f() { return 1; }\n")

	var logs bytes.Buffer
	cfg := config.DefaultConfig()
	cfg.Inputs = []string{root}
	paths, err := config.ResolvePaths(cfg, root)
	require.NoError(t, err)
	app, err := NewWithDependencies(cfg, paths, Dependencies{
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
	})
	require.NoError(t, err)

	_, err = app.TranslateAll(context.Background(), ports.TranslateRequest{})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.NotContains(t, logs.String(), "level=ERROR")
}

func TestApplyConfig_SwapsFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "math.cppm"), unitSource)
	writeFile(t, filepath.Join(root, "extra.mxx"), unitSource)

	app := newTestApp(t, root, nil)
	units, err := app.ScanUnits([]string{root})
	require.NoError(t, err)
	assert.Len(t, units, 1)

	cfg := config.DefaultConfig()
	cfg.Inputs = []string{root}
	cfg.Units.Extensions = []string{".cppm", ".mxx"}
	paths, err := config.ResolvePaths(cfg, root)
	require.NoError(t, err)
	require.NoError(t, app.ApplyConfig(cfg, paths))

	units, err = app.ScanUnits([]string{root})
	require.NoError(t, err)
	assert.Len(t, units, 2)
}

func TestNewWithDependencies_RequiresConfig(t *testing.T) {
	_, err := NewWithDependencies(nil, config.ResolvedPaths{}, Dependencies{})
	assert.Error(t, err)
}

func TestNew_RejectsInvalidExcludePattern(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Exclude.Files = []string{"[unterminated"}
	_, err := New(cfg, config.ResolvedPaths{})
	assert.Error(t, err)
}
