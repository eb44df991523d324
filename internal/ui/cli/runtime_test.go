package cli

import (
	"bytes"
	"cppmsplit/internal/core/config"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const unitSource = "export module demo.math;\nexport int add(int a, int b) { return a + b; }\n"

func writeUnit(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeTestConfig(t *testing.T, root string) string {
	t.Helper()
	content := fmt.Sprintf(`
version = 1
inputs = [%q]

[performance]
workers = 2

[db]
path = %q
`, filepath.Join(root, "src"), filepath.Join(root, "state", "history.db"))
	path := filepath.Join(root, config.DefaultFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseOptions_Defaults(t *testing.T) {
	opts, err := parseOptions(nil, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.configPath != "" || opts.once || opts.ui || opts.history {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
	if opts.historyLimit != 50 {
		t.Fatalf("expected history limit 50, got %d", opts.historyLimit)
	}
}

func TestParseOptions_DebugAliasesVerbose(t *testing.T) {
	opts, err := parseOptions([]string{"-debug", "-once", "./src"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !opts.verbose || !opts.once {
		t.Fatalf("expected verbose and once, got %+v", opts)
	}
	if len(opts.args) != 1 || opts.args[0] != "./src" {
		t.Fatalf("unexpected args: %v", opts.args)
	}
}

func TestApplyModeOptions_RejectsUIWithOnce(t *testing.T) {
	opts := &cliOptions{ui: true, once: true}
	err := applyModeOptions(opts, config.DefaultConfig())
	if err == nil || !strings.Contains(err.Error(), "cannot be combined") {
		t.Fatalf("expected combination error, got %v", err)
	}
}

func TestApplyModeOptions_HistoryRequiresDatabase(t *testing.T) {
	cfg := config.DefaultConfig()
	disabled := false
	cfg.DB.Enabled = &disabled

	err := applyModeOptions(&cliOptions{history: true, historyLimit: 10}, cfg)
	if err == nil || !strings.Contains(err.Error(), "db.enabled") {
		t.Fatalf("expected db error, got %v", err)
	}
}

func TestApplyModeOptions_Overrides(t *testing.T) {
	cfg := config.DefaultConfig()
	opts := &cliOptions{args: []string{"./override"}, outputDir: "gen", workers: 3}

	if err := applyModeOptions(opts, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Inputs) != 1 || cfg.Inputs[0] != "./override" {
		t.Fatalf("unexpected inputs: %v", cfg.Inputs)
	}
	if cfg.OutputDir != "gen" || cfg.Performance.Workers != 3 {
		t.Fatalf("overrides not applied: output_dir=%q workers=%d", cfg.OutputDir, cfg.Performance.Workers)
	}
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-version"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "cppmsplit v") {
		t.Fatalf("unexpected version output: %q", stdout.String())
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-nope"}, &stdout, &stderr); code != exitUsage {
		t.Fatalf("expected exit %d, got %d", exitUsage, code)
	}
}

func TestRun_SingleUnitRejectsNonFile(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer

	code := run([]string{"-cppm", dir, "-output-dir", dir}, &stdout, &stderr)
	if code != exitBadUnit {
		t.Fatalf("expected exit %d, got %d", exitBadUnit, code)
	}
	if !strings.Contains(stderr.String(), "is not a file") {
		t.Fatalf("unexpected stderr: %q", stderr.String())
	}
	if stdout.Len() != 0 {
		t.Fatalf("expected empty stdout, got %q", stdout.String())
	}
}

func TestRun_SingleUnitPrintsSourcePath(t *testing.T) {
	dir := t.TempDir()
	unit := writeUnit(t, dir, "math.cppm", unitSource)
	out := filepath.Join(dir, "out")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-cppm", unit, "-output-dir", out}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", code, stderr.String())
	}

	want := filepath.Join(out, "demo_math.cpp")
	if strings.TrimSpace(stdout.String()) != want {
		t.Fatalf("expected %q on stdout, got %q", want, stdout.String())
	}
	for _, name := range []string{"demo_math.hpp", "demo_math.cpp"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Fatalf("expected %s to be written: %v", name, err)
		}
	}
}

func TestRun_SingleUnitFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	unit := writeUnit(t, dir, "broken.cppm", "export module broken;\nint f() {\n")
	out := filepath.Join(dir, "out")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-cppm", unit, "-output-dir", out}, &stdout, &stderr); code != exitFailure {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "UNBALANCED_BRACES") {
		t.Fatalf("expected error code on stderr, got %q", stderr.String())
	}
	if _, err := os.Stat(filepath.Join(out, "broken.hpp")); !os.IsNotExist(err) {
		t.Fatalf("expected no header, stat err=%v", err)
	}
}

func TestRun_OnceThenHistory(t *testing.T) {
	root := t.TempDir()
	writeUnit(t, root, filepath.Join("src", "math.cppm"), unitSource)
	cfgPath := writeTestConfig(t, root)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", cfgPath, "-once"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "1 translated") {
		t.Fatalf("unexpected summary: %q", stdout.String())
	}
	if _, err := os.Stat(filepath.Join(root, "src", "demo_math.hpp")); err != nil {
		t.Fatalf("expected header next to unit: %v", err)
	}

	stdout.Reset()
	code = run([]string{"-config", cfgPath, "-once"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("expected exit 0 on second run, got %d", code)
	}
	if !strings.Contains(stdout.String(), "1 cached") {
		t.Fatalf("expected cached unit on second run: %q", stdout.String())
	}

	stdout.Reset()
	code = run([]string{"-config", cfgPath, "-history"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("expected exit 0 for history, got %d (stderr: %s)", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "math.cppm") || !strings.Contains(stdout.String(), "cached") {
		t.Fatalf("unexpected history output: %q", stdout.String())
	}
}

func TestRun_OnceReportsFailures(t *testing.T) {
	root := t.TempDir()
	writeUnit(t, root, filepath.Join("src", "bad.cppm"), "int f() { return 1; }\n")
	cfgPath := writeTestConfig(t, root)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", cfgPath, "-once"}, &stdout, &stderr); code != exitFailure {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stdout.String(), "MISSING_MODULE_DECLARATION") {
		t.Fatalf("expected failure listing, got %q", stdout.String())
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, config.DefaultFile)
	if err := os.WriteFile(cfgPath, []byte("version = 1\ninputs = [\"/definitely/missing/input\"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", cfgPath, "-once"}, &stdout, &stderr); code != exitFailure {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "does not exist") {
		t.Fatalf("expected path validation message, got %q", stderr.String())
	}
}

func TestLoadConfig_MissingDefaultUsesDefaults(t *testing.T) {
	cfg, path, err := loadConfig("", t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Fatalf("expected no config path, got %q", path)
	}
	if len(cfg.Units.Extensions) != 2 {
		t.Fatalf("expected default extensions, got %v", cfg.Units.Extensions)
	}
}

func TestLoadConfig_DiscoversDefaultFile(t *testing.T) {
	root := t.TempDir()
	writeTestConfig(t, root)

	cfg, path, err := loadConfig("", root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != filepath.Join(root, config.DefaultFile) {
		t.Fatalf("unexpected config path %q", path)
	}
	if cfg.Performance.Workers != 2 {
		t.Fatalf("expected workers from file, got %d", cfg.Performance.Workers)
	}
}

func TestLoadConfig_CustomPathNoFallback(t *testing.T) {
	_, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"), t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestOpenHistoryStore_DBDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	disabled := false
	cfg.DB.Enabled = &disabled

	store, err := openHistoryStore(cfg, config.ResolvedPaths{})
	if err != nil || store != nil {
		t.Fatalf("expected no store, got %v, %v", store, err)
	}
}

func TestOpenHistoryStore_UsesResolvedPath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := openHistoryStore(config.DefaultConfig(), config.ResolvedPaths{DBPath: dbPath})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	if store.Path() != dbPath {
		t.Fatalf("expected %q, got %q", dbPath, store.Path())
	}
}

func TestResolveLogPath_UsesXDGStateHome(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/state")
	if got := resolveLogPath(); got != filepath.Join("/tmp/state", "cppmsplit", "cppmsplit.log") {
		t.Fatalf("unexpected log path %q", got)
	}
}
