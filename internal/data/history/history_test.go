package history

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), 0)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_RecordRunUpsertsCounters(t *testing.T) {
	store := openTestStore(t)

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	run := Run{ID: "run-1", Mode: "once", ToolVersion: "1.0.0", StartedAt: start}
	if err := store.RecordRun(run); err != nil {
		t.Fatalf("record run: %v", err)
	}

	run.FinishedAt = start.Add(3 * time.Second)
	run.Units = 4
	run.Translated = 2
	run.Cached = 1
	run.Failed = 1
	if err := store.RecordRun(run); err != nil {
		t.Fatalf("update run: %v", err)
	}

	runs, err := store.RecentRuns(10)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run after upsert, got %d", len(runs))
	}
	got := runs[0]
	if got.Units != 4 || got.Translated != 2 || got.Cached != 1 || got.Failed != 1 {
		t.Fatalf("unexpected counters: %+v", got)
	}
	if !got.StartedAt.Equal(start) || !got.FinishedAt.Equal(start.Add(3*time.Second)) {
		t.Fatalf("timestamps did not roundtrip: %+v", got)
	}
}

func TestStore_RecordRunRequiresID(t *testing.T) {
	store := openTestStore(t)
	if err := store.RecordRun(Run{Mode: "once"}); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestStore_LookupReturnsLatest(t *testing.T) {
	store := openTestStore(t)
	if err := store.RecordRun(Run{ID: "run-1", Mode: "once", ToolVersion: "1.0.0"}); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	first := Translation{
		RunID:       "run-1",
		UnitPath:    "/src/math.cppm",
		ContentHash: "aaa",
		ToolVersion: "1.0.0",
		Status:      StatusTranslated,
		HeaderPath:  "/src/math.hpp",
		SourcePath:  "/src/math.cpp",
		Constructs:  7,
		Duration:    12 * time.Millisecond,
		Timestamp:   base,
	}
	second := first
	second.ContentHash = "bbb"
	second.Status = StatusFailed
	second.ErrorCode = "UNBALANCED_BRACES"
	second.ErrorMessage = "no closing brace found"
	second.Timestamp = base.Add(time.Minute)

	if err := store.RecordTranslation(first); err != nil {
		t.Fatalf("record first: %v", err)
	}
	if err := store.RecordTranslation(second); err != nil {
		t.Fatalf("record second: %v", err)
	}

	got, ok, err := store.Lookup("/src/math.cppm")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !ok {
		t.Fatal("expected a record")
	}
	if got.ContentHash != "bbb" || got.Succeeded() {
		t.Fatalf("expected latest failed record, got %+v", got)
	}
	if got.ErrorCode != "UNBALANCED_BRACES" {
		t.Fatalf("unexpected error code %q", got.ErrorCode)
	}

	_, ok, err = store.Lookup("/src/other.cppm")
	if err != nil {
		t.Fatalf("lookup missing: %v", err)
	}
	if ok {
		t.Fatal("expected no record for unknown unit")
	}
}

func TestStore_RecentOrderAndLimit(t *testing.T) {
	store := openTestStore(t)
	if err := store.RecordRun(Run{ID: "run-1", Mode: "watch", ToolVersion: "1.0.0"}); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.cppm", "b.cppm", "c.cppm"} {
		err := store.RecordTranslation(Translation{
			RunID:       "run-1",
			UnitPath:    name,
			ToolVersion: "1.0.0",
			Status:      StatusTranslated,
			Duration:    time.Duration(i+1) * time.Millisecond,
			Timestamp:   base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	rows, err := store.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].UnitPath != "c.cppm" || rows[1].UnitPath != "b.cppm" {
		t.Fatalf("expected newest first, got %s, %s", rows[0].UnitPath, rows[1].UnitPath)
	}
	if rows[0].Duration != 3*time.Millisecond {
		t.Fatalf("expected duration to roundtrip, got %v", rows[0].Duration)
	}
}

func TestStore_Forget(t *testing.T) {
	store := openTestStore(t)
	if err := store.RecordRun(Run{ID: "run-1", Mode: "once", ToolVersion: "1.0.0"}); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordTranslation(Translation{RunID: "run-1", UnitPath: "gone.cppm", ToolVersion: "1.0.0", Status: StatusTranslated}); err != nil {
		t.Fatal(err)
	}
	if err := store.Forget("gone.cppm"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, ok, err := store.Lookup("gone.cppm"); err != nil || ok {
		t.Fatalf("expected record to be gone, ok=%v err=%v", ok, err)
	}
}

func TestStore_RecordTranslationRequiresRun(t *testing.T) {
	store := openTestStore(t)
	err := store.RecordTranslation(Translation{RunID: "missing", UnitPath: "x.cppm", ToolVersion: "1.0.0", Status: StatusTranslated})
	if err == nil {
		t.Fatal("expected foreign key error for unknown run")
	}
}

func TestStore_OpenRejectsDirectoryPath(t *testing.T) {
	tmpDir := t.TempDir()
	_, err := Open(tmpDir, 0)
	if err == nil {
		t.Fatal("expected open error for directory path")
	}
	if !strings.Contains(err.Error(), "is a directory") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_OpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open("  ", 0); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestStore_OpenCorruptDBPath(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "history.db")
	if err := os.WriteFile(path, []byte("this is not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path, 0)
	if err == nil {
		t.Fatal("expected sqlite open error")
	}
	lower := strings.ToLower(err.Error())
	if !strings.Contains(lower, "not a database") && !strings.Contains(lower, "schema") {
		t.Fatalf("expected schema/open error, got: %v", err)
	}
}

func TestEnsureSchema_DetectsNewerVersionDrift(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "history.db")
	store, err := Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	_, err = store.db.Exec(`INSERT OR REPLACE INTO schema_migrations(version) VALUES (?)`, SchemaVersion+1)
	if err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open(driverName, "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	err = EnsureSchema(db)
	if err == nil {
		t.Fatal("expected drift error")
	}
	if !strings.Contains(err.Error(), "newer than supported") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsCorruptError(t *testing.T) {
	if !IsCorruptError(errors.New("database disk image is malformed")) {
		t.Fatal("expected malformed sqlite message to be treated as corrupt")
	}
	if IsCorruptError(nil) {
		t.Fatal("nil is not a corrupt error")
	}
}
