package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenAndClose(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "state.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "state.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()
}

func TestCloseNilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close on nil db should not error: %v", err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "state.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := ValidateSchema(s.db); err != nil {
		t.Errorf("ValidateSchema after migrate: %v", err)
	}
	s.Close()

	s, err = Open(dbPath)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s.Close()
	if err := ValidateSchema(s.db); err != nil {
		t.Errorf("ValidateSchema after reopen: %v", err)
	}
}

func TestRecordSnapshotUpserts(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "state.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	first := Record{
		Profile:  "wallpaper1",
		Topology: "1920x1080@0,0",
		Path:     filepath.Join(tmpDir, "a.bmp"),
		Taken:    time.Unix(0, 1000),
	}
	if err := s.RecordSnapshot(first); err != nil {
		t.Fatalf("RecordSnapshot failed: %v", err)
	}

	second := first
	second.Path = filepath.Join(tmpDir, "b.bmp")
	second.Taken = time.Unix(0, 2000)
	if err := s.RecordSnapshot(second); err != nil {
		t.Fatalf("RecordSnapshot upsert failed: %v", err)
	}

	got, err := s.LatestForTopology("1920x1080@0,0")
	if err != nil {
		t.Fatalf("LatestForTopology failed: %v", err)
	}
	if got == nil {
		t.Fatal("LatestForTopology returned nil")
	}
	if got.Path != second.Path {
		t.Errorf("path = %q, want %q", got.Path, second.Path)
	}
	if got.Taken.UnixNano() != 2000 {
		t.Errorf("taken = %d, want 2000", got.Taken.UnixNano())
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&count); err != nil {
		t.Fatalf("count snapshots: %v", err)
	}
	if count != 1 {
		t.Errorf("snapshot rows = %d, want 1 after upsert", count)
	}
}

func TestLatestForTopologyMisses(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "state.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	got, err := s.LatestForTopology("3840x1080@0,0")
	if err != nil {
		t.Fatalf("LatestForTopology failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown topology, got %+v", got)
	}
}

func TestLatestPicksNewestAcrossTopologies(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "state.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	records := []Record{
		{Profile: "wallpaper", Topology: "old", Path: "old.bmp", Taken: time.Unix(0, 100)},
		{Profile: "wallpaper", Topology: "new", Path: "new.bmp", Taken: time.Unix(0, 300)},
		{Profile: "wallpaper2", Topology: "mid", Path: "mid.bmp", Taken: time.Unix(0, 200)},
	}
	for _, rec := range records {
		if err := s.RecordSnapshot(rec); err != nil {
			t.Fatalf("RecordSnapshot failed: %v", err)
		}
	}

	got, err := s.Latest()
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got == nil || got.Path != "new.bmp" {
		t.Errorf("Latest = %+v, want new.bmp", got)
	}
}

func TestApplyHistory(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "state.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if err := s.RecordApply("a.bmp", "topo", "boot"); err != nil {
		t.Fatalf("RecordApply failed: %v", err)
	}
	if err := s.RecordApply("b.bmp", "topo", "pause"); err != nil {
		t.Fatalf("RecordApply failed: %v", err)
	}
	if err := s.RecordApply("c.bmp", "topo", "shutdown"); err != nil {
		t.Fatalf("RecordApply failed: %v", err)
	}

	applies, err := s.RecentApplies(2)
	if err != nil {
		t.Fatalf("RecentApplies failed: %v", err)
	}
	if len(applies) != 2 {
		t.Fatalf("got %d applies, want 2", len(applies))
	}
	if applies[0].Path != "c.bmp" || applies[0].Reason != "shutdown" {
		t.Errorf("newest apply = %+v, want c.bmp/shutdown", applies[0])
	}
	if applies[1].Path != "b.bmp" {
		t.Errorf("second apply = %+v, want b.bmp", applies[1])
	}
}

func TestPruneMissing(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "state.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	keep := filepath.Join(tmpDir, "keep.bmp")
	if err := os.WriteFile(keep, []byte("bmp"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	records := []Record{
		{Profile: "wallpaper", Topology: "a", Path: keep, Taken: time.Unix(0, 1)},
		{Profile: "wallpaper", Topology: "b", Path: filepath.Join(tmpDir, "gone.bmp"), Taken: time.Unix(0, 2)},
		{Profile: "wallpaper2", Topology: "a", Path: filepath.Join(tmpDir, "gone2.bmp"), Taken: time.Unix(0, 3)},
	}
	for _, rec := range records {
		if err := s.RecordSnapshot(rec); err != nil {
			t.Fatalf("RecordSnapshot failed: %v", err)
		}
	}

	pruned, err := s.PruneMissing()
	if err != nil {
		t.Fatalf("PruneMissing failed: %v", err)
	}
	if pruned != 2 {
		t.Errorf("pruned = %d, want 2", pruned)
	}

	got, err := s.Latest()
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got == nil || got.Path != keep {
		t.Errorf("Latest after prune = %+v, want %s", got, keep)
	}
}
