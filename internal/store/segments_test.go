package store

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSegmentPath(t *testing.T) {
	dir := t.TempDir()
	want := filepath.Join(dir, "7.log")
	if got := segmentPath(dir, 7); got != want {
		t.Fatalf("segmentPath: want %q, got %q", want, got)
	}
}

func TestSortedSegmentIDsIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"3.log", "1.log", "10.log", "2.log", "notes.txt", "abc.log", ".log", "kvs.hint"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	// A directory that happens to match the naming convention is skipped too.
	if err := os.Mkdir(filepath.Join(dir, "7.log"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	ids, err := sortedSegmentIDs(dir)
	if err != nil {
		t.Fatalf("sortedSegmentIDs: %v", err)
	}
	want := []uint64{1, 2, 3, 10}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("want %v, got %v", want, ids)
	}
}

func TestOpenCreatesFreshActiveSegment(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)
	if s.writer.id != 1 {
		t.Fatalf("first active segment: want 1, got %d", s.writer.id)
	}
	if _, err := os.Stat(segmentPath(dir, 1)); err != nil {
		t.Fatalf("active segment file missing: %v", err)
	}
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Each open allocates a new segment above everything on disk.
	s = openTestStore(t, dir)
	defer s.Close()
	if s.writer.id != 2 {
		t.Fatalf("second active segment: want 2, got %d", s.writer.id)
	}
	if _, err := os.Stat(segmentPath(dir, 2)); err != nil {
		t.Fatalf("new active segment file missing: %v", err)
	}
}

func TestReplayAbortsOnTruncatedRecord(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := os.Remove(hintPath(dir)); err != nil {
		t.Fatalf("remove hint: %v", err)
	}

	f, err := os.OpenFile(segmentPath(dir, 1), os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatalf("open segment: %v", err)
	}
	if _, err := f.WriteString(`{"type":"set","key":"tr`); err != nil {
		t.Fatalf("append truncated record: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close segment: %v", err)
	}

	if _, err := Open(dir); err == nil {
		t.Fatalf("open succeeded on a truncated log")
	}
}
