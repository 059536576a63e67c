package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "stats.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListJobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.RecordStart(ctx, "j1", "p1", "scene_render"); err != nil {
		t.Fatalf("RecordStart: %v", err)
	}
	if err := store.RecordStart(ctx, "j2", "p1", "lipsync"); err != nil {
		t.Fatalf("RecordStart: %v", err)
	}
	if err := store.RecordStart(ctx, "j3", "p2", "music"); err != nil {
		t.Fatalf("RecordStart: %v", err)
	}

	if err := store.RecordFinish(ctx, "j1", nil); err != nil {
		t.Fatalf("RecordFinish: %v", err)
	}
	if err := store.RecordFinish(ctx, "j2", errors.New("render timed out")); err != nil {
		t.Fatalf("RecordFinish: %v", err)
	}

	jobs, err := store.RecentJobs(ctx, "p1", 10)
	if err != nil {
		t.Fatalf("RecentJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("RecentJobs(p1) = %d jobs, want 2", len(jobs))
	}

	byID := map[string]JobRecord{}
	for _, j := range jobs {
		byID[j.ID] = j
	}
	if byID["j1"].Status != "completed" || byID["j1"].FinishedAt == nil {
		t.Errorf("j1 = %+v, want completed with finish time", byID["j1"])
	}
	if byID["j2"].Status != "failed" || byID["j2"].Error != "render timed out" {
		t.Errorf("j2 = %+v, want failed with error message", byID["j2"])
	}

	all, err := store.RecentJobs(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("RecentJobs(all) = %d, want 3", len(all))
	}
}

func TestCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.RecordStart(ctx, "j1", "p1", "scene_render")
	store.RecordStart(ctx, "j2", "p1", "scene_render")
	store.RecordStart(ctx, "j3", "p1", "compose")
	store.RecordFinish(ctx, "j1", nil)
	store.RecordFinish(ctx, "j2", errors.New("boom"))

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	want := JobCounts{Total: 3, Running: 1, Completed: 1, Failed: 1}
	if *counts != want {
		t.Errorf("Counts = %+v, want %+v", *counts, want)
	}
}
