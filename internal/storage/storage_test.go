package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "data", "journal.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndList(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	inv := &Invocation{
		RequestID:  "req-1",
		Tool:       "stop_container",
		Arguments:  map[string]any{"container_id": "web", "timeout": float64(5)},
		Outcome:    OutcomeOK,
		DurationMS: 12,
	}
	if err := store.Record(ctx, inv); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if inv.ID == "" {
		t.Error("Record did not assign an ID")
	}

	list, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("List count = %d, want 1", len(list))
	}
	got := list[0]
	if got.ID != inv.ID {
		t.Errorf("ID = %q, want %q", got.ID, inv.ID)
	}
	if got.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want %q", got.RequestID, "req-1")
	}
	if got.Arguments["container_id"] != "web" || got.Arguments["timeout"] != float64(5) {
		t.Errorf("Arguments = %v", got.Arguments)
	}
	if !got.CreatedAt.Equal(inv.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, inv.CreatedAt)
	}
}

func TestList_FilterAndOrder(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	records := []struct {
		tool    string
		outcome string
		offset  time.Duration
	}{
		{"list_containers", OutcomeOK, 0},
		{"start_container", OutcomeToolError, time.Minute},
		{"list_containers", OutcomeRuntimeError, 2 * time.Minute},
		{"list_containers", OutcomeOK, 3 * time.Minute},
	}
	for _, r := range records {
		inv := &Invocation{Tool: r.tool, Outcome: r.outcome, CreatedAt: base.Add(r.offset)}
		if err := store.Record(ctx, inv); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	tests := []struct {
		name      string
		opts      ListOptions
		wantCount int
		wantFirst string
	}{
		{"all newest first", ListOptions{}, 4, OutcomeOK},
		{"filter by tool", ListOptions{Tool: "start_container"}, 1, OutcomeToolError},
		{"limit", ListOptions{Tool: "list_containers", Limit: 2}, 2, OutcomeOK},
		{"no match", ListOptions{Tool: "pull_image"}, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := store.List(ctx, tt.opts)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(list) != tt.wantCount {
				t.Fatalf("List count = %d, want %d", len(list), tt.wantCount)
			}
			if tt.wantCount > 0 && list[0].Outcome != tt.wantFirst {
				t.Errorf("first outcome = %q, want %q", list[0].Outcome, tt.wantFirst)
			}
			for i := 1; i < len(list); i++ {
				if list[i].CreatedAt.After(list[i-1].CreatedAt) {
					t.Errorf("list not sorted newest first at %d", i)
				}
			}
		})
	}
}

func TestPrune(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, age := range []time.Duration{10 * 24 * time.Hour, 8 * 24 * time.Hour, time.Hour} {
		if err := store.Record(ctx, &Invocation{Tool: "ping", Outcome: OutcomeOK, CreatedAt: now.Add(-age)}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	removed, err := store.Prune(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	list, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("remaining = %d, want 1", len(list))
	}
}

func TestRecord_Concurrent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Record(ctx, &Invocation{Tool: "list_images", Outcome: OutcomeOK})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Record failed: %v", err)
		}
	}

	list, err := store.List(ctx, ListOptions{Limit: 100})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 20 {
		t.Errorf("List count = %d, want 20", len(list))
	}
}
