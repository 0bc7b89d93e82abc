package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/searchgal/searchgal/internal/search"
	"github.com/searchgal/searchgal/internal/testutil"
)

func newTestService(t *testing.T) (*Service, func()) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	return NewService(tdb.Conn, tdb.Logger), tdb.Close
}

func TestHistoryService_Create(t *testing.T) {
	service, done := newTestService(t)
	defer done()
	ctx := context.Background()

	entry, err := service.Create(ctx, CreateInput{Game: "Clannad", Mode: search.ModePatch})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if entry.ID == "" {
		t.Error("Create() entry.ID is empty, want generated uuid")
	}
	if entry.Status != StatusRunning {
		t.Errorf("Create() Status = %q, want %q", entry.Status, StatusRunning)
	}
	if entry.Mode != "patch" {
		t.Errorf("Create() Mode = %q, want patch", entry.Mode)
	}

	if _, err := service.Create(ctx, CreateInput{Game: "  "}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Create() with empty game error = %v, want ErrInvalidInput", err)
	}
}

func TestHistoryService_RecordsFullSearch(t *testing.T) {
	service, done := newTestService(t)
	defer done()
	ctx := context.Background()

	entry, err := service.Create(ctx, CreateInput{ID: "search-1", Game: "Clannad"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	results := []search.PlatformResult{
		{
			Name:  "P1",
			Color: search.ColorLime,
			URL:   "https://p1.example",
			Items: []search.Item{{Platform: "P1", Title: "Clannad JP", URL: "https://p1.example/x", Tags: []string{}}},
		},
		{Name: "P2", Color: search.ColorRed, Items: []search.Item{}, Error: "timeout"},
	}
	for i, r := range results {
		if err := service.UpdateProgress(ctx, entry.ID, i+1, 2); err != nil {
			t.Fatalf("UpdateProgress() error = %v", err)
		}
		if err := service.AddPlatform(ctx, entry.ID, r); err != nil {
			t.Fatalf("AddPlatform() error = %v", err)
		}
	}
	if err := service.Finish(ctx, entry.ID, StatusCompleted, ""); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	got, err := service.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusCompleted || got.FinishedAt == nil {
		t.Errorf("Get() status = %q finishedAt = %v, want completed with time", got.Status, got.FinishedAt)
	}
	if got.Completed != 2 || got.Total != 2 {
		t.Errorf("Get() progress = %d/%d, want 2/2", got.Completed, got.Total)
	}
	if got.PlatformCount != 2 || got.ItemCount != 1 {
		t.Errorf("Get() counts = %d platforms %d items, want 2 and 1", got.PlatformCount, got.ItemCount)
	}
	if len(got.Platforms) != 2 {
		t.Fatalf("Get() platforms = %d, want 2", len(got.Platforms))
	}
	if got.Platforms[0].Name != "P1" || got.Platforms[0].Items[0].Title != "Clannad JP" {
		t.Errorf("Get() first platform = %+v", got.Platforms[0])
	}
	if got.Platforms[1].Color != search.ColorRed || got.Platforms[1].Error != "timeout" {
		t.Errorf("Get() second platform = %+v", got.Platforms[1])
	}
}

func TestHistoryService_NotFound(t *testing.T) {
	service, done := newTestService(t)
	defer done()
	ctx := context.Background()

	if _, err := service.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := service.UpdateProgress(ctx, "missing", 1, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateProgress() error = %v, want ErrNotFound", err)
	}
	if err := service.AddPlatform(ctx, "missing", search.PlatformResult{Name: "P1"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddPlatform() error = %v, want ErrNotFound", err)
	}
	if err := service.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestHistoryService_FinishRejectsRunning(t *testing.T) {
	service, done := newTestService(t)
	defer done()

	err := service.Finish(context.Background(), "any", StatusRunning, "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Finish(running) error = %v, want ErrInvalidInput", err)
	}
}

func TestHistoryService_ListPagination(t *testing.T) {
	service, done := newTestService(t)
	defer done()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		service.now = func() time.Time { return at }
		game := fmt.Sprintf("Game %d", i)
		if i%2 == 0 {
			game = fmt.Sprintf("Little Busters %d", i)
		}
		if _, err := service.Create(ctx, CreateInput{ID: fmt.Sprintf("s%d", i), Game: game}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if err := service.Finish(ctx, "s4", StatusCancelled, ""); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	tests := []struct {
		name      string
		opts      ListOptions
		wantIDs   []string
		wantTotal int64
		wantPages int
	}{
		{"defaults newest first", ListOptions{}, []string{"s4", "s3", "s2", "s1", "s0"}, 5, 1},
		{"second page", ListOptions{Page: 2, PageSize: 2}, []string{"s2", "s1"}, 5, 3},
		{"game filter", ListOptions{Game: "little"}, []string{"s4", "s2", "s0"}, 3, 1},
		{"status filter", ListOptions{Status: "cancelled"}, []string{"s4"}, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := service.List(ctx, tt.opts)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			ids := make([]string, len(resp.Items))
			for i, e := range resp.Items {
				ids[i] = e.ID
			}
			if fmt.Sprint(ids) != fmt.Sprint(tt.wantIDs) {
				t.Errorf("List() ids = %v, want %v", ids, tt.wantIDs)
			}
			if resp.TotalCount != tt.wantTotal || resp.TotalPages != tt.wantPages {
				t.Errorf("List() total = %d pages = %d, want %d and %d", resp.TotalCount, resp.TotalPages, tt.wantTotal, tt.wantPages)
			}
		})
	}

	resp, err := service.List(ctx, ListOptions{PageSize: 1000})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if resp.PageSize != maxPageSize {
		t.Errorf("List() PageSize = %d, want %d", resp.PageSize, maxPageSize)
	}
}

func TestHistoryService_PruneKeepsRecentAndRunning(t *testing.T) {
	service, done := newTestService(t)
	defer done()
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -40)
	service.now = func() time.Time { return old }
	for _, id := range []string{"old-done", "old-running"} {
		if _, err := service.Create(ctx, CreateInput{ID: id, Game: "Clannad"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if err := service.AddPlatform(ctx, "old-done", search.PlatformResult{Name: "P1"}); err != nil {
		t.Fatalf("AddPlatform() error = %v", err)
	}
	if err := service.Finish(ctx, "old-done", StatusCompleted, ""); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	service.now = func() time.Time { return time.Now().UTC() }
	if _, err := service.Create(ctx, CreateInput{ID: "recent", Game: "Clannad"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := service.Finish(ctx, "recent", StatusFailed, "boom"); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	n, err := service.Prune(ctx, time.Now().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() deleted = %d, want 1", n)
	}
	if _, err := service.Get(ctx, "old-done"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(old-done) error = %v, want ErrNotFound", err)
	}
	if _, err := service.Get(ctx, "old-running"); err != nil {
		t.Errorf("Get(old-running) error = %v", err)
	}

	var platforms int
	if err := service.db.QueryRow(`SELECT COUNT(*) FROM search_platforms`).Scan(&platforms); err != nil {
		t.Fatalf("count platforms: %v", err)
	}
	if platforms != 0 {
		t.Errorf("platform rows after prune = %d, want 0 (cascade)", platforms)
	}
}

func TestHistoryService_MarkInterrupted(t *testing.T) {
	service, done := newTestService(t)
	defer done()
	ctx := context.Background()

	if _, err := service.Create(ctx, CreateInput{ID: "s1", Game: "Clannad"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	n, err := service.MarkInterrupted(ctx)
	if err != nil || n != 1 {
		t.Fatalf("MarkInterrupted() = %d, %v, want 1", n, err)
	}
	got, _ := service.Get(ctx, "s1")
	if got.Status != StatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
}
