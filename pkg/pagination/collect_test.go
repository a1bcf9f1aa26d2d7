package pagination

import (
	"context"
	"errors"
	"testing"
	"time"
)

// source serves total integers in pages and records the requests it saw.
type source struct {
	total    int
	failAt   int // offset that fails; -1 never
	requests [][2]int
}

func (s *source) fetch(ctx context.Context, limit, offset int) ([]int, error) {
	s.requests = append(s.requests, [2]int{limit, offset})
	if offset == s.failAt {
		return nil, errors.New("upstream unavailable")
	}
	var page []int
	for i := offset; i < offset+limit && i < s.total; i++ {
		page = append(page, i)
	}
	return page, nil
}

func TestCollect(t *testing.T) {
	tests := []struct {
		name         string
		total        int
		pageSize     int
		maxItems     int
		wantItems    int
		wantRequests int
	}{
		{"empty list", 0, 10, 0, 0, 1},
		{"single short page", 7, 10, 0, 7, 1},
		{"exact multiple needs trailing empty page", 20, 10, 0, 20, 3},
		{"several pages", 25, 10, 0, 25, 3},
		{"max items mid page", 25, 10, 15, 15, 2},
		{"max items on page boundary", 25, 10, 20, 20, 2},
		{"max items above total", 5, 10, 50, 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &source{total: tt.total, failAt: -1}

			items, err := Collect(context.Background(), src.fetch, Config{PageSize: tt.pageSize, MaxItems: tt.maxItems})
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			if len(items) != tt.wantItems {
				t.Errorf("len(items) = %d, want %d", len(items), tt.wantItems)
			}
			for i, v := range items {
				if v != i {
					t.Fatalf("items[%d] = %d, want %d", i, v, i)
				}
			}
			if len(src.requests) != tt.wantRequests {
				t.Errorf("requests = %v, want %d requests", src.requests, tt.wantRequests)
			}
		})
	}
}

func TestCollect_OffsetsAdvanceByPageSize(t *testing.T) {
	src := &source{total: 250, failAt: -1}

	if _, err := Collect(context.Background(), src.fetch, DefaultConfig()); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	want := [][2]int{{100, 0}, {100, 100}, {100, 200}}
	if len(src.requests) != len(want) {
		t.Fatalf("requests = %v, want %v", src.requests, want)
	}
	for i := range want {
		if src.requests[i] != want[i] {
			t.Errorf("request %d = %v, want %v", i, src.requests[i], want[i])
		}
	}
}

func TestCollect_LastPageLimitedByMaxItems(t *testing.T) {
	src := &source{total: 100, failAt: -1}

	Collect(context.Background(), src.fetch, Config{PageSize: 10, MaxItems: 15})

	if got := src.requests[len(src.requests)-1]; got != [2]int{5, 10} {
		t.Errorf("last request = %v, want limit 5 at offset 10", got)
	}
}

func TestCollect_PartialResultsOnError(t *testing.T) {
	src := &source{total: 100, failAt: 20}

	items, err := Collect(context.Background(), src.fetch, Config{PageSize: 10})
	if err == nil {
		t.Fatal("Collect() error = nil, want page failure")
	}
	if len(items) != 20 {
		t.Errorf("len(items) = %d, want 20 collected before the failure", len(items))
	}
}

func TestCollect_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fetch := func(ctx context.Context, limit, offset int) ([]int, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return make([]int, limit), nil
	}

	items, err := Collect(ctx, fetch, Config{PageSize: 5})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Collect() error = %v, want context.Canceled", err)
	}
	if len(items) != 10 {
		t.Errorf("len(items) = %d, want 10", len(items))
	}
}

func TestCollect_OnProgress(t *testing.T) {
	src := &source{total: 25, failAt: -1}
	var progress []int

	_, err := Collect(context.Background(), src.fetch, Config{
		PageSize:   10,
		OnProgress: func(total int) { progress = append(progress, total) },
	})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	want := []int{10, 20, 25}
	if len(progress) != len(want) {
		t.Fatalf("progress = %v, want %v", progress, want)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Errorf("progress = %v, want %v", progress, want)
		}
	}
}

func TestCollect_PageTimeout(t *testing.T) {
	fetch := func(ctx context.Context, limit, offset int) ([]int, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return nil, nil
		}
	}

	start := time.Now()
	_, err := Collect(context.Background(), fetch, Config{PageSize: 10, Timeout: 20 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Collect() error = %v, want DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Collect() took %v, want per-page timeout", elapsed)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.PageSize != DefaultPageSize {
		t.Errorf("PageSize = %d, want %d", cfg.PageSize, DefaultPageSize)
	}
	if cfg.MaxItems != 0 {
		t.Errorf("MaxItems = %d, want 0 (no cap)", cfg.MaxItems)
	}
}
