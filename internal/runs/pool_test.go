package runs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestClampWorkers(t *testing.T) {
	cases := []struct {
		requested int
		want      int
	}{
		{-2, 1},
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 3},
		{9, 3},
	}
	for _, tc := range cases {
		if got := clampWorkers(tc.requested); got != tc.want {
			t.Errorf("clampWorkers(%d) = %d, want %d", tc.requested, got, tc.want)
		}
	}
}

func TestRunPoolClaimsEachPromptOnce(t *testing.T) {
	prompts := make([]string, 17)
	for i := range prompts {
		prompts[i] = fmt.Sprintf("prompt %d", i)
	}

	var mu sync.Mutex
	claims := make(map[int]int)
	err := runPool(context.Background(), prompts, 3, func(ctx context.Context, index int, prompt string) error {
		mu.Lock()
		claims[index]++
		mu.Unlock()
		time.Sleep(time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("runPool returned %v", err)
	}
	if len(claims) != len(prompts) {
		t.Fatalf("claimed %d prompts, want %d", len(claims), len(prompts))
	}
	for index, count := range claims {
		if count != 1 {
			t.Errorf("prompt %d claimed %d times", index, count)
		}
	}
}

func TestRunPoolSingleWorkerPreservesOrder(t *testing.T) {
	prompts := []string{"a", "b", "c", "d"}
	var got []int
	err := runPool(context.Background(), prompts, 1, func(ctx context.Context, index int, prompt string) error {
		got = append(got, index)
		return nil
	})
	if err != nil {
		t.Fatalf("runPool returned %v", err)
	}
	if len(got) != len(prompts) {
		t.Fatalf("claimed %d prompts, want %d", len(got), len(prompts))
	}
	for i, index := range got {
		if index != i {
			t.Fatalf("claim order %v, want sequential", got)
		}
	}
}

func TestRunPoolStopsAfterError(t *testing.T) {
	prompts := []string{"a", "b", "c", "d", "e"}
	boom := errors.New("provider unreachable")
	calls := 0
	err := runPool(context.Background(), prompts, 1, func(ctx context.Context, index int, prompt string) error {
		calls++
		if index == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("runPool error = %v, want %v", err, boom)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRunPoolErrorStopsOtherWorkers(t *testing.T) {
	prompts := []string{"a", "b", "c", "d", "e", "f"}
	boom := errors.New("provider unreachable")

	var mu sync.Mutex
	claimed := make(map[int]bool)
	err := runPool(context.Background(), prompts, 2, func(ctx context.Context, index int, prompt string) error {
		mu.Lock()
		claimed[index] = true
		mu.Unlock()
		switch index {
		case 0:
			<-ctx.Done()
			return ctx.Err()
		case 1:
			return boom
		default:
			return nil
		}
	})
	if !errors.Is(err, boom) {
		t.Fatalf("runPool error = %v, want %v", err, boom)
	}
	mu.Lock()
	defer mu.Unlock()
	if !claimed[0] || !claimed[1] {
		t.Fatalf("claimed = %v, want prompts 0 and 1", claimed)
	}
	if len(claimed) != 2 {
		t.Fatalf("claimed %d prompts after abort, want 2: %v", len(claimed), claimed)
	}
}

func TestRunPoolCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int64
	err := runPool(ctx, []string{"a", "b"}, 2, func(ctx context.Context, index int, prompt string) error {
		calls.Add(1)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("runPool error = %v, want context.Canceled", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("calls = %d, want 0", calls.Load())
	}
}

func TestRunPoolEmptyBatch(t *testing.T) {
	err := runPool(context.Background(), nil, 3, func(ctx context.Context, index int, prompt string) error {
		t.Fatal("claim on empty batch")
		return nil
	})
	if err != nil {
		t.Fatalf("runPool returned %v", err)
	}
}
