package cascade

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func provider(name string, result string, err error) Provider[string, string] {
	return Provider[string, string]{
		Name: name,
		Call: func(ctx context.Context, req string) (string, error) {
			return result, err
		},
	}
}

func TestFirstValidatedSuccessWins(t *testing.T) {
	c := &Cascade[string, string]{
		Capability: "narration",
		Providers: []Provider[string, string]{
			provider("a", "", errors.New("boom")),
			provider("b", "too-short", nil), // fails validation
			provider("c", "valid-result", nil),
			provider("d", "never-called", nil),
		},
		Validate: func(res string) error {
			if len(res) < 10 {
				return fmt.Errorf("result too short: %q", res)
			}
			return nil
		},
	}

	result, err := c.Run(context.Background(), "req")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Value != "valid-result" {
		t.Errorf("expected c's result, got %q", result.Value)
	}
	if result.Provider != "c" {
		t.Errorf("expected provider c, got %q", result.Provider)
	}

	want := []string{"a", "b", "c"}
	if len(result.Attempted) != len(want) {
		t.Fatalf("attempted = %v, want %v", result.Attempted, want)
	}
	for i, name := range want {
		if result.Attempted[i] != name {
			t.Errorf("attempted[%d] = %q, want %q", i, result.Attempted[i], name)
		}
	}
}

func TestAllProvidersFailReturnsExhausted(t *testing.T) {
	c := &Cascade[string, string]{
		Capability: "image-search",
		Providers: []Provider[string, string]{
			provider("a", "", errors.New("down")),
			provider("b", "", errors.New("quota")),
		},
	}

	_, err := c.Run(context.Background(), "req")
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestInvalidResultsCountAsFailures(t *testing.T) {
	c := &Cascade[string, int]{
		Capability: "coverage",
		Providers: []Provider[string, int]{
			{Name: "zero", Call: func(ctx context.Context, req string) (int, error) { return 0, nil }},
		},
		Validate: func(n int) error {
			if n == 0 {
				return errors.New("empty result")
			}
			return nil
		},
	}

	_, err := c.Run(context.Background(), "req")
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted for invalid-only results, got %v", err)
	}
}

func TestNoProvidersIsExhausted(t *testing.T) {
	c := &Cascade[string, string]{Capability: "empty"}

	_, err := c.Run(context.Background(), "req")
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestCancelledContextAbortsCascade(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	c := &Cascade[string, string]{
		Capability: "narration",
		Providers: []Provider[string, string]{
			{Name: "a", Call: func(ctx context.Context, req string) (string, error) {
				called = true
				return "x", nil
			}},
		},
	}

	_, err := c.Run(ctx, "req")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("provider should not run after cancellation")
	}
}

func TestPerCallTimeoutDoesNotStallCascade(t *testing.T) {
	c := &Cascade[string, string]{
		Capability:  "search",
		CallTimeout: 20 * time.Millisecond,
		Providers: []Provider[string, string]{
			{Name: "slow", Call: func(ctx context.Context, req string) (string, error) {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(5 * time.Second):
					return "too-late", nil
				}
			}},
			provider("fast", "recovered", nil),
		},
	}

	start := time.Now()
	result, err := c.Run(context.Background(), "req")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Provider != "fast" {
		t.Errorf("expected fallback to fast, got %q", result.Provider)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("slow provider stalled the cascade for %v", elapsed)
	}
}
