package store

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/aluiziolira/go-harvest/models"
)

// countFunc reports how many output records a backend holds.
type countFunc func(t *testing.T) int

// testGatewayContract runs the behaviour every backend must share.
func testGatewayContract(t *testing.T, g Gateway, countOutput countFunc) {
	t.Helper()
	ctx := context.Background()

	if _, err := g.Load(ctx); !errors.Is(err, ErrInputNotSet) {
		t.Fatalf("Load on empty input: got %v, want ErrInputNotSet", err)
	}
	if err := g.SetInput(ctx, nil); !errors.Is(err, ErrEmptySource) {
		t.Fatalf("SetInput(nil): got %v, want ErrEmptySource", err)
	}

	input := []models.Record{{"url": "a"}, {"url": "b"}, {"url": "c"}, {"url": "a"}}
	if err := g.SetInput(ctx, input); err != nil {
		t.Fatalf("SetInput: %v", err)
	}

	seed, err := g.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := sorted(seed.Input); !equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("input = %v, want [a b c]", got)
	}
	if len(seed.Output) != 0 {
		t.Fatalf("output = %v, want empty", seed.Output)
	}

	if err := g.AppendOutput(ctx, nil); err != nil {
		t.Fatalf("AppendOutput(nil): %v", err)
	}
	// One response for b yields three records sharing its url.
	batch := []models.Record{
		{"url": "b", "name": "B1"},
		{"url": "b", "name": "B2"},
		{"url": "b", "name": "B3"},
		{"url": "c", "name": "C"},
	}
	if err := g.AppendOutput(ctx, batch); err != nil {
		t.Fatalf("AppendOutput: %v", err)
	}
	if got := countOutput(t); got != len(batch) {
		t.Fatalf("output records = %d, want %d", got, len(batch))
	}
	// A repeated append after a crash must not duplicate output.
	if err := g.AppendOutput(ctx, batch); err != nil {
		t.Fatalf("AppendOutput repeat: %v", err)
	}
	if got := countOutput(t); got != len(batch) {
		t.Fatalf("output records after repeat = %d, want %d", got, len(batch))
	}

	entry := models.ErrorEntry{Message: "HTTP ERROR 500: a", Target: "a", Timestamp: time.Now().UTC()}
	if err := g.AppendError(ctx, entry); err != nil {
		t.Fatalf("AppendError: %v", err)
	}
	if err := g.AppendFatalError(ctx, entry); err != nil {
		t.Fatalf("AppendFatalError: %v", err)
	}

	seed, err = g.Load(ctx)
	if err != nil {
		t.Fatalf("Load after append: %v", err)
	}
	if got := sorted(seed.Output); !equal(got, []string{"b", "c"}) {
		t.Fatalf("output = %v, want [b c]", got)
	}
}

func sorted(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
