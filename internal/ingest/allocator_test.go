package ingest

import (
	"errors"
	"math"
	"testing"
)

func TestAllocatorStartsAfterHighWater(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		highWater int64
		want      int64
	}{
		"empty store": {highWater: 0, want: 1},
		"populated":   {highWater: 499, want: 500},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			alloc, err := NewAllocator(tc.highWater)
			if err != nil {
				t.Fatalf("NewAllocator returned error: %v", err)
			}
			if got := alloc.Peek(); got != tc.want {
				t.Fatalf("expected first id %d, got %d", tc.want, got)
			}
		})
	}
}

func TestAllocatorBlocksAreContiguous(t *testing.T) {
	t.Parallel()

	alloc, err := NewAllocator(499)
	if err != nil {
		t.Fatalf("NewAllocator returned error: %v", err)
	}

	expected := []struct {
		size  int
		start int64
	}{
		{size: 2, start: 500},
		{size: 1, start: 502},
		{size: 0, start: 503},
		{size: 5, start: 503},
	}

	for _, step := range expected {
		start, err := alloc.NextBlock(step.size)
		if err != nil {
			t.Fatalf("NextBlock(%d) returned error: %v", step.size, err)
		}
		if start != step.start {
			t.Fatalf("expected block of %d to start at %d, got %d", step.size, step.start, start)
		}
	}

	if alloc.Peek() != 508 {
		t.Fatalf("expected next id 508, got %d", alloc.Peek())
	}
}

func TestAllocatorRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	if _, err := NewAllocator(-1); err == nil {
		t.Fatalf("expected error for negative high-water mark")
	}

	if _, err := NewAllocator(math.MaxInt64); !errors.Is(err, ErrIdentifierOverflow) {
		t.Fatalf("expected overflow error for max high-water mark, got %v", err)
	}

	alloc, err := NewAllocator(0)
	if err != nil {
		t.Fatalf("NewAllocator returned error: %v", err)
	}
	if _, err := alloc.NextBlock(-1); err == nil {
		t.Fatalf("expected error for negative block size")
	}
}

func TestAllocatorOverflowIsFatal(t *testing.T) {
	t.Parallel()

	alloc, err := NewAllocator(math.MaxInt64 - 3)
	if err != nil {
		t.Fatalf("NewAllocator returned error: %v", err)
	}

	if _, err := alloc.NextBlock(3); !errors.Is(err, ErrIdentifierOverflow) {
		t.Fatalf("expected ErrIdentifierOverflow, got %v", err)
	}
	if alloc.Peek() != math.MaxInt64-2 {
		t.Fatalf("failed allocation must not advance the counter, got %d", alloc.Peek())
	}

	if _, err := alloc.NextBlock(2); err != nil {
		t.Fatalf("expected a block that fits the remaining range to succeed, got %v", err)
	}
}
