package ingest

import (
	"math"

	"github.com/rotisserie/eris"
)

// Allocator predicts identifiers that the store assigns sequentially. It is only valid while
// this process is the sole writer of the identifier space.
type Allocator struct {
	next int64
}

// NewAllocator seeds the allocator from the current maximum identifier in the store (0 when
// empty). The first predicted identifier is highWater+1.
func NewAllocator(highWater int64) (*Allocator, error) {
	if highWater < 0 {
		return nil, eris.Errorf("identifier high-water mark must not be negative, got %d", highWater)
	}
	if highWater == math.MaxInt64 {
		return nil, eris.Wrapf(ErrIdentifierOverflow, "high-water mark %d", highWater)
	}
	return &Allocator{next: highWater + 1}, nil
}

// Peek returns the first identifier of the next block without reserving it.
func (a *Allocator) Peek() int64 {
	return a.next
}

// NextBlock returns the first identifier of a contiguous block of n and advances past it.
func (a *Allocator) NextBlock(n int) (int64, error) {
	if n < 0 {
		return 0, eris.Errorf("block size must not be negative, got %d", n)
	}

	start := a.next
	if int64(n) > math.MaxInt64-start {
		return 0, eris.Wrapf(ErrIdentifierOverflow, "block of %d from %d", n, start)
	}

	a.next += int64(n)
	return start, nil
}
