package ingest

import (
	"github.com/rotisserie/eris"

	"wikiloader/app/internal/domain/dump"
)

// Accumulator buffers pages until a batch is full.
type Accumulator struct {
	size  int
	pages []dump.Page
}

// NewAccumulator returns an Accumulator that reports full at size pages.
func NewAccumulator(size int) (*Accumulator, error) {
	if size < 1 {
		return nil, eris.Errorf("batch size must be at least 1, got %d", size)
	}
	return &Accumulator{size: size, pages: make([]dump.Page, 0, size)}, nil
}

// Push appends a page to the current batch.
func (a *Accumulator) Push(page dump.Page) {
	a.pages = append(a.pages, page)
}

// Full reports whether the current batch reached the configured size.
func (a *Accumulator) Full() bool {
	return len(a.pages) >= a.size
}

func (a *Accumulator) Len() int {
	return len(a.pages)
}

// Drain returns the buffered pages in arrival order and starts a new batch.
func (a *Accumulator) Drain() []dump.Page {
	batch := a.pages
	a.pages = make([]dump.Page, 0, a.size)
	return batch
}
