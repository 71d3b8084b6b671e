package dump

import (
	"io"

	"github.com/rotisserie/eris"
)

// ErrDecode marks a malformed record in the input stream.
var ErrDecode = eris.New("malformed dump record")

// Source yields pages lazily. Next returns io.EOF once the stream is exhausted; any other
// error is fatal and the source must not be used afterwards.
type Source interface {
	Next() (Page, error)
}

// SliceSource serves pages from memory.
type SliceSource struct {
	pages []Page
	pos   int
}

// NewSliceSource returns a Source over the given pages.
func NewSliceSource(pages []Page) *SliceSource {
	return &SliceSource{pages: pages}
}

// Next returns the next page or io.EOF.
func (s *SliceSource) Next() (Page, error) {
	if s.pos >= len(s.pages) {
		return Page{}, io.EOF
	}
	page := s.pages[s.pos]
	s.pos++
	return page, nil
}

var _ Source = (*SliceSource)(nil)
