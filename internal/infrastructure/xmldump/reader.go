package xmldump

import (
	"encoding/xml"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"wikiloader/app/internal/domain/dump"
)

type xmlPage struct {
	Title     string        `xml:"title"`
	Namespace int           `xml:"ns"`
	ID        int64         `xml:"id"`
	Redirect  *xmlRedirect  `xml:"redirect"`
	Revisions []xmlRevision `xml:"revision"`
}

type xmlRedirect struct {
	Title string `xml:"title,attr"`
}

type xmlRevision struct {
	ID          int64          `xml:"id"`
	ParentID    string         `xml:"parentid"`
	Timestamp   string         `xml:"timestamp"`
	Contributor xmlContributor `xml:"contributor"`
	Minor       *struct{}      `xml:"minor"`
	Comment     string         `xml:"comment"`
	Model       string         `xml:"model"`
	Format      string         `xml:"format"`
	Text        xmlText        `xml:"text"`
	SHA1        string         `xml:"sha1"`
}

type xmlContributor struct {
	ID       int64  `xml:"id"`
	Username string `xml:"username"`
	IP       string `xml:"ip"`
}

type xmlText struct {
	Bytes string `xml:"bytes,attr"`
	Body  string `xml:",chardata"`
}

// Reader decodes <page> elements from a MediaWiki XML export one at a time.
type Reader struct {
	decoder *xml.Decoder
	closer  io.Closer
	pages   int64
}

// NewReader decodes pages from r. The stream may be compressed.
func NewReader(r io.Reader) (*Reader, error) {
	if r == nil {
		return nil, eris.New("dump reader is required")
	}

	stream, _, err := Decompress(r)
	if err != nil {
		return nil, eris.Wrap(err, "preparing dump stream")
	}

	return &Reader{
		decoder: xml.NewDecoder(stream),
		closer:  stream,
	}, nil
}

// Open opens the dump file at path.
func Open(path string) (*Reader, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, eris.New("dump path is required")
	}

	file, err := os.Open(trimmed)
	if err != nil {
		return nil, eris.Wrapf(err, "opening dump file: %s", trimmed)
	}

	reader, err := NewReader(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	reader.closer = multiCloser{reader.closer, file}

	return reader, nil
}

// Next returns the next page or io.EOF once the export is exhausted.
func (r *Reader) Next() (dump.Page, error) {
	for {
		token, err := r.decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return dump.Page{}, io.EOF
			}
			return dump.Page{}, eris.Wrapf(dump.ErrDecode, "reading token after page %d: %v", r.pages, err)
		}

		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "page" {
			continue
		}

		var raw xmlPage
		if err := r.decoder.DecodeElement(&raw, &start); err != nil {
			return dump.Page{}, eris.Wrapf(dump.ErrDecode, "decoding page %d: %v", r.pages+1, err)
		}

		page, err := toPage(raw)
		if err != nil {
			return dump.Page{}, err
		}

		r.pages++
		return page, nil
	}
}

// Pages returns how many pages have been decoded so far.
func (r *Reader) Pages() int64 {
	return r.pages
}

// Close releases the decompressor and the underlying file.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	if err := r.closer.Close(); err != nil {
		return eris.Wrap(err, "closing dump reader")
	}
	return nil
}

var _ dump.Source = (*Reader)(nil)

func toPage(raw xmlPage) (dump.Page, error) {
	page := dump.Page{
		Title:     raw.Title,
		Namespace: raw.Namespace,
		ID:        raw.ID,
		Revisions: make([]dump.Revision, 0, len(raw.Revisions)),
	}
	if raw.Redirect != nil {
		page.Redirect = raw.Redirect.Title
		if page.Redirect == "" {
			// <redirect/> without a title still marks the page as a redirect.
			page.Redirect = raw.Title
		}
	}

	for _, rev := range raw.Revisions {
		converted, err := toRevision(rev)
		if err != nil {
			return dump.Page{}, eris.Wrapf(err, "page %d", raw.ID)
		}
		page.Revisions = append(page.Revisions, converted)
	}

	return page, nil
}

func toRevision(raw xmlRevision) (dump.Revision, error) {
	rev := dump.Revision{
		ID:        raw.ID,
		Timestamp: strings.TrimSpace(raw.Timestamp),
		Contributor: dump.Contributor{
			ID:       raw.Contributor.ID,
			Username: raw.Contributor.Username,
			IP:       raw.Contributor.IP,
		},
		Minor:   raw.Minor != nil,
		Comment: raw.Comment,
		Model:   raw.Model,
		Format:  raw.Format,
		SHA1:    raw.SHA1,
		Text: dump.Text{
			Body:  raw.Text.Body,
			Bytes: int64(len(raw.Text.Body)),
		},
	}

	if parent := strings.TrimSpace(raw.ParentID); parent != "" {
		id, err := strconv.ParseInt(parent, 10, 64)
		if err != nil {
			return dump.Revision{}, eris.Wrapf(dump.ErrDecode, "revision %d parentid %q", raw.ID, parent)
		}
		rev.ParentID = &id
	}

	if declared := strings.TrimSpace(raw.Text.Bytes); declared != "" {
		size, err := strconv.ParseInt(declared, 10, 64)
		if err != nil {
			return dump.Revision{}, eris.Wrapf(dump.ErrDecode, "revision %d text bytes %q", raw.ID, declared)
		}
		rev.Text.Bytes = size
	}

	return rev, nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
