package ingest

import (
	"context"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"wikiloader/app/internal/data/mediawiki"
	"wikiloader/app/internal/domain/dump"
)

const (
	placeholderPageRandom  = 0.42
	placeholderPageTouched = 0
	defaultCommentID       = 1
	textFlags              = "utf-8"
	contentAddressPrefix   = "tt:"
)

// BatchWriter persists a mapped batch atomically.
type BatchWriter interface {
	WriteBatch(ctx context.Context, batch *mediawiki.Batch) error
}

// Block carries the first predicted store-assigned identifiers for a batch.
type Block struct {
	Text    int64
	Content int64
}

// ProjectorOptions configures a Projector.
type ProjectorOptions struct {
	Writer BatchWriter
	// Linker resolves rev_actor and slot_content_id; defaults to DefaultPlaceholderLinker.
	Linker Linker
	// CommentID is written to rev_comment_id; defaults to 1.
	CommentID int64
	Logger    *logrus.Logger
}

// Projector maps page records onto MediaWiki rows and writes them as one transaction.
type Projector struct {
	writer    BatchWriter
	linker    Linker
	commentID int64
	logger    *logrus.Logger
}

// NewProjector validates options and returns a Projector.
func NewProjector(opts ProjectorOptions) (*Projector, error) {
	if opts.Writer == nil {
		return nil, eris.New("batch writer is required")
	}

	linker := opts.Linker
	if linker == nil {
		linker = DefaultPlaceholderLinker()
	}

	commentID := opts.CommentID
	if commentID == 0 {
		commentID = defaultCommentID
	}

	return &Projector{
		writer:    opts.Writer,
		linker:    linker,
		commentID: commentID,
		logger:    opts.Logger,
	}, nil
}

// Project writes pages in a single transaction and returns how many were projected. The i-th
// page's text row is expected to receive block.Text+i. Mapping errors abort before the
// transaction opens.
func (p *Projector) Project(ctx context.Context, pages []dump.Page, block Block) (int, error) {
	if len(pages) == 0 {
		return 0, eris.New("batch is empty")
	}

	batch, err := p.Map(pages, block)
	if err != nil {
		return 0, err
	}

	if err := p.writer.WriteBatch(ctx, batch); err != nil {
		return 0, eris.Wrapf(err, "projecting %d pages from text id %d", len(pages), block.Text)
	}

	if p.logger != nil {
		p.logger.WithFields(logrus.Fields{
			"component":     "ingest.projector",
			"records":       len(pages),
			"text_id_start": block.Text,
		}).Debug("batch projected")
	}

	return len(pages), nil
}

// Map converts pages into index-aligned rows for all six tables.
func (p *Projector) Map(pages []dump.Page, block Block) (*mediawiki.Batch, error) {
	n := len(pages)
	batch := &mediawiki.Batch{
		Pages:        make([]mediawiki.PageRow, 0, n),
		Actors:       make([]mediawiki.ActorRow, 0, n),
		Revisions:    make([]mediawiki.RevisionRow, 0, n),
		Texts:        make([]mediawiki.TextRow, 0, n),
		Contents:     make([]mediawiki.ContentRow, 0, n),
		Slots:        make([]mediawiki.SlotRow, 0, n),
		TextStart:    block.Text,
		ContentStart: block.Content,
	}

	for i, page := range pages {
		rev, ok := page.Latest()
		if !ok {
			return nil, eris.Wrapf(ErrNoRevision, "page %d", page.ID)
		}

		timestamp, err := ParseTimestamp(rev.Timestamp)
		if err != nil {
			return nil, eris.Wrapf(err, "page %d revision %d", page.ID, rev.ID)
		}

		textID := block.Text + int64(i)
		contentID := block.Content + int64(i)

		batch.Pages = append(batch.Pages, mediawiki.PageRow{
			ID:         page.ID,
			Namespace:  page.Namespace,
			Title:      page.Title,
			IsRedirect: page.IsRedirect(),
			Random:     placeholderPageRandom,
			Touched:    placeholderPageTouched,
			Latest:     rev.ID,
			Len:        rev.Text.Bytes,
		})

		batch.Actors = append(batch.Actors, mediawiki.ActorRow{
			ID:   rev.Contributor.ID,
			Name: rev.Contributor.DisplayName(),
		})

		batch.Revisions = append(batch.Revisions, mediawiki.RevisionRow{
			ID:        rev.ID,
			PageID:    page.ID,
			CommentID: p.commentID,
			ActorID:   p.linker.RevisionActor(page, rev),
			Timestamp: timestamp,
			MinorEdit: rev.Minor,
			ParentID:  rev.ParentID,
			SHA1:      rev.SHA1,
		})

		batch.Texts = append(batch.Texts, mediawiki.TextRow{
			Text:  rev.Text.Body,
			Flags: textFlags,
		})

		batch.Contents = append(batch.Contents, mediawiki.ContentRow{
			Size:    rev.Text.Bytes,
			SHA1:    "",
			Model:   mediawiki.WikitextModelID,
			Address: ContentAddress(textID),
		})

		batch.Slots = append(batch.Slots, mediawiki.SlotRow{
			RevisionID: rev.ID,
			RoleID:     mediawiki.MainRoleID,
			ContentID:  p.linker.SlotContent(rev, contentID),
			Origin:     rev.ID,
		})
	}

	return batch, nil
}

// ParseTimestamp converts an ISO-8601 timestamp into UTC epoch seconds.
func ParseTimestamp(value string) (int64, error) {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, eris.Wrapf(ErrTimestampFormat, "%q", value)
	}
	return parsed.UTC().Unix(), nil
}

// ContentAddress renders the content_address pointing at a text row.
func ContentAddress(textID int64) string {
	return contentAddressPrefix + strconv.FormatInt(textID, 10)
}
