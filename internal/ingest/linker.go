package ingest

import "wikiloader/app/internal/domain/dump"

// Linker resolves the foreign keys that the dump does not carry directly.
type Linker interface {
	// RevisionActor returns rev_actor for the page's ingested revision.
	RevisionActor(page dump.Page, rev dump.Revision) int64
	// SlotContent returns slot_content_id given the predicted content_id of the revision.
	SlotContent(rev dump.Revision, predictedContent int64) int64
}

// PlaceholderLinker writes fixed identifiers instead of the real links.
type PlaceholderLinker struct {
	ActorID   int64
	ContentID int64
}

// DefaultPlaceholderLinker returns the linker writing 1 for both keys.
func DefaultPlaceholderLinker() PlaceholderLinker {
	return PlaceholderLinker{ActorID: 1, ContentID: 1}
}

func (l PlaceholderLinker) RevisionActor(dump.Page, dump.Revision) int64 {
	return l.ActorID
}

func (l PlaceholderLinker) SlotContent(dump.Revision, int64) int64 {
	return l.ContentID
}

// ContributorLinker links revisions to their contributor's actor row and their slot to the
// predicted content row.
type ContributorLinker struct{}

func (ContributorLinker) RevisionActor(_ dump.Page, rev dump.Revision) int64 {
	return rev.Contributor.ID
}

func (ContributorLinker) SlotContent(_ dump.Revision, predictedContent int64) int64 {
	return predictedContent
}

var (
	_ Linker = PlaceholderLinker{}
	_ Linker = ContributorLinker{}
)
