package mediawiki_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wikiloader/app/internal/data/database"
	"wikiloader/app/internal/data/mediawiki"
	"wikiloader/app/internal/data/migrations"
)

func TestNewRepositoryRequiresDatabase(t *testing.T) {
	t.Parallel()

	if _, err := mediawiki.NewRepository(nil, mediawiki.RepositoryOptions{}); err == nil {
		t.Fatalf("expected error when database is nil")
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	t.Parallel()

	gormDB, repo := setupRepository(t, 0)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := repo.Seed(ctx); err != nil {
			t.Fatalf("Seed run %d returned error: %v", i+1, err)
		}
	}

	var roles []mediawiki.SlotRoleRow
	if err := gormDB.Find(&roles).Error; err != nil {
		t.Fatalf("listing slot roles: %v", err)
	}
	if diff := cmp.Diff([]mediawiki.SlotRoleRow{{ID: 1, Name: "main"}}, roles); diff != "" {
		t.Fatalf("unexpected slot roles (-want +got):\n%s", diff)
	}

	var models []mediawiki.ContentModelRow
	if err := gormDB.Find(&models).Error; err != nil {
		t.Fatalf("listing content models: %v", err)
	}
	if diff := cmp.Diff([]mediawiki.ContentModelRow{{ID: 1, Name: "wikitext"}}, models); diff != "" {
		t.Fatalf("unexpected content models (-want +got):\n%s", diff)
	}
}

func TestMaxIDsOnEmptyStore(t *testing.T) {
	t.Parallel()

	_, repo := setupRepository(t, 0)
	ctx := context.Background()

	textMax, err := repo.MaxTextID(ctx)
	if err != nil {
		t.Fatalf("MaxTextID returned error: %v", err)
	}
	contentMax, err := repo.MaxContentID(ctx)
	if err != nil {
		t.Fatalf("MaxContentID returned error: %v", err)
	}
	if textMax != 0 || contentMax != 0 {
		t.Fatalf("expected zero high-water marks, got text=%d content=%d", textMax, contentMax)
	}
}

func TestWriteBatchPersistsAllTables(t *testing.T) {
	t.Parallel()

	gormDB, repo := setupRepository(t, 2)
	ctx := context.Background()

	batch := buildBatch(1, []int64{1, 2, 3}, []int64{7, 8, 7})
	if err := repo.WriteBatch(ctx, batch); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}

	counts, err := repo.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts returned error: %v", err)
	}
	want := mediawiki.TableCounts{Pages: 3, Actors: 2, Revisions: 3, Texts: 3, Contents: 3, Slots: 3}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Fatalf("unexpected counts (-want +got):\n%s", diff)
	}

	var texts []mediawiki.TextRow
	if err := gormDB.Order("old_id").Find(&texts).Error; err != nil {
		t.Fatalf("listing text rows: %v", err)
	}
	for i, row := range texts {
		if row.ID != int64(i+1) {
			t.Fatalf("expected text row %d to have id %d, got %d", i, i+1, row.ID)
		}
	}

	textMax, err := repo.MaxTextID(ctx)
	if err != nil {
		t.Fatalf("MaxTextID returned error: %v", err)
	}
	if textMax != 3 {
		t.Fatalf("expected text high-water mark 3, got %d", textMax)
	}
}

func TestWriteBatchKeepsFirstActorName(t *testing.T) {
	t.Parallel()

	gormDB, repo := setupRepository(t, 0)
	ctx := context.Background()

	first := buildBatch(1, []int64{1}, []int64{42})
	first.Actors[0].Name = "Original"
	if err := repo.WriteBatch(ctx, first); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}

	second := buildBatch(2, []int64{2, 3}, []int64{42, 42})
	second.Actors[0].Name = "Renamed"
	second.Actors[1].Name = "RenamedAgain"
	if err := repo.WriteBatch(ctx, second); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}

	var actors []mediawiki.ActorRow
	if err := gormDB.Find(&actors).Error; err != nil {
		t.Fatalf("listing actors: %v", err)
	}
	if diff := cmp.Diff([]mediawiki.ActorRow{{ID: 42, Name: "Original"}}, actors); diff != "" {
		t.Fatalf("unexpected actors (-want +got):\n%s", diff)
	}
}

func TestWriteBatchDetectsIdentifierDrift(t *testing.T) {
	t.Parallel()

	_, repo := setupRepository(t, 0)
	ctx := context.Background()

	// The store will hand out 1..2; predicting 10 must be rejected.
	batch := buildBatch(10, []int64{1, 2}, []int64{5, 6})
	err := repo.WriteBatch(ctx, batch)
	if !errors.Is(err, mediawiki.ErrIdentifierDrift) {
		t.Fatalf("expected ErrIdentifierDrift, got %v", err)
	}

	assertEmpty(t, repo)
}

func TestWriteBatchRollsBackOnFailureInAnyTable(t *testing.T) {
	t.Parallel()

	for _, table := range []string{"page", "actor", "revision", "text", "content", "slots"} {
		table := table
		t.Run(table, func(t *testing.T) {
			t.Parallel()

			gormDB, repo := setupRepository(t, 1)
			injectCreateFailure(t, gormDB, table)

			err := repo.WriteBatch(context.Background(), buildBatch(1, []int64{1, 2, 3}, []int64{7, 8, 9}))
			if err == nil {
				t.Fatalf("expected injected failure on %s", table)
			}

			assertEmpty(t, repo)
		})
	}
}

func TestWriteBatchRollsBackOnConstraintViolation(t *testing.T) {
	t.Parallel()

	_, repo := setupRepository(t, 0)
	ctx := context.Background()

	batch := buildBatch(1, []int64{1, 2}, []int64{7, 8})
	// Duplicate revision id fails the third statement after pages and actors went in.
	batch.Revisions[1].ID = batch.Revisions[0].ID
	batch.Slots[1].RevisionID = batch.Slots[0].RevisionID + 1000

	if err := repo.WriteBatch(ctx, batch); err == nil {
		t.Fatalf("expected duplicate revision id to fail the batch")
	}

	assertEmpty(t, repo)
}

func TestWriteBatchRejectsEmptyBatch(t *testing.T) {
	t.Parallel()

	_, repo := setupRepository(t, 0)

	if err := repo.WriteBatch(context.Background(), &mediawiki.Batch{}); err == nil {
		t.Fatalf("expected error for empty batch")
	}
	if err := repo.WriteBatch(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil batch")
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	_, repo := setupRepository(t, 0)
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
}

func setupRepository(t *testing.T, chunkSize int) (*gorm.DB, *mediawiki.Repository) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mediawiki.db")
	gormDB, err := database.Open(database.Options{Path: path})
	if err != nil {
		t.Fatalf("database.Open returned error: %v", err)
	}

	t.Cleanup(func() {
		if closeErr := database.Close(gormDB); closeErr != nil {
			t.Errorf("closing database failed: %v", closeErr)
		}
	})

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if err := migrations.MigrateMediaWiki(context.Background(), gormDB, logger); err != nil {
		t.Fatalf("MigrateMediaWiki returned error: %v", err)
	}

	repo, err := mediawiki.NewRepository(gormDB, mediawiki.RepositoryOptions{Logger: logger, ChunkSize: chunkSize})
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}

	return gormDB, repo
}

// buildBatch creates one record per page id. Revision ids are page id + 100.
func buildBatch(textStart int64, pageIDs []int64, actorIDs []int64) *mediawiki.Batch {
	batch := &mediawiki.Batch{TextStart: textStart, ContentStart: textStart}

	for i, pageID := range pageIDs {
		revID := pageID + 100
		textID := textStart + int64(i)
		body := fmt.Sprintf("body of page %d", pageID)

		batch.Pages = append(batch.Pages, mediawiki.PageRow{
			ID: pageID, Title: fmt.Sprintf("Page_%d", pageID), Random: 0.42, Latest: revID, Len: int64(len(body)),
		})
		batch.Actors = append(batch.Actors, mediawiki.ActorRow{ID: actorIDs[i], Name: fmt.Sprintf("User%d", actorIDs[i])})
		batch.Revisions = append(batch.Revisions, mediawiki.RevisionRow{
			ID: revID, PageID: pageID, CommentID: 1, ActorID: 1, Timestamp: 1700000000,
		})
		batch.Texts = append(batch.Texts, mediawiki.TextRow{Text: body, Flags: "utf-8"})
		batch.Contents = append(batch.Contents, mediawiki.ContentRow{
			Size: int64(len(body)), Model: mediawiki.WikitextModelID, Address: fmt.Sprintf("tt:%d", textID),
		})
		batch.Slots = append(batch.Slots, mediawiki.SlotRow{
			RevisionID: revID, RoleID: mediawiki.MainRoleID, ContentID: 1, Origin: revID,
		})
	}

	return batch
}

func injectCreateFailure(t *testing.T, gormDB *gorm.DB, table string) {
	t.Helper()

	err := gormDB.Callback().Create().Before("gorm:create").Register("test:fail_"+table, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(fmt.Errorf("injected failure on %s", table))
		}
	})
	if err != nil {
		t.Fatalf("registering failure callback: %v", err)
	}
}

func assertEmpty(t *testing.T, repo *mediawiki.Repository) {
	t.Helper()

	counts, err := repo.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts returned error: %v", err)
	}
	if diff := cmp.Diff(mediawiki.TableCounts{}, counts); diff != "" {
		t.Fatalf("expected no rows after rollback (-want +got):\n%s", diff)
	}
}
