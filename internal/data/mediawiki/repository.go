package mediawiki

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrIdentifierDrift reports that the store assigned different identifiers than predicted.
var ErrIdentifierDrift = eris.New("store-assigned identifier differs from prediction")

const defaultChunkSize = 256

// Batch holds the rows of one ingestion batch, index-aligned across tables.
type Batch struct {
	Pages     []PageRow
	Actors    []ActorRow
	Revisions []RevisionRow
	Texts     []TextRow
	Contents  []ContentRow
	Slots     []SlotRow

	// TextStart and ContentStart are the identifiers predicted for Texts[0] and Contents[0].
	TextStart    int64
	ContentStart int64
}

// Size returns the number of records in the batch.
func (b *Batch) Size() int {
	return len(b.Pages)
}

// TableCounts holds row counts of the ingestion tables.
type TableCounts struct {
	Pages     int64 `json:"pages"`
	Actors    int64 `json:"actors"`
	Revisions int64 `json:"revisions"`
	Texts     int64 `json:"texts"`
	Contents  int64 `json:"contents"`
	Slots     int64 `json:"slots"`
}

// Repository writes MediaWiki rows through a Gorm connection.
type Repository struct {
	db        *gorm.DB
	logger    *logrus.Logger
	chunkSize int
}

// RepositoryOptions configures a Repository.
type RepositoryOptions struct {
	Logger *logrus.Logger
	// ChunkSize caps the rows per INSERT statement.
	ChunkSize int
}

// NewRepository constructs a Gorm-backed repository.
func NewRepository(db *gorm.DB, opts RepositoryOptions) (*Repository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}

	return &Repository{db: db, logger: opts.Logger, chunkSize: chunk}, nil
}

// Seed inserts the static slot role and content model rows if they are absent.
func (r *Repository) Seed(ctx context.Context) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		roles := []SlotRoleRow{{ID: MainRoleID, Name: MainRoleName}}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&roles).Error; err != nil {
			return eris.Wrap(err, "seeding slot roles")
		}

		models := []ContentModelRow{{ID: WikitextModelID, Name: WikitextModel}}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models).Error; err != nil {
			return eris.Wrap(err, "seeding content models")
		}

		return nil
	})
	if err != nil {
		r.logError(nil, err, "seeding lookup tables")
		return err
	}

	return nil
}

// MaxTextID returns the highest old_id in the text table, or 0 when it is empty.
func (r *Repository) MaxTextID(ctx context.Context) (int64, error) {
	return r.maxID(ctx, &TextRow{}, "old_id")
}

// MaxContentID returns the highest content_id in the content table, or 0 when it is empty.
func (r *Repository) MaxContentID(ctx context.Context) (int64, error) {
	return r.maxID(ctx, &ContentRow{}, "content_id")
}

func (r *Repository) maxID(ctx context.Context, model any, column string) (int64, error) {
	var highest int64

	err := r.db.WithContext(ctx).
		Model(model).
		Select("COALESCE(MAX(" + column + "), 0)").
		Scan(&highest).Error
	if err != nil {
		r.logError(logrus.Fields{"column": column}, err, "querying identifier high-water mark")
		return 0, eris.Wrapf(err, "querying max %s", column)
	}

	return highest, nil
}

// WriteBatch inserts every row of the batch in one transaction, in referential order:
// page, actor, revision, text, content, slots. Nothing is written when any step fails.
func (r *Repository) WriteBatch(ctx context.Context, batch *Batch) error {
	if batch == nil || batch.Size() == 0 {
		return eris.New("batch is empty")
	}

	fields := logrus.Fields{
		"records":       batch.Size(),
		"text_id_start": batch.TextStart,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&batch.Pages, r.chunkSize).Error; err != nil {
			return eris.Wrap(err, "inserting page rows")
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&batch.Actors, r.chunkSize).Error; err != nil {
			return eris.Wrap(err, "inserting actor rows")
		}

		if err := tx.CreateInBatches(&batch.Revisions, r.chunkSize).Error; err != nil {
			return eris.Wrap(err, "inserting revision rows")
		}

		if err := tx.CreateInBatches(&batch.Texts, r.chunkSize).Error; err != nil {
			return eris.Wrap(err, "inserting text rows")
		}
		if err := verifyAssigned("text", batch.TextStart, textIDs(batch.Texts)); err != nil {
			return err
		}

		if err := tx.CreateInBatches(&batch.Contents, r.chunkSize).Error; err != nil {
			return eris.Wrap(err, "inserting content rows")
		}
		if err := verifyAssigned("content", batch.ContentStart, contentIDs(batch.Contents)); err != nil {
			return err
		}

		if err := tx.CreateInBatches(&batch.Slots, r.chunkSize).Error; err != nil {
			return eris.Wrap(err, "inserting slot rows")
		}

		return nil
	})
	if err != nil {
		r.logError(fields, err, "writing batch")
		return eris.Wrap(err, "writing batch transaction")
	}

	return nil
}

// Counts returns the number of rows in each ingestion table.
func (r *Repository) Counts(ctx context.Context) (TableCounts, error) {
	var counts TableCounts

	targets := []struct {
		model any
		dest  *int64
	}{
		{&PageRow{}, &counts.Pages},
		{&ActorRow{}, &counts.Actors},
		{&RevisionRow{}, &counts.Revisions},
		{&TextRow{}, &counts.Texts},
		{&ContentRow{}, &counts.Contents},
		{&SlotRow{}, &counts.Slots},
	}

	for _, target := range targets {
		if err := r.db.WithContext(ctx).Model(target.model).Count(target.dest).Error; err != nil {
			r.logError(nil, err, "counting rows")
			return TableCounts{}, eris.Wrap(err, "counting rows")
		}
	}

	return counts, nil
}

// Ping checks that the store is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return eris.Wrap(err, "retrieving sql.DB")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return eris.Wrap(err, "pinging database")
	}
	return nil
}

// verifyAssigned compares driver-reported identifiers with the predicted block. Identifiers
// the driver did not report (zero) are skipped.
func verifyAssigned(table string, start int64, assigned []int64) error {
	for i, id := range assigned {
		if id == 0 {
			continue
		}
		if want := start + int64(i); id != want {
			return eris.Wrapf(ErrIdentifierDrift, "%s row %d: predicted %d, store assigned %d", table, i, want, id)
		}
	}
	return nil
}

func textIDs(rows []TextRow) []int64 {
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	return ids
}

func contentIDs(rows []ContentRow) []int64 {
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	return ids
}

func (r *Repository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil || err == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
