package migrations

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wikiloader/app/internal/data/mediawiki"
)

// MigrateMediaWiki creates the ingestion and lookup tables using Gorm's AutoMigrate and logs progress.
func MigrateMediaWiki(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if db == nil {
		return eris.New("gorm DB is required")
	}

	logFields := logrus.Fields{"component": "mediawiki.migrate"}
	if logger != nil {
		logger.WithFields(logFields).Info("applying mediawiki schema")
	}

	if err := db.WithContext(ctx).AutoMigrate(mediawiki.Models()...); err != nil {
		if logger != nil {
			logger.WithFields(logFields).WithField("error", err.Error()).Error("mediawiki schema migration failed")
		}
		return eris.Wrap(err, "auto migrating mediawiki schema")
	}

	if logger != nil {
		logger.WithFields(logFields).Info("mediawiki schema migration complete")
	}

	return nil
}
