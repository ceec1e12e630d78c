package localcache

import (
	"context"
	"errors"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
)

const (
	fieldDocumentID = "document_id"
	queryDocumentID = fieldDocumentID + " = ?"
	queryOwnerID    = "owner_id = ?"
	orderCachedDesc = "cached_at_s DESC"
)

// SQLiteConfig describes the dependencies of the gorm-backed cache.
type SQLiteConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// SQLiteCache stores snapshots in a local SQLite file through gorm.
type SQLiteCache struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// OpenSQLite opens the cache file at path, migrates the entry table and returns the cache.
func OpenSQLite(path string, cfg SQLiteConfig) (*SQLiteCache, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, newServiceError(opNew, "open_failed", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, newServiceError(opNew, "migrate_failed", err)
	}
	cfg.Database = db
	return NewSQLiteCache(cfg)
}

// NewSQLiteCache wraps an already migrated database handle.
func NewSQLiteCache(cfg SQLiteConfig) (*SQLiteCache, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opNew, reasonMissingDatabase, errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLiteCache{db: cfg.Database, clock: clock, logger: log}, nil
}

// Put replaces the snapshot for the document.
func (c *SQLiteCache) Put(ctx context.Context, document resumes.Document) error {
	entry, err := entryFromDocument(document, c.clock())
	if err != nil {
		return newServiceError(opPut, reasonEncodeFailed, err)
	}
	err = c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: fieldDocumentID}},
			DoUpdates: clause.AssignmentColumns([]string{"owner_id", "title", "payload", "cached_at_s"}),
		}).
		Create(&entry).
		Error
	if err != nil {
		c.logError(opPut, reasonWriteFailed, err, zap.String(fieldDocumentID, entry.DocumentID))
		return newServiceError(opPut, reasonWriteFailed, err)
	}
	return nil
}

// Get returns the snapshot for id and whether one exists.
func (c *SQLiteCache) Get(ctx context.Context, id resumes.DocumentID) (resumes.Document, bool, error) {
	var entry Entry
	err := c.db.WithContext(ctx).Where(queryDocumentID, id.String()).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return resumes.Document{}, false, nil
	}
	if err != nil {
		c.logError(opGet, reasonReadFailed, err, zap.String(fieldDocumentID, id.String()))
		return resumes.Document{}, false, newServiceError(opGet, reasonReadFailed, err)
	}
	document, err := entry.document()
	if err != nil {
		c.logError(opGet, reasonDecodeFailed, err, zap.String(fieldDocumentID, id.String()))
		return resumes.Document{}, false, newServiceError(opGet, reasonDecodeFailed, err)
	}
	return document, true, nil
}

// Delete removes the snapshot for id. A missing snapshot is not an error.
func (c *SQLiteCache) Delete(ctx context.Context, id resumes.DocumentID) error {
	if err := c.db.WithContext(ctx).Where(queryDocumentID, id.String()).Delete(&Entry{}).Error; err != nil {
		c.logError(opDelete, reasonWriteFailed, err, zap.String(fieldDocumentID, id.String()))
		return newServiceError(opDelete, reasonWriteFailed, err)
	}
	return nil
}

// List returns the owner's cached drafts, newest first.
func (c *SQLiteCache) List(ctx context.Context, owner resumes.OwnerID) ([]Draft, error) {
	var entries []Entry
	err := c.db.WithContext(ctx).
		Select(fieldDocumentID, "owner_id", "title", "cached_at_s").
		Where(queryOwnerID, owner.String()).
		Order(orderCachedDesc).
		Find(&entries).
		Error
	if err != nil {
		c.logError(opList, reasonReadFailed, err, zap.String("owner_id", owner.String()))
		return nil, newServiceError(opList, reasonReadFailed, err)
	}
	drafts := make([]Draft, 0, len(entries))
	for _, entry := range entries {
		drafts = append(drafts, entry.draft())
	}
	return drafts, nil
}

// Close releases the underlying connection pool.
func (c *SQLiteCache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (c *SQLiteCache) logError(operation, reason string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}, fields...)
	if err != nil {
		allFields = append(allFields, zap.Error(err))
	}
	c.logger.Error("local cache operation failed", allFields...)
}
