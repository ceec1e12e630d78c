package resumes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrDocumentNotFound indicates that no row exists for the requested document.
	ErrDocumentNotFound = errors.New("resumes: document not found")

	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceError carries a stable "operation.reason" code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opStoreNew           = "resumes.store.new"
	opInsert             = "resumes.insert"
	opUpdate             = "resumes.update"
	opSelect             = "resumes.select"
	opSelectByOwner      = "resumes.select_by_owner"
	opDelete             = "resumes.delete"
	fieldDocumentID      = "document_id"
	fieldOwnerID         = "owner_id"
	queryDocumentID      = fieldDocumentID + " = ?"
	queryOwnerID         = fieldOwnerID + " = ?"
	orderUpdatedDesc     = "updated_at_s DESC"
	reasonMissingDB      = "missing_database"
	reasonEncodeFailed   = "encode_failed"
	reasonDecodeFailed   = "decode_failed"
	reasonInsertFailed   = "insert_failed"
	reasonUpdateFailed   = "update_failed"
	reasonQueryFailed    = "query_failed"
	reasonDeleteFailed   = "delete_failed"
	reasonRecordNotFound = "not_found"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// StoreConfig describes the dependencies of the row store.
type StoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Store is the row-oriented remote store for documents.
type Store struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewStore validates the configuration and returns a Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opStoreNew, reasonMissingDB, errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{db: cfg.Database, clock: clock, logger: logger}, nil
}

// Insert writes a new row and returns its identifier.
func (s *Store) Insert(ctx context.Context, document Document) (DocumentID, error) {
	record, err := recordFromDocument(document)
	if err != nil {
		s.logError(opInsert, reasonEncodeFailed, err, zap.String(fieldDocumentID, document.ID.String()))
		return "", newServiceError(opInsert, reasonEncodeFailed, err)
	}
	if record.CreatedAtSeconds <= 0 {
		record.CreatedAtSeconds = s.clock().UTC().Unix()
	}
	if record.UpdatedAtSeconds <= 0 {
		record.UpdatedAtSeconds = record.CreatedAtSeconds
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logError(opInsert, reasonInsertFailed, err, zap.String(fieldDocumentID, record.DocumentID))
		return "", newServiceError(opInsert, reasonInsertFailed, err)
	}
	return document.ID, nil
}

// Update applies a partial write. A missing row yields ErrDocumentNotFound.
func (s *Store) Update(ctx context.Context, id DocumentID, update DocumentUpdate) error {
	columns, err := updateColumns(update)
	if err != nil {
		s.logError(opUpdate, reasonEncodeFailed, err, zap.String(fieldDocumentID, id.String()))
		return newServiceError(opUpdate, reasonEncodeFailed, err)
	}
	updatedAt := update.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.clock()
	}
	columns["updated_at_s"] = updatedAt.UTC().Unix()
	columns["version"] = gorm.Expr("version + 1")

	result := s.db.WithContext(ctx).
		Model(&Record{}).
		Where(queryDocumentID, id.String()).
		Updates(columns)
	if result.Error != nil {
		s.logError(opUpdate, reasonUpdateFailed, result.Error, zap.String(fieldDocumentID, id.String()))
		return newServiceError(opUpdate, reasonUpdateFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opUpdate, reasonRecordNotFound, ErrDocumentNotFound)
	}
	return nil
}

// Select loads one document by identifier.
func (s *Store) Select(ctx context.Context, id DocumentID) (Document, error) {
	var record Record
	err := s.db.WithContext(ctx).Where(queryDocumentID, id.String()).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, newServiceError(opSelect, reasonRecordNotFound, ErrDocumentNotFound)
	}
	if err != nil {
		s.logError(opSelect, reasonQueryFailed, err, zap.String(fieldDocumentID, id.String()))
		return Document{}, newServiceError(opSelect, reasonQueryFailed, err)
	}
	document, err := record.toDocument()
	if err != nil {
		s.logError(opSelect, reasonDecodeFailed, err, zap.String(fieldDocumentID, id.String()))
		return Document{}, newServiceError(opSelect, reasonDecodeFailed, err)
	}
	return document, nil
}

// SelectByOwner lists an owner's documents, most recently updated first.
func (s *Store) SelectByOwner(ctx context.Context, owner OwnerID) ([]Document, error) {
	var records []Record
	if err := s.db.WithContext(ctx).
		Where(queryOwnerID, owner.String()).
		Order(orderUpdatedDesc).
		Find(&records).Error; err != nil {
		s.logError(opSelectByOwner, reasonQueryFailed, err, zap.String(fieldOwnerID, owner.String()))
		return nil, newServiceError(opSelectByOwner, reasonQueryFailed, err)
	}
	documents := make([]Document, 0, len(records))
	for _, record := range records {
		document, err := record.toDocument()
		if err != nil {
			s.logError(opSelectByOwner, reasonDecodeFailed, err, zap.String(fieldDocumentID, record.DocumentID))
			return nil, newServiceError(opSelectByOwner, reasonDecodeFailed, err)
		}
		documents = append(documents, document)
	}
	return documents, nil
}

// Delete removes the row. A missing row yields ErrDocumentNotFound.
func (s *Store) Delete(ctx context.Context, id DocumentID) error {
	result := s.db.WithContext(ctx).Where(queryDocumentID, id.String()).Delete(&Record{})
	if result.Error != nil {
		s.logError(opDelete, reasonDeleteFailed, result.Error, zap.String(fieldDocumentID, id.String()))
		return newServiceError(opDelete, reasonDeleteFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opDelete, reasonRecordNotFound, ErrDocumentNotFound)
	}
	return nil
}

func (s *Store) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("resumes store error", attrs...)
}
