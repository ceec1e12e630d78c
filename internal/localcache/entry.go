// Package localcache keeps write-ahead snapshots of documents on durable local
// storage so an edit survives a crash or a failed remote write.
package localcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
)

var errMissingDatabase = errors.New("database handle is required")

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

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

const (
	opNew    = "localcache.new"
	opPut    = "localcache.put"
	opGet    = "localcache.get"
	opDelete = "localcache.delete"
	opList   = "localcache.list"

	reasonMissingDatabase = "missing_database"
	reasonMissingClient   = "missing_client"
	reasonEncodeFailed    = "encode_failed"
	reasonDecodeFailed    = "decode_failed"
	reasonWriteFailed     = "write_failed"
	reasonReadFailed      = "read_failed"
)

// Entry is the row holding one cached snapshot.
type Entry struct {
	DocumentID      string         `gorm:"column:document_id;primaryKey;size:190;not null"`
	OwnerID         string         `gorm:"column:owner_id;size:190;not null;index"`
	Title           string         `gorm:"column:title;size:512;not null"`
	Payload         datatypes.JSON `gorm:"column:payload;not null"`
	CachedAtSeconds int64          `gorm:"column:cached_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "draft_cache"
}

// Draft summarizes a cached snapshot available for recovery.
type Draft struct {
	DocumentID resumes.DocumentID `json:"document_id"`
	OwnerID    resumes.OwnerID    `json:"owner_id"`
	Title      string             `json:"title"`
	CachedAt   time.Time          `json:"cached_at"`
}

func entryFromDocument(document resumes.Document, now time.Time) (Entry, error) {
	payload, err := json.Marshal(document)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		DocumentID:      document.ID.String(),
		OwnerID:         document.OwnerID.String(),
		Title:           document.Title,
		Payload:         datatypes.JSON(payload),
		CachedAtSeconds: now.UTC().Unix(),
	}, nil
}

func (e Entry) document() (resumes.Document, error) {
	var document resumes.Document
	if err := json.Unmarshal(e.Payload, &document); err != nil {
		return resumes.Document{}, err
	}
	return document, nil
}

func (e Entry) draft() Draft {
	return Draft{
		DocumentID: resumes.DocumentID(e.DocumentID),
		OwnerID:    resumes.OwnerID(e.OwnerID),
		Title:      e.Title,
		CachedAt:   time.Unix(e.CachedAtSeconds, 0).UTC(),
	}
}
