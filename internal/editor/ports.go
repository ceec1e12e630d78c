package editor

import (
	"context"
	"time"

	"github.com/MarcoPoloResearchLab/resumate/internal/imports"
	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
	"github.com/MarcoPoloResearchLab/resumate/internal/scoring"
)

// RemoteStore is the authoritative row store for documents.
type RemoteStore interface {
	Insert(ctx context.Context, document resumes.Document) (resumes.DocumentID, error)
	Update(ctx context.Context, id resumes.DocumentID, update resumes.DocumentUpdate) error
	Select(ctx context.Context, id resumes.DocumentID) (resumes.Document, error)
	SelectByOwner(ctx context.Context, owner resumes.OwnerID) ([]resumes.Document, error)
	Delete(ctx context.Context, id resumes.DocumentID) error
}

// LocalCache keeps one write-ahead snapshot per document id.
type LocalCache interface {
	Put(ctx context.Context, document resumes.Document) error
	Get(ctx context.Context, id resumes.DocumentID) (resumes.Document, bool, error)
	Delete(ctx context.Context, id resumes.DocumentID) error
}

// Profile is the external user-profile record consumed by autofill.
type Profile struct {
	FullName string
	Email    string
	Phone    string
	Location string
	Website  string
	LinkedIn string
	GitHub   string
	Bio      string
}

// ProfileSource resolves the autofill profile of an owner.
// Implementations return ErrProfileUnavailable when none exists.
type ProfileSource interface {
	Profile(ctx context.Context, owner resumes.OwnerID) (Profile, error)
}

// Scorer grades a document. A nil document is allowed.
type Scorer interface {
	Score(document *resumes.Document) scoring.Report
}

// Importer parses an external payload into a candidate document.
type Importer interface {
	Import(payload []byte, owner resumes.OwnerID) imports.Result
}

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler arms timers. Tests substitute a manual implementation.
type Scheduler interface {
	AfterFunc(delay time.Duration, callback func()) Timer
}

type wallScheduler struct{}

func (wallScheduler) AfterFunc(delay time.Duration, callback func()) Timer {
	return time.AfterFunc(delay, callback)
}

// NewWallScheduler returns a Scheduler backed by time.AfterFunc.
func NewWallScheduler() Scheduler {
	return wallScheduler{}
}
