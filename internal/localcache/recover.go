package localcache

import (
	"context"

	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
)

// Cache is the full surface shared by SQLiteCache and RedisCache.
type Cache interface {
	Put(ctx context.Context, document resumes.Document) error
	Get(ctx context.Context, id resumes.DocumentID) (resumes.Document, bool, error)
	Delete(ctx context.Context, id resumes.DocumentID) error
	List(ctx context.Context, owner resumes.OwnerID) ([]Draft, error)
	Close() error
}

var (
	_ Cache = (*SQLiteCache)(nil)
	_ Cache = (*RedisCache)(nil)
)

// Recover reads every snapshot the owner left behind, newest first. Entries
// removed between listing and reading are skipped.
func Recover(ctx context.Context, cache Cache, owner resumes.OwnerID) ([]resumes.Document, error) {
	drafts, err := cache.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	documents := make([]resumes.Document, 0, len(drafts))
	for _, draft := range drafts {
		document, found, err := cache.Get(ctx, draft.DocumentID)
		if err != nil {
			return nil, err
		}
		if !found || document.OwnerID != owner {
			continue
		}
		documents = append(documents, document)
	}
	return documents, nil
}
