package cache

import (
	"context"
)

// RevisionCache caches the decoded field content of revisions. Revisions are
// immutable so entries never need invalidation.
type RevisionCache interface {
	// GetRevision returns the cached content of a revision, nil when not cached.
	GetRevision(ctx context.Context, recordID string, number int64) (map[string]string, error)
	// SetRevision caches the content of a revision.
	SetRevision(ctx context.Context, recordID string, number int64, content map[string]string) error
}

var _ RevisionCache = NopRevisionCache{}

// NopRevisionCache caches nothing.
type NopRevisionCache struct{}

func (NopRevisionCache) GetRevision(context.Context, string, int64) (map[string]string, error) {
	return nil, nil
}

func (NopRevisionCache) SetRevision(context.Context, string, int64, map[string]string) error {
	return nil
}
