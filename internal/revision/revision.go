// Package revision archives immutable snapshots of records and reads them back for
// restore.
package revision

import (
	"context"
	"errors"
	"fmt"

	"github.com/emrgen/notebook/internal/cache"
	"github.com/emrgen/notebook/internal/compress"
	"github.com/emrgen/notebook/internal/model"
	"github.com/emrgen/notebook/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrInvalidRevision is returned when a revision number does not belong to a record.
var ErrInvalidRevision = errors.New("invalid revision")

// Archiver snapshots committed record content.
type Archiver struct {
	compress compress.Compress
	codecs   map[string]compress.Compress
	cache    cache.RevisionCache
}

// NewArchiver creates an archiver writing snapshots with c. Snapshots written with any
// other known codec stay readable.
func NewArchiver(c compress.Compress) *Archiver {
	codecs := make(map[string]compress.Compress)
	for _, name := range []string{compress.NameNop, compress.NameGZip, compress.NameBrotli, compress.NameLZ4} {
		codec, _ := compress.New(name)
		codecs[name] = codec
	}
	codecs[c.Name()] = c

	return &Archiver{compress: c, codecs: codecs, cache: cache.NopRevisionCache{}}
}

// WithCache makes Content read through rc.
func (a *Archiver) WithCache(rc cache.RevisionCache) *Archiver {
	a.cache = rc
	return a
}

// SnapshotInput describes the revision being written.
type SnapshotInput struct {
	Record       *model.Record
	Fields       []*model.Field
	Action       model.RevisionAction
	CreatedBy    string
	RestoredFrom *int64
}

// Snapshot writes revision Record.Revision with the given field content and the
// current link state of the record. It must run in the same transaction that
// committed the content.
func (a *Archiver) Snapshot(ctx context.Context, tx store.Store, in SnapshotInput) (*model.Revision, error) {
	rev := &model.Revision{
		ID:           uuid.NewString(),
		RecordID:     in.Record.ID,
		Number:       in.Record.Revision,
		Action:       in.Action,
		RestoredFrom: in.RestoredFrom,
		CreatedBy:    in.CreatedBy,
		Compression:  a.compress.Name(),
	}

	for _, field := range in.Fields {
		content, err := a.compress.Encode([]byte(field.Content))
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", field.ID, err)
		}
		rev.Fields = append(rev.Fields, &model.RevisionField{
			RevisionID: rev.ID,
			FieldID:    field.ID,
			Name:       field.Name,
			Content:    content,
		})
	}

	links, err := tx.ListRecordLinks(ctx, in.Record.ID)
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		rev.Links = append(rev.Links, &model.RevisionLink{
			RevisionID: rev.ID,
			FieldID:    link.FieldID,
			Kind:       link.Kind,
			TargetID:   link.TargetID,
			State:      link.State,
		})
	}

	if err := tx.CreateRevision(ctx, rev); err != nil {
		return nil, fmt.Errorf("create revision %d of %s: %w", rev.Number, rev.RecordID, err)
	}

	logrus.Infof("archived revision %d of record %s (%s)", rev.Number, rev.RecordID, rev.Action)

	return rev, nil
}

// Content returns the field content of a revision keyed by field id.
func (a *Archiver) Content(ctx context.Context, tx store.RevisionStore, recordID string, number int64) (map[string]string, error) {
	cached, err := a.cache.GetRevision(ctx, recordID, number)
	if err != nil {
		logrus.Warnf("revision cache read failed: %v", err)
	}
	if cached != nil {
		return cached, nil
	}

	rev, err := a.Get(ctx, tx, recordID, number)
	if err != nil {
		return nil, err
	}

	content, err := a.Decode(rev)
	if err != nil {
		return nil, err
	}

	if err := a.cache.SetRevision(ctx, recordID, number, content); err != nil {
		logrus.Warnf("revision cache write failed: %v", err)
	}

	return content, nil
}

// Get returns a revision of a record.
func (a *Archiver) Get(ctx context.Context, tx store.RevisionStore, recordID string, number int64) (*model.Revision, error) {
	if number < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRevision, number)
	}

	rev, err := tx.GetRevision(ctx, recordID, number)
	if errors.Is(err, store.ErrRevisionNotFound) {
		return nil, fmt.Errorf("%w: record %s has no revision %d", ErrInvalidRevision, recordID, number)
	}
	if err != nil {
		return nil, err
	}

	return rev, nil
}

// Decode decompresses the field content of a revision.
func (a *Archiver) Decode(rev *model.Revision) (map[string]string, error) {
	codec, ok := a.codecs[rev.Compression]
	if !ok {
		if rev.Compression != "" {
			return nil, fmt.Errorf("revision %d of %s uses unknown compression %q", rev.Number, rev.RecordID, rev.Compression)
		}
		codec = compress.NewNop()
	}

	content := make(map[string]string, len(rev.Fields))
	for _, field := range rev.Fields {
		data, err := codec.Decode(field.Content)
		if err != nil {
			return nil, fmt.Errorf("decode field %s of revision %d: %w", field.FieldID, rev.Number, err)
		}
		content[field.FieldID] = string(data)
	}

	return content, nil
}

// List lists the revisions of a record, newest first.
func (a *Archiver) List(ctx context.Context, tx store.RevisionStore, recordID string) ([]*model.Revision, error) {
	return tx.ListRevisions(ctx, recordID)
}
