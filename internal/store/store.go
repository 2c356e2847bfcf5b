package store

import (
	"context"
	"errors"
	"time"

	"github.com/emrgen/notebook/internal/model"
)

var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrFieldNotFound    = errors.New("field not found")
	ErrRevisionNotFound = errors.New("revision not found")
	ErrLinkNotFound     = errors.New("link association not found")
)

type Store interface {
	RecordStore
	AutosaveStore
	LinkStore
	RevisionStore
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type RecordStore interface {
	// CreateRecord creates a record together with its fields.
	CreateRecord(ctx context.Context, record *model.Record) error
	// GetRecord retrieves a live record by ID, fields ordered by position.
	GetRecord(ctx context.Context, id string) (*model.Record, error)
	// UpdateRecord updates the record row only.
	UpdateRecord(ctx context.Context, record *model.Record) error
	// DeleteRecord soft deletes a record.
	DeleteRecord(ctx context.Context, id string) error
	// GetField retrieves a field by ID.
	GetField(ctx context.Context, id string) (*model.Field, error)
	// UpdateFieldContent overwrites the committed content of a field.
	UpdateFieldContent(ctx context.Context, id string, content string) error
}

type AutosaveStore interface {
	// PutAutosave replaces the buffered content of a field.
	PutAutosave(ctx context.Context, autosave *model.FieldAutosave) error
	// ListAutosaves lists the live buffers of a record.
	ListAutosaves(ctx context.Context, recordID string) ([]*model.FieldAutosave, error)
	// GetAutosave returns the buffer of a field or nil when there is none.
	GetAutosave(ctx context.Context, fieldID string) (*model.FieldAutosave, error)
	// ListStaleAutosaves lists the buffers not written since before.
	ListStaleAutosaves(ctx context.Context, before time.Time) ([]*model.FieldAutosave, error)
	// DeleteAutosaves discards every buffer of a record.
	DeleteAutosaves(ctx context.Context, recordID string) error
}

type LinkStore interface {
	// ListLinks lists every association of a field, soft-deleted ones included.
	ListLinks(ctx context.Context, fieldID string) ([]*model.LinkAssociation, error)
	// ListRecordLinks lists every association of a record.
	ListRecordLinks(ctx context.Context, recordID string) ([]*model.LinkAssociation, error)
	// CreateLink creates an association.
	CreateLink(ctx context.Context, link *model.LinkAssociation) error
	// UpdateLinkState moves an association to a new state.
	UpdateLinkState(ctx context.Context, id string, state model.LinkState) error
	// EraseLink removes the association row.
	EraseLink(ctx context.Context, id string) error
	// CountLinks counts the association rows of a field, soft-deleted ones included.
	CountLinks(ctx context.Context, fieldID string) (int64, error)
}

type RevisionStore interface {
	// CreateRevision creates a revision with its field and link snapshots.
	CreateRevision(ctx context.Context, revision *model.Revision) error
	// GetRevision retrieves a revision of a record by number.
	GetRevision(ctx context.Context, recordID string, number int64) (*model.Revision, error)
	// ListRevisions lists the revisions of a record, newest first.
	ListRevisions(ctx context.Context, recordID string) ([]*model.Revision, error)
}
