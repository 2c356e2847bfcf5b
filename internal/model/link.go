package model

import "time"

type LinkKind string

const (
	LinkKindMedia  LinkKind = "media"
	LinkKindRecord LinkKind = "record"
)

// LinkState is the lifecycle of a link association.
//
//	speculative        created by an autosave, never survived a save
//	committed          live and part of committed content
//	committed_deleted  soft-deleted, kept for history
type LinkState string

const (
	LinkStateSpeculative      LinkState = "speculative"
	LinkStateCommitted        LinkState = "committed"
	LinkStateCommittedDeleted LinkState = "committed_deleted"
)

// LinkAssociation records that a field references a media item or another record.
// There is at most one row per (field, kind, target).
type LinkAssociation struct {
	ID        string    `gorm:"primaryKey;uuid;not null;"`
	RecordID  string    `gorm:"uuid;not null;index"`
	FieldID   string    `gorm:"uuid;not null;uniqueIndex:idx_link_field_target"`
	Kind      LinkKind  `gorm:"not null;uniqueIndex:idx_link_field_target"`
	TargetID  string    `gorm:"not null;uniqueIndex:idx_link_field_target;index"`
	State     LinkState `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	RemovedAt *time.Time
}

func (LinkAssociation) TableName() string {
	return "link_associations"
}

func (l *LinkAssociation) Deleted() bool {
	return l.State == LinkStateCommittedDeleted
}

func (l *LinkAssociation) Committed() bool {
	return l.State == LinkStateCommitted || l.State == LinkStateCommittedDeleted
}

func (l *LinkAssociation) Live() bool {
	return !l.Deleted()
}
