package model

import "time"

type RevisionAction string

const (
	RevisionActionCreate  RevisionAction = "create"
	RevisionActionSave    RevisionAction = "save"
	RevisionActionRestore RevisionAction = "restore"
)

// Revision is an immutable snapshot of a record taken when it is created, saved or
// restored. Restoring never removes revisions, it appends a new head.
type Revision struct {
	ID           string         `gorm:"primaryKey;uuid;not null;"`
	RecordID     string         `gorm:"uuid;not null;uniqueIndex:idx_revision_record_number"`
	Number       int64          `gorm:"not null;uniqueIndex:idx_revision_record_number"`
	Action       RevisionAction `gorm:"not null"`
	RestoredFrom *int64
	CreatedBy    string `gorm:"not null"`
	Compression  string
	CreatedAt    time.Time
	Fields       []*RevisionField `gorm:"foreignKey:RevisionID;references:ID"`
	Links        []*RevisionLink  `gorm:"foreignKey:RevisionID;references:ID"`
}

func (Revision) TableName() string {
	return "revisions"
}

// RevisionField holds the (possibly compressed) content of one field at a revision.
type RevisionField struct {
	RevisionID string `gorm:"primaryKey;uuid;not null;"`
	FieldID    string `gorm:"primaryKey;uuid;not null;"`
	Name       string
	Content    []byte
}

func (RevisionField) TableName() string {
	return "revision_fields"
}

// RevisionLink is the state of a link association captured at a revision.
type RevisionLink struct {
	RevisionID string    `gorm:"primaryKey;uuid;not null;"`
	FieldID    string    `gorm:"primaryKey;uuid;not null;"`
	Kind       LinkKind  `gorm:"primaryKey;not null"`
	TargetID   string    `gorm:"primaryKey;not null"`
	State      LinkState `gorm:"not null"`
}

func (RevisionLink) TableName() string {
	return "revision_links"
}
