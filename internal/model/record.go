package model

import (
	"time"

	"gorm.io/gorm"
)

type RecordType string

const (
	RecordTypeDocument RecordType = "document"
	RecordTypeMedia    RecordType = "media"
	RecordTypeFolder   RecordType = "folder"
)

type RecordStatus string

const (
	RecordStatusDraft    RecordStatus = "draft"
	RecordStatusSigned   RecordStatus = "signed"
	RecordStatusArchived RecordStatus = "archived"
)

// Record is a versioned notebook entry owning one or more fields.
// Revision points at the current head revision number.
type Record struct {
	ID        string     `gorm:"primaryKey;uuid;not null;"`
	Name      string     `gorm:"not null"`
	Type      RecordType `gorm:"not null;default:document"`
	OwnerID   string     `gorm:"not null;index"`
	Revision  int64      `gorm:"not null;default:0"`
	Status    RecordStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
	Fields    []*Field       `gorm:"foreignKey:RecordID;references:ID"`
}

func (Record) TableName() string {
	return "records"
}

// Terminal reports whether the record can never be edited again.
func (r *Record) Terminal() bool {
	return r.Status == RecordStatusSigned || r.Status == RecordStatusArchived
}

// Field is a content-bearing unit of a record. Content is the committed rich text.
type Field struct {
	ID        string `gorm:"primaryKey;uuid;not null;"`
	RecordID  string `gorm:"uuid;not null;index"`
	Name      string `gorm:"not null"`
	Position  int    `gorm:"not null;default:0"`
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Field) TableName() string {
	return "fields"
}

// FieldAutosave buffers uncommitted content for a field. At most one row exists per
// field and it belongs to the session holding the record's edit lock.
type FieldAutosave struct {
	FieldID   string `gorm:"primaryKey;uuid;not null;"`
	RecordID  string `gorm:"uuid;not null;index"`
	UserID    string `gorm:"not null"`
	SessionID string `gorm:"not null;index"`
	Content   string
	UpdatedAt time.Time
}

func (FieldAutosave) TableName() string {
	return "field_autosaves"
}
