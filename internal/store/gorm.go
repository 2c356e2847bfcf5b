package store

import (
	"context"
	"errors"
	"time"

	"github.com/emrgen/notebook/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func (g *GormStore) CreateRecord(ctx context.Context, record *model.Record) error {
	return g.db.WithContext(ctx).Create(record).Error
}

func (g *GormStore) GetRecord(ctx context.Context, id string) (*model.Record, error) {
	var record model.Record
	err := g.db.WithContext(ctx).
		Preload("Fields", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc")
		}).
		Where("id = ?", id).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	return &record, nil
}

func (g *GormStore) UpdateRecord(ctx context.Context, record *model.Record) error {
	return g.db.WithContext(ctx).Model(&model.Record{}).Where("id = ?", record.ID).Updates(map[string]any{
		"name":     record.Name,
		"revision": record.Revision,
		"status":   record.Status,
	}).Error
}

func (g *GormStore) DeleteRecord(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Record{}).Error
}

func (g *GormStore) GetField(ctx context.Context, id string) (*model.Field, error) {
	var field model.Field
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&field).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFieldNotFound
	}
	if err != nil {
		return nil, err
	}

	return &field, nil
}

func (g *GormStore) UpdateFieldContent(ctx context.Context, id string, content string) error {
	res := g.db.WithContext(ctx).Model(&model.Field{}).Where("id = ?", id).Update("content", content)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFieldNotFound
	}

	return nil
}

func (g *GormStore) PutAutosave(ctx context.Context, autosave *model.FieldAutosave) error {
	autosave.UpdatedAt = time.Now()
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "field_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"record_id", "user_id", "session_id", "content", "updated_at"}),
	}).Create(autosave).Error
}

func (g *GormStore) ListAutosaves(ctx context.Context, recordID string) ([]*model.FieldAutosave, error) {
	var autosaves []*model.FieldAutosave
	err := g.db.WithContext(ctx).Where("record_id = ?", recordID).Find(&autosaves).Error
	return autosaves, err
}

func (g *GormStore) GetAutosave(ctx context.Context, fieldID string) (*model.FieldAutosave, error) {
	var autosave model.FieldAutosave
	err := g.db.WithContext(ctx).Where("field_id = ?", fieldID).First(&autosave).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &autosave, nil
}

func (g *GormStore) ListStaleAutosaves(ctx context.Context, before time.Time) ([]*model.FieldAutosave, error) {
	var autosaves []*model.FieldAutosave
	err := g.db.WithContext(ctx).Where("updated_at < ?", before).Order("updated_at asc").Find(&autosaves).Error
	return autosaves, err
}

func (g *GormStore) DeleteAutosaves(ctx context.Context, recordID string) error {
	return g.db.WithContext(ctx).Where("record_id = ?", recordID).Delete(&model.FieldAutosave{}).Error
}

func (g *GormStore) ListLinks(ctx context.Context, fieldID string) ([]*model.LinkAssociation, error) {
	var links []*model.LinkAssociation
	err := g.db.WithContext(ctx).Where("field_id = ?", fieldID).Order("created_at asc").Find(&links).Error
	return links, err
}

func (g *GormStore) ListRecordLinks(ctx context.Context, recordID string) ([]*model.LinkAssociation, error) {
	var links []*model.LinkAssociation
	err := g.db.WithContext(ctx).Where("record_id = ?", recordID).Order("created_at asc").Find(&links).Error
	return links, err
}

func (g *GormStore) CreateLink(ctx context.Context, link *model.LinkAssociation) error {
	return g.db.WithContext(ctx).Create(link).Error
}

func (g *GormStore) UpdateLinkState(ctx context.Context, id string, state model.LinkState) error {
	updates := map[string]any{"state": state, "removed_at": nil}
	if state == model.LinkStateCommittedDeleted {
		updates["removed_at"] = time.Now()
	}

	res := g.db.WithContext(ctx).Model(&model.LinkAssociation{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (g *GormStore) EraseLink(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Where("id = ?", id).Delete(&model.LinkAssociation{}).Error
}

func (g *GormStore) CountLinks(ctx context.Context, fieldID string) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&model.LinkAssociation{}).
		Where("field_id = ?", fieldID).
		Count(&count).Error
	return count, err
}

func (g *GormStore) CreateRevision(ctx context.Context, revision *model.Revision) error {
	return g.db.WithContext(ctx).Create(revision).Error
}

func (g *GormStore) GetRevision(ctx context.Context, recordID string, number int64) (*model.Revision, error) {
	var revision model.Revision
	err := g.db.WithContext(ctx).
		Preload("Fields").
		Preload("Links").
		Where("record_id = ? AND number = ?", recordID, number).
		First(&revision).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRevisionNotFound
	}
	if err != nil {
		return nil, err
	}

	return &revision, nil
}

func (g *GormStore) ListRevisions(ctx context.Context, recordID string) ([]*model.Revision, error) {
	var revisions []*model.Revision
	err := g.db.WithContext(ctx).Where("record_id = ?", recordID).Order("number desc").Find(&revisions).Error
	return revisions, err
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})
}
