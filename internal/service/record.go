package service

import (
	"context"
	"fmt"

	"github.com/emrgen/notebook/internal/linkparse"
	"github.com/emrgen/notebook/internal/lock"
	"github.com/emrgen/notebook/internal/metrics"
	"github.com/emrgen/notebook/internal/model"
	"github.com/emrgen/notebook/internal/permission"
	"github.com/emrgen/notebook/internal/reconcile"
	"github.com/emrgen/notebook/internal/revision"
	"github.com/emrgen/notebook/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NewRecordService creates a new RecordService. records is the per-record mutex
// shared with the EditService.
func NewRecordService(store store.Store, locks lock.Registry, records *lock.KeyedMutex, archiver *revision.Archiver, permissions permission.Checker) *RecordService {
	return &RecordService{
		store:       store,
		locks:       locks,
		records:     records,
		reconciler:  reconcile.New(),
		archiver:    archiver,
		permissions: permissions,
	}
}

// RecordService creates, deletes and signs records.
type RecordService struct {
	store       store.Store
	locks       lock.Registry
	records     *lock.KeyedMutex
	reconciler  *reconcile.Reconciler
	archiver    *revision.Archiver
	permissions permission.Checker
}

// FieldInput is the initial content of a field.
type FieldInput struct {
	Name    string
	Content string
}

// CreateRecordInput describes a new record.
type CreateRecordInput struct {
	ID      string
	OwnerID string
	Name    string
	Type    model.RecordType
	Fields  []FieldInput
}

// CreateRecord creates a record with its fields, the committed links of their
// content and revision 0.
func (r *RecordService) CreateRecord(ctx context.Context, in CreateRecordInput) (*model.Record, error) {
	if in.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidRecord)
	}

	record := &model.Record{
		ID:      in.ID,
		Name:    in.Name,
		Type:    in.Type,
		OwnerID: in.OwnerID,
		Status:  model.RecordStatusDraft,
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Type == "" {
		record.Type = model.RecordTypeDocument
	}
	for i, f := range in.Fields {
		record.Fields = append(record.Fields, &model.Field{
			ID:       uuid.NewString(),
			RecordID: record.ID,
			Name:     f.Name,
			Position: i,
			Content:  f.Content,
		})
	}

	err := r.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreateRecord(ctx, record); err != nil {
			return err
		}

		for _, field := range record.Fields {
			_, err := r.reconciler.Reconcile(ctx, tx, field, linkparse.NewSet(), linkparse.Extract(field.Content), reconcile.ModeSave)
			if err != nil {
				return err
			}
		}

		_, err := r.archiver.Snapshot(ctx, tx, revision.SnapshotInput{
			Record:    record,
			Fields:    record.Fields,
			Action:    model.RevisionActionCreate,
			CreatedBy: in.OwnerID,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}

	metrics.Revisions.WithLabelValues(string(model.RevisionActionCreate)).Inc()
	logrus.Infof("created record %s with %d fields", record.ID, len(record.Fields))

	return record, nil
}

// DeleteRecord soft deletes a record and invalidates its edit lock.
func (r *RecordService) DeleteRecord(ctx context.Context, recordID string, userID string) error {
	unlock := r.records.Lock(recordID)
	defer unlock()

	record, err := r.store.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}

	if err := r.requirePermission(ctx, record, userID); err != nil {
		return err
	}

	err = r.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.DeleteAutosaves(ctx, recordID); err != nil {
			return err
		}
		return tx.DeleteRecord(ctx, recordID)
	})
	if err != nil {
		return fmt.Errorf("delete record %s: %w", recordID, err)
	}

	if err := r.locks.ForceRelease(ctx, recordID); err != nil {
		return err
	}

	metrics.ReleasedLocks.WithLabelValues("deleted").Inc()
	logrus.Infof("deleted record %s", recordID)

	return nil
}

// SignRecord moves a record into the terminal signed state. A record being edited by
// someone else cannot be signed.
func (r *RecordService) SignRecord(ctx context.Context, recordID string, user User) error {
	unlock := r.records.Lock(recordID)
	defer unlock()

	record, err := r.store.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if record.Terminal() {
		return fmt.Errorf("%w: record %s is %s", ErrCannotEdit, recordID, record.Status)
	}

	if err := r.requirePermission(ctx, record, user.ID); err != nil {
		return err
	}

	holder, held, err := r.locks.Holder(ctx, recordID)
	if err != nil {
		return err
	}
	if held && holder != user.holder() {
		return fmt.Errorf("%w: record %s is held by %s", ErrLockConflict, recordID, holder)
	}

	autosaves, err := r.store.ListAutosaves(ctx, recordID)
	if err != nil {
		return err
	}
	if len(autosaves) > 0 {
		return fmt.Errorf("%w: record %s has unsaved changes", ErrLockConflict, recordID)
	}

	record.Status = model.RecordStatusSigned
	if err := r.store.UpdateRecord(ctx, record); err != nil {
		return err
	}

	if held {
		if _, err := r.locks.Release(ctx, recordID, user.holder()); err != nil {
			logrus.Errorf("failed to release lock of record %s: %v", recordID, err)
		}
	}

	logrus.Infof("record %s signed by %s", recordID, user.ID)

	return nil
}

func (r *RecordService) requirePermission(ctx context.Context, record *model.Record, userID string) error {
	permitted, err := r.permissions.IsEditPermitted(ctx, record, userID)
	if err != nil {
		return err
	}
	if !permitted {
		return fmt.Errorf("%w: user %s on record %s", ErrPermissionDenied, userID, record.ID)
	}

	return nil
}
