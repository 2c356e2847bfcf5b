package service

import (
	"context"
	"fmt"

	"github.com/emrgen/notebook/internal/linkparse"
	"github.com/emrgen/notebook/internal/metrics"
	"github.com/emrgen/notebook/internal/model"
	"github.com/emrgen/notebook/internal/reconcile"
	"github.com/emrgen/notebook/internal/revision"
	"github.com/emrgen/notebook/internal/store"
	"github.com/sirupsen/logrus"
)

// RestoreResult identifies the record a revision was restored into.
type RestoreResult struct {
	RecordID   string           `json:"restoredRecordId"`
	RecordType model.RecordType `json:"restoredRecordType"`
	Revision   int64            `json:"revision"`
}

// RestoreRevision makes the content of a historic revision current. The restore is a
// new head revision; history is never rewritten. Pending autosaves are discarded and
// the caller's lock, if any, is released.
func (e *EditService) RestoreRevision(ctx context.Context, number int64, recordID string, user User) (RestoreResult, error) {
	unlock := e.records.Lock(recordID)
	defer unlock()

	record, err := e.store.GetRecord(ctx, recordID)
	if err != nil {
		return RestoreResult{}, err
	}
	if record.Terminal() {
		return RestoreResult{}, fmt.Errorf("%w: record %s is %s", ErrCannotEdit, recordID, record.Status)
	}

	permitted, err := e.permissions.IsEditPermitted(ctx, record, user.ID)
	if err != nil {
		return RestoreResult{}, err
	}
	if !permitted {
		return RestoreResult{}, fmt.Errorf("%w: user %s on record %s", ErrPermissionDenied, user.ID, recordID)
	}

	holder, held, err := e.locks.Holder(ctx, recordID)
	if err != nil {
		return RestoreResult{}, err
	}
	if held && holder != user.holder() {
		return RestoreResult{}, fmt.Errorf("%w: record %s is held by %s", ErrLockConflict, recordID, holder)
	}

	log := logrus.WithFields(logrus.Fields{"record": recordID, "user": user.ID, "revision": number})

	var result RestoreResult
	err = e.store.Transaction(ctx, func(tx store.Store) error {
		record, err := tx.GetRecord(ctx, recordID)
		if err != nil {
			return err
		}

		historic, err := e.archiver.Content(ctx, tx, recordID, number)
		if err != nil {
			return err
		}

		buffers, err := autosavesByField(ctx, tx, recordID)
		if err != nil {
			return err
		}

		for _, field := range record.Fields {
			previous := linkparse.Extract(field.Content)
			if buffer, ok := buffers[field.ID]; ok {
				previous = linkparse.Extract(buffer.Content)
			}

			// fields added after the revision keep their committed content
			if content, ok := historic[field.ID]; ok && content != field.Content {
				field.Content = content
				if err := tx.UpdateFieldContent(ctx, field.ID, content); err != nil {
					return err
				}
			}

			_, err := e.reconciler.Reconcile(ctx, tx, field, previous, linkparse.Extract(field.Content), reconcile.ModeRestore)
			if err != nil {
				return err
			}
		}

		if err := tx.DeleteAutosaves(ctx, recordID); err != nil {
			return err
		}

		record.Revision++
		if err := tx.UpdateRecord(ctx, record); err != nil {
			return err
		}

		restoredFrom := number
		_, err = e.archiver.Snapshot(ctx, tx, revision.SnapshotInput{
			Record:       record,
			Fields:       record.Fields,
			Action:       model.RevisionActionRestore,
			CreatedBy:    user.ID,
			RestoredFrom: &restoredFrom,
		})
		if err != nil {
			return err
		}

		result = RestoreResult{RecordID: record.ID, RecordType: record.Type, Revision: record.Revision}
		return nil
	})
	if err != nil {
		log.Errorf("restore failed: %v", err)
		metrics.CommitFailures.WithLabelValues("restore").Inc()
		return RestoreResult{}, fmt.Errorf("restore record %s to revision %d: %w", recordID, number, err)
	}

	if held {
		e.release(ctx, recordID, user)
	}
	metrics.Revisions.WithLabelValues(string(model.RevisionActionRestore)).Inc()
	log.Infof("restored as revision %d", result.Revision)

	return result, nil
}

// ListRevisions lists the revisions of a record, newest first.
func (e *EditService) ListRevisions(ctx context.Context, recordID string) ([]*model.Revision, error) {
	if _, err := e.store.GetRecord(ctx, recordID); err != nil {
		return nil, err
	}

	return e.archiver.List(ctx, e.store, recordID)
}
