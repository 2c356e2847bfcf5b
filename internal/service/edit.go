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
	"github.com/sirupsen/logrus"
)

// EditStatus is the answer to an edit request.
type EditStatus string

const (
	StatusEditMode     EditStatus = "EDIT_MODE"
	StatusViewMode     EditStatus = "VIEW_MODE"
	StatusAccessDenied EditStatus = "ACCESS_DENIED"
	StatusCanNeverEdit EditStatus = "CAN_NEVER_EDIT"
)

// User is the identity an edit lock is keyed by.
type User struct {
	ID        string
	SessionID string
}

func (u User) holder() lock.Holder {
	return lock.Holder{UserID: u.ID, SessionID: u.SessionID}
}

// NewEditService creates the edit session coordinator. records serializes work per
// record and must be shared with the RecordService of the same store.
func NewEditService(store store.Store, locks lock.Registry, records *lock.KeyedMutex, archiver *revision.Archiver, permissions permission.Checker) *EditService {
	return &EditService{
		store:       store,
		locks:       locks,
		records:     records,
		reconciler:  reconcile.New(),
		archiver:    archiver,
		permissions: permissions,
	}
}

// EditService coordinates edit locks, autosave buffers, link reconciliation and
// revisions. Operations on one record are serialized; different records proceed in
// parallel.
type EditService struct {
	store       store.Store
	locks       lock.Registry
	records     *lock.KeyedMutex
	reconciler  *reconcile.Reconciler
	archiver    *revision.Archiver
	permissions permission.Checker
}

// RequestEdit asks for the edit lock of a record.
func (e *EditService) RequestEdit(ctx context.Context, recordID string, user User) (EditStatus, error) {
	status, err := e.requestEdit(ctx, recordID, user)
	if err == nil {
		metrics.EditRequests.WithLabelValues(string(status)).Inc()
	}

	return status, err
}

func (e *EditService) requestEdit(ctx context.Context, recordID string, user User) (EditStatus, error) {
	// held across the status checks so a concurrent sign or delete cannot slip in
	// between the check and the grant
	unlock := e.records.Lock(recordID)
	defer unlock()

	record, err := e.store.GetRecord(ctx, recordID)
	if err != nil {
		return "", err
	}

	if record.Terminal() {
		return StatusCanNeverEdit, nil
	}

	permitted, err := e.permissions.IsEditPermitted(ctx, record, user.ID)
	if err != nil {
		return "", err
	}
	if !permitted {
		return StatusViewMode, nil
	}

	holder, granted, err := e.locks.Acquire(ctx, recordID, user.holder())
	if err != nil {
		return "", err
	}
	if !granted {
		logrus.Infof("record %s is being edited by %s, denied %s", recordID, holder, user.holder())
		return StatusAccessDenied, nil
	}

	// buffers left by a session whose lock was force released are reverted before
	// the new holder starts editing
	if err := e.discardForeignAutosaves(ctx, recordID, user); err != nil {
		if _, releaseErr := e.locks.Release(ctx, recordID, user.holder()); releaseErr != nil {
			logrus.Errorf("failed to release lock of %s: %v", recordID, releaseErr)
		}
		return "", err
	}

	return StatusEditMode, nil
}

// Save commits the autosaved content of a record, archives a revision and releases
// the lock. Nothing is committed and the lock is kept when any step fails.
func (e *EditService) Save(ctx context.Context, recordID string, user User) (bool, error) {
	unlock := e.records.Lock(recordID)
	defer unlock()

	if err := e.requireLock(ctx, recordID, user); err != nil {
		return false, err
	}

	log := logrus.WithFields(logrus.Fields{"record": recordID, "user": user.ID, "session": user.SessionID})

	var head int64
	var saved bool
	err := e.store.Transaction(ctx, func(tx store.Store) error {
		record, err := tx.GetRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if record.Terminal() {
			return fmt.Errorf("%w: record %s is %s", ErrCannotEdit, recordID, record.Status)
		}

		buffers, err := autosavesByField(ctx, tx, recordID)
		if err != nil {
			return err
		}
		if len(buffers) == 0 {
			log.Infof("nothing to save")
			head = record.Revision
			return nil
		}

		for _, field := range record.Fields {
			previous := linkparse.Extract(field.Content)
			if buffer, ok := buffers[field.ID]; ok {
				field.Content = buffer.Content
				if err := tx.UpdateFieldContent(ctx, field.ID, field.Content); err != nil {
					return err
				}
			}

			_, err := e.reconciler.Reconcile(ctx, tx, field, previous, linkparse.Extract(field.Content), reconcile.ModeSave)
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

		_, err = e.archiver.Snapshot(ctx, tx, revision.SnapshotInput{
			Record:    record,
			Fields:    record.Fields,
			Action:    model.RevisionActionSave,
			CreatedBy: user.ID,
		})
		if err != nil {
			return err
		}
		head = record.Revision
		saved = true

		return nil
	})
	if err != nil {
		log.Errorf("save failed, keeping lock: %v", err)
		metrics.CommitFailures.WithLabelValues("save").Inc()
		return false, fmt.Errorf("save record %s: %w", recordID, err)
	}

	e.release(ctx, recordID, user)
	if saved {
		metrics.Revisions.WithLabelValues(string(model.RevisionActionSave)).Inc()
	}
	log.Infof("saved record at revision %d", head)

	return true, nil
}

// CancelAutosave discards the autosaved content of a record, reverts its links to the
// last committed content and releases the lock.
func (e *EditService) CancelAutosave(ctx context.Context, recordID string, user User) (bool, error) {
	unlock := e.records.Lock(recordID)
	defer unlock()

	if err := e.requireLock(ctx, recordID, user); err != nil {
		return false, err
	}

	err := e.store.Transaction(ctx, func(tx store.Store) error {
		record, err := tx.GetRecord(ctx, recordID)
		if err != nil {
			return err
		}

		return e.revert(ctx, tx, record)
	})
	if err != nil {
		logrus.Errorf("cancel of record %s failed, keeping lock: %v", recordID, err)
		metrics.CommitFailures.WithLabelValues("cancel").Inc()
		return false, fmt.Errorf("cancel record %s: %w", recordID, err)
	}

	e.release(ctx, recordID, user)
	logrus.Infof("cancelled edits of record %s by %s", recordID, user.ID)

	return true, nil
}

// UnlockRecord releases the caller's lock. Releasing a lock held by someone else is a
// no-op. The autosave buffer is kept so the same session can resume.
func (e *EditService) UnlockRecord(ctx context.Context, recordID string, user User) error {
	released, err := e.locks.Release(ctx, recordID, user.holder())
	if err != nil {
		return err
	}
	if released {
		logrus.Infof("unlocked record %s held by %s", recordID, user.holder())
	}

	return nil
}

// ReleaseSession drops every lock held by a session. It is called on logout and
// session expiry.
func (e *EditService) ReleaseSession(ctx context.Context, sessionID string) error {
	released, err := e.locks.ReleaseSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(released) > 0 {
		metrics.ReleasedLocks.WithLabelValues("session").Add(float64(len(released)))
		logrus.Infof("released %d edit locks of session %s", len(released), sessionID)
	}

	return nil
}

func (e *EditService) requireLock(ctx context.Context, recordID string, user User) error {
	holder, held, err := e.locks.Holder(ctx, recordID)
	if err != nil {
		return err
	}
	if !held || holder != user.holder() {
		return fmt.Errorf("%w: record %s", ErrNotLocked, recordID)
	}

	return nil
}

func (e *EditService) release(ctx context.Context, recordID string, user User) {
	if _, err := e.locks.Release(ctx, recordID, user.holder()); err != nil {
		logrus.Errorf("failed to release lock of record %s: %v", recordID, err)
	}
}

// revert reconciles every field back to its committed content and drops the buffers.
func (e *EditService) revert(ctx context.Context, tx store.Store, record *model.Record) error {
	buffers, err := autosavesByField(ctx, tx, record.ID)
	if err != nil {
		return err
	}

	for _, field := range record.Fields {
		previous := linkparse.Extract(field.Content)
		if buffer, ok := buffers[field.ID]; ok {
			previous = linkparse.Extract(buffer.Content)
		}

		_, err := e.reconciler.Reconcile(ctx, tx, field, previous, linkparse.Extract(field.Content), reconcile.ModeCancel)
		if err != nil {
			return err
		}
	}

	return tx.DeleteAutosaves(ctx, record.ID)
}

func (e *EditService) discardForeignAutosaves(ctx context.Context, recordID string, user User) error {
	return e.store.Transaction(ctx, func(tx store.Store) error {
		autosaves, err := tx.ListAutosaves(ctx, recordID)
		if err != nil {
			return err
		}

		foreign := false
		for _, autosave := range autosaves {
			if autosave.SessionID != user.SessionID {
				foreign = true
				break
			}
		}
		if !foreign {
			return nil
		}

		record, err := tx.GetRecord(ctx, recordID)
		if err != nil {
			return err
		}

		logrus.Warnf("reverting stale autosaves of record %s", recordID)
		return e.revert(ctx, tx, record)
	})
}

func autosavesByField(ctx context.Context, tx store.AutosaveStore, recordID string) (map[string]*model.FieldAutosave, error) {
	autosaves, err := tx.ListAutosaves(ctx, recordID)
	if err != nil {
		return nil, err
	}

	buffers := make(map[string]*model.FieldAutosave, len(autosaves))
	for _, autosave := range autosaves {
		buffers[autosave.FieldID] = autosave
	}

	return buffers, nil
}
