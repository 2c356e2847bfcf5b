package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/notebook/internal/linkparse"
	"github.com/emrgen/notebook/internal/metrics"
	"github.com/emrgen/notebook/internal/model"
	"github.com/emrgen/notebook/internal/reconcile"
	"github.com/emrgen/notebook/internal/store"
	"github.com/sirupsen/logrus"
)

// Autosave buffers the live content of a field. The committed content is untouched;
// links newly referenced by the buffer are tracked speculatively and links dropped by
// it are soft deleted until save or cancel decides their fate.
func (e *EditService) Autosave(ctx context.Context, fieldID, content string, user User) (bool, error) {
	field, err := e.store.GetField(ctx, fieldID)
	if err != nil {
		return false, err
	}

	unlock := e.records.Lock(field.RecordID)
	defer unlock()

	if err := e.requireLock(ctx, field.RecordID, user); err != nil {
		return false, err
	}

	var result reconcile.Result
	err = e.store.Transaction(ctx, func(tx store.Store) error {
		// re-read inside the transaction, a concurrent save may have committed
		field, err := tx.GetField(ctx, fieldID)
		if err != nil {
			return err
		}

		record, err := tx.GetRecord(ctx, field.RecordID)
		if err != nil {
			return err
		}
		if record.Terminal() {
			return fmt.Errorf("%w: record %s is %s", ErrCannotEdit, record.ID, record.Status)
		}

		err = tx.PutAutosave(ctx, &model.FieldAutosave{
			FieldID:   field.ID,
			RecordID:  field.RecordID,
			UserID:    user.ID,
			SessionID: user.SessionID,
			Content:   content,
		})
		if err != nil {
			return err
		}

		result, err = e.reconciler.Reconcile(ctx, tx, field, linkparse.Extract(field.Content), linkparse.Extract(content), reconcile.ModeAutosave)
		return err
	})
	if err != nil {
		logrus.Errorf("autosave of field %s failed: %v", fieldID, err)
		metrics.CommitFailures.WithLabelValues("autosave").Inc()
		return false, fmt.Errorf("autosave field %s: %w", fieldID, err)
	}

	if result.Changed() {
		logrus.Debugf("autosave of field %s changed links: %+v", fieldID, result)
	}

	return true, nil
}

// FieldContent returns the buffered content of a field to the session that wrote it,
// and the committed content to everyone else.
func (e *EditService) FieldContent(ctx context.Context, fieldID string, user User) (string, error) {
	field, err := e.store.GetField(ctx, fieldID)
	if err != nil {
		return "", err
	}

	autosave, err := e.store.GetAutosave(ctx, fieldID)
	if err != nil {
		return "", err
	}
	if autosave != nil && autosave.SessionID == user.SessionID && autosave.UserID == user.ID {
		return autosave.Content, nil
	}

	return field.Content, nil
}

// DiscardStaleAutosaves reverts the buffers not written since before whose session
// no longer holds the record lock. It returns the ids of the reverted records; a
// record that fails does not stop the others and its error is joined into the result.
func (e *EditService) DiscardStaleAutosaves(ctx context.Context, before time.Time) ([]string, error) {
	stale, err := e.store.ListStaleAutosaves(ctx, before)
	if err != nil {
		return nil, err
	}

	records := mapset.NewThreadUnsafeSet[string]()
	for _, autosave := range stale {
		records.Add(autosave.RecordID)
	}

	var reverted []string
	var errs []error
	for _, recordID := range mapset.Sorted(records) {
		ok, err := e.discardStale(ctx, recordID)
		if err != nil {
			logrus.Errorf("failed to discard stale autosaves: %v", err)
			errs = append(errs, err)
			continue
		}
		if ok {
			reverted = append(reverted, recordID)
		}
	}

	return reverted, errors.Join(errs...)
}

func (e *EditService) discardStale(ctx context.Context, recordID string) (bool, error) {
	unlock := e.records.Lock(recordID)
	defer unlock()

	_, held, err := e.locks.Holder(ctx, recordID)
	if err != nil {
		return false, err
	}
	if held {
		return false, nil
	}

	err = e.store.Transaction(ctx, func(tx store.Store) error {
		record, err := tx.GetRecord(ctx, recordID)
		if err != nil {
			return err
		}
		return e.revert(ctx, tx, record)
	})
	if err != nil {
		return false, fmt.Errorf("discard autosaves of record %s: %w", recordID, err)
	}

	logrus.Infof("discarded stale autosaves of record %s", recordID)

	return true, nil
}
