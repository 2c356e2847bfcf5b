package service

import (
	"errors"

	"github.com/emrgen/notebook/internal/reconcile"
	"github.com/emrgen/notebook/internal/revision"
	"github.com/emrgen/notebook/internal/store"
)

var (
	// ErrLockConflict is returned when another session holds the edit lock.
	ErrLockConflict = errors.New("record is being edited by another session")
	// ErrNotLocked is returned when an operation needs the edit lock the caller does not hold.
	ErrNotLocked = errors.New("edit lock is not held by the caller")
	// ErrReconciliation is returned when link associations could not be persisted.
	ErrReconciliation = reconcile.ErrReconciliation
	// ErrInvalidRevision is returned when a revision does not belong to the record.
	ErrInvalidRevision = revision.ErrInvalidRevision
	// ErrPermissionDenied is returned when the user may not edit the record.
	ErrPermissionDenied = errors.New("edit permission denied")
	// ErrCannotEdit is returned for records in a terminal state.
	ErrCannotEdit = errors.New("record can never be edited")
	// ErrInvalidRecord is returned when a record cannot be created from the input.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrRecordNotFound is returned when a record does not exist or is deleted.
	ErrRecordNotFound = store.ErrRecordNotFound
	// ErrFieldNotFound is returned when a field does not exist.
	ErrFieldNotFound = store.ErrFieldNotFound
)
