package service

import (
	"context"
	"testing"

	"github.com/emrgen/notebook/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordService_CreateRecord(t *testing.T) {
	ctx := context.TODO()
	f := newFixture(t)

	record := f.createRecord(t, withMedia, withRecord, plainText)
	require.Len(t, record.Fields, 3)
	assert.Equal(t, model.RecordStatusDraft, record.Status)
	assert.Equal(t, model.RecordTypeDocument, record.Type)

	for i, want := range []int{1, 1, 0} {
		assert.Equal(t, want, f.count(t, record.Fields[i].ID))
	}
	assert.Equal(t, model.LinkStateCommitted, f.links(t, record.Fields[0].ID)[0].State)

	revisions, err := f.edit.ListRevisions(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, revisions, 1)
	assert.Equal(t, int64(0), revisions[0].Number)
	assert.Equal(t, model.RevisionActionCreate, revisions[0].Action)

	content, err := f.archiver.Content(ctx, f.store, record.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, withRecord, content[record.Fields[1].ID])

	_, err = f.records.CreateRecord(ctx, CreateRecordInput{Name: "orphan"})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestRecordService_DeleteRecord(t *testing.T) {
	ctx := context.TODO()
	f := newFixture(t)
	record := f.createRecord(t, plainText)
	fieldID := record.Fields[0].ID

	f.requestEdit(t, record.ID, bob)
	_, err := f.edit.Autosave(ctx, fieldID, withMedia, bob)
	require.NoError(t, err)

	err = f.records.DeleteRecord(ctx, record.ID, carol.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	require.NoError(t, f.records.DeleteRecord(ctx, record.ID, alice.ID))

	_, held, err := f.locks.Holder(ctx, record.ID)
	require.NoError(t, err)
	assert.False(t, held)

	_, err = f.edit.Save(ctx, record.ID, bob)
	assert.ErrorIs(t, err, ErrNotLocked)

	_, err = f.edit.RequestEdit(ctx, record.ID, bob)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRecordService_SignRecord(t *testing.T) {
	ctx := context.TODO()
	f := newFixture(t)
	record := f.createRecord(t, plainText)
	fieldID := record.Fields[0].ID

	f.requestEdit(t, record.ID, bob)

	err := f.records.SignRecord(ctx, record.ID, alice)
	assert.ErrorIs(t, err, ErrLockConflict)

	_, err = f.edit.Autosave(ctx, fieldID, withMedia, bob)
	require.NoError(t, err)
	err = f.records.SignRecord(ctx, record.ID, bob)
	assert.ErrorIs(t, err, ErrLockConflict, "unsaved changes")

	_, err = f.edit.Save(ctx, record.ID, bob)
	require.NoError(t, err)

	require.NoError(t, f.records.SignRecord(ctx, record.ID, alice))

	status, err := f.edit.RequestEdit(ctx, record.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, StatusCanNeverEdit, status)

	_, err = f.edit.RestoreRevision(ctx, 0, record.ID, alice)
	assert.ErrorIs(t, err, ErrCannotEdit)

	err = f.records.SignRecord(ctx, record.ID, alice)
	assert.ErrorIs(t, err, ErrCannotEdit)
}

func TestRecordService_SignWaitsForRequestEdit(t *testing.T) {
	ctx := context.TODO()
	f := newFixture(t)
	record := f.createRecord(t, plainText)
	fieldID := record.Fields[0].ID

	gate := newGatedChecker(f.grants, bob.ID)
	edit := NewEditService(f.store, f.locks, f.mutex, f.archiver, gate)

	statuses := make(chan EditStatus, 1)
	go func() {
		status, err := edit.RequestEdit(ctx, record.ID, bob)
		assert.NoError(t, err)
		statuses <- status
	}()
	<-gate.entered

	signed := make(chan error, 1)
	go func() {
		signed <- f.records.SignRecord(ctx, record.ID, alice)
	}()
	close(gate.release)

	// bob's request was checked against a draft record, the sign must see his lock
	assert.Equal(t, StatusEditMode, <-statuses)
	assert.ErrorIs(t, <-signed, ErrLockConflict)

	got, err := f.store.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecordStatusDraft, got.Status)

	ok, err := edit.Autosave(ctx, fieldID, withMedia, bob)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = edit.Save(ctx, record.ID, bob)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.records.SignRecord(ctx, record.ID, alice))
	status, err := edit.RequestEdit(ctx, record.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, StatusCanNeverEdit, status)
}

func TestRecordService_DeleteWaitsForRequestEdit(t *testing.T) {
	ctx := context.TODO()
	f := newFixture(t)
	record := f.createRecord(t, plainText)

	gate := newGatedChecker(f.grants, bob.ID)
	edit := NewEditService(f.store, f.locks, f.mutex, f.archiver, gate)

	statuses := make(chan EditStatus, 1)
	go func() {
		status, err := edit.RequestEdit(ctx, record.ID, bob)
		assert.NoError(t, err)
		statuses <- status
	}()
	<-gate.entered

	deleted := make(chan error, 1)
	go func() {
		deleted <- f.records.DeleteRecord(ctx, record.ID, alice.ID)
	}()
	close(gate.release)

	assert.Equal(t, StatusEditMode, <-statuses)
	require.NoError(t, <-deleted)

	// the lock granted before the delete does not outlive the record
	_, held, err := f.locks.Holder(ctx, record.ID)
	require.NoError(t, err)
	assert.False(t, held)

	_, err = edit.RequestEdit(ctx, record.ID, bob)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
