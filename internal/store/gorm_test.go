package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emrgen/notebook/internal/model"
	"github.com/emrgen/notebook/internal/tester"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(fields ...string) *model.Record {
	record := &model.Record{
		ID:      uuid.NewString(),
		Name:    "experiment",
		Type:    model.RecordTypeDocument,
		OwnerID: "alice",
		Status:  model.RecordStatusDraft,
	}
	for i, name := range fields {
		record.Fields = append(record.Fields, &model.Field{
			ID:       uuid.NewString(),
			RecordID: record.ID,
			Name:     name,
			Position: i,
		})
	}

	return record
}

func TestGormStore_Record(t *testing.T) {
	ctx := context.TODO()
	s := NewGormStore(tester.TestDB(t))

	record := newRecord("protocol", "results")
	require.NoError(t, s.CreateRecord(ctx, record))

	got, err := s.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	require.Len(t, got.Fields, 2)
	assert.Equal(t, "protocol", got.Fields[0].Name)
	assert.Equal(t, "results", got.Fields[1].Name)

	require.NoError(t, s.UpdateFieldContent(ctx, got.Fields[0].ID, "<p>hello</p>"))
	field, err := s.GetField(ctx, got.Fields[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p>", field.Content)

	err = s.UpdateFieldContent(ctx, uuid.NewString(), "x")
	assert.True(t, errors.Is(err, ErrFieldNotFound))

	require.NoError(t, s.DeleteRecord(ctx, record.ID))
	_, err = s.GetRecord(ctx, record.ID)
	assert.True(t, errors.Is(err, ErrRecordNotFound))
}

func TestGormStore_Autosave(t *testing.T) {
	ctx := context.TODO()
	s := NewGormStore(tester.TestDB(t))

	record := newRecord("protocol")
	require.NoError(t, s.CreateRecord(ctx, record))
	fieldID := record.Fields[0].ID

	none, err := s.GetAutosave(ctx, fieldID)
	require.NoError(t, err)
	assert.Nil(t, none)

	for _, content := range []string{"first", "second", ""} {
		require.NoError(t, s.PutAutosave(ctx, &model.FieldAutosave{
			FieldID:   fieldID,
			RecordID:  record.ID,
			UserID:    "alice",
			SessionID: "s1",
			Content:   content,
		}))
	}

	autosaves, err := s.ListAutosaves(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, autosaves, 1)
	assert.Equal(t, "", autosaves[0].Content)

	stale, err := s.ListStaleAutosaves(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, stale, 1)
	stale, err = s.ListStaleAutosaves(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale)

	require.NoError(t, s.DeleteAutosaves(ctx, record.ID))
	autosaves, err = s.ListAutosaves(ctx, record.ID)
	require.NoError(t, err)
	assert.Empty(t, autosaves)
}

func TestGormStore_Links(t *testing.T) {
	ctx := context.TODO()
	s := NewGormStore(tester.TestDB(t))

	record := newRecord("protocol")
	require.NoError(t, s.CreateRecord(ctx, record))
	fieldID := record.Fields[0].ID

	link := &model.LinkAssociation{
		ID:       uuid.NewString(),
		RecordID: record.ID,
		FieldID:  fieldID,
		Kind:     model.LinkKindMedia,
		TargetID: "42",
		State:    model.LinkStateCommitted,
	}
	require.NoError(t, s.CreateLink(ctx, link))

	duplicate := *link
	duplicate.ID = uuid.NewString()
	assert.Error(t, s.CreateLink(ctx, &duplicate), "one association per field and target")

	count, err := s.CountLinks(ctx, fieldID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// soft deleted rows are still counted
	require.NoError(t, s.UpdateLinkState(ctx, link.ID, model.LinkStateCommittedDeleted))
	count, err = s.CountLinks(ctx, fieldID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	links, err := s.ListLinks(ctx, fieldID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.True(t, links[0].Deleted())
	assert.NotNil(t, links[0].RemovedAt)

	require.NoError(t, s.EraseLink(ctx, link.ID))
	links, err = s.ListLinks(ctx, fieldID)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestGormStore_TransactionRollback(t *testing.T) {
	ctx := context.TODO()
	s := NewGormStore(tester.TestDB(t))

	record := newRecord("protocol")
	require.NoError(t, s.CreateRecord(ctx, record))

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx Store) error {
		if err := tx.UpdateFieldContent(ctx, record.Fields[0].ID, "changed"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	field, err := s.GetField(ctx, record.Fields[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "", field.Content)
}

func TestGormStore_Revisions(t *testing.T) {
	ctx := context.TODO()
	s := NewGormStore(tester.TestDB(t))

	record := newRecord("protocol")
	require.NoError(t, s.CreateRecord(ctx, record))

	for i := int64(0); i < 3; i++ {
		revID := uuid.NewString()
		require.NoError(t, s.CreateRevision(ctx, &model.Revision{
			ID:        revID,
			RecordID:  record.ID,
			Number:    i,
			Action:    model.RevisionActionSave,
			CreatedBy: "alice",
			Fields: []*model.RevisionField{{
				RevisionID: revID,
				FieldID:    record.Fields[0].ID,
				Name:       "protocol",
				Content:    []byte("v"),
			}},
		}))
	}

	revisions, err := s.ListRevisions(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, revisions, 3)
	assert.Equal(t, int64(2), revisions[0].Number)

	rev, err := s.GetRevision(ctx, record.ID, 1)
	require.NoError(t, err)
	require.Len(t, rev.Fields, 1)
	assert.Equal(t, []byte("v"), rev.Fields[0].Content)

	_, err = s.GetRevision(ctx, record.ID, 7)
	assert.ErrorIs(t, err, ErrRevisionNotFound)
}
