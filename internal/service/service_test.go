package service

import (
	"context"
	"sync"
	"testing"

	"github.com/emrgen/notebook/internal/compress"
	"github.com/emrgen/notebook/internal/lock"
	"github.com/emrgen/notebook/internal/model"
	"github.com/emrgen/notebook/internal/permission"
	"github.com/emrgen/notebook/internal/revision"
	"github.com/emrgen/notebook/internal/store"
	"github.com/emrgen/notebook/internal/tester"
	"github.com/stretchr/testify/require"
)

var (
	alice  = User{ID: "alice", SessionID: "s-alice"}
	alice2 = User{ID: "alice", SessionID: "s-alice-2"}
	bob    = User{ID: "bob", SessionID: "s-bob"}
	carol  = User{ID: "carol", SessionID: "s-carol"}
)

const (
	withMedia  = `<p>gel image <img src="/media/M1/download" data-media-id="M1"> and again <a href="/media/M1">M1</a></p>`
	withRecord = `<p>see <a data-record-id="R7">protocol</a></p>`
	plainText  = `<p>nothing linked</p>`
)

type fixture struct {
	store    store.Store
	locks    lock.Registry
	mutex    *lock.KeyedMutex
	grants   *permission.Grants
	archiver *revision.Archiver
	edit     *EditService
	records  *RecordService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := store.NewGormStore(tester.TestDB(t))
	locks := lock.NewMemoryRegistry()
	grants := permission.NewGrants()
	archiver := revision.NewArchiver(compress.NewGZip())
	mutex := lock.NewKeyedMutex()

	return &fixture{
		store:    s,
		locks:    locks,
		mutex:    mutex,
		grants:   grants,
		archiver: archiver,
		edit:     NewEditService(s, locks, mutex, archiver, grants),
		records:  NewRecordService(s, locks, mutex, archiver, grants),
	}
}

// createRecord creates a record owned by alice and editable by bob with one field per
// content.
func (f *fixture) createRecord(t *testing.T, contents ...string) *model.Record {
	t.Helper()

	var fields []FieldInput
	for i, content := range contents {
		fields = append(fields, FieldInput{Name: string(rune('a' + i)), Content: content})
	}

	record, err := f.records.CreateRecord(context.TODO(), CreateRecordInput{
		OwnerID: alice.ID,
		Name:    "western blot",
		Fields:  fields,
	})
	require.NoError(t, err)
	f.grants.Grant(record.ID, bob.ID)

	return record
}

func (f *fixture) links(t *testing.T, fieldID string) []*model.LinkAssociation {
	t.Helper()

	links, err := f.edit.Links(context.TODO(), fieldID)
	require.NoError(t, err)

	return links
}

func (f *fixture) count(t *testing.T, fieldID string) int {
	t.Helper()

	count, err := f.edit.LiveLinkCount(context.TODO(), fieldID)
	require.NoError(t, err)

	return count
}

func (f *fixture) content(t *testing.T, fieldID string) string {
	t.Helper()

	field, err := f.store.GetField(context.TODO(), fieldID)
	require.NoError(t, err)

	return field.Content
}

func (f *fixture) requestEdit(t *testing.T, recordID string, user User) {
	t.Helper()

	status, err := f.edit.RequestEdit(context.TODO(), recordID, user)
	require.NoError(t, err)
	require.Equal(t, StatusEditMode, status)
}

// failingStore fails every link state update, including those made inside its
// transactions.
type failingStore struct {
	store.Store
	err error
}

func (f failingStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return f.Store.Transaction(ctx, func(tx store.Store) error {
		return fn(failingStore{Store: tx, err: f.err})
	})
}

func (f failingStore) UpdateLinkState(context.Context, string, model.LinkState) error {
	return f.err
}

// gatedChecker blocks the first permission check of user until release is closed.
type gatedChecker struct {
	permission.Checker
	user    string
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedChecker(checker permission.Checker, user string) *gatedChecker {
	return &gatedChecker{
		Checker: checker,
		user:    user,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedChecker) IsEditPermitted(ctx context.Context, record *model.Record, userID string) (bool, error) {
	if userID == g.user {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}

	return g.Checker.IsEditPermitted(ctx, record, userID)
}

// fieldFailingStore fails listing the links of one field, including inside its
// transactions.
type fieldFailingStore struct {
	store.Store
	fieldID string
	err     error
}

func (f fieldFailingStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return f.Store.Transaction(ctx, func(tx store.Store) error {
		return fn(fieldFailingStore{Store: tx, fieldID: f.fieldID, err: f.err})
	})
}

func (f fieldFailingStore) ListLinks(ctx context.Context, fieldID string) ([]*model.LinkAssociation, error) {
	if fieldID == f.fieldID {
		return nil, f.err
	}

	return f.Store.ListLinks(ctx, fieldID)
}
