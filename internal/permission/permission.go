// Package permission answers whether a user may edit a record. Real ACL evaluation
// lives outside the notebook engine; these checkers cover the owner rule and sharing
// grants the engine is wired with.
package permission

import (
	"context"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/notebook/internal/model"
	"github.com/sirupsen/logrus"
)

// Checker decides edit permission.
type Checker interface {
	IsEditPermitted(ctx context.Context, record *model.Record, userID string) (bool, error)
}

// AllowAll permits every edit.
type AllowAll struct{}

func (AllowAll) IsEditPermitted(context.Context, *model.Record, string) (bool, error) {
	return true, nil
}

var _ Checker = (*Grants)(nil)

// Grants permits the record owner and users explicitly granted edit on a record.
type Grants struct {
	mu     sync.RWMutex
	grants map[string]mapset.Set[string]
}

func NewGrants() *Grants {
	return &Grants{grants: make(map[string]mapset.Set[string])}
}

// Grant lets userID edit recordID.
func (g *Grants) Grant(recordID, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	users, ok := g.grants[recordID]
	if !ok {
		users = mapset.NewSet[string]()
		g.grants[recordID] = users
	}
	users.Add(userID)
}

// Revoke removes a grant.
func (g *Grants) Revoke(recordID, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if users, ok := g.grants[recordID]; ok {
		users.Remove(userID)
	}
}

func (g *Grants) IsEditPermitted(_ context.Context, record *model.Record, userID string) (bool, error) {
	if record.OwnerID == userID {
		return true, nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	users, ok := g.grants[record.ID]
	if ok && users.Contains(userID) {
		return true, nil
	}

	logrus.Debugf("user %s has no edit grant on record %s", userID, record.ID)
	return false, nil
}
