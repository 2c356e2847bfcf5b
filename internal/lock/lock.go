// Package lock grants at most one editor per record.
package lock

import (
	"context"
	"errors"
)

var (
	ErrInvalidHolder = errors.New("lock holder requires user and session id")
)

// Holder identifies the user session holding an edit lock.
type Holder struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

func (h Holder) Valid() bool {
	return h.UserID != "" && h.SessionID != ""
}

func (h Holder) String() string {
	return h.UserID + "/" + h.SessionID
}

// Registry maps record ids to their edit lock holder. Acquire and Release are atomic
// per record: check and set happen as one operation.
type Registry interface {
	// Acquire grants the lock when the record is unlocked or already held by h.
	// It returns the current holder and whether h holds the lock.
	Acquire(ctx context.Context, recordID string, h Holder) (Holder, bool, error)
	// Release releases the lock when h holds it. Releasing a lock held by someone
	// else, or no lock at all, is a no-op.
	Release(ctx context.Context, recordID string, h Holder) (bool, error)
	// ForceRelease drops the lock whoever holds it.
	ForceRelease(ctx context.Context, recordID string) error
	// ReleaseSession drops every lock held by a session and returns the record ids.
	ReleaseSession(ctx context.Context, sessionID string) ([]string, error)
	// Holder returns the current holder of a record lock.
	Holder(ctx context.Context, recordID string) (Holder, bool, error)
}
