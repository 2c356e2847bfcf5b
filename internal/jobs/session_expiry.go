package jobs

import (
	"context"
	"time"

	"github.com/emrgen/notebook/internal/session"
	"github.com/sirupsen/logrus"
)

// SessionReleaser drops the edit locks of a session.
type SessionReleaser interface {
	ReleaseSession(ctx context.Context, sessionID string) error
}

// SessionExpiryTask expires idle sessions and releases the edit locks they hold.
type SessionExpiryTask struct {
	sessions *session.Registry
	releaser SessionReleaser
	idle     time.Duration
	cron     string
}

func NewSessionExpiryTask(schedule string, idle time.Duration, sessions *session.Registry, releaser SessionReleaser) *SessionExpiryTask {
	return &SessionExpiryTask{
		sessions: sessions,
		releaser: releaser,
		idle:     idle,
		cron:     schedule,
	}
}

func (s *SessionExpiryTask) ID() string {
	return "session_expiry"
}

func (s *SessionExpiryTask) Schedule() string {
	return s.cron
}

func (s *SessionExpiryTask) Run() {
	ctx := context.Background()

	for _, expired := range s.sessions.Expire(s.idle) {
		logrus.Infof("session %s of user %s expired", expired.ID, expired.UserID)
		if err := s.releaser.ReleaseSession(ctx, expired.ID); err != nil {
			logrus.Errorf("failed to release locks of session %s: %v", expired.ID, err)
		}
	}
}
