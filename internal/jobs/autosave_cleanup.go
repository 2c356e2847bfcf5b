package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// AutosaveDiscarder reverts abandoned autosave buffers.
type AutosaveDiscarder interface {
	DiscardStaleAutosaves(ctx context.Context, before time.Time) ([]string, error)
}

// AutosaveCleanupTask reverts autosave buffers left behind by sessions that no longer
// hold the record lock.
type AutosaveCleanupTask struct {
	discarder AutosaveDiscarder
	maxAge    time.Duration
	cron      string
	now       func() time.Time
}

func NewAutosaveCleanupTask(schedule string, maxAge time.Duration, discarder AutosaveDiscarder) *AutosaveCleanupTask {
	return &AutosaveCleanupTask{
		discarder: discarder,
		maxAge:    maxAge,
		cron:      schedule,
		now:       time.Now,
	}
}

func (c *AutosaveCleanupTask) ID() string {
	return "autosave_cleanup"
}

func (c *AutosaveCleanupTask) Schedule() string {
	return c.cron
}

func (c *AutosaveCleanupTask) Run() {
	before := c.now().Add(-c.maxAge)
	logrus.Debugf("cleaning up autosaves older than %s", before.Format(time.RFC3339))

	reverted, err := c.discarder.DiscardStaleAutosaves(context.Background(), before)
	if err != nil {
		logrus.Errorf("error cleaning up autosaves: %v", err)
	}
	if len(reverted) > 0 {
		logrus.Infof("reverted abandoned autosaves of %d records", len(reverted))
	}
}
