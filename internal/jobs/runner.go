package jobs

import (
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

type Job interface {
	ID() string
	Run()
}

type CronJob interface {
	Schedule() string
	Job
}

type TaskExecutor struct {
	cron            *cron.Cron
	cronJobs        []CronJob
	runningCronJobs mapset.Set[string]
	muCronJobs      sync.Mutex
}

func NewTaskExecutor(cronJobs ...CronJob) *TaskExecutor {
	return &TaskExecutor{
		cron:            cron.New(),
		cronJobs:        cronJobs,
		runningCronJobs: mapset.NewThreadUnsafeSet[string](),
	}
}

// Start schedules the jobs, each runs in its own goroutine inside the cron. A job
// still running when its next tick fires is skipped for that tick.
func (t *TaskExecutor) Start() error {
	for _, job := range t.cronJobs {
		job := job
		err := t.cron.AddFunc(job.Schedule(), func() {
			t.run(job)
		})
		if err != nil {
			return fmt.Errorf("schedule task %s: %w", job.ID(), err)
		}
		logrus.Infof("scheduled task %s: %s", job.ID(), job.Schedule())
	}

	t.cron.Start()

	return nil
}

func (t *TaskExecutor) run(job CronJob) {
	t.muCronJobs.Lock()
	if t.runningCronJobs.Contains(job.ID()) {
		t.muCronJobs.Unlock()
		logrus.Warnf("task %s is already running", job.ID())
		return
	}
	t.runningCronJobs.Add(job.ID())
	t.muCronJobs.Unlock()

	defer func() {
		t.muCronJobs.Lock()
		defer t.muCronJobs.Unlock()
		t.runningCronJobs.Remove(job.ID())
	}()

	job.Run()
}

func (t *TaskExecutor) Stop() {
	logrus.Infof("stopping all tasks")
	t.cron.Stop()
}
