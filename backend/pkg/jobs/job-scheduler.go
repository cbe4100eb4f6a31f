package jobs

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type JobScheduler struct {
	scheduler *cron.Cron
	logger    *logrus.Entry
	job       cron.Job
	jobId     cron.EntryID
}

// NewJobScheduler schedules job with a standard cron expression or a descriptor such as
// "@every 1h". Six field expressions enable second level scheduling. Overlapping runs are
// skipped and panics recovered.
func NewJobScheduler(logger *logrus.Entry, frequency string, job cron.Job) (*JobScheduler, error) {
	cronLogger := cron.PrintfLogger(logger)
	opts := []cron.Option{
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	}

	logger.Infof("enabling periodic job with cron expression: '%s'", frequency)
	if strings.Count(strings.TrimSpace(frequency), " ") == 5 {
		logger.Warn("periodic job contains 'second level' scheduling. This may cause performance issues in production scenarios")
		opts = append(opts, cron.WithSeconds())
	}

	scheduler := cron.New(opts...)

	var jobId cron.EntryID
	if job != nil {
		var err error
		jobId, err = scheduler.AddJob(frequency, job)
		if err != nil {
			logger.Errorf("could not add scheduled run for job: %v", err)
			return nil, fmt.Errorf("invalid job frequency '%s': %w", frequency, err)
		}
	}

	return &JobScheduler{
		scheduler: scheduler,
		logger:    logger,
		job:       job,
		jobId:     jobId,
	}, nil
}

func (js *JobScheduler) Start() {
	js.scheduler.Start()
}

// NextRun is zero until the scheduler has started, and when no job is scheduled.
func (js *JobScheduler) NextRun() time.Time {
	return js.scheduler.Entry(js.jobId).Next
}

func (js *JobScheduler) Stop() {
	js.scheduler.Remove(js.jobId)
	<-js.scheduler.Stop().Done()
}
