package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"mediavault/internal/events"
)

type Scheduler struct {
	cron      *cron.Cron
	publisher events.Publisher
	spec      string
	now       func() time.Time
	log       zerolog.Logger
}

// NewScheduler enqueues a cleanup task on every tick of spec, a six-field
// cron expression with seconds. A nil publisher disables scheduling.
func NewScheduler(publisher events.Publisher, spec string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		publisher: publisher,
		spec:      spec,
		now:       time.Now,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if s.publisher == nil || s.spec == "" {
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, s.enqueueCleanup); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the schedule. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) enqueueCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.publisher.Publish(ctx, events.Event{Type: events.Cleanup, At: s.now().UTC()})
	if err != nil {
		s.log.Error().Err(err).Msg("enqueue cleanup failed")
		return
	}
	s.log.Debug().Msg("cleanup enqueued")
}
