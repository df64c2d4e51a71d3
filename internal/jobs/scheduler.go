package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/divyandj/IMAGE-Hackathon/internal/config"
	"github.com/divyandj/IMAGE-Hackathon/internal/queue"
)

type Scheduler struct {
	cron  *cron.Cron
	queue queue.Enqueuer
	cfg   config.JobsConfig
	log   zerolog.Logger
}

func NewScheduler(q queue.Enqueuer, cfg config.JobsConfig, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		queue: q,
		cfg:   cfg,
		log:   log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.CleanupSchedule, s.enqueue(queue.TaskUploadsCleanup)); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.LeaderboardSchedule, s.enqueue(queue.TaskLeaderboardRebuild)); err != nil {
		return fmt.Errorf("schedule leaderboard: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and returns a context that is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) enqueue(taskType string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.queue.Enqueue(ctx, queue.Task{Type: taskType}); err != nil {
			s.log.Error().Err(err).Str("type", taskType).Msg("enqueue scheduled task failed")
			return
		}
		s.log.Debug().Str("type", taskType).Msg("scheduled task enqueued")
	}
}
