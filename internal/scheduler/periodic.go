package scheduler

import (
	"context"
	"time"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// sweepLockTTL keeps a slow sweep from overlapping with the next tick.
const sweepLockTTL = 10 * time.Minute

// Periodic enqueues the nurturing sweeps on their cron specs.
type Periodic struct {
	scheduler *asynq.Scheduler
	entries   map[string]string
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}

	p := &Periodic{
		scheduler: asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC}),
		entries:   make(map[string]string),
		log:       log,
	}

	queue := queueName(cfg)
	for taskType, spec := range map[string]string{
		TaskAutoResumeSweep: cfg.GetAutoResumeCron(),
		TaskSendSweep:       cfg.GetSendCron(),
	} {
		task, err := NewSweepTask(taskType, SweepPayload{})
		if err != nil {
			return nil, err
		}
		id, err := p.scheduler.Register(spec, task,
			asynq.Queue(queue),
			asynq.MaxRetry(0),
			asynq.Unique(sweepLockTTL),
		)
		if err != nil {
			return nil, err
		}
		p.entries[taskType] = id
		log.Info("registered periodic sweep", "task", taskType, "cron", spec, "entry", id)
	}
	return p, nil
}

func (p *Periodic) Run(ctx context.Context) error {
	if err := p.scheduler.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
	return nil
}
