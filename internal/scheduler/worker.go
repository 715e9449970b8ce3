package scheduler

import (
	"context"
	"fmt"

	"leadflow_backend/internal/nurturing/domain"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Sweeper runs the nurturing sweeps.
type Sweeper interface {
	RunAutoResumeSweep(ctx context.Context, maxBatch int) (domain.SweepResult, error)
	RunSendSweep(ctx context.Context, maxBatch int) (domain.SweepResult, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	sweeper Sweeper
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sweeper Sweeper, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 2
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(sweeper, log)
	w.server = server
	return w, nil
}

func newWorker(sweeper Sweeper, log *logger.Logger) *Worker {
	w := &Worker{
		mux:     asynq.NewServeMux(),
		sweeper: sweeper,
		log:     log,
	}
	w.mux.HandleFunc(TaskAutoResumeSweep, w.handleAutoResume)
	w.mux.HandleFunc(TaskSendSweep, w.handleSend)
	return w
}

// Run processes sweep tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		w.log.Error("scheduler worker failed to start", "error", err)
		return err
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

func (w *Worker) handleAutoResume(ctx context.Context, task *asynq.Task) error {
	return w.runSweep(ctx, task, w.sweeper.RunAutoResumeSweep)
}

func (w *Worker) handleSend(ctx context.Context, task *asynq.Task) error {
	return w.runSweep(ctx, task, w.sweeper.RunSendSweep)
}

// Per-lead failures are counted in the result; only a sweep that could not
// start at all fails the task.
func (w *Worker) runSweep(ctx context.Context, task *asynq.Task, run func(context.Context, int) (domain.SweepResult, error)) error {
	payload, err := ParseSweepPayload(task)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	if _, err := run(ctx, payload.Limit); err != nil {
		return fmt.Errorf("%s: %w", task.Type(), err)
	}
	return nil
}
