package scheduler

import (
	"context"
	"errors"
	"testing"

	"leadflow_backend/internal/nurturing/domain"
	"leadflow_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	calls []string
	limit int
	err   error
}

func (f *fakeSweeper) RunAutoResumeSweep(_ context.Context, maxBatch int) (domain.SweepResult, error) {
	f.calls = append(f.calls, "auto_resume")
	f.limit = maxBatch
	return domain.SweepResult{}, f.err
}

func (f *fakeSweeper) RunSendSweep(_ context.Context, maxBatch int) (domain.SweepResult, error) {
	f.calls = append(f.calls, "send")
	f.limit = maxBatch
	return domain.SweepResult{}, f.err
}

type testConfig struct {
	redisURL string
	send     string
}

func (c testConfig) GetRedisURL() string       { return c.redisURL }
func (c testConfig) GetRedisTLSInsecure() bool { return false }
func (c testConfig) GetAsynqQueueName() string { return "" }
func (c testConfig) GetAsynqConcurrency() int  { return 1 }
func (c testConfig) GetAutoResumeCron() string { return "*/30 * * * *" }
func (c testConfig) GetSendCron() string       { return c.send }

func TestWorkerRoutesSweepTasks(t *testing.T) {
	sweeper := &fakeSweeper{}
	w := newWorker(sweeper, logger.Discard())

	task, err := NewSweepTask(TaskSendSweep, SweepPayload{Limit: 25})
	require.NoError(t, err)
	require.NoError(t, w.mux.ProcessTask(context.Background(), task))

	require.NoError(t, w.mux.ProcessTask(context.Background(), asynq.NewTask(TaskAutoResumeSweep, nil)))

	assert.Equal(t, []string{"send", "auto_resume"}, sweeper.calls)
	assert.Zero(t, sweeper.limit)
}

func TestWorkerSurfacesSweepErrors(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("database down")}
	w := newWorker(sweeper, logger.Discard())

	task, err := NewSweepTask(TaskSendSweep, SweepPayload{})
	require.NoError(t, err)
	assert.Error(t, w.mux.ProcessTask(context.Background(), task))

	bad := asynq.NewTask(TaskSendSweep, []byte("{"))
	err = w.mux.ProcessTask(context.Background(), bad)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNewPeriodicRegistersBothSweeps(t *testing.T) {
	mr := miniredis.RunT(t)

	p, err := NewPeriodic(testConfig{redisURL: "redis://" + mr.Addr(), send: "*/5 * * * *"}, logger.Discard())
	require.NoError(t, err)
	assert.Len(t, p.entries, 2)

	_, err = NewPeriodic(testConfig{redisURL: "redis://" + mr.Addr(), send: "not a cron"}, logger.Discard())
	assert.Error(t, err)

	_, err = NewPeriodic(testConfig{send: "*/5 * * * *"}, logger.Discard())
	assert.Error(t, err)
}
