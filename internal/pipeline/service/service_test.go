package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/pipeline/domain"
	"leadflow_backend/internal/shared/actor"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct{}

func (fakeTx) WithinTx(ctx context.Context, fn func(q db.DBTX) error) error {
	return fn(nil)
}

type fakeRepo struct {
	leads    map[uuid.UUID]*domain.Lead
	stages   map[uuid.UUID]domain.Stage
	statuses map[uuid.UUID]domain.Status
	subs     map[uuid.UUID]domain.SubStatus
	rows     []*domain.HistoryRow
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		leads:    make(map[uuid.UUID]*domain.Lead),
		stages:   make(map[uuid.UUID]domain.Stage),
		statuses: make(map[uuid.UUID]domain.Status),
		subs:     make(map[uuid.UUID]domain.SubStatus),
	}
}

func (r *fakeRepo) GetLead(_ context.Context, _ db.DBTX, id uuid.UUID) (domain.Lead, error) {
	l, ok := r.leads[id]
	if !ok {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	return *l, nil
}

func (r *fakeRepo) LockLead(ctx context.Context, q db.DBTX, id uuid.UUID) (domain.Lead, error) {
	return r.GetLead(ctx, q, id)
}

func (r *fakeRepo) SetLeadPointer(_ context.Context, _ db.DBTX, dim domain.Dimension, leadID uuid.UUID, target *uuid.UUID) error {
	r.leads[leadID].SetPointer(dim, target)
	return nil
}

func (r *fakeRepo) GetStage(_ context.Context, _ db.DBTX, id uuid.UUID) (domain.Stage, error) {
	s, ok := r.stages[id]
	if !ok {
		return domain.Stage{}, apperr.NotFound("stage not found")
	}
	return s, nil
}

func (r *fakeRepo) GetStatus(_ context.Context, _ db.DBTX, id uuid.UUID) (domain.Status, error) {
	s, ok := r.statuses[id]
	if !ok {
		return domain.Status{}, apperr.NotFound("status not found")
	}
	return s, nil
}

func (r *fakeRepo) GetSubStatus(_ context.Context, _ db.DBTX, id uuid.UUID) (domain.SubStatus, error) {
	s, ok := r.subs[id]
	if !ok {
		return domain.SubStatus{}, apperr.NotFound("sub-status not found")
	}
	return s, nil
}

func (r *fakeRepo) GetOpenRow(_ context.Context, _ db.DBTX, dim domain.Dimension, leadID uuid.UUID) (*domain.HistoryRow, error) {
	for _, row := range r.rows {
		if row.LeadID == leadID && row.Dimension == dim && row.DoneAt == nil {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) CloseRow(_ context.Context, _ db.DBTX, _ domain.Dimension, rowID uuid.UUID, at time.Time, note *string) error {
	for _, row := range r.rows {
		if row.ID == rowID && row.DoneAt == nil {
			row.DoneAt = &at
			row.CloseNote = note
		}
	}
	return nil
}

// InsertRow mirrors the partial unique index on open rows.
func (r *fakeRepo) InsertRow(_ context.Context, _ db.DBTX, row domain.HistoryRow) (domain.HistoryRow, error) {
	if row.DoneAt == nil {
		for _, existing := range r.rows {
			if existing.LeadID == row.LeadID && existing.Dimension == row.Dimension && existing.DoneAt == nil {
				return domain.HistoryRow{}, apperr.Conflict("open row exists")
			}
		}
	}
	row.ID = uuid.New()
	r.rows = append(r.rows, &row)
	return row, nil
}

func (r *fakeRepo) ListHistory(_ context.Context, _ db.DBTX, dim domain.Dimension, leadID uuid.UUID) ([]domain.HistoryRow, error) {
	var out []domain.HistoryRow
	for _, row := range r.rows {
		if row.LeadID == leadID && row.Dimension == dim {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (r *fakeRepo) openRows(leadID uuid.UUID, dim domain.Dimension) []domain.HistoryRow {
	var out []domain.HistoryRow
	for _, row := range r.rows {
		if row.LeadID == leadID && row.Dimension == dim && row.DoneAt == nil {
			out = append(out, *row)
		}
	}
	return out
}

type fakeNurturing struct {
	stopped  []uuid.UUID
	reopened []uuid.UUID
}

func (f *fakeNurturing) StopInTx(_ context.Context, _ db.DBTX, leadID uuid.UUID, _ time.Time) (bool, error) {
	f.stopped = append(f.stopped, leadID)
	return true, nil
}

func (f *fakeNurturing) ReopenInTx(_ context.Context, _ db.DBTX, leadID uuid.UUID, _ time.Time) (bool, error) {
	f.reopened = append(f.reopened, leadID)
	return true, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventName())
	}
	return out
}

type fixture struct {
	svc       *Service
	repo      *fakeRepo
	nurturing *fakeNurturing
	bus       *recordingBus
	clock     clockwork.FakeClock
	salesID   uuid.UUID
	lead      uuid.UUID
	owner     actor.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFakeRepo()
	nurturing := &fakeNurturing{}
	bus := &recordingBus{}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	salesID := uuid.New()
	leadID := uuid.New()
	repo.leads[leadID] = &domain.Lead{ID: leadID, SalesID: salesID}

	return &fixture{
		svc:       New(fakeTx{}, nil, repo, nurturing, bus, clock, logger.Discard()),
		repo:      repo,
		nurturing: nurturing,
		bus:       bus,
		clock:     clock,
		salesID:   salesID,
		lead:      leadID,
		owner:     actor.Actor{UserID: uuid.New(), Roles: []string{actor.RoleSales}, SalesID: &salesID},
	}
}

func (f *fixture) addStage(active bool) uuid.UUID {
	id := uuid.New()
	f.repo.stages[id] = domain.Stage{ID: id, Code: id.String()[:8], IsActive: active}
	return id
}

func (f *fixture) addStatus(code string) uuid.UUID {
	id := uuid.New()
	f.repo.statuses[id] = domain.Status{ID: id, Code: code, IsActive: true}
	return id
}

func (f *fixture) addSubStatus(parent uuid.UUID) uuid.UUID {
	id := uuid.New()
	f.repo.subs[id] = domain.SubStatus{ID: id, StatusID: parent, Code: id.String()[:8], IsActive: true}
	return id
}

func (f *fixture) params(target uuid.UUID) TransitionParams {
	return TransitionParams{LeadID: f.lead, TargetID: target, Actor: f.owner, Note: "moved", Mode: domain.ModeManual}
}

func TestAdvanceStageClosesPreviousOpenRow(t *testing.T) {
	f := newFixture(t)
	first := f.addStage(true)
	second := f.addStage(true)
	ctx := context.Background()

	_, err := f.svc.AdvanceStage(ctx, f.params(first))
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	row, err := f.svc.AdvanceStage(ctx, f.params(second))
	require.NoError(t, err)

	open := f.repo.openRows(f.lead, domain.DimensionStage)
	require.Len(t, open, 1)
	assert.Equal(t, second, open[0].TargetID)
	assert.Equal(t, row.ID, open[0].ID)
	assert.Equal(t, second, *f.repo.leads[f.lead].StageID)

	history, err := f.svc.ListHistory(ctx, f.lead, domain.DimensionStage, f.owner)
	require.NoError(t, err)
	require.Len(t, history, 2)
	var closed domain.HistoryRow
	for _, h := range history {
		if !h.IsOpen() {
			closed = h
		}
	}
	require.NotNil(t, closed.DoneAt)
	require.NotNil(t, closed.CloseNote)
	assert.Equal(t, domain.AutoCloseNote, *closed.CloseNote)
	assert.Equal(t, "moved", closed.Note)
	assert.Equal(t, f.clock.Now().UTC(), *closed.DoneAt)

	assert.Equal(t, []string{"pipeline.stage.advanced", "pipeline.stage.advanced"}, f.bus.names())
}

func TestAdvanceStageToCurrentStageIsNoop(t *testing.T) {
	f := newFixture(t)
	stage := f.addStage(true)
	ctx := context.Background()

	first, err := f.svc.AdvanceStage(ctx, f.params(stage))
	require.NoError(t, err)
	again, err := f.svc.AdvanceStage(ctx, f.params(stage))
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, f.repo.rows, 1)
	assert.Len(t, f.bus.names(), 1)
}

func TestAdvanceStageRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("inactive stage", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.AdvanceStage(ctx, f.params(f.addStage(false)))
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Empty(t, f.repo.rows)
	})

	t.Run("missing stage", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.AdvanceStage(ctx, f.params(uuid.New()))
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("excluded lead", func(t *testing.T) {
		f := newFixture(t)
		f.repo.leads[f.lead].IsExcluded = true
		_, err := f.svc.AdvanceStage(ctx, f.params(f.addStage(true)))
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Empty(t, f.repo.rows)
	})

	t.Run("foreign sales", func(t *testing.T) {
		f := newFixture(t)
		other := uuid.New()
		p := f.params(f.addStage(true))
		p.Actor = actor.Actor{UserID: uuid.New(), Roles: []string{actor.RoleSales}, SalesID: &other}
		_, err := f.svc.AdvanceStage(ctx, p)
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
		assert.Empty(t, f.repo.rows)
	})

	t.Run("unknown lead", func(t *testing.T) {
		f := newFixture(t)
		p := f.params(f.addStage(true))
		p.LeadID = uuid.New()
		_, err := f.svc.AdvanceStage(ctx, p)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("unknown mode", func(t *testing.T) {
		f := newFixture(t)
		p := f.params(f.addStage(true))
		p.Mode = "robot"
		_, err := f.svc.AdvanceStage(ctx, p)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestCompleteStage(t *testing.T) {
	f := newFixture(t)
	current := f.addStage(true)
	checklist := f.addStage(true)
	ctx := context.Background()

	_, err := f.svc.AdvanceStage(ctx, f.params(current))
	require.NoError(t, err)

	closed, err := f.svc.CompleteStage(ctx, f.lead, current, f.owner, domain.ModeManual)
	require.NoError(t, err)
	require.NotNil(t, closed.DoneAt)
	assert.Nil(t, closed.CloseNote)
	assert.Empty(t, f.repo.openRows(f.lead, domain.DimensionStage))
	assert.Equal(t, current, *f.repo.leads[f.lead].StageID)
	assert.Len(t, f.repo.rows, 1)

	arrival, err := f.svc.CompleteStage(ctx, f.lead, checklist, f.owner, domain.ModeManual)
	require.NoError(t, err)
	require.NotNil(t, arrival.DoneAt)
	assert.Equal(t, checklist, arrival.TargetID)
	assert.Len(t, f.repo.rows, 2)
	assert.Equal(t, current, *f.repo.leads[f.lead].StageID)
}

func TestChangeStatusToTerminalStopsNurturing(t *testing.T) {
	f := newFixture(t)
	warm := f.addStatus("WARM")
	won := f.addStatus("CLOSE_WON")
	ctx := context.Background()

	_, err := f.svc.ChangeStatus(ctx, f.params(warm))
	require.NoError(t, err)
	assert.Empty(t, f.nurturing.stopped)

	_, err = f.svc.ChangeStatus(ctx, f.params(won))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.lead}, f.nurturing.stopped)
	assert.Contains(t, f.bus.names(), "nurturing.state.changed")
}

func TestLeavingTerminalStatusReopensNurturing(t *testing.T) {
	f := newFixture(t)
	lost := f.addStatus("CLOSE_LOST")
	warm := f.addStatus("WARM")
	ctx := context.Background()

	_, err := f.svc.ChangeStatus(ctx, f.params(lost))
	require.NoError(t, err)
	_, err = f.svc.ChangeStatus(ctx, f.params(warm))
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{f.lead}, f.nurturing.reopened)
}

func TestChangeSubStatusCascadesDerivedStatus(t *testing.T) {
	f := newFixture(t)
	warm := f.addStatus("WARM")
	hot := f.addStatus("HOT")
	sub := f.addSubStatus(hot)
	ctx := context.Background()

	_, err := f.svc.ChangeStatus(ctx, f.params(warm))
	require.NoError(t, err)
	_, err = f.svc.ChangeSubStatus(ctx, f.params(sub))
	require.NoError(t, err)

	statusOpen := f.repo.openRows(f.lead, domain.DimensionStatus)
	require.Len(t, statusOpen, 1)
	assert.Equal(t, hot, statusOpen[0].TargetID)
	assert.Equal(t, domain.ModeAuto, statusOpen[0].Mode)
	assert.Equal(t, domain.DerivedStatusNote, statusOpen[0].Note)

	subOpen := f.repo.openRows(f.lead, domain.DimensionSubStatus)
	require.Len(t, subOpen, 1)
	assert.Equal(t, sub, subOpen[0].TargetID)
	assert.Equal(t, hot, *f.repo.leads[f.lead].StatusID)
	assert.Equal(t, sub, *f.repo.leads[f.lead].SubStatusID)
}

func TestChangeStatusClosesOrphanedSubStatus(t *testing.T) {
	f := newFixture(t)
	hot := f.addStatus("HOT")
	warm := f.addStatus("WARM")
	sub := f.addSubStatus(hot)
	ctx := context.Background()

	_, err := f.svc.ChangeSubStatus(ctx, f.params(sub))
	require.NoError(t, err)
	_, err = f.svc.ChangeStatus(ctx, f.params(warm))
	require.NoError(t, err)

	assert.Empty(t, f.repo.openRows(f.lead, domain.DimensionSubStatus))
	assert.Nil(t, f.repo.leads[f.lead].SubStatusID)
}

func TestRandomTransitionsKeepSingleOpenRowPerDimension(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	stages := []uuid.UUID{f.addStage(true), f.addStage(true), f.addStage(true)}
	statuses := []uuid.UUID{f.addStatus("NEW"), f.addStatus("WARM"), f.addStatus("CLOSE_WON")}
	subs := []uuid.UUID{f.addSubStatus(statuses[0]), f.addSubStatus(statuses[1]), f.addSubStatus(statuses[2])}

	for i := 0; i < 200; i++ {
		f.clock.Advance(time.Minute)
		var err error
		switch rng.Intn(4) {
		case 0:
			_, err = f.svc.AdvanceStage(ctx, f.params(stages[rng.Intn(len(stages))]))
		case 1:
			_, err = f.svc.CompleteStage(ctx, f.lead, stages[rng.Intn(len(stages))], f.owner, domain.ModeManual)
		case 2:
			_, err = f.svc.ChangeStatus(ctx, f.params(statuses[rng.Intn(len(statuses))]))
		default:
			_, err = f.svc.ChangeSubStatus(ctx, f.params(subs[rng.Intn(len(subs))]))
		}
		require.NoError(t, err)

		for _, dim := range []domain.Dimension{domain.DimensionStage, domain.DimensionStatus, domain.DimensionSubStatus} {
			require.LessOrEqual(t, len(f.repo.openRows(f.lead, dim)), 1, "dimension %s after step %d", dim, i)
		}
	}
}

func TestListHistory(t *testing.T) {
	f := newFixture(t)
	first := f.addStage(true)
	second := f.addStage(true)
	ctx := context.Background()

	_, err := f.svc.AdvanceStage(ctx, f.params(first))
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	_, err = f.svc.AdvanceStage(ctx, f.params(second))
	require.NoError(t, err)

	rows, err := f.svc.ListHistory(ctx, f.lead, domain.DimensionStage, f.owner)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first, rows[0].TargetID)
	assert.NotNil(t, rows[0].DoneAt)
	assert.Nil(t, rows[1].DoneAt)

	statuses, err := f.svc.ListHistory(ctx, f.lead, domain.DimensionStatus, f.owner)
	require.NoError(t, err)
	assert.Empty(t, statuses)

	other := uuid.New()
	stranger := actor.Actor{UserID: uuid.New(), Roles: []string{actor.RoleSales}, SalesID: &other}
	_, err = f.svc.ListHistory(ctx, f.lead, domain.DimensionStage, stranger)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}
