package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	catalogrepo "leadflow_backend/internal/catalog/repository"
	catalogsvc "leadflow_backend/internal/catalog/service"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/nurturing/domain"
	"leadflow_backend/internal/nurturing/repository"
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

func (fakeTx) WithinTx(_ context.Context, fn func(q db.DBTX) error) error {
	return fn(nil)
}

type fakeRepo struct {
	mu       sync.Mutex
	states   map[uuid.UUID]domain.State
	leads    map[uuid.UUID]repository.LeadContact
	undone   map[uuid.UUID]bool
	sendLog  []repository.SendLogEntry
	outbound map[uuid.UUID]time.Time

	// onContact runs when a sweep loads the lead, between listing and writing.
	onContact func(leadID uuid.UUID)
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		states:   make(map[uuid.UUID]domain.State),
		leads:    make(map[uuid.UUID]repository.LeadContact),
		undone:   make(map[uuid.UUID]bool),
		outbound: make(map[uuid.UUID]time.Time),
	}
}

func (r *fakeRepo) GetState(_ context.Context, _ db.DBTX, leadID uuid.UUID) (*domain.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[leadID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (r *fakeRepo) LockState(ctx context.Context, q db.DBTX, leadID uuid.UUID) (*domain.State, error) {
	return r.GetState(ctx, q, leadID)
}

func (r *fakeRepo) UpsertState(_ context.Context, _ db.DBTX, s domain.State) (domain.State, error) {
	if err := s.Validate(); err != nil {
		return domain.State{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[s.LeadID] = s
	return s, nil
}

func (r *fakeRepo) ListResumeCandidates(_ context.Context, _ db.DBTX, pausedBefore time.Time, limit int) ([]domain.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.State
	for _, st := range r.states {
		if st.Status == domain.StatusPaused && !st.ManualPaused && st.PausedAt != nil && !st.PausedAt.After(pausedBefore) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PausedAt.Before(*out[j].PausedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) ListDue(_ context.Context, _ db.DBTX, now time.Time, limit int) ([]domain.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.State
	for _, st := range r.states {
		if st.Status == domain.StatusActive && st.NextSendAt != nil && !st.NextSendAt.After(now) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextSendAt.Before(*out[j].NextSendAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) HasUndoneFollowUp(_ context.Context, _ db.DBTX, leadID uuid.UUID) (bool, error) {
	return r.undone[leadID], nil
}

func (r *fakeRepo) GetLeadContact(_ context.Context, _ db.DBTX, leadID uuid.UUID) (repository.LeadContact, error) {
	if r.onContact != nil {
		r.onContact(leadID)
	}
	lead, ok := r.leads[leadID]
	if !ok {
		return repository.LeadContact{}, apperr.NotFound("lead not found")
	}
	return lead, nil
}

func (r *fakeRepo) ResumeIfPaused(_ context.Context, _ db.DBTX, s domain.State, pausedBefore time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.states[s.LeadID]
	if !ok || cur.Status != domain.StatusPaused || cur.ManualPaused || cur.PausedAt == nil || cur.PausedAt.After(pausedBefore) {
		return false, nil
	}
	cur.Status = s.Status
	cur.PauseReason = nil
	cur.PausedAt = nil
	cur.NextSendAt = s.NextSendAt
	r.states[s.LeadID] = cur
	return true, nil
}

func (r *fakeRepo) UpdateIfStep(_ context.Context, _ db.DBTX, s domain.State, expectedStep int) (bool, error) {
	if err := s.Validate(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.states[s.LeadID]
	if !ok || cur.Status != domain.StatusActive || cur.CurrentStep != expectedStep {
		return false, nil
	}
	r.states[s.LeadID] = s
	return true, nil
}

func (r *fakeRepo) SetPendingLinkCode(_ context.Context, _ db.DBTX, leadID uuid.UUID, expectedStep int, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.states[leadID]
	if !ok || cur.Status != domain.StatusActive || cur.CurrentStep != expectedStep || cur.PendingLinkCode != nil {
		return false, nil
	}
	cur.PendingLinkCode = &code
	r.states[leadID] = cur
	return true, nil
}

func (r *fakeRepo) InsertSendLog(_ context.Context, _ db.DBTX, e repository.SendLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendLog = append(r.sendLog, e)
	return nil
}

func (r *fakeRepo) TouchLastOutbound(_ context.Context, _ db.DBTX, leadID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outbound[leadID] = at
	return nil
}

func (r *fakeRepo) state(leadID uuid.UUID) domain.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[leadID]
}

func (r *fakeRepo) mutate(leadID uuid.UUID, fn func(domain.State) domain.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[leadID] = fn(r.states[leadID])
}

type fakePlans struct {
	plans    map[uuid.UUID]catalogrepo.Plan
	steps    map[uuid.UUID][]catalogrepo.ResolvedStep
	resolved *catalogrepo.Plan
}

func (p *fakePlans) ResolvePlan(context.Context, catalogsvc.PlanKey) (*catalogrepo.Plan, error) {
	return p.resolved, nil
}

func (p *fakePlans) LookupPlan(_ context.Context, id uuid.UUID) (catalogrepo.Plan, error) {
	plan, ok := p.plans[id]
	if !ok {
		return catalogrepo.Plan{}, apperr.NotFound("plan not found")
	}
	return plan, nil
}

func (p *fakePlans) StepAt(_ context.Context, planID uuid.UUID, order int) (catalogrepo.ResolvedStep, bool, error) {
	steps := p.steps[planID]
	if order < 0 || order >= len(steps) {
		return catalogrepo.ResolvedStep{}, false, nil
	}
	return steps[order], true, nil
}

type sentMessage struct {
	To      string
	Body    string
	FileURL string
}

type fakeGateway struct {
	mu       sync.Mutex
	failFor  map[string]bool
	panicFor map[string]bool
	sent     []sentMessage
}

func (g *fakeGateway) deliver(to string, msg sentMessage) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.panicFor[to] {
		panic("gateway exploded")
	}
	if g.failFor[to] {
		return "", apperr.Unavailable("gateway down", errors.New("503"))
	}
	g.sent = append(g.sent, msg)
	return fmt.Sprintf("msg-%d", len(g.sent)), nil
}

func (g *fakeGateway) SendMessage(_ context.Context, _, to, body string) (string, error) {
	return g.deliver(to, sentMessage{To: to, Body: body})
}

func (g *fakeGateway) SendDocument(_ context.Context, _, to, fileURL, _, _, caption string) (string, error) {
	return g.deliver(to, sentMessage{To: to, Body: caption, FileURL: fileURL})
}

type fakeLinks struct {
	minted int
}

func (l *fakeLinks) MintInTx(context.Context, db.DBTX, uuid.UUID, uuid.UUID, string) (string, error) {
	l.minted++
	return fmt.Sprintf("code%d", l.minted), nil
}

func (l *fakeLinks) ShortURL(code string) string { return "https://t.example/l/" + code }

type fakeMedia struct{}

func (fakeMedia) Resolve(_ context.Context, raw string) (string, error) {
	return "https://signed.example/" + raw, nil
}

type nopBus struct{}

func (nopBus) Publish(context.Context, events.Event)           {}
func (nopBus) PublishSync(context.Context, events.Event) error { return nil }
func (nopBus) Subscribe(string, events.Handler)                {}

type fixture struct {
	svc     *Service
	repo    *fakeRepo
	plans   *fakePlans
	gateway *fakeGateway
	links   *fakeLinks
	clock   clockwork.FakeClock
	salesID uuid.UUID
	owner   actor.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:    newFakeRepo(),
		plans:   &fakePlans{plans: map[uuid.UUID]catalogrepo.Plan{}, steps: map[uuid.UUID][]catalogrepo.ResolvedStep{}},
		gateway: &fakeGateway{failFor: map[string]bool{}, panicFor: map[string]bool{}},
		links:   &fakeLinks{},
		clock:   clockwork.NewFakeClockAt(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)),
		salesID: uuid.New(),
	}
	f.owner = actor.Actor{UserID: uuid.New(), Roles: []string{actor.RoleSales}, SalesID: &f.salesID}
	f.svc = New(Deps{
		Tx:             fakeTx{},
		Repo:           f.repo,
		Plans:          f.plans,
		Gateway:        f.gateway,
		Links:          f.links,
		Media:          fakeMedia{},
		Bus:            nopBus{},
		Clock:          f.clock,
		Log:            logger.Discard(),
		AutoResumeIdle: 48 * time.Hour,
		BatchSize:      10,
		LinkTargetURL:  "https://landing.example",
	})
	return f
}

func (f *fixture) addLead(phone string) uuid.UUID {
	id := uuid.New()
	f.repo.leads[id] = repository.LeadContact{ID: id, SalesID: f.salesID, Name: "Sam Jansen", Phone: phone}
	return id
}

func (f *fixture) addPlan(steps ...catalogrepo.Template) uuid.UUID {
	planID := uuid.New()
	f.plans.plans[planID] = catalogrepo.Plan{ID: planID, Name: planID.String(), IsActive: true}
	for i, tpl := range steps {
		f.plans.steps[planID] = append(f.plans.steps[planID], catalogrepo.ResolvedStep{
			Step:     catalogrepo.Step{PlanID: planID, Order: i, DelayHours: 24 * (i + 1), Slot: catalogrepo.SlotA},
			Template: tpl,
		})
	}
	return planID
}

func (f *fixture) activate(t *testing.T, leadID uuid.UUID, planID *uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	if planID != nil {
		_, err := f.svc.BindPlan(ctx, leadID, planID, f.owner)
		require.NoError(t, err)
	}
	_, err := f.svc.Toggle(ctx, leadID, true, f.owner)
	require.NoError(t, err)
}

func TestPlanlessToggleIsStoppedByNextSendSweep(t *testing.T) {
	f := newFixture(t)
	lead := f.addLead("+31600000001")
	ctx := context.Background()
	start := f.clock.Now().UTC()

	st, err := f.svc.Toggle(ctx, lead, true, f.owner)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, st.Status)
	assert.Zero(t, st.CurrentStep)
	require.NotNil(t, st.NextSendAt)
	assert.Equal(t, start.Add(domain.ResumeLead), *st.NextSendAt)

	f.clock.Advance(domain.ResumeLead)
	result, err := f.svc.RunSendSweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.SweepResult{Processed: 1, Skipped: 1}, result)

	stopped := f.repo.state(lead)
	assert.Equal(t, domain.StatusStopped, stopped.Status)
	assert.Nil(t, stopped.NextSendAt)
	assert.Empty(t, f.gateway.sent)
}

func TestSendSweepAdvancesThroughPlan(t *testing.T) {
	f := newFixture(t)
	lead := f.addLead("+31600000002")
	plan := f.addPlan(
		catalogrepo.Template{Body: "Hi {{first_name}}"},
		catalogrepo.Template{Body: "Still there, {{name}}?"},
	)
	ctx := context.Background()
	f.activate(t, lead, &plan)

	f.clock.Advance(domain.ResumeLead)
	sentAt := f.clock.Now().UTC()
	result, err := f.svc.RunSendSweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.SweepResult{Processed: 1, Succeeded: 1}, result)

	st := f.repo.state(lead)
	assert.Equal(t, 1, st.CurrentStep)
	assert.Equal(t, sentAt.Add(48*time.Hour), *st.NextSendAt)
	assert.Equal(t, "msg-1", *st.LastMessageKey)
	assert.Equal(t, sentAt, *st.LastSentAt)
	assert.Equal(t, sentAt, f.repo.outbound[lead])
	require.Len(t, f.gateway.sent, 1)
	assert.Equal(t, "Hi Sam", f.gateway.sent[0].Body)
	require.Len(t, f.repo.sendLog, 1)
	assert.Equal(t, domain.DeliveryText, f.repo.sendLog[0].Kind)

	f.clock.Advance(48 * time.Hour)
	_, err = f.svc.RunSendSweep(ctx, 0)
	require.NoError(t, err)

	final := f.repo.state(lead)
	assert.Equal(t, domain.StatusStopped, final.Status)
	assert.Equal(t, "msg-2", *final.LastMessageKey)
	assert.Equal(t, "Still there, Sam Jansen?", f.gateway.sent[1].Body)
}

func TestFailedDispatchLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	phone := "+31600000003"
	lead := f.addLead(phone)
	plan := f.addPlan(catalogrepo.Template{Body: "hello"})
	ctx := context.Background()
	f.activate(t, lead, &plan)
	f.clock.Advance(domain.ResumeLead)

	before := f.repo.state(lead)
	f.gateway.failFor[phone] = true

	result, err := f.svc.RunSendSweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.SweepResult{Processed: 1, Failed: 1}, result)

	after := f.repo.state(lead)
	assert.Equal(t, before.CurrentStep, after.CurrentStep)
	assert.Equal(t, before.NextSendAt, after.NextSendAt)
	assert.Equal(t, before.LastSentAt, after.LastSentAt)
	assert.Empty(t, f.repo.sendLog)

	due, err := f.repo.ListDue(ctx, nil, f.clock.Now().UTC(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, lead, due[0].LeadID)
}

func TestTrackedLinkIsMintedOnceAcrossRetries(t *testing.T) {
	f := newFixture(t)
	phone := "+31600000004"
	lead := f.addLead(phone)
	plan := f.addPlan(catalogrepo.Template{Body: "Read more: {{link}}"})
	ctx := context.Background()
	f.activate(t, lead, &plan)
	f.clock.Advance(domain.ResumeLead)

	f.gateway.failFor[phone] = true
	_, err := f.svc.RunSendSweep(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, f.repo.state(lead).PendingLinkCode)
	assert.Equal(t, "code1", *f.repo.state(lead).PendingLinkCode)

	f.gateway.failFor[phone] = false
	result, err := f.svc.RunSendSweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)

	assert.Equal(t, 1, f.links.minted)
	require.Len(t, f.gateway.sent, 1)
	assert.Equal(t, "Read more: https://t.example/l/code1", f.gateway.sent[0].Body)
	assert.Nil(t, f.repo.state(lead).PendingLinkCode)
}

func TestDocumentStepIsSentAsPresignedDocument(t *testing.T) {
	f := newFixture(t)
	lead := f.addLead("+31600000005")
	media := "s3://docs/brochure.pdf"
	plan := f.addPlan(catalogrepo.Template{Body: "Our brochure", MediaURL: &media})
	ctx := context.Background()
	f.activate(t, lead, &plan)
	f.clock.Advance(domain.ResumeLead)

	_, err := f.svc.RunSendSweep(ctx, 0)
	require.NoError(t, err)

	require.Len(t, f.gateway.sent, 1)
	assert.Equal(t, "https://signed.example/s3://docs/brochure.pdf", f.gateway.sent[0].FileURL)
	assert.Equal(t, domain.DeliveryDocument, f.repo.sendLog[0].Kind)
}

func TestPdfMimeWithoutURLIsSentAsText(t *testing.T) {
	f := newFixture(t)
	lead := f.addLead("+31600000008")
	mime := "application/pdf"
	plan := f.addPlan(
		catalogrepo.Template{Body: "See attached", MediaMime: &mime},
		catalogrepo.Template{Body: "next"},
	)
	ctx := context.Background()
	f.activate(t, lead, &plan)
	f.clock.Advance(domain.ResumeLead)

	result, err := f.svc.RunSendSweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.SweepResult{Processed: 1, Succeeded: 1}, result)

	require.Len(t, f.gateway.sent, 1)
	assert.Equal(t, "See attached", f.gateway.sent[0].Body)
	assert.Empty(t, f.gateway.sent[0].FileURL)
	require.Len(t, f.repo.sendLog, 1)
	assert.Equal(t, domain.DeliveryText, f.repo.sendLog[0].Kind)
	assert.Equal(t, 1, f.repo.state(lead).CurrentStep)
}

func TestSendSweepSkipsLeadChangedAfterListing(t *testing.T) {
	f := newFixture(t)
	lead := f.addLead("+31600000009")
	plan := f.addPlan(catalogrepo.Template{Body: "hello"}, catalogrepo.Template{Body: "again"})
	ctx := context.Background()
	f.activate(t, lead, &plan)
	f.clock.Advance(domain.ResumeLead)

	f.repo.onContact = func(id uuid.UUID) {
		f.repo.mutate(id, func(st domain.State) domain.State {
			return st.Toggle(false, f.clock.Now().UTC())
		})
	}

	result, err := f.svc.RunSendSweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.SweepResult{Processed: 1, Skipped: 1}, result)
	assert.Empty(t, f.gateway.sent)
	assert.Empty(t, f.repo.sendLog)

	st := f.repo.state(lead)
	assert.Equal(t, domain.StatusPaused, st.Status)
	assert.Zero(t, st.CurrentStep)
}

func TestSendSweepIsolatesPanics(t *testing.T) {
	f := newFixture(t)
	bad := f.addLead("+31600000006")
	good := f.addLead("+31600000007")
	plan := f.addPlan(catalogrepo.Template{Body: "hello"})
	ctx := context.Background()
	f.activate(t, bad, &plan)
	f.activate(t, good, &plan)
	f.gateway.panicFor["+31600000006"] = true
	f.clock.Advance(domain.ResumeLead)

	result, err := f.svc.RunSendSweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.SweepResult{Processed: 2, Succeeded: 1, Failed: 1}, result)
	assert.Equal(t, 1, f.repo.state(good).CurrentStep)
	assert.Zero(t, f.repo.state(bad).CurrentStep)
}

func TestAutoResumeGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now().UTC()
	longAgo := now.Add(-72 * time.Hour)
	recent := now.Add(-2 * time.Hour)

	pausedState := func(lead uuid.UUID) domain.State {
		reason := domain.ReasonToggledOff
		return domain.State{LeadID: lead, Status: domain.StatusPaused, PauseReason: &reason, PausedAt: &longAgo}
	}

	clean := f.addLead("+31600000010")
	withFollowUp := f.addLead("+31600000011")
	responded := f.addLead("+31600000012")
	manual := f.addLead("+31600000013")
	fresh := f.addLead("+31600000014")

	for _, id := range []uuid.UUID{clean, withFollowUp, responded} {
		f.repo.states[id] = pausedState(id)
	}
	f.repo.undone[withFollowUp] = true
	contact := f.repo.leads[responded]
	contact.LastInboundAt = &recent
	f.repo.leads[responded] = contact

	manualState := pausedState(manual)
	manualState.ManualPaused = true
	f.repo.states[manual] = manualState

	freshState := pausedState(fresh)
	freshState.PausedAt = &recent
	f.repo.states[fresh] = freshState

	result, err := f.svc.RunAutoResumeSweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.SweepResult{Processed: 3, Succeeded: 1, Skipped: 2}, result)

	resumed := f.repo.state(clean)
	assert.Equal(t, domain.StatusActive, resumed.Status)
	assert.Equal(t, now.Add(domain.ResumeLead), *resumed.NextSendAt)

	for _, id := range []uuid.UUID{withFollowUp, responded, manual, fresh} {
		assert.Equal(t, domain.StatusPaused, f.repo.state(id).Status)
	}
}

func TestAutoResumeKeepsLeadToggledOffAfterListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	longAgo := f.clock.Now().UTC().Add(-72 * time.Hour)
	lead := f.addLead("+31600000015")
	reason := domain.ReasonToggledOff
	f.repo.states[lead] = domain.State{LeadID: lead, Status: domain.StatusPaused, PauseReason: &reason, PausedAt: &longAgo}

	f.repo.onContact = func(id uuid.UUID) {
		f.repo.mutate(id, func(st domain.State) domain.State {
			return st.Toggle(false, f.clock.Now().UTC())
		})
	}

	result, err := f.svc.RunAutoResumeSweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.SweepResult{Processed: 1, Skipped: 1}, result)

	st := f.repo.state(lead)
	assert.Equal(t, domain.StatusPaused, st.Status)
	assert.Equal(t, f.clock.Now().UTC(), *st.PausedAt)
	assert.Nil(t, st.NextSendAt)
}

func TestStopAndReopenInTx(t *testing.T) {
	f := newFixture(t)
	lead := f.addLead("+31600000020")
	ctx := context.Background()
	now := f.clock.Now().UTC()

	changed, err := f.svc.StopInTx(ctx, nil, lead, now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.StatusStopped, f.repo.state(lead).Status)

	changed, err = f.svc.StopInTx(ctx, nil, lead, now)
	require.NoError(t, err)
	assert.False(t, changed)

	reopened, err := f.svc.ReopenInTx(ctx, nil, lead, now)
	require.NoError(t, err)
	assert.True(t, reopened)
	st := f.repo.state(lead)
	assert.Equal(t, domain.StatusPaused, st.Status)
	assert.Equal(t, now, *st.PausedAt)
}

func TestStopInTxClearsActiveSchedule(t *testing.T) {
	f := newFixture(t)
	lead := f.addLead("+31600000021")
	plan := f.addPlan(catalogrepo.Template{Body: "x"})
	f.activate(t, lead, &plan)

	_, err := f.svc.StopInTx(context.Background(), nil, lead, f.clock.Now())
	require.NoError(t, err)

	st := f.repo.state(lead)
	assert.Equal(t, domain.StatusStopped, st.Status)
	assert.Nil(t, st.NextSendAt)
	assert.Zero(t, st.CurrentStep)
}

func TestBindPlan(t *testing.T) {
	f := newFixture(t)
	lead := f.addLead("+31600000030")
	ctx := context.Background()

	_, err := f.svc.BindPlan(ctx, lead, nil, f.owner)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	resolved := f.addPlan(catalogrepo.Template{Body: "a"})
	plan := f.plans.plans[resolved]
	f.plans.resolved = &plan

	st, err := f.svc.BindPlan(ctx, lead, nil, f.owner)
	require.NoError(t, err)
	assert.Equal(t, resolved, *st.PlanID)

	inactive := f.addPlan()
	p := f.plans.plans[inactive]
	p.IsActive = false
	f.plans.plans[inactive] = p
	_, err = f.svc.BindPlan(ctx, lead, &inactive, f.owner)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestToggleRejectsForeignSales(t *testing.T) {
	f := newFixture(t)
	lead := f.addLead("+31600000040")
	other := uuid.New()
	stranger := actor.Actor{UserID: uuid.New(), Roles: []string{actor.RoleSales}, SalesID: &other}

	_, err := f.svc.Toggle(context.Background(), lead, true, stranger)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, exists := f.repo.states[lead]
	assert.False(t, exists)
}

func TestPauseForRescheduleInTx(t *testing.T) {
	f := newFixture(t)
	lead := f.addLead("+31600000050")
	plan := f.addPlan(catalogrepo.Template{Body: "x"})
	f.activate(t, lead, &plan)

	st, err := f.svc.PauseForRescheduleInTx(context.Background(), nil, lead, f.clock.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, st.Status)
	assert.False(t, st.ManualPaused)
	assert.Nil(t, st.NextSendAt)
	assert.Equal(t, domain.ReasonFollowUpRescheduled, *st.PauseReason)
}
