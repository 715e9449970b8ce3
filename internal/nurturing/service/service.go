// Package service runs the nurturing state machine against the store and
// drives the auto-resume and send sweeps.
package service

import (
	"context"
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
	"golang.org/x/time/rate"
)

// PlanResolver is the slice of the plan catalog nurturing reads.
type PlanResolver interface {
	ResolvePlan(ctx context.Context, key catalogsvc.PlanKey) (*catalogrepo.Plan, error)
	LookupPlan(ctx context.Context, id uuid.UUID) (catalogrepo.Plan, error)
	StepAt(ctx context.Context, planID uuid.UUID, order int) (catalogrepo.ResolvedStep, bool, error)
}

// Gateway delivers outbound messages. Errors are treated as retryable.
type Gateway interface {
	SendMessage(ctx context.Context, userID, to, body string) (string, error)
	SendDocument(ctx context.Context, userID, to, fileURL, fileName, mime, caption string) (string, error)
}

// LinkMinter creates tracked short links inside the caller's transaction.
type LinkMinter interface {
	MintInTx(ctx context.Context, q db.DBTX, leadID, salesID uuid.UUID, targetURL string) (string, error)
	ShortURL(code string) string
}

// MediaResolver turns stored media references into fetchable URLs.
type MediaResolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// SweepObserver records sweep outcomes.
type SweepObserver interface {
	ObserveSweep(sweep string, processed, succeeded, failed, skipped int, elapsed time.Duration)
}

// Deps wires the nurturing service.
type Deps struct {
	Tx       db.TxRunner
	DB       db.DBTX
	Repo     repository.Repository
	Plans    PlanResolver
	Gateway  Gateway
	Links    LinkMinter
	Media    MediaResolver
	Bus      events.Bus
	Clock    clockwork.Clock
	Observer SweepObserver
	Log      *logger.Logger

	AutoResumeIdle time.Duration
	BatchSize      int
	DispatchDelay  time.Duration
	LinkTargetURL  string
}

// Service owns nurturing state transitions and sweeps.
type Service struct {
	tx       db.TxRunner
	q        db.DBTX
	repo     repository.Repository
	plans    PlanResolver
	gateway  Gateway
	links    LinkMinter
	media    MediaResolver
	bus      events.Bus
	clock    clockwork.Clock
	observer SweepObserver
	log      *logger.Logger
	limiter  *rate.Limiter

	idle       time.Duration
	batchSize  int
	linkTarget string
}

// New creates the nurturing service.
func New(d Deps) *Service {
	limit := rate.Inf
	if d.DispatchDelay > 0 {
		limit = rate.Every(d.DispatchDelay)
	}
	return &Service{
		tx:         d.Tx,
		q:          d.DB,
		repo:       d.Repo,
		plans:      d.Plans,
		gateway:    d.Gateway,
		links:      d.Links,
		media:      d.Media,
		bus:        d.Bus,
		clock:      d.Clock,
		observer:   d.Observer,
		log:        d.Log,
		limiter:    rate.NewLimiter(limit, 1),
		idle:       d.AutoResumeIdle,
		batchSize:  d.BatchSize,
		linkTarget: d.LinkTargetURL,
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// Get returns the lead's state; a lead without a record reads as paused.
func (s *Service) Get(ctx context.Context, leadID uuid.UUID, act actor.Actor) (domain.State, error) {
	if _, err := s.ownedLead(ctx, s.q, leadID, act); err != nil {
		return domain.State{}, err
	}
	st, err := s.repo.GetState(ctx, s.q, leadID)
	if err != nil {
		return domain.State{}, err
	}
	if st == nil {
		return domain.NewState(leadID), nil
	}
	return *st, nil
}

// Toggle switches nurturing on or off for the lead.
func (s *Service) Toggle(ctx context.Context, leadID uuid.UUID, enabled bool, act actor.Actor) (domain.State, error) {
	return s.mutate(ctx, leadID, act, func(_ context.Context, _ db.DBTX, _ repository.LeadContact, st domain.State, now time.Time) (domain.State, error) {
		return st.Toggle(enabled, now), nil
	})
}

// PauseManually pauses the lead and keeps it out of auto-resume.
func (s *Service) PauseManually(ctx context.Context, leadID uuid.UUID, reason string, act actor.Actor) (domain.State, error) {
	return s.mutate(ctx, leadID, act, func(_ context.Context, _ db.DBTX, _ repository.LeadContact, st domain.State, now time.Time) (domain.State, error) {
		return st.PauseManually(reason, now), nil
	})
}

// Stop ends the lead's sequence.
func (s *Service) Stop(ctx context.Context, leadID uuid.UUID, act actor.Actor) (domain.State, error) {
	return s.mutate(ctx, leadID, act, func(_ context.Context, _ db.DBTX, _ repository.LeadContact, st domain.State, _ time.Time) (domain.State, error) {
		return st.Stop(domain.ReasonStoppedByUser), nil
	})
}

// BindPlan attaches planID, or the best matching catalog plan when planID is nil.
func (s *Service) BindPlan(ctx context.Context, leadID uuid.UUID, planID *uuid.UUID, act actor.Actor) (domain.State, error) {
	return s.mutate(ctx, leadID, act, func(ctx context.Context, _ db.DBTX, lead repository.LeadContact, st domain.State, _ time.Time) (domain.State, error) {
		if planID != nil {
			plan, err := s.plans.LookupPlan(ctx, *planID)
			if err != nil {
				if apperr.Is(err, apperr.KindNotFound) {
					return st, apperr.Validation("nurturing plan does not exist")
				}
				return st, err
			}
			if !plan.IsActive {
				return st, apperr.Validation("nurturing plan is inactive")
			}
			return st.BindPlan(&plan.ID), nil
		}

		plan, err := s.plans.ResolvePlan(ctx, catalogsvc.PlanKey{
			ProductID:  lead.ProductID,
			SourceID:   lead.SourceID,
			StatusCode: lead.StatusCode,
		})
		if err != nil {
			return st, err
		}
		if plan == nil {
			return st, apperr.NotFound("no nurturing plan matches the lead")
		}
		return st.BindPlan(&plan.ID), nil
	})
}

type mutation func(ctx context.Context, q db.DBTX, lead repository.LeadContact, st domain.State, now time.Time) (domain.State, error)

func (s *Service) mutate(ctx context.Context, leadID uuid.UUID, act actor.Actor, fn mutation) (domain.State, error) {
	var (
		saved domain.State
		lead  repository.LeadContact
	)
	err := s.tx.WithinTx(ctx, func(q db.DBTX) error {
		var err error
		lead, err = s.ownedLead(ctx, q, leadID, act)
		if err != nil {
			return err
		}
		current, err := s.loadForUpdate(ctx, q, leadID)
		if err != nil {
			return err
		}
		next, err := fn(ctx, q, lead, current, s.now())
		if err != nil {
			return err
		}
		saved, err = s.repo.UpsertState(ctx, q, next)
		return err
	})
	if err != nil {
		return domain.State{}, err
	}

	s.publishState(ctx, lead.SalesID, saved)
	return saved, nil
}

// StopInTx stops nurturing inside the caller's transaction. A lead without
// a record gets a stopped one. The boolean reports a status change.
func (s *Service) StopInTx(ctx context.Context, q db.DBTX, leadID uuid.UUID, _ time.Time) (bool, error) {
	current, err := s.loadForUpdate(ctx, q, leadID)
	if err != nil {
		return false, err
	}
	wasStopped := current.Status == domain.StatusStopped
	if _, err := s.repo.UpsertState(ctx, q, current.Stop(domain.ReasonStatusTerminal)); err != nil {
		return false, err
	}
	return !wasStopped, nil
}

// ReopenInTx turns a stopped state into an auto-resumable paused one.
func (s *Service) ReopenInTx(ctx context.Context, q db.DBTX, leadID uuid.UUID, now time.Time) (bool, error) {
	current, err := s.repo.LockState(ctx, q, leadID)
	if err != nil || current == nil {
		return false, err
	}
	next, ok := current.Reopen(now)
	if !ok {
		return false, nil
	}
	if _, err := s.repo.UpsertState(ctx, q, next); err != nil {
		return false, err
	}
	return true, nil
}

// PauseForRescheduleInTx pauses nurturing after a follow-up was moved.
func (s *Service) PauseForRescheduleInTx(ctx context.Context, q db.DBTX, leadID uuid.UUID, now time.Time) (domain.State, error) {
	current, err := s.loadForUpdate(ctx, q, leadID)
	if err != nil {
		return domain.State{}, err
	}
	return s.repo.UpsertState(ctx, q, current.PauseForReschedule(now))
}

func (s *Service) loadForUpdate(ctx context.Context, q db.DBTX, leadID uuid.UUID) (domain.State, error) {
	st, err := s.repo.LockState(ctx, q, leadID)
	if err != nil {
		return domain.State{}, err
	}
	if st == nil {
		return domain.NewState(leadID), nil
	}
	return *st, nil
}

func (s *Service) ownedLead(ctx context.Context, q db.DBTX, leadID uuid.UUID, act actor.Actor) (repository.LeadContact, error) {
	lead, err := s.repo.GetLeadContact(ctx, q, leadID)
	if err != nil {
		return repository.LeadContact{}, err
	}
	if !act.CanManage(lead.SalesID) {
		return repository.LeadContact{}, apperr.Forbidden("lead is owned by another sales")
	}
	return lead, nil
}

func (s *Service) publishState(ctx context.Context, salesID uuid.UUID, st domain.State) {
	reason := ""
	if st.PauseReason != nil {
		reason = *st.PauseReason
	}
	s.bus.Publish(ctx, events.NurturingStateChanged{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     st.LeadID,
		SalesID:    salesID,
		Status:     string(st.Status),
		Reason:     reason,
		NextSendAt: st.NextSendAt,
	})
}
