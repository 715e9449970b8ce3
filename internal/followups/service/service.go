// Package service recalculates, lists and updates lead follow-ups.
package service

import (
	"context"
	"log/slog"
	"time"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/followups/domain"
	"leadflow_backend/internal/followups/repository"
	nurturingdomain "leadflow_backend/internal/nurturing/domain"
	"leadflow_backend/internal/shared/actor"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// NurturingPauser pauses nurturing inside the caller's transaction.
type NurturingPauser interface {
	PauseForRescheduleInTx(ctx context.Context, q db.DBTX, leadID uuid.UUID, now time.Time) (nurturingdomain.State, error)
}

// PlannedFollowUp is one slot a recalculation wants to create.
type PlannedFollowUp struct {
	LeadID       uuid.UUID `json:"leadId"`
	TypeID       int       `json:"typeId"`
	NextActionAt time.Time `json:"nextActionAt"`
	Created      bool      `json:"created"`
}

// Report is the outcome of a recalculation.
type Report struct {
	DryRun  bool              `json:"dryRun"`
	Leads   int               `json:"leads"`
	Planned []PlannedFollowUp `json:"planned"`
	Created int               `json:"created"`
	Skipped int               `json:"skipped"`
	Failed  int               `json:"failed"`
}

// Service manages follow-ups.
type Service struct {
	tx        db.TxRunner
	q         db.DBTX
	repo      repository.Repository
	nurturing NurturingPauser
	planner   domain.Planner
	bus       events.Bus
	clock     clockwork.Clock
	log       *logger.Logger
}

// New creates the follow-up service.
func New(tx db.TxRunner, q db.DBTX, repo repository.Repository, nurturing NurturingPauser, planner domain.Planner, bus events.Bus, clock clockwork.Clock, log *logger.Logger) *Service {
	return &Service{
		tx:        tx,
		q:         q,
		repo:      repo,
		nurturing: nurturing,
		planner:   planner,
		bus:       bus,
		clock:     clock,
		log:       log,
	}
}

// Recalculate plans the missing follow-up slots of every eligible lead of
// salesID. A dry run only reports; otherwise the slots are inserted and
// slots that appeared meanwhile count as skipped.
func (s *Service) Recalculate(ctx context.Context, salesID uuid.UUID, dryRun bool, act actor.Actor) (Report, error) {
	if !act.CanManage(salesID) {
		return Report{}, apperr.Forbidden("cannot recalculate follow-ups of another sales")
	}

	leads, err := s.repo.ListEligibleLeads(ctx, s.q, salesID)
	if err != nil {
		return Report{}, err
	}

	now := s.clock.Now().UTC()
	report := Report{DryRun: dryRun, Leads: len(leads), Planned: make([]PlannedFollowUp, 0)}
	for _, lead := range leads {
		slots := s.planner.PlanMissing(lead.MaxTypeID, domain.Anchor(lead.LatestAction, now))
		if len(slots) == 0 {
			continue
		}
		if dryRun {
			for _, slot := range slots {
				report.Planned = append(report.Planned, PlannedFollowUp{LeadID: lead.LeadID, TypeID: slot.TypeID, NextActionAt: slot.NextActionAt})
			}
			continue
		}

		planned, err := s.persist(ctx, lead, slots)
		if err != nil {
			s.log.Error("follow-up recalculation failed",
				slog.String("lead_id", lead.LeadID.String()),
				slog.String("error", err.Error()),
			)
			report.Failed += len(slots)
			continue
		}
		for _, p := range planned {
			if p.Created {
				report.Created++
			} else {
				report.Skipped++
			}
		}
		report.Planned = append(report.Planned, planned...)
	}
	return report, nil
}

func (s *Service) persist(ctx context.Context, lead repository.LeadSlots, slots []domain.Slot) ([]PlannedFollowUp, error) {
	var planned []PlannedFollowUp
	err := s.tx.WithinTx(ctx, func(q db.DBTX) error {
		planned = planned[:0]
		for _, slot := range slots {
			created, err := s.repo.Insert(ctx, q, domain.FollowUp{
				LeadID:       lead.LeadID,
				SalesID:      lead.SalesID,
				TypeID:       slot.TypeID,
				NextActionAt: slot.NextActionAt,
				Channel:      domain.DefaultChannel,
			})
			if err != nil {
				return err
			}
			planned = append(planned, PlannedFollowUp{LeadID: lead.LeadID, TypeID: slot.TypeID, NextActionAt: slot.NextActionAt, Created: created})
		}
		return nil
	})
	return planned, err
}

// List returns a lead's follow-ups in slot order.
func (s *Service) List(ctx context.Context, leadID uuid.UUID, act actor.Actor) ([]domain.FollowUp, error) {
	owner, err := s.repo.GetLeadOwner(ctx, s.q, leadID)
	if err != nil {
		return nil, err
	}
	if !act.CanManage(owner) {
		return nil, apperr.Forbidden("lead is owned by another sales")
	}
	return s.repo.ListByLead(ctx, s.q, leadID)
}

// Reschedule moves a pending follow-up and pauses the lead's nurturing in the
// same transaction.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, at time.Time, act actor.Actor) (domain.FollowUp, error) {
	var updated domain.FollowUp
	err := s.tx.WithinTx(ctx, func(q db.DBTX) error {
		f, err := s.lockOwned(ctx, q, id, act)
		if err != nil {
			return err
		}
		if f.IsDone() {
			return apperr.Validation("follow-up is already done")
		}
		if err := s.repo.Reschedule(ctx, q, id, at); err != nil {
			return err
		}
		if _, err := s.nurturing.PauseForRescheduleInTx(ctx, q, f.LeadID, s.clock.Now().UTC()); err != nil {
			return err
		}
		f.NextActionAt = at
		updated = f
		return nil
	})
	if err != nil {
		return domain.FollowUp{}, err
	}

	s.bus.Publish(ctx, events.FollowUpRescheduled{
		BaseEvent:    events.NewBaseEvent(),
		FollowUpID:   updated.ID,
		LeadID:       updated.LeadID,
		SalesID:      updated.SalesID,
		NextActionAt: updated.NextActionAt,
	})
	return updated, nil
}

// Complete marks a follow-up done. Completing a done follow-up returns it unchanged.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, note string, act actor.Actor) (domain.FollowUp, error) {
	var (
		completed domain.FollowUp
		changed   bool
	)
	err := s.tx.WithinTx(ctx, func(q db.DBTX) error {
		f, err := s.lockOwned(ctx, q, id, act)
		if err != nil {
			return err
		}
		if f.IsDone() {
			completed = f
			return nil
		}
		now := s.clock.Now().UTC()
		if err := s.repo.Complete(ctx, q, id, now, note); err != nil {
			return err
		}
		f.DoneAt = &now
		if note != "" {
			f.Note = note
		}
		completed = f
		changed = true
		return nil
	})
	if err != nil {
		return domain.FollowUp{}, err
	}

	if changed {
		s.bus.Publish(ctx, events.FollowUpCompleted{
			BaseEvent:  events.NewBaseEvent(),
			FollowUpID: completed.ID,
			LeadID:     completed.LeadID,
			SalesID:    completed.SalesID,
		})
	}
	return completed, nil
}

func (s *Service) lockOwned(ctx context.Context, q db.DBTX, id uuid.UUID, act actor.Actor) (domain.FollowUp, error) {
	f, err := s.repo.Lock(ctx, q, id)
	if err != nil {
		return domain.FollowUp{}, err
	}
	if !act.CanManage(f.SalesID) {
		return domain.FollowUp{}, apperr.Forbidden("follow-up belongs to another sales")
	}
	return f, nil
}
