// Package service implements the stage/status/sub-status transition engine.
// Every transition locks the lead row, closes the open interval of the
// dimension and opens the new one in a single transaction.
package service

import (
	"context"
	"time"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/pipeline/domain"
	"leadflow_backend/internal/pipeline/repository"
	"leadflow_backend/internal/shared/actor"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// NurturingLifecycle lets status transitions stop or revive nurturing inside
// the transition transaction. The boolean reports whether state changed.
type NurturingLifecycle interface {
	StopInTx(ctx context.Context, q db.DBTX, leadID uuid.UUID, now time.Time) (bool, error)
	ReopenInTx(ctx context.Context, q db.DBTX, leadID uuid.UUID, now time.Time) (bool, error)
}

// TransitionParams describes a user or system triggered transition.
type TransitionParams struct {
	LeadID   uuid.UUID
	TargetID uuid.UUID
	Actor    actor.Actor
	Note     string
	Mode     domain.Mode
}

// Service is the transition engine.
type Service struct {
	tx        db.TxRunner
	q         db.DBTX
	repo      repository.Repository
	nurturing NurturingLifecycle
	bus       events.Bus
	clock     clockwork.Clock
	log       *logger.Logger
}

// New creates a transition engine. q serves reads outside transactions.
func New(tx db.TxRunner, q db.DBTX, repo repository.Repository, nurturing NurturingLifecycle, bus events.Bus, clock clockwork.Clock, log *logger.Logger) *Service {
	return &Service{
		tx:        tx,
		q:         q,
		repo:      repo,
		nurturing: nurturing,
		bus:       bus,
		clock:     clock,
		log:       log,
	}
}

// pending collects events to publish once the transaction committed.
type pending []events.Event

func (p *pending) add(e events.Event) { *p = append(*p, e) }

func (s *Service) publish(ctx context.Context, evts pending) {
	for _, e := range evts {
		s.bus.Publish(ctx, e)
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// AdvanceStage moves the lead to a new stage. Advancing to the stage the lead
// already occupies is a no-op returning the open row.
func (s *Service) AdvanceStage(ctx context.Context, p TransitionParams) (domain.HistoryRow, error) {
	if err := validateMode(p.Mode); err != nil {
		return domain.HistoryRow{}, err
	}

	var (
		result domain.HistoryRow
		evts   pending
	)
	err := s.tx.WithinTx(ctx, func(q db.DBTX) error {
		now := s.now()
		lead, err := s.lockForTransition(ctx, q, p.LeadID, p.Actor)
		if err != nil {
			return err
		}

		stage, err := s.repo.GetStage(ctx, q, p.TargetID)
		if err := activeTarget(err, stage.IsActive, "stage"); err != nil {
			return err
		}

		from := lead.StageID
		row, changed, err := s.transition(ctx, q, &lead, domain.DimensionStage, p, now)
		if err != nil {
			return err
		}
		result = row
		if changed {
			evts.add(events.StageAdvanced{
				BaseEvent:   events.NewBaseEvent(),
				LeadID:      lead.ID,
				SalesID:     lead.SalesID,
				FromStageID: from,
				ToStageID:   stage.ID,
				Mode:        string(p.Mode),
			})
		}
		return nil
	})
	if err != nil {
		return domain.HistoryRow{}, err
	}

	s.publish(ctx, evts)
	return result, nil
}

// CompleteStage closes the open row of stageID in place without moving the
// lead. Without an open row for that stage it records a closed-on-arrival row.
func (s *Service) CompleteStage(ctx context.Context, leadID, stageID uuid.UUID, act actor.Actor, mode domain.Mode) (domain.HistoryRow, error) {
	if err := validateMode(mode); err != nil {
		return domain.HistoryRow{}, err
	}

	var (
		result domain.HistoryRow
		evts   pending
	)
	err := s.tx.WithinTx(ctx, func(q db.DBTX) error {
		now := s.now()
		lead, err := s.repo.LockLead(ctx, q, leadID)
		if err != nil {
			return err
		}
		if !act.CanManage(lead.SalesID) {
			return apperr.Forbidden("lead is owned by another sales")
		}

		if _, err := s.repo.GetStage(ctx, q, stageID); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.Validation("target stage does not exist")
			}
			return err
		}

		open, err := s.repo.GetOpenRow(ctx, q, domain.DimensionStage, leadID)
		if err != nil {
			return err
		}

		if open != nil && open.TargetID == stageID {
			if err := s.repo.CloseRow(ctx, q, domain.DimensionStage, open.ID, now, nil); err != nil {
				return err
			}
			closed := *open
			closed.DoneAt = &now
			result = closed
		} else {
			row, err := s.repo.InsertRow(ctx, q, domain.HistoryRow{
				LeadID:    leadID,
				Dimension: domain.DimensionStage,
				TargetID:  stageID,
				ChangedBy: act.ChangedBy(),
				SalesID:   lead.SalesID,
				Mode:      mode,
				CreatedAt: now,
				DoneAt:    &now,
			})
			if err != nil {
				return err
			}
			result = row
		}

		evts.add(events.StageCompleted{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    leadID,
			SalesID:   lead.SalesID,
			StageID:   stageID,
		})
		return nil
	})
	if err != nil {
		return domain.HistoryRow{}, err
	}

	s.publish(ctx, evts)
	return result, nil
}

// ChangeStatus moves the lead to a new status. A terminal status stops
// nurturing; leaving a terminal status re-opens it.
func (s *Service) ChangeStatus(ctx context.Context, p TransitionParams) (domain.HistoryRow, error) {
	if err := validateMode(p.Mode); err != nil {
		return domain.HistoryRow{}, err
	}

	var (
		result domain.HistoryRow
		evts   pending
	)
	err := s.tx.WithinTx(ctx, func(q db.DBTX) error {
		now := s.now()
		lead, err := s.lockForTransition(ctx, q, p.LeadID, p.Actor)
		if err != nil {
			return err
		}

		status, err := s.repo.GetStatus(ctx, q, p.TargetID)
		if err := activeTarget(err, status.IsActive, "status"); err != nil {
			return err
		}

		row, err := s.applyStatus(ctx, q, &lead, status, p, false, now, &evts)
		if err != nil {
			return err
		}
		result = row
		return nil
	})
	if err != nil {
		return domain.HistoryRow{}, err
	}

	s.publish(ctx, evts)
	return result, nil
}

// ChangeSubStatus moves the lead to a new sub-status. A parent status other
// than the lead's current one cascades a derived status transition first.
func (s *Service) ChangeSubStatus(ctx context.Context, p TransitionParams) (domain.HistoryRow, error) {
	if err := validateMode(p.Mode); err != nil {
		return domain.HistoryRow{}, err
	}

	var (
		result domain.HistoryRow
		evts   pending
	)
	err := s.tx.WithinTx(ctx, func(q db.DBTX) error {
		now := s.now()
		lead, err := s.lockForTransition(ctx, q, p.LeadID, p.Actor)
		if err != nil {
			return err
		}

		sub, err := s.repo.GetSubStatus(ctx, q, p.TargetID)
		if err := activeTarget(err, sub.IsActive, "sub-status"); err != nil {
			return err
		}

		if lead.StatusID == nil || *lead.StatusID != sub.StatusID {
			parent, err := s.repo.GetStatus(ctx, q, sub.StatusID)
			if err := activeTarget(err, parent.IsActive, "parent status"); err != nil {
				return err
			}
			derived := TransitionParams{
				LeadID:   lead.ID,
				TargetID: parent.ID,
				Actor:    p.Actor,
				Note:     domain.DerivedStatusNote,
				Mode:     domain.ModeAuto,
			}
			if _, err := s.applyStatus(ctx, q, &lead, parent, derived, true, now, &evts); err != nil {
				return err
			}
		}

		row, changed, err := s.transition(ctx, q, &lead, domain.DimensionSubStatus, p, now)
		if err != nil {
			return err
		}
		result = row
		if changed {
			evts.add(events.SubStatusChanged{
				BaseEvent:   events.NewBaseEvent(),
				LeadID:      lead.ID,
				SalesID:     lead.SalesID,
				SubStatusID: sub.ID,
			})
		}
		return nil
	})
	if err != nil {
		return domain.HistoryRow{}, err
	}

	s.publish(ctx, evts)
	return result, nil
}

// ListHistory lists a lead's rows on one dimension, newest first.
func (s *Service) ListHistory(ctx context.Context, leadID uuid.UUID, dim domain.Dimension, act actor.Actor) ([]domain.HistoryRow, error) {
	lead, err := s.repo.GetLead(ctx, s.q, leadID)
	if err != nil {
		return nil, err
	}
	if !act.CanManage(lead.SalesID) {
		return nil, apperr.Forbidden("lead is owned by another sales")
	}
	return s.repo.ListHistory(ctx, s.q, dim, leadID)
}

// applyStatus runs the status transition plus its cross-dimension effects:
// an orphaned sub-status is closed and terminal codes stop nurturing.
func (s *Service) applyStatus(ctx context.Context, q db.DBTX, lead *domain.Lead, status domain.Status, p TransitionParams, derived bool, now time.Time, evts *pending) (domain.HistoryRow, error) {
	wasTerminal := false
	if lead.StatusID != nil && *lead.StatusID != status.ID {
		prev, err := s.repo.GetStatus(ctx, q, *lead.StatusID)
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return domain.HistoryRow{}, err
		}
		wasTerminal = err == nil && domain.IsTerminalStatus(prev.Code)
	}

	row, changed, err := s.transition(ctx, q, lead, domain.DimensionStatus, p, now)
	if err != nil {
		return domain.HistoryRow{}, err
	}

	if lead.SubStatusID != nil {
		sub, err := s.repo.GetSubStatus(ctx, q, *lead.SubStatusID)
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return domain.HistoryRow{}, err
		}
		if err != nil || sub.StatusID != status.ID {
			if err := s.closeOpen(ctx, q, domain.DimensionSubStatus, lead.ID, now); err != nil {
				return domain.HistoryRow{}, err
			}
			if err := s.repo.SetLeadPointer(ctx, q, domain.DimensionSubStatus, lead.ID, nil); err != nil {
				return domain.HistoryRow{}, err
			}
			lead.SubStatusID = nil
		}
	}

	terminal := domain.IsTerminalStatus(status.Code)
	switch {
	case terminal:
		stopped, err := s.nurturing.StopInTx(ctx, q, lead.ID, now)
		if err != nil {
			return domain.HistoryRow{}, err
		}
		if stopped {
			evts.add(nurturingEvent(lead, "STOPPED", "status_terminal"))
		}
	case wasTerminal:
		reopened, err := s.nurturing.ReopenInTx(ctx, q, lead.ID, now)
		if err != nil {
			return domain.HistoryRow{}, err
		}
		if reopened {
			evts.add(nurturingEvent(lead, "PAUSED", "pipeline_reopened"))
		}
	}

	if changed {
		evts.add(events.StatusChanged{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     lead.ID,
			SalesID:    lead.SalesID,
			StatusID:   status.ID,
			StatusCode: status.Code,
			Terminal:   terminal,
			Derived:    derived,
		})
	}
	return row, nil
}

// transition closes the open row of dim and inserts a new open row for
// p.TargetID. Re-entering the currently open target changes nothing.
func (s *Service) transition(ctx context.Context, q db.DBTX, lead *domain.Lead, dim domain.Dimension, p TransitionParams, now time.Time) (domain.HistoryRow, bool, error) {
	open, err := s.repo.GetOpenRow(ctx, q, dim, lead.ID)
	if err != nil {
		return domain.HistoryRow{}, false, err
	}

	current := lead.Pointer(dim)
	if open != nil && open.TargetID == p.TargetID && current != nil && *current == p.TargetID {
		return *open, false, nil
	}

	if open != nil {
		note := domain.AutoCloseNote
		if err := s.repo.CloseRow(ctx, q, dim, open.ID, now, &note); err != nil {
			return domain.HistoryRow{}, false, err
		}
	}

	row, err := s.repo.InsertRow(ctx, q, domain.HistoryRow{
		LeadID:    lead.ID,
		Dimension: dim,
		TargetID:  p.TargetID,
		ChangedBy: p.Actor.ChangedBy(),
		SalesID:   lead.SalesID,
		Note:      p.Note,
		Mode:      p.Mode,
		CreatedAt: now,
	})
	if err != nil {
		return domain.HistoryRow{}, false, err
	}

	target := p.TargetID
	if err := s.repo.SetLeadPointer(ctx, q, dim, lead.ID, &target); err != nil {
		return domain.HistoryRow{}, false, err
	}
	lead.SetPointer(dim, &target)

	return row, true, nil
}

func (s *Service) closeOpen(ctx context.Context, q db.DBTX, dim domain.Dimension, leadID uuid.UUID, now time.Time) error {
	open, err := s.repo.GetOpenRow(ctx, q, dim, leadID)
	if err != nil || open == nil {
		return err
	}
	note := domain.AutoCloseNote
	return s.repo.CloseRow(ctx, q, dim, open.ID, now, &note)
}

func (s *Service) lockForTransition(ctx context.Context, q db.DBTX, leadID uuid.UUID, act actor.Actor) (domain.Lead, error) {
	lead, err := s.repo.LockLead(ctx, q, leadID)
	if err != nil {
		return domain.Lead{}, err
	}
	if !act.CanManage(lead.SalesID) {
		return domain.Lead{}, apperr.Forbidden("lead is owned by another sales")
	}
	if lead.IsExcluded {
		return domain.Lead{}, apperr.Validation("lead is excluded from the pipeline")
	}
	return lead, nil
}

func activeTarget(err error, active bool, what string) error {
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return apperr.Validation("target " + what + " does not exist")
		}
		return err
	}
	if !active {
		return apperr.Validation("target " + what + " is inactive")
	}
	return nil
}

func validateMode(mode domain.Mode) error {
	if !mode.Valid() {
		return apperr.Validation("unknown transition mode")
	}
	return nil
}

func nurturingEvent(lead *domain.Lead, status, reason string) events.NurturingStateChanged {
	return events.NurturingStateChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		SalesID:   lead.SalesID,
		Status:    status,
		Reason:    reason,
	}
}
