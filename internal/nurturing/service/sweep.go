package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	catalogrepo "leadflow_backend/internal/catalog/repository"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/nurturing/domain"
	"leadflow_backend/internal/nurturing/repository"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/db"

	"github.com/google/uuid"
)

// Sweep names used in logs and metrics.
const (
	SweepAutoResume = "auto_resume"
	SweepSend       = "send"
)

const (
	defaultDocumentName = "document.pdf"
	defaultDocumentMime = "application/pdf"
)

// RunAutoResumeSweep re-activates auto-paused leads that stayed silent for the
// idle window and have no pending follow-up. maxBatch <= 0 uses the default.
func (s *Service) RunAutoResumeSweep(ctx context.Context, maxBatch int) (domain.SweepResult, error) {
	started := s.clock.Now()
	now := started.UTC()
	cutoff := now.Add(-s.idle)

	candidates, err := s.repo.ListResumeCandidates(ctx, s.q, cutoff, s.batch(maxBatch))
	if err != nil {
		return domain.SweepResult{}, err
	}

	var result domain.SweepResult
	for _, st := range candidates {
		if ctx.Err() != nil {
			break
		}
		result.Record(s.isolate(SweepAutoResume, st.LeadID, func() (domain.Outcome, error) {
			return s.resumeOne(ctx, st, cutoff, now)
		}))
	}

	s.finish(SweepAutoResume, result, started)
	return result, nil
}

func (s *Service) resumeOne(ctx context.Context, st domain.State, cutoff, now time.Time) (domain.Outcome, error) {
	var (
		resumed domain.State
		salesID uuid.UUID
		outcome = domain.OutcomeSkipped
	)
	err := s.tx.WithinTx(ctx, func(q db.DBTX) error {
		lead, err := s.repo.GetLeadContact(ctx, q, st.LeadID)
		if err != nil {
			return err
		}
		if lead.IsExcluded {
			return nil
		}
		if lead.LastInboundAt != nil && lead.LastInboundAt.After(cutoff) {
			return nil
		}
		pending, err := s.repo.HasUndoneFollowUp(ctx, q, st.LeadID)
		if err != nil || pending {
			return err
		}

		next := st.Resume(now)
		ok, err := s.repo.ResumeIfPaused(ctx, q, next, cutoff)
		if err != nil || !ok {
			return err
		}
		resumed = next
		salesID = lead.SalesID
		outcome = domain.OutcomeSucceeded
		return nil
	})
	if err != nil {
		return domain.OutcomeFailed, err
	}
	if outcome == domain.OutcomeSucceeded {
		s.publishState(ctx, salesID, resumed)
	}
	return outcome, nil
}

// RunSendSweep delivers the current step of every due active lead, oldest
// schedule first. A failed dispatch leaves the state untouched for the next run.
func (s *Service) RunSendSweep(ctx context.Context, maxBatch int) (domain.SweepResult, error) {
	started := s.clock.Now()

	due, err := s.repo.ListDue(ctx, s.q, started.UTC(), s.batch(maxBatch))
	if err != nil {
		return domain.SweepResult{}, err
	}

	var result domain.SweepResult
	for _, st := range due {
		if ctx.Err() != nil {
			break
		}
		result.Record(s.isolate(SweepSend, st.LeadID, func() (domain.Outcome, error) {
			return s.sendOne(ctx, st)
		}))
	}

	s.finish(SweepSend, result, started)
	return result, nil
}

func (s *Service) sendOne(ctx context.Context, st domain.State) (domain.Outcome, error) {
	if st.PlanID == nil {
		return s.exhaust(ctx, st)
	}
	step, ok, err := s.plans.StepAt(ctx, *st.PlanID, st.CurrentStep)
	if err != nil {
		return domain.OutcomeFailed, err
	}
	if !ok {
		return s.exhaust(ctx, st)
	}

	lead, err := s.repo.GetLeadContact(ctx, s.q, st.LeadID)
	if err != nil {
		return domain.OutcomeFailed, err
	}

	vars := map[string]string{
		"name":       lead.Name,
		"first_name": firstName(lead.Name),
		"phone":      lead.Phone,
	}
	if domain.UsesKey(step.Template.Body, domain.LinkKey) {
		code, ok, err := s.pendingLink(ctx, st, lead)
		if err != nil {
			return domain.OutcomeFailed, err
		}
		if !ok {
			return domain.OutcomeSkipped, nil
		}
		vars[domain.LinkKey] = s.links.ShortURL(code)
	}
	body := domain.Render(step.Template.Body, vars)
	delivery := domain.DetectDelivery(step.Template.MediaURL, step.Template.MediaMime)

	if err := s.limiter.Wait(ctx); err != nil {
		return domain.OutcomeFailed, err
	}
	cur, err := s.repo.GetState(ctx, s.q, st.LeadID)
	if err != nil {
		return domain.OutcomeFailed, err
	}
	if !stillDue(cur, st, s.now()) {
		return domain.OutcomeSkipped, nil
	}
	messageID, err := s.dispatch(ctx, lead, step.Template, delivery, body)
	if err != nil {
		s.log.DispatchFailed(st.LeadID.String(), st.CurrentStep, err)
		return domain.OutcomeFailed, nil
	}

	return s.advance(ctx, st, lead, delivery, messageID)
}

// pendingLink returns the link code cached for the current step, minting and
// caching one first when needed. ok is false when the state moved on meanwhile.
func (s *Service) pendingLink(ctx context.Context, st domain.State, lead repository.LeadContact) (string, bool, error) {
	if st.PendingLinkCode != nil {
		return *st.PendingLinkCode, true, nil
	}

	var (
		code   string
		cached bool
	)
	err := s.tx.WithinTx(ctx, func(q db.DBTX) error {
		minted, err := s.links.MintInTx(ctx, q, lead.ID, lead.SalesID, s.linkTarget)
		if err != nil {
			return err
		}
		cached, err = s.repo.SetPendingLinkCode(ctx, q, st.LeadID, st.CurrentStep, minted)
		if err != nil {
			return err
		}
		if !cached {
			return errStateMoved
		}
		code = minted
		return nil
	})
	if errors.Is(err, errStateMoved) {
		return "", false, nil
	}
	return code, cached, err
}

var errStateMoved = errors.New("nurturing state changed during sweep")

// stillDue reports whether cur is the schedule the sweep listed as st.
func stillDue(cur *domain.State, st domain.State, now time.Time) bool {
	if cur == nil || cur.Status != domain.StatusActive || cur.CurrentStep != st.CurrentStep {
		return false
	}
	if cur.PlanID == nil || st.PlanID == nil || *cur.PlanID != *st.PlanID {
		return false
	}
	return cur.NextSendAt != nil && !cur.NextSendAt.After(now)
}

func (s *Service) dispatch(ctx context.Context, lead repository.LeadContact, tpl catalogrepo.Template, delivery domain.Delivery, body string) (string, error) {
	userID := lead.SalesID.String()
	if delivery == domain.DeliveryText || tpl.MediaURL == nil || strings.TrimSpace(*tpl.MediaURL) == "" {
		return s.gateway.SendMessage(ctx, userID, lead.Phone, body)
	}

	fileURL, err := s.media.Resolve(ctx, *tpl.MediaURL)
	if err != nil {
		return "", err
	}
	fileName := defaultDocumentName
	if tpl.FileName != nil && *tpl.FileName != "" {
		fileName = *tpl.FileName
	}
	mime := defaultDocumentMime
	if tpl.MediaMime != nil && *tpl.MediaMime != "" {
		mime = *tpl.MediaMime
	}
	return s.gateway.SendDocument(ctx, userID, lead.Phone, fileURL, fileName, mime, body)
}

func (s *Service) advance(ctx context.Context, st domain.State, lead repository.LeadContact, delivery domain.Delivery, messageID string) (domain.Outcome, error) {
	now := s.now()

	var next *time.Time
	nextStep, ok, err := s.plans.StepAt(ctx, *st.PlanID, st.CurrentStep+1)
	if err != nil {
		return domain.OutcomeFailed, err
	}
	if ok {
		at := now.Add(time.Duration(nextStep.DelayHours) * time.Hour)
		next = &at
	}
	advanced := st.Advance(now, messageID, next)

	var written bool
	err = s.tx.WithinTx(ctx, func(q db.DBTX) error {
		var err error
		written, err = s.repo.UpdateIfStep(ctx, q, advanced, st.CurrentStep)
		if err != nil || !written {
			return err
		}
		if err := s.repo.InsertSendLog(ctx, q, repository.SendLogEntry{
			LeadID:    st.LeadID,
			PlanID:    *st.PlanID,
			Step:      st.CurrentStep,
			MessageID: messageID,
			Kind:      delivery,
			SentAt:    now,
		}); err != nil {
			return err
		}
		return s.repo.TouchLastOutbound(ctx, q, st.LeadID, now)
	})
	if err != nil {
		return domain.OutcomeFailed, err
	}
	if !written {
		s.log.Warn("nurturing state moved after dispatch",
			slog.String("lead_id", st.LeadID.String()),
			slog.Int("step", st.CurrentStep),
			slog.String("message_id", messageID),
		)
		return domain.OutcomeSkipped, nil
	}

	s.bus.Publish(ctx, events.NurturingMessageSent{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    st.LeadID,
		SalesID:   lead.SalesID,
		Step:      st.CurrentStep,
		MessageID: messageID,
		Kind:      string(delivery),
	})
	if advanced.Status == domain.StatusStopped {
		s.publishState(ctx, lead.SalesID, advanced)
	}
	return domain.OutcomeSucceeded, nil
}

// exhaust stops a sequence with no step at its cursor. It is normal
// completion, so it counts as skipped.
func (s *Service) exhaust(ctx context.Context, st domain.State) (domain.Outcome, error) {
	stopped := st.Stop(domain.ReasonPlanExhausted)

	var salesID uuid.UUID
	var written bool
	err := s.tx.WithinTx(ctx, func(q db.DBTX) error {
		var err error
		written, err = s.repo.UpdateIfStep(ctx, q, stopped, st.CurrentStep)
		if err != nil || !written {
			return err
		}
		lead, err := s.repo.GetLeadContact(ctx, q, st.LeadID)
		if err != nil {
			return err
		}
		salesID = lead.SalesID
		return nil
	})
	if err != nil {
		return domain.OutcomeFailed, err
	}
	if written {
		s.publishState(ctx, salesID, stopped)
	}
	return domain.OutcomeSkipped, nil
}

// isolate runs one lead's work, converting panics and errors into a failed
// outcome. Duplicate-key conflicts count as skipped.
func (s *Service) isolate(sweep string, leadID uuid.UUID, fn func() (domain.Outcome, error)) (outcome domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("sweep lead panicked",
				slog.String("sweep", sweep),
				slog.String("lead_id", leadID.String()),
				slog.String("panic", fmt.Sprint(r)),
			)
			outcome = domain.OutcomeFailed
		}
	}()

	outcome, err := fn()
	if err == nil {
		return outcome
	}
	if apperr.Is(err, apperr.KindConflict) || db.IsUniqueViolation(err) {
		return domain.OutcomeSkipped
	}
	level := slog.LevelError
	if apperr.Retryable(err) {
		level = slog.LevelWarn
	}
	s.log.Log(context.Background(), level, "sweep lead failed",
		slog.String("sweep", sweep),
		slog.String("lead_id", leadID.String()),
		slog.Bool("retryable", apperr.Retryable(err)),
		slog.String("error", err.Error()),
	)
	return domain.OutcomeFailed
}

func (s *Service) finish(sweep string, r domain.SweepResult, started time.Time) {
	elapsed := s.clock.Since(started)
	s.log.SweepFinished(sweep, r.Processed, r.Succeeded, r.Failed, r.Skipped, float64(elapsed.Milliseconds()))
	if s.observer != nil {
		s.observer.ObserveSweep(sweep, r.Processed, r.Succeeded, r.Failed, r.Skipped, elapsed)
	}
}

func (s *Service) batch(maxBatch int) int {
	if maxBatch > 0 {
		return maxBatch
	}
	if s.batchSize > 0 {
		return s.batchSize
	}
	return 50
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
