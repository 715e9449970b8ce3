// Package domain holds the per-lead nurturing state machine. Transitions are
// pure: they take a State and return the next one.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status of a lead's nurturing sequence.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusPaused  Status = "PAUSED"
	StatusStopped Status = "STOPPED"
)

// Pause and stop reasons recorded on the state.
const (
	ReasonToggledOff          = "toggled_off"
	ReasonFollowUpRescheduled = "follow_up_rescheduled"
	ReasonManual              = "manual"
	ReasonStatusTerminal      = "status_terminal"
	ReasonPipelineReopened    = "pipeline_reopened"
	ReasonPlanExhausted       = "plan_exhausted"
	ReasonStoppedByUser       = "stopped_by_user"
)

// ResumeLead is how far in the future a freshly activated sequence fires.
const ResumeLead = 5 * time.Minute

// State is one lead's nurturing record.
type State struct {
	LeadID          uuid.UUID
	Status          Status
	ManualPaused    bool
	PauseReason     *string
	PausedAt        *time.Time
	NextSendAt      *time.Time
	CurrentStep     int
	LastSentAt      *time.Time
	LastMessageKey  *string
	PlanID          *uuid.UUID
	PendingLinkCode *string
	UpdatedAt       time.Time
}

// NewState is the state of a lead that never had nurturing configured.
func NewState(leadID uuid.UUID) State {
	return State{LeadID: leadID, Status: StatusPaused}
}

// Toggle switches nurturing on or off. Turning it on never moves an existing
// schedule; turning it off is not sticky and stays eligible for auto-resume.
func (s State) Toggle(enabled bool, now time.Time) State {
	s.ManualPaused = false
	if enabled {
		s.Status = StatusActive
		s.PauseReason = nil
		s.PausedAt = nil
		if s.NextSendAt == nil {
			s.NextSendAt = at(now.Add(ResumeLead))
		}
		return s
	}
	s.Status = StatusPaused
	s.PauseReason = str(ReasonToggledOff)
	s.PausedAt = at(now)
	s.NextSendAt = nil
	return s
}

// PauseForReschedule pauses because a human moved a pending follow-up.
// manualPaused is left as it was.
func (s State) PauseForReschedule(now time.Time) State {
	s.Status = StatusPaused
	s.PauseReason = str(ReasonFollowUpRescheduled)
	s.PausedAt = at(now)
	s.NextSendAt = nil
	return s
}

// PauseManually pauses and excludes the lead from auto-resume until toggled on.
func (s State) PauseManually(reason string, now time.Time) State {
	if reason == "" {
		reason = ReasonManual
	}
	s.Status = StatusPaused
	s.ManualPaused = true
	s.PauseReason = str(reason)
	s.PausedAt = at(now)
	s.NextSendAt = nil
	return s
}

// Stop ends the sequence and resets the cursor.
func (s State) Stop(reason string) State {
	s.Status = StatusStopped
	s.PauseReason = str(reason)
	s.PausedAt = nil
	s.NextSendAt = nil
	s.CurrentStep = 0
	s.PendingLinkCode = nil
	return s
}

// Resume re-activates a paused state, keeping a future schedule if present.
func (s State) Resume(now time.Time) State {
	s.Status = StatusActive
	s.PauseReason = nil
	s.PausedAt = nil
	if s.NextSendAt == nil || !s.NextSendAt.After(now) {
		s.NextSendAt = at(now.Add(ResumeLead))
	}
	return s
}

// Reopen revives a stopped state as paused after the lead left a terminal
// status. The boolean is false when the state was not stopped.
func (s State) Reopen(now time.Time) (State, bool) {
	if s.Status != StatusStopped {
		return s, false
	}
	s.Status = StatusPaused
	s.ManualPaused = false
	s.PauseReason = str(ReasonPipelineReopened)
	s.PausedAt = at(now)
	return s, true
}

// BindPlan attaches a plan. Changing the plan restarts the sequence at step 0.
func (s State) BindPlan(planID *uuid.UUID) State {
	if sameID(s.PlanID, planID) {
		return s
	}
	s.PlanID = planID
	s.CurrentStep = 0
	s.PendingLinkCode = nil
	return s
}

// Advance records a successful dispatch of the current step. next is nil when
// the plan has no further step, which stops the sequence.
func (s State) Advance(now time.Time, messageKey string, next *time.Time) State {
	s.LastSentAt = at(now)
	s.LastMessageKey = str(messageKey)
	s.PendingLinkCode = nil
	if next == nil {
		return s.Stop(ReasonPlanExhausted)
	}
	s.CurrentStep++
	s.NextSendAt = next
	return s
}

// Validate checks the structural invariants of the record.
func (s State) Validate() error {
	switch s.Status {
	case StatusActive, StatusPaused, StatusStopped:
	default:
		return fmt.Errorf("unknown nurturing status %q", s.Status)
	}
	if s.Status != StatusActive && s.NextSendAt != nil {
		return fmt.Errorf("nextSendAt set on %s state", s.Status)
	}
	if s.Status == StatusStopped && (s.CurrentStep != 0 || s.PendingLinkCode != nil) {
		return fmt.Errorf("stopped state keeps a step cursor")
	}
	if s.CurrentStep < 0 {
		return fmt.Errorf("negative step cursor")
	}
	return nil
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func at(t time.Time) *time.Time { return &t }

func str(s string) *string { return &s }
