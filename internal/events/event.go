// Package events names the domain events modules publish. The bus itself
// lives in platform/events.
package events

import (
	"time"

	"leadflow_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Pipeline Domain Events
// =============================================================================

// StageAdvanced is published after a lead moved to another stage.
type StageAdvanced struct {
	BaseEvent
	LeadID      uuid.UUID  `json:"leadId"`
	SalesID     uuid.UUID  `json:"salesId"`
	FromStageID *uuid.UUID `json:"fromStageId,omitempty"`
	ToStageID   uuid.UUID  `json:"toStageId"`
	Mode        string     `json:"mode"`
}

func (e StageAdvanced) EventName() string { return "pipeline.stage.advanced" }

// StageCompleted is published when a stage checklist item was closed in place.
type StageCompleted struct {
	BaseEvent
	LeadID  uuid.UUID `json:"leadId"`
	SalesID uuid.UUID `json:"salesId"`
	StageID uuid.UUID `json:"stageId"`
}

func (e StageCompleted) EventName() string { return "pipeline.stage.completed" }

// StatusChanged is published after a lead's status changed, including
// derived changes cascaded from a sub-status.
type StatusChanged struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	SalesID    uuid.UUID `json:"salesId"`
	StatusID   uuid.UUID `json:"statusId"`
	StatusCode string    `json:"statusCode"`
	Terminal   bool      `json:"terminal"`
	Derived    bool      `json:"derived"`
}

func (e StatusChanged) EventName() string { return "pipeline.status.changed" }

// SubStatusChanged is published after a lead's sub-status changed.
type SubStatusChanged struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	SalesID     uuid.UUID `json:"salesId"`
	SubStatusID uuid.UUID `json:"subStatusId"`
}

func (e SubStatusChanged) EventName() string { return "pipeline.sub_status.changed" }

// =============================================================================
// Nurturing Domain Events
// =============================================================================

// NurturingStateChanged is published whenever the nurturing status of a lead flips.
type NurturingStateChanged struct {
	BaseEvent
	LeadID     uuid.UUID  `json:"leadId"`
	SalesID    uuid.UUID  `json:"salesId"`
	Status     string     `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	NextSendAt *time.Time `json:"nextSendAt,omitempty"`
}

func (e NurturingStateChanged) EventName() string { return "nurturing.state.changed" }

// NurturingMessageSent is published after a plan step was delivered.
type NurturingMessageSent struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	SalesID   uuid.UUID `json:"salesId"`
	Step      int       `json:"step"`
	MessageID string    `json:"messageId"`
	Kind      string    `json:"kind"`
}

func (e NurturingMessageSent) EventName() string { return "nurturing.message.sent" }

// =============================================================================
// Follow-up Domain Events
// =============================================================================

// FollowUpRescheduled is published after a human moved a pending follow-up.
type FollowUpRescheduled struct {
	BaseEvent
	FollowUpID   uuid.UUID `json:"followUpId"`
	LeadID       uuid.UUID `json:"leadId"`
	SalesID      uuid.UUID `json:"salesId"`
	NextActionAt time.Time `json:"nextActionAt"`
}

func (e FollowUpRescheduled) EventName() string { return "followups.rescheduled" }

// FollowUpCompleted is published after a follow-up was marked done.
type FollowUpCompleted struct {
	BaseEvent
	FollowUpID uuid.UUID `json:"followUpId"`
	LeadID     uuid.UUID `json:"leadId"`
	SalesID    uuid.UUID `json:"salesId"`
}

func (e FollowUpCompleted) EventName() string { return "followups.completed" }

// =============================================================================
// Tracking Domain Events
// =============================================================================

// LinkClicked is published for the first recorded click of a tracked link.
type LinkClicked struct {
	BaseEvent
	LinkID    uuid.UUID `json:"linkId"`
	LeadID    uuid.UUID `json:"leadId"`
	SalesID   uuid.UUID `json:"salesId"`
	Code      string    `json:"code"`
	IsPreview bool      `json:"isPreview"`
}

func (e LinkClicked) EventName() string { return "tracking.link.clicked" }
