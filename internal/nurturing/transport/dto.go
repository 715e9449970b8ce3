package transport

import (
	"time"

	"github.com/google/uuid"
)

// ToggleRequest switches nurturing on or off.
type ToggleRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// PauseRequest pauses nurturing until it is toggled back on.
type PauseRequest struct {
	Reason string `json:"reason" validate:"max=200"`
}

// BindPlanRequest attaches a plan; without planId the catalog picks one.
type BindPlanRequest struct {
	PlanID *uuid.UUID `json:"planId"`
}

// SweepRequest bounds a sweep run.
type SweepRequest struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=500"`
}

// StateResponse represents a nurturing state in API responses.
type StateResponse struct {
	LeadID         uuid.UUID  `json:"leadId"`
	Status         string     `json:"status"`
	ManualPaused   bool       `json:"manualPaused"`
	PauseReason    *string    `json:"pauseReason,omitempty"`
	PausedAt       *time.Time `json:"pausedAt,omitempty"`
	NextSendAt     *time.Time `json:"nextSendAt,omitempty"`
	CurrentStep    int        `json:"currentStep"`
	LastSentAt     *time.Time `json:"lastSentAt,omitempty"`
	LastMessageKey *string    `json:"lastMessageKey,omitempty"`
	PlanID         *uuid.UUID `json:"planId,omitempty"`
}

// SweepResponse reports one sweep invocation.
type SweepResponse struct {
	Sweep     string `json:"sweep"`
	Processed int    `json:"processed"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}
