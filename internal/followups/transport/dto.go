package transport

import (
	"time"

	"github.com/google/uuid"
)

// RecalculateRequest plans missing follow-ups for a sales owner's leads.
// An empty SalesID means the caller's own leads.
type RecalculateRequest struct {
	SalesID *uuid.UUID `json:"salesId"`
	DryRun  bool       `json:"dryRun"`
}

// RescheduleRequest moves a pending follow-up.
type RescheduleRequest struct {
	NextActionAt time.Time `json:"nextActionAt" validate:"required"`
}

// CompleteRequest marks a follow-up done.
type CompleteRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

// FollowUpResponse represents a follow-up in API responses.
type FollowUpResponse struct {
	ID           uuid.UUID  `json:"id"`
	LeadID       uuid.UUID  `json:"leadId"`
	SalesID      uuid.UUID  `json:"salesId"`
	TypeID       int        `json:"typeId"`
	NextActionAt time.Time  `json:"nextActionAt"`
	DoneAt       *time.Time `json:"doneAt,omitempty"`
	Note         string     `json:"note,omitempty"`
	Channel      string     `json:"channel"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// FollowUpListResponse wraps a lead's follow-ups.
type FollowUpListResponse struct {
	Items []FollowUpResponse `json:"items"`
}
