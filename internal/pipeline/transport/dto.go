package transport

import (
	"time"

	"github.com/google/uuid"
)

// TransitionRequest moves a lead on one pipeline dimension.
type TransitionRequest struct {
	TargetID uuid.UUID `json:"targetId" validate:"required"`
	Note     string    `json:"note" validate:"max=2000"`
	Mode     string    `json:"mode" validate:"omitempty,transition_mode"`
}

// CompleteStageRequest closes a stage checklist item.
type CompleteStageRequest struct {
	Mode string `json:"mode" validate:"omitempty,transition_mode"`
}

// HistoryRowResponse represents one interval in API responses.
type HistoryRowResponse struct {
	ID        uuid.UUID  `json:"id"`
	LeadID    uuid.UUID  `json:"leadId"`
	Dimension string     `json:"dimension"`
	TargetID  uuid.UUID  `json:"targetId"`
	ChangedBy *uuid.UUID `json:"changedBy,omitempty"`
	SalesID   uuid.UUID  `json:"salesId"`
	Note      string     `json:"note,omitempty"`
	Mode      string     `json:"mode"`
	CreatedAt time.Time  `json:"createdAt"`
	DoneAt    *time.Time `json:"doneAt,omitempty"`
	CloseNote *string    `json:"closeNote,omitempty"`
	IsOpen    bool       `json:"isOpen"`
}

// HistoryResponse wraps the rows of one dimension.
type HistoryResponse struct {
	Items []HistoryRowResponse `json:"items"`
}
