package transport

import (
	"time"

	"github.com/google/uuid"
)

// ResolvePlanRequest selects the plan that best matches a lead's attributes.
type ResolvePlanRequest struct {
	ProductID  *uuid.UUID `form:"productId" validate:"omitempty"`
	SourceID   *uuid.UUID `form:"sourceId" validate:"omitempty"`
	StatusCode string     `form:"statusCode" validate:"omitempty,max=64"`
}

// ListPlansRequest filters the plan listing.
type ListPlansRequest struct {
	IncludeInactive bool `form:"includeInactive"`
}

// StepResponse is one plan step with its template.
type StepResponse struct {
	Order      int       `json:"order"`
	DelayHours int       `json:"delayHours"`
	TopicID    uuid.UUID `json:"topicId"`
	Slot       string    `json:"slot"`
	Body       string    `json:"body"`
	MediaURL   *string   `json:"mediaUrl,omitempty"`
	MediaMime  *string   `json:"mediaMime,omitempty"`
	FileName   *string   `json:"fileName,omitempty"`
}

// PlanResponse represents a nurturing plan in API responses.
type PlanResponse struct {
	ID               uuid.UUID      `json:"id"`
	Name             string         `json:"name"`
	ProductID        *uuid.UUID     `json:"productId,omitempty"`
	SourceID         *uuid.UUID     `json:"sourceId,omitempty"`
	TargetStatusCode *string        `json:"targetStatusCode,omitempty"`
	IsActive         bool           `json:"isActive"`
	CreatedAt        time.Time      `json:"createdAt"`
	Steps            []StepResponse `json:"steps,omitempty"`
}

// PlanListResponse wraps a list of plans.
type PlanListResponse struct {
	Items []PlanResponse `json:"items"`
	Total int            `json:"total"`
}

// CategoryResponse represents a category.
type CategoryResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ImportResponse summarises a catalog import.
type ImportResponse struct {
	Categories int `json:"categories"`
	Topics     int `json:"topics"`
	Templates  int `json:"templates"`
	Plans      int `json:"plans"`
	Steps      int `json:"steps"`
}
