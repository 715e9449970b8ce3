package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Template slots. Every topic carries an A and optionally a B variant.
const (
	SlotA = "A"
	SlotB = "B"
)

// Category groups nurturing topics.
type Category struct {
	ID   uuid.UUID `db:"id"`
	Name string    `db:"name"`
}

// Topic is a message subject within a category.
type Topic struct {
	ID         uuid.UUID `db:"id"`
	CategoryID uuid.UUID `db:"category_id"`
	Name       string    `db:"name"`
}

// Template is the A/B content of a topic.
type Template struct {
	ID        uuid.UUID `db:"id"`
	TopicID   uuid.UUID `db:"topic_id"`
	Slot      string    `db:"slot"`
	Body      string    `db:"body"`
	MediaURL  *string   `db:"media_url"`
	MediaMime *string   `db:"media_mime"`
	FileName  *string   `db:"file_name"`
}

// Plan is a nurturing sequence selected by (product, source, target status).
// Nil selector fields match anything.
type Plan struct {
	ID               uuid.UUID  `db:"id"`
	ProductID        *uuid.UUID `db:"product_id"`
	SourceID         *uuid.UUID `db:"source_id"`
	TargetStatusCode *string    `db:"target_status_code"`
	Name             string     `db:"name"`
	IsActive         bool       `db:"is_active"`
	CreatedAt        time.Time  `db:"created_at"`
}

// Step is one ordered entry of a plan.
type Step struct {
	PlanID     uuid.UUID `db:"plan_id"`
	Order      int       `db:"step_order"`
	DelayHours int       `db:"delay_hours"`
	TopicID    uuid.UUID `db:"topic_id"`
	Slot       string    `db:"slot"`
}

// ResolvedStep is a step joined with the template it sends.
type ResolvedStep struct {
	Step
	Template Template
}

// ImportTemplate is template content keyed by slot during a catalog import.
type ImportTemplate struct {
	Slot      string
	Body      string
	MediaURL  *string
	MediaMime *string
	FileName  *string
}

// ImportTopic is a topic with its templates.
type ImportTopic struct {
	Name      string
	Templates []ImportTemplate
}

// ImportCategory is a category with its topics.
type ImportCategory struct {
	Name   string
	Topics []ImportTopic
}

// ImportStep references its topic by category and topic name.
type ImportStep struct {
	DelayHours int
	Category   string
	Topic      string
	Slot       string
}

// ImportPlan is a plan with its ordered steps.
type ImportPlan struct {
	Name             string
	ProductID        *uuid.UUID
	SourceID         *uuid.UUID
	TargetStatusCode *string
	IsActive         bool
	Steps            []ImportStep
}

// ImportParams is a complete catalog document.
type ImportParams struct {
	Categories []ImportCategory
	Plans      []ImportPlan
}

// ImportResult summarises an import.
type ImportResult struct {
	Categories int
	Topics     int
	Templates  int
	Plans      int
	Steps      int
}

// PlanReader provides read operations over the plan catalog.
type PlanReader interface {
	ListPlans(ctx context.Context, activeOnly bool) ([]Plan, error)
	GetPlan(ctx context.Context, id uuid.UUID) (Plan, error)
	ListSteps(ctx context.Context, planID uuid.UUID) ([]ResolvedStep, error)
	// GetStep returns apperr NotFound when the plan has no step at order.
	GetStep(ctx context.Context, planID uuid.UUID, order int) (ResolvedStep, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// CatalogWriter replaces catalog content in one transaction.
type CatalogWriter interface {
	Import(ctx context.Context, params ImportParams) (ImportResult, error)
}

// Repository combines all catalog repository operations.
type Repository interface {
	PlanReader
	CatalogWriter
}
