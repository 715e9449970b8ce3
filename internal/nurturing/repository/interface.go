package repository

import (
	"context"
	"time"

	"leadflow_backend/internal/nurturing/domain"
	"leadflow_backend/platform/db"

	"github.com/google/uuid"
)

// LeadContact is what the sweeps need to know about a lead.
type LeadContact struct {
	ID            uuid.UUID
	SalesID       uuid.UUID
	Name          string
	Phone         string
	ProductID     *uuid.UUID
	SourceID      *uuid.UUID
	StatusCode    string
	IsExcluded    bool
	LastInboundAt *time.Time
}

// SendLogEntry is one delivered plan step.
type SendLogEntry struct {
	LeadID    uuid.UUID
	PlanID    uuid.UUID
	Step      int
	MessageID string
	Kind      domain.Delivery
	SentAt    time.Time
}

// StateStore persists nurturing states keyed by lead.
type StateStore interface {
	// GetState returns nil when the lead has no state yet.
	GetState(ctx context.Context, q db.DBTX, leadID uuid.UUID) (*domain.State, error)
	// LockState is GetState holding a row lock for the rest of the transaction.
	LockState(ctx context.Context, q db.DBTX, leadID uuid.UUID) (*domain.State, error)
	UpsertState(ctx context.Context, q db.DBTX, s domain.State) (domain.State, error)
}

// SweepReader selects sweep candidates and the facts their guards check.
type SweepReader interface {
	ListResumeCandidates(ctx context.Context, q db.DBTX, pausedBefore time.Time, limit int) ([]domain.State, error)
	ListDue(ctx context.Context, q db.DBTX, now time.Time, limit int) ([]domain.State, error)
	HasUndoneFollowUp(ctx context.Context, q db.DBTX, leadID uuid.UUID) (bool, error)
	GetLeadContact(ctx context.Context, q db.DBTX, leadID uuid.UUID) (LeadContact, error)
}

// GuardedWriter applies sweep writes only while the row still looks the way
// the sweep read it. The boolean is false when the guard did not match.
type GuardedWriter interface {
	// ResumeIfPaused activates s while the stored row is auto-paused since at
	// or before pausedBefore.
	ResumeIfPaused(ctx context.Context, q db.DBTX, s domain.State, pausedBefore time.Time) (bool, error)
	// UpdateIfStep writes s when the stored row is ACTIVE at expectedStep.
	UpdateIfStep(ctx context.Context, q db.DBTX, s domain.State, expectedStep int) (bool, error)
	SetPendingLinkCode(ctx context.Context, q db.DBTX, leadID uuid.UUID, expectedStep int, code string) (bool, error)
	InsertSendLog(ctx context.Context, q db.DBTX, entry SendLogEntry) error
	TouchLastOutbound(ctx context.Context, q db.DBTX, leadID uuid.UUID, at time.Time) error
}

// Repository combines all nurturing repository operations.
type Repository interface {
	StateStore
	SweepReader
	GuardedWriter
}
