package repository

import (
	"context"
	"time"

	"leadflow_backend/internal/pipeline/domain"
	"leadflow_backend/platform/db"

	"github.com/google/uuid"
)

// LeadReader loads leads, optionally locking the row for the rest of the transaction.
type LeadReader interface {
	GetLead(ctx context.Context, q db.DBTX, leadID uuid.UUID) (domain.Lead, error)
	LockLead(ctx context.Context, q db.DBTX, leadID uuid.UUID) (domain.Lead, error)
	SetLeadPointer(ctx context.Context, q db.DBTX, dim domain.Dimension, leadID uuid.UUID, targetID *uuid.UUID) error
}

// MasterDataReader resolves pipeline master data. Missing rows are apperr NotFound.
type MasterDataReader interface {
	GetStage(ctx context.Context, q db.DBTX, id uuid.UUID) (domain.Stage, error)
	GetStatus(ctx context.Context, q db.DBTX, id uuid.UUID) (domain.Status, error)
	GetSubStatus(ctx context.Context, q db.DBTX, id uuid.UUID) (domain.SubStatus, error)
}

// HistoryLedger is the append-only interval log per dimension.
type HistoryLedger interface {
	// GetOpenRow returns the open row of dim, or nil. The row is locked.
	GetOpenRow(ctx context.Context, q db.DBTX, dim domain.Dimension, leadID uuid.UUID) (*domain.HistoryRow, error)
	CloseRow(ctx context.Context, q db.DBTX, dim domain.Dimension, rowID uuid.UUID, at time.Time, closeNote *string) error
	InsertRow(ctx context.Context, q db.DBTX, row domain.HistoryRow) (domain.HistoryRow, error)
	ListHistory(ctx context.Context, q db.DBTX, dim domain.Dimension, leadID uuid.UUID) ([]domain.HistoryRow, error)
}

// Repository combines all pipeline repository operations.
type Repository interface {
	LeadReader
	MasterDataReader
	HistoryLedger
}
