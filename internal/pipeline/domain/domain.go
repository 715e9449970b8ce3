// Package domain provides core business rules for the lead pipeline:
// stages, statuses, sub-statuses and their interval history.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Dimension names one of the three independently tracked pipeline axes.
type Dimension string

const (
	DimensionStage     Dimension = "stage"
	DimensionStatus    Dimension = "status"
	DimensionSubStatus Dimension = "sub_status"
)

// ParseDimension accepts the URL forms of a dimension.
func ParseDimension(raw string) (Dimension, bool) {
	switch strings.ToLower(strings.ReplaceAll(raw, "-", "_")) {
	case "stage", "stages":
		return DimensionStage, true
	case "status", "statuses":
		return DimensionStatus, true
	case "sub_status", "sub_statuses", "substatus":
		return DimensionSubStatus, true
	}
	return "", false
}

// Mode records who initiated a history row.
type Mode string

const (
	ModeManual Mode = "manual"
	ModeAuto   Mode = "auto"
	ModeSystem Mode = "system"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeManual || m == ModeAuto || m == ModeSystem
}

const (
	// AutoCloseNote marks rows closed because a newer row superseded them.
	AutoCloseNote = "auto-close"
	// DerivedStatusNote is the note of a status row cascaded from a sub-status change.
	DerivedStatusNote = "derived from sub-status"
)

// Terminal status codes. Reaching one stops nurturing.
const (
	StatusCloseWon  = "CLOSE_WON"
	StatusCloseLost = "CLOSE_LOST"
)

var terminalStatuses = map[string]bool{
	StatusCloseWon:  true,
	StatusCloseLost: true,
}

// IsTerminalStatus returns true if the status code closes the lead.
func IsTerminalStatus(code string) bool {
	return terminalStatuses[strings.ToUpper(code)]
}

// Lead is the slice of a lead the pipeline reads and mutates.
type Lead struct {
	ID             uuid.UUID
	SalesID        uuid.UUID
	StageID        *uuid.UUID
	StatusID       *uuid.UUID
	SubStatusID    *uuid.UUID
	ProductID      *uuid.UUID
	SourceID       *uuid.UUID
	IsExcluded     bool
	Name           string
	Phone          string
	LastInboundAt  *time.Time
	LastOutboundAt *time.Time
}

// Pointer returns the lead's current target on dim.
func (l Lead) Pointer(dim Dimension) *uuid.UUID {
	switch dim {
	case DimensionStage:
		return l.StageID
	case DimensionStatus:
		return l.StatusID
	default:
		return l.SubStatusID
	}
}

// SetPointer updates the in-memory pointer on dim.
func (l *Lead) SetPointer(dim Dimension, id *uuid.UUID) {
	switch dim {
	case DimensionStage:
		l.StageID = id
	case DimensionStatus:
		l.StatusID = id
	default:
		l.SubStatusID = id
	}
}

// Stage is pipeline master data.
type Stage struct {
	ID       uuid.UUID
	Code     string
	Name     string
	IsActive bool
}

// Status is pipeline master data.
type Status struct {
	ID       uuid.UUID
	Code     string
	Name     string
	IsActive bool
}

// SubStatus is a reason code under a parent status.
type SubStatus struct {
	ID       uuid.UUID
	StatusID uuid.UUID
	Code     string
	Name     string
	IsActive bool
}

// HistoryRow is one interval on a dimension. DoneAt nil means open.
type HistoryRow struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Dimension Dimension
	TargetID  uuid.UUID
	ChangedBy *uuid.UUID
	SalesID   uuid.UUID
	Note      string
	Mode      Mode
	CreatedAt time.Time
	DoneAt    *time.Time
	CloseNote *string
}

// IsOpen reports whether the row is the lead's current occupancy.
func (r HistoryRow) IsOpen() bool {
	return r.DoneAt == nil
}
