// Package domain plans the fixed follow-up sequence of a lead.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxSlots is the number of follow-up slots per lead. Type ids run 1..MaxSlots.
const MaxSlots = 3

// DefaultChannel is where planned follow-ups happen.
const DefaultChannel = "whatsapp"

// gapDays[i] is the distance of slot i+1 from the previous slot (or the anchor).
var gapDays = [MaxSlots]int{1, 3, 6}

// FollowUp is one scheduled human action.
type FollowUp struct {
	ID           uuid.UUID
	LeadID       uuid.UUID
	SalesID      uuid.UUID
	TypeID       int
	NextActionAt time.Time
	DoneAt       *time.Time
	Note         string
	Channel      string
	CreatedAt    time.Time
}

// IsDone reports whether the follow-up was completed.
func (f FollowUp) IsDone() bool {
	return f.DoneAt != nil
}

// Slot is a follow-up the planner wants to exist.
type Slot struct {
	TypeID       int
	NextActionAt time.Time
}

// Planner places slots at a fixed hour of day in a location.
type Planner struct {
	Hour     int
	Location *time.Location
}

// NewPlanner creates a planner. A nil location means UTC.
func NewPlanner(hour int, loc *time.Location) Planner {
	if loc == nil {
		loc = time.UTC
	}
	return Planner{Hour: hour, Location: loc}
}

// PlanMissing returns the slots after the first existingCount ones, in order.
// Each slot is its gap after the previous one, pinned to the planner hour.
func (p Planner) PlanMissing(existingCount int, anchor time.Time) []Slot {
	if existingCount < 0 {
		existingCount = 0
	}
	slots := make([]Slot, 0, MaxSlots)
	at := anchor
	for i := existingCount; i < MaxSlots; i++ {
		at = p.pin(at.AddDate(0, 0, gapDays[i]))
		slots = append(slots, Slot{TypeID: i + 1, NextActionAt: at})
	}
	return slots
}

func (p Planner) pin(t time.Time) time.Time {
	local := t.In(p.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), p.Hour, 0, 0, 0, p.Location)
}

// Anchor is where planning continues from: the latest existing slot, or now
// when there is none or it already passed.
func Anchor(latest *time.Time, now time.Time) time.Time {
	if latest == nil || latest.Before(now) {
		return now
	}
	return *latest
}
