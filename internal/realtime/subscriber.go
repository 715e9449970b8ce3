package realtime

import (
	"context"

	"leadflow_backend/internal/events"

	"github.com/google/uuid"
)

// TeamRoom receives every event; managers and admins listen here.
const TeamRoom = "team"

// SalesRoom is the room of one sales owner.
func SalesRoom(salesID uuid.UUID) string {
	return "sales:" + salesID.String()
}

// LeadRoom is the room of one lead's detail view.
func LeadRoom(leadID uuid.UUID) string {
	return "lead:" + leadID.String()
}

var relayedEvents = []string{
	events.StageAdvanced{}.EventName(),
	events.StageCompleted{}.EventName(),
	events.StatusChanged{}.EventName(),
	events.SubStatusChanged{}.EventName(),
	events.NurturingStateChanged{}.EventName(),
	events.NurturingMessageSent{}.EventName(),
	events.FollowUpRescheduled{}.EventName(),
	events.FollowUpCompleted{}.EventName(),
	events.LinkClicked{}.EventName(),
}

// SubscribeAll relays lead lifecycle events from the bus to their rooms.
func (n *Notifier) SubscribeAll(bus events.Bus) {
	handler := events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		leadID, salesID, ok := owner(e)
		if !ok {
			return nil
		}
		n.Emit(ctx, SalesRoom(salesID), e.EventName(), e)
		n.Emit(ctx, LeadRoom(leadID), e.EventName(), e)
		n.Emit(ctx, TeamRoom, e.EventName(), e)
		return nil
	})
	for _, name := range relayedEvents {
		bus.Subscribe(name, handler)
	}
}

func owner(e events.Event) (uuid.UUID, uuid.UUID, bool) {
	switch ev := e.(type) {
	case events.StageAdvanced:
		return ev.LeadID, ev.SalesID, true
	case events.StageCompleted:
		return ev.LeadID, ev.SalesID, true
	case events.StatusChanged:
		return ev.LeadID, ev.SalesID, true
	case events.SubStatusChanged:
		return ev.LeadID, ev.SalesID, true
	case events.NurturingStateChanged:
		return ev.LeadID, ev.SalesID, true
	case events.NurturingMessageSent:
		return ev.LeadID, ev.SalesID, true
	case events.FollowUpRescheduled:
		return ev.LeadID, ev.SalesID, true
	case events.FollowUpCompleted:
		return ev.LeadID, ev.SalesID, true
	case events.LinkClicked:
		return ev.LeadID, ev.SalesID, true
	default:
		return uuid.UUID{}, uuid.UUID{}, false
	}
}
