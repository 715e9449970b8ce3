// Package actor describes who triggers a domain operation and what they may touch.
package actor

import (
	"slices"

	"leadflow_backend/platform/httpkit"

	"github.com/google/uuid"
)

// Roles carried in access tokens.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleSales   = "sales"
	RoleSystem  = "system"
)

// Actor is the caller of a transition.
type Actor struct {
	UserID  uuid.UUID
	Roles   []string
	SalesID *uuid.UUID
}

// System is the actor used by sweeps and derived transitions.
func System() Actor {
	return Actor{Roles: []string{RoleSystem}}
}

// FromIdentity converts an authenticated HTTP identity.
func FromIdentity(id httpkit.Identity) Actor {
	return Actor{UserID: id.UserID, Roles: id.Roles, SalesID: id.SalesID}
}

// HasRole reports whether the actor carries role.
func (a Actor) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// IsSalesOnly is true for actors whose only authority is their own leads.
func (a Actor) IsSalesOnly() bool {
	return a.HasRole(RoleSales) && !a.HasRole(RoleAdmin) && !a.HasRole(RoleManager)
}

// CanManage reports whether the actor may touch a lead owned by
// ownerSalesID. An actor without any known role may touch nothing.
func (a Actor) CanManage(ownerSalesID uuid.UUID) bool {
	switch {
	case a.HasRole(RoleAdmin), a.HasRole(RoleManager), a.HasRole(RoleSystem):
		return true
	case a.HasRole(RoleSales):
		return a.SalesID != nil && *a.SalesID == ownerSalesID
	default:
		return false
	}
}

// ChangedBy is the user id recorded on history rows; nil for the system actor.
func (a Actor) ChangedBy() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
