package actor

import (
	"testing"

	"leadflow_backend/platform/httpkit"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanManage(t *testing.T) {
	own := uuid.New()
	other := uuid.New()

	sales := Actor{UserID: uuid.New(), Roles: []string{RoleSales}, SalesID: &own}
	assert.True(t, sales.CanManage(own))
	assert.False(t, sales.CanManage(other))
	assert.True(t, sales.IsSalesOnly())

	unbound := Actor{UserID: uuid.New(), Roles: []string{RoleSales}}
	assert.False(t, unbound.CanManage(own))

	manager := Actor{UserID: uuid.New(), Roles: []string{RoleSales, RoleManager}}
	assert.True(t, manager.CanManage(other))
	assert.False(t, manager.IsSalesOnly())

	assert.True(t, System().CanManage(other))
	assert.False(t, Actor{}.CanManage(other))
}

func TestChangedBy(t *testing.T) {
	assert.Nil(t, System().ChangedBy())

	id := uuid.New()
	got := FromIdentity(httpkit.Identity{UserID: id, Roles: []string{RoleAdmin}}).ChangedBy()
	if assert.NotNil(t, got) {
		assert.Equal(t, id, *got)
	}
}
