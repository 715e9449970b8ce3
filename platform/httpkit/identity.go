package httpkit

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const identityKey = "httpkit.identity"

// Identity is the caller authenticated by AuthRequired.
type Identity struct {
	UserID  uuid.UUID
	Roles   []string
	SalesID *uuid.UUID
}

func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// SetIdentity stores id on the request. AuthRequired is the only production caller.
func SetIdentity(c *gin.Context, id Identity) {
	c.Set(identityKey, id)
}

// GetIdentity returns the request's identity, if any.
func GetIdentity(c *gin.Context) (Identity, bool) {
	raw, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := raw.(Identity)
	return id, ok
}

// MustGetIdentity aborts with 401 when the request carries no identity. The
// zero Identity it then returns holds no role and so authorizes nothing.
func MustGetIdentity(c *gin.Context) Identity {
	id, ok := GetIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: "unauthorized"})
	}
	return id
}
