package httpkit

import (
	"crypto/subtle"
	"net/http"
	"slices"
	"strings"
	"time"

	"leadflow_backend/platform/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CronSecretHeader carries the shared secret of external cron triggers.
const CronSecretHeader = "X-Cron-Secret"

const tokenTypeAccess = "access"

// accessClaims is the payload of access tokens minted by the identity provider.
type accessClaims struct {
	jwt.RegisteredClaims
	Type    string   `json:"type"`
	Roles   []string `json:"roles"`
	SalesID string   `json:"sales_id,omitempty"`
}

// AuthRequired verifies an HS256 access token from the Authorization header.
// EventSource clients cannot set headers, so ?token= is accepted as well.
func AuthRequired(cfg config.JWTConfig) gin.HandlerFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	keyFunc := func(*jwt.Token) (any, error) { return []byte(cfg.GetJWTAccessSecret()), nil }

	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			raw = c.Query("token")
		}
		if raw == "" {
			abortUnauthorized(c, "missing token")
			return
		}

		var claims accessClaims
		if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil || claims.Type != tokenTypeAccess {
			abortUnauthorized(c, "invalid token")
			return
		}

		id, err := claims.identity()
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}
		SetIdentity(c, id)
		c.Next()
	}
}

func (a accessClaims) identity() (Identity, error) {
	userID, err := uuid.Parse(a.Subject)
	if err != nil {
		return Identity{}, err
	}
	id := Identity{UserID: userID, Roles: a.Roles}
	if id.Roles == nil {
		id.Roles = []string{}
	}
	if s := strings.TrimSpace(a.SalesID); s != "" {
		salesID, err := uuid.Parse(s)
		if err != nil {
			return Identity{}, err
		}
		id.SalesID = &salesID
	}
	return id, nil
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireRole lets through identities that carry role. Mount after AuthRequired.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok || !slices.Contains(id.Roles, role) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Code: "forbidden"})
			return
		}
		c.Next()
	}
}

// CronSecretRequired guards sweep triggers. An empty configured secret
// rejects every request.
func CronSecretRequired(cfg config.CronConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := cfg.GetCronSecret()
		if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(c.GetHeader(CronSecretHeader))) != 1 {
			abortUnauthorized(c, "invalid cron secret")
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: message, Code: "unauthorized"})
}
