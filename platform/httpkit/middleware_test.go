package httpkit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	secret     string
	cronSecret string
}

func (c testConfig) GetJWTAccessSecret() string { return c.secret }
func (c testConfig) GetCronSecret() string      { return c.cronSecret }

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func TestAuthRequiredPopulatesSalesIdentity(t *testing.T) {
	cfg := testConfig{secret: "s3cret"}
	userID := uuid.New()
	salesID := uuid.New()

	var (
		got Identity
		ok  bool
	)
	engine := gin.New()
	engine.GET("/me", AuthRequired(cfg), func(c *gin.Context) {
		got, ok = GetIdentity(c)
		c.Status(http.StatusNoContent)
	})

	raw := signToken(t, cfg.secret, jwt.MapClaims{
		"sub":      userID.String(),
		"type":     "access",
		"roles":    []string{"sales"},
		"sales_id": salesID.String(),
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, ok)
	assert.Equal(t, userID, got.UserID)
	assert.True(t, got.HasRole("sales"))
	require.NotNil(t, got.SalesID)
	assert.Equal(t, salesID, *got.SalesID)
}

func TestAuthRequiredRejectsRefreshTokens(t *testing.T) {
	cfg := testConfig{secret: "s3cret"}
	engine := gin.New()
	engine.GET("/me", AuthRequired(cfg), func(c *gin.Context) { c.Status(http.StatusOK) })

	raw := signToken(t, cfg.secret, jwt.MapClaims{
		"sub":  uuid.NewString(),
		"type": "refresh",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCronSecretRequired(t *testing.T) {
	cases := []struct {
		name       string
		configured string
		header     string
		want       int
	}{
		{"matching secret", "tick", "tick", http.StatusOK},
		{"wrong secret", "tick", "tock", http.StatusUnauthorized},
		{"missing header", "tick", "", http.StatusUnauthorized},
		{"unconfigured secret", "", "", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := gin.New()
			engine.POST("/cron", CronSecretRequired(testConfig{cronSecret: tc.configured}), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/cron", nil)
			if tc.header != "" {
				req.Header.Set(CronSecretHeader, tc.header)
			}
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestHandleErrorMapsWrappedDomainErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	handled := HandleError(c, apperr.Forbidden("lead is owned by another sales"))

	assert.True(t, handled)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "owned by another sales")
	assert.Contains(t, rec.Body.String(), `"code":"forbidden"`)
}

func TestAuthRequiredRejectsTokensWithoutExpiry(t *testing.T) {
	cfg := testConfig{secret: "s3cret"}
	engine := gin.New()
	engine.GET("/me", AuthRequired(cfg), func(c *gin.Context) { c.Status(http.StatusOK) })

	raw := signToken(t, cfg.secret, jwt.MapClaims{"sub": uuid.NewString(), "type": "access"})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRequiredAcceptsQueryTokenForStreams(t *testing.T) {
	cfg := testConfig{secret: "s3cret"}
	engine := gin.New()
	engine.GET("/stream", AuthRequired(cfg), RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusOK) })

	admin := signToken(t, cfg.secret, jwt.MapClaims{
		"sub":   uuid.NewString(),
		"type":  "access",
		"roles": []string{"admin"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	sales := signToken(t, cfg.secret, jwt.MapClaims{
		"sub":   uuid.NewString(),
		"type":  "access",
		"roles": []string{"sales"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream?token="+admin, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream?token="+sales, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMustGetIdentityAbortsWithoutAuth(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	id := MustGetIdentity(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, id.Roles)
}

func TestRateLimitPerIP(t *testing.T) {
	limiter := NewIPRateLimiter(1, 2, time.Minute, nil)
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	engine := gin.New()
	engine.GET("/l/:code", limiter.RateLimit(), func(c *gin.Context) { c.Status(http.StatusFound) })

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/l/abc", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusFound, hit("10.0.0.1"))
	assert.Equal(t, http.StatusFound, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusFound, hit("10.0.0.2"))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, http.StatusFound, hit("10.0.0.1"))
	assert.Len(t, limiter.visitors, 1)
}

func TestRequestLoggerEchoesRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestLogger(logger.Discard()))
	engine.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestHandleErrorHidesUntypedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	assert.False(t, HandleError(c, nil))
	assert.True(t, HandleError(c, errors.New("pq: relation does not exist")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "relation")
	assert.Contains(t, rec.Body.String(), `"code":"internal"`)
}
