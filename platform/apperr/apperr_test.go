package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{NotFound("lead not found"), http.StatusNotFound},
		{Validation("stage inactive"), http.StatusBadRequest},
		{BadRequest("malformed"), http.StatusBadRequest},
		{Forbidden("not owner"), http.StatusForbidden},
		{Conflict("duplicate"), http.StatusConflict},
		{Unavailable("gateway down", errors.New("timeout")), http.StatusServiceUnavailable},
		{Internal("boom"), http.StatusInternalServerError},
		{New(KindUnknown, "mystery"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.HTTPStatus(), tc.err.Error())
	}
}

func TestKindFollowsWrappedChain(t *testing.T) {
	base := Forbidden("lead is owned by another sales").WithOp("pipeline.AdvanceStage")
	wrapped := fmt.Errorf("transition: %w", base)

	assert.Equal(t, KindForbidden, GetKind(wrapped))
	assert.True(t, Is(wrapped, KindForbidden))
	assert.Equal(t, KindUnknown, GetKind(errors.New("plain")))

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Same(t, base, got)
}

func TestErrorMessageIncludesOpAndCause(t *testing.T) {
	err := Unavailable("send failed", errors.New("502")).WithOp("whatsapp.SendMessage")
	assert.Equal(t, "whatsapp.SendMessage: send failed: 502", err.Error())
	assert.Equal(t, "lead not found", NotFound("lead not found").Error())
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(fmt.Errorf("dispatch: %w", Unavailable("gateway down", nil))))
	assert.False(t, Retryable(Validation("no phone")))
	assert.False(t, Retryable(errors.New("plain")))
}
