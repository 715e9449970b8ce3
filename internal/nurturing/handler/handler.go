package handler

import (
	"context"
	"net/http"

	"leadflow_backend/internal/nurturing/domain"
	"leadflow_backend/internal/nurturing/service"
	"leadflow_backend/internal/nurturing/transport"
	"leadflow_backend/internal/shared/actor"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/sanitize"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead ID"
)

// Handler handles HTTP requests for lead nurturing.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new nurturing handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Get returns the lead's nurturing state.
// GET /api/v1/leads/:id/nurturing
func (h *Handler) Get(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	st, err := h.svc.Get(c.Request.Context(), leadID, actor.FromIdentity(httpkit.MustGetIdentity(c)))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(st))
}

// Toggle switches nurturing on or off.
// POST /api/v1/leads/:id/nurturing/toggle
func (h *Handler) Toggle(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	var req transport.ToggleRequest
	if !h.bind(c, &req) {
		return
	}

	st, err := h.svc.Toggle(c.Request.Context(), leadID, *req.Enabled, actor.FromIdentity(httpkit.MustGetIdentity(c)))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(st))
}

// Pause pauses nurturing and keeps the lead out of auto-resume.
// POST /api/v1/leads/:id/nurturing/pause
func (h *Handler) Pause(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	var req transport.PauseRequest
	if !h.bind(c, &req) {
		return
	}

	st, err := h.svc.PauseManually(c.Request.Context(), leadID, sanitize.Text(req.Reason), actor.FromIdentity(httpkit.MustGetIdentity(c)))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(st))
}

// Stop ends the lead's sequence.
// POST /api/v1/leads/:id/nurturing/stop
func (h *Handler) Stop(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	st, err := h.svc.Stop(c.Request.Context(), leadID, actor.FromIdentity(httpkit.MustGetIdentity(c)))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(st))
}

// BindPlan attaches a nurturing plan.
// PUT /api/v1/leads/:id/nurturing/plan
func (h *Handler) BindPlan(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	var req transport.BindPlanRequest
	if !h.bind(c, &req) {
		return
	}

	st, err := h.svc.BindPlan(c.Request.Context(), leadID, req.PlanID, actor.FromIdentity(httpkit.MustGetIdentity(c)))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(st))
}

// RunAutoResume triggers the auto-resume sweep.
// POST /api/v1/cron/nurturing/auto-resume
func (h *Handler) RunAutoResume(c *gin.Context) {
	h.sweep(c, service.SweepAutoResume, h.svc.RunAutoResumeSweep)
}

// RunSend triggers the send sweep.
// POST /api/v1/cron/nurturing/send
func (h *Handler) RunSend(c *gin.Context) {
	h.sweep(c, service.SweepSend, h.svc.RunSendSweep)
}

func (h *Handler) sweep(c *gin.Context, name string, run func(context.Context, int) (domain.SweepResult, error)) {
	var req transport.SweepRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := run(c.Request.Context(), req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.SweepResponse{
		Sweep:     name,
		Processed: result.Processed,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
	})
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return false
	}
	return true
}

func parseLeadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func toResponse(st domain.State) transport.StateResponse {
	return transport.StateResponse{
		LeadID:         st.LeadID,
		Status:         string(st.Status),
		ManualPaused:   st.ManualPaused,
		PauseReason:    st.PauseReason,
		PausedAt:       st.PausedAt,
		NextSendAt:     st.NextSendAt,
		CurrentStep:    st.CurrentStep,
		LastSentAt:     st.LastSentAt,
		LastMessageKey: st.LastMessageKey,
		PlanID:         st.PlanID,
	}
}
