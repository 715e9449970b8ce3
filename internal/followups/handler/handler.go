package handler

import (
	"net/http"

	"leadflow_backend/internal/followups/domain"
	"leadflow_backend/internal/followups/service"
	"leadflow_backend/internal/followups/transport"
	"leadflow_backend/internal/shared/actor"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/sanitize"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest    = "invalid request"
	msgValidationFailed  = "validation failed"
	msgInvalidLeadID     = "invalid lead ID"
	msgInvalidFollowUpID = "invalid follow-up ID"
	msgSalesIDRequired   = "salesId is required"
)

// Handler handles HTTP requests for follow-ups.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new follow-up handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Recalculate handles POST /api/v1/follow-ups/recalculate
func (h *Handler) Recalculate(c *gin.Context) {
	var req transport.RecalculateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}

	act := actor.FromIdentity(httpkit.MustGetIdentity(c))
	salesID := req.SalesID
	if salesID == nil {
		salesID = act.SalesID
	}
	if salesID == nil {
		httpkit.Error(c, http.StatusBadRequest, msgSalesIDRequired, nil)
		return
	}

	report, err := h.svc.Recalculate(c.Request.Context(), *salesID, req.DryRun, act)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, report)
}

// List handles GET /api/v1/leads/:id/follow-ups
func (h *Handler) List(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return
	}

	items, err := h.svc.List(c.Request.Context(), leadID, actor.FromIdentity(httpkit.MustGetIdentity(c)))
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.FollowUpListResponse{Items: make([]transport.FollowUpResponse, 0, len(items))}
	for _, f := range items {
		resp.Items = append(resp.Items, toResponse(f))
	}
	httpkit.OK(c, resp)
}

// Reschedule handles POST /api/v1/follow-ups/:id/reschedule
func (h *Handler) Reschedule(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	f, err := h.svc.Reschedule(c.Request.Context(), id, req.NextActionAt.UTC(), actor.FromIdentity(httpkit.MustGetIdentity(c)))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(f))
}

// Complete handles POST /api/v1/follow-ups/:id/complete
func (h *Handler) Complete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.CompleteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	f, err := h.svc.Complete(c.Request.Context(), id, sanitize.Text(req.Note), actor.FromIdentity(httpkit.MustGetIdentity(c)))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(f))
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidFollowUpID, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func toResponse(f domain.FollowUp) transport.FollowUpResponse {
	return transport.FollowUpResponse{
		ID:           f.ID,
		LeadID:       f.LeadID,
		SalesID:      f.SalesID,
		TypeID:       f.TypeID,
		NextActionAt: f.NextActionAt,
		DoneAt:       f.DoneAt,
		Note:         f.Note,
		Channel:      f.Channel,
		CreatedAt:    f.CreatedAt,
	}
}
