package handler

import (
	"net/http"

	"leadflow_backend/internal/pipeline/domain"
	"leadflow_backend/internal/pipeline/service"
	"leadflow_backend/internal/pipeline/transport"
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
	msgInvalidStageID   = "invalid stage ID"
	msgUnknownDimension = "unknown dimension"
)

// Handler handles HTTP requests for pipeline transitions.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new pipeline handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

type transitionFunc func(*gin.Context, service.TransitionParams) (domain.HistoryRow, error)

// AdvanceStage handles POST /api/v1/leads/:id/stage
func (h *Handler) AdvanceStage(c *gin.Context) {
	h.transition(c, func(c *gin.Context, p service.TransitionParams) (domain.HistoryRow, error) {
		return h.svc.AdvanceStage(c.Request.Context(), p)
	})
}

// ChangeStatus handles POST /api/v1/leads/:id/status
func (h *Handler) ChangeStatus(c *gin.Context) {
	h.transition(c, func(c *gin.Context, p service.TransitionParams) (domain.HistoryRow, error) {
		return h.svc.ChangeStatus(c.Request.Context(), p)
	})
}

// ChangeSubStatus handles POST /api/v1/leads/:id/sub-status
func (h *Handler) ChangeSubStatus(c *gin.Context) {
	h.transition(c, func(c *gin.Context, p service.TransitionParams) (domain.HistoryRow, error) {
		return h.svc.ChangeSubStatus(c.Request.Context(), p)
	})
}

func (h *Handler) transition(c *gin.Context, run transitionFunc) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return
	}

	var req transport.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	row, err := run(c, service.TransitionParams{
		LeadID:   leadID,
		TargetID: req.TargetID,
		Actor:    actor.FromIdentity(identity),
		Note:     sanitize.Text(req.Note),
		Mode:     modeOrDefault(req.Mode),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(row))
}

// CompleteStage handles POST /api/v1/leads/:id/stages/:stageId/complete
func (h *Handler) CompleteStage(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return
	}
	stageID, err := uuid.Parse(c.Param("stageId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidStageID, nil)
		return
	}

	var req transport.CompleteStageRequest
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

	identity := httpkit.MustGetIdentity(c)
	row, err := h.svc.CompleteStage(c.Request.Context(), leadID, stageID, actor.FromIdentity(identity), modeOrDefault(req.Mode))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(row))
}

// ListHistory handles GET /api/v1/leads/:id/history/:dimension
func (h *Handler) ListHistory(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return
	}
	dim, ok := domain.ParseDimension(c.Param("dimension"))
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, msgUnknownDimension, nil)
		return
	}

	identity := httpkit.MustGetIdentity(c)
	rows, err := h.svc.ListHistory(c.Request.Context(), leadID, dim, actor.FromIdentity(identity))
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.HistoryRowResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, toResponse(row))
	}
	httpkit.OK(c, transport.HistoryResponse{Items: items})
}

func modeOrDefault(raw string) domain.Mode {
	if raw == "" {
		return domain.ModeManual
	}
	return domain.Mode(raw)
}

func toResponse(row domain.HistoryRow) transport.HistoryRowResponse {
	return transport.HistoryRowResponse{
		ID:        row.ID,
		LeadID:    row.LeadID,
		Dimension: string(row.Dimension),
		TargetID:  row.TargetID,
		ChangedBy: row.ChangedBy,
		SalesID:   row.SalesID,
		Note:      row.Note,
		Mode:      string(row.Mode),
		CreatedAt: row.CreatedAt,
		DoneAt:    row.DoneAt,
		CloseNote: row.CloseNote,
		IsOpen:    row.IsOpen(),
	}
}
