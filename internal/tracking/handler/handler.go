package handler

import (
	"net/http"
	"strconv"

	"leadflow_backend/internal/shared/actor"
	"leadflow_backend/internal/tracking/domain"
	"leadflow_backend/internal/tracking/service"
	"leadflow_backend/internal/tracking/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead ID"
	msgLinkNotFound     = "link not found"
)

// Handler handles HTTP requests for tracked links.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new tracking handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Redirect handles GET|HEAD /l/:code
func (h *Handler) Redirect(c *gin.Context) {
	target, err := h.svc.RecordClick(c.Request.Context(), c.Param("code"), domain.ClickMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Method:    c.Request.Method,
	})
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			c.String(http.StatusNotFound, msgLinkNotFound)
			return
		}
		httpkit.HandleError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, target)
}

// Mint handles POST /api/v1/leads/:id/links
func (h *Handler) Mint(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return
	}

	var req transport.MintRequest
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

	link, err := h.svc.Mint(c.Request.Context(), leadID, req.TargetURL, actor.FromIdentity(httpkit.MustGetIdentity(c)))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.LinkResponse{
		ID:        link.ID,
		Code:      link.Code,
		ShortURL:  h.svc.ShortURL(link.Code),
		LeadID:    link.LeadID,
		TargetURL: link.TargetURL,
		CreatedAt: link.CreatedAt,
	})
}

// QR handles GET /api/v1/links/:code/qr?size=256
func (h *Handler) QR(c *gin.Context) {
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(service.DefaultQRSize)))
	if err != nil {
		size = service.DefaultQRSize
	}

	png, err := h.svc.QR(c.Request.Context(), c.Param("code"), size, actor.FromIdentity(httpkit.MustGetIdentity(c)))
	if httpkit.HandleError(c, err) {
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
