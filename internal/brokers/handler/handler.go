package handler

import (
	"net/http"

	"leadrouter_backend/internal/brokers/service"
	"leadrouter_backend/internal/brokers/transport"
	"leadrouter_backend/platform/httpkit"
	"leadrouter_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid broker id"
)

// Handler handles HTTP requests for brokers.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new brokers handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers broker routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/queue", h.QueueStatus)
	rg.GET("/:id", h.GetByID)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.PATCH("/:id/active", h.SetActive)
	rg.POST("/:id/move-to-tail", h.MoveToTail)
	rg.GET("/:id/qr", h.ContactQR)
}

func (h *Handler) List(c *gin.Context) {
	result, err := h.svc.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateBrokerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Create(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.UpdateBrokerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Update(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SetActive(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.SetActive(c.Request.Context(), id, *req.Active)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) MoveToTail(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.svc.MoveToTail(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) QueueStatus(c *gin.Context) {
	result, err := h.svc.QueueStatus(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) ContactQR(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	png, err := h.svc.ContactQR(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.Nil, false
	}
	return id, true
}
