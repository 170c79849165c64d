package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"leadrouter_backend/internal/reports/service"
	"leadrouter_backend/internal/reports/transport"
	"leadrouter_backend/platform/httpkit"
	"leadrouter_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for reports.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new reports handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers report routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/dashboard", h.Dashboard)
	rg.GET("/brokers", h.BrokerPerformance)
	rg.GET("/leads", h.LeadsByPeriod)
	rg.GET("/conversion", h.Conversion)
}

func (h *Handler) Dashboard(c *gin.Context) {
	result, err := h.svc.Dashboard(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) BrokerPerformance(c *gin.Context) {
	result, err := h.svc.BrokerPerformance(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) LeadsByPeriod(c *gin.Context) {
	start, end, ok := h.parsePeriod(c)
	if !ok {
		return
	}

	result, err := h.svc.LeadsByPeriod(c.Request.Context(), start, end)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Conversion(c *gin.Context) {
	start, end, ok := h.parsePeriod(c)
	if !ok {
		return
	}

	result, err := h.svc.Conversion(c.Request.Context(), start, end)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// parsePeriod reads optional start/end dates, defaulting to the last 30
// days. The end bound is exclusive, advanced past the named day.
func (h *Handler) parsePeriod(c *gin.Context) (time.Time, time.Time, bool) {
	var req transport.PeriodRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return time.Time{}, time.Time{}, false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return time.Time{}, time.Time{}, false
	}

	end := time.Now()
	if req.End != "" {
		parsed, _ := time.Parse("2006-01-02", req.End)
		end = parsed.AddDate(0, 0, 1)
	}
	start := end.AddDate(0, 0, -30)
	if req.Start != "" {
		start, _ = time.Parse("2006-01-02", req.Start)
	}

	if !start.Before(end) {
		httpkit.Error(c, http.StatusBadRequest, "start must be before end", nil)
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
