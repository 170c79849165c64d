package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"leadrouter_backend/internal/auth/service"
	"leadrouter_backend/internal/auth/transport"
	"leadrouter_backend/platform/httpkit"
	"leadrouter_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for authentication.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new auth handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterPublicRoutes mounts the unauthenticated auth endpoints.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/login", h.Login)
	rg.POST("/refresh", h.Refresh)
	rg.POST("/logout", h.Logout)
}

// RegisterProtectedRoutes mounts the endpoints that require a session.
func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.Me)
	rg.POST("/register", httpkit.RequireRole("admin"), h.Register)
}

func (h *Handler) Login(c *gin.Context) {
	var req transport.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	access, refresh, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.TokenResponse{AccessToken: access, RefreshToken: refresh})
}

func (h *Handler) Refresh(c *gin.Context) {
	var req transport.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	access, refresh, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.TokenResponse{AccessToken: access, RefreshToken: refresh})
}

func (h *Handler) Logout(c *gin.Context) {
	var req transport.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.svc.Logout(c.Request.Context(), req.RefreshToken); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Register(c *gin.Context) {
	var req transport.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	user, err := h.svc.Register(c.Request.Context(), req.Email, req.Password, req.Roles)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.UserResponse{
		ID:    user.ID.String(),
		Email: user.Email,
		Roles: user.Roles,
	})
}

func (h *Handler) Me(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	user, err := h.svc.GetUser(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.UserResponse{
		ID:    user.ID.String(),
		Email: user.Email,
		Roles: user.Roles,
	})
}
