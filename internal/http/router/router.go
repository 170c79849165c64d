// Package router assembles the Gin engine and mounts all domain modules.
package router

import (
	"crypto/subtle"
	"net/http"

	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/httpkit"
	"leadrouter_backend/platform/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Config combines the config interfaces needed by the HTTP router.
type Config interface {
	config.HTTPConfig
	config.JWTConfig
	config.WebhookConfig
}

// New builds the Gin engine, wires shared middleware, and registers the
// routes of every module.
func New(cfg Config, log *logger.Logger, env string, modules ...apphttp.Module) *gin.Engine {
	if env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(log))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(cfg))

	limiter := httpkit.NewIPRateLimiter(20, 60, log)
	engine.Use(limiter.RateLimit())

	engine.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")
	authMiddleware := httpkit.AuthRequired(cfg)

	ctx := &apphttp.RouterContext{
		Engine:          engine,
		V1:              v1,
		Protected:       v1.Group("", authMiddleware),
		Webhook:         v1.Group("/webhook", webhookTokenGuard(cfg)),
		Config:          cfg,
		AuthMiddleware:  authMiddleware,
		AuthRateLimiter: httpkit.NewAuthRateLimiter(log),
	}

	for _, module := range modules {
		module.RegisterRoutes(ctx)
		log.Info("module routes registered", "module", module.Name())
	}

	return engine
}

func corsMiddleware(cfg config.HTTPConfig) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", "apikey")
	if cfg.GetCORSAllowAll() {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.GetCORSOrigins()
		corsConfig.AllowCredentials = cfg.GetCORSAllowCreds()
	}
	return cors.New(corsConfig)
}

// webhookTokenGuard authenticates the messaging provider by shared token.
// The provider cannot hold a JWT, so the webhook group uses the same apikey
// header scheme the provider uses for its own API.
func webhookTokenGuard(cfg config.WebhookConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := cfg.GetWebhookToken()
		if expected == "" {
			// Unset token means the deployment trusts its network boundary.
			c.Next()
			return
		}

		got := c.GetHeader("apikey")
		if got == "" {
			got = c.GetHeader("X-Webhook-Token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
			return
		}
		c.Next()
	}
}
