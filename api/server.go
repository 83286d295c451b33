package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"retos/config"
	"retos/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Server exposes the settlement engine over HTTP. The surrounding session
// layer is out of scope: identities arrive pre-authenticated in the
// X-User-Alias header.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
}

// NewServer wires the HTTP routes to the services
func NewServer(cfg *config.Config, userService service.UserService, wagerService service.WagerService) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(), httpMetrics())

	h := &handlers{
		userService:  userService,
		wagerService: wagerService,
	}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := engine.Group("/api", identity(userService))
	{
		authed.GET("/me", h.getMe)
		authed.GET("/me/history", h.getHistory)
		authed.POST("/users/:alias/support", h.support)

		authed.POST("/wagers", h.proposeWager)
		authed.GET("/wagers", h.listWagers)
		authed.GET("/wagers/:id", h.getWager)
		authed.POST("/wagers/:id/accept", h.acceptWager)
		authed.POST("/wagers/:id/cancel", h.cancelWager)
		authed.POST("/wagers/:id/votes", h.castVote)
		authed.POST("/wagers/:id/claim", h.claimWager)
	}

	return &Server{
		engine: engine,
		httpServer: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start runs the HTTP server until it fails or is shut down
func (s *Server) Start() error {
	log.WithField("addr", s.httpServer.Addr).Info("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

const aliasContextKey = "userAlias"

// identity resolves the caller from the X-User-Alias header, provisioning
// the account with its starting grants on first contact.
func identity(userService service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		alias := c.GetHeader("X-User-Alias")
		if alias == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthenticated",
				"message": "X-User-Alias header is required",
			})
			return
		}

		if _, err := userService.GetOrCreateUser(c.Request.Context(), alias); err != nil {
			log.WithError(err).WithField("alias", alias).Error("Failed to resolve user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "internal",
				"message": "failed to resolve user",
			})
			return
		}

		c.Set(aliasContextKey, alias)
		c.Next()
	}
}

// requestLogger logs one line per request with a generated request id
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		log.WithFields(log.Fields{
			"requestID": requestID,
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    c.Writer.Status(),
			"duration":  time.Since(start),
		}).Info("Request handled")
	}
}
