package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chatproassist/voice-events-processor/internal/ingestion"
	"github.com/chatproassist/voice-events-processor/internal/model"
	"github.com/chatproassist/voice-events-processor/internal/observer"
	"github.com/chatproassist/voice-events-processor/internal/tenant"
	"github.com/chatproassist/voice-events-processor/pkg/logger"
	"github.com/chatproassist/voice-events-processor/pkg/utils"
)

const (
	requestIDHeader = "X-Request-ID"
	secretHeader    = "X-Webhook-Secret"
	ownerHeader     = "X-Owner-Id"

	// maxBodyBytes caps webhook payload size.
	maxBodyBytes = 1 << 20
)

// Server exposes the webhook endpoint plus health and metrics surfaces.
type Server struct {
	engine       *gin.Engine
	httpServer   *http.Server
	router       *ingestion.Router
	secret       string
	defaultOwner string
	ready        func() bool
}

// Options configures the HTTP server.
type Options struct {
	Port         int
	Environment  string
	Secret       string
	DefaultOwner string
	// Ready reports whether downstream dependencies are usable; nil means
	// always ready.
	Ready func() bool
}

// New creates the HTTP server and registers all routes.
func New(opts Options, router *ingestion.Router) *Server {
	if opts.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:       engine,
		router:       router,
		secret:       opts.Secret,
		defaultOwner: opts.DefaultOwner,
		ready:        opts.Ready,
	}

	engine.Use(s.requestIDMiddleware())

	engine.GET("/health", s.handleHealth)
	engine.GET("/ready", s.handleReady)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	webhooks := engine.Group("/webhooks")
	webhooks.Use(s.secretMiddleware())
	webhooks.POST("/voice", s.handleVoiceWebhook)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Engine returns the underlying gin engine, used by tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start begins serving. It blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	logger.Log.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestIDMiddleware attaches (or propagates) a correlation identifier and a
// request-scoped logger.
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(requestIDHeader, rid)

		ctx := tenant.WithRequestID(c.Request.Context(), rid)
		ctx = logger.WithLogger(ctx, logger.Log.With(zap.String("request_id", rid)))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// secretMiddleware enforces the shared-secret header when a secret is
// configured. Comparison is constant time.
func (s *Server) secretMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.secret == "" {
			c.Next()
			return
		}
		provided := c.GetHeader(secretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.secret)) != 1 {
			logger.FromContext(c.Request.Context()).Warn("Rejected webhook with invalid secret",
				zap.String("remote_addr", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	if s.ready != nil && !s.ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// handleVoiceWebhook accepts one provider event envelope. Unknown event
// types are acknowledged without processing; processing failures surface as
// a 500 so the provider retries delivery.
func (s *Server) handleVoiceWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		log.Error("Failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read request body"})
		return
	}

	var envelope model.WebhookEnvelope
	if err := utils.UnmarshalJSON(body, &envelope); err != nil {
		log.Warn("Malformed webhook payload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "malformed payload"})
		return
	}

	ownerID := c.GetHeader(ownerHeader)
	if ownerID == "" {
		ownerID = s.defaultOwner
	}

	rawType := envelope.Message.Type
	eventType, known := model.MapToEventType(rawType)
	if !known {
		// Unknown event types are acknowledged and ignored.
		log.Info("Acknowledging unknown webhook event type", zap.String("type", rawType))
		observer.IncEventsReceived(rawType, ownerID)
		observer.IncEventsProcessed(rawType, ownerID)
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	requestID, _ := tenant.FromRequestIDContext(ctx)
	metadata := &model.EventMetadata{
		EventType:  eventType,
		RequestID:  requestID,
		OwnerID:    ownerID,
		ReceivedAt: utils.Now(),
		RemoteAddr: c.ClientIP(),
	}

	observer.IncEventsReceived(string(eventType), ownerID)
	start := time.Now()

	routeErr := s.router.Route(ctx, metadata, body)

	observer.ObserveEventProcessingDuration(string(eventType), ownerID, time.Since(start))

	if routeErr != nil {
		observer.IncEventsFailed(string(eventType), ownerID)
		observer.IncEventProcessingAction(string(eventType), ownerID, "error_response", observer.SanitizeErrorType(routeErr.Error()))
		log.Error("Webhook event processing failed",
			zap.String("event_type", string(eventType)),
			zap.Error(routeErr))
		c.JSON(http.StatusInternalServerError, gin.H{"error": routeErr.Error()})
		return
	}

	observer.IncEventsProcessed(string(eventType), ownerID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
