package ingestion

import (
	"context"

	"go.uber.org/zap"

	"github.com/chatproassist/voice-events-processor/internal/model"
	"github.com/chatproassist/voice-events-processor/internal/tenant"
	"github.com/chatproassist/voice-events-processor/pkg/logger"
	"github.com/chatproassist/voice-events-processor/pkg/utils"
)

// EventHandler defines a function that processes events
type EventHandler func(ctx context.Context, eventType model.EventType, metadata *model.EventMetadata, rawEvent []byte) error

// Router routes webhook events to the appropriate handler based on event type
type Router struct {
	// Map of event type to handler
	handlers map[model.EventType]EventHandler
	// Default handler for unknown event types
	defaultHandler EventHandler
}

// NewRouter creates a new event router
func NewRouter() *Router {
	return &Router{
		handlers: make(map[model.EventType]EventHandler),
	}
}

// Register registers a handler for an event type
func (r *Router) Register(eventType model.EventType, handler EventHandler) {
	r.handlers[eventType] = handler
}

// RegisterDefault registers a default handler for unknown event types
func (r *Router) RegisterDefault(handler EventHandler) {
	r.defaultHandler = handler
}

// Route routes an event to the appropriate handler
func (r *Router) Route(ctx context.Context, metadata *model.EventMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	// Add event metadata to the log context
	log = log.With(
		zap.String("event_type", string(metadata.EventType)),
		zap.String("request_id", metadata.RequestID),
		zap.String("owner_id", metadata.OwnerID),
	)
	ctx = logger.WithLogger(ctx, log)

	// Add owner to context
	if metadata.OwnerID != "" {
		ctx = tenant.WithOwnerID(ctx, metadata.OwnerID)
	}

	log.Info("Event received",
		zap.String("payload_size", utils.ByteCountSI(len(rawEvent))),
	)

	handler, ok := r.handlers[metadata.EventType]

	// Use default handler if no specific handler found
	if !ok && r.defaultHandler != nil {
		log.Warn("No specific handler for event type, using default")
		return r.defaultHandler(ctx, metadata.EventType, metadata, rawEvent)
	} else if !ok {
		log.Error("No handler registered for event type")
		return nil
	}

	return handler(ctx, metadata.EventType, metadata, rawEvent)
}
