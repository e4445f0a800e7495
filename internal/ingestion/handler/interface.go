package handler

import (
	"context"

	"github.com/chatproassist/voice-events-processor/internal/model"
)

// EventHandlerInterface defines the common interface for event handlers
type EventHandlerInterface interface {
	// HandleEvent processes an event
	HandleEvent(ctx context.Context, eventType model.EventType, metadata *model.EventMetadata, rawEvent []byte) error
}

// Ensure the handler implements the interface
var _ EventHandlerInterface = (*WebhookHandler)(nil)
