package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/chatproassist/voice-events-processor/internal/apperrors"
	"github.com/chatproassist/voice-events-processor/internal/model"
	"github.com/chatproassist/voice-events-processor/pkg/logger"
)

// WebhookService defines the interface for webhook event processing
type WebhookService interface {
	StartCall(ctx context.Context, payload model.CallStartPayload) error
	AppendTranscript(ctx context.Context, payload model.TranscriptEventPayload) error
	UpdateStatus(ctx context.Context, payload model.StatusUpdatePayload) error
	EndCall(ctx context.Context, payload model.CallEndPayload) error
	RecordFunctionCall(ctx context.Context, payload model.FunctionCallPayload) error
}

// WebhookHandler converts raw provider envelopes into typed payloads and
// dispatches them to the service.
type WebhookHandler struct {
	service WebhookService
}

// NewWebhookHandler creates a new webhook event handler
func NewWebhookHandler(service WebhookService) *WebhookHandler {
	return &WebhookHandler{
		service: service,
	}
}

// HandleEvent processes one webhook event
func (h *WebhookHandler) HandleEvent(ctx context.Context, eventType model.EventType, metadata *model.EventMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx)
	log.Info("Processing webhook event", zap.String("type", string(eventType)))

	var envelope model.WebhookEnvelope
	if err := json.Unmarshal(rawEvent, &envelope); err != nil {
		log.Error("Failed to unmarshal webhook envelope", zap.Error(err))
		return apperrors.NewFatal(err, "failed to unmarshal webhook envelope")
	}

	msg := envelope.Message
	if msg.Call == nil || msg.Call.ID == "" {
		missingErr := fmt.Errorf("event is missing call identifier")
		log.Error("Webhook envelope validation failed", zap.Error(missingErr))
		return apperrors.NewFatal(missingErr, "event is missing call identifier")
	}

	var err error
	switch eventType {
	case model.EventCallStart:
		err = h.handleCallStart(ctx, msg)
	case model.EventTranscript:
		err = h.handleTranscript(ctx, msg)
	case model.EventStatusUpdate:
		err = h.handleStatusUpdate(ctx, msg)
	case model.EventCallEnd:
		err = h.handleCallEnd(ctx, msg)
	case model.EventFunctionCall:
		err = h.handleFunctionCall(ctx, msg)
	default:
		unsupportedErr := fmt.Errorf("unsupported webhook event type: %s", eventType)
		log.Error("Unsupported webhook event type", zap.String("eventType", string(eventType)))
		err = apperrors.NewFatal(unsupportedErr, "unsupported webhook event type")
	}
	return err
}

// HandleUnknownEvent acknowledges an event type this service does not
// process. Unknown types are a no-op, not an error.
func (h *WebhookHandler) HandleUnknownEvent(ctx context.Context, eventType model.EventType, metadata *model.EventMetadata, rawEvent []byte) error {
	logger.FromContext(ctx).Info("Ignoring unknown webhook event type",
		zap.String("type", string(eventType)))
	return nil
}

func (h *WebhookHandler) handleCallStart(ctx context.Context, msg model.WebhookMessage) error {
	direction := ""
	switch msg.Call.Type {
	case "inboundPhoneCall":
		direction = model.CallDirectionInbound
	case "outboundPhoneCall":
		direction = model.CallDirectionOutbound
	}

	payload := model.CallStartPayload{
		ProviderCallID: msg.Call.ID,
		PhoneNumber:    msg.Call.Customer.Number,
		CallerName:     msg.Call.Customer.Name,
		Direction:      direction,
		AssistantID:    msg.Call.AssistantID,
	}
	return h.service.StartCall(ctx, payload)
}

func (h *WebhookHandler) handleTranscript(ctx context.Context, msg model.WebhookMessage) error {
	log := logger.FromContext(ctx)

	if msg.Transcript == nil {
		missingErr := fmt.Errorf("transcript event has no transcript payload")
		log.Error("Transcript validation failed", zap.Error(missingErr))
		return apperrors.NewFatal(missingErr, "transcript event has no transcript payload")
	}

	payload := model.TranscriptEventPayload{
		ProviderCallID: msg.Call.ID,
		Role:           msg.Transcript.Role,
		Text:           msg.Transcript.Text,
	}
	return h.service.AppendTranscript(ctx, payload)
}

func (h *WebhookHandler) handleStatusUpdate(ctx context.Context, msg model.WebhookMessage) error {
	log := logger.FromContext(ctx)

	if msg.Status == "" {
		missingErr := fmt.Errorf("status-update event has no status")
		log.Error("Status update validation failed", zap.Error(missingErr))
		return apperrors.NewFatal(missingErr, "status-update event has no status")
	}

	payload := model.StatusUpdatePayload{
		ProviderCallID: msg.Call.ID,
		Status:         msg.Status,
	}
	return h.service.UpdateStatus(ctx, payload)
}

func (h *WebhookHandler) handleCallEnd(ctx context.Context, msg model.WebhookMessage) error {
	// The provider attaches the recording URL and cost to the call object.
	// Older payloads carried them at the message level, so fall back there.
	recordingURL := msg.Call.RecordingURL
	if recordingURL == "" {
		recordingURL = msg.RecordingURL
	}
	cost := msg.Call.Cost
	if cost == 0 {
		cost = msg.Cost
	}

	payload := model.CallEndPayload{
		ProviderCallID: msg.Call.ID,
		EndedReason:    msg.EndedReason,
		RecordingURL:   recordingURL,
		Cost:           cost,
	}
	return h.service.EndCall(ctx, payload)
}

func (h *WebhookHandler) handleFunctionCall(ctx context.Context, msg model.WebhookMessage) error {
	payload := model.FunctionCallPayload{
		ProviderCallID: msg.Call.ID,
		FunctionCall:   msg.FunctionCall,
	}
	return h.service.RecordFunctionCall(ctx, payload)
}
