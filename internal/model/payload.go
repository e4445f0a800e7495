package model

import "encoding/json"

// WebhookEnvelope is the outer JSON body the provider posts to the webhook
// endpoint. Only the message is inspected; everything else is carried along
// for the audit trail.
type WebhookEnvelope struct {
	Message WebhookMessage `json:"message" validate:"required"`
}

// WebhookMessage is the typed message inside the envelope. The Type field
// selects which of the optional payload shapes is populated.
type WebhookMessage struct {
	Type         string             `json:"type" validate:"required"`
	Call         *CallPayload       `json:"call,omitempty"`
	Transcript   *TranscriptPayload `json:"transcript,omitempty"`
	Status       string             `json:"status,omitempty"`
	EndedReason  string             `json:"endedReason,omitempty"`
	RecordingURL string             `json:"recordingUrl,omitempty"`
	Cost         float64            `json:"cost,omitempty"`
	FunctionCall json.RawMessage    `json:"functionCall,omitempty"`
}

// CallPayload describes the provider's call object attached to every event.
// RecordingURL and Cost are only populated on call-end events.
type CallPayload struct {
	ID           string          `json:"id" validate:"required"`
	Type         string          `json:"type,omitempty"`
	AssistantID  string          `json:"assistantId,omitempty"`
	Customer     CustomerPayload `json:"customer,omitempty"`
	RecordingURL string          `json:"recordingUrl,omitempty"`
	Cost         float64         `json:"cost,omitempty"`
}

// CustomerPayload identifies the counterparty on a call.
type CustomerPayload struct {
	Number string `json:"number,omitempty"`
	Name   string `json:"name,omitempty"`
}

// TranscriptPayload is one speaker turn from a transcript event.
type TranscriptPayload struct {
	Role string `json:"role" validate:"required"`
	Text string `json:"text" validate:"required"`
}

// CallStartPayload is the typed form of a call-start event.
type CallStartPayload struct {
	ProviderCallID string `json:"provider_call_id" validate:"required"`
	PhoneNumber    string `json:"phone_number"`
	CallerName     string `json:"caller_name"`
	Direction      string `json:"direction" validate:"omitempty,oneof=inbound outbound"`
	AssistantID    string `json:"assistant_id"`
}

// TranscriptEventPayload is the typed form of a transcript event.
type TranscriptEventPayload struct {
	ProviderCallID string `json:"provider_call_id" validate:"required"`
	Role           string `json:"role" validate:"required"`
	Text           string `json:"text" validate:"required"`
}

// StatusUpdatePayload is the typed form of a status-update event. Status
// carries the raw provider status string before normalization.
type StatusUpdatePayload struct {
	ProviderCallID string `json:"provider_call_id" validate:"required"`
	Status         string `json:"status" validate:"required"`
}

// CallEndPayload is the typed form of a call-end event.
type CallEndPayload struct {
	ProviderCallID string  `json:"provider_call_id" validate:"required"`
	EndedReason    string  `json:"ended_reason"`
	RecordingURL   string  `json:"recording_url" validate:"omitempty,url"`
	Cost           float64 `json:"cost" validate:"gte=0"`
}

// FunctionCallPayload is the typed form of a function-call event. Arguments
// are kept opaque and written straight to the audit log.
type FunctionCallPayload struct {
	ProviderCallID string          `json:"provider_call_id" validate:"required"`
	FunctionCall   json.RawMessage `json:"function_call"`
}

// CallUpdatedNotification is published after a call row changes so that
// downstream consumers (live dashboards) can refresh.
type CallUpdatedNotification struct {
	CallID         string `json:"call_id"`
	ProviderCallID string `json:"provider_call_id"`
	OwnerID        string `json:"owner_id"`
	Status         string `json:"status"`
	EventType      string `json:"event_type"`
	Timestamp      int64  `json:"timestamp"`
}
