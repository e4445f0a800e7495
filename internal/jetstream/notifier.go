package jetstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/chatproassist/voice-events-processor/internal/apperrors"
	"github.com/chatproassist/voice-events-processor/internal/model"
	"github.com/chatproassist/voice-events-processor/pkg/logger"
)

// CallNotifier publishes call lifecycle notifications for downstream
// consumers such as live dashboards.
type CallNotifier interface {
	PublishCallUpdated(ctx context.Context, notification model.CallUpdatedNotification) error
}

// Notifier publishes call-updated notifications over JetStream.
type Notifier struct {
	client  ClientInterface
	subject string
}

var _ CallNotifier = (*Notifier)(nil)

// NewNotifier creates a Notifier and ensures the target stream exists.
func NewNotifier(ctx context.Context, client ClientInterface, streamName, subject string) (*Notifier, error) {
	streamConfig := &nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subject},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
	}
	if err := client.SetupStream(ctx, streamConfig); err != nil {
		return nil, fmt.Errorf("failed to set up call notification stream: %w", err)
	}

	return &Notifier{client: client, subject: subject}, nil
}

// PublishCallUpdated publishes a notification for a changed call row.
func (n *Notifier) PublishCallUpdated(ctx context.Context, notification model.CallUpdatedNotification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal call notification: %w", apperrors.ErrNATS, err)
	}

	headers := map[string]string{
		"Owner-Id":   notification.OwnerID,
		"Event-Type": notification.EventType,
	}

	if err := n.client.Publish(n.subject, data, headers); err != nil {
		logger.FromContext(ctx).Warn("Failed to publish call notification",
			zap.String("call_id", notification.CallID),
			zap.String("event_type", notification.EventType),
			zap.Error(err))
		return fmt.Errorf("%w: %w", apperrors.ErrNATS, err)
	}

	return nil
}

// NoopNotifier satisfies CallNotifier when messaging is disabled.
type NoopNotifier struct{}

var _ CallNotifier = (*NoopNotifier)(nil)

// PublishCallUpdated does nothing.
func (NoopNotifier) PublishCallUpdated(ctx context.Context, notification model.CallUpdatedNotification) error {
	return nil
}
