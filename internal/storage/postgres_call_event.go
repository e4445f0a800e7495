package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chatproassist/voice-events-processor/internal/apperrors"
	"github.com/chatproassist/voice-events-processor/internal/model"
	"github.com/chatproassist/voice-events-processor/internal/observer"
	"github.com/chatproassist/voice-events-processor/internal/tenant"
	"github.com/chatproassist/voice-events-processor/pkg/logger"
	"github.com/chatproassist/voice-events-processor/pkg/utils"
)

// SaveCallEvent appends an audit row for a call. Rows are never updated.
func (r *PostgresRepo) SaveCallEvent(ctx context.Context, event model.CallEvent) error {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get owner ID: %w", apperrors.ErrUnauthorized, err)
	}

	if event.OwnerID == "" {
		event.OwnerID = ownerID
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Create(&event)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveCallEvent Commit", operation)
	observer.ObserveDbOperationDuration("insert", "call_event", ownerID, time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save call event after retries",
			zap.String("call_id", event.CallID),
			zap.String("event_type", event.EventType),
			zap.Error(commitErr))
		return commitErr
	}

	return nil
}
