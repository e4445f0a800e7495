package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chatproassist/voice-events-processor/internal/apperrors"
	"github.com/chatproassist/voice-events-processor/internal/model"
	"github.com/chatproassist/voice-events-processor/internal/observer"
	"github.com/chatproassist/voice-events-processor/internal/tenant"
	"github.com/chatproassist/voice-events-processor/pkg/logger"
	"github.com/chatproassist/voice-events-processor/pkg/utils"
)

// SaveCall inserts a new call row. A duplicate provider_call_id surfaces as
// apperrors.ErrDuplicate so the caller can fall back to an update path.
func (r *PostgresRepo) SaveCall(ctx context.Context, call model.Call) error {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get owner ID: %w", apperrors.ErrUnauthorized, err)
	}

	if ownerID != call.OwnerID {
		return fmt.Errorf("%w: call OwnerID %s does not match owner %s", apperrors.ErrBadRequest, call.OwnerID, ownerID)
	}

	call.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).Create(&call)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveCall Commit", operation)
	observer.ObserveDbOperationDuration("insert", "call", ownerID, time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save call after retries",
			zap.String("provider_call_id", call.ProviderCallID), zap.Error(commitErr))
		return commitErr
	}

	return nil
}

// FindCallByProviderID looks up a call by the provider-assigned identifier.
// Returns apperrors.ErrNotFound when no row exists.
func (r *PostgresRepo) FindCallByProviderID(ctx context.Context, providerCallID string) (*model.Call, error) {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get owner ID: %w", apperrors.ErrUnauthorized, err)
	}

	var call model.Call
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("provider_call_id = ? AND owner_id = ?", providerCallID, ownerID).
			First(&call)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: call with provider ID %s: %w", apperrors.ErrNotFound, providerCallID, result.Error)
			}
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindCallByProviderID", operation)
	observer.ObserveDbOperationDuration("find", "call", ownerID, time.Since(startTime), readErr)

	if readErr != nil {
		if !apperrors.IsNotFoundError(readErr) {
			logger.FromContext(ctx).Error("Failed to find call after retries",
				zap.String("provider_call_id", providerCallID), zap.Error(readErr))
		}
		return nil, readErr
	}

	return &call, nil
}

// UpdateCall persists a modified call row using the version column as an
// optimistic concurrency token. The row is matched on (id, version); if
// another writer got there first, no row matches and apperrors.ErrConflict
// is returned so the caller can re-read and retry.
func (r *PostgresRepo) UpdateCall(ctx context.Context, call model.Call) error {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get owner ID: %w", apperrors.ErrUnauthorized, err)
	}

	if ownerID != call.OwnerID {
		return fmt.Errorf("%w: call OwnerID %s does not match owner %s", apperrors.ErrBadRequest, call.OwnerID, ownerID)
	}

	expectedVersion := call.Version
	call.Version = expectedVersion + 1
	call.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Call{}).
			Where("id = ? AND version = ?", call.ID, expectedVersion).
			Updates(map[string]interface{}{
				"phone_number":  call.PhoneNumber,
				"caller_name":   call.CallerName,
				"direction":     call.Direction,
				"status":        call.Status,
				"start_time":    call.StartTime,
				"end_time":      call.EndTime,
				"duration":      call.Duration,
				"transcript":    call.Transcript,
				"recording_url": call.RecordingURL,
				"cost":          call.Cost,
				"ai_summary":    call.AISummary,
				"sentiment":     call.Sentiment,
				"assistant_id":  call.AssistantID,
				"lead_id":       call.LeadID,
				"version":       call.Version,
				"updated_at":    call.UpdatedAt,
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			observer.IncCallUpdateConflict(ownerID)
			return fmt.Errorf("%w: call %s version %d was modified concurrently", apperrors.ErrConflict, call.ID, expectedVersion)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateCall Commit", operation)
	observer.ObserveDbOperationDuration("update", "call", ownerID, time.Since(startTime), commitErr)

	if commitErr != nil {
		if apperrors.IsConflictError(commitErr) {
			logger.FromContext(ctx).Warn("Optimistic concurrency conflict updating call",
				zap.String("call_id", call.ID), zap.Int("expected_version", expectedVersion))
		} else {
			logger.FromContext(ctx).Error("Failed to update call after retries",
				zap.String("call_id", call.ID), zap.Error(commitErr))
		}
		return commitErr
	}

	return nil
}
