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

// FindLeadByPhone looks up a lead by phone number within the owner's scope.
// Returns apperrors.ErrNotFound when no lead exists for the number.
func (r *PostgresRepo) FindLeadByPhone(ctx context.Context, phone string) (*model.Lead, error) {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get owner ID: %w", apperrors.ErrUnauthorized, err)
	}

	var lead model.Lead
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("phone = ? AND owner_id = ?", phone, ownerID).
			First(&lead)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: lead with phone %s: %w", apperrors.ErrNotFound, phone, result.Error)
			}
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindLeadByPhone", operation)
	observer.ObserveDbOperationDuration("find", "lead", ownerID, time.Since(startTime), readErr)

	if readErr != nil {
		if !apperrors.IsNotFoundError(readErr) {
			logger.FromContext(ctx).Error("Failed to find lead after retries",
				zap.String("phone", phone), zap.Error(readErr))
		}
		return nil, readErr
	}

	return &lead, nil
}

// CreateLead inserts a new lead. The unique (owner_id, phone) index makes the
// find-then-create race safe: the loser gets apperrors.ErrDuplicate and can
// re-read the winner's row.
func (r *PostgresRepo) CreateLead(ctx context.Context, lead model.Lead) error {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get owner ID: %w", apperrors.ErrUnauthorized, err)
	}

	if ownerID != lead.OwnerID {
		return fmt.Errorf("%w: lead OwnerID %s does not match owner %s", apperrors.ErrBadRequest, lead.OwnerID, ownerID)
	}

	lead.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).Create(&lead)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "CreateLead Commit", operation)
	observer.ObserveDbOperationDuration("insert", "lead", ownerID, time.Since(startTime), commitErr)

	if commitErr != nil {
		if apperrors.IsDuplicateError(commitErr) {
			logger.FromContext(ctx).Debug("Lead already exists for phone",
				zap.String("phone", lead.Phone))
		} else {
			logger.FromContext(ctx).Error("Failed to create lead after retries",
				zap.String("phone", lead.Phone), zap.Error(commitErr))
		}
		return commitErr
	}

	observer.IncLeadsCreated(ownerID)
	return nil
}
