package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/chatproassist/voice-events-processor/internal/apperrors"
	"github.com/chatproassist/voice-events-processor/internal/jetstream"
	"github.com/chatproassist/voice-events-processor/internal/model"
	"github.com/chatproassist/voice-events-processor/internal/storage"
	"github.com/chatproassist/voice-events-processor/internal/tenant"
	"github.com/chatproassist/voice-events-processor/internal/validator"
	"github.com/chatproassist/voice-events-processor/pkg/logger"
	"github.com/chatproassist/voice-events-processor/pkg/utils"
)

// unknownCaller is the display name used for leads without a caller name. It
// also guards lead linking against rows that stored it as a phone placeholder.
const unknownCaller = "Unknown"

// maxConflictRetries bounds the read-modify-write loop on version conflicts.
const maxConflictRetries = 5

// CallEventService reduces provider webhook events onto call rows.
type CallEventService struct {
	callRepo  storage.CallRepo
	leadRepo  storage.LeadRepo
	eventRepo storage.CallEventRepo
	notifier  jetstream.CallNotifier
	worker    IPostCallWorker
	now       func() time.Time
}

// NewCallEventService creates the event processing service.
func NewCallEventService(
	callRepo storage.CallRepo,
	leadRepo storage.LeadRepo,
	eventRepo storage.CallEventRepo,
	notifier jetstream.CallNotifier,
	worker IPostCallWorker,
) *CallEventService {
	return &CallEventService{
		callRepo:  callRepo,
		leadRepo:  leadRepo,
		eventRepo: eventRepo,
		notifier:  notifier,
		worker:    worker,
		now:       utils.Now,
	}
}

// SetNowFunc overrides the clock, used by tests.
func (s *CallEventService) SetNowFunc(now func() time.Time) {
	s.now = now
}

// handleRepositoryError maps standard apperrors from the repository layer
// to FatalError or RetryableError for the use case layer.
func handleRepositoryError(ctx context.Context, err error, operation string, providerCallID string) error {
	if err == nil {
		return nil
	}

	log := logger.FromContext(ctx)

	logFields := []zap.Field{
		zap.String("operation", operation),
		zap.Error(err),
	}
	if providerCallID != "" {
		logFields = append(logFields, zap.String("provider_call_id", providerCallID))
	}

	if errors.Is(err, apperrors.ErrNotFound) {
		log.Warn("Repository operation failed: Not found", logFields...)
		return apperrors.NewFatal(err, "%s failed: resource not found", operation)
	}
	if errors.Is(err, apperrors.ErrDuplicate) {
		log.Warn("Repository operation failed: Duplicate resource", logFields...)
		return apperrors.NewFatal(err, "%s failed: duplicate resource", operation)
	}
	if errors.Is(err, apperrors.ErrBadRequest) {
		log.Warn("Repository operation failed: Bad request", logFields...)
		return apperrors.NewFatal(err, "%s failed: bad request data", operation)
	}
	if errors.Is(err, apperrors.ErrUnauthorized) {
		log.Error("Repository operation failed: Unauthorized", logFields...)
		return apperrors.NewFatal(err, "%s failed: unauthorized", operation)
	}
	if errors.Is(err, apperrors.ErrConflict) {
		log.Warn("Repository operation failed: Conflict", logFields...)
		return apperrors.NewFatal(err, "%s failed: resource conflict", operation)
	}
	if errors.Is(err, apperrors.ErrDatabase) {
		log.Error("Repository operation failed: Database error", logFields...)
		return apperrors.NewRetryable(err, "%s failed: database error", operation)
	}
	if errors.Is(err, apperrors.ErrTimeout) {
		log.Warn("Repository operation failed: Timeout", logFields...)
		return apperrors.NewRetryable(err, "%s failed: operation timeout", operation)
	}

	log.Error("Repository operation failed: Unknown error", logFields...)
	return apperrors.NewRetryable(err, "%s failed: unexpected error", operation)
}

// findCallOrDrop resolves the call row for a non-start event. A missing row
// is not an error: the event is dropped and (nil, nil) returned.
func (s *CallEventService) findCallOrDrop(ctx context.Context, eventType model.EventType, providerCallID string) (*model.Call, error) {
	call, err := s.callRepo.FindByProviderCallID(ctx, providerCallID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			logger.FromContext(ctx).Warn("Dropping event: no call record for provider call ID",
				zap.String("event_type", string(eventType)),
				zap.String("provider_call_id", providerCallID))
			return nil, nil
		}
		return nil, handleRepositoryError(ctx, err, "FindCall", providerCallID)
	}
	return call, nil
}

// updateCallWithRetry applies mutate inside a bounded read-modify-write loop.
// On a version conflict the row is re-read and mutate re-applied, so each
// attempt works from the freshest state.
func updateCallWithRetry(ctx context.Context, repo storage.CallRepo, providerCallID string, mutate func(*model.Call)) (*model.Call, error) {
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		call, err := repo.FindByProviderCallID(ctx, providerCallID)
		if err != nil {
			return nil, err
		}

		mutate(call)

		err = repo.Update(ctx, *call)
		if err == nil {
			return call, nil
		}
		if !apperrors.IsConflictError(err) {
			return nil, err
		}
		lastErr = err
		logger.FromContext(ctx).Debug("Retrying call update after version conflict",
			zap.String("provider_call_id", providerCallID),
			zap.Int("attempt", attempt+1))
	}
	return nil, fmt.Errorf("call update exhausted %d attempts: %w", maxConflictRetries, lastErr)
}

// notifyCallUpdated publishes a best-effort notification for a changed call.
func (s *CallEventService) notifyCallUpdated(ctx context.Context, call *model.Call, eventType model.EventType) {
	if s.notifier == nil || call == nil {
		return
	}
	notification := model.CallUpdatedNotification{
		CallID:         call.ID,
		ProviderCallID: call.ProviderCallID,
		OwnerID:        call.OwnerID,
		Status:         call.Status,
		EventType:      string(eventType),
		Timestamp:      s.now().Unix(),
	}
	if err := s.notifier.PublishCallUpdated(ctx, notification); err != nil {
		logger.FromContext(ctx).Warn("Call notification publish failed",
			zap.String("call_id", call.ID), zap.Error(err))
	}
}

// appendAuditRow writes the audit log entry for an event. Audit failures are
// logged but never fail the event: the reduced call state already committed.
func (s *CallEventService) appendAuditRow(ctx context.Context, callID string, eventType model.EventType, data []byte) {
	event := model.CallEvent{
		CallID:    callID,
		EventType: string(eventType),
		Data:      datatypes.JSON(data),
	}
	if err := s.eventRepo.Save(ctx, event); err != nil {
		logger.FromContext(ctx).Error("Failed to append call event audit row",
			zap.String("call_id", callID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

// StartCall creates the call row on the first sighting of a call. A replayed
// call-start for a known provider call ID is dropped.
func (s *CallEventService) StartCall(ctx context.Context, payload model.CallStartPayload) error {
	if err := validator.Validate(payload); err != nil {
		return apperrors.NewFatal(err, "invalid call-start payload")
	}

	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return apperrors.NewFatal(err, "missing owner in context")
	}

	// An absent customer number stays empty; lead linking skips such calls.
	direction := payload.Direction
	if direction == "" {
		direction = model.CallDirectionInbound
	}

	startTime := s.now()
	call := model.Call{
		ID:             uuid.NewString(),
		ProviderCallID: payload.ProviderCallID,
		PhoneNumber:    payload.PhoneNumber,
		CallerName:     payload.CallerName,
		Direction:      direction,
		Status:         model.CallStatusInProgress,
		StartTime:      &startTime,
		AssistantID:    payload.AssistantID,
		OwnerID:        ownerID,
	}

	if err := s.callRepo.Save(ctx, call); err != nil {
		if apperrors.IsDuplicateError(err) {
			logger.FromContext(ctx).Warn("Dropping replayed call-start for existing call",
				zap.String("provider_call_id", payload.ProviderCallID))
			return nil
		}
		return handleRepositoryError(ctx, err, "StartCall", payload.ProviderCallID)
	}

	logger.FromContext(ctx).Info("Call started",
		zap.String("call_id", call.ID),
		zap.String("provider_call_id", call.ProviderCallID),
		zap.String("phone_number", call.PhoneNumber))

	s.notifyCallUpdated(ctx, &call, model.EventCallStart)
	return nil
}

// AppendTranscript appends one speaker turn to the call's transcript in
// arrival order and records the turn in the audit log.
func (s *CallEventService) AppendTranscript(ctx context.Context, payload model.TranscriptEventPayload) error {
	if err := validator.Validate(payload); err != nil {
		return apperrors.NewFatal(err, "invalid transcript payload")
	}

	existing, err := s.findCallOrDrop(ctx, model.EventTranscript, payload.ProviderCallID)
	if err != nil || existing == nil {
		return err
	}

	turn := fmt.Sprintf("%s: %s", payload.Role, payload.Text)
	call, err := updateCallWithRetry(ctx, s.callRepo, payload.ProviderCallID, func(c *model.Call) {
		if c.Transcript == "" {
			c.Transcript = turn
		} else {
			c.Transcript = c.Transcript + "\n" + turn
		}
	})
	if err != nil {
		return handleRepositoryError(ctx, err, "AppendTranscript", payload.ProviderCallID)
	}

	s.appendAuditRow(ctx, call.ID, model.EventTranscript, utils.MustMarshalJSON(payload))
	s.notifyCallUpdated(ctx, call, model.EventTranscript)
	return nil
}

// UpdateStatus normalizes the provider status string and applies it to the
// call row. Unrecognized provider statuses map to queued.
func (s *CallEventService) UpdateStatus(ctx context.Context, payload model.StatusUpdatePayload) error {
	if err := validator.Validate(payload); err != nil {
		return apperrors.NewFatal(err, "invalid status-update payload")
	}

	existing, err := s.findCallOrDrop(ctx, model.EventStatusUpdate, payload.ProviderCallID)
	if err != nil || existing == nil {
		return err
	}

	mapped := model.MapProviderStatus(payload.Status)
	call, err := updateCallWithRetry(ctx, s.callRepo, payload.ProviderCallID, func(c *model.Call) {
		c.Status = mapped
	})
	if err != nil {
		return handleRepositoryError(ctx, err, "UpdateStatus", payload.ProviderCallID)
	}

	logger.FromContext(ctx).Info("Call status updated",
		zap.String("call_id", call.ID),
		zap.String("provider_status", payload.Status),
		zap.String("status", mapped))

	s.notifyCallUpdated(ctx, call, model.EventStatusUpdate)
	return nil
}

// EndCall finalizes the call: terminal status, end time, recomputed duration,
// recording URL, and cost. Summarization and lead linking run afterwards on
// the worker pool and can never roll back this finalization.
func (s *CallEventService) EndCall(ctx context.Context, payload model.CallEndPayload) error {
	if err := validator.Validate(payload); err != nil {
		return apperrors.NewFatal(err, "invalid call-end payload")
	}

	existing, err := s.findCallOrDrop(ctx, model.EventCallEnd, payload.ProviderCallID)
	if err != nil || existing == nil {
		return err
	}

	endTime := s.now()
	call, err := updateCallWithRetry(ctx, s.callRepo, payload.ProviderCallID, func(c *model.Call) {
		c.Status = model.CallStatusCompleted
		c.EndTime = &endTime
		// Duration comes from our own start time, never from the provider.
		if c.StartTime != nil {
			c.Duration = utils.DurationSeconds(*c.StartTime, endTime)
		} else {
			c.Duration = 0
		}
		if payload.RecordingURL != "" {
			c.RecordingURL = payload.RecordingURL
		}
		if payload.Cost > 0 {
			c.Cost = payload.Cost
		}
	})
	if err != nil {
		return handleRepositoryError(ctx, err, "EndCall", payload.ProviderCallID)
	}

	s.appendAuditRow(ctx, call.ID, model.EventCallEnd, utils.MustMarshalJSON(payload))

	logger.FromContext(ctx).Info("Call finalized",
		zap.String("call_id", call.ID),
		zap.String("provider_call_id", call.ProviderCallID),
		zap.Int("duration", call.Duration),
		zap.Float64("cost", call.Cost))

	s.notifyCallUpdated(ctx, call, model.EventCallEnd)

	// Summarization and lead linking are best-effort: a submission failure
	// leaves the finalized row untouched.
	if call.Transcript != "" && s.worker != nil {
		taskCtx := tenant.WithOwnerID(context.WithoutCancel(ctx), call.OwnerID)
		if submitErr := s.worker.SubmitTask(PostCallTaskData{Ctx: taskCtx, Call: *call}); submitErr != nil {
			logger.FromContext(ctx).Error("Failed to submit post-call task",
				zap.String("call_id", call.ID), zap.Error(submitErr))
		}
	}

	return nil
}

// RecordFunctionCall appends an audit row for a function-call event. The call
// row itself is not mutated.
func (s *CallEventService) RecordFunctionCall(ctx context.Context, payload model.FunctionCallPayload) error {
	if err := validator.Validate(payload); err != nil {
		return apperrors.NewFatal(err, "invalid function-call payload")
	}

	existing, err := s.findCallOrDrop(ctx, model.EventFunctionCall, payload.ProviderCallID)
	if err != nil || existing == nil {
		return err
	}

	s.appendAuditRow(ctx, existing.ID, model.EventFunctionCall, utils.MustMarshalJSON(payload))
	return nil
}
