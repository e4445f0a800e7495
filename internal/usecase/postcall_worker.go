package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/chatproassist/voice-events-processor/internal/apperrors"
	"github.com/chatproassist/voice-events-processor/internal/config"
	"github.com/chatproassist/voice-events-processor/internal/model"
	"github.com/chatproassist/voice-events-processor/internal/observer"
	"github.com/chatproassist/voice-events-processor/internal/storage"
	"github.com/chatproassist/voice-events-processor/internal/summarizer"
	"github.com/chatproassist/voice-events-processor/pkg/logger"
)

// PostCallTaskData holds the necessary data for a post-call task.
type PostCallTaskData struct {
	Ctx  context.Context // Context derived for the task, NOT the original request context
	Call model.Call
}

// IPostCallWorker defines the interface for the post-call worker pool.
type IPostCallWorker interface {
	SubmitTask(taskData PostCallTaskData) error
	Stop()
}

// PostCallWorker manages the worker pool that summarizes finished calls and
// links them to leads.
type PostCallWorker struct {
	pool       *ants.PoolWithFunc
	callRepo   storage.CallRepo
	leadRepo   storage.LeadRepo
	summarizer summarizer.Summarizer
	cfg        config.PostCallWorkerPoolConfig
	baseLogger *zap.Logger
}

// Ensure PostCallWorker implements IPostCallWorker
var _ IPostCallWorker = (*PostCallWorker)(nil)

// NewPostCallWorker creates and initializes a new post-call worker pool.
func NewPostCallWorker(
	cfg config.PostCallWorkerPoolConfig,
	callRepo storage.CallRepo,
	leadRepo storage.LeadRepo,
	s summarizer.Summarizer,
	baseLogger *zap.Logger,
) (*PostCallWorker, error) {
	worker := &PostCallWorker{
		callRepo:   callRepo,
		leadRepo:   leadRepo,
		summarizer: s,
		cfg:        cfg,
		baseLogger: baseLogger.Named("postcall_worker"),
	}

	pool, err := ants.NewPoolWithFunc(cfg.PoolSize, func(i interface{}) {
		taskData, ok := i.(PostCallTaskData)
		if !ok {
			worker.baseLogger.Error("Invalid task data type received", zap.Any("data", i))
			return
		}
		worker.processPostCallTask(taskData)
	},
		ants.WithExpiryDuration(cfg.ExpiryTime),
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(cfg.QueueSize),
		ants.WithPanicHandler(func(err interface{}) {
			worker.baseLogger.Error("Panic recovered in post-call worker", zap.Any("panic_error", err), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create post-call worker pool: %w", err)
	}
	worker.pool = pool
	worker.baseLogger.Info("Post-call worker pool initialized",
		zap.Int("pool_size", cfg.PoolSize),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Duration("expiry_time", cfg.ExpiryTime),
		zap.Duration("max_block_time", cfg.MaxBlock),
	)
	return worker, nil
}

// SubmitTask submits a new post-call task to the worker pool.
func (w *PostCallWorker) SubmitTask(taskData PostCallTaskData) error {
	start := time.Now()
	observer.IncPostCallTasksSubmitted(taskData.Call.OwnerID)
	observer.SetPostCallQueueLength(w.pool.Waiting())

	err := w.pool.Invoke(taskData)

	duration := time.Since(start)

	if err != nil {
		w.baseLogger.Warn("Failed to submit post-call task to pool",
			zap.String("call_id", taskData.Call.ID),
			zap.String("owner_id", taskData.Call.OwnerID),
			zap.Duration("submit_duration", duration),
			zap.Error(err),
		)
		observer.IncPostCallTasksProcessed(taskData.Call.OwnerID, "submit_error")
		if errors.Is(err, ants.ErrPoolOverload) {
			return fmt.Errorf("post-call pool overload: %w", err)
		}
		return fmt.Errorf("failed to invoke post-call task: %w", err)
	}

	w.baseLogger.Debug("Successfully submitted post-call task",
		zap.String("call_id", taskData.Call.ID),
		zap.Duration("submit_duration", duration),
	)
	return nil
}

// processPostCallTask contains the actual logic executed by a worker
// goroutine: summarize the transcript, persist summary and sentiment, then
// resolve the lead association. Every step is best-effort; the call's
// finalized status, duration, and cost are never touched here.
func (w *PostCallWorker) processPostCallTask(taskData PostCallTaskData) {
	log := logger.FromContextOr(taskData.Ctx, w.baseLogger).With(
		zap.String("task_call_id", taskData.Call.ID),
		zap.String("task_owner_id", taskData.Call.OwnerID),
	)

	start := time.Now()
	status := "success"
	ownerID := taskData.Call.OwnerID

	log.Debug("Processing post-call task")

	if taskData.Call.Transcript == "" {
		log.Debug("Skipping post-call task: empty transcript")
		observer.IncPostCallTasksProcessed(ownerID, "skipped_empty_transcript")
		return
	}

	// 1. Summarize the transcript.
	summarizeStart := time.Now()
	analysis, err := w.summarizer.Summarize(taskData.Ctx, taskData.Call.Transcript)
	observer.ObserveSummarizationDuration(ownerID, time.Since(summarizeStart))
	if err != nil {
		log.Warn("Summarization failed, leaving call without summary", zap.Error(err))
		observer.IncSummarizationRequest(ownerID, "failure")
		observer.IncPostCallTasksProcessed(ownerID, "failure_summarization")
		return
	}
	observer.IncSummarizationRequest(ownerID, "success")

	sentiment := model.SentimentOrNeutral(analysis)

	// 2. Persist summary and sentiment onto the call row.
	call, err := updateCallWithRetry(taskData.Ctx, w.callRepo, taskData.Call.ProviderCallID, func(c *model.Call) {
		c.AISummary = analysis
		c.Sentiment = sentiment
	})
	if err != nil {
		log.Error("Failed to persist summary on call", zap.Error(err))
		observer.IncPostCallTasksProcessed(ownerID, "failure_summary_save")
		return
	}

	log.Info("Call summary persisted", zap.String("sentiment", sentiment))

	// 3. Resolve the lead association by phone number.
	if call.PhoneNumber == "" || call.PhoneNumber == unknownCaller {
		log.Debug("Skipping lead linking: no usable phone number")
		observer.IncPostCallTasksProcessed(ownerID, "skipped_no_phone")
		return
	}

	leadID, err := w.resolveLead(taskData.Ctx, call)
	if err != nil {
		log.Error("Failed to resolve lead for call", zap.Error(err))
		observer.IncPostCallTasksProcessed(ownerID, "failure_lead_resolve")
		return
	}

	if _, err := updateCallWithRetry(taskData.Ctx, w.callRepo, call.ProviderCallID, func(c *model.Call) {
		c.LeadID = &leadID
	}); err != nil {
		log.Error("Failed to link lead to call", zap.String("lead_id", leadID), zap.Error(err))
		status = "failure_lead_link"
	} else {
		log.Info("Lead linked to call", zap.String("lead_id", leadID))
	}

	duration := time.Since(start)
	observer.ObservePostCallProcessingDuration(ownerID, duration)
	observer.IncPostCallTasksProcessed(ownerID, status)

	log.Debug("Finished processing post-call task", zap.Duration("duration", duration), zap.String("final_status", status))
}

// resolveLead finds the lead for the call's phone number, creating one if
// absent. The unique (owner_id, phone) index resolves the creation race: on
// a duplicate insert the winner's row is re-read.
func (w *PostCallWorker) resolveLead(ctx context.Context, call *model.Call) (string, error) {
	existing, err := w.leadRepo.FindByPhone(ctx, call.PhoneNumber)
	if err == nil {
		return existing.ID, nil
	}
	if !apperrors.IsNotFoundError(err) {
		return "", err
	}

	name := call.CallerName
	if name == "" {
		name = unknownCaller
	}
	lead := model.Lead{
		ID:      uuid.NewString(),
		Name:    name,
		Phone:   call.PhoneNumber,
		Source:  model.LeadSourcePhone,
		Status:  model.LeadStatusContacted,
		OwnerID: call.OwnerID,
	}

	err = w.leadRepo.Create(ctx, lead)
	if err == nil {
		return lead.ID, nil
	}
	if apperrors.IsDuplicateError(err) {
		winner, findErr := w.leadRepo.FindByPhone(ctx, call.PhoneNumber)
		if findErr != nil {
			return "", findErr
		}
		return winner.ID, nil
	}
	return "", err
}

// Stop gracefully shuts down the worker pool.
func (w *PostCallWorker) Stop() {
	if w.pool != nil {
		w.baseLogger.Info("Releasing post-call worker pool")
		start := time.Now()
		w.pool.Release()
		w.baseLogger.Info("Post-call worker pool released", zap.Duration("duration", time.Since(start)))
	}
}
