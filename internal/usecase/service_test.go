package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chatproassist/voice-events-processor/internal/apperrors"
	"github.com/chatproassist/voice-events-processor/internal/jetstream"
	jsmock "github.com/chatproassist/voice-events-processor/internal/jetstream/mock"
	"github.com/chatproassist/voice-events-processor/internal/model"
	storagemock "github.com/chatproassist/voice-events-processor/internal/storage/mock"
	"github.com/chatproassist/voice-events-processor/internal/tenant"
	"github.com/chatproassist/voice-events-processor/pkg/logger"
)

// PostCallWorkerMock captures submitted tasks without running a pool.
type PostCallWorkerMock struct {
	mock.Mock
}

func (m *PostCallWorkerMock) SubmitTask(taskData PostCallTaskData) error {
	args := m.Called(taskData)
	return args.Error(0)
}

func (m *PostCallWorkerMock) Stop() {
	m.Called()
}

func serviceTestContext(t *testing.T, ownerID string) context.Context {
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
	return tenant.WithOwnerID(ctx, ownerID)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestService(callRepo *storagemock.CallRepoMock, leadRepo *storagemock.LeadRepoMock, eventRepo *storagemock.CallEventRepoMock, notifier jetstream.CallNotifier, worker IPostCallWorker) *CallEventService {
	return NewCallEventService(callRepo, leadRepo, eventRepo, notifier, worker)
}

func TestStartCall_CreatesCallRow(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)
	eventRepo := new(storagemock.CallEventRepoMock)
	notifier := new(jsmock.NotifierMock)

	svc := newTestService(callRepo, new(storagemock.LeadRepoMock), eventRepo, notifier, nil)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.SetNowFunc(fixedClock(now))

	callRepo.On("Save", mock.Anything, mock.MatchedBy(func(c model.Call) bool {
		return c.ProviderCallID == "vapi-call-001" &&
			c.PhoneNumber == "+15551230000" &&
			c.CallerName == "Jane Doe" &&
			c.Direction == model.CallDirectionInbound &&
			c.Status == model.CallStatusInProgress &&
			c.StartTime != nil && c.StartTime.Equal(now) &&
			c.OwnerID == "owner-1" &&
			c.ID != ""
	})).Return(nil)
	notifier.On("PublishCallUpdated", mock.Anything, mock.Anything).Return(nil)

	err := svc.StartCall(serviceTestContext(t, "owner-1"), model.CallStartPayload{
		ProviderCallID: "vapi-call-001",
		PhoneNumber:    "+15551230000",
		CallerName:     "Jane Doe",
		Direction:      model.CallDirectionInbound,
	})

	assert.NoError(t, err)
	callRepo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestStartCall_DefaultsPhoneAndDirection(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)

	svc := newTestService(callRepo, new(storagemock.LeadRepoMock), new(storagemock.CallEventRepoMock), nil, nil)

	// A missing customer number stays empty rather than taking a placeholder.
	callRepo.On("Save", mock.Anything, mock.MatchedBy(func(c model.Call) bool {
		return c.PhoneNumber == "" && c.Direction == model.CallDirectionInbound
	})).Return(nil)

	err := svc.StartCall(serviceTestContext(t, "owner-1"), model.CallStartPayload{
		ProviderCallID: "vapi-call-002",
	})

	assert.NoError(t, err)
	callRepo.AssertExpectations(t)
}

func TestStartCall_ReplayedEventDropped(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)
	notifier := new(jsmock.NotifierMock)

	svc := newTestService(callRepo, new(storagemock.LeadRepoMock), new(storagemock.CallEventRepoMock), notifier, nil)

	callRepo.On("Save", mock.Anything, mock.Anything).Return(apperrors.ErrDuplicate)

	err := svc.StartCall(serviceTestContext(t, "owner-1"), model.CallStartPayload{
		ProviderCallID: "vapi-call-001",
	})

	assert.NoError(t, err)
	notifier.AssertNotCalled(t, "PublishCallUpdated", mock.Anything, mock.Anything)
}

func TestStartCall_MissingOwner(t *testing.T) {
	svc := newTestService(new(storagemock.CallRepoMock), new(storagemock.LeadRepoMock), new(storagemock.CallEventRepoMock), nil, nil)

	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
	err := svc.StartCall(ctx, model.CallStartPayload{ProviderCallID: "vapi-call-001"})

	assert.Error(t, err)
	assert.True(t, apperrors.IsFatal(err))
}

func TestAppendTranscript_AppendsTurn(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)
	eventRepo := new(storagemock.CallEventRepoMock)

	svc := newTestService(callRepo, new(storagemock.LeadRepoMock), eventRepo, nil, nil)

	existing := &model.Call{
		ID:             "call-uuid-1",
		ProviderCallID: "vapi-call-001",
		Transcript:     "assistant: Hello",
		OwnerID:        "owner-1",
		Version:        2,
	}
	callRepo.On("FindByProviderCallID", mock.Anything, "vapi-call-001").Return(existing, nil)
	callRepo.On("Update", mock.Anything, mock.MatchedBy(func(c model.Call) bool {
		return c.Transcript == "assistant: Hello\nuser: Hi there"
	})).Return(nil)
	eventRepo.On("Save", mock.Anything, mock.MatchedBy(func(e model.CallEvent) bool {
		return e.CallID == "call-uuid-1" && e.EventType == string(model.EventTranscript)
	})).Return(nil)

	err := svc.AppendTranscript(serviceTestContext(t, "owner-1"), model.TranscriptEventPayload{
		ProviderCallID: "vapi-call-001",
		Role:           "user",
		Text:           "Hi there",
	})

	assert.NoError(t, err)
	callRepo.AssertExpectations(t)
	eventRepo.AssertExpectations(t)
}

func TestAppendTranscript_FirstTurnHasNoLeadingNewline(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)
	eventRepo := new(storagemock.CallEventRepoMock)

	svc := newTestService(callRepo, new(storagemock.LeadRepoMock), eventRepo, nil, nil)

	existing := &model.Call{ID: "call-uuid-1", ProviderCallID: "vapi-call-001", OwnerID: "owner-1"}
	callRepo.On("FindByProviderCallID", mock.Anything, "vapi-call-001").Return(existing, nil)
	callRepo.On("Update", mock.Anything, mock.MatchedBy(func(c model.Call) bool {
		return c.Transcript == "assistant: Hello"
	})).Return(nil)
	eventRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

	err := svc.AppendTranscript(serviceTestContext(t, "owner-1"), model.TranscriptEventPayload{
		ProviderCallID: "vapi-call-001",
		Role:           "assistant",
		Text:           "Hello",
	})

	assert.NoError(t, err)
	callRepo.AssertExpectations(t)
}

func TestAppendTranscript_MissingCallDropped(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)

	svc := newTestService(callRepo, new(storagemock.LeadRepoMock), new(storagemock.CallEventRepoMock), nil, nil)

	callRepo.On("FindByProviderCallID", mock.Anything, "vapi-call-missing").Return(nil, apperrors.ErrNotFound)

	err := svc.AppendTranscript(serviceTestContext(t, "owner-1"), model.TranscriptEventPayload{
		ProviderCallID: "vapi-call-missing",
		Role:           "user",
		Text:           "anyone there?",
	})

	assert.NoError(t, err)
	callRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdateStatus_MapsProviderStatus(t *testing.T) {
	testCases := []struct {
		providerStatus string
		expected       string
	}{
		{"ringing", model.CallStatusRinging},
		{"in-progress", model.CallStatusInProgress},
		{"ended", model.CallStatusCompleted},
		{"forwarding", model.CallStatusQueued},
	}

	for _, tc := range testCases {
		t.Run(tc.providerStatus, func(t *testing.T) {
			callRepo := new(storagemock.CallRepoMock)
			notifier := new(jsmock.NotifierMock)

			svc := newTestService(callRepo, new(storagemock.LeadRepoMock), new(storagemock.CallEventRepoMock), notifier, nil)

			existing := &model.Call{ID: "call-uuid-1", ProviderCallID: "vapi-call-001", OwnerID: "owner-1"}
			callRepo.On("FindByProviderCallID", mock.Anything, "vapi-call-001").Return(existing, nil)
			callRepo.On("Update", mock.Anything, mock.MatchedBy(func(c model.Call) bool {
				return c.Status == tc.expected
			})).Return(nil)
			notifier.On("PublishCallUpdated", mock.Anything, mock.Anything).Return(nil)

			err := svc.UpdateStatus(serviceTestContext(t, "owner-1"), model.StatusUpdatePayload{
				ProviderCallID: "vapi-call-001",
				Status:         tc.providerStatus,
			})

			assert.NoError(t, err)
			callRepo.AssertExpectations(t)
		})
	}
}

func TestUpdateStatus_MissingCallDropped(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)

	svc := newTestService(callRepo, new(storagemock.LeadRepoMock), new(storagemock.CallEventRepoMock), nil, nil)

	callRepo.On("FindByProviderCallID", mock.Anything, "vapi-call-missing").Return(nil, apperrors.ErrNotFound)

	err := svc.UpdateStatus(serviceTestContext(t, "owner-1"), model.StatusUpdatePayload{
		ProviderCallID: "vapi-call-missing",
		Status:         "ringing",
	})

	assert.NoError(t, err)
	callRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdateStatus_RetriesOnVersionConflict(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)
	notifier := new(jsmock.NotifierMock)

	svc := newTestService(callRepo, new(storagemock.LeadRepoMock), new(storagemock.CallEventRepoMock), notifier, nil)

	stale := &model.Call{ID: "call-uuid-1", ProviderCallID: "vapi-call-001", OwnerID: "owner-1", Version: 3}
	fresh := &model.Call{ID: "call-uuid-1", ProviderCallID: "vapi-call-001", OwnerID: "owner-1", Version: 4}

	// drop check + first attempt see the stale row, retry re-reads the winner
	callRepo.On("FindByProviderCallID", mock.Anything, "vapi-call-001").Return(stale, nil).Twice()
	callRepo.On("FindByProviderCallID", mock.Anything, "vapi-call-001").Return(fresh, nil).Once()
	callRepo.On("Update", mock.Anything, mock.Anything).Return(apperrors.ErrConflict).Once()
	callRepo.On("Update", mock.Anything, mock.MatchedBy(func(c model.Call) bool {
		return c.Status == model.CallStatusRinging
	})).Return(nil).Once()
	notifier.On("PublishCallUpdated", mock.Anything, mock.Anything).Return(nil)

	err := svc.UpdateStatus(serviceTestContext(t, "owner-1"), model.StatusUpdatePayload{
		ProviderCallID: "vapi-call-001",
		Status:         "ringing",
	})

	assert.NoError(t, err)
	callRepo.AssertExpectations(t)
}

func TestEndCall_FinalizesCall(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)
	eventRepo := new(storagemock.CallEventRepoMock)
	notifier := new(jsmock.NotifierMock)
	worker := new(PostCallWorkerMock)

	svc := newTestService(callRepo, new(storagemock.LeadRepoMock), eventRepo, notifier, worker)

	startTime := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	endTime := startTime.Add(75 * time.Second)
	svc.SetNowFunc(fixedClock(endTime))

	existing := &model.Call{
		ID:             "call-uuid-1",
		ProviderCallID: "vapi-call-001",
		PhoneNumber:    "+15551230000",
		Status:         model.CallStatusInProgress,
		StartTime:      &startTime,
		Transcript:     "assistant: Hello\nuser: Hi there",
		OwnerID:        "owner-1",
	}
	callRepo.On("FindByProviderCallID", mock.Anything, "vapi-call-001").Return(existing, nil)
	callRepo.On("Update", mock.Anything, mock.MatchedBy(func(c model.Call) bool {
		return c.Status == model.CallStatusCompleted &&
			c.Duration == 75 &&
			c.EndTime != nil && c.EndTime.Equal(endTime) &&
			c.RecordingURL == "https://storage.example.com/rec.mp3" &&
			c.Cost == 0.42
	})).Return(nil)
	eventRepo.On("Save", mock.Anything, mock.MatchedBy(func(e model.CallEvent) bool {
		return e.CallID == "call-uuid-1" && e.EventType == string(model.EventCallEnd)
	})).Return(nil)
	notifier.On("PublishCallUpdated", mock.Anything, mock.MatchedBy(func(n model.CallUpdatedNotification) bool {
		return n.Status == model.CallStatusCompleted && n.CallID == "call-uuid-1"
	})).Return(nil)
	worker.On("SubmitTask", mock.MatchedBy(func(task PostCallTaskData) bool {
		owner, _ := tenant.FromContext(task.Ctx)
		return task.Call.ID == "call-uuid-1" && owner == "owner-1"
	})).Return(nil)

	err := svc.EndCall(serviceTestContext(t, "owner-1"), model.CallEndPayload{
		ProviderCallID: "vapi-call-001",
		EndedReason:    "customer-ended-call",
		RecordingURL:   "https://storage.example.com/rec.mp3",
		Cost:           0.42,
	})

	assert.NoError(t, err)
	callRepo.AssertExpectations(t)
	eventRepo.AssertExpectations(t)
	notifier.AssertExpectations(t)
	worker.AssertExpectations(t)
}

func TestEndCall_ZeroDurationWithoutStartTime(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)
	eventRepo := new(storagemock.CallEventRepoMock)

	svc := newTestService(callRepo, new(storagemock.LeadRepoMock), eventRepo, nil, nil)

	existing := &model.Call{
		ID:             "call-uuid-1",
		ProviderCallID: "vapi-call-001",
		OwnerID:        "owner-1",
	}
	callRepo.On("FindByProviderCallID", mock.Anything, "vapi-call-001").Return(existing, nil)
	callRepo.On("Update", mock.Anything, mock.MatchedBy(func(c model.Call) bool {
		return c.Duration == 0 && c.Status == model.CallStatusCompleted
	})).Return(nil)
	eventRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

	err := svc.EndCall(serviceTestContext(t, "owner-1"), model.CallEndPayload{
		ProviderCallID: "vapi-call-001",
	})

	assert.NoError(t, err)
	callRepo.AssertExpectations(t)
}

func TestEndCall_EmptyTranscriptSkipsWorker(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)
	eventRepo := new(storagemock.CallEventRepoMock)
	worker := new(PostCallWorkerMock)

	svc := newTestService(callRepo, new(storagemock.LeadRepoMock), eventRepo, nil, worker)

	existing := &model.Call{ID: "call-uuid-1", ProviderCallID: "vapi-call-001", OwnerID: "owner-1"}
	callRepo.On("FindByProviderCallID", mock.Anything, "vapi-call-001").Return(existing, nil)
	callRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
	eventRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

	err := svc.EndCall(serviceTestContext(t, "owner-1"), model.CallEndPayload{ProviderCallID: "vapi-call-001"})

	assert.NoError(t, err)
	worker.AssertNotCalled(t, "SubmitTask", mock.Anything)
}

func TestEndCall_SubmitFailureDoesNotFailEvent(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)
	eventRepo := new(storagemock.CallEventRepoMock)
	worker := new(PostCallWorkerMock)

	svc := newTestService(callRepo, new(storagemock.LeadRepoMock), eventRepo, nil, worker)

	existing := &model.Call{
		ID:             "call-uuid-1",
		ProviderCallID: "vapi-call-001",
		Transcript:     "user: hello",
		OwnerID:        "owner-1",
	}
	callRepo.On("FindByProviderCallID", mock.Anything, "vapi-call-001").Return(existing, nil)
	callRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
	eventRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	worker.On("SubmitTask", mock.Anything).Return(fmt.Errorf("post-call pool overload"))

	err := svc.EndCall(serviceTestContext(t, "owner-1"), model.CallEndPayload{ProviderCallID: "vapi-call-001"})

	assert.NoError(t, err)
	worker.AssertExpectations(t)
}

func TestRecordFunctionCall_AppendsAuditRowOnly(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)
	eventRepo := new(storagemock.CallEventRepoMock)

	svc := newTestService(callRepo, new(storagemock.LeadRepoMock), eventRepo, nil, nil)

	existing := &model.Call{ID: "call-uuid-1", ProviderCallID: "vapi-call-001", OwnerID: "owner-1"}
	callRepo.On("FindByProviderCallID", mock.Anything, "vapi-call-001").Return(existing, nil)
	eventRepo.On("Save", mock.Anything, mock.MatchedBy(func(e model.CallEvent) bool {
		return e.CallID == "call-uuid-1" && e.EventType == string(model.EventFunctionCall)
	})).Return(nil)

	err := svc.RecordFunctionCall(serviceTestContext(t, "owner-1"), model.FunctionCallPayload{
		ProviderCallID: "vapi-call-001",
		FunctionCall:   []byte(`{"name":"book_appointment"}`),
	})

	assert.NoError(t, err)
	callRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	eventRepo.AssertExpectations(t)
}

// --- in-memory scenario test ---

// memoryCallRepo is a minimal in-memory CallRepo with version checking,
// used to exercise the full event sequence for one call.
type memoryCallRepo struct {
	mu    sync.Mutex
	calls map[string]*model.Call
}

func newMemoryCallRepo() *memoryCallRepo {
	return &memoryCallRepo{calls: make(map[string]*model.Call)}
}

func (r *memoryCallRepo) Save(ctx context.Context, call model.Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calls[call.ProviderCallID]; ok {
		return apperrors.ErrDuplicate
	}
	stored := call
	r.calls[call.ProviderCallID] = &stored
	return nil
}

func (r *memoryCallRepo) Update(ctx context.Context, call model.Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.calls[call.ProviderCallID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if stored.Version != call.Version {
		return apperrors.ErrConflict
	}
	updated := call
	updated.Version = call.Version + 1
	r.calls[call.ProviderCallID] = &updated
	return nil
}

func (r *memoryCallRepo) FindByProviderCallID(ctx context.Context, providerCallID string) (*model.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.calls[providerCallID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *memoryCallRepo) Close(ctx context.Context) error { return nil }

func TestCallLifecycle_FullEventSequence(t *testing.T) {
	callRepo := newMemoryCallRepo()
	eventRepo := new(storagemock.CallEventRepoMock)
	worker := new(PostCallWorkerMock)
	eventRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	worker.On("SubmitTask", mock.Anything).Return(nil)

	svc := NewCallEventService(callRepo, new(storagemock.LeadRepoMock), eventRepo, nil, worker)

	startTime := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.SetNowFunc(fixedClock(startTime))

	ctx := serviceTestContext(t, "owner-1")

	require.NoError(t, svc.StartCall(ctx, model.CallStartPayload{
		ProviderCallID: "c1",
		PhoneNumber:    "+15551230000",
	}))

	require.NoError(t, svc.AppendTranscript(ctx, model.TranscriptEventPayload{
		ProviderCallID: "c1", Role: "assistant", Text: "Hello",
	}))
	require.NoError(t, svc.AppendTranscript(ctx, model.TranscriptEventPayload{
		ProviderCallID: "c1", Role: "user", Text: "Hi there",
	}))

	svc.SetNowFunc(fixedClock(startTime.Add(90 * time.Second)))
	require.NoError(t, svc.EndCall(ctx, model.CallEndPayload{
		ProviderCallID: "c1",
		RecordingURL:   "http://x/rec.mp3",
		Cost:           0.42,
	}))

	final, err := callRepo.FindByProviderCallID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.CallStatusCompleted, final.Status)
	assert.Equal(t, "assistant: Hello\nuser: Hi there", final.Transcript)
	assert.Equal(t, 90, final.Duration)
	assert.Equal(t, "http://x/rec.mp3", final.RecordingURL)
	assert.Equal(t, 0.42, final.Cost)

	// A redelivered call-end converges to the same state
	require.NoError(t, svc.EndCall(ctx, model.CallEndPayload{
		ProviderCallID: "c1",
		RecordingURL:   "http://x/rec.mp3",
		Cost:           0.42,
	}))
	replayed, err := callRepo.FindByProviderCallID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.CallStatusCompleted, replayed.Status)
	assert.Equal(t, 90, replayed.Duration)
	assert.Equal(t, final.Transcript, replayed.Transcript)
	assert.Equal(t, final.RecordingURL, replayed.RecordingURL)
	assert.Equal(t, final.Cost, replayed.Cost)
	require.NotNil(t, replayed.EndTime)
	assert.True(t, replayed.EndTime.Equal(*final.EndTime))

	worker.AssertCalled(t, "SubmitTask", mock.MatchedBy(func(task PostCallTaskData) bool {
		return task.Call.Transcript == "assistant: Hello\nuser: Hi there"
	}))
}
