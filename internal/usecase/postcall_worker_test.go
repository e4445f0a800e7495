package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"github.com/chatproassist/voice-events-processor/internal/apperrors"
	"github.com/chatproassist/voice-events-processor/internal/model"
	storagemock "github.com/chatproassist/voice-events-processor/internal/storage/mock"
	summarizermock "github.com/chatproassist/voice-events-processor/internal/summarizer/mock"
	"github.com/chatproassist/voice-events-processor/pkg/logger"
)

// newTestPostCallWorker builds a worker without a pool; tests invoke
// processPostCallTask directly.
func newTestPostCallWorker(t *testing.T, callRepo *storagemock.CallRepoMock, leadRepo *storagemock.LeadRepoMock, s *summarizermock.SummarizerMock) *PostCallWorker {
	return &PostCallWorker{
		callRepo:   callRepo,
		leadRepo:   leadRepo,
		summarizer: s,
		baseLogger: zaptest.NewLogger(t).Named("postcall_worker"),
	}
}

func postCallTask(t *testing.T, call model.Call) PostCallTaskData {
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
	return PostCallTaskData{Ctx: ctx, Call: call}
}

func TestProcessPostCallTask_SummarizesAndCreatesLead(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)
	leadRepo := new(storagemock.LeadRepoMock)
	summarizer := new(summarizermock.SummarizerMock)
	worker := newTestPostCallWorker(t, callRepo, leadRepo, summarizer)

	call := model.Call{
		ID:             "call-uuid-1",
		ProviderCallID: "vapi-call-001",
		PhoneNumber:    "+15551230000",
		CallerName:     "Jane Doe",
		Transcript:     "assistant: Hello\nuser: Hi there",
		OwnerID:        "owner-1",
	}

	analysis := "Caller asked about pricing.\nSentiment: positive"
	summarizer.On("Summarize", mock.Anything, call.Transcript).Return(analysis, nil)

	callRepo.On("FindByProviderCallID", mock.Anything, "vapi-call-001").Return(&call, nil)
	callRepo.On("Update", mock.Anything, mock.MatchedBy(func(c model.Call) bool {
		return c.AISummary == analysis && c.Sentiment == "positive"
	})).Return(nil).Once()

	leadRepo.On("FindByPhone", mock.Anything, "+15551230000").Return(nil, apperrors.ErrNotFound)
	var createdLeadID string
	leadRepo.On("Create", mock.Anything, mock.MatchedBy(func(l model.Lead) bool {
		createdLeadID = l.ID
		return l.Name == "Jane Doe" &&
			l.Phone == "+15551230000" &&
			l.Source == model.LeadSourcePhone &&
			l.Status == model.LeadStatusContacted &&
			l.OwnerID == "owner-1"
	})).Return(nil)

	callRepo.On("Update", mock.Anything, mock.MatchedBy(func(c model.Call) bool {
		return c.LeadID != nil && *c.LeadID == createdLeadID
	})).Return(nil).Once()

	worker.processPostCallTask(postCallTask(t, call))

	callRepo.AssertExpectations(t)
	leadRepo.AssertExpectations(t)
	summarizer.AssertExpectations(t)
}

func TestProcessPostCallTask_SummarizationFailureLeavesCallUntouched(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)
	leadRepo := new(storagemock.LeadRepoMock)
	summarizer := new(summarizermock.SummarizerMock)
	worker := newTestPostCallWorker(t, callRepo, leadRepo, summarizer)

	call := model.Call{
		ID:             "call-uuid-1",
		ProviderCallID: "vapi-call-001",
		PhoneNumber:    "+15551230000",
		Transcript:     "user: hello",
		OwnerID:        "owner-1",
	}

	summarizer.On("Summarize", mock.Anything, call.Transcript).
		Return("", apperrors.ErrSummarization)

	worker.processPostCallTask(postCallTask(t, call))

	callRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	leadRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProcessPostCallTask_ExistingLeadReused(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)
	leadRepo := new(storagemock.LeadRepoMock)
	summarizer := new(summarizermock.SummarizerMock)
	worker := newTestPostCallWorker(t, callRepo, leadRepo, summarizer)

	call := model.Call{
		ID:             "call-uuid-1",
		ProviderCallID: "vapi-call-001",
		PhoneNumber:    "+15551230000",
		Transcript:     "user: hello again",
		OwnerID:        "owner-1",
	}

	summarizer.On("Summarize", mock.Anything, call.Transcript).
		Return("Returning caller. Sentiment: neutral", nil)

	callRepo.On("FindByProviderCallID", mock.Anything, "vapi-call-001").Return(&call, nil)
	callRepo.On("Update", mock.Anything, mock.Anything).Return(nil)

	leadRepo.On("FindByPhone", mock.Anything, "+15551230000").
		Return(&model.Lead{ID: "lead-existing", Phone: "+15551230000", OwnerID: "owner-1"}, nil)

	worker.processPostCallTask(postCallTask(t, call))

	leadRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	callRepo.AssertCalled(t, "Update", mock.Anything, mock.MatchedBy(func(c model.Call) bool {
		return c.LeadID != nil && *c.LeadID == "lead-existing"
	}))
}

func TestProcessPostCallTask_DuplicateLeadRaceReReadsWinner(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)
	leadRepo := new(storagemock.LeadRepoMock)
	summarizer := new(summarizermock.SummarizerMock)
	worker := newTestPostCallWorker(t, callRepo, leadRepo, summarizer)

	call := model.Call{
		ID:             "call-uuid-1",
		ProviderCallID: "vapi-call-001",
		PhoneNumber:    "+15551230000",
		Transcript:     "user: hello",
		OwnerID:        "owner-1",
	}

	summarizer.On("Summarize", mock.Anything, call.Transcript).
		Return("Short call. Sentiment: neutral", nil)

	callRepo.On("FindByProviderCallID", mock.Anything, "vapi-call-001").Return(&call, nil)
	callRepo.On("Update", mock.Anything, mock.Anything).Return(nil)

	leadRepo.On("FindByPhone", mock.Anything, "+15551230000").Return(nil, apperrors.ErrNotFound).Once()
	leadRepo.On("Create", mock.Anything, mock.Anything).Return(apperrors.ErrDuplicate)
	leadRepo.On("FindByPhone", mock.Anything, "+15551230000").
		Return(&model.Lead{ID: "lead-winner", Phone: "+15551230000"}, nil).Once()

	worker.processPostCallTask(postCallTask(t, call))

	leadRepo.AssertExpectations(t)
	callRepo.AssertCalled(t, "Update", mock.Anything, mock.MatchedBy(func(c model.Call) bool {
		return c.LeadID != nil && *c.LeadID == "lead-winner"
	}))
}

func TestProcessPostCallTask_EmptyTranscriptSkipped(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)
	leadRepo := new(storagemock.LeadRepoMock)
	summarizer := new(summarizermock.SummarizerMock)
	worker := newTestPostCallWorker(t, callRepo, leadRepo, summarizer)

	call := model.Call{ID: "call-uuid-1", ProviderCallID: "vapi-call-001", OwnerID: "owner-1"}

	worker.processPostCallTask(postCallTask(t, call))

	summarizer.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything)
	callRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestProcessPostCallTask_UnknownPhoneSkipsLeadLinking(t *testing.T) {
	callRepo := new(storagemock.CallRepoMock)
	leadRepo := new(storagemock.LeadRepoMock)
	summarizer := new(summarizermock.SummarizerMock)
	worker := newTestPostCallWorker(t, callRepo, leadRepo, summarizer)

	call := model.Call{
		ID:             "call-uuid-1",
		ProviderCallID: "vapi-call-001",
		PhoneNumber:    "Unknown",
		Transcript:     "user: hello",
		OwnerID:        "owner-1",
	}

	summarizer.On("Summarize", mock.Anything, call.Transcript).
		Return("Anonymous inquiry. Sentiment: neutral", nil)

	callRepo.On("FindByProviderCallID", mock.Anything, "vapi-call-001").Return(&call, nil)
	callRepo.On("Update", mock.Anything, mock.MatchedBy(func(c model.Call) bool {
		return c.Sentiment == "neutral"
	})).Return(nil).Once()

	worker.processPostCallTask(postCallTask(t, call))

	leadRepo.AssertNotCalled(t, "FindByPhone", mock.Anything, mock.Anything)
	callRepo.AssertExpectations(t)
}
