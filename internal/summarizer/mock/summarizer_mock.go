package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/chatproassist/voice-events-processor/internal/summarizer"
)

// SummarizerMock mocks the Summarizer interface
type SummarizerMock struct {
	mock.Mock
}

var _ summarizer.Summarizer = (*SummarizerMock)(nil)

// Summarize mocks the Summarize method
func (m *SummarizerMock) Summarize(ctx context.Context, transcript string) (string, error) {
	args := m.Called(ctx, transcript)
	return args.String(0), args.Error(1)
}
