package mock

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/mock"

	"github.com/chatproassist/voice-events-processor/internal/jetstream"
	"github.com/chatproassist/voice-events-processor/internal/model"
)

// ClientMock is a mock implementation of the JetStream Client
type ClientMock struct {
	mock.Mock
}

// Ensure ClientMock implements jetstream.ClientInterface
var _ jetstream.ClientInterface = (*ClientMock)(nil)

// SetupStream mocks the SetupStream method
func (m *ClientMock) SetupStream(ctx context.Context, streamConfig *nats.StreamConfig) error {
	args := m.Called(ctx, streamConfig)
	return args.Error(0)
}

// Publish mocks the Publish method
func (m *ClientMock) Publish(subject string, data []byte, headers map[string]string) error {
	args := m.Called(subject, data, headers)
	return args.Error(0)
}

// NatsConn returns the underlying *nats.Conn (mocked)
func (m *ClientMock) NatsConn() *nats.Conn {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*nats.Conn)
}

// Close mocks the Close method
func (m *ClientMock) Close() {
	m.Called()
}

// NotifierMock mocks the CallNotifier interface
type NotifierMock struct {
	mock.Mock
}

var _ jetstream.CallNotifier = (*NotifierMock)(nil)

// PublishCallUpdated mocks the PublishCallUpdated method
func (m *NotifierMock) PublishCallUpdated(ctx context.Context, notification model.CallUpdatedNotification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}
