package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/chatproassist/voice-events-processor/internal/model"
)

// --- CallRepo Mock ---

// CallRepoMock mocks the CallRepo interface
type CallRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *CallRepoMock) Save(ctx context.Context, call model.Call) error {
	args := m.Called(ctx, call)
	return args.Error(0)
}

// Update mocks the Update method
func (m *CallRepoMock) Update(ctx context.Context, call model.Call) error {
	args := m.Called(ctx, call)
	return args.Error(0)
}

// FindByProviderCallID mocks the FindByProviderCallID method
func (m *CallRepoMock) FindByProviderCallID(ctx context.Context, providerCallID string) (*model.Call, error) {
	args := m.Called(ctx, providerCallID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Call), args.Error(1)
}

// Close mocks the Close method
func (m *CallRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- LeadRepo Mock ---

// LeadRepoMock mocks the LeadRepo interface
type LeadRepoMock struct {
	mock.Mock
}

// FindByPhone mocks the FindByPhone method
func (m *LeadRepoMock) FindByPhone(ctx context.Context, phone string) (*model.Lead, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

// Create mocks the Create method
func (m *LeadRepoMock) Create(ctx context.Context, lead model.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

// Close mocks the Close method
func (m *LeadRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- CallEventRepo Mock ---

// CallEventRepoMock mocks the CallEventRepo interface
type CallEventRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *CallEventRepoMock) Save(ctx context.Context, event model.CallEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// Close mocks the Close method
func (m *CallEventRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
