package storage

import (
	"context"

	"github.com/chatproassist/voice-events-processor/internal/model"
)

// CallRepo defines call storage operations
type CallRepo interface {
	Save(ctx context.Context, call model.Call) error
	Update(ctx context.Context, call model.Call) error
	FindByProviderCallID(ctx context.Context, providerCallID string) (*model.Call, error)
	Close(ctx context.Context) error
}

// LeadRepo defines lead storage operations
type LeadRepo interface {
	FindByPhone(ctx context.Context, phone string) (*model.Lead, error)
	Create(ctx context.Context, lead model.Lead) error
	Close(ctx context.Context) error
}

// CallEventRepo defines call event audit-log storage operations
type CallEventRepo interface {
	Save(ctx context.Context, event model.CallEvent) error
	Close(ctx context.Context) error
}
