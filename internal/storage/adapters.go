package storage

import (
	"context"

	"github.com/chatproassist/voice-events-processor/internal/model"
)

// CallRepoAdapter adapts the PostgresRepo to the CallRepo interface
type CallRepoAdapter struct {
	postgres *PostgresRepo
}

// NewCallRepoAdapter creates a new call repository adapter
func NewCallRepoAdapter(postgres *PostgresRepo) CallRepo {
	return &CallRepoAdapter{postgres: postgres}
}

// Save inserts a new call
func (a *CallRepoAdapter) Save(ctx context.Context, call model.Call) error {
	return a.postgres.SaveCall(ctx, call)
}

// Update persists a modified call using optimistic concurrency
func (a *CallRepoAdapter) Update(ctx context.Context, call model.Call) error {
	return a.postgres.UpdateCall(ctx, call)
}

// FindByProviderCallID finds a call by the provider-assigned identifier
func (a *CallRepoAdapter) FindByProviderCallID(ctx context.Context, providerCallID string) (*model.Call, error) {
	return a.postgres.FindCallByProviderID(ctx, providerCallID)
}

func (a *CallRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// LeadRepoAdapter adapts the PostgresRepo to the LeadRepo interface
type LeadRepoAdapter struct {
	postgres *PostgresRepo
}

// NewLeadRepoAdapter creates a new lead repository adapter
func NewLeadRepoAdapter(postgres *PostgresRepo) LeadRepo {
	return &LeadRepoAdapter{postgres: postgres}
}

// FindByPhone finds a lead by phone number
func (a *LeadRepoAdapter) FindByPhone(ctx context.Context, phone string) (*model.Lead, error) {
	return a.postgres.FindLeadByPhone(ctx, phone)
}

// Create inserts a new lead
func (a *LeadRepoAdapter) Create(ctx context.Context, lead model.Lead) error {
	return a.postgres.CreateLead(ctx, lead)
}

func (a *LeadRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// CallEventRepoAdapter adapts the PostgresRepo to the CallEventRepo interface
type CallEventRepoAdapter struct {
	postgres *PostgresRepo
}

// NewCallEventRepoAdapter creates a new call event repository adapter
func NewCallEventRepoAdapter(postgres *PostgresRepo) CallEventRepo {
	return &CallEventRepoAdapter{postgres: postgres}
}

// Save appends an audit row
func (a *CallEventRepoAdapter) Save(ctx context.Context, event model.CallEvent) error {
	return a.postgres.SaveCallEvent(ctx, event)
}

func (a *CallEventRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// Ensure adapters implement the interfaces
var _ CallRepo = (*CallRepoAdapter)(nil)
var _ LeadRepo = (*LeadRepoAdapter)(nil)
var _ CallEventRepo = (*CallEventRepoAdapter)(nil)
