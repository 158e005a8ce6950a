package policymock

import (
	"context"

	domain "leaseprotect/internal/domain/policy"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies policy.Repository.
// Unset lookups return context.Canceled; unset writes succeed.
type Repo struct {
	CreateFn           func(ctx context.Context, p *domain.Policy) error
	GetByIDFn          func(ctx context.Context, id uint64) (*domain.Policy, error)
	GetByPolicyIDFn    func(ctx context.Context, policyID string) (*domain.Policy, error)
	GetByIDForUpdateFn func(ctx context.Context, id uint64) (*domain.Policy, error)
	CompareAndSwapFn   func(ctx context.Context, p *domain.Policy, expect domain.Status) error
	SaveFn             func(ctx context.Context, p *domain.Policy) error
}

func (m *Repo) Create(ctx context.Context, p *domain.Policy) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, p)
	}
	return nil
}
func (m *Repo) GetByID(ctx context.Context, id uint64) (*domain.Policy, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, context.Canceled
}
func (m *Repo) GetByPolicyID(ctx context.Context, policyID string) (*domain.Policy, error) {
	if m.GetByPolicyIDFn != nil {
		return m.GetByPolicyIDFn(ctx, policyID)
	}
	return nil, context.Canceled
}
func (m *Repo) GetByIDForUpdate(ctx context.Context, id uint64) (*domain.Policy, error) {
	if m.GetByIDForUpdateFn != nil {
		return m.GetByIDForUpdateFn(ctx, id)
	}
	return nil, context.Canceled
}

// CompareAndSwap defaults to bumping the version like the real store.
func (m *Repo) CompareAndSwap(ctx context.Context, p *domain.Policy, expect domain.Status) error {
	if m.CompareAndSwapFn != nil {
		return m.CompareAndSwapFn(ctx, p, expect)
	}
	p.Version++
	return nil
}
func (m *Repo) Save(ctx context.Context, p *domain.Policy) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, p)
	}
	return nil
}
