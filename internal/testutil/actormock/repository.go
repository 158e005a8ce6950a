package actormock

import (
	"context"
	"time"

	domain "leaseprotect/internal/domain/actor"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies actor.Repository.
type Repo struct {
	CreateFn            func(ctx context.Context, a *domain.Actor) error
	GetByIDFn           func(ctx context.Context, id uint64) (*domain.Actor, error)
	GetByActorIDFn      func(ctx context.Context, actorID string) (*domain.Actor, error)
	GetByTokenFn        func(ctx context.Context, token string) (*domain.Actor, error)
	ListByPolicyFn      func(ctx context.Context, policyPK uint64) ([]domain.Actor, error)
	SaveFn              func(ctx context.Context, a *domain.Actor) error
	TouchLastSeenFn     func(ctx context.Context, id uint64, at time.Time) error
	RevokeTokensFn      func(ctx context.Context, policyPK uint64, at time.Time) error
	ReplaceReferencesFn func(ctx context.Context, actorPK uint64, refs []domain.Reference) error
	ListReferencesFn    func(ctx context.Context, actorPK uint64) ([]domain.Reference, error)
}

func (m *Repo) Create(ctx context.Context, a *domain.Actor) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, a)
	}
	return nil
}
func (m *Repo) GetByID(ctx context.Context, id uint64) (*domain.Actor, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, context.Canceled
}
func (m *Repo) GetByActorID(ctx context.Context, actorID string) (*domain.Actor, error) {
	if m.GetByActorIDFn != nil {
		return m.GetByActorIDFn(ctx, actorID)
	}
	return nil, context.Canceled
}
func (m *Repo) GetByToken(ctx context.Context, token string) (*domain.Actor, error) {
	if m.GetByTokenFn != nil {
		return m.GetByTokenFn(ctx, token)
	}
	return nil, context.Canceled
}
func (m *Repo) ListByPolicy(ctx context.Context, policyPK uint64) ([]domain.Actor, error) {
	if m.ListByPolicyFn != nil {
		return m.ListByPolicyFn(ctx, policyPK)
	}
	return nil, nil
}
func (m *Repo) Save(ctx context.Context, a *domain.Actor) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, a)
	}
	return nil
}
func (m *Repo) TouchLastSeen(ctx context.Context, id uint64, at time.Time) error {
	if m.TouchLastSeenFn != nil {
		return m.TouchLastSeenFn(ctx, id, at)
	}
	return nil
}
func (m *Repo) RevokeTokens(ctx context.Context, policyPK uint64, at time.Time) error {
	if m.RevokeTokensFn != nil {
		return m.RevokeTokensFn(ctx, policyPK, at)
	}
	return nil
}
func (m *Repo) ReplaceReferences(ctx context.Context, actorPK uint64, refs []domain.Reference) error {
	if m.ReplaceReferencesFn != nil {
		return m.ReplaceReferencesFn(ctx, actorPK, refs)
	}
	return nil
}
func (m *Repo) ListReferences(ctx context.Context, actorPK uint64) ([]domain.Reference, error) {
	if m.ListReferencesFn != nil {
		return m.ListReferencesFn(ctx, actorPK)
	}
	return nil, nil
}
