package uowmock

import (
	"context"
	"errors"

	"leaseprotect/internal/domain/policy"
	"leaseprotect/internal/domain/uow"
)

// Ensure compile-time compliance
var _ uow.UnitOfWork = (*UoW)(nil)

var errUnimplemented = errors.New("uowmock: method not implemented")

// UoW is a function-backed mock that satisfies uow.UnitOfWork.
// Fill in the function fields you need in a test; unfilled ones return errUnimplemented.
type UoW struct {
	WithinTxFn       func(ctx context.Context, fn func(r uow.Repos) error) error
	WithinPolicyTxFn func(ctx context.Context, policyPK uint64, fn func(r uow.Repos, p *policy.Policy) error) error
}

// Passthrough runs callbacks against repos directly; WithinPolicyTx loads
// the policy through repos.Policies.GetByIDForUpdate.
func Passthrough(repos uow.Repos) *UoW {
	return &UoW{
		WithinTxFn: func(_ context.Context, fn func(uow.Repos) error) error { return fn(repos) },
		WithinPolicyTxFn: func(ctx context.Context, policyPK uint64, fn func(uow.Repos, *policy.Policy) error) error {
			p, err := repos.Policies.GetByIDForUpdate(ctx, policyPK)
			if err != nil {
				return err
			}
			return fn(repos, p)
		},
	}
}

// Convenience fluent setters
func New() *UoW { return &UoW{} }
func (m *UoW) WithWithinTx(fn func(context.Context, func(uow.Repos) error) error) *UoW {
	m.WithinTxFn = fn
	return m
}
func (m *UoW) WithWithinPolicyTx(fn func(context.Context, uint64, func(uow.Repos, *policy.Policy) error) error) *UoW {
	m.WithinPolicyTxFn = fn
	return m
}
func (m *UoW) Reset() { *m = UoW{} }

// Methods implementing UnitOfWork
func (m *UoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	if m.WithinTxFn != nil {
		return m.WithinTxFn(ctx, fn)
	}
	return errUnimplemented
}
func (m *UoW) WithinPolicyTx(ctx context.Context, policyPK uint64, fn func(r uow.Repos, p *policy.Policy) error) error {
	if m.WithinPolicyTxFn != nil {
		return m.WithinPolicyTxFn(ctx, policyPK, fn)
	}
	return errUnimplemented
}
