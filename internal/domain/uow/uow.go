package uow

import (
	"context"

	"leaseprotect/internal/domain/activity"
	"leaseprotect/internal/domain/actor"
	"leaseprotect/internal/domain/document"
	"leaseprotect/internal/domain/policy"
)

// Repos are bound to one transaction.
type Repos struct {
	Policies       policy.Repository
	Investigations policy.InvestigationRepository
	Contracts      policy.ContractRepository
	Actors         actor.Repository
	Documents      document.Repository
	Activity       activity.Repository
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// lock the policy row first, then pass it in; every status change and
	// verification decision goes through here
	WithinPolicyTx(ctx context.Context, policyPK uint64, fn func(r Repos, p *policy.Policy) error) error
}
