package policy

import "context"

type Repository interface {
	Create(ctx context.Context, p *Policy) error
	GetByID(ctx context.Context, id uint64) (*Policy, error)
	GetByPolicyID(ctx context.Context, policyID string) (*Policy, error)
	// GetByIDForUpdate locks the row for the rest of the transaction.
	GetByIDForUpdate(ctx context.Context, id uint64) (*Policy, error)
	// CompareAndSwap persists p only if the stored row still has
	// (expectStatus, p.Version); it bumps p.Version on success and returns
	// ErrStaleState when nothing matched.
	CompareAndSwap(ctx context.Context, p *Policy, expectStatus Status) error
	Save(ctx context.Context, p *Policy) error
}

type InvestigationRepository interface {
	GetByPolicy(ctx context.Context, policyPK uint64) (*Investigation, error)
	Save(ctx context.Context, inv *Investigation) error
}

type ContractRepository interface {
	Create(ctx context.Context, c *Contract) error
	GetCurrent(ctx context.Context, policyPK uint64) (*Contract, error)
	GetByContractID(ctx context.Context, contractID string) (*Contract, error)
	// ClearCurrent flips is_current off for every contract of the policy and
	// returns the highest version seen.
	ClearCurrent(ctx context.Context, policyPK uint64) (int, error)
	Save(ctx context.Context, c *Contract) error
}
