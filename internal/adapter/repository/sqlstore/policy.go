package sqlstore

import (
	"context"
	"errors"

	"leaseprotect/internal/domain/policy"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PolicyRepository struct{ db *gorm.DB }

func NewPolicyRepository(db *gorm.DB) *PolicyRepository { return &PolicyRepository{db: db} }

// notFound maps gorm's sentinel onto the domain one and leaves other
// errors untouched.
func notFound(err, domainErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainErr
	}
	return err
}

func (r *PolicyRepository) Create(ctx context.Context, p *policy.Policy) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PolicyRepository) Save(ctx context.Context, p *policy.Policy) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *PolicyRepository) GetByID(ctx context.Context, id uint64) (*policy.Policy, error) {
	var out policy.Policy
	if err := r.db.WithContext(ctx).First(&out, id).Error; err != nil {
		return nil, notFound(err, policy.ErrNotFound)
	}
	return &out, nil
}

func (r *PolicyRepository) GetByPolicyID(ctx context.Context, policyID string) (*policy.Policy, error) {
	var out policy.Policy
	if err := r.db.WithContext(ctx).Where("policy_id = ?", policyID).First(&out).Error; err != nil {
		return nil, notFound(err, policy.ErrNotFound)
	}
	return &out, nil
}

// GetByIDForUpdate takes a row lock on dialects that support it; sqlite
// drops the clause and relies on its database-level write lock.
func (r *PolicyRepository) GetByIDForUpdate(ctx context.Context, id uint64) (*policy.Policy, error) {
	var out policy.Policy
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&out, id).Error
	if err != nil {
		return nil, notFound(err, policy.ErrNotFound)
	}
	return &out, nil
}

func (r *PolicyRepository) CompareAndSwap(ctx context.Context, p *policy.Policy, expectStatus policy.Status) error {
	expectVersion := p.Version
	p.Version++
	res := r.db.WithContext(ctx).
		Model(p).
		Where("status = ? AND version = ?", expectStatus, expectVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(p)
	if res.Error != nil {
		p.Version = expectVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		p.Version = expectVersion
		return policy.ErrStaleState
	}
	return nil
}

type InvestigationRepository struct{ db *gorm.DB }

func NewInvestigationRepository(db *gorm.DB) *InvestigationRepository {
	return &InvestigationRepository{db: db}
}

// GetByPolicy returns a zero-valued PENDING investigation when none has been
// recorded yet, so callers never branch on existence.
func (r *InvestigationRepository) GetByPolicy(ctx context.Context, policyPK uint64) (*policy.Investigation, error) {
	var out policy.Investigation
	err := r.db.WithContext(ctx).Where("policy_id = ?", policyPK).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &policy.Investigation{PolicyID: policyPK, Verdict: policy.VerdictPending}, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *InvestigationRepository) Save(ctx context.Context, inv *policy.Investigation) error {
	return r.db.WithContext(ctx).Save(inv).Error
}

type ContractRepository struct{ db *gorm.DB }

func NewContractRepository(db *gorm.DB) *ContractRepository { return &ContractRepository{db: db} }

func (r *ContractRepository) Create(ctx context.Context, c *policy.Contract) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *ContractRepository) Save(ctx context.Context, c *policy.Contract) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *ContractRepository) GetCurrent(ctx context.Context, policyPK uint64) (*policy.Contract, error) {
	var out policy.Contract
	err := r.db.WithContext(ctx).
		Where("policy_id = ? AND is_current = ?", policyPK, true).
		Order("version DESC").
		First(&out).Error
	if err != nil {
		return nil, notFound(err, policy.ErrNoCurrentContract)
	}
	return &out, nil
}

func (r *ContractRepository) GetByContractID(ctx context.Context, contractID string) (*policy.Contract, error) {
	var out policy.Contract
	if err := r.db.WithContext(ctx).Where("contract_id = ?", contractID).First(&out).Error; err != nil {
		return nil, notFound(err, policy.ErrNoCurrentContract)
	}
	return &out, nil
}

func (r *ContractRepository) ClearCurrent(ctx context.Context, policyPK uint64) (int, error) {
	var maxVersion int
	err := r.db.WithContext(ctx).
		Model(&policy.Contract{}).
		Where("policy_id = ?", policyPK).
		Select("COALESCE(MAX(version), 0)").
		Scan(&maxVersion).Error
	if err != nil {
		return 0, err
	}
	err = r.db.WithContext(ctx).
		Model(&policy.Contract{}).
		Where("policy_id = ? AND is_current = ?", policyPK, true).
		Update("is_current", false).Error
	return maxVersion, err
}
