package sqlstore

import (
	"context"

	"leaseprotect/internal/domain/activity"
	"leaseprotect/internal/domain/actor"
	"leaseprotect/internal/domain/document"
	"leaseprotect/internal/domain/policy"
	"leaseprotect/internal/domain/uow"

	"gorm.io/gorm"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

// ReposFor binds every repository to db (a tx or the root handle).
func ReposFor(db *gorm.DB) uow.Repos {
	return uow.Repos{
		Policies:       &PolicyRepository{db: db},
		Investigations: &InvestigationRepository{db: db},
		Contracts:      &ContractRepository{db: db},
		Actors:         &ActorRepository{db: db},
		Documents:      &DocumentRepository{db: db},
		Activity:       &ActivityRepository{db: db},
	}
}

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ReposFor(tx))
	})
}

func (u *GormUoW) WithinPolicyTx(ctx context.Context, policyPK uint64, fn func(r uow.Repos, p *policy.Policy) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := ReposFor(tx)
		// lock the policy row up-front to serialize transitions
		p, err := r.Policies.GetByIDForUpdate(ctx, policyPK)
		if err != nil {
			return err
		}
		return fn(r, p)
	})
}

// Models lists every table the service owns, in dependency order.
func Models() []any {
	return []any{
		&policy.Policy{},
		&policy.Investigation{},
		&policy.Contract{},
		&actor.Actor{},
		&actor.Reference{},
		&document.Document{},
		&activity.Entry{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
