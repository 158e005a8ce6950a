package sqlstore

import (
	"context"
	"time"

	"leaseprotect/internal/domain/actor"

	"gorm.io/gorm"
)

type ActorRepository struct{ db *gorm.DB }

func NewActorRepository(db *gorm.DB) *ActorRepository { return &ActorRepository{db: db} }

func (r *ActorRepository) Create(ctx context.Context, a *actor.Actor) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *ActorRepository) Save(ctx context.Context, a *actor.Actor) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *ActorRepository) GetByID(ctx context.Context, id uint64) (*actor.Actor, error) {
	var out actor.Actor
	if err := r.db.WithContext(ctx).First(&out, id).Error; err != nil {
		return nil, notFound(err, actor.ErrNotFound)
	}
	return &out, nil
}

func (r *ActorRepository) GetByActorID(ctx context.Context, actorID string) (*actor.Actor, error) {
	var out actor.Actor
	if err := r.db.WithContext(ctx).Where("actor_id = ?", actorID).First(&out).Error; err != nil {
		return nil, notFound(err, actor.ErrNotFound)
	}
	return &out, nil
}

func (r *ActorRepository) GetByToken(ctx context.Context, token string) (*actor.Actor, error) {
	var out actor.Actor
	if err := r.db.WithContext(ctx).Where("access_token = ?", token).First(&out).Error; err != nil {
		return nil, notFound(err, actor.ErrTokenInvalid)
	}
	return &out, nil
}

func (r *ActorRepository) ListByPolicy(ctx context.Context, policyPK uint64) ([]actor.Actor, error) {
	var out []actor.Actor
	err := r.db.WithContext(ctx).
		Where("policy_id = ?", policyPK).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *ActorRepository) TouchLastSeen(ctx context.Context, id uint64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&actor.Actor{}).
		Where("id = ?", id).
		UpdateColumn("last_seen_at", at).Error
}

func (r *ActorRepository) RevokeTokens(ctx context.Context, policyPK uint64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&actor.Actor{}).
		Where("policy_id = ? AND access_token IS NOT NULL AND token_expires_at > ?", policyPK, at).
		Update("token_expires_at", at).Error
}

func (r *ActorRepository) ReplaceReferences(ctx context.Context, actorPK uint64, refs []actor.Reference) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("actor_id = ?", actorPK).Delete(&actor.Reference{}).Error; err != nil {
		return err
	}
	if len(refs) == 0 {
		return nil
	}
	for i := range refs {
		refs[i].ID = 0
		refs[i].ActorID = actorPK
	}
	return db.Create(&refs).Error
}

func (r *ActorRepository) ListReferences(ctx context.Context, actorPK uint64) ([]actor.Reference, error) {
	var out []actor.Reference
	err := r.db.WithContext(ctx).Where("actor_id = ?", actorPK).Order("id ASC").Find(&out).Error
	return out, err
}
