package sqlstore

import (
	"context"
	"time"

	"leaseprotect/internal/domain/activity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActivityRepository struct{ db *gorm.DB }

func NewActivityRepository(db *gorm.DB) *ActivityRepository { return &ActivityRepository{db: db} }

func (r *ActivityRepository) Append(ctx context.Context, e *activity.Entry) error {
	if e.EntryID == "" {
		e.EntryID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *ActivityRepository) ListByPolicy(ctx context.Context, policyPK uint64, limit int) ([]activity.Entry, error) {
	var out []activity.Entry
	q := r.db.WithContext(ctx).
		Where("policy_id = ?", policyPK).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return out, q.Find(&out).Error
}
