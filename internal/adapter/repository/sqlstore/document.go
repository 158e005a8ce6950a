package sqlstore

import (
	"context"
	"time"

	"leaseprotect/internal/domain/document"

	"gorm.io/gorm"
)

type DocumentRepository struct{ db *gorm.DB }

func NewDocumentRepository(db *gorm.DB) *DocumentRepository { return &DocumentRepository{db: db} }

func (r *DocumentRepository) Create(ctx context.Context, d *document.Document) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *DocumentRepository) GetByDocumentID(ctx context.Context, documentID string) (*document.Document, error) {
	var out document.Document
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).First(&out).Error; err != nil {
		return nil, notFound(err, document.ErrNotFound)
	}
	return &out, nil
}

func (r *DocumentRepository) ListByActor(ctx context.Context, actorPK uint64) ([]document.Document, error) {
	var out []document.Document
	err := r.db.WithContext(ctx).
		Where("actor_id = ?", actorPK).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

func (r *DocumentRepository) ListByActors(ctx context.Context, actorPKs []uint64) ([]document.Document, error) {
	var out []document.Document
	if len(actorPKs) == 0 {
		return out, nil
	}
	err := r.db.WithContext(ctx).
		Where("actor_id IN ?", actorPKs).
		Order("actor_id ASC, created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *DocumentRepository) MarkReviewed(ctx context.Context, id uint64, by string, at time.Time, reason *string) error {
	cols := map[string]any{"verified_by": by, "rejection_reason": reason}
	if reason == nil {
		cols["verified_at"] = at
	} else {
		cols["verified_at"] = nil
	}
	res := r.db.WithContext(ctx).Model(&document.Document{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&document.Document{}, id).Error
}
