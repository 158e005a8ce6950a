package document

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, d *Document) error
	GetByDocumentID(ctx context.Context, documentID string) (*Document, error)
	ListByActor(ctx context.Context, actorPK uint64) ([]Document, error)
	ListByActors(ctx context.Context, actorPKs []uint64) ([]Document, error)
	// MarkReviewed writes only the review columns. A nil reason marks the
	// document verified; a non-nil one records a rejection.
	MarkReviewed(ctx context.Context, id uint64, by string, at time.Time, reason *string) error
	Delete(ctx context.Context, id uint64) error
}
