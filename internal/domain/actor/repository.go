package actor

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, a *Actor) error
	GetByID(ctx context.Context, id uint64) (*Actor, error)
	GetByActorID(ctx context.Context, actorID string) (*Actor, error)
	// GetByToken is a single indexed lookup; it does not check expiry.
	GetByToken(ctx context.Context, token string) (*Actor, error)
	ListByPolicy(ctx context.Context, policyPK uint64) ([]Actor, error)
	Save(ctx context.Context, a *Actor) error
	// TouchLastSeen stamps last_seen_at without bumping any other column.
	TouchLastSeen(ctx context.Context, id uint64, at time.Time) error
	// RevokeTokens expires every live token of the policy at the given time.
	RevokeTokens(ctx context.Context, policyPK uint64, at time.Time) error

	ReplaceReferences(ctx context.Context, actorPK uint64, refs []Reference) error
	ListReferences(ctx context.Context, actorPK uint64) ([]Reference, error)
}
