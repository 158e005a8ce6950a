// Package notification describes outbound messages. Delivery is
// best-effort; callers log failures and never roll back on them.
package notification

import (
	"context"
	"time"
)

type Invitation struct {
	PolicyNumber string    `json:"policy_number"`
	ActorID      string    `json:"actor_id"`
	ActorKind    string    `json:"actor_kind"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	URL          string    `json:"url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type Rejection struct {
	PolicyNumber string `json:"policy_number"`
	ActorID      string `json:"actor_id"`
	ActorKind    string `json:"actor_kind"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Reason       string `json:"reason"`
}

type Cancellation struct {
	PolicyNumber string `json:"policy_number"`
	Reason       string `json:"reason"`
	Comment      string `json:"comment"`
	CancelledBy  string `json:"cancelled_by"`
}

type Notifier interface {
	SendInvitation(ctx context.Context, inv Invitation) error
	NotifyActorRejected(ctx context.Context, r Rejection) error
	NotifyPolicyCancelled(ctx context.Context, c Cancellation) error
}

// Batch collects messages while a transaction runs so they can be sent
// only after it commits.
type Batch struct {
	Invitations   []Invitation
	Rejections    []Rejection
	Cancellations []Cancellation
}

func (b *Batch) Empty() bool {
	return b == nil || len(b.Invitations)+len(b.Rejections)+len(b.Cancellations) == 0
}
