package notifymock

import (
	"context"
	"sync"

	"leaseprotect/internal/domain/notification"
)

var _ notification.Notifier = (*Recorder)(nil)

// Recorder captures every message; Err, when set, is returned from every
// call after recording.
type Recorder struct {
	mu            sync.Mutex
	Err           error
	Invitations   []notification.Invitation
	Rejections    []notification.Rejection
	Cancellations []notification.Cancellation
}

func (r *Recorder) SendInvitation(_ context.Context, inv notification.Invitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Invitations = append(r.Invitations, inv)
	return r.Err
}

func (r *Recorder) NotifyActorRejected(_ context.Context, rej notification.Rejection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Rejections = append(r.Rejections, rej)
	return r.Err
}

func (r *Recorder) NotifyPolicyCancelled(_ context.Context, c notification.Cancellation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Cancellations = append(r.Cancellations, c)
	return r.Err
}

func (r *Recorder) Counts() (invitations, rejections, cancellations int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Invitations), len(r.Rejections), len(r.Cancellations)
}
