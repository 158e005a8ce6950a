package notify

import (
	"context"
	"log/slog"

	"leaseprotect/internal/domain/notification"
)

// LogNotifier records messages in the log instead of delivering them. It is
// the default when no webhook is configured.
type LogNotifier struct{ log *slog.Logger }

func NewLogNotifier(log *slog.Logger) *LogNotifier { return &LogNotifier{log: log} }

func (n *LogNotifier) SendInvitation(_ context.Context, inv notification.Invitation) error {
	n.log.Info("notify: invitation",
		slog.String("policy_number", inv.PolicyNumber),
		slog.String("actor_id", inv.ActorID),
		slog.String("actor_kind", inv.ActorKind),
		slog.String("email", inv.Email),
		slog.Time("expires_at", inv.ExpiresAt),
	)
	return nil
}

func (n *LogNotifier) NotifyActorRejected(_ context.Context, r notification.Rejection) error {
	n.log.Info("notify: actor rejected",
		slog.String("policy_number", r.PolicyNumber),
		slog.String("actor_id", r.ActorID),
		slog.String("reason", r.Reason),
	)
	return nil
}

func (n *LogNotifier) NotifyPolicyCancelled(_ context.Context, c notification.Cancellation) error {
	n.log.Info("notify: policy cancelled",
		slog.String("policy_number", c.PolicyNumber),
		slog.String("reason", c.Reason),
		slog.String("cancelled_by", c.CancelledBy),
	)
	return nil
}
