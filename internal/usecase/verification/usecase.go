// Package verification records staff decisions on each actor and lets
// the policy advance once every required actor is approved.
package verification

import (
	"context"
	"log/slog"
	"strings"

	"leaseprotect/internal/auth"
	"leaseprotect/internal/authz"
	"leaseprotect/internal/domain/activity"
	"leaseprotect/internal/domain/actor"
	"leaseprotect/internal/domain/notification"
	"leaseprotect/internal/domain/policy"
	"leaseprotect/internal/domain/uow"
	"leaseprotect/internal/observability/tracing"
	"leaseprotect/internal/usecase/workflow"

	"go.opentelemetry.io/otel/attribute"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionReset   Action = "reset"
)

type DecideInput struct {
	Action Action `json:"action" validate:"required,oneof=approve reject reset"`
	Reason string `json:"reason"`
}

type DecideResult struct {
	Actor         *actor.Actor `json:"actor"`
	PolicyStatus  string       `json:"policy_status"`
	StatusChanged bool         `json:"policy_status_changed"`
}

type Usecase struct {
	repos   uow.Repos
	tx      uow.UnitOfWork
	machine *workflow.Machine
	authz   authz.Checker
	log     *slog.Logger
}

func NewUsecase(repos uow.Repos, tx uow.UnitOfWork, m *workflow.Machine, az authz.Checker, log *slog.Logger) *Usecase {
	return &Usecase{repos: repos, tx: tx, machine: m, authz: az, log: log}
}

// Decide applies approve, reject or reset to one actor. The decision and
// any resulting policy transition commit together; the rejection notice
// goes out afterwards and its failure never undoes the decision.
func (u *Usecase) Decide(ctx context.Context, s auth.Session, policyID, kindParam, actorID string, in DecideInput, ip string) (*DecideResult, error) {
	kind, ok := actor.ParseKind(kindParam)
	if !ok {
		return nil, actor.ErrInvalidKind
	}
	reason := strings.TrimSpace(in.Reason)
	switch in.Action {
	case ActionApprove, ActionReset:
	case ActionReject:
		if reason == "" {
			return nil, actor.ErrReasonRequired
		}
	default:
		return nil, actor.ErrInvalidAction
	}

	ctx, span := tracing.StartSpan(ctx, "verification.decide",
		attribute.String("actor_id", actorID), attribute.String("action", string(in.Action)))
	defer span.End()

	p, err := workflow.PolicyForStaff(ctx, u.repos.Policies, u.authz, s, policyID, authz.ActionVerify)
	if err != nil {
		return nil, err
	}

	var (
		out   DecideResult
		batch notification.Batch
	)
	err = u.tx.WithinPolicyTx(ctx, p.ID, func(r uow.Repos, p *policy.Policy) error {
		if p.Status.Terminal() {
			return policy.ErrTerminal
		}
		a, err := workflow.ActorOfPolicy(ctx, r.Actors, p, kind, actorID)
		if err != nil {
			return err
		}
		now := u.machine.Now()

		var code, desc string
		switch in.Action {
		case ActionApprove:
			if !a.InformationComplete {
				return actor.ErrIncompleteForApprove
			}
			if a.VerificationStatus == actor.VerificationApproved {
				return actor.ErrAlreadyApproved
			}
			a.VerificationStatus = actor.VerificationApproved
			a.RejectionReason = nil
			code, desc = "actor_approved", "Participante aprobado"
		case ActionReject:
			if a.VerificationStatus == actor.VerificationApproved {
				return actor.ErrAlreadyApproved
			}
			a.VerificationStatus = actor.VerificationRejected
			a.RejectionReason = &reason
			code, desc = "actor_rejected", "Participante rechazado"
			batch.Rejections = append(batch.Rejections, notification.Rejection{
				PolicyNumber: p.PolicyNumber,
				ActorID:      a.ActorID,
				ActorKind:    string(a.Kind),
				Name:         a.DisplayName(),
				Email:        a.Email,
				Reason:       reason,
			})
		case ActionReset:
			if a.VerificationStatus != actor.VerificationRejected {
				return actor.ErrNotRejected
			}
			a.VerificationStatus = actor.VerificationPending
			a.RejectionReason = nil
			code, desc = "actor_verification_reset", "El participante volvió a revisión"
		}
		a.VerifiedBy = s.UserID
		a.VerifiedAt = &now
		if err := r.Actors.Save(ctx, a); err != nil {
			return err
		}

		details := map[string]any{"actor_id": a.ActorID, "kind": string(a.Kind)}
		if in.Action == ActionReject {
			details["reason"] = reason
		}
		entry := activity.New(p.ID, code, desc, activity.Performer{Kind: activity.PerformedByStaff, ID: s.UserID, IP: ip}, details)
		entry.CreatedAt = now
		if err := r.Activity.Append(ctx, entry); err != nil {
			return err
		}

		if in.Action == ActionApprove {
			changed, err := u.machine.Advance(ctx, r, p, &batch)
			if err != nil {
				return err
			}
			out.StatusChanged = changed
		}
		out.Actor = a
		out.PolicyStatus = string(p.Status)
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.machine.Flush(ctx, &batch)
	u.log.Info("actor verification decided",
		slog.String("policy_id", policyID),
		slog.String("actor_id", actorID),
		slog.String("action", string(in.Action)),
		slog.String("policy_status", out.PolicyStatus),
	)
	return &out, nil
}
