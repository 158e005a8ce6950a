// Package workflow is the policy state machine. Every transition is fired
// inside a WithinPolicyTx callback: guards read through the tx-bound repos
// and the status write is a compare-and-swap, so two racing triggers can
// never both advance the same policy.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"leaseprotect/internal/domain/activity"
	"leaseprotect/internal/domain/actor"
	"leaseprotect/internal/domain/notification"
	"leaseprotect/internal/domain/policy"
	"leaseprotect/internal/domain/progress"
	"leaseprotect/internal/domain/uow"
	"leaseprotect/internal/observability/metrics"
	"leaseprotect/internal/observability/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// Input carries the optional payload some events need.
type Input struct {
	By           activity.Performer
	ReviewNotes  string
	ReviewReason string
	CancelReason policy.CancellationReason
	Comment      string
	Decision     policy.LandlordDecision
	Notes        string
}

type Machine struct {
	baseURL  string
	log      *slog.Logger
	notifier notification.Notifier
	now      func() time.Time
}

func NewMachine(baseURL string, notifier notification.Notifier, log *slog.Logger) *Machine {
	return &Machine{
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      log,
		notifier: notifier,
		now:      time.Now,
	}
}

// SetClock replaces the wall clock; tests only.
func (m *Machine) SetClock(now func() time.Time) { m.now = now }

func (m *Machine) Now() time.Time { return m.now().UTC() }

// ShareURL is the absolute self-service link for a.
func (m *Machine) ShareURL(a *actor.Actor) string {
	if p := a.SharePath(); p != "" {
		return m.baseURL + p
	}
	return ""
}

func refused(ev policy.Event, s policy.Status) error {
	return policy.ErrInvalidTransition.WithMessage(
		fmt.Sprintf("no se puede aplicar %s: la póliza está en estado %s", ev, s))
}

// Fire applies ev to p or returns a typed error naming the failed guard.
// p must have been loaded by WithinPolicyTx. Messages that must go out
// after commit are appended to out.
func (m *Machine) Fire(ctx context.Context, r uow.Repos, p *policy.Policy, ev policy.Event, in Input, out *notification.Batch) error {
	ctx, span := tracing.StartSpan(ctx, "workflow.fire",
		attribute.String("event", string(ev)), attribute.String("policy_id", p.PolicyID))
	defer span.End()

	rule, ok := policy.RuleFor(ev)
	if !ok || !rule.Allows(p.Status) {
		metrics.ObserveTransition(string(ev), "refused")
		return refused(ev, p.Status)
	}

	now := m.Now()
	details := map[string]any{"from": string(p.Status), "to": string(rule.To)}
	if err := m.apply(ctx, r, p, ev, in, now, details, out); err != nil {
		metrics.ObserveTransition(string(ev), "guard_failed")
		return err
	}

	from := p.Status
	p.Status = rule.To
	if from != rule.To {
		p.StatusUpdatedAt = now
	}
	if err := r.Policies.CompareAndSwap(ctx, p, from); err != nil {
		metrics.ObserveTransition(string(ev), "conflict")
		return err
	}

	by := in.By
	if by.Kind == "" {
		by = activity.System()
	}
	entry := activity.New(p.ID, rule.Action, describe(ev, from, rule.To), by, details)
	entry.CreatedAt = now
	if err := r.Activity.Append(ctx, entry); err != nil {
		return err
	}

	metrics.ObserveTransition(string(ev), "ok")
	m.log.Info("policy transition",
		slog.String("policy_id", p.PolicyID),
		slog.String("event", string(ev)),
		slog.String("from", string(from)),
		slog.String("to", string(rule.To)),
	)
	return nil
}

func (m *Machine) apply(ctx context.Context, r uow.Repos, p *policy.Policy, ev policy.Event, in Input, now time.Time, details map[string]any, out *notification.Batch) error {
	switch ev {
	case policy.EventStartCollecting:
		actors, err := r.Actors.ListByPolicy(ctx, p.ID)
		if err != nil {
			return err
		}
		if err := progress.CheckComposition(actors); err != nil {
			return err
		}
		p.SubmittedAt = &now
		for i := range actors {
			a := &actors[i]
			if a.Email == "" || !a.TokenValid(now) || a.InformationComplete {
				continue
			}
			out.Invitations = append(out.Invitations, m.invitation(p, a))
		}
		details["invitations"] = len(out.Invitations)

	case policy.EventAllComplete:
		actors, err := r.Actors.ListByPolicy(ctx, p.ID)
		if err != nil {
			return err
		}
		if !progress.AllComplete(p.GuarantorType, actors) {
			return policy.ErrActorsIncomplete
		}
		details["actors"] = len(actors)

	case policy.EventAllApproved:
		actors, err := r.Actors.ListByPolicy(ctx, p.ID)
		if err != nil {
			return err
		}
		if !progress.AllApproved(p.GuarantorType, actors) {
			return policy.ErrActorsNotApproved
		}
		details["actors"] = len(actors)

	case policy.EventInvestigationRejected:
		inv, err := r.Investigations.GetByPolicy(ctx, p.ID)
		if err != nil {
			return err
		}
		if inv.Verdict != policy.VerdictRejected {
			return policy.ErrVerdictNotRejected
		}
		if inv.RejectionReason != nil {
			details["reason"] = *inv.RejectionReason
		}

	case policy.EventApprove:
		p.ApprovedAt = &now
		if in.ReviewNotes != "" {
			p.ReviewNotes = &in.ReviewNotes
		}
		if in.ReviewReason != "" {
			p.ReviewReason = &in.ReviewReason
		}

	case policy.EventOverrideProceed, policy.EventOverrideReject:
		inv, err := r.Investigations.GetByPolicy(ctx, p.ID)
		if err != nil {
			return err
		}
		if inv.Verdict != policy.VerdictRejected {
			return policy.ErrVerdictNotRejected
		}
		if inv.LandlordDecision != nil {
			return policy.ErrOverrideAlreadyMade
		}
		decision := policy.DecisionProceed
		if ev == policy.EventOverrideReject {
			decision = policy.DecisionReject
		}
		inv.LandlordDecision = &decision
		if in.Notes != "" {
			inv.LandlordNotes = &in.Notes
		}
		inv.LandlordDecidedBy = in.By.ID
		inv.LandlordDecidedAt = &now
		if err := r.Investigations.Save(ctx, inv); err != nil {
			return err
		}
		details["decision"] = string(decision)

	case policy.EventContractUploaded:
		c, err := r.Contracts.GetCurrent(ctx, p.ID)
		if err != nil {
			return err
		}
		details["contract_id"] = c.ContractID
		details["contract_version"] = c.Version

	case policy.EventContractSigned:
		c, err := r.Contracts.GetCurrent(ctx, p.ID)
		if err != nil {
			return err
		}
		if c.SignedAt != nil || p.ContractSignedAt != nil {
			return policy.ErrContractAlreadySigned
		}
		c.SignedAt = &now
		if err := r.Contracts.Save(ctx, c); err != nil {
			return err
		}
		expires := p.ExpiryFrom(now)
		p.ContractSignedAt = &now
		p.PolicyExpiresAt = &expires
		details["contract_id"] = c.ContractID
		details["expires_at"] = expires.Format(time.RFC3339)

	case policy.EventActivate:
		p.ActivatedAt = &now
		if err := r.Actors.RevokeTokens(ctx, p.ID, now); err != nil {
			return err
		}

	case policy.EventCancel:
		comment := strings.TrimSpace(in.Comment)
		if !in.CancelReason.Valid() || comment == "" {
			return policy.ErrCancelDetails
		}
		reason := in.CancelReason
		p.CancellationReason = &reason
		p.CancellationComment = &comment
		p.CancelledAt = &now
		if err := r.Actors.RevokeTokens(ctx, p.ID, now); err != nil {
			return err
		}
		out.Cancellations = append(out.Cancellations, notification.Cancellation{
			PolicyNumber: p.PolicyNumber,
			Reason:       string(reason),
			Comment:      comment,
			CancelledBy:  in.By.ID,
		})
		details["reason"] = string(reason)
		details["comment"] = comment
	}
	return nil
}

// Advance fires the automatic events whose guards now hold: ALL_COMPLETE
// from COLLECTING_INFO, then ALL_APPROVED from UNDER_INVESTIGATION. A
// guard that does not hold is not an error here. Returns whether the
// status changed.
func (m *Machine) Advance(ctx context.Context, r uow.Repos, p *policy.Policy, out *notification.Batch) (bool, error) {
	changed := false
	for {
		var ev policy.Event
		switch p.Status {
		case policy.StatusCollectingInfo:
			ev = policy.EventAllComplete
		case policy.StatusUnderInvestigation:
			ev = policy.EventAllApproved
		default:
			return changed, nil
		}
		err := m.Fire(ctx, r, p, ev, Input{By: activity.System()}, out)
		switch {
		case err == nil:
			changed = true
		case isGuardMiss(err):
			return changed, nil
		default:
			return changed, err
		}
	}
}

func isGuardMiss(err error) bool {
	return errors.Is(err, policy.ErrActorsIncomplete) || errors.Is(err, policy.ErrActorsNotApproved)
}

func (m *Machine) invitation(p *policy.Policy, a *actor.Actor) notification.Invitation {
	inv := notification.Invitation{
		PolicyNumber: p.PolicyNumber,
		ActorID:      a.ActorID,
		ActorKind:    string(a.Kind),
		Name:         a.DisplayName(),
		Email:        a.Email,
		URL:          m.ShareURL(a),
	}
	if a.TokenExpiresAt != nil {
		inv.ExpiresAt = *a.TokenExpiresAt
	}
	return inv
}

// Invitation builds the invitation message for a; used when a token is
// issued outside a transition.
func (m *Machine) Invitation(p *policy.Policy, a *actor.Actor) notification.Invitation {
	return m.invitation(p, a)
}

// Flush delivers a batch after commit. Failures are logged and never
// returned: the state change that produced them already happened.
func (m *Machine) Flush(ctx context.Context, b *notification.Batch) {
	if b.Empty() || m.notifier == nil {
		return
	}
	for _, inv := range b.Invitations {
		if err := m.notifier.SendInvitation(ctx, inv); err != nil {
			m.log.Warn("invitation not sent", slog.String("actor_id", inv.ActorID), slog.String("error", err.Error()))
		}
	}
	for _, rej := range b.Rejections {
		if err := m.notifier.NotifyActorRejected(ctx, rej); err != nil {
			m.log.Warn("rejection notice not sent", slog.String("actor_id", rej.ActorID), slog.String("error", err.Error()))
		}
	}
	for _, c := range b.Cancellations {
		if err := m.notifier.NotifyPolicyCancelled(ctx, c); err != nil {
			m.log.Warn("cancellation notice not sent", slog.String("policy_number", c.PolicyNumber), slog.String("error", err.Error()))
		}
	}
}

var descriptions = map[policy.Event]string{
	policy.EventStartCollecting:       "Se inició la recopilación de información",
	policy.EventAllComplete:           "Todos los participantes completaron su información",
	policy.EventAllApproved:           "Todos los participantes fueron aprobados",
	policy.EventInvestigationRejected: "La investigación fue rechazada",
	policy.EventApprove:               "Póliza aprobada para contrato",
	policy.EventOverrideProceed:       "El arrendador decidió continuar pese al rechazo",
	policy.EventOverrideReject:        "El arrendador confirmó el rechazo",
	policy.EventContractUploaded:      "Contrato cargado",
	policy.EventContractSigned:        "Contrato firmado",
	policy.EventActivate:              "Póliza activada",
	policy.EventCancel:                "Póliza cancelada",
}

func describe(ev policy.Event, from, to policy.Status) string {
	if d, ok := descriptions[ev]; ok {
		return d
	}
	return fmt.Sprintf("%s → %s", from, to)
}
