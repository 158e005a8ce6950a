package policy

import (
	"context"
	"fmt"
	"strings"

	"leaseprotect/internal/auth"
	"leaseprotect/internal/authz"
	"leaseprotect/internal/domain/activity"
	"leaseprotect/internal/domain/notification"
	domain "leaseprotect/internal/domain/policy"
	"leaseprotect/internal/domain/uow"
	"leaseprotect/internal/usecase/workflow"
)

// actionFor picks the permission a requested target status needs.
func actionFor(to domain.Status) authz.Action {
	switch to {
	case domain.StatusCancelled:
		return authz.ActionCancel
	case domain.StatusContractUploaded, domain.StatusContractSigned, domain.StatusActive:
		return authz.ActionContract
	case domain.StatusContractPending, domain.StatusInvestigationRejected:
		return authz.ActionVerify
	}
	return authz.ActionUpdate
}

// transition runs fn under the policy lock and flushes whatever it queued
// once the transaction has committed.
func (u *Usecase) transition(ctx context.Context, s auth.Session, policyID string, act authz.Action,
	fn func(r uow.Repos, p *domain.Policy, out *notification.Batch) error) (*domain.Policy, error) {
	p, err := workflow.PolicyForStaff(ctx, u.repos.Policies, u.authz, s, policyID, act)
	if err != nil {
		return nil, err
	}
	var (
		updated *domain.Policy
		batch   notification.Batch
	)
	err = u.tx.WithinPolicyTx(ctx, p.ID, func(r uow.Repos, locked *domain.Policy) error {
		if err := fn(r, locked, &batch); err != nil {
			return err
		}
		updated = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.machine.Flush(ctx, &batch)
	return updated, nil
}

// UpdateStatus moves the policy to a staff-requested status. The target is
// mapped onto the one event that reaches it from the current status, so
// every guard of that event still applies.
func (u *Usecase) UpdateStatus(ctx context.Context, s auth.Session, policyID string, in UpdateStatusInput, ip string) (*domain.Policy, error) {
	to := domain.Status(strings.ToUpper(strings.TrimSpace(in.Status)))
	if !to.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	return u.transition(ctx, s, policyID, actionFor(to), func(r uow.Repos, p *domain.Policy, out *notification.Batch) error {
		ev, ok := domain.EventForTarget(p.Status, to)
		if !ok {
			return domain.ErrInvalidTransition.WithMessage(
				fmt.Sprintf("no se puede pasar de %s a %s", p.Status, to))
		}
		err := u.machine.Fire(ctx, r, p, ev, workflow.Input{
			By:           staffBy(s, ip),
			ReviewNotes:  strings.TrimSpace(in.ReviewNotes),
			ReviewReason: strings.TrimSpace(in.ReviewReason),
			CancelReason: domain.CancellationReason(strings.ToUpper(strings.TrimSpace(in.CancelReason))),
			Comment:      in.Comment,
		}, out)
		if err != nil {
			return err
		}
		if ev == domain.EventStartCollecting {
			_, err = u.machine.Advance(ctx, r, p, out)
		}
		return err
	})
}

// RecordInvestigation stores the staff verdict over the whole file. A
// rejection moves the policy to INVESTIGATION_REJECTED; an approval only
// records the verdict and lets the actor approvals drive the status.
func (u *Usecase) RecordInvestigation(ctx context.Context, s auth.Session, policyID string, in VerdictInput, ip string) (*domain.Investigation, error) {
	verdict := domain.Verdict(strings.ToUpper(strings.TrimSpace(in.Verdict)))
	if verdict != domain.VerdictApproved && verdict != domain.VerdictRejected {
		return nil, domain.ErrInvalidVerdict
	}
	reason := strings.TrimSpace(in.Reason)
	if verdict == domain.VerdictRejected && reason == "" {
		return nil, domain.ErrReasonRequired
	}

	var inv *domain.Investigation
	_, err := u.transition(ctx, s, policyID, authz.ActionVerify, func(r uow.Repos, p *domain.Policy, out *notification.Batch) error {
		if p.Status != domain.StatusUnderInvestigation && p.Status != domain.StatusPendingApproval {
			return domain.ErrInvalidTransition.WithMessage(
				fmt.Sprintf("no se puede registrar un dictamen: la póliza está en estado %s", p.Status))
		}
		cur, err := r.Investigations.GetByPolicy(ctx, p.ID)
		if err != nil {
			return err
		}
		now := u.machine.Now()
		cur.Verdict = verdict
		cur.RejectionReason = nil
		if reason != "" {
			cur.RejectionReason = &reason
		}
		cur.DecidedBy = s.UserID
		cur.DecidedAt = &now
		if err := r.Investigations.Save(ctx, cur); err != nil {
			return err
		}
		inv = cur

		if verdict == domain.VerdictRejected {
			return u.machine.Fire(ctx, r, p, domain.EventInvestigationRejected, workflow.Input{By: staffBy(s, ip)}, out)
		}
		entry := activity.New(p.ID, "investigation_approved", "Investigación aprobada", staffBy(s, ip), nil)
		entry.CreatedAt = now
		if err := r.Activity.Append(ctx, entry); err != nil {
			return err
		}
		_, err = u.machine.Advance(ctx, r, p, out)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// LandlordOverride records the owner's decision over a rejected
// investigation: PROCEED continues to contract, REJECT confirms.
func (u *Usecase) LandlordOverride(ctx context.Context, s auth.Session, policyID string, in OverrideInput, ip string) (*domain.Policy, error) {
	decision := domain.LandlordDecision(strings.ToUpper(strings.TrimSpace(in.Decision)))
	if !decision.Valid() {
		return nil, domain.ErrInvalidDecision
	}
	ev := domain.EventOverrideProceed
	if decision == domain.DecisionReject {
		ev = domain.EventOverrideReject
	}
	return u.transition(ctx, s, policyID, authz.ActionOverride, func(r uow.Repos, p *domain.Policy, out *notification.Batch) error {
		return u.machine.Fire(ctx, r, p, ev, workflow.Input{
			By:       staffBy(s, ip),
			Decision: decision,
			Notes:    strings.TrimSpace(in.Notes),
		}, out)
	})
}

func (u *Usecase) MarkSigned(ctx context.Context, s auth.Session, policyID, ip string) (*domain.Policy, error) {
	return u.transition(ctx, s, policyID, authz.ActionContract, func(r uow.Repos, p *domain.Policy, out *notification.Batch) error {
		return u.machine.Fire(ctx, r, p, domain.EventContractSigned, workflow.Input{By: staffBy(s, ip)}, out)
	})
}

func (u *Usecase) Activate(ctx context.Context, s auth.Session, policyID, ip string) (*domain.Policy, error) {
	return u.transition(ctx, s, policyID, authz.ActionContract, func(r uow.Repos, p *domain.Policy, out *notification.Batch) error {
		return u.machine.Fire(ctx, r, p, domain.EventActivate, workflow.Input{By: staffBy(s, ip)}, out)
	})
}

// Cancel ends the policy from any non-terminal status and revokes every
// actor token.
func (u *Usecase) Cancel(ctx context.Context, s auth.Session, policyID string, in CancelInput, ip string) (*domain.Policy, error) {
	return u.transition(ctx, s, policyID, authz.ActionCancel, func(r uow.Repos, p *domain.Policy, out *notification.Batch) error {
		return u.machine.Fire(ctx, r, p, domain.EventCancel, workflow.Input{
			By:           staffBy(s, ip),
			CancelReason: domain.CancellationReason(strings.ToUpper(strings.TrimSpace(in.Reason))),
			Comment:      in.Comment,
		}, out)
	})
}
