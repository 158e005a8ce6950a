// Package policy is the staff side of the protection lifecycle.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"leaseprotect/internal/auth"
	"leaseprotect/internal/authz"
	"leaseprotect/internal/domain/activity"
	"leaseprotect/internal/domain/actor"
	"leaseprotect/internal/domain/document"
	"leaseprotect/internal/domain/notification"
	domain "leaseprotect/internal/domain/policy"
	"leaseprotect/internal/domain/progress"
	"leaseprotect/internal/domain/uow"
	"leaseprotect/internal/usecase/token"
	"leaseprotect/internal/usecase/workflow"
	"leaseprotect/pkg/id"
)

type Usecase struct {
	repos    uow.Repos
	tx       uow.UnitOfWork
	store    document.ObjectStore
	machine  *workflow.Machine
	authz    authz.Checker
	tokenTTL time.Duration
	maxBytes int64
	urlTTL   time.Duration
	log      *slog.Logger
}

type Options struct {
	TokenTTL         time.Duration
	MaxContractBytes int64
	StaffURLTTL      time.Duration
}

func NewUsecase(repos uow.Repos, tx uow.UnitOfWork, store document.ObjectStore, m *workflow.Machine, az authz.Checker, opts Options, log *slog.Logger) *Usecase {
	return &Usecase{
		repos:    repos,
		tx:       tx,
		store:    store,
		machine:  m,
		authz:    az,
		tokenTTL: opts.TokenTTL,
		maxBytes: opts.MaxContractBytes,
		urlTTL:   opts.StaffURLTTL,
		log:      log,
	}
}

func staffBy(s auth.Session, ip string) activity.Performer {
	return activity.Performer{Kind: activity.PerformedByStaff, ID: s.UserID, IP: ip}
}

// PolicyNumber is POL-YYYYMMDD-XXXXXX.
func PolicyNumber(at time.Time) string {
	return fmt.Sprintf("POL-%s-%s", at.Format("20060102"), id.NewSuffix(6))
}

func (u *Usecase) newActor(p *domain.Policy, kind actor.Kind, in ActorInput, now time.Time) *actor.Actor {
	a := &actor.Actor{
		ActorID:            id.NewID32(),
		PolicyID:           p.ID,
		Kind:               kind,
		IsPrimary:          kind == actor.KindLandlord && in.IsPrimary,
		IsCompany:          in.IsCompany,
		FirstName:          strings.TrimSpace(in.FirstName),
		PaternalLastName:   strings.TrimSpace(in.PaternalLastName),
		MaternalLastName:   strings.TrimSpace(in.MaternalLastName),
		CompanyName:        strings.TrimSpace(in.CompanyName),
		Email:              strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:              strings.TrimSpace(in.Phone),
		VerificationStatus: actor.VerificationPending,
	}
	token.Issue(a, now, u.tokenTTL)
	return a
}

// Create opens a DRAFT policy with its initial actors, each holding a
// fresh token. Guarantors must match the guarantor type.
func (u *Usecase) Create(ctx context.Context, s auth.Session, in CreateInput, ip string) (*DetailDTO, error) {
	if err := u.authz.Require(s, authz.ActionCreate, s.UserID); err != nil {
		return nil, err
	}
	gt := domain.GuarantorType(strings.ToUpper(strings.TrimSpace(in.GuarantorType)))
	if !gt.Valid() {
		return nil, domain.ErrInvalidGuarantorType
	}
	if len(in.Landlords) == 0 {
		return nil, domain.ErrLandlordRequired
	}
	if (len(in.JointObligors) > 0 && !progress.IsRequiredKind(gt, actor.KindJointObligor)) ||
		(len(in.Avals) > 0 && !progress.IsRequiredKind(gt, actor.KindAval)) {
		return nil, domain.ErrGuarantorMismatch
	}
	primaries := 0
	for _, l := range in.Landlords {
		if l.IsPrimary {
			primaries++
		}
	}
	if primaries > 1 {
		return nil, actor.ErrPrimaryLandlordTaken
	}
	if primaries == 0 {
		in.Landlords[0].IsPrimary = true
	}

	now := u.machine.Now()
	p := &domain.Policy{
		PolicyID:        id.NewID32(),
		PolicyNumber:    PolicyNumber(now),
		Status:          domain.StatusDraft,
		GuarantorType:   gt,
		PropertyAddress: strings.TrimSpace(in.PropertyAddress),
		PropertyType:    in.PropertyType,
		MonthlyRent:     in.MonthlyRent,
		ContractLength:  in.ContractLength,
		CreatedBy:       s.UserID,
		StatusUpdatedAt: now,
	}
	if p.ContractLength == 0 {
		p.ContractLength = 12
	}

	err := u.tx.WithinTx(ctx, func(r uow.Repos) error {
		if err := r.Policies.Create(ctx, p); err != nil {
			return err
		}
		create := func(kind actor.Kind, ins []ActorInput) error {
			for _, ai := range ins {
				if err := r.Actors.Create(ctx, u.newActor(p, kind, ai, now)); err != nil {
					return err
				}
			}
			return nil
		}
		if err := create(actor.KindLandlord, in.Landlords); err != nil {
			return err
		}
		if in.Tenant != nil {
			if err := create(actor.KindTenant, []ActorInput{*in.Tenant}); err != nil {
				return err
			}
		}
		if err := create(actor.KindJointObligor, in.JointObligors); err != nil {
			return err
		}
		if err := create(actor.KindAval, in.Avals); err != nil {
			return err
		}
		entry := activity.New(p.ID, "policy_created", "Póliza creada", staffBy(s, ip), map[string]any{
			"policy_number": p.PolicyNumber, "guarantor_type": string(gt),
		})
		entry.CreatedAt = now
		return r.Activity.Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	u.log.Info("policy created", slog.String("policy_id", p.PolicyID), slog.String("policy_number", p.PolicyNumber))
	return u.detail(ctx, u.repos, p)
}

func (u *Usecase) Get(ctx context.Context, s auth.Session, policyID string) (*DetailDTO, error) {
	p, err := workflow.PolicyForStaff(ctx, u.repos.Policies, u.authz, s, policyID, authz.ActionRead)
	if err != nil {
		return nil, err
	}
	return u.detail(ctx, u.repos, p)
}

func (u *Usecase) detail(ctx context.Context, r uow.Repos, p *domain.Policy) (*DetailDTO, error) {
	actors, err := r.Actors.ListByPolicy(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	docsByActor, err := documentsByActor(ctx, r, actors)
	if err != nil {
		return nil, err
	}
	inv, err := r.Investigations.GetByPolicy(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	var contract *domain.Contract
	if c, err := r.Contracts.GetCurrent(ctx, p.ID); err == nil {
		contract = c
	}

	views := make([]ActorView, 0, len(actors))
	for i := range actors {
		refs, err := r.Actors.ListReferences(ctx, actors[i].ID)
		if err != nil {
			return nil, err
		}
		docs := docsByActor[actors[i].ID]
		if docs == nil {
			docs = []document.Document{}
		}
		views = append(views, ActorView{Actor: &actors[i], Documents: docs, References: refs})
	}
	return &DetailDTO{
		Policy:        p,
		Actors:        views,
		Investigation: inv,
		Contract:      contract,
		Progress:      progress.ForPolicy(p.GuarantorType, actors, docsByActor),
	}, nil
}

func documentsByActor(ctx context.Context, r uow.Repos, actors []actor.Actor) (map[uint64][]document.Document, error) {
	ids := make([]uint64, 0, len(actors))
	for i := range actors {
		ids = append(ids, actors[i].ID)
	}
	docs, err := r.Documents.ListByActors(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uint64][]document.Document, len(actors))
	for _, d := range docs {
		out[d.ActorID] = append(out[d.ActorID], d)
	}
	return out, nil
}

// AddActor adds a party while the policy still accepts changes. A policy
// has one tenant and at most one primary landlord; the first landlord
// added to a policy without one becomes primary.
func (u *Usecase) AddActor(ctx context.Context, s auth.Session, policyID, kindParam string, in ActorInput, ip string) (*actor.Actor, error) {
	kind, ok := actor.ParseKind(kindParam)
	if !ok {
		return nil, actor.ErrInvalidKind
	}
	p, err := workflow.PolicyForStaff(ctx, u.repos.Policies, u.authz, s, policyID, authz.ActionUpdate)
	if err != nil {
		return nil, err
	}

	var (
		out   *actor.Actor
		batch notification.Batch
	)
	err = u.tx.WithinPolicyTx(ctx, p.ID, func(r uow.Repos, p *domain.Policy) error {
		if !p.Status.AcceptsActorChanges() {
			return domain.ErrNotAcceptingChanges
		}
		if (kind == actor.KindJointObligor || kind == actor.KindAval) && !progress.IsRequiredKind(p.GuarantorType, kind) {
			return domain.ErrGuarantorMismatch
		}
		existing, err := r.Actors.ListByPolicy(ctx, p.ID)
		if err != nil {
			return err
		}
		hasPrimary := false
		for i := range existing {
			switch {
			case kind == actor.KindTenant && existing[i].Kind == actor.KindTenant:
				return actor.ErrTenantExists
			case existing[i].Kind == actor.KindLandlord && existing[i].IsPrimary:
				hasPrimary = true
			}
		}
		if kind == actor.KindLandlord {
			if in.IsPrimary && hasPrimary {
				return actor.ErrPrimaryLandlordTaken
			}
			in.IsPrimary = in.IsPrimary || !hasPrimary
		}

		now := u.machine.Now()
		a := u.newActor(p, kind, in, now)
		if err := r.Actors.Create(ctx, a); err != nil {
			return err
		}
		entry := activity.New(p.ID, "actor_added", "Participante agregado", staffBy(s, ip),
			map[string]any{"actor_id": a.ActorID, "kind": string(kind)})
		entry.CreatedAt = now
		if err := r.Activity.Append(ctx, entry); err != nil {
			return err
		}
		if p.Status != domain.StatusDraft && a.Email != "" {
			batch.Invitations = append(batch.Invitations, u.machine.Invitation(p, a))
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.machine.Flush(ctx, &batch)
	return out, nil
}

// Progress reports per-actor and overall readiness.
func (u *Usecase) Progress(ctx context.Context, s auth.Session, policyID string) (*progress.PolicyProgress, error) {
	p, err := workflow.PolicyForStaff(ctx, u.repos.Policies, u.authz, s, policyID, authz.ActionRead)
	if err != nil {
		return nil, err
	}
	actors, err := u.repos.Actors.ListByPolicy(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	docs, err := documentsByActor(ctx, u.repos, actors)
	if err != nil {
		return nil, err
	}
	out := progress.ForPolicy(p.GuarantorType, actors, docs)
	return &out, nil
}

// Activity returns the audit trail, oldest first.
func (u *Usecase) Activity(ctx context.Context, s auth.Session, policyID string, limit int) (*ActivityDTO, error) {
	p, err := workflow.PolicyForStaff(ctx, u.repos.Policies, u.authz, s, policyID, authz.ActionRead)
	if err != nil {
		return nil, err
	}
	entries, err := u.repos.Activity.ListByPolicy(ctx, p.ID, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	return &ActivityDTO{PolicyID: p.PolicyID, Entries: entries}, nil
}
