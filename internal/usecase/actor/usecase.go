// Package actor is the self-service side of an actor: an external party,
// authenticated by its capability token, filling in its own record.
package actor

import (
	"context"
	"log/slog"
	"strings"

	"leaseprotect/internal/auth"
	"leaseprotect/internal/domain/activity"
	domain "leaseprotect/internal/domain/actor"
	"leaseprotect/internal/domain/apperr"
	"leaseprotect/internal/domain/notification"
	"leaseprotect/internal/domain/policy"
	"leaseprotect/internal/domain/progress"
	"leaseprotect/internal/domain/uow"
	"leaseprotect/internal/observability/tracing"
	"leaseprotect/internal/usecase/workflow"

	"go.opentelemetry.io/otel/attribute"
)

var ErrFieldsMissing = apperr.Validation("required_fields_missing", "faltan campos obligatorios para completar la información")

type Usecase struct {
	repos   uow.Repos
	tx      uow.UnitOfWork
	machine *workflow.Machine
	log     *slog.Logger
}

func NewUsecase(repos uow.Repos, tx uow.UnitOfWork, m *workflow.Machine, log *slog.Logger) *Usecase {
	return &Usecase{repos: repos, tx: tx, machine: m, log: log}
}

// Submit saves the form and, when asked to, marks the actor complete. In
// the same policy transaction it re-evaluates the policy so the last
// party to finish moves it to UNDER_INVESTIGATION exactly once.
//
// A rejected actor stays REJECTED after resubmitting; only staff reopen
// the review.
func (u *Usecase) Submit(ctx context.Context, who auth.ActorToken, in SubmitInput, ip string) (*SubmitResult, error) {
	ctx, span := tracing.StartSpan(ctx, "actor.submit", attribute.String("actor_id", who.ActorID))
	defer span.End()

	a0, err := workflow.ActorForToken(ctx, u.repos.Actors, who, u.machine.Now())
	if err != nil {
		return nil, err
	}

	var (
		out   SubmitResult
		batch notification.Batch
	)
	err = u.tx.WithinPolicyTx(ctx, a0.PolicyID, func(r uow.Repos, p *policy.Policy) error {
		now := u.machine.Now()
		a, err := workflow.ActorForToken(ctx, r.Actors, who, now)
		if err != nil {
			return err
		}
		if !p.Status.AcceptsActorChanges() {
			return policy.ErrNotAcceptingChanges
		}

		apply(a, in)
		missing := progress.MissingFields(a)
		if in.Complete && len(missing) > 0 {
			fields := make([]apperr.FieldError, 0, len(missing))
			for _, f := range missing {
				fields = append(fields, apperr.FieldError{Field: f, Message: "campo obligatorio"})
			}
			return ErrFieldsMissing.WithFields(fields...)
		}
		switch {
		case in.Complete:
			a.InformationComplete = true
			a.CompletedAt = &now
		case len(missing) > 0:
			a.InformationComplete = false
			a.CompletedAt = nil
		}
		if err := r.Actors.Save(ctx, a); err != nil {
			return err
		}

		if in.References != nil {
			refs := make([]domain.Reference, 0, len(in.References))
			for _, ri := range in.References {
				refs = append(refs, domain.Reference{
					Type:         ri.Type,
					Name:         strings.TrimSpace(ri.Name),
					Phone:        ri.Phone,
					Email:        strings.TrimSpace(ri.Email),
					Relationship: ri.Relationship,
					CompanyName:  ri.CompanyName,
				})
			}
			if err := r.Actors.ReplaceReferences(ctx, a.ID, refs); err != nil {
				return err
			}
		}

		action, desc := "actor_info_saved", "Información guardada parcialmente"
		if in.Complete {
			action, desc = "actor_info_submitted", "El participante completó su información"
		}
		entry := activity.New(p.ID, action, desc,
			activity.Performer{Kind: activity.PerformedByActor, ID: a.ActorID, IP: ip},
			map[string]any{"actor_id": a.ActorID, "kind": string(a.Kind), "complete": a.InformationComplete})
		entry.CreatedAt = now
		if err := r.Activity.Append(ctx, entry); err != nil {
			return err
		}

		if _, err := u.machine.Advance(ctx, r, p, &batch); err != nil {
			return err
		}

		actors, err := r.Actors.ListByPolicy(ctx, p.ID)
		if err != nil {
			return err
		}
		refs, err := r.Actors.ListReferences(ctx, a.ID)
		if err != nil {
			return err
		}
		docs, err := r.Documents.ListByActor(ctx, a.ID)
		if err != nil {
			return err
		}
		out = SubmitResult{
			Success:        true,
			Actor:          a,
			References:     refs,
			ActorsComplete: progress.AllComplete(p.GuarantorType, actors),
			PolicyStatus:   string(p.Status),
			Progress:       progress.ForActor(a, docs),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.machine.Flush(ctx, &batch)
	u.log.Info("actor submitted",
		slog.String("actor_id", who.ActorID),
		slog.Bool("complete", out.Actor.InformationComplete),
		slog.String("policy_status", out.PolicyStatus),
	)
	return &out, nil
}

// apply copies the form onto a. Person and company identities are
// mutually exclusive, so switching sides clears the other one.
func apply(a *domain.Actor, in SubmitInput) {
	a.IsCompany = in.IsCompany
	if in.IsCompany {
		a.FirstName, a.MiddleName, a.PaternalLastName, a.MaternalLastName = "", "", "", ""
		a.CompanyName = strings.TrimSpace(in.CompanyName)
		a.LegalRepName = strings.TrimSpace(in.LegalRepName)
	} else {
		a.CompanyName, a.LegalRepName = "", ""
		a.FirstName = strings.TrimSpace(in.FirstName)
		a.MiddleName = strings.TrimSpace(in.MiddleName)
		a.PaternalLastName = strings.TrimSpace(in.PaternalLastName)
		a.MaternalLastName = strings.TrimSpace(in.MaternalLastName)
	}
	a.RFC = strings.ToUpper(strings.TrimSpace(in.RFC))
	a.Email = strings.ToLower(strings.TrimSpace(in.Email))
	a.Phone = strings.TrimSpace(in.Phone)
	a.Address = strings.TrimSpace(in.Address)
	a.Details = in.Details
}
