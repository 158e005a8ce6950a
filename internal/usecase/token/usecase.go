// Package token issues and validates actor capability tokens.
package token

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"leaseprotect/internal/auth"
	"leaseprotect/internal/authz"
	"leaseprotect/internal/domain/activity"
	"leaseprotect/internal/domain/actor"
	"leaseprotect/internal/domain/notification"
	"leaseprotect/internal/domain/policy"
	"leaseprotect/internal/domain/progress"
	"leaseprotect/internal/domain/uow"
	"leaseprotect/internal/observability/metrics"
	"leaseprotect/internal/usecase/workflow"
	"leaseprotect/pkg/id"
)

const DefaultTTL = 30 * 24 * time.Hour

// Issue mints a fresh token on a, replacing any previous one. The caller
// persists a.
func Issue(a *actor.Actor, now time.Time, ttl time.Duration) (string, time.Time) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	tok := id.NewToken()
	exp := now.Add(ttl)
	a.AccessToken = &tok
	a.TokenExpiresAt = &exp
	return tok, exp
}

type Usecase struct {
	repos   uow.Repos
	tx      uow.UnitOfWork
	machine *workflow.Machine
	authz   authz.Checker
	ttl     time.Duration
	log     *slog.Logger
}

func NewUsecase(repos uow.Repos, tx uow.UnitOfWork, m *workflow.Machine, az authz.Checker, ttl time.Duration, log *slog.Logger) *Usecase {
	return &Usecase{repos: repos, tx: tx, machine: m, authz: az, ttl: ttl, log: log}
}

// resolve is the single lookup behind every token check. Unknown tokens,
// a kind that does not match the URL and expired tokens all fail with the
// same client-facing error.
func (u *Usecase) resolve(ctx context.Context, kindParam, tok string) (*actor.Actor, error) {
	kind, ok := actor.ParseKind(kindParam)
	if !ok || tok == "" {
		metrics.ObserveTokenValidation("invalid")
		return nil, actor.ErrTokenInvalid
	}
	a, err := u.repos.Actors.GetByToken(ctx, tok)
	if err != nil {
		if errors.Is(err, actor.ErrTokenInvalid) {
			metrics.ObserveTokenValidation("invalid")
		}
		return nil, err
	}
	if a.Kind != kind {
		metrics.ObserveTokenValidation("invalid")
		return nil, actor.ErrTokenInvalid
	}
	if !a.TokenValid(u.machine.Now()) {
		metrics.ObserveTokenValidation("expired")
		return nil, actor.ErrTokenExpired
	}
	metrics.ObserveTokenValidation("valid")
	return a, nil
}

// Authenticate turns a presented token into the principal the actor
// routes run under. It never writes.
func (u *Usecase) Authenticate(ctx context.Context, kindParam, tok string) (auth.ActorToken, error) {
	a, err := u.resolve(ctx, kindParam, tok)
	if err != nil {
		return auth.ActorToken{}, err
	}
	p, err := u.repos.Policies.GetByID(ctx, a.PolicyID)
	if err != nil {
		return auth.ActorToken{}, err
	}
	return auth.ActorToken{ActorID: a.ActorID, PolicyID: p.PolicyID, Kind: a.Kind, Token: tok}, nil
}

// Validate backs the landing page. Repeated calls return the same actor
// and leave the expiry untouched; only last_seen_at is stamped.
func (u *Usecase) Validate(ctx context.Context, kindParam, tok string) (*ValidateDTO, error) {
	a, err := u.resolve(ctx, kindParam, tok)
	if err != nil {
		return nil, err
	}
	p, err := u.repos.Policies.GetByID(ctx, a.PolicyID)
	if err != nil {
		return nil, err
	}
	refs, err := u.repos.Actors.ListReferences(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	docs, err := u.repos.Documents.ListByActor(ctx, a.ID)
	if err != nil {
		return nil, err
	}

	if err := u.repos.Actors.TouchLastSeen(ctx, a.ID, u.machine.Now()); err != nil {
		u.log.Warn("last seen not recorded", slog.String("actor_id", a.ActorID), slog.String("error", err.Error()))
	}

	return &ValidateDTO{
		Valid:      true,
		Actor:      a,
		References: refs,
		Policy:     Summarize(p),
		Progress:   progress.ForActor(a, docs),
		ExpiresAt:  *a.TokenExpiresAt,
	}, nil
}

func Summarize(p *policy.Policy) PolicySummary {
	return PolicySummary{
		PolicyID:        p.PolicyID,
		PolicyNumber:    p.PolicyNumber,
		Status:          string(p.Status),
		GuarantorType:   string(p.GuarantorType),
		PropertyAddress: p.PropertyAddress,
		AcceptsChanges:  p.Status.AcceptsActorChanges(),
	}
}

// Regenerate replaces the actor's token, which invalidates every link sent
// before. It is the only way to resend an invitation.
func (u *Usecase) Regenerate(ctx context.Context, s auth.Session, policyID, kindParam, actorID, ip string) (*ShareLinkDTO, error) {
	kind, ok := actor.ParseKind(kindParam)
	if !ok {
		return nil, actor.ErrInvalidKind
	}
	p, err := workflow.PolicyForStaff(ctx, u.repos.Policies, u.authz, s, policyID, authz.ActionUpdate)
	if err != nil {
		return nil, err
	}

	var (
		out   *ShareLinkDTO
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
		_, exp := Issue(a, now, u.ttl)
		if err := r.Actors.Save(ctx, a); err != nil {
			return err
		}
		entry := activity.New(p.ID, "actor_token_regenerated", "Se generó un nuevo enlace de acceso",
			activity.Performer{Kind: activity.PerformedByStaff, ID: s.UserID, IP: ip},
			map[string]any{"actor_id": a.ActorID, "kind": string(a.Kind), "expires_at": exp.Format(time.RFC3339)})
		entry.CreatedAt = now
		if err := r.Activity.Append(ctx, entry); err != nil {
			return err
		}
		if a.Email != "" && p.Status != policy.StatusDraft {
			batch.Invitations = append(batch.Invitations, u.machine.Invitation(p, a))
		}
		out = u.link(a, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.machine.Flush(ctx, &batch)
	return out, nil
}

// ShareLinks lists every actor's current link so staff can resend them
// out of band.
func (u *Usecase) ShareLinks(ctx context.Context, s auth.Session, policyID string) ([]ShareLinkDTO, error) {
	p, err := workflow.PolicyForStaff(ctx, u.repos.Policies, u.authz, s, policyID, authz.ActionRead)
	if err != nil {
		return nil, err
	}
	actors, err := u.repos.Actors.ListByPolicy(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	now := u.machine.Now()
	out := make([]ShareLinkDTO, 0, len(actors))
	for i := range actors {
		out = append(out, *u.link(&actors[i], now))
	}
	return out, nil
}

func (u *Usecase) link(a *actor.Actor, now time.Time) *ShareLinkDTO {
	dto := &ShareLinkDTO{
		ActorID:             a.ActorID,
		Kind:                a.Kind,
		Name:                a.DisplayName(),
		Email:               a.Email,
		TokenValid:          a.TokenValid(now),
		TokenExpiry:         a.TokenExpiresAt,
		InformationComplete: a.InformationComplete,
		LastSeenAt:          a.LastSeenAt,
	}
	if dto.TokenValid {
		dto.URL = u.machine.ShareURL(a)
	}
	return dto
}
