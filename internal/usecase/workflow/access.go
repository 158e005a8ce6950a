package workflow

import (
	"context"
	"errors"
	"time"

	"leaseprotect/internal/auth"
	"leaseprotect/internal/authz"
	"leaseprotect/internal/domain/actor"
	"leaseprotect/internal/domain/policy"
)

// PolicyForStaff loads a policy by its public id and checks that s may
// perform act on it. A session that may not even read the policy gets
// NOT_FOUND, so brokers cannot probe for other owners' policy ids.
func PolicyForStaff(ctx context.Context, policies policy.Repository, az authz.Checker, s auth.Session, policyID string, act authz.Action) (*policy.Policy, error) {
	p, err := policies.GetByPolicyID(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if act != authz.ActionRead {
		if ok, err := az.Can(s, authz.ActionRead, p.CreatedBy); err == nil && !ok {
			return nil, policy.ErrNotFound
		}
	}
	if err := az.Require(s, act, p.CreatedBy); err != nil {
		if errors.Is(err, authz.ErrForbidden) && act == authz.ActionRead {
			return nil, policy.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// ActorForToken reloads the actor behind an authenticated token and makes
// sure the token is still live. Call it again inside the transaction that
// writes: a token revoked after the middleware ran must not authorize the
// write.
func ActorForToken(ctx context.Context, actors actor.Repository, who auth.ActorToken, now time.Time) (*actor.Actor, error) {
	a, err := actors.GetByActorID(ctx, who.ActorID)
	if err != nil {
		if errors.Is(err, actor.ErrNotFound) {
			return nil, actor.ErrTokenInvalid
		}
		return nil, err
	}
	if a.Kind != who.Kind || (who.Token != "" && (a.AccessToken == nil || *a.AccessToken != who.Token)) {
		return nil, actor.ErrTokenInvalid
	}
	if !a.TokenValid(now) {
		return nil, actor.ErrTokenExpired
	}
	return a, nil
}

// ActorOfPolicy loads actorID and checks that it belongs to p (and has
// kind, when kind is set). A mismatch reads as not found.
func ActorOfPolicy(ctx context.Context, actors actor.Repository, p *policy.Policy, kind actor.Kind, actorID string) (*actor.Actor, error) {
	a, err := actors.GetByActorID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if a.PolicyID != p.ID || (kind != "" && a.Kind != kind) {
		return nil, actor.ErrNotFound
	}
	return a, nil
}
