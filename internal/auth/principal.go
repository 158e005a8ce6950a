// Package auth defines the two credential kinds the service accepts: staff
// sessions carried in a JWT, and actor capability tokens.
package auth

import (
	"context"

	"leaseprotect/internal/domain/actor"
)

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleStaff  Role = "STAFF"
	RoleBroker Role = "BROKER"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleStaff || r == RoleBroker }

// Principal is either a Session or an ActorToken. Switch on the concrete
// type; there is no third implementation.
type Principal interface {
	// Subject is a stable string used for idempotency scoping and audit.
	Subject() string
	isPrincipal()
}

type Session struct {
	UserID string
	Role   Role
	Email  string
}

func (s Session) Subject() string { return "staff:" + s.UserID }
func (Session) isPrincipal()      {}

type ActorToken struct {
	ActorID  string
	PolicyID string
	Kind     actor.Kind
	// Token is the presented capability; writes re-check it against the row.
	Token string
}

func (a ActorToken) Subject() string { return "actor:" + a.ActorID }
func (ActorToken) isPrincipal()      {}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// SessionFrom returns the staff session on ctx, if that is what it holds.
func SessionFrom(ctx context.Context) (Session, bool) {
	p, _ := FromContext(ctx)
	s, ok := p.(Session)
	return s, ok
}
