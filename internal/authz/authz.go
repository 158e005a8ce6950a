// Package authz answers "may this staff session do X to this policy".
package authz

import (
	"fmt"

	"leaseprotect/internal/auth"
	"leaseprotect/internal/domain/apperr"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

type Action string

const (
	ActionRead     Action = "read"
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionVerify   Action = "verify"
	ActionOverride Action = "override"
	ActionCancel   Action = "cancel"
	ActionContract Action = "contract"
)

const (
	objOwn = "policy:own"
	objAny = "policy:any"
)

const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// DefaultRules: admins and staff act on any policy; brokers only on their
// own, and cannot verify actors or handle contracts.
var DefaultRules = [][]string{
	{string(auth.RoleAdmin), objAny, "*"},
	{string(auth.RoleAdmin), objOwn, "*"},
	{string(auth.RoleStaff), objAny, "*"},
	{string(auth.RoleStaff), objOwn, "*"},
	{string(auth.RoleBroker), objOwn, string(ActionRead)},
	{string(auth.RoleBroker), objOwn, string(ActionCreate)},
	{string(auth.RoleBroker), objOwn, string(ActionUpdate)},
	{string(auth.RoleBroker), objOwn, string(ActionOverride)},
	{string(auth.RoleBroker), objOwn, string(ActionCancel)},
}

var ErrForbidden = apperr.Forbidden("forbidden", "no tiene permiso para realizar esta acción sobre la póliza")

// Checker is what usecases depend on.
type Checker interface {
	Can(s auth.Session, act Action, ownerID string) (bool, error)
	Require(s auth.Session, act Action, ownerID string) error
}

var _ Checker = (*Authorizer)(nil)

type Authorizer struct {
	enforcer *casbin.Enforcer
}

// New builds an enforcer from the embedded model. A non-empty policyFile is
// loaded through casbin's CSV file adapter; otherwise DefaultRules apply.
func New(policyFile string) (*Authorizer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("authz model: %w", err)
	}
	var e *casbin.Enforcer
	if policyFile != "" {
		e, err = casbin.NewEnforcer(m, fileadapter.NewAdapter(policyFile))
	} else {
		e, err = casbin.NewEnforcer(m)
		if err == nil {
			_, err = e.AddPolicies(DefaultRules)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("authz enforcer: %w", err)
	}
	return &Authorizer{enforcer: e}, nil
}

// Can reports whether s may perform act on a policy created by ownerID. An
// empty ownerID checks the capability without a concrete policy.
func (a *Authorizer) Can(s auth.Session, act Action, ownerID string) (bool, error) {
	obj := objAny
	if ownerID == "" || ownerID == s.UserID {
		obj = objOwn
	}
	ok, err := a.enforcer.Enforce(string(s.Role), obj, string(act))
	if err != nil {
		return false, fmt.Errorf("authz enforce: %w", err)
	}
	return ok, nil
}

// Require is Can folded into an error: FORBIDDEN when denied.
func (a *Authorizer) Require(s auth.Session, act Action, ownerID string) error {
	ok, err := a.Can(s, act, ownerID)
	if err != nil {
		return apperr.Infra("authz_failure", "no se pudo evaluar la autorización", err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
