// Package guard decides which commands a signed-in role may run. The backend
// enforces the same rules; the guard only avoids a round trip that is bound
// to fail and gives a clearer message.
package guard

import (
	"errors"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/KBTrotter/ent-triage-system/pkg/sdk"
)

// Objects guarded by the CLI.
const (
	ObjectCases = "cases"
	ObjectUsers = "users"
)

// Actions on guarded objects.
const (
	ActionRead  = "read"
	ActionWrite = "write"
)

// ErrDenied is returned by Check when the role may not perform the action.
var ErrDenied = errors.New("permission denied")

const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && (p.act == "*" || r.act == p.act)
`

// Every clinical role works the case queue; only admins manage accounts.
var (
	policies = [][]string{
		{string(sdk.RolePhysician), ObjectCases, "*"},
		{string(sdk.RoleStaff), ObjectCases, "*"},
		{string(sdk.RoleAdmin), ObjectUsers, "*"},
	}
	groupings = [][]string{
		{string(sdk.RoleAdmin), string(sdk.RolePhysician)},
	}
)

// Guard wraps a casbin enforcer loaded with the role policies.
type Guard struct {
	enforcer *casbin.Enforcer
}

// New builds the enforcer from the embedded model and policies.
func New() (*Guard, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("parse guard model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create guard enforcer: %w", err)
	}
	if _, err := enforcer.AddPolicies(policies); err != nil {
		return nil, fmt.Errorf("load guard policies: %w", err)
	}
	if _, err := enforcer.AddGroupingPolicies(groupings); err != nil {
		return nil, fmt.Errorf("load guard role inheritance: %w", err)
	}
	return &Guard{enforcer: enforcer}, nil
}

// Allowed reports whether role may perform act on obj.
func (g *Guard) Allowed(role sdk.Role, obj, act string) (bool, error) {
	if role == "" {
		return false, nil
	}
	return g.enforcer.Enforce(string(role), obj, act)
}

// Check returns ErrDenied when role may not perform act on obj.
func (g *Guard) Check(role sdk.Role, obj, act string) error {
	ok, err := g.Allowed(role, obj, act)
	if err != nil {
		return fmt.Errorf("evaluating permissions: %w", err)
	}
	if !ok {
		label := role.Label()
		if label == "" {
			label = "unauthenticated"
		}
		return fmt.Errorf("%w: %s users cannot %s %s", ErrDenied, label, act, obj)
	}
	return nil
}
