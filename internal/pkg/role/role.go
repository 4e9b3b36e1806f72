// Package role defines the closed set of portal roles and the requirement
// values the authorization gate checks them against.
package role

import (
	"fmt"
	"strings"
)

type Role string

const (
	User    Role = "user"
	Officer Role = "officer"
	Admin   Role = "admin"
)

// All lists every role in privilege order.
var All = []Role{User, Officer, Admin}

// Parse accepts exactly the known role names, case-insensitively.
func Parse(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if r.Valid() {
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

func (r Role) Valid() bool {
	switch r {
	case User, Officer, Admin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// DashboardPath is where a signed in user of this role lands.
func (r Role) DashboardPath() string {
	switch r {
	case Admin:
		return "/admin/dashboard"
	case Officer:
		return "/officer/dashboard"
	default:
		return "/user/dashboard"
	}
}

// Requirement describes which roles may pass a gate. The zero value is Any.
type Requirement struct {
	roles []Role
}

// Any admits every authenticated session regardless of role.
var Any = Requirement{}

// Exactly admits one role.
func Exactly(r Role) Requirement {
	return Requirement{roles: []Role{r}}
}

// OneOf admits membership in a set.
func OneOf(roles ...Role) Requirement {
	out := make([]Role, len(roles))
	copy(out, roles)
	return Requirement{roles: out}
}

func (q Requirement) IsAny() bool { return len(q.roles) == 0 }

// Allows reports whether r passes. Unknown roles never pass, not even Any.
func (q Requirement) Allows(r Role) bool {
	if !r.Valid() {
		return false
	}
	if q.IsAny() {
		return true
	}
	for _, want := range q.roles {
		if want == r {
			return true
		}
	}
	return false
}

func (q Requirement) String() string {
	if q.IsAny() {
		return "any"
	}
	names := make([]string, len(q.roles))
	for i, r := range q.roles {
		names[i] = string(r)
	}
	return strings.Join(names, "|")
}
