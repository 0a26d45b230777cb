package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Identity is what an identity provider asserts about the signed-in user.
type Identity struct {
	Subject string
	Name    string
	Email   string
	Groups  []string
	Avatar  string
}

// IdentityProvider performs the interactive round trip. Authenticate must
// return promptly with ctx.Err() once ctx is cancelled.
type IdentityProvider interface {
	Name() string
	Authenticate(ctx context.Context) (*Identity, error)
}

// RoleMapper turns directory group membership into a role. When a user is in
// several mapped groups the most privileged role wins; users in no mapped
// group get the fallback.
type RoleMapper struct {
	groups   map[string]Role
	fallback Role
}

// NewRoleMapper builds a mapper from group -> role name. Group names are
// matched case-insensitively.
func NewRoleMapper(mapping map[string]string) (*RoleMapper, error) {
	m := &RoleMapper{groups: make(map[string]Role, len(mapping)), fallback: RoleViewer}
	for group, name := range mapping {
		role, err := ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("role mapping for group %q: %w", group, err)
		}
		m.groups[strings.ToLower(group)] = role
	}
	return m, nil
}

// Resolve returns the role for a set of groups.
func (m *RoleMapper) Resolve(groups []string) Role {
	best := m.fallback
	for _, g := range groups {
		if r, ok := m.groups[strings.ToLower(g)]; ok && r.rank() > best.rank() {
			best = r
		}
	}
	return best
}

// Groups lists the mapped groups, sorted.
func (m *RoleMapper) Groups() []string {
	out := make([]string, 0, len(m.groups))
	for g := range m.groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

func (m *RoleMapper) session(id *Identity) (*Session, error) {
	if id == nil || strings.TrimSpace(id.Subject) == "" {
		return nil, fmt.Errorf("identity provider returned no subject")
	}
	s := &Session{
		ID:     id.Subject,
		Name:   id.Name,
		Email:  id.Email,
		Role:   m.Resolve(id.Groups),
		Avatar: id.Avatar,
	}
	return s, s.Validate()
}
