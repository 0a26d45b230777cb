package auth

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the authorization level attached to a session.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleAnalyst Role = "ANALYST"
	RoleViewer  Role = "VIEWER"
)

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if r.rank() == 0 {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// rank orders roles by privilege; 0 means invalid.
func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleAnalyst:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r.rank() > 0 }

// AtLeast reports whether r grants at least the privileges of other.
func (r Role) AtLeast(other Role) bool { return r.rank() >= other.rank() && r.Valid() }

// Session is the authenticated identity held for the current user.
// Its JSON form is the persisted record.
type Session struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

// Validate checks the fields every stored session must carry.
func (s *Session) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("session has no id")
	}
	if !s.Role.Valid() {
		return fmt.Errorf("session has invalid role %q", s.Role)
	}
	return nil
}

// Clone returns an independent copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// DisplayName falls back to the email when no name was asserted.
func (s *Session) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Email
}

func encodeSession(s *Session) ([]byte, error) {
	return json.Marshal(s)
}

// decodeSession parses a stored record. Anything that does not decode into a
// valid session is an error; callers treat that as "no session".
func decodeSession(data []byte) (*Session, error) {
	var s *Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("malformed session record: %w", err)
	}
	if s == nil {
		return nil, fmt.Errorf("malformed session record: null")
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("malformed session record: %w", err)
	}
	return s, nil
}
