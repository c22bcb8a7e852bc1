package session

import "strings"

// Authority is a watcher role's authority level
type Authority string

const (
	// AuthorityPeer observes and suggests
	AuthorityPeer Authority = "peer"
	// AuthoritySupervisor may inject directives into the watched session
	AuthoritySupervisor Authority = "supervisor"
)

// ParseAuthority parses an authority case-insensitively; empty means Peer.
func ParseAuthority(s string) (Authority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "peer":
		return AuthorityPeer, nil
	case "supervisor":
		return AuthoritySupervisor, nil
	default:
		return "", validationError("authority", "invalid authority %q: must be peer or supervisor", s)
	}
}

// DisplayName is the capitalized form used in watcher prefixes
func (a Authority) DisplayName() string {
	if a == AuthoritySupervisor {
		return "Supervisor"
	}
	return "Peer"
}

// Role marks a session as a watcher with a name and authority
type Role struct {
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Authority   Authority `json:"authority"`

	// AutoInject injects parsed interjections into the parent automatically
	AutoInject bool `json:"auto_inject"`
}

// NewRole validates and builds a role. AutoInject defaults to true.
func NewRole(name string, description *string, authority string) (*Role, error) {
	if strings.TrimSpace(name) == "" {
		return nil, validationError("name", "role name cannot be empty")
	}
	auth, err := ParseAuthority(authority)
	if err != nil {
		return nil, err
	}

	var desc *string
	if description != nil {
		d := *description
		desc = &d
	}
	return &Role{Name: name, Description: desc, Authority: auth, AutoInject: true}, nil
}

func (r *Role) clone() *Role {
	if r == nil {
		return nil
	}
	c := *r
	if r.Description != nil {
		d := *r.Description
		c.Description = &d
	}
	return &c
}

// RoleOption adjusts a role built by SetRole
type RoleOption func(*Role)

// WithAutoInject sets whether interjections are injected automatically
func WithAutoInject(enabled bool) RoleOption {
	return func(r *Role) { r.AutoInject = enabled }
}
