package common

// Role is the coarse-grained capability class of a caller. Roles gate
// which system-owned resources a caller may read and which mutating
// routes are open to them; fine-grained visibility is decided per
// resource by the access policy.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleAnalyst   Role = "analyst"
	RolePM        Role = "pm"
	RoleViewer    Role = "viewer"
	RoleDeveloper Role = "developer"
	RoleAgent     Role = "agent"
)

// SystemOwnerID is the synthetic owner of resources ingested by
// background syncs rather than by a person.
const SystemOwnerID = "system"

// AccessLevel declares how widely a resource is shared inside its tenant.
type AccessLevel string

const (
	AccessPrivate AccessLevel = "private"
	AccessTeam    AccessLevel = "team"
	AccessProject AccessLevel = "project"
	AccessTenant  AccessLevel = "tenant"
)

// Valid reports whether a is a known access level.
func (a AccessLevel) Valid() bool {
	switch a {
	case AccessPrivate, AccessTeam, AccessProject, AccessTenant:
		return true
	}
	return false
}

// SecurityContext identifies the caller for one request. It is built
// from verified token claims by the auth middleware and threaded through
// every store read and write; no query runs without one.
type SecurityContext struct {
	UserID    string   `json:"user_id"`
	TenantID  string   `json:"tenant_id"`
	Roles     []Role   `json:"roles"`
	Groups    []string `json:"groups"`
	ProjectID *string  `json:"project_id,omitempty"`
}

// HasRole reports whether the caller carries the given role.
func (s SecurityContext) HasRole(r Role) bool {
	for _, have := range s.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the caller is a tenant-scoped administrator.
// Admin rights never cross tenant boundaries.
func (s SecurityContext) IsAdmin() bool {
	return s.HasRole(RoleAdmin)
}

// Ownership is the access-control shape shared by every protected
// resource kind. Documents, chunks, and connectors all embed it so a
// single policy can decide visibility for any of them.
type Ownership struct {
	TenantID    string      `json:"tenant_id"`
	UserID      string      `json:"user_id"`
	ProjectID   *string     `json:"project_id,omitempty"`
	AccessLevel AccessLevel `json:"access_level"`
	ACLGroups   []string    `json:"acl_groups"`
}
