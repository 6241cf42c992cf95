package domain

import "time"

// Role determines what an API key may do against the audit core.
type Role string

const (
	// RoleService identifies an internal collaborator that records events.
	RoleService Role = "service"
	// RoleAuditor gets unrestricted read access plus the privileged
	// operations (summary, search, integrity, immutability self-test).
	RoleAuditor Role = "auditor"
	// RoleMember reads only entries whose actor is the key's own identity.
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	switch r {
	case RoleService, RoleAuditor, RoleMember:
		return true
	}
	return false
}

type APIKey struct {
	TokenHash string
	TenantID  string
	Name      string
	Role      Role
	Active    bool
	CreatedAt time.Time
}

// ReadScope maps the key's role to the access scope applied to every read.
func (k APIKey) ReadScope() AccessScope {
	if k.Role == RoleAuditor {
		return Unrestricted()
	}
	return OwnedBy(k.Name)
}
