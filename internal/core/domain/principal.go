package domain

// Principal is the authenticated identity attached to a single request.
// It is built by the request filter and never persisted.
type Principal struct {
	AccountID   string
	Username    string
	Role        Role
	Authorities []string
}

// NewPrincipal derives a Principal from a stored account.
func NewPrincipal(a *Account) *Principal {
	return &Principal{
		AccountID:   a.ID,
		Username:    a.Username,
		Role:        a.Role,
		Authorities: []string{a.Role.Authority()},
	}
}

// IsAdmin reports whether the principal carries the ADMIN role.
// A nil principal is never an admin.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// HasAuthority reports whether authority was granted to p.
func (p *Principal) HasAuthority(authority string) bool {
	if p == nil {
		return false
	}
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}
