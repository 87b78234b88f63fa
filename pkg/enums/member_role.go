package enums

// MemberRole is the role claim of an access token.
type MemberRole string

const (
	// MemberRoleAdmin is a platform operator. Admin tokens are not tied to an organization.
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleOwner  MemberRole = "owner"
	MemberRoleMember MemberRole = "member"
)

func (m MemberRole) String() string { return string(m) }

func (m MemberRole) IsValid() bool {
	switch m {
	case MemberRoleAdmin, MemberRoleOwner, MemberRoleMember:
		return true
	}
	return false
}

// OrganizationScoped reports whether tokens with this role must name an organization.
func (m MemberRole) OrganizationScoped() bool {
	return m == MemberRoleOwner || m == MemberRoleMember
}
