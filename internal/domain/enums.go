package domain

type CompanyStatus string

const (
	CompanyStatusHidden  CompanyStatus = "hidden"
	CompanyStatusVisible CompanyStatus = "visible"
)

func (s CompanyStatus) Valid() bool {
	return s == CompanyStatusHidden || s == CompanyStatusVisible
}

// Role of a user inside a company, ranked OWNER > ADMIN > MEMBER.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

var roleRank = map[Role]int{
	RoleMember: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r ranks the same as or above o.
func (r Role) AtLeast(o Role) bool {
	return r.Valid() && roleRank[r] >= roleRank[o]
}

type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusDeclined InvitationStatus = "declined"
	InvitationStatusRejected InvitationStatus = "rejected"
	InvitationStatusCanceled InvitationStatus = "canceled"
)

func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationStatusPending, InvitationStatusAccepted, InvitationStatusDeclined,
		InvitationStatusRejected, InvitationStatusCanceled:
		return true
	}
	return false
}

// Terminal statuses never change again.
func (s InvitationStatus) Terminal() bool {
	return s.Valid() && s != InvitationStatusPending
}

// InvitationType tells who initiated the invitation.
type InvitationType string

const (
	// InvitationTypeCompanyInvite is issued by the company owner toward a user.
	InvitationTypeCompanyInvite InvitationType = "company_invite"
	// InvitationTypeUserRequest is issued by a user toward a company.
	InvitationTypeUserRequest InvitationType = "user_request"
)

func (t InvitationType) Valid() bool {
	return t == InvitationTypeCompanyInvite || t == InvitationTypeUserRequest
}
