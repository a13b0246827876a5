// Package access decides whether a user may perform an action on a company.
//
// Company mutations belong to the owner alone and are checked against
// Company.OwnerID. Everything else is ranked by the caller's member role.
package access

import (
	"context"

	"github.com/google/uuid"

	"github.com/victornm/orgquiz/internal/domain"
	"github.com/victornm/orgquiz/internal/errors"
	"github.com/victornm/orgquiz/internal/store"
)

type Action string

const (
	ActionUpdateCompany          Action = "company.update"
	ActionDeleteCompany          Action = "company.delete"
	ActionChangeCompanyStatus    Action = "company.change_status"
	ActionChangeCompanyLogo      Action = "company.change_logo"
	ActionInviteUser             Action = "company.invite"
	ActionViewCompanyInvitations Action = "company.view_invitations"
	ActionChangeMemberRole       Action = "member.change_role"
	ActionRemoveMember           Action = "member.remove"

	ActionViewAdmins  Action = "member.view_admins"
	ActionCreateQuiz  Action = "quiz.create"
	ActionUpdateQuiz  Action = "quiz.update"
	ActionDeleteQuiz  Action = "quiz.delete"
	ActionReadQuiz    Action = "quiz.read"
	ActionAttemptQuiz Action = "quiz.attempt"
)

var ownerOnly = map[Action]bool{
	ActionUpdateCompany:          true,
	ActionDeleteCompany:          true,
	ActionChangeCompanyStatus:    true,
	ActionChangeCompanyLogo:      true,
	ActionInviteUser:             true,
	ActionViewCompanyInvitations: true,
	ActionChangeMemberRole:       true,
	ActionRemoveMember:           true,
}

// minRole is the lowest member role allowed to perform a role ranked action.
var minRole = map[Action]domain.Role{
	ActionViewAdmins:  domain.RoleAdmin,
	ActionCreateQuiz:  domain.RoleAdmin,
	ActionUpdateQuiz:  domain.RoleAdmin,
	ActionDeleteQuiz:  domain.RoleOwner,
	ActionReadQuiz:    domain.RoleMember,
	ActionAttemptQuiz: domain.RoleMember,
}

// OwnerOnly reports whether a is reserved to the company owner.
func (a Action) OwnerOnly() bool {
	return ownerOnly[a]
}

// Allowed reports whether actorID may perform a on c. m is the actor's
// membership in c and may be nil when the actor is not a member.
func Allowed(a Action, c *domain.Company, actorID uuid.UUID, m *domain.CompanyMember) bool {
	if a.OwnerOnly() {
		return c.OwnerID == actorID
	}

	least, ok := minRole[a]
	if !ok || m == nil || m.CompanyID != c.ID || m.UserID != actorID {
		return false
	}
	return m.Role.AtLeast(least)
}

// Grant is the outcome of a successful Authorize.
type Grant struct {
	Company *domain.Company
	// Member is nil for owner only actions.
	Member *domain.CompanyMember
}

// Authorize loads the company and, for role ranked actions, the actor's
// membership through s, then checks a. A missing company is ObjectNotFound,
// an actor lacking the right is PermissionDenied.
func Authorize(ctx context.Context, s store.Store, actorID, companyID uuid.UUID, a Action) (*Grant, error) {
	c, err := s.GetCompany(ctx, companyID, store.AnyOwner)
	if err != nil {
		return nil, err
	}

	if a.OwnerOnly() {
		if !Allowed(a, c, actorID, nil) {
			return nil, errors.PermissionDenied("Only the company owner can perform this action.")
		}
		return &Grant{Company: c}, nil
	}

	m, err := s.GetMember(ctx, c.ID, actorID)
	if errors.Is(err, errors.CodeNotFound) {
		return nil, errors.PermissionDenied("User is not a member of the company.")
	}
	if err != nil {
		return nil, err
	}

	if !Allowed(a, c, actorID, m) {
		return nil, errors.PermissionDenied("User role %s is not allowed to perform this action.", m.Role)
	}
	return &Grant{Company: c, Member: m}, nil
}
