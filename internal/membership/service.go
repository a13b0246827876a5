package membership

import (
	"context"

	"github.com/google/uuid"

	"github.com/victornm/orgquiz/internal/access"
	"github.com/victornm/orgquiz/internal/domain"
	"github.com/victornm/orgquiz/internal/errors"
	"github.com/victornm/orgquiz/internal/event"
	"github.com/victornm/orgquiz/internal/store"
	"github.com/victornm/orgquiz/internal/validate"
)

type Config struct {
	Store    store.Store
	EventBus *event.Bus
}

type Service struct {
	store store.Store
	eb    *event.Bus
}

func NewService(c Config) *Service {
	return &Service{
		store: c.Store,
		eb:    c.EventBus,
	}
}

func errAlreadyResponded() error {
	return errors.AlreadyExists("Invitation has already been responded to")
}

// guard rejects a new invitation when the user already belongs to the
// company or has a pending or accepted invitation to it. The pending unique
// constraint of the store still catches concurrent callers.
func guard(ctx context.Context, tx store.Store, companyID, userID uuid.UUID) error {
	_, err := tx.GetMember(ctx, companyID, userID)
	if err == nil {
		return errors.AlreadyExists("User is already a member of the company.")
	}
	if !errors.Is(err, errors.CodeNotFound) {
		return err
	}

	for _, st := range []domain.InvitationStatus{domain.InvitationStatusPending, domain.InvitationStatusAccepted} {
		exists, err := tx.InvitationExists(ctx, companyID, userID, st)
		if err != nil {
			return err
		}
		if exists {
			return errors.AlreadyExists("User is already invited or a member of the company.")
		}
	}
	return nil
}

type InviteUserRequest struct {
	ActorID   uuid.UUID
	CompanyID uuid.UUID
	// Email of the user to invite.
	Email string `validate:"required,email"`
}

// InviteUser lets the company owner invite a user by email.
func (s *Service) InviteUser(ctx context.Context, req InviteUserRequest) (*domain.Invitation, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	var (
		inv *domain.Invitation
		c   *domain.Company
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		g, err := access.Authorize(ctx, tx, req.ActorID, req.CompanyID, access.ActionInviteUser)
		if err != nil {
			return err
		}
		c = g.Company

		u, err := tx.GetUserByEmail(ctx, req.Email)
		if err != nil {
			return err
		}

		if err := guard(ctx, tx, c.ID, u.ID); err != nil {
			return err
		}

		inv = &domain.Invitation{
			CompanyID:     c.ID,
			InvitedUserID: u.ID,
			InvitedByID:   req.ActorID,
			Type:          domain.InvitationTypeCompanyInvite,
			Status:        domain.InvitationStatusPending,
		}
		return tx.CreateInvitation(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.eb.Publish(ctx, domain.EventInvitationCreated{Invitation: *inv, Company: *c})
	return inv, nil
}

type RequestMembershipRequest struct {
	ActorID   uuid.UUID
	CompanyID uuid.UUID
}

// RequestMembership lets any user ask to join a company.
func (s *Service) RequestMembership(ctx context.Context, req RequestMembershipRequest) (*domain.Invitation, error) {
	var (
		inv *domain.Invitation
		c   *domain.Company
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		c, err = tx.GetCompany(ctx, req.CompanyID, store.AnyOwner)
		if err != nil {
			return err
		}

		if err := guard(ctx, tx, c.ID, req.ActorID); err != nil {
			return err
		}

		inv = &domain.Invitation{
			CompanyID:     c.ID,
			InvitedUserID: req.ActorID,
			InvitedByID:   req.ActorID,
			Type:          domain.InvitationTypeUserRequest,
			Status:        domain.InvitationStatusPending,
		}
		return tx.CreateInvitation(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.eb.Publish(ctx, domain.EventInvitationCreated{Invitation: *inv, Company: *c})
	return inv, nil
}

type RespondInvitationRequest struct {
	ActorID      uuid.UUID
	InvitationID uuid.UUID
}

// AcceptInvitation accepts a pending invitation and adds the invited user as MEMBER.
func (s *Service) AcceptInvitation(ctx context.Context, req RespondInvitationRequest) (*domain.Invitation, error) {
	return s.respond(ctx, req, ResponseAccept)
}

// DeclineInvitation declines a company invite or rejects a membership request.
func (s *Service) DeclineInvitation(ctx context.Context, req RespondInvitationRequest) (*domain.Invitation, error) {
	return s.respond(ctx, req, ResponseDecline)
}

// CancelInvitation withdraws a pending invitation on behalf of its initiator.
func (s *Service) CancelInvitation(ctx context.Context, req RespondInvitationRequest) (*domain.Invitation, error) {
	return s.respond(ctx, req, ResponseCancel)
}

func (s *Service) respond(ctx context.Context, req RespondInvitationRequest, r Response) (*domain.Invitation, error) {
	var (
		inv *domain.Invitation
		c   *domain.Company
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		inv, err = tx.GetInvitation(ctx, req.InvitationID)
		if err != nil {
			return err
		}
		if inv.Status != domain.InvitationStatusPending {
			return errAlreadyResponded()
		}

		c, err = tx.GetCompany(ctx, inv.CompanyID, store.AnyOwner)
		if err != nil {
			return err
		}

		to, err := Transition(inv, c, req.ActorID, r)
		if err != nil {
			return err
		}

		ok, err := tx.TransitionInvitation(ctx, inv.ID, domain.InvitationStatusPending, to)
		if err != nil {
			return err
		}
		if !ok {
			return errAlreadyResponded()
		}
		inv.Status = to

		if to != domain.InvitationStatusAccepted {
			return nil
		}
		return tx.AddMember(ctx, &domain.CompanyMember{
			CompanyID: c.ID,
			UserID:    inv.InvitedUserID,
			Role:      domain.RoleMember,
		})
	})
	if err != nil {
		return nil, err
	}

	s.eb.Publish(ctx, domain.EventInvitationResponded{Invitation: *inv, Company: *c, ActorID: req.ActorID})
	return inv, nil
}

type LeaveCompanyRequest struct {
	ActorID   uuid.UUID
	CompanyID uuid.UUID
}

// LeaveCompany removes the actor from the company. The owner cannot leave.
func (s *Service) LeaveCompany(ctx context.Context, req LeaveCompanyRequest) error {
	var c *domain.Company
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		c, err = tx.GetCompany(ctx, req.CompanyID, store.AnyOwner)
		if err != nil {
			return err
		}
		return removeMember(ctx, tx, c, req.ActorID)
	})
	if err != nil {
		return err
	}

	s.eb.Publish(ctx, domain.EventMemberRemoved{Company: *c, UserID: req.ActorID, Left: true})
	return nil
}

type RemoveMemberRequest struct {
	ActorID   uuid.UUID
	CompanyID uuid.UUID
	UserID    uuid.UUID
}

// RemoveMember lets the owner remove a member from the company.
func (s *Service) RemoveMember(ctx context.Context, req RemoveMemberRequest) error {
	var c *domain.Company
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		g, err := access.Authorize(ctx, tx, req.ActorID, req.CompanyID, access.ActionRemoveMember)
		if err != nil {
			return err
		}
		c = g.Company
		return removeMember(ctx, tx, c, req.UserID)
	})
	if err != nil {
		return err
	}

	s.eb.Publish(ctx, domain.EventMemberRemoved{Company: *c, UserID: req.UserID})
	return nil
}

// removeMember deletes the membership and every invitation of the user in
// the company, leaving other users' invitations alone.
func removeMember(ctx context.Context, tx store.Store, c *domain.Company, userID uuid.UUID) error {
	m, err := tx.GetMember(ctx, c.ID, userID)
	if err != nil {
		return err
	}
	if m.Role == domain.RoleOwner {
		return errors.PermissionDenied("Company owner cannot be removed from the company.")
	}

	if err := tx.DeleteMember(ctx, c.ID, userID); err != nil {
		return err
	}
	_, err = tx.DeleteInvitations(ctx, c.ID, userID)
	return err
}

type ChangeMemberRoleRequest struct {
	ActorID   uuid.UUID
	CompanyID uuid.UUID
	UserID    uuid.UUID
	Role      domain.Role `validate:"required,oneof=admin member"`
}

// ChangeMemberRole lets the owner promote a member to ADMIN or demote an admin.
func (s *Service) ChangeMemberRole(ctx context.Context, req ChangeMemberRoleRequest) (*domain.CompanyMember, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	var (
		m *domain.CompanyMember
		c *domain.Company
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		g, err := access.Authorize(ctx, tx, req.ActorID, req.CompanyID, access.ActionChangeMemberRole)
		if err != nil {
			return err
		}
		c = g.Company

		m, err = tx.GetMember(ctx, c.ID, req.UserID)
		if err != nil {
			return err
		}
		if m.Role == domain.RoleOwner {
			return errors.PermissionDenied("Company owner role cannot be changed.")
		}

		if err := tx.UpdateMemberRole(ctx, c.ID, req.UserID, req.Role); err != nil {
			return err
		}
		m.Role = req.Role
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.eb.Publish(ctx, domain.EventMemberRoleChanged{Company: *c, Member: *m})
	return m, nil
}

type ListUserInvitationsRequest struct {
	ActorID uuid.UUID
}

// ListUserInvitations returns every invitation addressed to the actor, any status.
func (s *Service) ListUserInvitations(ctx context.Context, req ListUserInvitationsRequest) ([]domain.InvitationDetail, error) {
	return s.store.ListInvitationsForUser(ctx, req.ActorID)
}

type ListCompanyInvitationsRequest struct {
	ActorID   uuid.UUID
	CompanyID uuid.UUID
}

// ListCompanyInvitations returns every invitation of a company the actor owns.
func (s *Service) ListCompanyInvitations(ctx context.Context, req ListCompanyInvitationsRequest) ([]domain.InvitationDetail, error) {
	if _, err := access.Authorize(ctx, s.store, req.ActorID, req.CompanyID, access.ActionViewCompanyInvitations); err != nil {
		return nil, err
	}
	return s.store.ListInvitationsForCompany(ctx, req.CompanyID)
}

type GetCompanyMembersRequest struct {
	CompanyID uuid.UUID
}

// GetCompanyMembers returns the owner apart from everybody else.
func (s *Service) GetCompanyMembers(ctx context.Context, req GetCompanyMembersRequest) (*domain.CompanyMembers, error) {
	c, err := s.store.GetCompany(ctx, req.CompanyID, store.AnyOwner)
	if err != nil {
		return nil, err
	}

	all, err := s.store.ListMembers(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	out := &domain.CompanyMembers{Company: *c, Members: make([]domain.MemberUser, 0, len(all))}
	for _, m := range all {
		if m.Role == domain.RoleOwner {
			owner := m
			out.Owner = &owner
			continue
		}
		out.Members = append(out.Members, m)
	}
	return out, nil
}

type GetCompanyAdminsRequest struct {
	ActorID   uuid.UUID
	CompanyID uuid.UUID
}

// GetCompanyAdmins returns the ADMIN members. Only the owner and admins may see them.
func (s *Service) GetCompanyAdmins(ctx context.Context, req GetCompanyAdminsRequest) ([]domain.MemberUser, error) {
	if _, err := access.Authorize(ctx, s.store, req.ActorID, req.CompanyID, access.ActionViewAdmins); err != nil {
		return nil, err
	}

	all, err := s.store.ListMembers(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}

	admins := make([]domain.MemberUser, 0, len(all))
	for _, m := range all {
		if m.Role == domain.RoleAdmin {
			admins = append(admins, m)
		}
	}
	return admins, nil
}
