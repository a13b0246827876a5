package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/orgquiz/internal/domain"
	"github.com/victornm/orgquiz/internal/membership"
)

func (a *API) InviteUser(c *gin.Context) {
	id, ok := pathID(c, "company_id")
	if !ok {
		return
	}

	var body struct {
		Email string `json:"email"`
	}
	if !bindJSON(c, &body) {
		return
	}

	inv, err := a.ms.InviteUser(c.Request.Context(), membership.InviteUserRequest{
		ActorID:   actorID(c),
		CompanyID: id,
		Email:     body.Email,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toInvitation(*inv))
}

func (a *API) RequestMembership(c *gin.Context) {
	id, ok := pathID(c, "company_id")
	if !ok {
		return
	}

	inv, err := a.ms.RequestMembership(c.Request.Context(), membership.RequestMembershipRequest{
		ActorID:   actorID(c),
		CompanyID: id,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toInvitation(*inv))
}

func (a *API) AcceptInvitation(c *gin.Context) {
	a.respond(c, a.ms.AcceptInvitation)
}

func (a *API) DeclineInvitation(c *gin.Context) {
	a.respond(c, a.ms.DeclineInvitation)
}

func (a *API) CancelInvitation(c *gin.Context) {
	a.respond(c, a.ms.CancelInvitation)
}

func (a *API) respond(c *gin.Context, fn func(ctx context.Context, req membership.RespondInvitationRequest) (*domain.Invitation, error)) {
	id, ok := pathID(c, "invitation_id")
	if !ok {
		return
	}

	inv, err := fn(c.Request.Context(), membership.RespondInvitationRequest{
		ActorID:      actorID(c),
		InvitationID: id,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toInvitation(*inv))
}

func (a *API) LeaveCompany(c *gin.Context) {
	id, ok := pathID(c, "company_id")
	if !ok {
		return
	}

	if err := a.ms.LeaveCompany(c.Request.Context(), membership.LeaveCompanyRequest{
		ActorID:   actorID(c),
		CompanyID: id,
	}); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) RemoveMember(c *gin.Context) {
	companyID, ok := pathID(c, "company_id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	if err := a.ms.RemoveMember(c.Request.Context(), membership.RemoveMemberRequest{
		ActorID:   actorID(c),
		CompanyID: companyID,
		UserID:    userID,
	}); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) ChangeMemberRole(c *gin.Context) {
	companyID, ok := pathID(c, "company_id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	var body struct {
		Role domain.Role `json:"role"`
	}
	if !bindJSON(c, &body) {
		return
	}

	m, err := a.ms.ChangeMemberRole(c.Request.Context(), membership.ChangeMemberRoleRequest{
		ActorID:   actorID(c),
		CompanyID: companyID,
		UserID:    userID,
		Role:      body.Role,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, CompanyMember{CompanyID: m.CompanyID, UserID: m.UserID, Role: m.Role})
}

func (a *API) ListUserInvitations(c *gin.Context) {
	invs, err := a.ms.ListUserInvitations(c.Request.Context(), membership.ListUserInvitationsRequest{
		ActorID: actorID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSlice(invs, toInvitationDetail))
}

func (a *API) ListCompanyInvitations(c *gin.Context) {
	id, ok := pathID(c, "company_id")
	if !ok {
		return
	}

	invs, err := a.ms.ListCompanyInvitations(c.Request.Context(), membership.ListCompanyInvitationsRequest{
		ActorID:   actorID(c),
		CompanyID: id,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSlice(invs, toInvitationDetail))
}

func (a *API) GetCompanyMembers(c *gin.Context) {
	id, ok := pathID(c, "company_id")
	if !ok {
		return
	}

	ms, err := a.ms.GetCompanyMembers(c.Request.Context(), membership.GetCompanyMembersRequest{CompanyID: id})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := CompanyMembers{
		Company: toCompany(ms.Company),
		Members: toSlice(ms.Members, toMember),
	}
	if ms.Owner != nil {
		o := toMember(*ms.Owner)
		resp.Owner = &o
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) GetCompanyAdmins(c *gin.Context) {
	id, ok := pathID(c, "company_id")
	if !ok {
		return
	}

	admins, err := a.ms.GetCompanyAdmins(c.Request.Context(), membership.GetCompanyAdminsRequest{
		ActorID:   actorID(c),
		CompanyID: id,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSlice(admins, toMember))
}
