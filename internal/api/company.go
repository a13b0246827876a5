package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/orgquiz/internal/company"
	"github.com/victornm/orgquiz/internal/domain"
)

type CreateCompanyBody struct {
	Name        string               `json:"name"`
	Email       string               `json:"email"`
	Address     string               `json:"address"`
	Phone       string               `json:"phone"`
	Website     string               `json:"website"`
	Description string               `json:"description"`
	Status      domain.CompanyStatus `json:"status"`
}

func (a *API) CreateCompany(c *gin.Context) {
	var body CreateCompanyBody
	if !bindJSON(c, &body) {
		return
	}

	co, err := a.cs.CreateCompany(c.Request.Context(), company.CreateCompanyRequest{
		ActorID:     actorID(c),
		Name:        body.Name,
		Email:       body.Email,
		Address:     body.Address,
		Phone:       body.Phone,
		Website:     body.Website,
		Description: body.Description,
		Status:      body.Status,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toCompany(*co))
}

func (a *API) GetCompany(c *gin.Context) {
	id, ok := pathID(c, "company_id")
	if !ok {
		return
	}

	co, err := a.cs.GetCompany(c.Request.Context(), company.GetCompanyRequest{CompanyID: id})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCompany(*co))
}

// UpdateCompanyBody fields left out of the JSON are not changed.
type UpdateCompanyBody struct {
	Name        *string               `json:"name"`
	Address     *string               `json:"address"`
	Phone       *string               `json:"phone"`
	Website     *string               `json:"website"`
	Description *string               `json:"description"`
	Status      *domain.CompanyStatus `json:"status"`
}

func (a *API) UpdateCompany(c *gin.Context) {
	id, ok := pathID(c, "company_id")
	if !ok {
		return
	}

	var body UpdateCompanyBody
	if !bindJSON(c, &body) {
		return
	}

	co, err := a.cs.UpdateCompany(c.Request.Context(), company.UpdateCompanyRequest{
		ActorID:     actorID(c),
		CompanyID:   id,
		Name:        body.Name,
		Address:     body.Address,
		Phone:       body.Phone,
		Website:     body.Website,
		Description: body.Description,
		Status:      body.Status,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCompany(*co))
}

func (a *API) ChangeCompanyStatus(c *gin.Context) {
	id, ok := pathID(c, "company_id")
	if !ok {
		return
	}

	var body struct {
		Status domain.CompanyStatus `json:"status"`
	}
	if !bindJSON(c, &body) {
		return
	}

	co, err := a.cs.ChangeCompanyStatus(c.Request.Context(), company.ChangeCompanyStatusRequest{
		ActorID:   actorID(c),
		CompanyID: id,
		Status:    body.Status,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCompany(*co))
}

func (a *API) ChangeCompanyLogo(c *gin.Context) {
	id, ok := pathID(c, "company_id")
	if !ok {
		return
	}

	var body struct {
		LogoURL string `json:"logo_url"`
	}
	if !bindJSON(c, &body) {
		return
	}

	co, err := a.cs.ChangeCompanyLogo(c.Request.Context(), company.ChangeCompanyLogoRequest{
		ActorID:   actorID(c),
		CompanyID: id,
		LogoURL:   body.LogoURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCompany(*co))
}

func (a *API) DeleteCompany(c *gin.Context) {
	id, ok := pathID(c, "company_id")
	if !ok {
		return
	}

	if err := a.cs.DeleteCompany(c.Request.Context(), company.DeleteCompanyRequest{
		ActorID:   actorID(c),
		CompanyID: id,
	}); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) ListVisibleCompanies(c *gin.Context) {
	limit, offset, ok := pageQuery(c)
	if !ok {
		return
	}

	p, err := a.cs.ListVisibleCompanies(c.Request.Context(), company.ListCompaniesRequest{Limit: limit, Offset: offset})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPage(p, toCompany))
}

func (a *API) ListOwnedCompanies(c *gin.Context) {
	a.listUserCompanies(c, a.cs.ListOwnedCompanies)
}

func (a *API) ListJoinedCompanies(c *gin.Context) {
	a.listUserCompanies(c, a.cs.ListJoinedCompanies)
}

func (a *API) listUserCompanies(c *gin.Context, list func(ctx context.Context, req company.ListUserCompaniesRequest) (*domain.Page[domain.Company], error)) {
	limit, offset, ok := pageQuery(c)
	if !ok {
		return
	}

	p, err := list(c.Request.Context(), company.ListUserCompaniesRequest{
		ActorID:              actorID(c),
		ListCompaniesRequest: company.ListCompaniesRequest{Limit: limit, Offset: offset},
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPage(p, toCompany))
}
