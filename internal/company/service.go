package company

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

type CreateCompanyRequest struct {
	ActorID     uuid.UUID `validate:"required"`
	Name        string    `validate:"required,max=255"`
	Email       string    `validate:"required,email"`
	Address     string    `validate:"max=255"`
	Phone       string    `validate:"max=32"`
	Website     string    `validate:"omitempty,url"`
	Description string
	// Status defaults to visible.
	Status domain.CompanyStatus `validate:"omitempty,oneof=hidden visible"`
}

// CreateCompany creates a company owned by the actor together with the
// actor's OWNER membership.
func (s *Service) CreateCompany(ctx context.Context, req CreateCompanyRequest) (*domain.Company, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = domain.CompanyStatusVisible
	}

	c := &domain.Company{
		Name:        req.Name,
		Address:     req.Address,
		Email:       req.Email,
		Phone:       req.Phone,
		Website:     req.Website,
		Description: req.Description,
		Status:      status,
		OwnerID:     req.ActorID,
	}

	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		taken, err := tx.CompanyEmailTaken(ctx, req.ActorID, req.Email)
		if err != nil {
			return err
		}
		if taken {
			return errors.AlreadyExists("Company with this email already exists.")
		}

		if err := tx.CreateCompany(ctx, c); err != nil {
			return err
		}

		return tx.AddMember(ctx, &domain.CompanyMember{
			CompanyID: c.ID,
			UserID:    req.ActorID,
			Role:      domain.RoleOwner,
		})
	})
	if err != nil {
		return nil, err
	}

	return c, nil
}

type GetCompanyRequest struct {
	CompanyID uuid.UUID
}

func (s *Service) GetCompany(ctx context.Context, req GetCompanyRequest) (*domain.Company, error) {
	return s.store.GetCompany(ctx, req.CompanyID, store.AnyOwner)
}

// UpdateCompanyRequest is a partial update. Nil fields are left unchanged,
// a pointer to an empty string clears the field.
type UpdateCompanyRequest struct {
	ActorID     uuid.UUID
	CompanyID   uuid.UUID
	Name        *string               `validate:"omitempty,min=1,max=255"`
	Address     *string               `validate:"omitempty,max=255"`
	Phone       *string               `validate:"omitempty,max=32"`
	Website     *string               `validate:"omitempty,url"`
	Description *string               `validate:"omitempty"`
	Status      *domain.CompanyStatus `validate:"omitempty,oneof=hidden visible"`
}

func (s *Service) UpdateCompany(ctx context.Context, req UpdateCompanyRequest) (*domain.Company, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	return s.update(ctx, req.ActorID, req.CompanyID, access.ActionUpdateCompany, domain.CompanyUpdate{
		Name:        req.Name,
		Address:     req.Address,
		Phone:       req.Phone,
		Website:     req.Website,
		Description: req.Description,
		Status:      req.Status,
	})
}

type ChangeCompanyStatusRequest struct {
	ActorID   uuid.UUID
	CompanyID uuid.UUID
	Status    domain.CompanyStatus `validate:"required,oneof=hidden visible"`
}

func (s *Service) ChangeCompanyStatus(ctx context.Context, req ChangeCompanyStatusRequest) (*domain.Company, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	return s.update(ctx, req.ActorID, req.CompanyID, access.ActionChangeCompanyStatus, domain.CompanyUpdate{
		Status: &req.Status,
	})
}

type ChangeCompanyLogoRequest struct {
	ActorID   uuid.UUID
	CompanyID uuid.UUID
	// LogoURL points at an already uploaded image. Empty removes the logo.
	LogoURL string `validate:"omitempty,url"`
}

func (s *Service) ChangeCompanyLogo(ctx context.Context, req ChangeCompanyLogoRequest) (*domain.Company, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	return s.update(ctx, req.ActorID, req.CompanyID, access.ActionChangeCompanyLogo, domain.CompanyUpdate{
		LogoURL: &req.LogoURL,
	})
}

func (s *Service) update(ctx context.Context, actorID, companyID uuid.UUID, a access.Action, u domain.CompanyUpdate) (*domain.Company, error) {
	var c *domain.Company
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		g, err := access.Authorize(ctx, tx, actorID, companyID, a)
		if err != nil {
			return err
		}

		c = g.Company
		if u.Empty() {
			return nil
		}
		u.Apply(c)
		return tx.UpdateCompany(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	return c, nil
}

type DeleteCompanyRequest struct {
	ActorID   uuid.UUID
	CompanyID uuid.UUID
}

// DeleteCompany removes the company with its members, invitations and quizzes.
func (s *Service) DeleteCompany(ctx context.Context, req DeleteCompanyRequest) error {
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := access.Authorize(ctx, tx, req.ActorID, req.CompanyID, access.ActionDeleteCompany); err != nil {
			return err
		}
		return tx.DeleteCompany(ctx, req.CompanyID)
	})
	if err != nil {
		return err
	}

	s.eb.Publish(ctx, domain.EventCompanyDeleted{CompanyID: req.CompanyID})
	return nil
}

type ListCompaniesRequest struct {
	Limit  int
	Offset int
}

// ListVisibleCompanies lists every visible company, newest first.
func (s *Service) ListVisibleCompanies(ctx context.Context, req ListCompaniesRequest) (*domain.Page[domain.Company], error) {
	return s.list(ctx, store.CompanyQuery{VisibleOnly: true}, req)
}

type ListUserCompaniesRequest struct {
	ActorID uuid.UUID
	ListCompaniesRequest
}

// ListOwnedCompanies lists the companies owned by the actor, hidden ones included.
func (s *Service) ListOwnedCompanies(ctx context.Context, req ListUserCompaniesRequest) (*domain.Page[domain.Company], error) {
	return s.list(ctx, store.CompanyQuery{OwnerID: req.ActorID}, req.ListCompaniesRequest)
}

// ListJoinedCompanies lists the companies the actor is a member of without owning them.
func (s *Service) ListJoinedCompanies(ctx context.Context, req ListUserCompaniesRequest) (*domain.Page[domain.Company], error) {
	return s.list(ctx, store.CompanyQuery{MemberID: req.ActorID}, req.ListCompaniesRequest)
}

func (s *Service) list(ctx context.Context, q store.CompanyQuery, req ListCompaniesRequest) (*domain.Page[domain.Company], error) {
	limit, offset, err := validate.Page(req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	q.Limit, q.Offset = limit, offset

	items, total, err := s.store.ListCompanies(ctx, q)
	if err != nil {
		return nil, err
	}

	return &domain.Page[domain.Company]{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}
