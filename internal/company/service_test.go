package company_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/orgquiz/internal/company"
	"github.com/victornm/orgquiz/internal/domain"
	"github.com/victornm/orgquiz/internal/errors"
	"github.com/victornm/orgquiz/internal/event"
	"github.com/victornm/orgquiz/internal/store/memory"
)

type fixture struct {
	store *memory.Store
	bus   *event.Bus
	svc   *company.Service
	owner *domain.User
	user  *domain.User
}

func makeFixture(t *testing.T) *fixture {
	t.Helper()

	s := memory.New()
	bus := event.NewBus()
	t.Cleanup(bus.Stop)

	f := &fixture{
		store: s,
		bus:   bus,
		svc:   company.NewService(company.Config{Store: s, EventBus: bus}),
		owner: &domain.User{Email: "owner@test.io"},
		user:  &domain.User{Email: "user@test.io"},
	}
	require.NoError(t, s.CreateUser(context.Background(), f.owner))
	require.NoError(t, s.CreateUser(context.Background(), f.user))
	return f
}

func (f *fixture) create(t *testing.T, email string) *domain.Company {
	t.Helper()

	c, err := f.svc.CreateCompany(context.Background(), company.CreateCompanyRequest{
		ActorID: f.owner.ID,
		Name:    "Acme",
		Email:   email,
	})
	require.NoError(t, err)
	return c
}

func TestService_CreateCompany(t *testing.T) {
	ctx := context.Background()

	tests := map[string]struct {
		arrange func(t *testing.T, f *fixture) company.CreateCompanyRequest
		assert  func(t *testing.T, f *fixture, c *domain.Company, err error)
	}{
		"owner is recorded as OWNER member": {
			arrange: func(t *testing.T, f *fixture) company.CreateCompanyRequest {
				return company.CreateCompanyRequest{ActorID: f.owner.ID, Name: "Acme", Email: "acme@test.io"}
			},
			assert: func(t *testing.T, f *fixture, c *domain.Company, err error) {
				require.NoError(t, err)
				assert.Equal(t, domain.CompanyStatusVisible, c.Status)
				assert.Equal(t, f.owner.ID, c.OwnerID)

				m, err := f.store.GetMember(ctx, c.ID, f.owner.ID)
				require.NoError(t, err)
				assert.Equal(t, domain.RoleOwner, m.Role)
			},
		},
		"duplicate email for the same owner": {
			arrange: func(t *testing.T, f *fixture) company.CreateCompanyRequest {
				f.create(t, "acme@test.io")
				return company.CreateCompanyRequest{ActorID: f.owner.ID, Name: "Acme 2", Email: "ACME@test.io"}
			},
			assert: func(t *testing.T, f *fixture, c *domain.Company, err error) {
				assert.True(t, errors.Is(err, errors.CodeAlreadyExists))
			},
		},
		"same email for another owner": {
			arrange: func(t *testing.T, f *fixture) company.CreateCompanyRequest {
				f.create(t, "acme@test.io")
				return company.CreateCompanyRequest{ActorID: f.user.ID, Name: "Acme", Email: "acme@test.io"}
			},
			assert: func(t *testing.T, f *fixture, c *domain.Company, err error) {
				require.NoError(t, err)
			},
		},
		"invalid input": {
			arrange: func(t *testing.T, f *fixture) company.CreateCompanyRequest {
				return company.CreateCompanyRequest{ActorID: f.owner.ID, Email: "not-an-email", Status: "archived"}
			},
			assert: func(t *testing.T, f *fixture, c *domain.Company, err error) {
				assert.True(t, errors.Is(err, errors.CodeInvalidArgument))
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := makeFixture(t)
			req := tc.arrange(t, f)
			c, err := f.svc.CreateCompany(ctx, req)
			tc.assert(t, f, c, err)
		})
	}
}

// Non owner is denied a status change; the owner succeeds and reads it back.
func TestService_ChangeCompanyStatus(t *testing.T) {
	ctx := context.Background()
	f := makeFixture(t)
	c := f.create(t, "acme@test.io")

	require.NoError(t, f.store.AddMember(ctx, &domain.CompanyMember{CompanyID: c.ID, UserID: f.user.ID, Role: domain.RoleAdmin}))

	_, err := f.svc.ChangeCompanyStatus(ctx, company.ChangeCompanyStatusRequest{
		ActorID:   f.user.ID,
		CompanyID: c.ID,
		Status:    domain.CompanyStatusHidden,
	})
	require.True(t, errors.Is(err, errors.CodePermissionDenied), "admins cannot mutate the company")

	_, err = f.svc.ChangeCompanyStatus(ctx, company.ChangeCompanyStatusRequest{
		ActorID:   f.owner.ID,
		CompanyID: c.ID,
		Status:    domain.CompanyStatusHidden,
	})
	require.NoError(t, err)

	got, err := f.svc.GetCompany(ctx, company.GetCompanyRequest{CompanyID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.CompanyStatusHidden, got.Status)

	_, err = f.svc.ChangeCompanyStatus(ctx, company.ChangeCompanyStatusRequest{ActorID: f.owner.ID, CompanyID: uuid.New(), Status: domain.CompanyStatusHidden})
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestService_UpdateCompany(t *testing.T) {
	ctx := context.Background()
	f := makeFixture(t)
	c := f.create(t, "acme@test.io")

	name, empty := "Acme Inc", ""
	got, err := f.svc.UpdateCompany(ctx, company.UpdateCompanyRequest{
		ActorID:     f.owner.ID,
		CompanyID:   c.ID,
		Name:        &name,
		Description: &empty,
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Inc", got.Name)
	assert.Equal(t, "acme@test.io", got.Email)

	got, err = f.svc.ChangeCompanyLogo(ctx, company.ChangeCompanyLogoRequest{
		ActorID:   f.owner.ID,
		CompanyID: c.ID,
		LogoURL:   "https://cdn.test/logo.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/logo.png", got.LogoURL)
	assert.Equal(t, "Acme Inc", got.Name)

	_, err = f.svc.ChangeCompanyLogo(ctx, company.ChangeCompanyLogoRequest{ActorID: f.owner.ID, CompanyID: c.ID, LogoURL: "::"})
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))

	_, err = f.svc.UpdateCompany(ctx, company.UpdateCompanyRequest{ActorID: f.user.ID, CompanyID: c.ID, Name: &name})
	assert.True(t, errors.Is(err, errors.CodePermissionDenied))
}

func TestService_DeleteCompany(t *testing.T) {
	ctx := context.Background()
	f := makeFixture(t)
	c := f.create(t, "acme@test.io")

	var (
		mu      sync.Mutex
		deleted []uuid.UUID
	)
	f.bus.Subscribe(domain.EventNameCompanyDeleted, func(_ context.Context, e event.Event) error {
		mu.Lock()
		deleted = append(deleted, e.(domain.EventCompanyDeleted).CompanyID)
		mu.Unlock()
		return nil
	})

	err := f.svc.DeleteCompany(ctx, company.DeleteCompanyRequest{ActorID: f.user.ID, CompanyID: c.ID})
	require.True(t, errors.Is(err, errors.CodePermissionDenied))

	require.NoError(t, f.svc.DeleteCompany(ctx, company.DeleteCompanyRequest{ActorID: f.owner.ID, CompanyID: c.ID}))

	_, err = f.svc.GetCompany(ctx, company.GetCompanyRequest{CompanyID: c.ID})
	assert.True(t, errors.Is(err, errors.CodeNotFound))
	_, err = f.store.GetMember(ctx, c.ID, f.owner.ID)
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	f.bus.Stop()
	assert.Equal(t, []uuid.UUID{c.ID}, deleted)
}

func TestService_ListCompanies(t *testing.T) {
	ctx := context.Background()
	f := makeFixture(t)

	for i := 0; i < 12; i++ {
		f.create(t, uuid.NewString()+"@test.io")
	}
	hidden := f.create(t, "hidden@test.io")
	_, err := f.svc.ChangeCompanyStatus(ctx, company.ChangeCompanyStatusRequest{ActorID: f.owner.ID, CompanyID: hidden.ID, Status: domain.CompanyStatusHidden})
	require.NoError(t, err)

	page, err := f.svc.ListVisibleCompanies(ctx, company.ListCompaniesRequest{})
	require.NoError(t, err)
	assert.Equal(t, 12, page.Total)
	assert.Len(t, page.Items, 10, "default limit")
	assert.True(t, page.HasNext())

	page, err = f.svc.ListOwnedCompanies(ctx, company.ListUserCompaniesRequest{
		ActorID:              f.owner.ID,
		ListCompaniesRequest: company.ListCompaniesRequest{Limit: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 13, page.Total, "owners see their hidden companies")
	assert.Equal(t, hidden.ID, page.Items[0].ID, "newest first")

	require.NoError(t, f.store.AddMember(ctx, &domain.CompanyMember{CompanyID: hidden.ID, UserID: f.user.ID, Role: domain.RoleMember}))
	page, err = f.svc.ListJoinedCompanies(ctx, company.ListUserCompaniesRequest{ActorID: f.user.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, hidden.ID, page.Items[0].ID)

	page, err = f.svc.ListJoinedCompanies(ctx, company.ListUserCompaniesRequest{ActorID: f.owner.ID})
	require.NoError(t, err)
	assert.Empty(t, page.Items, "owned companies are not listed as joined")

	_, err = f.svc.ListVisibleCompanies(ctx, company.ListCompaniesRequest{Limit: 101})
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))
}
