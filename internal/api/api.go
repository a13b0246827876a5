// Package api exposes the engines over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/victornm/orgquiz/internal/company"
	"github.com/victornm/orgquiz/internal/domain"
	"github.com/victornm/orgquiz/internal/errors"
	"github.com/victornm/orgquiz/internal/leaderboard"
	"github.com/victornm/orgquiz/internal/membership"
	"github.com/victornm/orgquiz/internal/quiz"
)

const userKey = "api.user"

type Authenticator interface {
	Authenticate(ctx context.Context, header string) (*domain.User, error)
}

type Config struct {
	Router      gin.IRouter
	Auth        Authenticator
	Company     *company.Service
	Membership  *membership.Service
	Quiz        *quiz.Service
	Leaderboard *leaderboard.Service
}

type API struct {
	auth Authenticator
	cs   *company.Service
	ms   *membership.Service
	qs   *quiz.Service
	ls   *leaderboard.Service
}

// New creates the API and registers its routes under /v1 of c.Router.
func New(c Config) *API {
	a := &API{
		auth: c.Auth,
		cs:   c.Company,
		ms:   c.Membership,
		qs:   c.Quiz,
		ls:   c.Leaderboard,
	}

	v1 := c.Router.Group("/v1")
	v1.GET("/companies", a.ListVisibleCompanies)
	v1.GET("/companies/:company_id", a.GetCompany)
	v1.GET("/companies/:company_id/members", a.GetCompanyMembers)

	authed := v1.Group("", a.authenticate)

	authed.GET("/me", a.Me)
	authed.GET("/me/companies/owned", a.ListOwnedCompanies)
	authed.GET("/me/companies/joined", a.ListJoinedCompanies)
	authed.GET("/me/invitations", a.ListUserInvitations)

	authed.POST("/companies", a.CreateCompany)
	authed.PATCH("/companies/:company_id", a.UpdateCompany)
	authed.DELETE("/companies/:company_id", a.DeleteCompany)
	authed.PUT("/companies/:company_id/status", a.ChangeCompanyStatus)
	authed.PUT("/companies/:company_id/logo", a.ChangeCompanyLogo)

	authed.POST("/companies/:company_id/invitations", a.InviteUser)
	authed.GET("/companies/:company_id/invitations", a.ListCompanyInvitations)
	authed.POST("/companies/:company_id/requests", a.RequestMembership)
	authed.POST("/invitations/:invitation_id/accept", a.AcceptInvitation)
	authed.POST("/invitations/:invitation_id/decline", a.DeclineInvitation)
	authed.POST("/invitations/:invitation_id/cancel", a.CancelInvitation)

	authed.POST("/companies/:company_id/leave", a.LeaveCompany)
	authed.DELETE("/companies/:company_id/members/:user_id", a.RemoveMember)
	authed.PUT("/companies/:company_id/members/:user_id/role", a.ChangeMemberRole)
	authed.GET("/companies/:company_id/admins", a.GetCompanyAdmins)

	authed.POST("/companies/:company_id/quizzes", a.CreateQuiz)
	authed.GET("/companies/:company_id/quizzes", a.ListQuizzes)
	authed.GET("/companies/:company_id/quizzes/:quiz_id", a.GetQuiz)
	authed.PUT("/companies/:company_id/quizzes/:quiz_id", a.UpdateQuiz)
	authed.DELETE("/companies/:company_id/quizzes/:quiz_id", a.DeleteQuiz)
	authed.POST("/companies/:company_id/quizzes/:quiz_id/attempts", a.AttemptQuiz)
	authed.GET("/companies/:company_id/quizzes/:quiz_id/attempts", a.AttemptHistory)
	authed.GET("/companies/:company_id/quizzes/:quiz_id/attempts/latest", a.GetQuizAttempts)
	authed.GET("/companies/:company_id/quizzes/:quiz_id/leaderboard", a.GetLeaderboard)

	return a
}

func (a *API) authenticate(c *gin.Context) {
	u, err := a.auth.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.Set(userKey, u)
	c.Next()
}

func (a *API) Me(c *gin.Context) {
	c.JSON(http.StatusOK, toUser(*currentUser(c)))
}

func currentUser(c *gin.Context) *domain.User {
	return c.MustGet(userKey).(*domain.User)
}

func actorID(c *gin.Context) uuid.UUID {
	return currentUser(c).ID
}

func writeError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{
		"kind":    e.Kind(),
		"message": e.Message,
	})
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		writeError(c, errors.InvalidArgument("Invalid %s: %s", name, c.Param(name)))
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("Invalid request body."),
			errors.WithCause(err),
		))
		return false
	}
	return true
}

// pageQuery reads limit and offset. Missing values are left at zero so the
// engines apply their defaults.
func pageQuery(c *gin.Context) (limit, offset int, ok bool) {
	parse := func(name string) (int, bool) {
		s := c.Query(name)
		if s == "" {
			return 0, true
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(c, errors.InvalidArgument("Invalid %s: %s", name, s))
			return 0, false
		}
		return n, true
	}

	if limit, ok = parse("limit"); !ok {
		return 0, 0, false
	}
	if offset, ok = parse("offset"); !ok {
		return 0, 0, false
	}
	return limit, offset, true
}
