// Package store defines the persistence gateway used by the engines.
//
// Implementations return errors from internal/errors for lookups that miss
// (CodeNotFound) and for uniqueness violations (CodeAlreadyExists). Every other
// failure is an infrastructure error and is returned wrapped as is.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/victornm/orgquiz/internal/domain"
)

// AnyOwner disables the owner filter of GetCompany.
var AnyOwner = uuid.Nil

// Store is the full persistence gateway.
type Store interface {
	Users
	Companies
	Members
	Invitations
	Quizzes
	Attempts

	// InTx runs fn inside a single transaction. Every write made through tx
	// commits together when fn returns nil, and none of them do otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type Users interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// CompanyQuery selects a window of companies. Zero filters are ignored.
type CompanyQuery struct {
	// OwnerID keeps companies owned by this user.
	OwnerID uuid.UUID
	// MemberID keeps companies this user belongs to without owning.
	MemberID    uuid.UUID
	VisibleOnly bool
	Limit       int
	Offset      int
}

type Companies interface {
	CreateCompany(ctx context.Context, c *domain.Company) error
	// GetCompany looks a company up by ID, restricted to ownerID unless it is AnyOwner.
	GetCompany(ctx context.Context, id, ownerID uuid.UUID) (*domain.Company, error)
	CompanyEmailTaken(ctx context.Context, ownerID uuid.UUID, email string) (bool, error)
	UpdateCompany(ctx context.Context, c *domain.Company) error
	// DeleteCompany removes the company with its members, invitations and quizzes.
	DeleteCompany(ctx context.Context, id uuid.UUID) error
	ListCompanies(ctx context.Context, q CompanyQuery) ([]domain.Company, int, error)
}

type Members interface {
	AddMember(ctx context.Context, m *domain.CompanyMember) error
	GetMember(ctx context.Context, companyID, userID uuid.UUID) (*domain.CompanyMember, error)
	// ListMembers returns members joined with their users, newest first.
	ListMembers(ctx context.Context, companyID uuid.UUID) ([]domain.MemberUser, error)
	UpdateMemberRole(ctx context.Context, companyID, userID uuid.UUID, role domain.Role) error
	DeleteMember(ctx context.Context, companyID, userID uuid.UUID) error
}

type Invitations interface {
	CreateInvitation(ctx context.Context, inv *domain.Invitation) error
	GetInvitation(ctx context.Context, id uuid.UUID) (*domain.Invitation, error)
	InvitationExists(ctx context.Context, companyID, userID uuid.UUID, status domain.InvitationStatus) (bool, error)
	// TransitionInvitation moves the invitation from one status to another only if
	// its current status is still from. It reports whether the swap happened.
	TransitionInvitation(ctx context.Context, id uuid.UUID, from, to domain.InvitationStatus) (bool, error)
	ListInvitationsForUser(ctx context.Context, userID uuid.UUID) ([]domain.InvitationDetail, error)
	ListInvitationsForCompany(ctx context.Context, companyID uuid.UUID) ([]domain.InvitationDetail, error)
	// DeleteInvitations removes every invitation of userID in companyID, whatever its status.
	DeleteInvitations(ctx context.Context, companyID, userID uuid.UUID) (int64, error)
}

type Quizzes interface {
	CreateQuiz(ctx context.Context, q *domain.Quiz) error
	GetQuiz(ctx context.Context, companyID, quizID uuid.UUID) (*domain.Quiz, error)
	// UpdateQuiz rewrites the quiz in place. Questions and answers are matched
	// by position: matched rows keep their IDs, extra rows are inserted and
	// surplus stored rows are deleted.
	UpdateQuiz(ctx context.Context, q *domain.Quiz) error
	DeleteQuiz(ctx context.Context, companyID, quizID uuid.UUID) error
	// ListQuizzes returns quizzes without their questions.
	ListQuizzes(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]domain.Quiz, int, error)
}

type Attempts interface {
	RecordAttempt(ctx context.Context, a *domain.Attempt) error
	// ListAttempts returns the durable attempts of a user on a quiz, newest first.
	ListAttempts(ctx context.Context, userID, quizID uuid.UUID) ([]domain.Attempt, error)
}
