package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User is an identity resolved by the auth collaborator. Credentials are not part of it.
type User struct {
	ID         uuid.UUID
	Email      string
	FirstName  string
	LastName   string
	AvatarURL  string
	CreateTime time.Time
}

// Company is the aggregate root for memberships, invitations and quizzes.
type Company struct {
	ID          uuid.UUID
	Name        string
	Address     string
	Email       string
	Phone       string
	Website     string
	LogoURL     string
	Description string
	Status      CompanyStatus
	OwnerID     uuid.UUID
	CreateTime  time.Time
	UpdateTime  time.Time
}

// CompanyUpdate is a partial update of a company. Nil fields are left unchanged.
type CompanyUpdate struct {
	Name        *string
	Address     *string
	Phone       *string
	Website     *string
	Description *string
	Status      *CompanyStatus
	LogoURL     *string
}

// Apply copies every non-nil field onto c.
func (u CompanyUpdate) Apply(c *Company) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}

	set(&c.Name, u.Name)
	set(&c.Address, u.Address)
	set(&c.Phone, u.Phone)
	set(&c.Website, u.Website)
	set(&c.Description, u.Description)
	set(&c.LogoURL, u.LogoURL)
	if u.Status != nil {
		c.Status = *u.Status
	}
}

// Empty reports whether the update would not change anything.
func (u CompanyUpdate) Empty() bool {
	return u.Name == nil && u.Address == nil && u.Phone == nil && u.Website == nil &&
		u.Description == nil && u.Status == nil && u.LogoURL == nil
}

type CompanyMember struct {
	CompanyID  uuid.UUID
	UserID     uuid.UUID
	Role       Role
	CreateTime time.Time
}

// MemberUser is a user together with their role in one company.
type MemberUser struct {
	User User
	Role Role
}

// CompanyMembers splits the members of a company into its owner and everybody else.
type CompanyMembers struct {
	Company Company
	Owner   *MemberUser
	Members []MemberUser
}

type Invitation struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	InvitedUserID uuid.UUID
	InvitedByID   uuid.UUID
	Type          InvitationType
	Status        InvitationStatus
	CreateTime    time.Time
	UpdateTime    time.Time
}

// InvitationDetail is an invitation hydrated with the rows it references.
type InvitationDetail struct {
	Invitation
	Company     Company
	InvitedUser User
	InvitedBy   User
}

// Quiz owns an ordered list of questions.
type Quiz struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	Title       string
	Description string
	Counter     int
	Questions   []Question
	CreateTime  time.Time
	UpdateTime  time.Time
}

type Question struct {
	ID      uuid.UUID
	QuizID  uuid.UUID
	Text    string
	Answers []Answer
}

type Answer struct {
	ID         uuid.UUID
	QuestionID uuid.UUID
	Text       string
	IsCorrect  bool
}

// Attempt is the durable, append-only record of one scored submission.
type Attempt struct {
	ID                  uuid.UUID
	UserID              uuid.UUID
	QuizID              uuid.UUID
	CompanyID           uuid.UUID
	Score               decimal.Decimal
	TotalQuestions      int
	CorrectAnswersCount int
	AttemptTime         time.Time
}

// AttemptDetail is the per-answer breakdown of the latest attempt, kept in the attempt cache.
type AttemptDetail struct {
	UserID              uuid.UUID        `json:"user_id"`
	CompanyID           uuid.UUID        `json:"company_id"`
	QuizID              uuid.UUID        `json:"quiz_id"`
	Score               decimal.Decimal  `json:"score"`
	TotalQuestions      int              `json:"total_questions"`
	CorrectAnswersCount int              `json:"correct_answers_count"`
	AnswersDetail       []QuestionResult `json:"answers_detail"`
	AttemptTime         time.Time        `json:"attempt_time"`
}

type QuestionResult struct {
	QuestionText string         `json:"question_text"`
	Answers      []AnswerResult `json:"answers"`
}

type AnswerResult struct {
	AnswerText string `json:"answer_text"`
	IsCorrect  bool   `json:"is_correct"`
}

// Leaderboard ranks the members of a company by their best score on one quiz.
type Leaderboard struct {
	CompanyID uuid.UUID
	QuizID    uuid.UUID
	Entries   []LeaderboardEntry
}

type LeaderboardEntry struct {
	UserID uuid.UUID
	Score  decimal.Decimal
}

// Page is one window of a paginated listing.
type Page[T any] struct {
	Items  []T
	Total  int
	Limit  int
	Offset int
}

func (p Page[T]) HasNext() bool {
	return p.Offset+p.Limit < p.Total
}

func (p Page[T]) HasPrevious() bool {
	return p.Offset > 0
}
