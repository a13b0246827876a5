package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/victornm/orgquiz/internal/domain"
)

type Page[T any] struct {
	Items       []T  `json:"items"`
	Total       int  `json:"total"`
	Limit       int  `json:"limit"`
	Offset      int  `json:"offset"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

func toPage[S, T any](p *domain.Page[S], conv func(S) T) Page[T] {
	out := Page[T]{
		Items:       make([]T, 0, len(p.Items)),
		Total:       p.Total,
		Limit:       p.Limit,
		Offset:      p.Offset,
		HasNext:     p.HasNext(),
		HasPrevious: p.HasPrevious(),
	}
	for _, it := range p.Items {
		out.Items = append(out.Items, conv(it))
	}
	return out
}

func toSlice[S, T any](in []S, conv func(S) T) []T {
	out := make([]T, 0, len(in))
	for _, it := range in {
		out = append(out, conv(it))
	}
	return out
}

type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

func toUser(u domain.User) User {
	return User{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		AvatarURL: u.AvatarURL,
	}
}

type Company struct {
	ID          uuid.UUID            `json:"id"`
	Name        string               `json:"name"`
	Address     string               `json:"address"`
	Email       string               `json:"email"`
	Phone       string               `json:"phone"`
	Website     string               `json:"website"`
	LogoURL     string               `json:"logo_url"`
	Description string               `json:"description"`
	Status      domain.CompanyStatus `json:"status"`
	OwnerID     uuid.UUID            `json:"owner_id"`
	CreateTime  time.Time            `json:"create_time"`
	UpdateTime  time.Time            `json:"update_time"`
}

func toCompany(c domain.Company) Company {
	return Company{
		ID:          c.ID,
		Name:        c.Name,
		Address:     c.Address,
		Email:       c.Email,
		Phone:       c.Phone,
		Website:     c.Website,
		LogoURL:     c.LogoURL,
		Description: c.Description,
		Status:      c.Status,
		OwnerID:     c.OwnerID,
		CreateTime:  c.CreateTime,
		UpdateTime:  c.UpdateTime,
	}
}

type Member struct {
	User
	Role domain.Role `json:"role"`
}

func toMember(m domain.MemberUser) Member {
	return Member{User: toUser(m.User), Role: m.Role}
}

type CompanyMembers struct {
	Company Company  `json:"company"`
	Owner   *Member  `json:"owner"`
	Members []Member `json:"members"`
}

type Invitation struct {
	ID            uuid.UUID               `json:"id"`
	CompanyID     uuid.UUID               `json:"company_id"`
	InvitedUserID uuid.UUID               `json:"invited_user_id"`
	InvitedByID   uuid.UUID               `json:"invited_by_id"`
	Type          domain.InvitationType   `json:"type"`
	Status        domain.InvitationStatus `json:"status"`
	CreateTime    time.Time               `json:"create_time"`
	UpdateTime    time.Time               `json:"update_time"`
}

func toInvitation(inv domain.Invitation) Invitation {
	return Invitation{
		ID:            inv.ID,
		CompanyID:     inv.CompanyID,
		InvitedUserID: inv.InvitedUserID,
		InvitedByID:   inv.InvitedByID,
		Type:          inv.Type,
		Status:        inv.Status,
		CreateTime:    inv.CreateTime,
		UpdateTime:    inv.UpdateTime,
	}
}

type InvitationDetail struct {
	Invitation
	Company     Company `json:"company"`
	InvitedUser User    `json:"invited_user"`
	InvitedBy   User    `json:"invited_by"`
}

func toInvitationDetail(d domain.InvitationDetail) InvitationDetail {
	return InvitationDetail{
		Invitation:  toInvitation(d.Invitation),
		Company:     toCompany(d.Company),
		InvitedUser: toUser(d.InvitedUser),
		InvitedBy:   toUser(d.InvitedBy),
	}
}

type CompanyMember struct {
	CompanyID uuid.UUID   `json:"company_id"`
	UserID    uuid.UUID   `json:"user_id"`
	Role      domain.Role `json:"role"`
}

// Quiz read views never carry answer correctness.
type (
	Quiz struct {
		ID          uuid.UUID  `json:"id"`
		CompanyID   uuid.UUID  `json:"company_id"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Counter     int        `json:"counter"`
		Questions   []Question `json:"questions,omitempty"`
		CreateTime  time.Time  `json:"create_time"`
		UpdateTime  time.Time  `json:"update_time"`
	}

	Question struct {
		ID      uuid.UUID `json:"id"`
		Text    string    `json:"question_text"`
		Answers []Answer  `json:"answers"`
	}

	Answer struct {
		ID   uuid.UUID `json:"id"`
		Text string    `json:"answer_text"`
	}
)

func toQuiz(q domain.Quiz) Quiz {
	out := Quiz{
		ID:          q.ID,
		CompanyID:   q.CompanyID,
		Title:       q.Title,
		Description: q.Description,
		Counter:     q.Counter,
		CreateTime:  q.CreateTime,
		UpdateTime:  q.UpdateTime,
	}
	for _, qq := range q.Questions {
		v := Question{ID: qq.ID, Text: qq.Text, Answers: make([]Answer, 0, len(qq.Answers))}
		for _, a := range qq.Answers {
			v.Answers = append(v.Answers, Answer{ID: a.ID, Text: a.Text})
		}
		out.Questions = append(out.Questions, v)
	}
	return out
}

type Attempt struct {
	ID                  uuid.UUID `json:"id"`
	UserID              uuid.UUID `json:"user_id"`
	QuizID              uuid.UUID `json:"quiz_id"`
	CompanyID           uuid.UUID `json:"company_id"`
	Score               string    `json:"score"`
	TotalQuestions      int       `json:"total_questions"`
	CorrectAnswersCount int       `json:"correct_answers_count"`
	AttemptTime         time.Time `json:"attempt_time"`
}

func toAttempt(a domain.Attempt) Attempt {
	return Attempt{
		ID:                  a.ID,
		UserID:              a.UserID,
		QuizID:              a.QuizID,
		CompanyID:           a.CompanyID,
		Score:               a.Score.StringFixed(2),
		TotalQuestions:      a.TotalQuestions,
		CorrectAnswersCount: a.CorrectAnswersCount,
		AttemptTime:         a.AttemptTime,
	}
}

type AttemptDetail struct {
	UserID              uuid.UUID               `json:"user_id"`
	CompanyID           uuid.UUID               `json:"company_id"`
	QuizID              uuid.UUID               `json:"quiz_id"`
	Score               string                  `json:"score"`
	TotalQuestions      int                     `json:"total_questions"`
	CorrectAnswersCount int                     `json:"correct_answers_count"`
	AnswersDetail       []domain.QuestionResult `json:"answers_detail"`
	AttemptTime         time.Time               `json:"attempt_time"`
}

func toAttemptDetail(d *domain.AttemptDetail) *AttemptDetail {
	if d == nil {
		return nil
	}
	return &AttemptDetail{
		UserID:              d.UserID,
		CompanyID:           d.CompanyID,
		QuizID:              d.QuizID,
		Score:               d.Score.StringFixed(2),
		TotalQuestions:      d.TotalQuestions,
		CorrectAnswersCount: d.CorrectAnswersCount,
		AnswersDetail:       d.AnswersDetail,
		AttemptTime:         d.AttemptTime,
	}
}

type Leaderboard struct {
	CompanyID uuid.UUID          `json:"company_id"`
	QuizID    uuid.UUID          `json:"quiz_id"`
	Entries   []LeaderboardEntry `json:"entries"`
}

type LeaderboardEntry struct {
	Rank   int       `json:"rank"`
	UserID uuid.UUID `json:"user_id"`
	Score  string    `json:"score"`
}

func toLeaderboard(l domain.Leaderboard) Leaderboard {
	out := Leaderboard{
		CompanyID: l.CompanyID,
		QuizID:    l.QuizID,
		Entries:   make([]LeaderboardEntry, 0, len(l.Entries)),
	}
	for i, e := range l.Entries {
		out.Entries = append(out.Entries, LeaderboardEntry{Rank: i + 1, UserID: e.UserID, Score: e.Score.StringFixed(2)})
	}
	return out
}
