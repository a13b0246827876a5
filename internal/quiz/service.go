package quiz

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/orgquiz/internal/access"
	"github.com/victornm/orgquiz/internal/domain"
	"github.com/victornm/orgquiz/internal/errors"
	"github.com/victornm/orgquiz/internal/event"
	"github.com/victornm/orgquiz/internal/store"
	"github.com/victornm/orgquiz/internal/validate"
)

// AttemptCache holds the detail of the latest attempt per user, company and quiz.
type AttemptCache interface {
	Set(ctx context.Context, d *domain.AttemptDetail) error
	Get(ctx context.Context, userID, companyID, quizID uuid.UUID) (*domain.AttemptDetail, bool, error)
}

type Config struct {
	Store    store.Store
	Cache    AttemptCache
	EventBus *event.Bus
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	store store.Store
	cache AttemptCache
	eb    *event.Bus
	now   func() time.Time
}

func NewService(c Config) *Service {
	now := c.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		store: c.Store,
		cache: c.Cache,
		eb:    c.EventBus,
		now:   now,
	}
}

type AnswerInput struct {
	Text      string `json:"answer_text" validate:"required,max=500"`
	IsCorrect bool   `json:"is_correct"`
}

type QuestionInput struct {
	Text    string        `json:"question_text" validate:"required,max=500"`
	Answers []AnswerInput `json:"answers" validate:"min=1,dive"`
}

// QuizInput is the full definition of a quiz, used for both create and update.
type QuizInput struct {
	Title       string          `json:"title" validate:"required,max=100"`
	Description string          `json:"description" validate:"max=500"`
	Counter     int             `json:"counter" validate:"min=0"`
	Questions   []QuestionInput `json:"questions" validate:"min=1,dive"`
}

func (in QuizInput) check() error {
	if err := validate.Struct(in); err != nil {
		return err
	}

	for i, q := range in.Questions {
		hasCorrect := false
		for _, a := range q.Answers {
			hasCorrect = hasCorrect || a.IsCorrect
		}
		if !hasCorrect {
			return errors.InvalidArgument("Question %d has no correct answer.", i+1)
		}
	}
	return nil
}

func (in QuizInput) apply(q *domain.Quiz) {
	q.Title = in.Title
	q.Description = in.Description
	q.Counter = in.Counter
	q.Questions = make([]domain.Question, 0, len(in.Questions))
	for _, qi := range in.Questions {
		qq := domain.Question{Text: qi.Text, Answers: make([]domain.Answer, 0, len(qi.Answers))}
		for _, a := range qi.Answers {
			qq.Answers = append(qq.Answers, domain.Answer{Text: a.Text, IsCorrect: a.IsCorrect})
		}
		q.Questions = append(q.Questions, qq)
	}
}

type CreateQuizRequest struct {
	ActorID   uuid.UUID
	CompanyID uuid.UUID
	QuizInput
}

// CreateQuiz stores a quiz with all its questions and answers. Owners and admins only.
func (s *Service) CreateQuiz(ctx context.Context, req CreateQuizRequest) (*domain.Quiz, error) {
	if err := req.QuizInput.check(); err != nil {
		return nil, err
	}

	q := &domain.Quiz{CompanyID: req.CompanyID}
	req.QuizInput.apply(q)

	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := access.Authorize(ctx, tx, req.ActorID, req.CompanyID, access.ActionCreateQuiz); err != nil {
			return err
		}
		return tx.CreateQuiz(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	return q, nil
}

type UpdateQuizRequest struct {
	ActorID   uuid.UUID
	CompanyID uuid.UUID
	QuizID    uuid.UUID
	QuizInput
}

// UpdateQuiz rewrites a quiz in place. Questions and answers are matched by
// position, so a matched row keeps its ID even if its text changes.
func (s *Service) UpdateQuiz(ctx context.Context, req UpdateQuizRequest) (*domain.Quiz, error) {
	if err := req.QuizInput.check(); err != nil {
		return nil, err
	}

	q := &domain.Quiz{ID: req.QuizID, CompanyID: req.CompanyID}
	req.QuizInput.apply(q)

	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := access.Authorize(ctx, tx, req.ActorID, req.CompanyID, access.ActionUpdateQuiz); err != nil {
			return err
		}
		return tx.UpdateQuiz(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	return q, nil
}

type QuizRequest struct {
	ActorID   uuid.UUID
	CompanyID uuid.UUID
	QuizID    uuid.UUID
}

// DeleteQuiz removes a quiz with its questions and answers. Owner only.
func (s *Service) DeleteQuiz(ctx context.Context, req QuizRequest) error {
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := access.Authorize(ctx, tx, req.ActorID, req.CompanyID, access.ActionDeleteQuiz); err != nil {
			return err
		}
		return tx.DeleteQuiz(ctx, req.CompanyID, req.QuizID)
	})
	if err != nil {
		return err
	}

	s.eb.Publish(ctx, domain.EventQuizDeleted{CompanyID: req.CompanyID, QuizID: req.QuizID})
	return nil
}

func (s *Service) GetQuiz(ctx context.Context, req QuizRequest) (*domain.Quiz, error) {
	if _, err := access.Authorize(ctx, s.store, req.ActorID, req.CompanyID, access.ActionReadQuiz); err != nil {
		return nil, err
	}
	return s.store.GetQuiz(ctx, req.CompanyID, req.QuizID)
}

type ListQuizzesRequest struct {
	ActorID   uuid.UUID
	CompanyID uuid.UUID
	Limit     int
	Offset    int
}

// ListQuizzes returns a page of the company's quizzes without their questions.
func (s *Service) ListQuizzes(ctx context.Context, req ListQuizzesRequest) (*domain.Page[domain.Quiz], error) {
	limit, offset, err := validate.Page(req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}

	if _, err := access.Authorize(ctx, s.store, req.ActorID, req.CompanyID, access.ActionReadQuiz); err != nil {
		return nil, err
	}

	items, total, err := s.store.ListQuizzes(ctx, req.CompanyID, limit, offset)
	if err != nil {
		return nil, err
	}

	return &domain.Page[domain.Quiz]{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

type AttemptQuizRequest struct {
	ActorID   uuid.UUID
	CompanyID uuid.UUID
	QuizID    uuid.UUID
	Submission
}

// AttemptQuiz scores a member's submission, caches its detail and records the
// attempt. The cache write is best effort; the durable record is written last
// and its failure fails the attempt.
func (s *Service) AttemptQuiz(ctx context.Context, req AttemptQuizRequest) (*domain.Attempt, error) {
	g, err := access.Authorize(ctx, s.store, req.ActorID, req.CompanyID, access.ActionAttemptQuiz)
	if err != nil {
		return nil, err
	}

	if err := validate.Struct(req.Submission); err != nil {
		return nil, err
	}

	q, err := s.store.GetQuiz(ctx, g.Company.ID, req.QuizID)
	if err != nil {
		return nil, err
	}

	res := CalculateScore(req.Submission, q)
	now := s.now().UTC()

	if err := s.cache.Set(ctx, &domain.AttemptDetail{
		UserID:              req.ActorID,
		CompanyID:           g.Company.ID,
		QuizID:              q.ID,
		Score:               res.Score,
		TotalQuestions:      res.TotalQuestions,
		CorrectAnswersCount: res.CorrectAnswersCount,
		AnswersDetail:       res.AnswersDetail,
		AttemptTime:         now,
	}); err != nil {
		slog.ErrorContext(ctx, "quiz: cache attempt detail failed",
			"quiz_id", q.ID,
			"user_id", req.ActorID,
			"error", err,
		)
	}

	a := &domain.Attempt{
		UserID:              req.ActorID,
		QuizID:              q.ID,
		CompanyID:           g.Company.ID,
		Score:               res.Score,
		TotalQuestions:      res.TotalQuestions,
		CorrectAnswersCount: res.CorrectAnswersCount,
		AttemptTime:         now,
	}
	if err := s.store.RecordAttempt(ctx, a); err != nil {
		return nil, err
	}

	s.eb.Publish(ctx, domain.EventQuizAttempted{Attempt: *a})
	return a, nil
}

// GetQuizAttempts returns the cached detail of the actor's latest attempt, or
// nil once it has expired. Older attempts are only in AttemptHistory.
func (s *Service) GetQuizAttempts(ctx context.Context, req QuizRequest) (*domain.AttemptDetail, error) {
	g, err := access.Authorize(ctx, s.store, req.ActorID, req.CompanyID, access.ActionReadQuiz)
	if err != nil {
		return nil, err
	}

	q, err := s.store.GetQuiz(ctx, g.Company.ID, req.QuizID)
	if err != nil {
		return nil, err
	}

	d, ok, err := s.cache.Get(ctx, req.ActorID, g.Company.ID, q.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return d, nil
}

// AttemptHistory returns every durable attempt of the actor on a quiz, newest first.
func (s *Service) AttemptHistory(ctx context.Context, req QuizRequest) ([]domain.Attempt, error) {
	if _, err := access.Authorize(ctx, s.store, req.ActorID, req.CompanyID, access.ActionReadQuiz); err != nil {
		return nil, err
	}
	return s.store.ListAttempts(ctx, req.ActorID, req.QuizID)
}
