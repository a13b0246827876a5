package quiz_test

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/orgquiz/internal/attemptcache"
	"github.com/victornm/orgquiz/internal/domain"
	"github.com/victornm/orgquiz/internal/errors"
	"github.com/victornm/orgquiz/internal/event"
	"github.com/victornm/orgquiz/internal/quiz"
	"github.com/victornm/orgquiz/internal/store"
	"github.com/victornm/orgquiz/internal/store/memory"
)

var attemptTime = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	redis   *miniredis.Miniredis
	cache   *attemptcache.Cache
	svc     *quiz.Service
	company *domain.Company
	owner   *domain.User
	admin   *domain.User
	member  *domain.User
	outside *domain.User
}

type fixtureOption func(*quiz.Config)

func makeFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	ctx := context.Background()

	s := memory.New()
	mr := miniredis.RunT(t)
	cache := attemptcache.New(attemptcache.Config{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})})
	bus := event.NewBus()
	t.Cleanup(bus.Stop)

	f := &fixture{
		store:   s,
		redis:   mr,
		cache:   cache,
		owner:   &domain.User{Email: "owner@test.io"},
		admin:   &domain.User{Email: "admin@test.io"},
		member:  &domain.User{Email: "member@test.io"},
		outside: &domain.User{Email: "outside@test.io"},
	}
	for _, u := range []*domain.User{f.owner, f.admin, f.member, f.outside} {
		require.NoError(t, s.CreateUser(ctx, u))
	}

	f.company = &domain.Company{Name: "Acme", Email: "acme@test.io", OwnerID: f.owner.ID, Status: domain.CompanyStatusVisible}
	require.NoError(t, s.CreateCompany(ctx, f.company))
	for u, r := range map[*domain.User]domain.Role{f.owner: domain.RoleOwner, f.admin: domain.RoleAdmin, f.member: domain.RoleMember} {
		require.NoError(t, s.AddMember(ctx, &domain.CompanyMember{CompanyID: f.company.ID, UserID: u.ID, Role: r}))
	}

	c := quiz.Config{
		Store:    s,
		Cache:    cache,
		EventBus: bus,
		Now:      func() time.Time { return attemptTime },
	}
	for _, opt := range opts {
		opt(&c)
	}
	f.svc = quiz.NewService(c)
	return f
}

func quizInput() quiz.QuizInput {
	return quiz.QuizInput{
		Title:       "Go basics",
		Description: "Warm up",
		Questions: []quiz.QuestionInput{
			{Text: "Q1", Answers: []quiz.AnswerInput{{Text: "a", IsCorrect: true}, {Text: "x"}}},
			{Text: "Q2", Answers: []quiz.AnswerInput{{Text: "b", IsCorrect: true}, {Text: "c", IsCorrect: true}, {Text: "y"}}},
		},
	}
}

func (f *fixture) createQuiz(t *testing.T) *domain.Quiz {
	t.Helper()

	q, err := f.svc.CreateQuiz(context.Background(), quiz.CreateQuizRequest{
		ActorID:   f.admin.ID,
		CompanyID: f.company.ID,
		QuizInput: quizInput(),
	})
	require.NoError(t, err)
	return q
}

func halfRightSubmission() quiz.Submission {
	return quiz.Submission{Questions: []quiz.SubmittedQuestion{
		{Text: "Q1", Answers: []quiz.SubmittedAnswer{{Text: "a", IsCorrect: true}}},
		{Text: "Q2", Answers: []quiz.SubmittedAnswer{{Text: "b", IsCorrect: true}}},
	}}
}

func TestService_CreateQuiz(t *testing.T) {
	ctx := context.Background()

	tests := map[string]struct {
		arrange func(f *fixture) quiz.CreateQuizRequest
		assert  func(t *testing.T, f *fixture, q *domain.Quiz, err error)
	}{
		"admin creates a quiz that reads back identically": {
			arrange: func(f *fixture) quiz.CreateQuizRequest {
				return quiz.CreateQuizRequest{ActorID: f.admin.ID, CompanyID: f.company.ID, QuizInput: quizInput()}
			},
			assert: func(t *testing.T, f *fixture, q *domain.Quiz, err error) {
				require.NoError(t, err)

				got, err := f.svc.GetQuiz(ctx, quiz.QuizRequest{ActorID: f.member.ID, CompanyID: f.company.ID, QuizID: q.ID})
				require.NoError(t, err)
				in := quizInput()
				require.Len(t, got.Questions, len(in.Questions))
				for i, qq := range got.Questions {
					assert.Equal(t, in.Questions[i].Text, qq.Text)
					require.Len(t, qq.Answers, len(in.Questions[i].Answers))
					for j, a := range qq.Answers {
						assert.Equal(t, in.Questions[i].Answers[j].Text, a.Text)
						assert.Equal(t, in.Questions[i].Answers[j].IsCorrect, a.IsCorrect)
					}
				}
			},
		},
		"member cannot create": {
			arrange: func(f *fixture) quiz.CreateQuizRequest {
				return quiz.CreateQuizRequest{ActorID: f.member.ID, CompanyID: f.company.ID, QuizInput: quizInput()}
			},
			assert: func(t *testing.T, f *fixture, q *domain.Quiz, err error) {
				assert.True(t, errors.Is(err, errors.CodePermissionDenied))
			},
		},
		"quiz without questions is rejected": {
			arrange: func(f *fixture) quiz.CreateQuizRequest {
				in := quizInput()
				in.Questions = nil
				return quiz.CreateQuizRequest{ActorID: f.owner.ID, CompanyID: f.company.ID, QuizInput: in}
			},
			assert: func(t *testing.T, f *fixture, q *domain.Quiz, err error) {
				assert.True(t, errors.Is(err, errors.CodeInvalidArgument))
			},
		},
		"question without a correct answer is rejected": {
			arrange: func(f *fixture) quiz.CreateQuizRequest {
				in := quizInput()
				in.Questions[1].Answers = []quiz.AnswerInput{{Text: "b"}}
				return quiz.CreateQuizRequest{ActorID: f.owner.ID, CompanyID: f.company.ID, QuizInput: in}
			},
			assert: func(t *testing.T, f *fixture, q *domain.Quiz, err error) {
				require.True(t, errors.Is(err, errors.CodeInvalidArgument))
				assert.Contains(t, errors.Convert(err).Message, "Question 2")
			},
		},
		"unknown company": {
			arrange: func(f *fixture) quiz.CreateQuizRequest {
				return quiz.CreateQuizRequest{ActorID: f.owner.ID, CompanyID: uuid.New(), QuizInput: quizInput()}
			},
			assert: func(t *testing.T, f *fixture, q *domain.Quiz, err error) {
				assert.True(t, errors.Is(err, errors.CodeNotFound))
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := makeFixture(t)
			q, err := f.svc.CreateQuiz(ctx, tc.arrange(f))
			tc.assert(t, f, q, err)
		})
	}
}

func TestService_UpdateDeleteQuiz(t *testing.T) {
	ctx := context.Background()
	f := makeFixture(t)
	q := f.createQuiz(t)

	in := quizInput()
	in.Title = "Go basics v2"
	in.Questions = in.Questions[:1]
	in.Questions[0].Text = "Q1 reworded"

	updated, err := f.svc.UpdateQuiz(ctx, quiz.UpdateQuizRequest{ActorID: f.admin.ID, CompanyID: f.company.ID, QuizID: q.ID, QuizInput: in})
	require.NoError(t, err)
	assert.Equal(t, "Go basics v2", updated.Title)
	require.Len(t, updated.Questions, 1)
	assert.Equal(t, q.Questions[0].ID, updated.Questions[0].ID, "positional match keeps the question ID")

	_, err = f.svc.UpdateQuiz(ctx, quiz.UpdateQuizRequest{ActorID: f.member.ID, CompanyID: f.company.ID, QuizID: q.ID, QuizInput: in})
	assert.True(t, errors.Is(err, errors.CodePermissionDenied))

	err = f.svc.DeleteQuiz(ctx, quiz.QuizRequest{ActorID: f.admin.ID, CompanyID: f.company.ID, QuizID: q.ID})
	require.True(t, errors.Is(err, errors.CodePermissionDenied), "only the owner deletes quizzes")

	require.NoError(t, f.svc.DeleteQuiz(ctx, quiz.QuizRequest{ActorID: f.owner.ID, CompanyID: f.company.ID, QuizID: q.ID}))
	_, err = f.svc.GetQuiz(ctx, quiz.QuizRequest{ActorID: f.owner.ID, CompanyID: f.company.ID, QuizID: q.ID})
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestService_DeleteQuiz_PublishesEvent(t *testing.T) {
	ctx := context.Background()
	bus := event.NewBus()

	var (
		mu      sync.Mutex
		deleted []domain.EventQuizDeleted
	)
	bus.Subscribe(domain.EventNameQuizDeleted, func(_ context.Context, e event.Event) error {
		mu.Lock()
		deleted = append(deleted, e.(domain.EventQuizDeleted))
		mu.Unlock()
		return nil
	})

	f := makeFixture(t, func(c *quiz.Config) { c.EventBus = bus })
	q := f.createQuiz(t)

	err := f.svc.DeleteQuiz(ctx, quiz.QuizRequest{ActorID: f.admin.ID, CompanyID: f.company.ID, QuizID: q.ID})
	require.Error(t, err)
	require.NoError(t, f.svc.DeleteQuiz(ctx, quiz.QuizRequest{ActorID: f.owner.ID, CompanyID: f.company.ID, QuizID: q.ID}))
	bus.Stop()

	assert.Equal(t, []domain.EventQuizDeleted{{CompanyID: f.company.ID, QuizID: q.ID}}, deleted, "only the committed delete is published")
}

func TestService_ListQuizzes(t *testing.T) {
	ctx := context.Background()
	f := makeFixture(t)
	for i := 0; i < 3; i++ {
		f.createQuiz(t)
	}

	page, err := f.svc.ListQuizzes(ctx, quiz.ListQuizzesRequest{ActorID: f.member.ID, CompanyID: f.company.ID, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 2)
	assert.Empty(t, page.Items[0].Questions)

	_, err = f.svc.ListQuizzes(ctx, quiz.ListQuizzesRequest{ActorID: f.outside.ID, CompanyID: f.company.ID})
	assert.True(t, errors.Is(err, errors.CodePermissionDenied))
}

func TestService_AttemptQuiz(t *testing.T) {
	ctx := context.Background()
	f := makeFixture(t)
	q := f.createQuiz(t)

	a, err := f.svc.AttemptQuiz(ctx, quiz.AttemptQuizRequest{
		ActorID:    f.member.ID,
		CompanyID:  f.company.ID,
		QuizID:     q.ID,
		Submission: halfRightSubmission(),
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(a.Score))
	assert.Equal(t, 2, a.TotalQuestions)
	assert.Equal(t, 1, a.CorrectAnswersCount)
	assert.Equal(t, attemptTime, a.AttemptTime)

	t.Run("detail is cached for 48 hours", func(t *testing.T) {
		d, err := f.svc.GetQuizAttempts(ctx, quiz.QuizRequest{ActorID: f.member.ID, CompanyID: f.company.ID, QuizID: q.ID})
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.True(t, a.Score.Equal(d.Score))
		require.Len(t, d.AnswersDetail, 2)
		assert.Equal(t, []domain.AnswerResult{{AnswerText: "b", IsCorrect: true}}, d.AnswersDetail[1].Answers)

		assert.Equal(t, 48*time.Hour, f.redis.TTL(f.cache.Key(f.member.ID, f.company.ID, q.ID)))
	})

	t.Run("durable record is appended", func(t *testing.T) {
		_, err := f.svc.AttemptQuiz(ctx, quiz.AttemptQuizRequest{
			ActorID:   f.member.ID,
			CompanyID: f.company.ID,
			QuizID:    q.ID,
			Submission: quiz.Submission{Questions: []quiz.SubmittedQuestion{
				{Text: "Q1", Answers: []quiz.SubmittedAnswer{{Text: "a", IsCorrect: true}}},
				{Text: "Q2", Answers: []quiz.SubmittedAnswer{{Text: "b", IsCorrect: true}, {Text: "c", IsCorrect: true}}},
			}},
		})
		require.NoError(t, err)

		history, err := f.svc.AttemptHistory(ctx, quiz.QuizRequest{ActorID: f.member.ID, CompanyID: f.company.ID, QuizID: q.ID})
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.True(t, decimal.NewFromInt(100).Equal(history[0].Score), "newest first")

		d, err := f.svc.GetQuizAttempts(ctx, quiz.QuizRequest{ActorID: f.member.ID, CompanyID: f.company.ID, QuizID: q.ID})
		require.NoError(t, err)
		assert.Equal(t, 2, d.CorrectAnswersCount, "cache holds only the latest attempt")
	})

	t.Run("expired detail reads as empty", func(t *testing.T) {
		f.redis.FastForward(attemptcache.DefaultTTL + time.Second)

		d, err := f.svc.GetQuizAttempts(ctx, quiz.QuizRequest{ActorID: f.member.ID, CompanyID: f.company.ID, QuizID: q.ID})
		require.NoError(t, err)
		assert.Nil(t, d)
	})
}

func TestService_AttemptQuiz_Errors(t *testing.T) {
	ctx := context.Background()

	tests := map[string]struct {
		opts    []fixtureOption
		arrange func(f *fixture, q *domain.Quiz) quiz.AttemptQuizRequest
		assert  func(t *testing.T, f *fixture, q *domain.Quiz, err error)
	}{
		"non member is denied before scoring": {
			arrange: func(f *fixture, q *domain.Quiz) quiz.AttemptQuizRequest {
				return quiz.AttemptQuizRequest{ActorID: f.outside.ID, CompanyID: f.company.ID, QuizID: q.ID, Submission: halfRightSubmission()}
			},
			assert: func(t *testing.T, f *fixture, q *domain.Quiz, err error) {
				require.True(t, errors.Is(err, errors.CodePermissionDenied))
				assert.False(t, f.redis.Exists(f.cache.Key(f.outside.ID, f.company.ID, q.ID)), "nothing is cached")
				attempts, err := f.store.ListAttempts(ctx, f.outside.ID, q.ID)
				require.NoError(t, err)
				assert.Empty(t, attempts, "nothing is recorded")
			},
		},
		"non member with an oversized answer is denied": {
			arrange: func(f *fixture, q *domain.Quiz) quiz.AttemptQuizRequest {
				sub := quiz.Submission{Questions: []quiz.SubmittedQuestion{
					{Text: strings.Repeat("q", 501), Answers: []quiz.SubmittedAnswer{{Text: "a", IsCorrect: true}}},
				}}
				return quiz.AttemptQuizRequest{ActorID: f.outside.ID, CompanyID: f.company.ID, QuizID: q.ID, Submission: sub}
			},
			assert: func(t *testing.T, f *fixture, q *domain.Quiz, err error) {
				assert.True(t, errors.Is(err, errors.CodePermissionDenied), "got %v", err)
			},
		},
		"member with an oversized answer is rejected": {
			arrange: func(f *fixture, q *domain.Quiz) quiz.AttemptQuizRequest {
				sub := quiz.Submission{Questions: []quiz.SubmittedQuestion{
					{Text: "Q1", Answers: []quiz.SubmittedAnswer{{Text: strings.Repeat("a", 501), IsCorrect: true}}},
				}}
				return quiz.AttemptQuizRequest{ActorID: f.member.ID, CompanyID: f.company.ID, QuizID: q.ID, Submission: sub}
			},
			assert: func(t *testing.T, f *fixture, q *domain.Quiz, err error) {
				assert.True(t, errors.Is(err, errors.CodeInvalidArgument), "got %v", err)
			},
		},
		"unknown company": {
			arrange: func(f *fixture, q *domain.Quiz) quiz.AttemptQuizRequest {
				return quiz.AttemptQuizRequest{ActorID: f.member.ID, CompanyID: uuid.New(), QuizID: q.ID}
			},
			assert: func(t *testing.T, f *fixture, q *domain.Quiz, err error) {
				assert.True(t, errors.Is(err, errors.CodeNotFound))
			},
		},
		"quiz of another company": {
			arrange: func(f *fixture, q *domain.Quiz) quiz.AttemptQuizRequest {
				return quiz.AttemptQuizRequest{ActorID: f.member.ID, CompanyID: f.company.ID, QuizID: uuid.New()}
			},
			assert: func(t *testing.T, f *fixture, q *domain.Quiz, err error) {
				assert.True(t, errors.Is(err, errors.CodeNotFound))
			},
		},
		"cache failure does not fail the attempt": {
			opts: []fixtureOption{func(c *quiz.Config) { c.Cache = failingCache{} }},
			arrange: func(f *fixture, q *domain.Quiz) quiz.AttemptQuizRequest {
				return quiz.AttemptQuizRequest{ActorID: f.member.ID, CompanyID: f.company.ID, QuizID: q.ID, Submission: halfRightSubmission()}
			},
			assert: func(t *testing.T, f *fixture, q *domain.Quiz, err error) {
				require.NoError(t, err)
				attempts, err := f.store.ListAttempts(ctx, f.member.ID, q.ID)
				require.NoError(t, err)
				assert.Len(t, attempts, 1)
			},
		},
		"durable write failure fails the attempt": {
			opts: []fixtureOption{func(c *quiz.Config) { c.Store = failingAttempts{Store: c.Store} }},
			arrange: func(f *fixture, q *domain.Quiz) quiz.AttemptQuizRequest {
				return quiz.AttemptQuizRequest{ActorID: f.member.ID, CompanyID: f.company.ID, QuizID: q.ID, Submission: halfRightSubmission()}
			},
			assert: func(t *testing.T, f *fixture, q *domain.Quiz, err error) {
				assert.ErrorIs(t, err, errRecord)
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := makeFixture(t, tc.opts...)
			q, err := f.store.GetQuiz(ctx, f.company.ID, createRawQuiz(t, f))
			require.NoError(t, err)

			_, err = f.svc.AttemptQuiz(ctx, tc.arrange(f, q))
			tc.assert(t, f, q, err)
		})
	}
}

// createRawQuiz writes straight to the store so failing stubs in the service
// config do not get in the way.
func createRawQuiz(t *testing.T, f *fixture) uuid.UUID {
	t.Helper()

	q := &domain.Quiz{CompanyID: f.company.ID, Title: "Go basics", Questions: []domain.Question{
		{Text: "Q1", Answers: []domain.Answer{{Text: "a", IsCorrect: true}, {Text: "x"}}},
		{Text: "Q2", Answers: []domain.Answer{{Text: "b", IsCorrect: true}, {Text: "c", IsCorrect: true}}},
	}}
	require.NoError(t, f.store.CreateQuiz(context.Background(), q))
	return q.ID
}

var errRecord = stderrors.New("record attempt: connection reset")

type failingAttempts struct {
	store.Store
}

func (failingAttempts) RecordAttempt(context.Context, *domain.Attempt) error {
	return errRecord
}

type failingCache struct{}

func (failingCache) Set(context.Context, *domain.AttemptDetail) error {
	return stderrors.New("redis: connection refused")
}

func (failingCache) Get(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) (*domain.AttemptDetail, bool, error) {
	return nil, false, stderrors.New("redis: connection refused")
}
