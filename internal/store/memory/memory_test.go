package memory_test

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/orgquiz/internal/domain"
	"github.com/victornm/orgquiz/internal/errors"
	"github.com/victornm/orgquiz/internal/store"
	"github.com/victornm/orgquiz/internal/store/memory"
)

func TestStore_InTx(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	owner := createUser(t, s, "owner@test.io")

	boom := stderrors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		c := &domain.Company{Name: "Acme", Email: "acme@test.io", OwnerID: owner.ID}
		require.NoError(t, tx.CreateCompany(ctx, c))
		require.NoError(t, tx.AddMember(ctx, &domain.CompanyMember{CompanyID: c.ID, UserID: owner.ID, Role: domain.RoleOwner}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	companies, total, err := s.ListCompanies(ctx, store.CompanyQuery{OwnerID: owner.ID})
	require.NoError(t, err)
	assert.Empty(t, companies, "rolled back transaction must not leave rows")
	assert.Zero(t, total)
}

func TestStore_CreateInvitation_PendingUnique(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	owner := createUser(t, s, "owner@test.io")
	user := createUser(t, s, "user@test.io")
	c := createCompany(t, s, owner)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		dup     int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CreateInvitation(ctx, &domain.Invitation{
				CompanyID:     c.ID,
				InvitedUserID: user.ID,
				InvitedByID:   owner.ID,
				Type:          domain.InvitationTypeCompanyInvite,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			} else if errors.Is(err, errors.CodeAlreadyExists) {
				dup++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created, "only one pending invitation may exist per company and user")
	assert.Equal(t, 9, dup)
}

func TestStore_TransitionInvitation(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	owner := createUser(t, s, "owner@test.io")
	user := createUser(t, s, "user@test.io")
	c := createCompany(t, s, owner)

	inv := &domain.Invitation{CompanyID: c.ID, InvitedUserID: user.ID, InvitedByID: owner.ID, Type: domain.InvitationTypeCompanyInvite}
	require.NoError(t, s.CreateInvitation(ctx, inv))

	ok, err := s.TransitionInvitation(ctx, inv.ID, domain.InvitationStatusPending, domain.InvitationStatusAccepted)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.TransitionInvitation(ctx, inv.ID, domain.InvitationStatusPending, domain.InvitationStatusCanceled)
	require.NoError(t, err)
	require.False(t, ok, "a terminal invitation must not move again")

	got, err := s.GetInvitation(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationStatusAccepted, got.Status)
}

func TestStore_Quiz(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	owner := createUser(t, s, "owner@test.io")
	c := createCompany(t, s, owner)

	q := &domain.Quiz{
		CompanyID: c.ID,
		Title:     "Go basics",
		Questions: []domain.Question{
			{Text: "q1", Answers: []domain.Answer{{Text: "a", IsCorrect: true}, {Text: "b"}}},
			{Text: "q2", Answers: []domain.Answer{{Text: "c"}, {Text: "d", IsCorrect: true}}},
		},
	}
	require.NoError(t, s.CreateQuiz(ctx, q))

	got, err := s.GetQuiz(ctx, c.ID, q.ID)
	require.NoError(t, err)
	require.Len(t, got.Questions, 2)
	for i, qq := range got.Questions {
		require.Len(t, qq.Answers, 2)
		assert.Equal(t, q.Questions[i].Text, qq.Text)
		for j, a := range qq.Answers {
			assert.Equal(t, q.Questions[i].Answers[j].Text, a.Text)
			assert.Equal(t, q.Questions[i].Answers[j].IsCorrect, a.IsCorrect)
		}
	}

	firstQuestionID := got.Questions[0].ID
	firstAnswerID := got.Questions[0].Answers[0].ID

	update := &domain.Quiz{
		ID:        q.ID,
		CompanyID: c.ID,
		Title:     "Go basics v2",
		Questions: []domain.Question{
			{Text: "q1 edited", Answers: []domain.Answer{{Text: "a2"}, {Text: "b2", IsCorrect: true}, {Text: "e2"}}},
		},
	}
	require.NoError(t, s.UpdateQuiz(ctx, update))

	got, err = s.GetQuiz(ctx, c.ID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go basics v2", got.Title)
	require.Len(t, got.Questions, 1, "surplus stored questions are removed")
	assert.Equal(t, firstQuestionID, got.Questions[0].ID, "matched positions keep their IDs")
	assert.Equal(t, firstAnswerID, got.Questions[0].Answers[0].ID)
	require.Len(t, got.Questions[0].Answers, 3)
	assert.True(t, got.Questions[0].Answers[1].IsCorrect)

	_, err = s.GetQuiz(ctx, uuid.New(), q.ID)
	assert.True(t, errors.Is(err, errors.CodeNotFound), "quiz lookups are scoped to the company")
}

func TestStore_DeleteCompany_Cascades(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	owner := createUser(t, s, "owner@test.io")
	user := createUser(t, s, "user@test.io")
	c := createCompany(t, s, owner)

	require.NoError(t, s.AddMember(ctx, &domain.CompanyMember{CompanyID: c.ID, UserID: owner.ID, Role: domain.RoleOwner}))
	require.NoError(t, s.CreateInvitation(ctx, &domain.Invitation{CompanyID: c.ID, InvitedUserID: user.ID, InvitedByID: owner.ID, Type: domain.InvitationTypeCompanyInvite}))
	q := &domain.Quiz{CompanyID: c.ID, Title: "t", Questions: []domain.Question{{Text: "q", Answers: []domain.Answer{{Text: "a", IsCorrect: true}}}}}
	require.NoError(t, s.CreateQuiz(ctx, q))
	require.NoError(t, s.RecordAttempt(ctx, &domain.Attempt{UserID: owner.ID, QuizID: q.ID, CompanyID: c.ID}))

	require.NoError(t, s.DeleteCompany(ctx, c.ID))

	_, err := s.GetMember(ctx, c.ID, owner.ID)
	assert.True(t, errors.Is(err, errors.CodeNotFound))
	invs, err := s.ListInvitationsForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, invs)
	_, err = s.GetQuiz(ctx, c.ID, q.ID)
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	attempts, err := s.ListAttempts(ctx, owner.ID, q.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 1, "durable attempts outlive their quiz")
}

func createUser(t *testing.T, s *memory.Store, email string) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, FirstName: "Test"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func createCompany(t *testing.T, s *memory.Store, owner *domain.User) *domain.Company {
	t.Helper()
	c := &domain.Company{Name: "Acme", Email: "acme@test.io", OwnerID: owner.ID, Status: domain.CompanyStatusVisible}
	require.NoError(t, s.CreateCompany(context.Background(), c))
	return c
}
