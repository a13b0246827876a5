// Package memory is an in-process store.Store. It enforces the same uniqueness
// and compare-and-swap rules as the Postgres schema, and serializes every
// transaction behind one lock.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/orgquiz/internal/domain"
	"github.com/victornm/orgquiz/internal/errors"
	"github.com/victornm/orgquiz/internal/store"
)

type memberKey struct {
	companyID uuid.UUID
	userID    uuid.UUID
}

type row[T any] struct {
	v   T
	seq int64
}

type state struct {
	seq         int64
	users       map[uuid.UUID]row[domain.User]
	companies   map[uuid.UUID]row[domain.Company]
	members     map[memberKey]row[domain.CompanyMember]
	invitations map[uuid.UUID]row[domain.Invitation]
	quizzes     map[uuid.UUID]row[domain.Quiz]
	attempts    []domain.Attempt
}

func newState() *state {
	return &state{
		users:       make(map[uuid.UUID]row[domain.User]),
		companies:   make(map[uuid.UUID]row[domain.Company]),
		members:     make(map[memberKey]row[domain.CompanyMember]),
		invitations: make(map[uuid.UUID]row[domain.Invitation]),
		quizzes:     make(map[uuid.UUID]row[domain.Quiz]),
	}
}

func (s *state) clone() *state {
	c := &state{
		seq:         s.seq,
		users:       cloneMap(s.users),
		companies:   cloneMap(s.companies),
		members:     cloneMap(s.members),
		invitations: cloneMap(s.invitations),
		quizzes:     make(map[uuid.UUID]row[domain.Quiz], len(s.quizzes)),
		attempts:    slices.Clone(s.attempts),
	}
	for id, r := range s.quizzes {
		c.quizzes[id] = row[domain.Quiz]{v: cloneQuiz(r.v), seq: r.seq}
	}
	return c
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func cloneQuiz(q domain.Quiz) domain.Quiz {
	q.Questions = slices.Clone(q.Questions)
	for i := range q.Questions {
		q.Questions[i].Answers = slices.Clone(q.Questions[i].Answers)
	}
	return q
}

type Store struct {
	// mu is nil inside a transaction; the enclosing Store holds the lock.
	mu  *sync.Mutex
	st  *state
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		mu:  new(sync.Mutex),
		st:  newState(),
		now: time.Now,
	}
}

func (s *Store) lock() func() {
	if s.mu == nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.mu == nil {
		return fn(ctx, s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(ctx, &Store{st: s.st, now: s.now}); err != nil {
		*s.st = *snapshot
		return err
	}

	return nil
}

func (s *Store) CreateUser(_ context.Context, u *domain.User) error {
	defer s.lock()()

	for _, r := range s.st.users {
		if strings.EqualFold(r.v.Email, u.Email) {
			return errors.AlreadyExists("User with email %s already exists.", u.Email)
		}
	}

	if u.ID == uuid.Nil {
		id, err := store.NewID()
		if err != nil {
			return err
		}
		u.ID = id
	}
	if u.CreateTime.IsZero() {
		u.CreateTime = s.now()
	}

	s.st.users[u.ID] = row[domain.User]{v: *u, seq: s.st.next()}
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	defer s.lock()()

	r, ok := s.st.users[id]
	if !ok {
		return nil, errors.NotFound("User", id)
	}
	u := r.v
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	defer s.lock()()

	for _, r := range s.st.users {
		if strings.EqualFold(r.v.Email, email) {
			u := r.v
			return &u, nil
		}
	}
	return nil, errors.NotFound("User", email)
}

func (s *Store) CreateCompany(_ context.Context, c *domain.Company) error {
	defer s.lock()()

	if s.emailTaken(c.OwnerID, c.Email) {
		return errors.AlreadyExists("Company with this email already exists.")
	}

	if c.ID == uuid.Nil {
		id, err := store.NewID()
		if err != nil {
			return err
		}
		c.ID = id
	}
	now := s.now()
	c.CreateTime, c.UpdateTime = now, now

	s.st.companies[c.ID] = row[domain.Company]{v: *c, seq: s.st.next()}
	return nil
}

func (s *Store) GetCompany(_ context.Context, id, ownerID uuid.UUID) (*domain.Company, error) {
	defer s.lock()()

	r, ok := s.st.companies[id]
	if !ok || (ownerID != store.AnyOwner && r.v.OwnerID != ownerID) {
		return nil, errors.NotFound("Company", id)
	}
	c := r.v
	return &c, nil
}

func (s *Store) CompanyEmailTaken(_ context.Context, ownerID uuid.UUID, email string) (bool, error) {
	defer s.lock()()
	return s.emailTaken(ownerID, email), nil
}

func (s *Store) emailTaken(ownerID uuid.UUID, email string) bool {
	for _, r := range s.st.companies {
		if r.v.OwnerID == ownerID && strings.EqualFold(r.v.Email, email) {
			return true
		}
	}
	return false
}

func (s *Store) UpdateCompany(_ context.Context, c *domain.Company) error {
	defer s.lock()()

	r, ok := s.st.companies[c.ID]
	if !ok {
		return errors.NotFound("Company", c.ID)
	}

	c.CreateTime = r.v.CreateTime
	c.UpdateTime = s.now()
	r.v = *c
	s.st.companies[c.ID] = r
	return nil
}

func (s *Store) DeleteCompany(_ context.Context, id uuid.UUID) error {
	defer s.lock()()

	if _, ok := s.st.companies[id]; !ok {
		return errors.NotFound("Company", id)
	}

	for k := range s.st.members {
		if k.companyID == id {
			delete(s.st.members, k)
		}
	}
	for k, r := range s.st.invitations {
		if r.v.CompanyID == id {
			delete(s.st.invitations, k)
		}
	}
	for k, r := range s.st.quizzes {
		if r.v.CompanyID == id {
			delete(s.st.quizzes, k)
		}
	}
	delete(s.st.companies, id)
	return nil
}

func (s *Store) ListCompanies(_ context.Context, q store.CompanyQuery) ([]domain.Company, int, error) {
	defer s.lock()()

	var rows []row[domain.Company]
	for _, r := range s.st.companies {
		c := r.v
		if q.OwnerID != uuid.Nil && c.OwnerID != q.OwnerID {
			continue
		}
		if q.MemberID != uuid.Nil {
			if c.OwnerID == q.MemberID {
				continue
			}
			if _, ok := s.st.members[memberKey{c.ID, q.MemberID}]; !ok {
				continue
			}
		}
		if q.VisibleOnly && c.Status != domain.CompanyStatusVisible {
			continue
		}
		rows = append(rows, r)
	}

	return window(rows, q.Limit, q.Offset), len(rows), nil
}

// window sorts rows newest first and cuts one page out of them.
func window[T any](rows []row[T], limit, offset int) []T {
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })

	if offset > len(rows) {
		offset = len(rows)
	}
	end := len(rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]T, 0, end-offset)
	for _, r := range rows[offset:end] {
		out = append(out, r.v)
	}
	return out
}

func (s *Store) AddMember(_ context.Context, m *domain.CompanyMember) error {
	defer s.lock()()

	k := memberKey{m.CompanyID, m.UserID}
	if _, ok := s.st.members[k]; ok {
		return errors.AlreadyExists("User is already a member of the company.")
	}
	if m.Role == domain.RoleOwner {
		for mk, r := range s.st.members {
			if mk.companyID == m.CompanyID && r.v.Role == domain.RoleOwner {
				return errors.AlreadyExists("Company already has an owner.")
			}
		}
	}

	m.CreateTime = s.now()
	s.st.members[k] = row[domain.CompanyMember]{v: *m, seq: s.st.next()}
	return nil
}

func (s *Store) GetMember(_ context.Context, companyID, userID uuid.UUID) (*domain.CompanyMember, error) {
	defer s.lock()()

	r, ok := s.st.members[memberKey{companyID, userID}]
	if !ok {
		return nil, errors.NotFound("Company Member", userID)
	}
	m := r.v
	return &m, nil
}

func (s *Store) ListMembers(_ context.Context, companyID uuid.UUID) ([]domain.MemberUser, error) {
	defer s.lock()()

	var rows []row[domain.MemberUser]
	for k, r := range s.st.members {
		if k.companyID != companyID {
			continue
		}
		u, ok := s.st.users[k.userID]
		if !ok {
			continue
		}
		rows = append(rows, row[domain.MemberUser]{v: domain.MemberUser{User: u.v, Role: r.v.Role}, seq: r.seq})
	}

	return window(rows, 0, 0), nil
}

func (s *Store) UpdateMemberRole(_ context.Context, companyID, userID uuid.UUID, role domain.Role) error {
	defer s.lock()()

	k := memberKey{companyID, userID}
	r, ok := s.st.members[k]
	if !ok {
		return errors.NotFound("Company Member", userID)
	}
	r.v.Role = role
	s.st.members[k] = r
	return nil
}

func (s *Store) DeleteMember(_ context.Context, companyID, userID uuid.UUID) error {
	defer s.lock()()

	k := memberKey{companyID, userID}
	if _, ok := s.st.members[k]; !ok {
		return errors.NotFound("Company Member", userID)
	}
	delete(s.st.members, k)
	return nil
}

func (s *Store) CreateInvitation(_ context.Context, inv *domain.Invitation) error {
	defer s.lock()()

	if inv.Status == "" {
		inv.Status = domain.InvitationStatusPending
	}
	if inv.Status == domain.InvitationStatusPending {
		for _, r := range s.st.invitations {
			if r.v.CompanyID == inv.CompanyID && r.v.InvitedUserID == inv.InvitedUserID &&
				r.v.Status == domain.InvitationStatusPending {
				return errors.AlreadyExists("User is already invited or a member of the company.")
			}
		}
	}

	if inv.ID == uuid.Nil {
		id, err := store.NewID()
		if err != nil {
			return err
		}
		inv.ID = id
	}
	now := s.now()
	inv.CreateTime, inv.UpdateTime = now, now

	s.st.invitations[inv.ID] = row[domain.Invitation]{v: *inv, seq: s.st.next()}
	return nil
}

func (s *Store) GetInvitation(_ context.Context, id uuid.UUID) (*domain.Invitation, error) {
	defer s.lock()()

	r, ok := s.st.invitations[id]
	if !ok {
		return nil, errors.NotFound("Company Invitation", id)
	}
	inv := r.v
	return &inv, nil
}

func (s *Store) InvitationExists(_ context.Context, companyID, userID uuid.UUID, status domain.InvitationStatus) (bool, error) {
	defer s.lock()()

	for _, r := range s.st.invitations {
		if r.v.CompanyID == companyID && r.v.InvitedUserID == userID && r.v.Status == status {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) TransitionInvitation(_ context.Context, id uuid.UUID, from, to domain.InvitationStatus) (bool, error) {
	defer s.lock()()

	r, ok := s.st.invitations[id]
	if !ok || r.v.Status != from {
		return false, nil
	}
	r.v.Status = to
	r.v.UpdateTime = s.now()
	s.st.invitations[id] = r
	return true, nil
}

func (s *Store) ListInvitationsForUser(_ context.Context, userID uuid.UUID) ([]domain.InvitationDetail, error) {
	defer s.lock()()
	return s.listInvitations(func(inv domain.Invitation) bool { return inv.InvitedUserID == userID }), nil
}

func (s *Store) ListInvitationsForCompany(_ context.Context, companyID uuid.UUID) ([]domain.InvitationDetail, error) {
	defer s.lock()()
	return s.listInvitations(func(inv domain.Invitation) bool { return inv.CompanyID == companyID }), nil
}

func (s *Store) listInvitations(keep func(domain.Invitation) bool) []domain.InvitationDetail {
	var rows []row[domain.InvitationDetail]
	for _, r := range s.st.invitations {
		if !keep(r.v) {
			continue
		}
		rows = append(rows, row[domain.InvitationDetail]{
			v: domain.InvitationDetail{
				Invitation:  r.v,
				Company:     s.st.companies[r.v.CompanyID].v,
				InvitedUser: s.st.users[r.v.InvitedUserID].v,
				InvitedBy:   s.st.users[r.v.InvitedByID].v,
			},
			seq: r.seq,
		})
	}
	return window(rows, 0, 0)
}

func (s *Store) DeleteInvitations(_ context.Context, companyID, userID uuid.UUID) (int64, error) {
	defer s.lock()()

	var n int64
	for id, r := range s.st.invitations {
		if r.v.CompanyID == companyID && r.v.InvitedUserID == userID {
			delete(s.st.invitations, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateQuiz(_ context.Context, q *domain.Quiz) error {
	defer s.lock()()

	if _, ok := s.st.companies[q.CompanyID]; !ok {
		return errors.NotFound("Company", q.CompanyID)
	}

	if q.ID == uuid.Nil {
		id, err := store.NewID()
		if err != nil {
			return err
		}
		q.ID = id
	}
	if err := store.AssignQuizIDs(q, nil); err != nil {
		return err
	}
	now := s.now()
	q.CreateTime, q.UpdateTime = now, now

	s.st.quizzes[q.ID] = row[domain.Quiz]{v: cloneQuiz(*q), seq: s.st.next()}
	return nil
}

func (s *Store) GetQuiz(_ context.Context, companyID, quizID uuid.UUID) (*domain.Quiz, error) {
	defer s.lock()()

	r, ok := s.st.quizzes[quizID]
	if !ok || r.v.CompanyID != companyID {
		return nil, errors.NotFound("Quiz", quizID)
	}
	q := cloneQuiz(r.v)
	return &q, nil
}

func (s *Store) UpdateQuiz(_ context.Context, q *domain.Quiz) error {
	defer s.lock()()

	r, ok := s.st.quizzes[q.ID]
	if !ok || r.v.CompanyID != q.CompanyID {
		return errors.NotFound("Quiz", q.ID)
	}

	if err := store.AssignQuizIDs(q, &r.v); err != nil {
		return err
	}
	q.CreateTime = r.v.CreateTime
	q.UpdateTime = s.now()

	r.v = cloneQuiz(*q)
	s.st.quizzes[q.ID] = r
	return nil
}

func (s *Store) DeleteQuiz(_ context.Context, companyID, quizID uuid.UUID) error {
	defer s.lock()()

	r, ok := s.st.quizzes[quizID]
	if !ok || r.v.CompanyID != companyID {
		return errors.NotFound("Quiz", quizID)
	}
	delete(s.st.quizzes, quizID)
	return nil
}

func (s *Store) ListQuizzes(_ context.Context, companyID uuid.UUID, limit, offset int) ([]domain.Quiz, int, error) {
	defer s.lock()()

	var rows []row[domain.Quiz]
	for _, r := range s.st.quizzes {
		if r.v.CompanyID != companyID {
			continue
		}
		q := r.v
		q.Questions = nil
		rows = append(rows, row[domain.Quiz]{v: q, seq: r.seq})
	}

	return window(rows, limit, offset), len(rows), nil
}

func (s *Store) RecordAttempt(_ context.Context, a *domain.Attempt) error {
	defer s.lock()()

	if a.ID == uuid.Nil {
		id, err := store.NewID()
		if err != nil {
			return err
		}
		a.ID = id
	}
	s.st.attempts = append(s.st.attempts, *a)
	return nil
}

func (s *Store) ListAttempts(_ context.Context, userID, quizID uuid.UUID) ([]domain.Attempt, error) {
	defer s.lock()()

	var out []domain.Attempt
	for i := len(s.st.attempts) - 1; i >= 0; i-- {
		a := s.st.attempts[i]
		if a.UserID == userID && a.QuizID == quizID {
			out = append(out, a)
		}
	}
	return out, nil
}
