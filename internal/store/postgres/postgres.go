// Package postgres implements store.Store on top of a pgx connection pool.
package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/victornm/orgquiz/internal/domain"
	"github.com/victornm/orgquiz/internal/errors"
	"github.com/victornm/orgquiz/internal/store"
)

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Config struct {
	DB *pgxpool.Pool
	// ReadRetries bounds how many times a read outside a transaction is tried
	// when it fails with a transient error. Zero or one disables retrying.
	ReadRetries uint
}

type Store struct {
	pool    *pgxpool.Pool
	db      querier
	inTx    bool
	retries uint
}

var _ store.Store = (*Store)(nil)

func New(c Config) *Store {
	return &Store{
		pool:    c.DB,
		db:      c.DB,
		retries: c.ReadRetries,
	}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) (err error) {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	if err = fn(ctx, &Store{pool: s.pool, db: tx, inTx: true}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// atomic runs fn in the current transaction or in a new one.
func (s *Store) atomic(ctx context.Context, fn func(tx *Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.InTx(ctx, func(_ context.Context, tx store.Store) error {
		return fn(tx.(*Store))
	})
}

// read retries op with exponential backoff while it fails transiently. Reads
// inside a transaction are never retried, the transaction is already aborted.
func read[T any](ctx context.Context, s *Store, op func() (T, error)) (T, error) {
	if s.inTx || s.retries <= 1 {
		return op()
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !transient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(s.retries))
}

func transient(err error) bool {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
		return false
	}

	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !stderrors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func orNotFound(err error, model string, id any) error {
	if stderrors.Is(err, pgx.ErrNoRows) {
		return errors.NotFound(model, id)
	}
	return err
}

// Users

const userColumns = `user_id, email, first_name, last_name, avatar_url, create_time`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.AvatarURL, &u.CreateTime); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ID == uuid.Nil {
		id, err := store.NewID()
		if err != nil {
			return err
		}
		u.ID = id
	}

	const stmt = `INSERT INTO users (user_id, email, first_name, last_name, avatar_url)
VALUES ($1, $2, $3, $4, $5) RETURNING create_time;`

	err := s.db.QueryRow(ctx, stmt, u.ID, strings.ToLower(u.Email), u.FirstName, u.LastName, u.AvatarURL).Scan(&u.CreateTime)
	if isUniqueViolation(err, "") {
		return errors.AlreadyExists("User with email %s already exists.", u.Email)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return read(ctx, s, func() (*domain.User, error) {
		u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1;`, id))
		return u, orNotFound(err, "User", id)
	})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return read(ctx, s, func() (*domain.User, error) {
		u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1;`, strings.ToLower(email)))
		return u, orNotFound(err, "User", email)
	})
}

// Companies

const companyColumns = `c.company_id, c.name, c.address, c.email, c.phone, c.website, c.logo_url,
c.description, c.status, c.owner_id, c.create_time, c.update_time`

func companyDest(c *domain.Company) []any {
	return []any{
		&c.ID, &c.Name, &c.Address, &c.Email, &c.Phone, &c.Website, &c.LogoURL,
		&c.Description, &c.Status, &c.OwnerID, &c.CreateTime, &c.UpdateTime,
	}
}

func (s *Store) CreateCompany(ctx context.Context, c *domain.Company) error {
	if c.ID == uuid.Nil {
		id, err := store.NewID()
		if err != nil {
			return err
		}
		c.ID = id
	}

	const stmt = `INSERT INTO companies
(company_id, name, address, email, phone, website, logo_url, description, status, owner_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING create_time, update_time;`

	err := s.db.QueryRow(ctx, stmt,
		c.ID, c.Name, c.Address, strings.ToLower(c.Email), c.Phone, c.Website, c.LogoURL, c.Description, c.Status, c.OwnerID,
	).Scan(&c.CreateTime, &c.UpdateTime)
	if isUniqueViolation(err, "uq_owner_email") {
		return errors.AlreadyExists("Company with this email already exists.")
	}
	if err != nil {
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

func (s *Store) GetCompany(ctx context.Context, id, ownerID uuid.UUID) (*domain.Company, error) {
	return read(ctx, s, func() (*domain.Company, error) {
		q := `SELECT ` + companyColumns + ` FROM companies c WHERE c.company_id = $1`
		args := []any{id}
		if ownerID != store.AnyOwner {
			q += ` AND c.owner_id = $2`
			args = append(args, ownerID)
		}

		var c domain.Company
		if err := s.db.QueryRow(ctx, q, args...).Scan(companyDest(&c)...); err != nil {
			return nil, orNotFound(err, "Company", id)
		}
		return &c, nil
	})
}

func (s *Store) CompanyEmailTaken(ctx context.Context, ownerID uuid.UUID, email string) (bool, error) {
	return read(ctx, s, func() (bool, error) {
		var taken bool
		err := s.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM companies WHERE owner_id = $1 AND email = $2);`,
			ownerID, strings.ToLower(email),
		).Scan(&taken)
		if err != nil {
			return false, fmt.Errorf("check company email: %w", err)
		}
		return taken, nil
	})
}

func (s *Store) UpdateCompany(ctx context.Context, c *domain.Company) error {
	const stmt = `UPDATE companies SET
name = $2, address = $3, phone = $4, website = $5, logo_url = $6, description = $7, status = $8, update_time = now()
WHERE company_id = $1 RETURNING create_time, update_time;`

	err := s.db.QueryRow(ctx, stmt,
		c.ID, c.Name, c.Address, c.Phone, c.Website, c.LogoURL, c.Description, c.Status,
	).Scan(&c.CreateTime, &c.UpdateTime)
	if err != nil {
		return orNotFound(err, "Company", c.ID)
	}
	return nil
}

func (s *Store) DeleteCompany(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM companies WHERE company_id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete company: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("Company", id)
	}
	return nil
}

func (s *Store) ListCompanies(ctx context.Context, q store.CompanyQuery) ([]domain.Company, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.OwnerID != uuid.Nil {
		where = append(where, "c.owner_id = "+arg(q.OwnerID))
	}
	if q.MemberID != uuid.Nil {
		p := arg(q.MemberID)
		where = append(where, "c.owner_id <> "+p+
			" AND EXISTS (SELECT 1 FROM company_members m WHERE m.company_id = c.company_id AND m.user_id = "+p+")")
	}
	if q.VisibleOnly {
		where = append(where, "c.status = "+arg(domain.CompanyStatusVisible))
	}

	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	type result struct {
		items []domain.Company
		total int
	}
	r, err := read(ctx, s, func() (result, error) {
		var r result
		if err := s.db.QueryRow(ctx, `SELECT count(*) FROM companies c`+cond, args...).Scan(&r.total); err != nil {
			return r, fmt.Errorf("count companies: %w", err)
		}

		page := append(args[:len(args):len(args)], limitArg(q.Limit), q.Offset)
		rows, err := s.db.Query(ctx, fmt.Sprintf(
			`SELECT %s FROM companies c%s ORDER BY c.create_time DESC, c.company_id DESC LIMIT $%d OFFSET $%d`,
			companyColumns, cond, len(page)-1, len(page),
		), page...)
		if err != nil {
			return r, fmt.Errorf("list companies: %w", err)
		}
		r.items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Company, error) {
			var c domain.Company
			err := row.Scan(companyDest(&c)...)
			return c, err
		})
		if err != nil {
			return r, fmt.Errorf("scan companies: %w", err)
		}
		return r, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return r.items, r.total, nil
}

// limitArg maps a non-positive limit to NULL, which Postgres reads as no limit.
func limitArg(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}

// Members

func (s *Store) AddMember(ctx context.Context, m *domain.CompanyMember) error {
	const stmt = `INSERT INTO company_members (company_id, user_id, role) VALUES ($1, $2, $3) RETURNING create_time;`

	err := s.db.QueryRow(ctx, stmt, m.CompanyID, m.UserID, m.Role).Scan(&m.CreateTime)
	switch {
	case isUniqueViolation(err, "uq_company_owner"):
		return errors.AlreadyExists("Company already has an owner.")
	case isUniqueViolation(err, ""):
		return errors.AlreadyExists("User is already a member of the company.")
	case err != nil:
		return fmt.Errorf("insert company member: %w", err)
	}
	return nil
}

func (s *Store) GetMember(ctx context.Context, companyID, userID uuid.UUID) (*domain.CompanyMember, error) {
	return read(ctx, s, func() (*domain.CompanyMember, error) {
		m := domain.CompanyMember{CompanyID: companyID, UserID: userID}
		err := s.db.QueryRow(ctx,
			`SELECT role, create_time FROM company_members WHERE company_id = $1 AND user_id = $2;`,
			companyID, userID,
		).Scan(&m.Role, &m.CreateTime)
		if err != nil {
			return nil, orNotFound(err, "Company Member", userID)
		}
		return &m, nil
	})
}

func (s *Store) ListMembers(ctx context.Context, companyID uuid.UUID) ([]domain.MemberUser, error) {
	return read(ctx, s, func() ([]domain.MemberUser, error) {
		rows, err := s.db.Query(ctx, `SELECT u.user_id, u.email, u.first_name, u.last_name, u.avatar_url, u.create_time, m.role
FROM company_members m JOIN users u ON u.user_id = m.user_id
WHERE m.company_id = $1
ORDER BY m.create_time DESC, u.user_id DESC;`, companyID)
		if err != nil {
			return nil, fmt.Errorf("list company members: %w", err)
		}
		return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.MemberUser, error) {
			var mu domain.MemberUser
			err := row.Scan(&mu.User.ID, &mu.User.Email, &mu.User.FirstName, &mu.User.LastName,
				&mu.User.AvatarURL, &mu.User.CreateTime, &mu.Role)
			return mu, err
		})
	})
}

func (s *Store) UpdateMemberRole(ctx context.Context, companyID, userID uuid.UUID, role domain.Role) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE company_members SET role = $3 WHERE company_id = $1 AND user_id = $2;`,
		companyID, userID, role,
	)
	if isUniqueViolation(err, "uq_company_owner") {
		return errors.AlreadyExists("Company already has an owner.")
	}
	if err != nil {
		return fmt.Errorf("update company member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("Company Member", userID)
	}
	return nil
}

func (s *Store) DeleteMember(ctx context.Context, companyID, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM company_members WHERE company_id = $1 AND user_id = $2;`, companyID, userID)
	if err != nil {
		return fmt.Errorf("delete company member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("Company Member", userID)
	}
	return nil
}

// Invitations

func (s *Store) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	if inv.ID == uuid.Nil {
		id, err := store.NewID()
		if err != nil {
			return err
		}
		inv.ID = id
	}
	if inv.Status == "" {
		inv.Status = domain.InvitationStatusPending
	}

	const stmt = `INSERT INTO company_invitations
(invitation_id, company_id, invited_user_id, invited_by_id, invitation_type, status)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING create_time, update_time;`

	err := s.db.QueryRow(ctx, stmt,
		inv.ID, inv.CompanyID, inv.InvitedUserID, inv.InvitedByID, inv.Type, inv.Status,
	).Scan(&inv.CreateTime, &inv.UpdateTime)
	if isUniqueViolation(err, "uq_invitation_pending") {
		return errors.AlreadyExists("User is already invited or a member of the company.")
	}
	if err != nil {
		return fmt.Errorf("insert company invitation: %w", err)
	}
	return nil
}

const invitationColumns = `i.invitation_id, i.company_id, i.invited_user_id, i.invited_by_id,
i.invitation_type, i.status, i.create_time, i.update_time`

func invitationDest(inv *domain.Invitation) []any {
	return []any{
		&inv.ID, &inv.CompanyID, &inv.InvitedUserID, &inv.InvitedByID,
		&inv.Type, &inv.Status, &inv.CreateTime, &inv.UpdateTime,
	}
}

func (s *Store) GetInvitation(ctx context.Context, id uuid.UUID) (*domain.Invitation, error) {
	return read(ctx, s, func() (*domain.Invitation, error) {
		var inv domain.Invitation
		err := s.db.QueryRow(ctx,
			`SELECT `+invitationColumns+` FROM company_invitations i WHERE i.invitation_id = $1;`, id,
		).Scan(invitationDest(&inv)...)
		if err != nil {
			return nil, orNotFound(err, "Company Invitation", id)
		}
		return &inv, nil
	})
}

func (s *Store) InvitationExists(ctx context.Context, companyID, userID uuid.UUID, status domain.InvitationStatus) (bool, error) {
	return read(ctx, s, func() (bool, error) {
		var ok bool
		err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM company_invitations
WHERE company_id = $1 AND invited_user_id = $2 AND status = $3);`, companyID, userID, status).Scan(&ok)
		if err != nil {
			return false, fmt.Errorf("check company invitation: %w", err)
		}
		return ok, nil
	})
}

func (s *Store) TransitionInvitation(ctx context.Context, id uuid.UUID, from, to domain.InvitationStatus) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE company_invitations SET status = $3, update_time = now() WHERE invitation_id = $1 AND status = $2;`,
		id, from, to,
	)
	if err != nil {
		return false, fmt.Errorf("transition company invitation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListInvitationsForUser(ctx context.Context, userID uuid.UUID) ([]domain.InvitationDetail, error) {
	return s.listInvitations(ctx, "i.invited_user_id", userID)
}

func (s *Store) ListInvitationsForCompany(ctx context.Context, companyID uuid.UUID) ([]domain.InvitationDetail, error) {
	return s.listInvitations(ctx, "i.company_id", companyID)
}

func (s *Store) listInvitations(ctx context.Context, column string, id uuid.UUID) ([]domain.InvitationDetail, error) {
	q := `SELECT ` + invitationColumns + `, ` + companyColumns + `,
iu.user_id, iu.email, iu.first_name, iu.last_name, iu.avatar_url, iu.create_time,
ib.user_id, ib.email, ib.first_name, ib.last_name, ib.avatar_url, ib.create_time
FROM company_invitations i
JOIN companies c ON c.company_id = i.company_id
JOIN users iu ON iu.user_id = i.invited_user_id
JOIN users ib ON ib.user_id = i.invited_by_id
WHERE ` + column + ` = $1
ORDER BY i.create_time DESC, i.invitation_id DESC;`

	return read(ctx, s, func() ([]domain.InvitationDetail, error) {
		rows, err := s.db.Query(ctx, q, id)
		if err != nil {
			return nil, fmt.Errorf("list company invitations: %w", err)
		}
		return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.InvitationDetail, error) {
			var d domain.InvitationDetail
			dest := invitationDest(&d.Invitation)
			dest = append(dest, companyDest(&d.Company)...)
			dest = append(dest,
				&d.InvitedUser.ID, &d.InvitedUser.Email, &d.InvitedUser.FirstName, &d.InvitedUser.LastName,
				&d.InvitedUser.AvatarURL, &d.InvitedUser.CreateTime,
				&d.InvitedBy.ID, &d.InvitedBy.Email, &d.InvitedBy.FirstName, &d.InvitedBy.LastName,
				&d.InvitedBy.AvatarURL, &d.InvitedBy.CreateTime,
			)
			err := row.Scan(dest...)
			return d, err
		})
	})
}

func (s *Store) DeleteInvitations(ctx context.Context, companyID, userID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM company_invitations WHERE company_id = $1 AND invited_user_id = $2;`,
		companyID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete company invitations: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Quizzes

const quizColumns = `quiz_id, company_id, title, description, counter, create_time, update_time`

func quizDest(q *domain.Quiz) []any {
	return []any{&q.ID, &q.CompanyID, &q.Title, &q.Description, &q.Counter, &q.CreateTime, &q.UpdateTime}
}

func (s *Store) CreateQuiz(ctx context.Context, q *domain.Quiz) error {
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

	return s.atomic(ctx, func(tx *Store) error {
		const stmt = `INSERT INTO quizzes (quiz_id, company_id, title, description, counter)
VALUES ($1, $2, $3, $4, $5) RETURNING create_time, update_time;`

		err := tx.db.QueryRow(ctx, stmt, q.ID, q.CompanyID, q.Title, q.Description, q.Counter).
			Scan(&q.CreateTime, &q.UpdateTime)
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
			return errors.NotFound("Company", q.CompanyID)
		}
		if err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}
		return tx.writeQuestions(ctx, q)
	})
}

// writeQuestions upserts the questions and answers of q by ID and drops the
// stored rows past the new lengths, in one round trip.
func (s *Store) writeQuestions(ctx context.Context, q *domain.Quiz) error {
	const (
		upsertQuestionStmt = `INSERT INTO questions (question_id, quiz_id, position, question_text) VALUES ($1, $2, $3, $4)
ON CONFLICT (question_id) DO UPDATE SET question_text = EXCLUDED.question_text;`
		upsertAnswerStmt = `INSERT INTO answers (answer_id, question_id, position, answer_text, is_correct) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (answer_id) DO UPDATE SET answer_text = EXCLUDED.answer_text, is_correct = EXCLUDED.is_correct;`
		trimAnswersStmt   = `DELETE FROM answers WHERE question_id = $1 AND position >= $2;`
		trimQuestionsStmt = `DELETE FROM questions WHERE quiz_id = $1 AND position >= $2;`
	)

	b := &pgx.Batch{}
	for i, qq := range q.Questions {
		b.Queue(upsertQuestionStmt, qq.ID, q.ID, i, qq.Text)
		for j, a := range qq.Answers {
			b.Queue(upsertAnswerStmt, a.ID, qq.ID, j, a.Text, a.IsCorrect)
		}
		b.Queue(trimAnswersStmt, qq.ID, len(qq.Answers))
	}
	b.Queue(trimQuestionsStmt, q.ID, len(q.Questions))

	if err := s.db.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("write questions: %w", err)
	}
	return nil
}

func (s *Store) GetQuiz(ctx context.Context, companyID, quizID uuid.UUID) (*domain.Quiz, error) {
	return read(ctx, s, func() (*domain.Quiz, error) {
		return s.loadQuiz(ctx, companyID, quizID, "")
	})
}

func (s *Store) loadQuiz(ctx context.Context, companyID, quizID uuid.UUID, lock string) (*domain.Quiz, error) {
	var q domain.Quiz
	err := s.db.QueryRow(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE quiz_id = $1 AND company_id = $2 `+lock, quizID, companyID,
	).Scan(quizDest(&q)...)
	if err != nil {
		return nil, orNotFound(err, "Quiz", quizID)
	}

	rows, err := s.db.Query(ctx, `SELECT q.question_id, q.question_text, a.answer_id, a.answer_text, a.is_correct
FROM questions q LEFT JOIN answers a ON a.question_id = q.question_id
WHERE q.quiz_id = $1
ORDER BY q.position, a.position;`, quizID)
	if err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			questionID uuid.UUID
			text       string
			answerID   *uuid.UUID
			answerText *string
			isCorrect  *bool
		)
		if err := rows.Scan(&questionID, &text, &answerID, &answerText, &isCorrect); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}

		if n := len(q.Questions); n == 0 || q.Questions[n-1].ID != questionID {
			q.Questions = append(q.Questions, domain.Question{ID: questionID, QuizID: q.ID, Text: text})
		}
		if answerID == nil {
			continue
		}
		last := &q.Questions[len(q.Questions)-1]
		last.Answers = append(last.Answers, domain.Answer{
			ID:         *answerID,
			QuestionID: questionID,
			Text:       *answerText,
			IsCorrect:  *isCorrect,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}

	return &q, nil
}

func (s *Store) UpdateQuiz(ctx context.Context, q *domain.Quiz) error {
	return s.atomic(ctx, func(tx *Store) error {
		old, err := tx.loadQuiz(ctx, q.CompanyID, q.ID, "FOR UPDATE")
		if err != nil {
			return err
		}
		if err := store.AssignQuizIDs(q, old); err != nil {
			return err
		}

		err = tx.db.QueryRow(ctx,
			`UPDATE quizzes SET title = $2, description = $3, counter = $4, update_time = now()
WHERE quiz_id = $1 RETURNING create_time, update_time;`,
			q.ID, q.Title, q.Description, q.Counter,
		).Scan(&q.CreateTime, &q.UpdateTime)
		if err != nil {
			return fmt.Errorf("update quiz: %w", err)
		}
		return tx.writeQuestions(ctx, q)
	})
}

func (s *Store) DeleteQuiz(ctx context.Context, companyID, quizID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM quizzes WHERE quiz_id = $1 AND company_id = $2;`, quizID, companyID)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("Quiz", quizID)
	}
	return nil
}

func (s *Store) ListQuizzes(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]domain.Quiz, int, error) {
	type result struct {
		items []domain.Quiz
		total int
	}
	r, err := read(ctx, s, func() (result, error) {
		var r result
		if err := s.db.QueryRow(ctx, `SELECT count(*) FROM quizzes WHERE company_id = $1;`, companyID).Scan(&r.total); err != nil {
			return r, fmt.Errorf("count quizzes: %w", err)
		}

		rows, err := s.db.Query(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE company_id = $1
ORDER BY create_time DESC, quiz_id DESC LIMIT $2 OFFSET $3;`, companyID, limitArg(limit), offset)
		if err != nil {
			return r, fmt.Errorf("list quizzes: %w", err)
		}
		r.items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Quiz, error) {
			var q domain.Quiz
			err := row.Scan(quizDest(&q)...)
			return q, err
		})
		if err != nil {
			return r, fmt.Errorf("scan quizzes: %w", err)
		}
		return r, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return r.items, r.total, nil
}

// Attempts

func (s *Store) RecordAttempt(ctx context.Context, a *domain.Attempt) error {
	if a.ID == uuid.Nil {
		id, err := store.NewID()
		if err != nil {
			return err
		}
		a.ID = id
	}

	const stmt = `INSERT INTO quiz_attempts
(attempt_id, user_id, quiz_id, company_id, score, total_questions, correct_answers_count, attempt_time)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8);`

	_, err := s.db.Exec(ctx, stmt,
		a.ID, a.UserID, a.QuizID, a.CompanyID, a.Score.StringFixed(2), a.TotalQuestions, a.CorrectAnswersCount, a.AttemptTime,
	)
	if err != nil {
		return fmt.Errorf("insert quiz attempt: %w", err)
	}
	return nil
}

func (s *Store) ListAttempts(ctx context.Context, userID, quizID uuid.UUID) ([]domain.Attempt, error) {
	return read(ctx, s, func() ([]domain.Attempt, error) {
		rows, err := s.db.Query(ctx, `SELECT attempt_id, user_id, quiz_id, company_id, score::text,
total_questions, correct_answers_count, attempt_time
FROM quiz_attempts WHERE user_id = $1 AND quiz_id = $2
ORDER BY attempt_time DESC, attempt_id DESC;`, userID, quizID)
		if err != nil {
			return nil, fmt.Errorf("list quiz attempts: %w", err)
		}
		return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Attempt, error) {
			var (
				a     domain.Attempt
				score string
			)
			if err := row.Scan(&a.ID, &a.UserID, &a.QuizID, &a.CompanyID, &score,
				&a.TotalQuestions, &a.CorrectAnswersCount, &a.AttemptTime); err != nil {
				return a, err
			}
			var err error
			a.Score, err = decimal.NewFromString(score)
			return a, err
		})
	})
}
