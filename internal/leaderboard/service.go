// Package leaderboard ranks company members by their best score on each quiz.
package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/victornm/orgquiz/internal/access"
	"github.com/victornm/orgquiz/internal/domain"
	"github.com/victornm/orgquiz/internal/errors"
	"github.com/victornm/orgquiz/internal/event"
	"github.com/victornm/orgquiz/internal/store"
)

const (
	publishInterval = 200 * time.Millisecond
	defaultSize     = 10
)

type Config struct {
	Store    store.Store
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
	// Size is how many entries GetLeaderboard returns, 10 by default.
	Size int64
}

type Service struct {
	store  store.Store
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
	size   int64
}

func NewService(c Config) *Service {
	s := &Service{
		store:  c.Store,
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
		size:   c.Size,
	}
	if s.size <= 0 {
		s.size = defaultSize
	}

	s.eb.Subscribe(domain.EventNameQuizAttempted, func(ctx context.Context, e event.Event) error {
		return s.RecordAttempt(ctx, e.(domain.EventQuizAttempted))
	})
	s.eb.Subscribe(domain.EventNameMemberRemoved, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventMemberRemoved)
		return s.RemoveMember(ctx, ev.Company.ID, ev.UserID)
	})
	s.eb.Subscribe(domain.EventNameQuizDeleted, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventQuizDeleted)
		return s.DeleteQuiz(ctx, ev.CompanyID, ev.QuizID)
	})
	s.eb.Subscribe(domain.EventNameCompanyDeleted, func(ctx context.Context, e event.Event) error {
		return s.DeleteCompany(ctx, e.(domain.EventCompanyDeleted).CompanyID)
	})

	return s
}

type GetLeaderboardRequest struct {
	ActorID   uuid.UUID
	CompanyID uuid.UUID
	QuizID    uuid.UUID
}

// GetLeaderboard returns the top members of a quiz, best first. Any member of
// the company may read it.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	g, err := access.Authorize(ctx, s.store, req.ActorID, req.CompanyID, access.ActionReadQuiz)
	if err != nil {
		return nil, err
	}

	q, err := s.store.GetQuiz(ctx, g.Company.ID, req.QuizID)
	if err != nil {
		return nil, err
	}

	return s.top(ctx, q.CompanyID, q.ID)
}

// top reads the best entries of a quiz board. Entries of users who are no
// longer members are skipped and dropped from the board.
func (s *Service) top(ctx context.Context, companyID, quizID uuid.UUID) (*domain.Leaderboard, error) {
	key := s.leaderboardKey(companyID, quizID)
	l := &domain.Leaderboard{
		CompanyID: companyID,
		QuizID:    quizID,
		Entries:   make([]domain.LeaderboardEntry, 0, s.size),
	}

	var stale []any
	for start := int64(0); int64(len(l.Entries)) < s.size; start += s.size {
		res, err := s.redis.ZRevRangeWithScores(ctx, key, start, start+s.size-1).Result()
		if err != nil {
			return nil, fmt.Errorf("get leaderboard: %w", err)
		}

		for _, z := range res {
			id, err := uuid.Parse(z.Member.(string))
			if err != nil {
				return nil, fmt.Errorf("leaderboard member %v: %w", z.Member, err)
			}

			if _, err := s.store.GetMember(ctx, companyID, id); err != nil {
				if errors.Is(err, errors.CodeNotFound) {
					stale = append(stale, z.Member)
					continue
				}
				return nil, err
			}

			if int64(len(l.Entries)) < s.size {
				l.Entries = append(l.Entries, domain.LeaderboardEntry{
					UserID: id,
					Score:  decimal.NewFromFloat(z.Score).Round(2),
				})
			}
		}

		if int64(len(res)) < s.size {
			break
		}
	}

	if len(stale) > 0 {
		if err := s.redis.ZRem(ctx, key, stale...).Err(); err != nil {
			slog.WarnContext(ctx, "leaderboard: drop stale entries failed", "quiz_id", quizID, "error", err)
		}
	}

	return l, nil
}

// RecordAttempt keeps the user's best score on the quiz.
func (s *Service) RecordAttempt(ctx context.Context, e domain.EventQuizAttempted) error {
	a := e.Attempt

	if _, err := s.redis.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAddArgs(ctx, s.leaderboardKey(a.CompanyID, a.QuizID), redis.ZAddArgs{
			GT: true,
			Members: []redis.Z{{
				Score:  a.Score.InexactFloat64(),
				Member: a.UserID.String(),
			}},
		})
		p.SAdd(ctx, s.quizzesKey(a.CompanyID), a.QuizID.String())
		return nil
	}); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, a)
}

// schedulePublishLeaderboard publishes at most one leaderboard.updated per quiz
// and interval, however many attempts land in it.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, a domain.Attempt) error {
	ok, err := s.redis.SetNX(ctx, s.publishTimeKey(a.CompanyID, a.QuizID), a.AttemptTime.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	l, err := s.top(ctx, a.CompanyID, a.QuizID)
	if err != nil {
		return fmt.Errorf("get leaderboard failed: quiz=%s: %w", a.QuizID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{Leaderboard: *l})
	return nil
}

// RemoveMember drops the user from every quiz board of the company.
func (s *Service) RemoveMember(ctx context.Context, companyID, userID uuid.UUID) error {
	quizIDs, err := s.quizzes(ctx, companyID)
	if err != nil {
		return err
	}
	if len(quizIDs) == 0 {
		return nil
	}

	if _, err := s.redis.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range quizIDs {
			p.ZRem(ctx, s.leaderboardKey(companyID, id), userID.String())
		}
		return nil
	}); err != nil {
		return fmt.Errorf("remove member from leaderboards: %w", err)
	}
	return nil
}

// DeleteQuiz drops the quiz board.
func (s *Service) DeleteQuiz(ctx context.Context, companyID, quizID uuid.UUID) error {
	if _, err := s.redis.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.leaderboardKey(companyID, quizID))
		p.Del(ctx, s.publishTimeKey(companyID, quizID))
		p.SRem(ctx, s.quizzesKey(companyID), quizID.String())
		return nil
	}); err != nil {
		return fmt.Errorf("delete leaderboard: %w", err)
	}
	return nil
}

// DeleteCompany drops every quiz board of the company.
func (s *Service) DeleteCompany(ctx context.Context, companyID uuid.UUID) error {
	quizIDs, err := s.quizzes(ctx, companyID)
	if err != nil {
		return err
	}

	if _, err := s.redis.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range quizIDs {
			p.Del(ctx, s.leaderboardKey(companyID, id))
			p.Del(ctx, s.publishTimeKey(companyID, id))
		}
		p.Del(ctx, s.quizzesKey(companyID))
		return nil
	}); err != nil {
		return fmt.Errorf("delete leaderboards: %w", err)
	}
	return nil
}

// quizzes lists the quizzes of the company that have a board.
func (s *Service) quizzes(ctx context.Context, companyID uuid.UUID) ([]uuid.UUID, error) {
	res, err := s.redis.SMembers(ctx, s.quizzesKey(companyID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list leaderboards: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(res))
	for _, v := range res {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("leaderboard quiz %q: %w", v, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Service) leaderboardKey(companyID, quizID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s:leaderboard", s.prefix, companyID, quizID)
}

func (s *Service) publishTimeKey(companyID, quizID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s:time", s.prefix, companyID, quizID)
}

func (s *Service) quizzesKey(companyID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:quizzes", s.prefix, companyID)
}
