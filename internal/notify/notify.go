// Package notify pushes membership and leaderboard events to the users they
// concern over Redis pub/sub, one channel per user.
package notify

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/orgquiz/internal/domain"
	"github.com/victornm/orgquiz/internal/event"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	InvitationNotice struct {
		InvitationID  uuid.UUID               `json:"invitation_id"`
		CompanyID     uuid.UUID               `json:"company_id"`
		CompanyName   string                  `json:"company_name"`
		InvitedUserID uuid.UUID               `json:"invited_user_id"`
		Type          domain.InvitationType   `json:"type"`
		Status        domain.InvitationStatus `json:"status"`
	}

	MembershipNotice struct {
		CompanyID   uuid.UUID   `json:"company_id"`
		CompanyName string      `json:"company_name"`
		UserID      uuid.UUID   `json:"user_id"`
		Role        domain.Role `json:"role,omitempty"`
		Left        bool        `json:"left,omitempty"`
	}

	Leaderboard struct {
		CompanyID uuid.UUID          `json:"company_id"`
		QuizID    uuid.UUID          `json:"quiz_id"`
		Entries   []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		UserID uuid.UUID `json:"user_id"`
		Score  string    `json:"score"`
	}
)

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type Config struct {
	Redis    Redis
	Prefix   string
	EventBus *event.Bus
}

type Notifier struct {
	redis  Redis
	prefix string
}

// New creates a Notifier and subscribes it to the membership events of the bus.
func New(c Config) *Notifier {
	n := &Notifier{
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	c.EventBus.Subscribe(domain.EventNameInvitationCreated, func(ctx context.Context, e event.Event) error {
		return n.InvitationCreated(ctx, e.(domain.EventInvitationCreated))
	})
	c.EventBus.Subscribe(domain.EventNameInvitationResponded, func(ctx context.Context, e event.Event) error {
		return n.InvitationResponded(ctx, e.(domain.EventInvitationResponded))
	})
	c.EventBus.Subscribe(domain.EventNameMemberRemoved, func(ctx context.Context, e event.Event) error {
		return n.MemberRemoved(ctx, e.(domain.EventMemberRemoved))
	})
	c.EventBus.Subscribe(domain.EventNameMemberRoleChanged, func(ctx context.Context, e event.Event) error {
		return n.MemberRoleChanged(ctx, e.(domain.EventMemberRoleChanged))
	})
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return n.LeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return n
}

// Channel is the pub/sub channel of one user.
func (n *Notifier) Channel(userID uuid.UUID) string {
	if n.prefix == "" {
		return fmt.Sprintf("user:%s", userID)
	}
	return fmt.Sprintf("%s:user:%s", n.prefix, userID)
}

// InvitationCreated tells the counterparty: the invited user for an invite,
// the owner for a membership request.
func (n *Notifier) InvitationCreated(ctx context.Context, e domain.EventInvitationCreated) error {
	to := e.Invitation.InvitedUserID
	if e.Invitation.Type == domain.InvitationTypeUserRequest {
		to = e.Company.OwnerID
	}
	return n.publish(ctx, e.Name(), invitationNotice(e.Invitation, e.Company), to)
}

// InvitationResponded tells both sides of the invitation, except whoever responded.
func (n *Notifier) InvitationResponded(ctx context.Context, e domain.EventInvitationResponded) error {
	var to []uuid.UUID
	for _, id := range []uuid.UUID{e.Invitation.InvitedUserID, e.Company.OwnerID} {
		if id != e.ActorID {
			to = append(to, id)
		}
	}
	return n.publish(ctx, e.Name(), invitationNotice(e.Invitation, e.Company), to...)
}

// MemberRemoved tells the removed user, or the owner when the member left.
func (n *Notifier) MemberRemoved(ctx context.Context, e domain.EventMemberRemoved) error {
	to := e.UserID
	if e.Left {
		to = e.Company.OwnerID
	}
	return n.publish(ctx, e.Name(), MembershipNotice{
		CompanyID:   e.Company.ID,
		CompanyName: e.Company.Name,
		UserID:      e.UserID,
		Left:        e.Left,
	}, to)
}

func (n *Notifier) MemberRoleChanged(ctx context.Context, e domain.EventMemberRoleChanged) error {
	return n.publish(ctx, e.Name(), MembershipNotice{
		CompanyID:   e.Company.ID,
		CompanyName: e.Company.Name,
		UserID:      e.Member.UserID,
		Role:        e.Member.Role,
	}, e.Member.UserID)
}

// LeaderboardUpdated sends the leaderboard to everyone ranked on it.
func (n *Notifier) LeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	l := e.Leaderboard

	data := Leaderboard{
		CompanyID: l.CompanyID,
		QuizID:    l.QuizID,
		Entries:   make([]LeaderboardEntry, 0, len(l.Entries)),
	}

	to := make([]uuid.UUID, 0, len(l.Entries))
	for _, entry := range l.Entries {
		data.Entries = append(data.Entries, LeaderboardEntry{
			UserID: entry.UserID,
			Score:  entry.Score.StringFixed(2),
		})
		to = append(to, entry.UserID)
	}

	return n.publish(ctx, e.Name(), data, to...)
}

func invitationNotice(inv domain.Invitation, c domain.Company) InvitationNotice {
	return InvitationNotice{
		InvitationID:  inv.ID,
		CompanyID:     c.ID,
		CompanyName:   c.Name,
		InvitedUserID: inv.InvitedUserID,
		Type:          inv.Type,
		Status:        inv.Status,
	}
}

func (n *Notifier) publish(ctx context.Context, name string, data any, users ...uuid.UUID) error {
	b, err := sonic.Marshal(Notification{Event: name, Data: data})
	if err != nil {
		return fmt.Errorf("notify: marshal %s: %w", name, err)
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, u := range users {
		eg.Go(func() error {
			return n.redis.Publish(ctx, n.Channel(u), b).Err()
		})
	}

	return eg.Wait()
}
