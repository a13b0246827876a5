package domain

import "github.com/google/uuid"

const (
	EventNameInvitationCreated   = "invitation.created"
	EventNameInvitationResponded = "invitation.responded"
	EventNameMemberRemoved       = "member.removed"
	EventNameMemberRoleChanged   = "member.role_changed"
	EventNameQuizAttempted       = "quiz.attempted"
	EventNameQuizDeleted         = "quiz.deleted"
	EventNameCompanyDeleted      = "company.deleted"
	EventNameLeaderboardUpdated  = "leaderboard.updated"
)

type EventInvitationCreated struct {
	Invitation Invitation
	Company    Company
}

func (EventInvitationCreated) Name() string { return EventNameInvitationCreated }

// EventInvitationResponded is published once an invitation reaches a terminal status.
type EventInvitationResponded struct {
	Invitation Invitation
	Company    Company
	ActorID    uuid.UUID
}

func (EventInvitationResponded) Name() string { return EventNameInvitationResponded }

type EventMemberRemoved struct {
	Company Company
	UserID  uuid.UUID
	// Left is true when the member removed themselves.
	Left bool
}

func (EventMemberRemoved) Name() string { return EventNameMemberRemoved }

type EventMemberRoleChanged struct {
	Company Company
	Member  CompanyMember
}

func (EventMemberRoleChanged) Name() string { return EventNameMemberRoleChanged }

type EventQuizAttempted struct {
	Attempt Attempt
}

func (EventQuizAttempted) Name() string { return EventNameQuizAttempted }

type EventQuizDeleted struct {
	CompanyID uuid.UUID
	QuizID    uuid.UUID
}

func (EventQuizDeleted) Name() string { return EventNameQuizDeleted }

type EventCompanyDeleted struct {
	CompanyID uuid.UUID
}

func (EventCompanyDeleted) Name() string { return EventNameCompanyDeleted }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
