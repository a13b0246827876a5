package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/victornm/orgquiz/internal/domain"
)

// NewID returns a time-ordered identifier for a new row.
func NewID() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate ID: %w", err)
	}
	return id, nil
}

// AssignQuizIDs fills question and answer IDs of q. Positions that also exist
// in old reuse the stored IDs; the others get fresh ones. old may be nil.
func AssignQuizIDs(q *domain.Quiz, old *domain.Quiz) error {
	for i := range q.Questions {
		qq := &q.Questions[i]

		var oldQ *domain.Question
		if old != nil && i < len(old.Questions) {
			oldQ = &old.Questions[i]
		}

		if oldQ != nil {
			qq.ID = oldQ.ID
		} else {
			id, err := NewID()
			if err != nil {
				return err
			}
			qq.ID = id
		}
		qq.QuizID = q.ID

		for j := range qq.Answers {
			a := &qq.Answers[j]
			if oldQ != nil && j < len(oldQ.Answers) {
				a.ID = oldQ.Answers[j].ID
			} else {
				id, err := NewID()
				if err != nil {
					return err
				}
				a.ID = id
			}
			a.QuestionID = qq.ID
		}
	}
	return nil
}
