package quiz

import (
	"github.com/shopspring/decimal"

	"github.com/victornm/orgquiz/internal/domain"
)

// Submission is a member's answer sheet. Answers marked IsCorrect are the
// ones the member picked.
type Submission struct {
	Questions []SubmittedQuestion `json:"questions" validate:"dive"`
}

type SubmittedQuestion struct {
	Text    string            `json:"question_text" validate:"max=500"`
	Answers []SubmittedAnswer `json:"answers" validate:"dive"`
}

type SubmittedAnswer struct {
	Text      string `json:"answer_text" validate:"max=500"`
	IsCorrect bool   `json:"is_correct"`
}

// Result is the outcome of scoring one submission.
type Result struct {
	Score               decimal.Decimal
	TotalQuestions      int
	CorrectAnswersCount int
	AnswersDetail       []domain.QuestionResult
}

var hundred = decimal.NewFromInt(100)

// CalculateScore grades sub against q. Questions are paired by position up to
// the shorter list; a pair counts only when the texts match exactly and the
// picked answers equal the correct answers as sets. The detail reports, for
// every picked answer of a matched question, whether it is actually correct.
// A quiz without questions scores 0.
func CalculateScore(sub Submission, q *domain.Quiz) Result {
	res := Result{
		Score:          decimal.Zero,
		TotalQuestions: len(q.Questions),
		AnswersDetail:  []domain.QuestionResult{},
	}

	for i := 0; i < len(q.Questions) && i < len(sub.Questions); i++ {
		want, got := q.Questions[i], sub.Questions[i]
		if want.Text != got.Text {
			continue
		}

		correct := make(map[string]struct{})
		for _, a := range want.Answers {
			if a.IsCorrect {
				correct[a.Text] = struct{}{}
			}
		}

		picked := make(map[string]struct{})
		answers := make([]domain.AnswerResult, 0, len(got.Answers))
		for _, a := range got.Answers {
			if a.IsCorrect {
				picked[a.Text] = struct{}{}
			}
			_, ok := correct[a.Text]
			answers = append(answers, domain.AnswerResult{AnswerText: a.Text, IsCorrect: ok})
		}

		if sameSet(correct, picked) {
			res.CorrectAnswersCount++
		}
		res.AnswersDetail = append(res.AnswersDetail, domain.QuestionResult{
			QuestionText: want.Text,
			Answers:      answers,
		})
	}

	if res.TotalQuestions > 0 {
		res.Score = decimal.NewFromInt(int64(res.CorrectAnswersCount)).
			Mul(hundred).
			Div(decimal.NewFromInt(int64(res.TotalQuestions))).
			Round(2)
	}

	return res
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
