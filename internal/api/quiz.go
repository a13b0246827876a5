package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/orgquiz/internal/leaderboard"
	"github.com/victornm/orgquiz/internal/quiz"
)

func (a *API) CreateQuiz(c *gin.Context) {
	id, ok := pathID(c, "company_id")
	if !ok {
		return
	}

	var body quiz.QuizInput
	if !bindJSON(c, &body) {
		return
	}

	q, err := a.qs.CreateQuiz(c.Request.Context(), quiz.CreateQuizRequest{
		ActorID:   actorID(c),
		CompanyID: id,
		QuizInput: body,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toQuiz(*q))
}

func (a *API) UpdateQuiz(c *gin.Context) {
	req, ok := quizRequest(c)
	if !ok {
		return
	}

	var body quiz.QuizInput
	if !bindJSON(c, &body) {
		return
	}

	q, err := a.qs.UpdateQuiz(c.Request.Context(), quiz.UpdateQuizRequest{
		ActorID:   req.ActorID,
		CompanyID: req.CompanyID,
		QuizID:    req.QuizID,
		QuizInput: body,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuiz(*q))
}

func (a *API) DeleteQuiz(c *gin.Context) {
	req, ok := quizRequest(c)
	if !ok {
		return
	}

	if err := a.qs.DeleteQuiz(c.Request.Context(), req); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) GetQuiz(c *gin.Context) {
	req, ok := quizRequest(c)
	if !ok {
		return
	}

	q, err := a.qs.GetQuiz(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuiz(*q))
}

func (a *API) ListQuizzes(c *gin.Context) {
	id, ok := pathID(c, "company_id")
	if !ok {
		return
	}
	limit, offset, ok := pageQuery(c)
	if !ok {
		return
	}

	p, err := a.qs.ListQuizzes(c.Request.Context(), quiz.ListQuizzesRequest{
		ActorID:   actorID(c),
		CompanyID: id,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPage(p, toQuiz))
}

func (a *API) AttemptQuiz(c *gin.Context) {
	req, ok := quizRequest(c)
	if !ok {
		return
	}

	var body quiz.Submission
	if !bindJSON(c, &body) {
		return
	}

	at, err := a.qs.AttemptQuiz(c.Request.Context(), quiz.AttemptQuizRequest{
		ActorID:    req.ActorID,
		CompanyID:  req.CompanyID,
		QuizID:     req.QuizID,
		Submission: body,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toAttempt(*at))
}

// GetQuizAttempts answers null once the latest attempt has left the cache.
func (a *API) GetQuizAttempts(c *gin.Context) {
	req, ok := quizRequest(c)
	if !ok {
		return
	}

	d, err := a.qs.GetQuizAttempts(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAttemptDetail(d))
}

func (a *API) AttemptHistory(c *gin.Context) {
	req, ok := quizRequest(c)
	if !ok {
		return
	}

	as, err := a.qs.AttemptHistory(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSlice(as, toAttempt))
}

func (a *API) GetLeaderboard(c *gin.Context) {
	req, ok := quizRequest(c)
	if !ok {
		return
	}

	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		ActorID:   req.ActorID,
		CompanyID: req.CompanyID,
		QuizID:    req.QuizID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toLeaderboard(*l))
}

func quizRequest(c *gin.Context) (quiz.QuizRequest, bool) {
	companyID, ok := pathID(c, "company_id")
	if !ok {
		return quiz.QuizRequest{}, false
	}
	quizID, ok := pathID(c, "quiz_id")
	if !ok {
		return quiz.QuizRequest{}, false
	}

	return quiz.QuizRequest{
		ActorID:   actorID(c),
		CompanyID: companyID,
		QuizID:    quizID,
	}, true
}
