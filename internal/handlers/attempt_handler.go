package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/iNeydlis/schooltest/internal/dto"
	"github.com/iNeydlis/schooltest/internal/models"
	"github.com/iNeydlis/schooltest/internal/service"

	"github.com/gin-gonic/gin"
)

type AttemptHandler struct {
	attemptService *service.AttemptService
}

func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
	}
}

// StartAttempt opens or resumes the caller's attempt on a test. The response
// is the same either way; Resumed tells the client which happened.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	var req dto.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	studentID := c.GetString("user_id")

	existing, err := h.attemptService.InProgress(ctx, req.TestID, studentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	attempt, err := h.attemptService.Start(ctx, req.TestID, studentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	resumed := existing != nil && existing.ID == attempt.ID
	c.JSON(http.StatusOK, dto.StartAttemptResponse{
		Attempt: toAttemptDTO(attempt),
		Resumed: resumed,
	})
}

func (h *AttemptHandler) GetQuestions(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	studentID := c.GetString("user_id")
	attemptID := c.Param("id")
	testID := c.Query("test_id")

	attempt, questions, err := h.attemptService.Questions(ctx, testID, attemptID, studentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	resp := dto.GetQuestionsResponse{
		Attempt:   toAttemptDTO(attempt),
		Questions: []dto.QuestionDTO{},
	}
	for _, q := range questions {
		resp.Questions = append(resp.Questions, toQuestionDTO(q))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	var req dto.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	sub := &service.Submission{
		AttemptID: c.Param("id"),
		Forced:    req.Forced,
	}
	for _, a := range req.Answers {
		sub.Answers = append(sub.Answers, service.SubmissionAnswer{
			QuestionID:        a.QuestionID,
			SelectedOptionIDs: a.SelectedOptionIDs,
			TextAnswer:        a.TextAnswer,
		})
	}

	attempt, answers, err := h.attemptService.Submit(ctx, sub, c.GetString("user_id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	resp := dto.AttemptResultResponse{
		Attempt: toAttemptDTO(attempt),
		Answers: []dto.AnswerResultDTO{},
	}
	for _, a := range answers {
		resp.Answers = append(resp.Answers, toAnswerResultDTO(a))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AttemptHandler) GetResult(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	attempt, answers, err := h.attemptService.Result(ctx, c.Param("id"), c.GetString("user_id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	resp := dto.AttemptResultResponse{
		Attempt: toAttemptDTO(attempt),
		Answers: []dto.AnswerResultDTO{},
	}
	for _, a := range answers {
		resp.Answers = append(resp.Answers, toAnswerResultDTO(a))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AttemptHandler) GetMyAttempts(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	attempts, err := h.attemptService.StudentAttempts(ctx, c.GetString("user_id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	resp := dto.GetAttemptsResponse{Attempts: []dto.AttemptDTO{}}
	for _, a := range attempts {
		resp.Attempts = append(resp.Attempts, toAttemptDTO(a))
	}
	c.JSON(http.StatusOK, resp)
}

func toAnswerResultDTO(a *models.AttemptAnswer) dto.AnswerResultDTO {
	return dto.AnswerResultDTO{
		QuestionID:        a.QuestionID,
		SelectedOptionIDs: a.SelectedOptionIDs,
		TextAnswer:        a.TextAnswer,
		Correct:           a.Correct,
		EarnedPoints:      a.EarnedPoints,
		PartialRatio:      a.PartialRatio,
	}
}
