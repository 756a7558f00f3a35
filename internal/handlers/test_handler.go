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

type TestHandler struct {
	testService *service.TestService
}

func NewTestHandler(testService *service.TestService) *TestHandler {
	return &TestHandler{
		testService: testService,
	}
}

func (h *TestHandler) CreateTest(c *gin.Context) {
	var req dto.CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	test, err := h.testService.CreateTest(ctx, toTestInput(&req), c.GetString("user_id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toTestDTO(test))
}

func (h *TestHandler) UpdateTest(c *gin.Context) {
	var req dto.CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	test, err := h.testService.UpdateTest(ctx, c.Param("id"), toTestInput(&req), c.GetString("user_id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTestDTO(test))
}

func (h *TestHandler) DeleteTest(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.testService.DeactivateTest(ctx, c.Param("id"), c.GetString("user_id")); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *TestHandler) RestoreTest(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.testService.ReactivateTest(ctx, c.Param("id"), c.GetString("user_id")); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *TestHandler) GetTest(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	test, questions, err := h.testService.GetTest(ctx, c.Param("id"), c.GetString("user_id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	resp := dto.GetTestResponse{Test: toTestDTO(test)}
	for _, q := range questions {
		resp.Questions = append(resp.Questions, toFullQuestionDTO(q))
	}
	c.JSON(http.StatusOK, resp)
}

// GetTests lists tests for the caller. Students get active tests for their
// grade with attempt progress, teachers their own tests, admins everything.
func (h *TestHandler) GetTests(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	userID := c.GetString("user_id")

	switch c.GetString("role") {
	case models.RoleStudent:
		overviews, err := h.testService.TestsForStudent(ctx, userID)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		resp := dto.GetStudentTestsResponse{Tests: []dto.TestOverviewDTO{}}
		for _, ov := range overviews {
			resp.Tests = append(resp.Tests, dto.TestOverviewDTO{
				Test:              toTestDTO(ov.Test),
				QuestionCount:     ov.QuestionCount,
				RemainingAttempts: ov.RemainingAttempts,
				BestScore:         ov.BestScore,
				BestMaxScore:      ov.BestMaxScore,
				HasCompleted:      ov.HasCompleted,
			})
		}
		c.JSON(http.StatusOK, resp)

	case models.RoleTeacher:
		tests, err := h.testService.TestsByTeacher(ctx, userID)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTestsResponse(tests))

	case models.RoleAdmin:
		tests, err := h.testService.AllTests(ctx)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTestsResponse(tests))

	default:
		dto.JsonError(c, http.StatusForbidden, "Insufficient permissions")
	}
}

func toTestsResponse(tests []*models.Test) dto.GetTestsResponse {
	resp := dto.GetTestsResponse{Tests: []dto.TestDTO{}}
	for _, t := range tests {
		resp.Tests = append(resp.Tests, toTestDTO(t))
	}
	return resp
}

func toTestInput(req *dto.CreateTestRequest) *service.TestInput {
	input := &service.TestInput{
		Title:           req.Title,
		Description:     req.Description,
		SubjectID:       req.SubjectID,
		GradeIDs:        req.GradeIDs,
		TimeLimitMin:    req.TimeLimitMin,
		QuestionsToShow: req.QuestionsToShow,
		MaxAttempts:     req.MaxAttempts,
	}
	for _, q := range req.Questions {
		qi := service.QuestionInput{
			Text:   q.Text,
			Type:   q.Type,
			Points: q.Points,
		}
		for _, opt := range q.Options {
			qi.Options = append(qi.Options, service.OptionInput{
				Text:    opt.Text,
				Correct: opt.Correct,
			})
		}
		input.Questions = append(input.Questions, qi)
	}
	return input
}
