package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/iNeydlis/schooltest/internal/dto"
	"github.com/iNeydlis/schooltest/internal/models"
	"github.com/iNeydlis/schooltest/internal/service"

	"github.com/gin-gonic/gin"
)

var statusByCode = map[string]int{
	service.CodeTestNotFound:         http.StatusNotFound,
	service.CodeAttemptNotFound:      http.StatusNotFound,
	service.CodeTestInactive:         http.StatusConflict,
	service.CodeAttemptCompleted:     http.StatusConflict,
	service.CodeAttemptLimitExceeded: http.StatusConflict,
	service.CodeDeadlineExceeded:     http.StatusConflict,
	service.CodeAccessDenied:         http.StatusForbidden,
	service.CodeInvalidCredentials:   http.StatusUnauthorized,
}

// writeServiceError maps a service error to an HTTP response. Typed errors
// keep their code in the payload; anything else is a plain 500.
func writeServiceError(c *gin.Context, err error) {
	var appErr *service.AppError
	if errors.As(err, &appErr) {
		status, ok := statusByCode[appErr.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		dto.JsonErrorCode(c, status, appErr.Code, appErr.Message)
		return
	}

	log.Printf("Internal error: %v", err)
	dto.JsonError(c, http.StatusInternalServerError)
}

func toUserDTO(user *models.User) dto.UserDTO {
	out := dto.UserDTO{
		ID:       user.ID,
		Username: user.Username,
		FullName: user.FullName,
		Role:     user.Role,
	}
	if user.GradeID.Valid {
		out.GradeID = user.GradeID.String
	}
	return out
}

func toTestDTO(test *models.Test) dto.TestDTO {
	out := dto.TestDTO{
		ID:          test.ID,
		Title:       test.Title,
		Description: test.Description,
		SubjectID:   test.SubjectID,
		CreatorID:   test.CreatorID,
		MaxAttempts: test.MaxAttempts,
		Active:      test.Active,
		CreatedAt:   dto.FormatTime(test.CreatedAt),
	}
	if test.TimeLimitMin.Valid {
		v := int(test.TimeLimitMin.Int32)
		out.TimeLimitMin = &v
	}
	if test.QuestionsToShow.Valid {
		v := int(test.QuestionsToShow.Int32)
		out.QuestionsToShow = &v
	}
	return out
}

func toAttemptDTO(attempt *models.Attempt) dto.AttemptDTO {
	out := dto.AttemptDTO{
		ID:            attempt.ID,
		TestID:        attempt.TestID,
		Status:        attempt.Status,
		AttemptNumber: attempt.AttemptNumber,
		StartedAt:     dto.FormatTime(attempt.StartedAt),
		Score:         attempt.Score,
		MaxScore:      attempt.MaxScore,
	}
	if attempt.Deadline.Valid {
		out.Deadline = dto.FormatTime(attempt.Deadline.Time)
	}
	if attempt.CompletedAt.Valid {
		out.CompletedAt = dto.FormatTime(attempt.CompletedAt.Time)
	}
	return out
}

// toQuestionDTO strips everything a student must not see during an attempt:
// correctness flags always, and for text questions the options entirely,
// since their only option holds the reference answer.
func toQuestionDTO(q *models.Question) dto.QuestionDTO {
	out := dto.QuestionDTO{
		ID:     q.ID,
		Text:   q.Text,
		Type:   q.Type,
		Points: q.Points,
	}
	if q.Type == models.QuestionTextAnswer {
		return out
	}
	for _, opt := range q.Options {
		out.Options = append(out.Options, dto.OptionDTO{ID: opt.ID, Text: opt.Text})
	}
	return out
}

func toFullQuestionDTO(q *models.Question) dto.FullQuestionDTO {
	out := dto.FullQuestionDTO{
		ID:     q.ID,
		Text:   q.Text,
		Type:   q.Type,
		Points: q.Points,
	}
	for _, opt := range q.Options {
		out.Options = append(out.Options, dto.FullOptionDTO{
			ID:      opt.ID,
			Text:    opt.Text,
			Correct: opt.Correct,
		})
	}
	return out
}
