package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iNeydlis/schooltest/internal/dto"
	"github.com/iNeydlis/schooltest/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAttemptDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/attempts", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))

		var req dto.StartAttemptRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-1", req.TestID)

		json.NewEncoder(w).Encode(dto.StartAttemptResponse{
			Attempt: dto.AttemptDTO{
				ID:            "attempt-1",
				TestID:        "test-1",
				Status:        "in_progress",
				AttemptNumber: 2,
				StartedAt:     "2026-03-01T11:30:00Z",
				Deadline:      "2026-03-01T12:00:00Z",
			},
			Resumed: true,
		})
	}))
	defer srv.Close()

	c := NewPortalClient(srv.URL, "token-123")
	attempt, err := c.StartAttempt(context.Background(), "test-1")
	require.NoError(t, err)

	assert.Equal(t, "attempt-1", attempt.ID)
	assert.Equal(t, 2, attempt.AttemptNumber)
	assert.True(t, attempt.Resumed)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), attempt.Deadline)
}

func TestStartAttemptUntimedDeadlineStaysZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(dto.StartAttemptResponse{
			Attempt: dto.AttemptDTO{
				ID:        "attempt-1",
				TestID:    "test-1",
				Status:    "in_progress",
				StartedAt: "2026-03-01T11:30:00Z",
			},
		})
	}))
	defer srv.Close()

	c := NewPortalClient(srv.URL, "t")
	attempt, err := c.StartAttempt(context.Background(), "test-1")
	require.NoError(t, err)
	assert.True(t, attempt.Deadline.IsZero())
}

func TestErrorPayloadBecomesGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(dto.ErrorResponse{
			Error:   "Conflict",
			Code:    "ATTEMPT_LIMIT_EXCEEDED",
			Message: "maximum number of attempts reached",
		})
	}))
	defer srv.Close()

	c := NewPortalClient(srv.URL, "t")
	_, err := c.StartAttempt(context.Background(), "test-1")
	require.Error(t, err)

	assert.Equal(t, session.CodeAttemptLimitExceeded, session.ErrorCode(err))
	gwErr := err.(*session.GatewayError)
	assert.Equal(t, http.StatusConflict, gwErr.HTTPStatus)
	assert.Equal(t, "maximum number of attempts reached", gwErr.Message)
}

func TestNonJSONErrorStillTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	c := NewPortalClient(srv.URL, "t")
	_, err := c.StartAttempt(context.Background(), "test-1")
	require.Error(t, err)

	gwErr := err.(*session.GatewayError)
	assert.Equal(t, http.StatusBadGateway, gwErr.HTTPStatus)
	assert.Empty(t, gwErr.Code)
}

func TestFetchQuestionsDecodesOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/attempts/attempt-1/questions", r.URL.Path)
		assert.Equal(t, "test-1", r.URL.Query().Get("test_id"))

		json.NewEncoder(w).Encode(dto.GetQuestionsResponse{
			Attempt: dto.AttemptDTO{
				ID:        "attempt-1",
				TestID:    "test-1",
				Status:    "in_progress",
				StartedAt: "2026-03-01T11:30:00Z",
				MaxScore:  5,
			},
			Questions: []dto.QuestionDTO{
				{
					ID: "q1", Text: "Pick", Type: "SINGLE_CHOICE", Points: 2,
					Options: []dto.OptionDTO{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}},
				},
				{
					ID: "q2", Text: "Write", Type: "TEXT_ANSWER", Points: 3,
				},
			},
		})
	}))
	defer srv.Close()

	c := NewPortalClient(srv.URL, "t")
	attempt, questions, err := c.FetchQuestions(context.Background(), "test-1", "attempt-1")
	require.NoError(t, err)

	assert.Equal(t, 5, attempt.MaxScore)
	require.Len(t, questions, 2)
	assert.Len(t, questions[0].Options, 2)
	assert.Empty(t, questions[1].Options)
}

func TestSubmitAttemptSendsForcedFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/attempts/attempt-1/submit", r.URL.Path)

		var req dto.SubmitAttemptRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Forced)
		require.Len(t, req.Answers, 2)
		assert.Equal(t, []string{"a"}, req.Answers[0].SelectedOptionIDs)
		assert.Equal(t, "gravity", req.Answers[1].TextAnswer)

		json.NewEncoder(w).Encode(dto.AttemptResultResponse{
			Attempt: dto.AttemptDTO{
				ID:          "attempt-1",
				Status:      "submitted",
				StartedAt:   "2026-03-01T11:30:00Z",
				Score:       4,
				MaxScore:    5,
				CompletedAt: "2026-03-01T11:55:00Z",
			},
			Answers: []dto.AnswerResultDTO{
				{QuestionID: "q1", Correct: true, EarnedPoints: 2, PartialRatio: 1},
				{QuestionID: "q2", Correct: false, EarnedPoints: 2, PartialRatio: 0.66},
			},
		})
	}))
	defer srv.Close()

	c := NewPortalClient(srv.URL, "t")
	result, err := c.SubmitAttempt(context.Background(), "attempt-1", true, []session.Answer{
		{QuestionID: "q1", SelectedOptionIDs: []string{"a"}},
		{QuestionID: "q2", TextAnswer: "gravity"},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Score)
	assert.Equal(t, 5, result.MaxScore)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 55, 0, 0, time.UTC), result.CompletedAt)
	require.Len(t, result.Answers, 2)
	assert.True(t, result.Answers[0].Correct)
}
