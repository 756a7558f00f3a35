package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iNeydlis/schooltest/internal/dto"
	"github.com/iNeydlis/schooltest/internal/session"
)

// PortalClient implements session.Gateway over the portal's HTTP API. It is
// bound to one student: every request carries the student's bearer token.
type PortalClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewPortalClient(baseURL, token string) *PortalClient {
	return &PortalClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *PortalClient) StartAttempt(ctx context.Context, testID string) (*session.Attempt, error) {
	var resp dto.StartAttemptResponse
	err := c.do(ctx, http.MethodPost, "/api/attempts", dto.StartAttemptRequest{TestID: testID}, &resp)
	if err != nil {
		return nil, err
	}

	attempt, err := toAttempt(&resp.Attempt)
	if err != nil {
		return nil, err
	}
	attempt.Resumed = resp.Resumed
	return attempt, nil
}

func (c *PortalClient) FetchQuestions(ctx context.Context, testID, attemptID string) (*session.Attempt, []session.Question, error) {
	var resp dto.GetQuestionsResponse
	path := fmt.Sprintf("/api/attempts/%s/questions?test_id=%s", attemptID, testID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, nil, err
	}

	attempt, err := toAttempt(&resp.Attempt)
	if err != nil {
		return nil, nil, err
	}

	questions := make([]session.Question, 0, len(resp.Questions))
	for _, q := range resp.Questions {
		question := session.Question{
			ID:     q.ID,
			Text:   q.Text,
			Type:   q.Type,
			Points: q.Points,
		}
		for _, opt := range q.Options {
			question.Options = append(question.Options, session.Option{ID: opt.ID, Text: opt.Text})
		}
		questions = append(questions, question)
	}
	return attempt, questions, nil
}

func (c *PortalClient) SubmitAttempt(ctx context.Context, attemptID string, forced bool, answers []session.Answer) (*session.Result, error) {
	req := dto.SubmitAttemptRequest{Forced: forced}
	for _, a := range answers {
		req.Answers = append(req.Answers, dto.SubmissionAnswer{
			QuestionID:        a.QuestionID,
			SelectedOptionIDs: a.SelectedOptionIDs,
			TextAnswer:        a.TextAnswer,
		})
	}

	var resp dto.AttemptResultResponse
	path := fmt.Sprintf("/api/attempts/%s/submit", attemptID)
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	result := &session.Result{
		AttemptID: resp.Attempt.ID,
		Score:     resp.Attempt.Score,
		MaxScore:  resp.Attempt.MaxScore,
	}
	if resp.Attempt.CompletedAt != "" {
		completedAt, err := time.Parse(time.RFC3339, resp.Attempt.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completed_at: %w", err)
		}
		result.CompletedAt = completedAt
	}
	for _, a := range resp.Answers {
		result.Answers = append(result.Answers, session.AnswerResult{
			QuestionID:   a.QuestionID,
			Correct:      a.Correct,
			EarnedPoints: a.EarnedPoints,
			PartialRatio: a.PartialRatio,
		})
	}
	return result, nil
}

// do performs one request and decodes the response exactly once: either into
// out on success, or into the portal's error payload otherwise.
func (c *PortalClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp dto.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			return &session.GatewayError{
				Message:    http.StatusText(resp.StatusCode),
				HTTPStatus: resp.StatusCode,
			}
		}
		return &session.GatewayError{
			Code:       errResp.Code,
			Message:    errResp.Message,
			HTTPStatus: resp.StatusCode,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func toAttempt(a *dto.AttemptDTO) (*session.Attempt, error) {
	startedAt, err := time.Parse(time.RFC3339, a.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}

	attempt := &session.Attempt{
		ID:            a.ID,
		TestID:        a.TestID,
		Status:        a.Status,
		AttemptNumber: a.AttemptNumber,
		StartedAt:     startedAt,
		Score:         a.Score,
		MaxScore:      a.MaxScore,
	}
	if a.Deadline != "" {
		deadline, err := time.Parse(time.RFC3339, a.Deadline)
		if err != nil {
			return nil, fmt.Errorf("failed to parse deadline: %w", err)
		}
		attempt.Deadline = deadline
	}
	return attempt, nil
}
