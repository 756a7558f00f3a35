package session

import (
	"context"
	"errors"
	"time"
)

// Error codes carried by the portal's error payloads. The session dispatches
// on these, never on message text.
const (
	CodeAttemptLimitExceeded = "ATTEMPT_LIMIT_EXCEEDED"
	CodeTestInactive         = "TEST_INACTIVE"
	CodeTestNotFound         = "TEST_NOT_FOUND"
	CodeAttemptNotFound      = "ATTEMPT_NOT_FOUND"
	CodeAttemptCompleted     = "ATTEMPT_COMPLETED"
	CodeDeadlineExceeded     = "DEADLINE_EXCEEDED"
	CodeAccessDenied         = "ACCESS_DENIED"
)

// GatewayError is a structured error returned by the portal.
type GatewayError struct {
	Code       string
	Message    string
	HTTPStatus int
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// ErrorCode extracts the portal error code from err, or "" when err is not a
// portal error.
func ErrorCode(err error) string {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Code
	}
	return ""
}

type Attempt struct {
	ID            string
	TestID        string
	Status        string
	AttemptNumber int
	StartedAt     time.Time
	// Deadline is zero for untimed tests.
	Deadline time.Time
	Score    int
	MaxScore int
	Resumed  bool
}

type Option struct {
	ID   string
	Text string
}

const (
	QuestionSingleChoice   = "SINGLE_CHOICE"
	QuestionMultipleChoice = "MULTIPLE_CHOICE"
	QuestionTextAnswer     = "TEXT_ANSWER"
)

type Question struct {
	ID      string
	Text    string
	Type    string
	Points  int
	Options []Option
}

// Answer is one response as sent to the portal on submission.
type Answer struct {
	QuestionID        string
	SelectedOptionIDs []string
	TextAnswer        string
}

type AnswerResult struct {
	QuestionID   string
	Correct      bool
	EarnedPoints int
	PartialRatio float64
}

type Result struct {
	AttemptID   string
	Score       int
	MaxScore    int
	CompletedAt time.Time
	Answers     []AnswerResult
}

// Gateway is the portal contract the session runs against. Implementations
// authenticate as one student; the session never sees credentials.
type Gateway interface {
	// StartAttempt opens a new attempt on the test or resumes the caller's
	// existing in-progress one.
	StartAttempt(ctx context.Context, testID string) (*Attempt, error)

	// FetchQuestions returns the attempt's question set. For a resumed
	// attempt the portal serves the same set as before.
	FetchQuestions(ctx context.Context, testID, attemptID string) (*Attempt, []Question, error)

	// SubmitAttempt closes the attempt with the given answers. A forced
	// submission is accepted even past the deadline.
	SubmitAttempt(ctx context.Context, attemptID string, forced bool, answers []Answer) (*Result, error)
}
