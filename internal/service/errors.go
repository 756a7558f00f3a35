package service

// Stable machine-readable error codes carried in every error payload. The
// session client dispatches on these instead of matching message text.
const (
	CodeAttemptLimitExceeded = "ATTEMPT_LIMIT_EXCEEDED"
	CodeTestInactive         = "TEST_INACTIVE"
	CodeTestNotFound         = "TEST_NOT_FOUND"
	CodeAttemptNotFound      = "ATTEMPT_NOT_FOUND"
	CodeAttemptCompleted     = "ATTEMPT_COMPLETED"
	CodeDeadlineExceeded     = "DEADLINE_EXCEEDED"
	CodeAccessDenied         = "ACCESS_DENIED"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
)

type AppError struct {
	Code    string
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrTestNotFound       = &AppError{Code: CodeTestNotFound, Message: "test not found"}
	ErrTestInactive       = &AppError{Code: CodeTestInactive, Message: "test is not active"}
	ErrAttemptLimit       = &AppError{Code: CodeAttemptLimitExceeded, Message: "maximum number of attempts reached"}
	ErrAttemptNotFound    = &AppError{Code: CodeAttemptNotFound, Message: "attempt not found"}
	ErrAttemptCompleted   = &AppError{Code: CodeAttemptCompleted, Message: "attempt is already submitted"}
	ErrDeadlineExceeded   = &AppError{Code: CodeDeadlineExceeded, Message: "the attempt deadline has passed"}
	ErrAccessDenied       = &AppError{Code: CodeAccessDenied, Message: "access denied"}
	ErrInvalidCredentials = &AppError{Code: CodeInvalidCredentials, Message: "invalid username or password"}
)
