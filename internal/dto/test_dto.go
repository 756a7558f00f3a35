package dto

import "time"

type OptionInput struct {
	Text    string `json:"text" binding:"required"`
	Correct bool   `json:"correct"`
}

type QuestionInput struct {
	Text    string        `json:"text" binding:"required"`
	Type    string        `json:"type" binding:"required,oneof=SINGLE_CHOICE MULTIPLE_CHOICE TEXT_ANSWER"`
	Points  int           `json:"points"`
	Options []OptionInput `json:"options" binding:"required,min=1"`
}

type CreateTestRequest struct {
	Title           string          `json:"title" binding:"required"`
	Description     string          `json:"description"`
	SubjectID       string          `json:"subject_id" binding:"required"`
	GradeIDs        []string        `json:"grade_ids" binding:"required,min=1"`
	TimeLimitMin    *int            `json:"time_limit_min"`
	QuestionsToShow *int            `json:"questions_to_show"`
	MaxAttempts     int             `json:"max_attempts"`
	Questions       []QuestionInput `json:"questions" binding:"required,min=1"`
}

type TestDTO struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	SubjectID       string `json:"subject_id"`
	CreatorID       string `json:"creator_id"`
	TimeLimitMin    *int   `json:"time_limit_min,omitempty"`
	QuestionsToShow *int   `json:"questions_to_show,omitempty"`
	MaxAttempts     int    `json:"max_attempts"`
	Active          bool   `json:"active"`
	CreatedAt       string `json:"created_at"`
}

// TestOverviewDTO is the student listing entry: the test plus the caller's
// remaining attempts and best result so far.
type TestOverviewDTO struct {
	Test              TestDTO `json:"test"`
	QuestionCount     int     `json:"question_count"`
	RemainingAttempts int     `json:"remaining_attempts"`
	BestScore         int     `json:"best_score"`
	BestMaxScore      int     `json:"best_max_score"`
	HasCompleted      bool    `json:"has_completed"`
}

// FullOptionDTO includes the correctness flag. Served to teachers and admins
// only; students never see it.
type FullOptionDTO struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

type FullQuestionDTO struct {
	ID      string          `json:"id"`
	Text    string          `json:"text"`
	Type    string          `json:"type"`
	Points  int             `json:"points"`
	Options []FullOptionDTO `json:"options"`
}

type GetTestResponse struct {
	Test      TestDTO           `json:"test"`
	Questions []FullQuestionDTO `json:"questions,omitempty"`
}

type GetTestsResponse struct {
	Tests []TestDTO `json:"tests"`
}

type GetStudentTestsResponse struct {
	Tests []TestOverviewDTO `json:"tests"`
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
