package dto

type StartAttemptRequest struct {
	TestID string `json:"test_id" binding:"required"`
}

type AttemptDTO struct {
	ID            string `json:"id"`
	TestID        string `json:"test_id"`
	Status        string `json:"status"`
	AttemptNumber int    `json:"attempt_number"`
	StartedAt     string `json:"started_at"`
	Deadline      string `json:"deadline,omitempty"`
	Score         int    `json:"score"`
	MaxScore      int    `json:"max_score"`
	CompletedAt   string `json:"completed_at,omitempty"`
}

// OptionDTO is an answer option as served to a student during an attempt.
// Correctness flags never cross this boundary.
type OptionDTO struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionDTO is a question as served during an attempt. TEXT_ANSWER
// questions carry no options at all, since their single option holds the
// reference answer.
type QuestionDTO struct {
	ID      string      `json:"id"`
	Text    string      `json:"text"`
	Type    string      `json:"type"`
	Points  int         `json:"points"`
	Options []OptionDTO `json:"options,omitempty"`
}

type StartAttemptResponse struct {
	Attempt AttemptDTO `json:"attempt"`
	Resumed bool       `json:"resumed"`
}

type GetQuestionsResponse struct {
	Attempt   AttemptDTO    `json:"attempt"`
	Questions []QuestionDTO `json:"questions"`
}

type SubmissionAnswer struct {
	QuestionID        string   `json:"question_id" binding:"required"`
	SelectedOptionIDs []string `json:"selected_option_ids"`
	TextAnswer        string   `json:"text_answer"`
}

type SubmitAttemptRequest struct {
	Forced  bool               `json:"forced"`
	Answers []SubmissionAnswer `json:"answers"`
}

type AnswerResultDTO struct {
	QuestionID        string   `json:"question_id"`
	SelectedOptionIDs []string `json:"selected_option_ids"`
	TextAnswer        string   `json:"text_answer,omitempty"`
	Correct           bool     `json:"correct"`
	EarnedPoints      int      `json:"earned_points"`
	PartialRatio      float64  `json:"partial_ratio"`
}

type AttemptResultResponse struct {
	Attempt AttemptDTO        `json:"attempt"`
	Answers []AnswerResultDTO `json:"answers"`
}

type GetAttemptsResponse struct {
	Attempts []AttemptDTO `json:"attempts"`
}
