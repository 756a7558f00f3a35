package models

import (
	"database/sql"
	"time"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

const (
	QuestionSingleChoice   = "SINGLE_CHOICE"
	QuestionMultipleChoice = "MULTIPLE_CHOICE"
	QuestionTextAnswer     = "TEXT_ANSWER"
)

const (
	AttemptInProgress = "in_progress"
	AttemptSubmitted  = "submitted"
)

type User struct {
	ID           string
	Username     string
	PasswordHash string
	FullName     string
	Role         string
	GradeID      sql.NullString
	CreatedAt    time.Time
}

type Subject struct {
	ID   string
	Name string
}

type Grade struct {
	ID   string
	Name string
}

type Test struct {
	ID              string
	Title           string
	Description     string
	SubjectID       string
	CreatorID       string
	TimeLimitMin    sql.NullInt32 // no deadline when null
	QuestionsToShow sql.NullInt32 // sample size; all questions when null
	MaxAttempts     int
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       sql.NullTime
}

type Question struct {
	ID         string
	TestID     string
	Text       string
	Type       string
	Points     int
	OrderIndex int
	Options    []*AnswerOption
}

type AnswerOption struct {
	ID         string
	QuestionID string
	Text       string
	Correct    bool
}

type Attempt struct {
	ID            string
	TestID        string
	StudentID     string
	Status        string
	AttemptNumber int
	StartedAt     time.Time
	Deadline      sql.NullTime
	// Question ids sampled for this attempt, in serving order. Empty
	// means the whole test is served.
	SelectedQuestionIDs []string
	Score               int
	MaxScore            int
	CompletedAt         sql.NullTime
}

// AttemptAnswer is one scored response row of a submitted attempt.
type AttemptAnswer struct {
	AttemptID         string
	QuestionID        string
	SelectedOptionIDs []string
	TextAnswer        string
	Correct           bool
	EarnedPoints      int
	PartialRatio      float64
}
