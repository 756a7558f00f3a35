package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iNeydlis/schooltest/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrDuplicateInProgress reports that another in-progress attempt for the same
// (student, test) pair already holds the partial unique index.
var ErrDuplicateInProgress = errors.New("an in-progress attempt already exists")

type AttemptRepository struct {
	db *sql.DB
}

func NewAttemptRepository(db *sql.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) CreateAttempt(ctx context.Context, attempt *models.Attempt) error {
	attempt.ID = uuid.New().String()
	attempt.Status = models.AttemptInProgress
	if attempt.StartedAt.IsZero() {
		attempt.StartedAt = time.Now()
	}

	selectedJSON, err := json.Marshal(attempt.SelectedQuestionIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal selected question ids: %w", err)
	}

	query := `
		INSERT INTO attempts (id, test_id, student_id, status, attempt_number, started_at, deadline, selected_question_ids, score, max_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.TestID,
		attempt.StudentID,
		attempt.Status,
		attempt.AttemptNumber,
		attempt.StartedAt,
		attempt.Deadline,
		string(selectedJSON),
		attempt.Score,
		attempt.MaxScore,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateInProgress
		}
		return err
	}
	return nil
}

// GetInProgress returns the student's in-progress attempt for the test, or
// sql.ErrNoRows when there is none.
func (r *AttemptRepository) GetInProgress(ctx context.Context, testID, studentID string) (*models.Attempt, error) {
	query := `
		SELECT id, test_id, student_id, status, attempt_number, started_at, deadline, selected_question_ids, score, max_score, completed_at
		FROM attempts
		WHERE test_id = $1 AND student_id = $2 AND status = 'in_progress'
	`
	return r.scanAttempt(r.db.QueryRowContext(ctx, query, testID, studentID))
}

func (r *AttemptRepository) GetByID(ctx context.Context, attemptID string) (*models.Attempt, error) {
	query := `
		SELECT id, test_id, student_id, status, attempt_number, started_at, deadline, selected_question_ids, score, max_score, completed_at
		FROM attempts
		WHERE id = $1
	`
	return r.scanAttempt(r.db.QueryRowContext(ctx, query, attemptID))
}

func (r *AttemptRepository) scanAttempt(row *sql.Row) (*models.Attempt, error) {
	attempt := &models.Attempt{}
	var selectedJSON string
	err := row.Scan(
		&attempt.ID,
		&attempt.TestID,
		&attempt.StudentID,
		&attempt.Status,
		&attempt.AttemptNumber,
		&attempt.StartedAt,
		&attempt.Deadline,
		&selectedJSON,
		&attempt.Score,
		&attempt.MaxScore,
		&attempt.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(selectedJSON), &attempt.SelectedQuestionIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal selected question ids: %w", err)
	}
	return attempt, nil
}

func (r *AttemptRepository) CountCompleted(ctx context.Context, testID, studentID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM attempts
		WHERE test_id = $1 AND student_id = $2 AND status = 'submitted'
	`
	var count int
	err := r.db.QueryRowContext(ctx, query, testID, studentID).Scan(&count)
	return count, err
}

// SetSelectedQuestions persists the question sample drawn for the attempt and
// the max score derived from it, so a resumed attempt serves the same set.
func (r *AttemptRepository) SetSelectedQuestions(ctx context.Context, attemptID string, questionIDs []string, maxScore int) error {
	selectedJSON, err := json.Marshal(questionIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal selected question ids: %w", err)
	}

	query := `UPDATE attempts SET selected_question_ids = $1, max_score = $2 WHERE id = $3`
	_, err = r.db.ExecContext(ctx, query, string(selectedJSON), maxScore, attemptID)
	return err
}

// CompleteAttempt flips the attempt to submitted and records the scored
// answers in one transaction. The WHERE guard on status makes completion
// exactly-once: a second submission finds zero rows and fails.
func (r *AttemptRepository) CompleteAttempt(ctx context.Context, attempt *models.Attempt, answers []*models.AttemptAnswer) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE attempts
		SET status = 'submitted', score = $1, max_score = $2, completed_at = $3
		WHERE id = $4 AND status = 'in_progress'
	`
	result, err := tx.ExecContext(ctx, query,
		attempt.Score,
		attempt.MaxScore,
		attempt.CompletedAt,
		attempt.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("attempt %s is not in progress", attempt.ID)
	}

	for _, answer := range answers {
		selectedJSON, err := json.Marshal(answer.SelectedOptionIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal selected option ids: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO attempt_answers (attempt_id, question_id, selected_option_ids, text_answer, correct, earned_points, partial_ratio)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			attempt.ID,
			answer.QuestionID,
			string(selectedJSON),
			answer.TextAnswer,
			answer.Correct,
			answer.EarnedPoints,
			answer.PartialRatio,
		)
		if err != nil {
			return fmt.Errorf("failed to record answer: %w", err)
		}
	}

	return tx.Commit()
}

func (r *AttemptRepository) GetAttemptAnswers(ctx context.Context, attemptID string) ([]*models.AttemptAnswer, error) {
	query := `
		SELECT attempt_id, question_id, selected_option_ids, text_answer, correct, earned_points, partial_ratio
		FROM attempt_answers
		WHERE attempt_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []*models.AttemptAnswer
	for rows.Next() {
		answer := &models.AttemptAnswer{}
		var selectedJSON string
		err := rows.Scan(
			&answer.AttemptID,
			&answer.QuestionID,
			&selectedJSON,
			&answer.TextAnswer,
			&answer.Correct,
			&answer.EarnedPoints,
			&answer.PartialRatio,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(selectedJSON), &answer.SelectedOptionIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal selected option ids: %w", err)
		}
		answers = append(answers, answer)
	}
	return answers, rows.Err()
}

func (r *AttemptRepository) GetAttemptsByStudent(ctx context.Context, studentID string) ([]*models.Attempt, error) {
	query := `
		SELECT id, test_id, student_id, status, attempt_number, started_at, deadline, selected_question_ids, score, max_score, completed_at
		FROM attempts
		WHERE student_id = $1
		ORDER BY started_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.Attempt
	for rows.Next() {
		attempt := &models.Attempt{}
		var selectedJSON string
		err := rows.Scan(
			&attempt.ID,
			&attempt.TestID,
			&attempt.StudentID,
			&attempt.Status,
			&attempt.AttemptNumber,
			&attempt.StartedAt,
			&attempt.Deadline,
			&selectedJSON,
			&attempt.Score,
			&attempt.MaxScore,
			&attempt.CompletedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(selectedJSON), &attempt.SelectedQuestionIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal selected question ids: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

func (r *AttemptRepository) GetAttemptsByTest(ctx context.Context, testID string) ([]*models.Attempt, error) {
	query := `
		SELECT id, test_id, student_id, status, attempt_number, started_at, deadline, selected_question_ids, score, max_score, completed_at
		FROM attempts
		WHERE test_id = $1
		ORDER BY started_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.Attempt
	for rows.Next() {
		attempt := &models.Attempt{}
		var selectedJSON string
		err := rows.Scan(
			&attempt.ID,
			&attempt.TestID,
			&attempt.StudentID,
			&attempt.Status,
			&attempt.AttemptNumber,
			&attempt.StartedAt,
			&attempt.Deadline,
			&selectedJSON,
			&attempt.Score,
			&attempt.MaxScore,
			&attempt.CompletedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(selectedJSON), &attempt.SelectedQuestionIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal selected question ids: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}
