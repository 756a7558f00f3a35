package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iNeydlis/schooltest/internal/models"

	"github.com/google/uuid"
)

type TestRepository struct {
	db *sql.DB
}

func NewTestRepository(db *sql.DB) *TestRepository {
	return &TestRepository{db: db}
}

// CreateTest inserts the test together with its questions, options and grade
// links in one transaction.
func (r *TestRepository) CreateTest(ctx context.Context, test *models.Test, questions []*models.Question, gradeIDs []string) error {
	test.ID = uuid.New().String()
	test.CreatedAt = time.Now()
	test.Active = true

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO tests (id, title, description, subject_id, creator_id, time_limit_min, questions_to_show, max_attempts, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.ExecContext(ctx, query,
		test.ID,
		test.Title,
		test.Description,
		test.SubjectID,
		test.CreatorID,
		test.TimeLimitMin,
		test.QuestionsToShow,
		test.MaxAttempts,
		test.Active,
		test.CreatedAt,
	)
	if err != nil {
		return err
	}

	if err := r.insertGradeLinks(ctx, tx, test.ID, gradeIDs); err != nil {
		return err
	}

	if err := r.insertQuestions(ctx, tx, test.ID, questions); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateTest replaces the test's questions and grade links and wipes previous
// attempts, since old results are meaningless against a changed question set.
func (r *TestRepository) UpdateTest(ctx context.Context, test *models.Test, questions []*models.Question, gradeIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE tests
		SET title = $1, description = $2, subject_id = $3, time_limit_min = $4,
		    questions_to_show = $5, max_attempts = $6, updated_at = $7
		WHERE id = $8
	`
	_, err = tx.ExecContext(ctx, query,
		test.Title,
		test.Description,
		test.SubjectID,
		test.TimeLimitMin,
		test.QuestionsToShow,
		test.MaxAttempts,
		time.Now(),
		test.ID,
	)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM attempts WHERE test_id = $1`, test.ID); err != nil {
		return fmt.Errorf("failed to delete old attempts: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE test_id = $1`, test.ID); err != nil {
		return fmt.Errorf("failed to delete old questions: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM test_grades WHERE test_id = $1`, test.ID); err != nil {
		return fmt.Errorf("failed to delete old grade links: %w", err)
	}

	if err := r.insertGradeLinks(ctx, tx, test.ID, gradeIDs); err != nil {
		return err
	}

	if err := r.insertQuestions(ctx, tx, test.ID, questions); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *TestRepository) insertGradeLinks(ctx context.Context, tx *sql.Tx, testID string, gradeIDs []string) error {
	for _, gradeID := range gradeIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO test_grades (test_id, grade_id) VALUES ($1, $2)`,
			testID, gradeID,
		)
		if err != nil {
			return fmt.Errorf("failed to link grade %s: %w", gradeID, err)
		}
	}
	return nil
}

func (r *TestRepository) insertQuestions(ctx context.Context, tx *sql.Tx, testID string, questions []*models.Question) error {
	for i, q := range questions {
		q.ID = uuid.New().String()
		q.TestID = testID
		q.OrderIndex = i

		_, err := tx.ExecContext(ctx,
			`INSERT INTO questions (id, test_id, text, type, points, order_index) VALUES ($1, $2, $3, $4, $5, $6)`,
			q.ID, q.TestID, q.Text, q.Type, q.Points, q.OrderIndex,
		)
		if err != nil {
			return fmt.Errorf("failed to create question: %w", err)
		}

		for _, opt := range q.Options {
			opt.ID = uuid.New().String()
			opt.QuestionID = q.ID

			_, err := tx.ExecContext(ctx,
				`INSERT INTO answer_options (id, question_id, text, correct) VALUES ($1, $2, $3, $4)`,
				opt.ID, opt.QuestionID, opt.Text, opt.Correct,
			)
			if err != nil {
				return fmt.Errorf("failed to create answer option: %w", err)
			}
		}
	}
	return nil
}

func (r *TestRepository) GetTestByID(ctx context.Context, testID string) (*models.Test, error) {
	query := `
		SELECT id, title, description, subject_id, creator_id, time_limit_min, questions_to_show, max_attempts, active, created_at, updated_at
		FROM tests
		WHERE id = $1
	`
	test := &models.Test{}
	err := r.db.QueryRowContext(ctx, query, testID).Scan(
		&test.ID,
		&test.Title,
		&test.Description,
		&test.SubjectID,
		&test.CreatorID,
		&test.TimeLimitMin,
		&test.QuestionsToShow,
		&test.MaxAttempts,
		&test.Active,
		&test.CreatedAt,
		&test.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	return test, nil
}

// GetQuestionsByTestID returns the test's questions with their options in
// authoring order. Correctness flags are included; sanitization is the
// service's concern.
func (r *TestRepository) GetQuestionsByTestID(ctx context.Context, testID string) ([]*models.Question, error) {
	query := `
		SELECT id, test_id, text, type, points, order_index
		FROM questions
		WHERE test_id = $1
		ORDER BY order_index ASC
	`
	rows, err := r.db.QueryContext(ctx, query, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []*models.Question
	byID := make(map[string]*models.Question)
	for rows.Next() {
		q := &models.Question{}
		err := rows.Scan(&q.ID, &q.TestID, &q.Text, &q.Type, &q.Points, &q.OrderIndex)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
		byID[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	optQuery := `
		SELECT o.id, o.question_id, o.text, o.correct
		FROM answer_options o
		JOIN questions q ON o.question_id = q.id
		WHERE q.test_id = $1
		ORDER BY o.id ASC
	`
	optRows, err := r.db.QueryContext(ctx, optQuery, testID)
	if err != nil {
		return nil, err
	}
	defer optRows.Close()

	for optRows.Next() {
		opt := &models.AnswerOption{}
		err := optRows.Scan(&opt.ID, &opt.QuestionID, &opt.Text, &opt.Correct)
		if err != nil {
			return nil, err
		}
		if q, ok := byID[opt.QuestionID]; ok {
			q.Options = append(q.Options, opt)
		}
	}

	return questions, optRows.Err()
}

func (r *TestRepository) GetTestsByCreator(ctx context.Context, creatorID string) ([]*models.Test, error) {
	query := `
		SELECT id, title, description, subject_id, creator_id, time_limit_min, questions_to_show, max_attempts, active, created_at, updated_at
		FROM tests
		WHERE creator_id = $1
		ORDER BY created_at DESC
	`
	return r.queryTests(ctx, query, creatorID)
}

// GetActiveTestsForGrade returns active tests assigned to the given grade.
func (r *TestRepository) GetActiveTestsForGrade(ctx context.Context, gradeID string) ([]*models.Test, error) {
	query := `
		SELECT t.id, t.title, t.description, t.subject_id, t.creator_id, t.time_limit_min, t.questions_to_show, t.max_attempts, t.active, t.created_at, t.updated_at
		FROM tests t
		JOIN test_grades tg ON t.id = tg.test_id
		WHERE tg.grade_id = $1 AND t.active = TRUE
		ORDER BY t.created_at DESC
	`
	return r.queryTests(ctx, query, gradeID)
}

func (r *TestRepository) GetAllTests(ctx context.Context) ([]*models.Test, error) {
	query := `
		SELECT id, title, description, subject_id, creator_id, time_limit_min, questions_to_show, max_attempts, active, created_at, updated_at
		FROM tests
		ORDER BY created_at DESC
	`
	return r.queryTests(ctx, query)
}

func (r *TestRepository) queryTests(ctx context.Context, query string, args ...any) ([]*models.Test, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []*models.Test
	for rows.Next() {
		test := &models.Test{}
		err := rows.Scan(
			&test.ID,
			&test.Title,
			&test.Description,
			&test.SubjectID,
			&test.CreatorID,
			&test.TimeLimitMin,
			&test.QuestionsToShow,
			&test.MaxAttempts,
			&test.Active,
			&test.CreatedAt,
			&test.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		tests = append(tests, test)
	}
	return tests, rows.Err()
}

func (r *TestRepository) SetTestActive(ctx context.Context, testID string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tests SET active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now(), testID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("test not found")
	}
	return nil
}

func (r *TestRepository) TestGradeIDs(ctx context.Context, testID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT grade_id FROM test_grades WHERE test_id = $1`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gradeIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		gradeIDs = append(gradeIDs, id)
	}
	return gradeIDs, rows.Err()
}
