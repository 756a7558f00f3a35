package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iNeydlis/schooltest/config"

	_ "github.com/lib/pq"
)

type PostgresClient struct {
	db     *sql.DB
	config *config.DBConfig
}

func NewPostgresClient(cfg *config.DBConfig) (*PostgresClient, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{
		db:     db,
		config: cfg,
	}, nil
}

func (c *PostgresClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *PostgresClient) GetDB() *sql.DB {
	return c.db
}

func (c *PostgresClient) InitSchema(ctx context.Context) error {
	createReferenceTables := `
		CREATE TABLE IF NOT EXISTS subjects (
			id VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE
		);
		CREATE TABLE IF NOT EXISTS grades (
			id VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE
		);
	`

	createUsersTable := `
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(255) PRIMARY KEY,
			username VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			full_name VARCHAR(255) NOT NULL DEFAULT '',
			role VARCHAR(50) NOT NULL,
			grade_id VARCHAR(255) REFERENCES grades(id),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS teacher_subjects (
			user_id VARCHAR(255) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			subject_id VARCHAR(255) NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, subject_id)
		);
		CREATE TABLE IF NOT EXISTS teacher_grades (
			user_id VARCHAR(255) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			grade_id VARCHAR(255) NOT NULL REFERENCES grades(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, grade_id)
		);
	`

	createTestsTable := `
		CREATE TABLE IF NOT EXISTS tests (
			id VARCHAR(255) PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			subject_id VARCHAR(255) NOT NULL REFERENCES subjects(id),
			creator_id VARCHAR(255) NOT NULL REFERENCES users(id),
			time_limit_min INTEGER,
			questions_to_show INTEGER,
			max_attempts INTEGER NOT NULL DEFAULT 1,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_tests_subject_id ON tests(subject_id);
		CREATE INDEX IF NOT EXISTS idx_tests_creator_id ON tests(creator_id);
		CREATE TABLE IF NOT EXISTS test_grades (
			test_id VARCHAR(255) NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
			grade_id VARCHAR(255) NOT NULL REFERENCES grades(id) ON DELETE CASCADE,
			PRIMARY KEY (test_id, grade_id)
		);
	`

	createQuestionsTable := `
		CREATE TABLE IF NOT EXISTS questions (
			id VARCHAR(255) PRIMARY KEY,
			test_id VARCHAR(255) NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			type VARCHAR(50) NOT NULL,
			points INTEGER NOT NULL DEFAULT 1,
			order_index INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_questions_test_id ON questions(test_id);
		CREATE TABLE IF NOT EXISTS answer_options (
			id VARCHAR(255) PRIMARY KEY,
			question_id VARCHAR(255) NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			correct BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_answer_options_question_id ON answer_options(question_id);
	`

	createAttemptsTable := `
		CREATE TABLE IF NOT EXISTS attempts (
			id VARCHAR(255) PRIMARY KEY,
			test_id VARCHAR(255) NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
			student_id VARCHAR(255) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			status VARCHAR(50) NOT NULL,
			attempt_number INTEGER NOT NULL,
			started_at TIMESTAMP NOT NULL,
			deadline TIMESTAMP,
			selected_question_ids JSONB NOT NULL DEFAULT '[]',
			score INTEGER NOT NULL DEFAULT 0,
			max_score INTEGER NOT NULL DEFAULT 0,
			completed_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_attempts_test_student ON attempts(test_id, student_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_one_in_progress
			ON attempts(test_id, student_id) WHERE status = 'in_progress';
	`

	createAttemptAnswersTable := `
		CREATE TABLE IF NOT EXISTS attempt_answers (
			attempt_id VARCHAR(255) NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
			question_id VARCHAR(255) NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
			selected_option_ids JSONB NOT NULL DEFAULT '[]',
			text_answer TEXT NOT NULL DEFAULT '',
			correct BOOLEAN NOT NULL DEFAULT FALSE,
			earned_points INTEGER NOT NULL DEFAULT 0,
			partial_ratio DOUBLE PRECISION NOT NULL DEFAULT 0,
			PRIMARY KEY (attempt_id, question_id)
		);
	`

	if _, err := c.db.ExecContext(ctx, createReferenceTables); err != nil {
		return fmt.Errorf("failed to create reference tables: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("failed to create users tables: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, createTestsTable); err != nil {
		return fmt.Errorf("failed to create tests tables: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, createQuestionsTable); err != nil {
		return fmt.Errorf("failed to create questions tables: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, createAttemptsTable); err != nil {
		return fmt.Errorf("failed to create attempts table: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, createAttemptAnswersTable); err != nil {
		return fmt.Errorf("failed to create attempt_answers table: %w", err)
	}

	return nil
}
