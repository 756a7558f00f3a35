package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/iNeydlis/schooltest/internal/models"
	"github.com/iNeydlis/schooltest/internal/repository"
)

type RabbitMQPublisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// Cache backs two concerns: the start lock collapsing concurrent start
// requests for the same (student, test) pair before they reach the database
// (SETNX; the partial unique index on attempts remains the authoritative
// guard), and the submitted-result cache serving repeat result reads without
// hitting Postgres.
type Cache interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
}

const resultCacheTTL = time.Hour

func resultCacheKey(attemptID string) string {
	return "attempt:result:" + attemptID
}

type SubmissionAnswer struct {
	QuestionID        string
	SelectedOptionIDs []string
	TextAnswer        string
}

type Submission struct {
	AttemptID string
	Forced    bool
	Answers   []SubmissionAnswer
}

type AttemptService struct {
	testRepo    *repository.TestRepository
	attemptRepo *repository.AttemptRepository
	userRepo    *repository.UserRepository
	cache       Cache
	mqPublisher RabbitMQPublisher
}

func NewAttemptService(
	db *sql.DB,
	cache Cache,
	mqPublisher RabbitMQPublisher,
) *AttemptService {
	return &AttemptService{
		testRepo:    repository.NewTestRepository(db),
		attemptRepo: repository.NewAttemptRepository(db),
		userRepo:    repository.NewUserRepository(db),
		cache:       cache,
		mqPublisher: mqPublisher,
	}
}

// InProgress returns the student's open attempt for the test, or nil when
// there is none.
func (s *AttemptService) InProgress(ctx context.Context, testID, studentID string) (*models.Attempt, error) {
	if _, err := s.getTest(ctx, testID); err != nil {
		return nil, err
	}

	attempt, err := s.attemptRepo.GetInProgress(ctx, testID, studentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up in-progress attempt: %w", err)
	}
	return attempt, nil
}

// Start acquires an attempt for the student: an existing in-progress attempt
// is resumed, otherwise a new one is created. At most one in-progress attempt
// per (student, test) can exist at any moment.
func (s *AttemptService) Start(ctx context.Context, testID, studentID string) (*models.Attempt, error) {
	student, err := s.userRepo.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student.Role != models.RoleStudent {
		return nil, ErrAccessDenied
	}

	test, err := s.getTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if !test.Active {
		return nil, ErrTestInactive
	}

	if err := s.checkGradeAccess(ctx, test, student); err != nil {
		return nil, err
	}

	if s.cache != nil {
		lockKey := fmt.Sprintf("attempt:start:%s:%s", testID, studentID)
		acquired, err := s.cache.SetNX(ctx, lockKey, "1", 10*time.Second)
		if err != nil {
			log.Printf("Failed to acquire start lock: %v", err)
		} else if acquired {
			defer func() {
				if err := s.cache.Delete(context.Background(), lockKey); err != nil {
					log.Printf("Failed to release start lock: %v", err)
				}
			}()
		}
	}

	existing, err := s.attemptRepo.GetInProgress(ctx, testID, studentID)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up in-progress attempt: %w", err)
	}
	if err == nil {
		if !attemptExpired(existing, time.Now()) {
			return existing, nil
		}
		// An abandoned attempt whose deadline has passed is closed with a
		// zero score so a fresh one can be started.
		existing.Score = 0
		existing.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true}
		if err := s.attemptRepo.CompleteAttempt(ctx, existing, nil); err != nil {
			return nil, fmt.Errorf("failed to close expired attempt: %w", err)
		}
	}

	completed, err := s.attemptRepo.CountCompleted(ctx, testID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed attempts: %w", err)
	}
	if completed >= test.MaxAttempts {
		return nil, ErrAttemptLimit
	}

	now := time.Now()
	attempt := &models.Attempt{
		TestID:        testID,
		StudentID:     studentID,
		AttemptNumber: completed + 1,
		StartedAt:     now,
	}
	if test.TimeLimitMin.Valid {
		attempt.Deadline = sql.NullTime{
			Time:  now.Add(time.Duration(test.TimeLimitMin.Int32) * time.Minute),
			Valid: true,
		}
	}

	if err := s.attemptRepo.CreateAttempt(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrDuplicateInProgress) {
			// Lost the race to a concurrent start; resume the winner's attempt.
			return s.attemptRepo.GetInProgress(ctx, testID, studentID)
		}
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	return attempt, nil
}

// Questions serves the attempt's question set. When the test samples a
// subset, the sample is drawn once and persisted on the attempt so resumed
// sessions see the same questions; the attempt's max score always reflects
// the served set. Stripping correctness flags is the handler's concern.
func (s *AttemptService) Questions(ctx context.Context, testID, attemptID, studentID string) (*models.Attempt, []*models.Question, error) {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}
	if attempt.StudentID != studentID || attempt.TestID != testID {
		return nil, nil, ErrAccessDenied
	}
	if attempt.Status == models.AttemptSubmitted {
		return nil, nil, ErrAttemptCompleted
	}

	test, err := s.getTest(ctx, testID)
	if err != nil {
		return nil, nil, err
	}

	allQuestions, err := s.testRepo.GetQuestionsByTestID(ctx, testID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get questions: %w", err)
	}

	sampleSize := 0
	if test.QuestionsToShow.Valid {
		sampleSize = int(test.QuestionsToShow.Int32)
	}
	if sampleSize <= 0 || sampleSize >= len(allQuestions) {
		if err := s.syncMaxScore(ctx, attempt, nil, totalPoints(allQuestions)); err != nil {
			return nil, nil, err
		}
		return attempt, allQuestions, nil
	}

	if len(attempt.SelectedQuestionIDs) == 0 {
		shuffled := make([]*models.Question, len(allQuestions))
		copy(shuffled, allQuestions)
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		selected := shuffled[:sampleSize]

		selectedIDs := make([]string, len(selected))
		for i, q := range selected {
			selectedIDs[i] = q.ID
		}
		attempt.SelectedQuestionIDs = selectedIDs
		attempt.MaxScore = totalPoints(selected)
		if err := s.attemptRepo.SetSelectedQuestions(ctx, attempt.ID, selectedIDs, attempt.MaxScore); err != nil {
			return nil, nil, fmt.Errorf("failed to persist question sample: %w", err)
		}
		return attempt, selected, nil
	}

	byID := make(map[string]*models.Question, len(allQuestions))
	for _, q := range allQuestions {
		byID[q.ID] = q
	}
	var selected []*models.Question
	for _, id := range attempt.SelectedQuestionIDs {
		if q, ok := byID[id]; ok {
			selected = append(selected, q)
		}
	}

	// Questions may have been edited since the sample was drawn; keep the
	// stored max score consistent with what is actually served.
	if err := s.syncMaxScore(ctx, attempt, attempt.SelectedQuestionIDs, totalPoints(selected)); err != nil {
		return nil, nil, err
	}

	return attempt, selected, nil
}

func (s *AttemptService) syncMaxScore(ctx context.Context, attempt *models.Attempt, selectedIDs []string, maxScore int) error {
	if attempt.MaxScore == maxScore {
		return nil
	}
	if err := s.attemptRepo.SetSelectedQuestions(ctx, attempt.ID, selectedIDs, maxScore); err != nil {
		return fmt.Errorf("failed to update max score: %w", err)
	}
	attempt.MaxScore = maxScore
	return nil
}

// Submit scores the attempt and closes it. Submissions are exactly-once: a
// submitted attempt rejects further calls. An explicit submission arriving
// after the deadline fails with a DEADLINE_EXCEEDED code so the client can
// retry it as a forced one; forced submissions are always accepted while the
// attempt is open.
func (s *AttemptService) Submit(ctx context.Context, sub *Submission, studentID string) (*models.Attempt, []*models.AttemptAnswer, error) {
	attempt, err := s.getAttempt(ctx, sub.AttemptID)
	if err != nil {
		return nil, nil, err
	}
	if attempt.StudentID != studentID {
		return nil, nil, ErrAccessDenied
	}
	if attempt.Status == models.AttemptSubmitted {
		return nil, nil, ErrAttemptCompleted
	}

	now := time.Now()
	if !sub.Forced && attempt.Deadline.Valid && now.After(attempt.Deadline.Time) {
		return nil, nil, ErrDeadlineExceeded
	}

	allQuestions, err := s.testRepo.GetQuestionsByTestID(ctx, attempt.TestID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get questions: %w", err)
	}

	considered := allQuestions
	if len(attempt.SelectedQuestionIDs) > 0 {
		byID := make(map[string]*models.Question, len(allQuestions))
		for _, q := range allQuestions {
			byID[q.ID] = q
		}
		considered = nil
		for _, id := range attempt.SelectedQuestionIDs {
			if q, ok := byID[id]; ok {
				considered = append(considered, q)
			}
		}
	}

	consideredByID := make(map[string]*models.Question, len(considered))
	for _, q := range considered {
		consideredByID[q.ID] = q
	}

	totalScore := 0
	var answers []*models.AttemptAnswer
	for _, ar := range sub.Answers {
		q, ok := consideredByID[ar.QuestionID]
		if !ok {
			continue
		}
		answer := scoreQuestion(q, ar.SelectedOptionIDs, ar.TextAnswer)
		answer.AttemptID = attempt.ID
		totalScore += answer.EarnedPoints
		answers = append(answers, answer)
	}

	attempt.Score = totalScore
	if attempt.MaxScore == 0 {
		attempt.MaxScore = totalPoints(considered)
	}
	attempt.CompletedAt = sql.NullTime{Time: now, Valid: true}

	if err := s.attemptRepo.CompleteAttempt(ctx, attempt, answers); err != nil {
		return nil, nil, fmt.Errorf("failed to complete attempt: %w", err)
	}
	attempt.Status = models.AttemptSubmitted

	s.publishAttemptSubmitted(ctx, attempt, sub.Forced)

	return attempt, answers, nil
}

// Result returns a submitted attempt with its per-question breakdown.
// Students see only their own results; teachers see results for subjects they
// teach; admins see everything.
func (s *AttemptService) Result(ctx context.Context, attemptID, userID string) (*models.Attempt, []*models.AttemptAnswer, error) {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	switch user.Role {
	case models.RoleStudent:
		if attempt.StudentID != userID {
			return nil, nil, ErrAccessDenied
		}
	case models.RoleTeacher:
		test, err := s.getTest(ctx, attempt.TestID)
		if err != nil {
			return nil, nil, err
		}
		if test.CreatorID != userID {
			subjectIDs, err := s.userRepo.GetTeacherSubjectIDs(ctx, userID)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to get teacher subjects: %w", err)
			}
			if !containsString(subjectIDs, test.SubjectID) {
				return nil, nil, ErrAccessDenied
			}
		}
	case models.RoleAdmin:
	default:
		return nil, nil, ErrAccessDenied
	}

	if attempt.Status != models.AttemptSubmitted {
		return nil, nil, ErrAttemptNotFound
	}

	// Submitted answers are immutable, so repeat result reads are served
	// from the cache.
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, resultCacheKey(attemptID)); err == nil {
			if answers, err := decodeAttemptAnswers(cached); err == nil {
				return attempt, answers, nil
			}
		}
	}

	answers, err := s.attemptRepo.GetAttemptAnswers(ctx, attemptID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get attempt answers: %w", err)
	}

	s.cacheAnswers(ctx, attemptID, answers)

	return attempt, answers, nil
}

// HandleAttemptSubmitted consumes an attempt.submitted event and warms the
// result cache, so the first result read after a submission is already a hit.
func (s *AttemptService) HandleAttemptSubmitted(ctx context.Context, body []byte) error {
	var event attemptSubmittedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("failed to unmarshal attempt.submitted event: %w", err)
	}
	if event.AttemptID == "" {
		return fmt.Errorf("attempt.submitted event missing attempt_id")
	}

	answers, err := s.attemptRepo.GetAttemptAnswers(ctx, event.AttemptID)
	if err != nil {
		return fmt.Errorf("failed to get attempt answers: %w", err)
	}
	s.cacheAnswers(ctx, event.AttemptID, answers)
	return nil
}

func (s *AttemptService) cacheAnswers(ctx context.Context, attemptID string, answers []*models.AttemptAnswer) {
	if s.cache == nil {
		return
	}
	encoded, err := encodeAttemptAnswers(answers)
	if err != nil {
		log.Printf("Failed to encode answers for cache: %v", err)
		return
	}
	if err := s.cache.Set(ctx, resultCacheKey(attemptID), encoded, resultCacheTTL); err != nil {
		log.Printf("Failed to cache attempt result: %v", err)
	}
}

func encodeAttemptAnswers(answers []*models.AttemptAnswer) (string, error) {
	encoded, err := json.Marshal(answers)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func decodeAttemptAnswers(encoded string) ([]*models.AttemptAnswer, error) {
	var answers []*models.AttemptAnswer
	if err := json.Unmarshal([]byte(encoded), &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func (s *AttemptService) StudentAttempts(ctx context.Context, studentID string) ([]*models.Attempt, error) {
	return s.attemptRepo.GetAttemptsByStudent(ctx, studentID)
}

func (s *AttemptService) getTest(ctx context.Context, testID string) (*models.Test, error) {
	test, err := s.testRepo.GetTestByID(ctx, testID)
	if err == sql.ErrNoRows {
		return nil, ErrTestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	return test, nil
}

func (s *AttemptService) getAttempt(ctx context.Context, attemptID string) (*models.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err == sql.ErrNoRows {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return attempt, nil
}

func (s *AttemptService) checkGradeAccess(ctx context.Context, test *models.Test, student *models.User) error {
	if !student.GradeID.Valid {
		return ErrAccessDenied
	}
	gradeIDs, err := s.testRepo.TestGradeIDs(ctx, test.ID)
	if err != nil {
		return fmt.Errorf("failed to get test grades: %w", err)
	}
	if !containsString(gradeIDs, student.GradeID.String) {
		return ErrAccessDenied
	}
	return nil
}

type attemptSubmittedEvent struct {
	AttemptID string `json:"attempt_id"`
	TestID    string `json:"test_id"`
	StudentID string `json:"student_id"`
	Score     int    `json:"score"`
	MaxScore  int    `json:"max_score"`
	Forced    bool   `json:"forced"`
}

func (s *AttemptService) publishAttemptSubmitted(ctx context.Context, attempt *models.Attempt, forced bool) {
	if s.mqPublisher == nil {
		return
	}

	event := attemptSubmittedEvent{
		AttemptID: attempt.ID,
		TestID:    attempt.TestID,
		StudentID: attempt.StudentID,
		Score:     attempt.Score,
		MaxScore:  attempt.MaxScore,
		Forced:    forced,
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal attempt_submitted event: %v", err)
		return
	}

	if err := s.mqPublisher.Publish(ctx, "attempt.submitted", eventJSON); err != nil {
		log.Printf("Failed to publish attempt_submitted event: %v", err)
	}
}

func attemptExpired(attempt *models.Attempt, now time.Time) bool {
	return attempt.Deadline.Valid && now.After(attempt.Deadline.Time)
}

func totalPoints(questions []*models.Question) int {
	total := 0
	for _, q := range questions {
		total += q.Points
	}
	return total
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
