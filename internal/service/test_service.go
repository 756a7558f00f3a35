package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iNeydlis/schooltest/internal/models"
	"github.com/iNeydlis/schooltest/internal/repository"
)

type OptionInput struct {
	Text    string
	Correct bool
}

type QuestionInput struct {
	Text    string
	Type    string
	Points  int
	Options []OptionInput
}

type TestInput struct {
	Title           string
	Description     string
	SubjectID       string
	GradeIDs        []string
	TimeLimitMin    *int
	QuestionsToShow *int
	MaxAttempts     int
	Questions       []QuestionInput
}

// TestOverview is a test annotated with the requesting student's progress.
type TestOverview struct {
	Test              *models.Test
	QuestionCount     int
	RemainingAttempts int
	BestScore         int
	BestMaxScore      int
	HasCompleted      bool
}

type TestService struct {
	testRepo    *repository.TestRepository
	attemptRepo *repository.AttemptRepository
	userRepo    *repository.UserRepository
}

func NewTestService(db *sql.DB) *TestService {
	return &TestService{
		testRepo:    repository.NewTestRepository(db),
		attemptRepo: repository.NewAttemptRepository(db),
		userRepo:    repository.NewUserRepository(db),
	}
}

func (s *TestService) CreateTest(ctx context.Context, input *TestInput, creatorID string) (*models.Test, error) {
	creator, err := s.userRepo.GetByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get creator: %w", err)
	}

	if err := s.checkAuthorRights(ctx, creator, input.SubjectID, input.GradeIDs); err != nil {
		return nil, err
	}

	test := &models.Test{
		Title:       input.Title,
		Description: input.Description,
		SubjectID:   input.SubjectID,
		CreatorID:   creatorID,
		MaxAttempts: input.MaxAttempts,
	}
	if test.MaxAttempts <= 0 {
		test.MaxAttempts = 1
	}
	if input.TimeLimitMin != nil {
		test.TimeLimitMin = sql.NullInt32{Int32: int32(*input.TimeLimitMin), Valid: true}
	}
	if input.QuestionsToShow != nil {
		test.QuestionsToShow = sql.NullInt32{Int32: int32(*input.QuestionsToShow), Valid: true}
	}

	questions := buildQuestions(input.Questions)

	if err := s.testRepo.CreateTest(ctx, test, questions, input.GradeIDs); err != nil {
		return nil, fmt.Errorf("failed to create test: %w", err)
	}
	return test, nil
}

func (s *TestService) UpdateTest(ctx context.Context, testID string, input *TestInput, userID string) (*models.Test, error) {
	test, err := s.getTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := s.checkEditRights(user, test); err != nil {
		return nil, err
	}

	test.Title = input.Title
	test.Description = input.Description
	test.SubjectID = input.SubjectID
	test.MaxAttempts = input.MaxAttempts
	if test.MaxAttempts <= 0 {
		test.MaxAttempts = 1
	}
	test.TimeLimitMin = sql.NullInt32{}
	if input.TimeLimitMin != nil {
		test.TimeLimitMin = sql.NullInt32{Int32: int32(*input.TimeLimitMin), Valid: true}
	}
	test.QuestionsToShow = sql.NullInt32{}
	if input.QuestionsToShow != nil {
		test.QuestionsToShow = sql.NullInt32{Int32: int32(*input.QuestionsToShow), Valid: true}
	}

	questions := buildQuestions(input.Questions)

	if err := s.testRepo.UpdateTest(ctx, test, questions, input.GradeIDs); err != nil {
		return nil, fmt.Errorf("failed to update test: %w", err)
	}
	return test, nil
}

// DeactivateTest soft-deletes: the test disappears from student listings and
// Start fails with TEST_INACTIVE, but existing results survive.
func (s *TestService) DeactivateTest(ctx context.Context, testID, userID string) error {
	return s.setActive(ctx, testID, userID, false)
}

func (s *TestService) ReactivateTest(ctx context.Context, testID, userID string) error {
	return s.setActive(ctx, testID, userID, true)
}

func (s *TestService) setActive(ctx context.Context, testID, userID string, active bool) error {
	test, err := s.getTest(ctx, testID)
	if err != nil {
		return err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if err := s.checkEditRights(user, test); err != nil {
		return err
	}

	if err := s.testRepo.SetTestActive(ctx, testID, active); err != nil {
		return fmt.Errorf("failed to update test: %w", err)
	}
	return nil
}

// GetTest returns the test and, for teachers and admins, its full question
// set including correctness flags. Students get the bare test row; questions
// are only served to them through an attempt.
func (s *TestService) GetTest(ctx context.Context, testID, userID string) (*models.Test, []*models.Question, error) {
	test, err := s.getTest(ctx, testID)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.Role == models.RoleStudent {
		if !test.Active {
			return nil, nil, ErrAccessDenied
		}
		return test, nil, nil
	}

	if user.Role == models.RoleTeacher && test.CreatorID != userID {
		subjectIDs, err := s.userRepo.GetTeacherSubjectIDs(ctx, userID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get teacher subjects: %w", err)
		}
		if !containsString(subjectIDs, test.SubjectID) {
			return nil, nil, ErrAccessDenied
		}
	}

	questions, err := s.testRepo.GetQuestionsByTestID(ctx, testID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get questions: %w", err)
	}
	return test, questions, nil
}

// TestsForStudent lists active tests for the student's grade, annotated with
// the remaining attempts and the best completed score.
func (s *TestService) TestsForStudent(ctx context.Context, studentID string) ([]*TestOverview, error) {
	student, err := s.userRepo.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student.Role != models.RoleStudent {
		return nil, ErrAccessDenied
	}
	if !student.GradeID.Valid {
		return []*TestOverview{}, nil
	}

	tests, err := s.testRepo.GetActiveTestsForGrade(ctx, student.GradeID.String)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}

	attempts, err := s.attemptRepo.GetAttemptsByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	attemptsByTest := make(map[string][]*models.Attempt)
	for _, a := range attempts {
		attemptsByTest[a.TestID] = append(attemptsByTest[a.TestID], a)
	}

	var overviews []*TestOverview
	for _, test := range tests {
		questions, err := s.testRepo.GetQuestionsByTestID(ctx, test.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get questions for test %s: %w", test.ID, err)
		}

		overview := &TestOverview{
			Test:          test,
			QuestionCount: len(questions),
			BestMaxScore:  totalPoints(questions),
		}

		completed := 0
		bestPct := -1.0
		for _, a := range attemptsByTest[test.ID] {
			if a.Status != models.AttemptSubmitted {
				continue
			}
			completed++
			pct := 0.0
			if a.MaxScore > 0 {
				pct = float64(a.Score) / float64(a.MaxScore)
			}
			if pct > bestPct {
				bestPct = pct
				overview.BestScore = a.Score
				overview.BestMaxScore = a.MaxScore
				overview.HasCompleted = true
			}
		}

		overview.RemainingAttempts = test.MaxAttempts - completed
		if overview.RemainingAttempts < 0 {
			overview.RemainingAttempts = 0
		}
		overviews = append(overviews, overview)
	}

	return overviews, nil
}

func (s *TestService) TestsByTeacher(ctx context.Context, teacherID string) ([]*models.Test, error) {
	return s.testRepo.GetTestsByCreator(ctx, teacherID)
}

func (s *TestService) AllTests(ctx context.Context) ([]*models.Test, error) {
	return s.testRepo.GetAllTests(ctx)
}

func (s *TestService) getTest(ctx context.Context, testID string) (*models.Test, error) {
	test, err := s.testRepo.GetTestByID(ctx, testID)
	if err == sql.ErrNoRows {
		return nil, ErrTestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	return test, nil
}

func (s *TestService) checkAuthorRights(ctx context.Context, creator *models.User, subjectID string, gradeIDs []string) error {
	switch creator.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		subjectIDs, err := s.userRepo.GetTeacherSubjectIDs(ctx, creator.ID)
		if err != nil {
			return fmt.Errorf("failed to get teacher subjects: %w", err)
		}
		if !containsString(subjectIDs, subjectID) {
			return ErrAccessDenied
		}

		if len(gradeIDs) > 0 {
			teacherGrades, err := s.userRepo.GetTeacherGradeIDs(ctx, creator.ID)
			if err != nil {
				return fmt.Errorf("failed to get teacher grades: %w", err)
			}
			allowed := false
			for _, gradeID := range gradeIDs {
				if containsString(teacherGrades, gradeID) {
					allowed = true
					break
				}
			}
			if !allowed {
				return ErrAccessDenied
			}
		}
		return nil
	default:
		return ErrAccessDenied
	}
}

func (s *TestService) checkEditRights(user *models.User, test *models.Test) error {
	switch user.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		if test.CreatorID != user.ID {
			return ErrAccessDenied
		}
		return nil
	default:
		return ErrAccessDenied
	}
}

func buildQuestions(inputs []QuestionInput) []*models.Question {
	questions := make([]*models.Question, len(inputs))
	for i, qi := range inputs {
		q := &models.Question{
			Text:   qi.Text,
			Type:   qi.Type,
			Points: qi.Points,
		}
		if q.Points <= 0 {
			q.Points = 1
		}
		for _, oi := range qi.Options {
			q.Options = append(q.Options, &models.AnswerOption{
				Text:    oi.Text,
				Correct: oi.Correct,
			})
		}
		questions[i] = q
	}
	return questions
}
