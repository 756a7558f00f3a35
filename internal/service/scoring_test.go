package service

import (
	"testing"

	"github.com/iNeydlis/schooltest/internal/models"

	"github.com/stretchr/testify/assert"
)

func singleChoiceQuestion() *models.Question {
	return &models.Question{
		ID: "q1", Type: models.QuestionSingleChoice, Points: 3,
		Options: []*models.AnswerOption{
			{ID: "a", Correct: true},
			{ID: "b"},
			{ID: "c"},
		},
	}
}

func multipleChoiceQuestion() *models.Question {
	return &models.Question{
		ID: "q2", Type: models.QuestionMultipleChoice, Points: 4,
		Options: []*models.AnswerOption{
			{ID: "a", Correct: true},
			{ID: "b", Correct: true},
			{ID: "c"},
			{ID: "d"},
		},
	}
}

func TestSingleChoiceAllOrNothing(t *testing.T) {
	q := singleChoiceQuestion()

	correct := scoreQuestion(q, []string{"a"}, "")
	assert.True(t, correct.Correct)
	assert.Equal(t, 3, correct.EarnedPoints)

	wrong := scoreQuestion(q, []string{"b"}, "")
	assert.False(t, wrong.Correct)
	assert.Equal(t, 0, wrong.EarnedPoints)

	// More than one selection can never be correct for single choice.
	double := scoreQuestion(q, []string{"a", "b"}, "")
	assert.False(t, double.Correct)
	assert.Equal(t, 0, double.EarnedPoints)

	empty := scoreQuestion(q, nil, "")
	assert.False(t, empty.Correct)
	assert.Equal(t, 0, empty.EarnedPoints)
}

func TestMultipleChoicePartialCredit(t *testing.T) {
	q := multipleChoiceQuestion()

	full := scoreQuestion(q, []string{"a", "b"}, "")
	assert.True(t, full.Correct)
	assert.Equal(t, 4, full.EarnedPoints)
	assert.Equal(t, 1.0, full.PartialRatio)

	half := scoreQuestion(q, []string{"a"}, "")
	assert.False(t, half.Correct)
	assert.Equal(t, 2, half.EarnedPoints)
	assert.Equal(t, 0.5, half.PartialRatio)

	// One stray selection costs half its weight: 1.0 - 0.5*(1/2) = 0.75.
	stray := scoreQuestion(q, []string{"a", "b", "c"}, "")
	assert.False(t, stray.Correct)
	assert.Equal(t, 3, stray.EarnedPoints)
	assert.Equal(t, 0.75, stray.PartialRatio)

	// All incorrect selections floor at zero.
	bad := scoreQuestion(q, []string{"c", "d"}, "")
	assert.Equal(t, 0, bad.EarnedPoints)
	assert.Equal(t, 0.0, bad.PartialRatio)

	none := scoreQuestion(q, nil, "")
	assert.Equal(t, 0, none.EarnedPoints)
}

func TestMultipleChoiceIgnoresUnknownOptions(t *testing.T) {
	q := multipleChoiceQuestion()

	scored := scoreQuestion(q, []string{"a", "b", "bogus"}, "")
	assert.True(t, scored.Correct)
	assert.Equal(t, 4, scored.EarnedPoints)
}

func TestMultipleChoiceNoCorrectOptions(t *testing.T) {
	q := &models.Question{
		ID: "q3", Type: models.QuestionMultipleChoice, Points: 2,
		Options: []*models.AnswerOption{{ID: "a"}, {ID: "b"}},
	}

	empty := scoreQuestion(q, nil, "")
	assert.True(t, empty.Correct)
	assert.Equal(t, 2, empty.EarnedPoints)

	selected := scoreQuestion(q, []string{"a"}, "")
	assert.False(t, selected.Correct)
	assert.Equal(t, 0, selected.EarnedPoints)
}

func TestTextAnswerMatching(t *testing.T) {
	q := &models.Question{
		ID: "q4", Type: models.QuestionTextAnswer, Points: 2,
		Options: []*models.AnswerOption{{ID: "a", Text: "Gravity", Correct: true}},
	}

	exact := scoreQuestion(q, nil, "Gravity")
	assert.True(t, exact.Correct)
	assert.Equal(t, 2, exact.EarnedPoints)

	// Case and surrounding whitespace are ignored.
	fuzzy := scoreQuestion(q, nil, "  gRaViTy ")
	assert.True(t, fuzzy.Correct)

	wrong := scoreQuestion(q, nil, "magnetism")
	assert.False(t, wrong.Correct)
	assert.Equal(t, 0, wrong.EarnedPoints)

	empty := scoreQuestion(q, nil, "")
	assert.False(t, empty.Correct)
}

func TestTextAnswerWithoutReference(t *testing.T) {
	q := &models.Question{ID: "q5", Type: models.QuestionTextAnswer, Points: 1}

	scored := scoreQuestion(q, nil, "anything")
	assert.False(t, scored.Correct)
	assert.Equal(t, 0, scored.EarnedPoints)
}
