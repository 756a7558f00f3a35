package service

import (
	"math"
	"strings"

	"github.com/iNeydlis/schooltest/internal/models"
)

// scoreQuestion grades one response against the question's reference answers.
// Single-choice answers earn full points or nothing. Multiple-choice answers
// earn partial credit: the share of correct options selected, minus half the
// share of incorrect options selected, floored at zero. Text answers match
// the reference text case-insensitively after trimming.
func scoreQuestion(q *models.Question, selectedIDs []string, textAnswer string) *models.AttemptAnswer {
	answer := &models.AttemptAnswer{
		QuestionID:        q.ID,
		SelectedOptionIDs: selectedIDs,
		TextAnswer:        textAnswer,
	}

	switch q.Type {
	case models.QuestionTextAnswer:
		if len(q.Options) == 0 {
			return answer
		}
		reference := strings.ToLower(strings.TrimSpace(q.Options[0].Text))
		provided := strings.ToLower(strings.TrimSpace(textAnswer))
		if reference != "" && reference == provided {
			answer.Correct = true
			answer.EarnedPoints = q.Points
			answer.PartialRatio = 1
		}

	case models.QuestionSingleChoice:
		if len(selectedIDs) != 1 {
			return answer
		}
		for _, opt := range q.Options {
			if opt.ID == selectedIDs[0] && opt.Correct {
				answer.Correct = true
				answer.EarnedPoints = q.Points
				answer.PartialRatio = 1
				break
			}
		}

	case models.QuestionMultipleChoice:
		answer.PartialRatio = multipleChoiceRatio(q, selectedIDs)
		answer.EarnedPoints = int(math.Round(float64(q.Points) * answer.PartialRatio))
		answer.Correct = answer.PartialRatio == 1
	}

	return answer
}

func multipleChoiceRatio(q *models.Question, selectedIDs []string) float64 {
	correctByID := make(map[string]bool, len(q.Options))
	totalCorrect := 0
	for _, opt := range q.Options {
		correctByID[opt.ID] = opt.Correct
		if opt.Correct {
			totalCorrect++
		}
	}

	if totalCorrect == 0 {
		// A question with no correct options is satisfied by selecting nothing.
		if len(selectedIDs) == 0 {
			return 1
		}
		return 0
	}

	correctSelected := 0
	validSelected := 0
	for _, id := range selectedIDs {
		correct, known := correctByID[id]
		if !known {
			continue
		}
		validSelected++
		if correct {
			correctSelected++
		}
	}

	correctRatio := float64(correctSelected) / float64(totalCorrect)

	incorrectSelected := validSelected - correctSelected
	totalIncorrect := len(q.Options) - totalCorrect
	incorrectPenalty := 0.0
	if totalIncorrect > 0 {
		incorrectPenalty = float64(incorrectSelected) / float64(totalIncorrect)
	}

	// Half-weight penalty so a single stray selection does not wipe out an
	// otherwise complete answer.
	return math.Max(0, correctRatio-incorrectPenalty*0.5)
}
