package session

import (
	"strings"
	"sync"
)

// AnswerStore tracks the student's responses for one attempt. Every question
// gets a typed empty entry up front, so lookups never distinguish "never
// touched" from "cleared".
type AnswerStore struct {
	mu        sync.RWMutex
	questions map[string]Question
	order     []string
	answers   map[string]Answer
}

func NewAnswerStore(questions []Question) *AnswerStore {
	s := &AnswerStore{
		questions: make(map[string]Question, len(questions)),
		answers:   make(map[string]Answer, len(questions)),
	}
	for _, q := range questions {
		s.questions[q.ID] = q
		s.order = append(s.order, q.ID)
		s.answers[q.ID] = emptyAnswer(q)
	}
	return s
}

func emptyAnswer(q Question) Answer {
	a := Answer{QuestionID: q.ID}
	if q.Type == QuestionMultipleChoice {
		a.SelectedOptionIDs = []string{}
	}
	return a
}

// SetChoice records a selection for a choice question. Single-choice keeps
// only the given option; multiple-choice toggles it. Unknown question or
// option ids are ignored.
func (s *AnswerStore) SetChoice(questionID, optionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[questionID]
	if !ok || !hasOption(q, optionID) {
		return
	}

	switch q.Type {
	case QuestionSingleChoice:
		s.answers[questionID] = Answer{
			QuestionID:        questionID,
			SelectedOptionIDs: []string{optionID},
		}
	case QuestionMultipleChoice:
		current := s.answers[questionID]
		var selected []string
		removed := false
		for _, id := range current.SelectedOptionIDs {
			if id == optionID {
				removed = true
				continue
			}
			selected = append(selected, id)
		}
		if !removed {
			selected = append(selected, optionID)
		}
		if selected == nil {
			selected = []string{}
		}
		s.answers[questionID] = Answer{
			QuestionID:        questionID,
			SelectedOptionIDs: selected,
		}
	}
}

// SetText records a free-text response. Ignored for choice questions.
func (s *AnswerStore) SetText(questionID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[questionID]
	if !ok || q.Type != QuestionTextAnswer {
		return
	}
	s.answers[questionID] = Answer{QuestionID: questionID, TextAnswer: text}
}

func (s *AnswerStore) Get(questionID string) (Answer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.answers[questionID]
	return a, ok
}

// IsAnswered reports whether the question holds a non-empty response.
func (s *AnswerStore) IsAnswered(questionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions[questionID]
	if !ok {
		return false
	}
	a := s.answers[questionID]
	if q.Type == QuestionTextAnswer {
		return strings.TrimSpace(a.TextAnswer) != ""
	}
	return len(a.SelectedOptionIDs) > 0
}

func (s *AnswerStore) AnsweredCount() int {
	s.mu.RLock()
	ids := append([]string(nil), s.order...)
	s.mu.RUnlock()

	count := 0
	for _, id := range ids {
		if s.IsAnswered(id) {
			count++
		}
	}
	return count
}

// Snapshot returns all answers in question order, ready for submission.
// Returned slices are copies; mutating them does not affect the store.
func (s *AnswerStore) Snapshot() []Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Answer, 0, len(s.order))
	for _, id := range s.order {
		a := s.answers[id]
		if a.SelectedOptionIDs != nil {
			a.SelectedOptionIDs = append([]string(nil), a.SelectedOptionIDs...)
		}
		out = append(out, a)
	}
	return out
}

func hasOption(q Question, optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}
