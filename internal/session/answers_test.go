package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeQuestions() []Question {
	return []Question{
		{
			ID: "single", Type: QuestionSingleChoice, Points: 1,
			Options: []Option{{ID: "a"}, {ID: "b"}},
		},
		{
			ID: "multi", Type: QuestionMultipleChoice, Points: 2,
			Options: []Option{{ID: "x"}, {ID: "y"}, {ID: "z"}},
		},
		{
			ID: "text", Type: QuestionTextAnswer, Points: 1,
		},
	}
}

func TestStoreInitializesTypedEmptyAnswers(t *testing.T) {
	store := NewAnswerStore(storeQuestions())

	a, ok := store.Get("single")
	require.True(t, ok)
	assert.Nil(t, a.SelectedOptionIDs)

	a, ok = store.Get("multi")
	require.True(t, ok)
	require.NotNil(t, a.SelectedOptionIDs)
	assert.Empty(t, a.SelectedOptionIDs)

	a, ok = store.Get("text")
	require.True(t, ok)
	assert.Equal(t, "", a.TextAnswer)

	assert.Equal(t, 0, store.AnsweredCount())
}

func TestSingleChoiceReplacesSelection(t *testing.T) {
	store := NewAnswerStore(storeQuestions())

	store.SetChoice("single", "a")
	store.SetChoice("single", "b")

	a, _ := store.Get("single")
	assert.Equal(t, []string{"b"}, a.SelectedOptionIDs)
	assert.True(t, store.IsAnswered("single"))
}

func TestMultipleChoiceToggles(t *testing.T) {
	store := NewAnswerStore(storeQuestions())

	store.SetChoice("multi", "x")
	store.SetChoice("multi", "z")
	a, _ := store.Get("multi")
	assert.ElementsMatch(t, []string{"x", "z"}, a.SelectedOptionIDs)

	// Selecting an already-selected option deselects it.
	store.SetChoice("multi", "x")
	a, _ = store.Get("multi")
	assert.Equal(t, []string{"z"}, a.SelectedOptionIDs)

	store.SetChoice("multi", "z")
	a, _ = store.Get("multi")
	assert.Empty(t, a.SelectedOptionIDs)
	assert.False(t, store.IsAnswered("multi"))
}

func TestUnknownIDsIgnored(t *testing.T) {
	store := NewAnswerStore(storeQuestions())

	store.SetChoice("missing", "a")
	store.SetChoice("single", "nope")
	store.SetText("single", "not a text question")

	assert.Equal(t, 0, store.AnsweredCount())
	_, ok := store.Get("missing")
	assert.False(t, ok)
}

func TestTextAnswerWhitespaceNotAnswered(t *testing.T) {
	store := NewAnswerStore(storeQuestions())

	store.SetText("text", "   ")
	assert.False(t, store.IsAnswered("text"))

	store.SetText("text", " gravity ")
	assert.True(t, store.IsAnswered("text"))

	a, _ := store.Get("text")
	assert.Equal(t, " gravity ", a.TextAnswer)
}

func TestSnapshotOrderAndIsolation(t *testing.T) {
	store := NewAnswerStore(storeQuestions())
	store.SetChoice("single", "a")
	store.SetChoice("multi", "y")
	store.SetText("text", "answer")

	snap := store.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "single", snap[0].QuestionID)
	assert.Equal(t, "multi", snap[1].QuestionID)
	assert.Equal(t, "text", snap[2].QuestionID)

	snap[1].SelectedOptionIDs[0] = "mutated"
	a, _ := store.Get("multi")
	assert.Equal(t, []string{"y"}, a.SelectedOptionIDs)
}
