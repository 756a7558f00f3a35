package service

import (
	"context"
	"testing"
	"time"

	"github.com/iNeydlis/schooltest/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

func (c *fakeCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = value.(string)
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.data[key] = value.(string)
	c.ttls[key] = expiration
	return nil
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	value, ok := c.data[key]
	if !ok {
		return "", assert.AnError
	}
	return value, nil
}

func (c *fakeCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.data, key)
	}
	return nil
}

func TestCacheAnswersRoundTrip(t *testing.T) {
	cache := newFakeCache()
	s := &AttemptService{cache: cache}

	answers := []*models.AttemptAnswer{
		{
			AttemptID:         "attempt-1",
			QuestionID:        "q1",
			SelectedOptionIDs: []string{"a", "b"},
			Correct:           false,
			EarnedPoints:      3,
			PartialRatio:      0.75,
		},
		{
			AttemptID:  "attempt-1",
			QuestionID: "q2",
			TextAnswer: "gravity",
			Correct:    true,
		},
	}

	s.cacheAnswers(context.Background(), "attempt-1", answers)

	encoded, err := cache.Get(context.Background(), resultCacheKey("attempt-1"))
	require.NoError(t, err)
	assert.Equal(t, resultCacheTTL, cache.ttls[resultCacheKey("attempt-1")])

	decoded, err := decodeAttemptAnswers(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, []string{"a", "b"}, decoded[0].SelectedOptionIDs)
	assert.Equal(t, 0.75, decoded[0].PartialRatio)
	assert.Equal(t, "gravity", decoded[1].TextAnswer)
	assert.True(t, decoded[1].Correct)
}

func TestCacheAnswersNoopWithoutCache(t *testing.T) {
	s := &AttemptService{}
	s.cacheAnswers(context.Background(), "attempt-1", nil)
}

func TestHandleAttemptSubmittedRejectsBadEvents(t *testing.T) {
	s := &AttemptService{}

	err := s.HandleAttemptSubmitted(context.Background(), []byte("not json"))
	assert.Error(t, err)

	err = s.HandleAttemptSubmitted(context.Background(), []byte(`{"test_id":"t1"}`))
	assert.Error(t, err)
}
