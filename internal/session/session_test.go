package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu sync.Mutex

	attempt   *Attempt
	questions []Question

	startCalls int32
	startDelay time.Duration
	startErr   error

	submitGate chan struct{}

	submitCalls []fakeSubmit
	submitErrs  []error
	result      *Result
}

type fakeSubmit struct {
	attemptID string
	forced    bool
	answers   []Answer
}

func (g *fakeGateway) StartAttempt(ctx context.Context, testID string) (*Attempt, error) {
	atomic.AddInt32(&g.startCalls, 1)
	if g.startDelay > 0 {
		time.Sleep(g.startDelay)
	}
	if g.startErr != nil {
		return nil, g.startErr
	}
	a := *g.attempt
	return &a, nil
}

func (g *fakeGateway) FetchQuestions(ctx context.Context, testID, attemptID string) (*Attempt, []Question, error) {
	a := *g.attempt
	return &a, g.questions, nil
}

func (g *fakeGateway) SubmitAttempt(ctx context.Context, attemptID string, forced bool, answers []Answer) (*Result, error) {
	if g.submitGate != nil {
		<-g.submitGate
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.submitCalls = append(g.submitCalls, fakeSubmit{
		attemptID: attemptID,
		forced:    forced,
		answers:   answers,
	})
	if len(g.submitErrs) > 0 {
		err := g.submitErrs[0]
		g.submitErrs = g.submitErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if g.result != nil {
		return g.result, nil
	}
	return &Result{AttemptID: attemptID, Score: 0, MaxScore: 10}, nil
}

func (g *fakeGateway) submissions() []fakeSubmit {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]fakeSubmit(nil), g.submitCalls...)
}

func newFakeGateway(deadline time.Time) *fakeGateway {
	return &fakeGateway{
		attempt: &Attempt{
			ID:            "attempt-1",
			TestID:        "test-1",
			Status:        "in_progress",
			AttemptNumber: 1,
			StartedAt:     time.Now(),
			Deadline:      deadline,
		},
		questions: []Question{
			{
				ID: "q1", Text: "Pick one", Type: QuestionSingleChoice, Points: 2,
				Options: []Option{{ID: "q1a"}, {ID: "q1b"}},
			},
			{
				ID: "q2", Text: "Pick many", Type: QuestionMultipleChoice, Points: 3,
				Options: []Option{{ID: "q2a"}, {ID: "q2b"}, {ID: "q2c"}},
			},
			{
				ID: "q3", Text: "Write it", Type: QuestionTextAnswer, Points: 1,
			},
		},
	}
}

func TestOpenBuildsActiveSession(t *testing.T) {
	gw := newFakeGateway(time.Now().Add(10 * time.Minute))
	mgr := NewManager(gw)

	sess, err := mgr.Open(context.Background(), "test-1")
	require.NoError(t, err)

	assert.Equal(t, StateActive, sess.State())
	assert.Equal(t, "attempt-1", sess.Attempt().ID)
	assert.Len(t, sess.Questions(), 3)
	assert.True(t, sess.Timed())
	assert.Equal(t, 0, sess.Answers().AnsweredCount())
}

func TestOpenCollapsesConcurrentCalls(t *testing.T) {
	gw := newFakeGateway(time.Time{})
	gw.startDelay = 50 * time.Millisecond
	mgr := NewManager(gw)

	var wg sync.WaitGroup
	sessions := make([]*Session, 4)
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], errs[i] = mgr.Open(context.Background(), "test-1")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&gw.startCalls))
	for _, sess := range sessions[1:] {
		assert.Same(t, sessions[0], sess)
	}
}

func TestOpenRetriesAfterFailure(t *testing.T) {
	gw := newFakeGateway(time.Time{})
	gw.startErr = &GatewayError{Code: CodeTestInactive, Message: "test is not active"}
	mgr := NewManager(gw)

	_, err := mgr.Open(context.Background(), "test-1")
	require.Error(t, err)
	assert.Equal(t, CodeTestInactive, ErrorCode(err))

	// A failed open must not poison later calls.
	gw.startErr = nil
	sess, err := mgr.Open(context.Background(), "test-1")
	require.NoError(t, err)
	assert.Equal(t, StateActive, sess.State())
}

func TestRemainingRecomputedFromDeadline(t *testing.T) {
	deadline := time.Now().Add(61 * time.Second)
	gw := newFakeGateway(deadline)
	mgr := NewManager(gw)

	sess, err := mgr.Open(context.Background(), "test-1")
	require.NoError(t, err)

	// A delayed reading jumps straight to the true remaining time instead
	// of drifting by accumulated tick intervals.
	assert.Equal(t, 31*time.Second, sess.Remaining(deadline.Add(-31*time.Second)))
	assert.Equal(t, time.Duration(0), sess.Remaining(deadline.Add(2*time.Second)))
}

func TestExpiryForcesSubmissionOnce(t *testing.T) {
	deadline := time.Now().Add(61 * time.Second)
	gw := newFakeGateway(deadline)
	mgr := NewManager(gw)

	sess, err := mgr.Open(context.Background(), "test-1")
	require.NoError(t, err)

	sess.SelectOption("q1", "q1a")

	ctx := context.Background()
	remaining, done := sess.Tick(ctx, deadline.Add(-time.Second))
	assert.Equal(t, time.Second, remaining)
	assert.False(t, done)
	assert.Empty(t, gw.submissions())

	_, done = sess.Tick(ctx, deadline.Add(time.Second))
	assert.True(t, done)

	subs := gw.submissions()
	require.Len(t, subs, 1)
	assert.True(t, subs[0].forced)
	require.Len(t, subs[0].answers, 3)
	assert.Equal(t, []string{"q1a"}, subs[0].answers[0].SelectedOptionIDs)

	// Further ticks never submit again.
	_, done = sess.Tick(ctx, deadline.Add(time.Minute))
	assert.True(t, done)
	assert.Len(t, gw.submissions(), 1)
}

func TestSubmitIsIdempotent(t *testing.T) {
	gw := newFakeGateway(time.Time{})
	gw.result = &Result{AttemptID: "attempt-1", Score: 4, MaxScore: 6}
	mgr := NewManager(gw)

	sess, err := mgr.Open(context.Background(), "test-1")
	require.NoError(t, err)

	first, err := sess.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, first.Score)
	assert.Equal(t, StateTerminated, sess.State())

	second, err := sess.Submit(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Len(t, gw.submissions(), 1)
}

func TestConcurrentSubmitSharesOutcome(t *testing.T) {
	gw := newFakeGateway(time.Time{})
	gw.submitGate = make(chan struct{})
	gw.result = &Result{AttemptID: "attempt-1", Score: 3, MaxScore: 6}
	mgr := NewManager(gw)

	sess, err := mgr.Open(context.Background(), "test-1")
	require.NoError(t, err)

	type outcome struct {
		result *Result
		err    error
	}
	first := make(chan outcome, 1)
	go func() {
		r, err := sess.Submit(context.Background())
		first <- outcome{r, err}
	}()

	require.Eventually(t, func() bool {
		return sess.State() == StateSubmitting
	}, time.Second, 5*time.Millisecond)

	// A double-click while the first submission is in flight waits for it
	// and shares its outcome instead of failing.
	second := make(chan outcome, 1)
	go func() {
		r, err := sess.Submit(context.Background())
		second <- outcome{r, err}
	}()

	close(gw.submitGate)

	firstOut := <-first
	secondOut := <-second
	require.NoError(t, firstOut.err)
	require.NoError(t, secondOut.err)
	assert.Same(t, firstOut.result, secondOut.result)
	assert.Len(t, gw.submissions(), 1)
}

func TestSubmitRetriesForcedOnDeadlineExceeded(t *testing.T) {
	gw := newFakeGateway(time.Now().Add(time.Minute))
	gw.submitErrs = []error{
		&GatewayError{Code: CodeDeadlineExceeded, Message: "the attempt deadline has passed"},
		nil,
	}
	mgr := NewManager(gw)

	sess, err := mgr.Open(context.Background(), "test-1")
	require.NoError(t, err)

	_, err = sess.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateTerminated, sess.State())

	subs := gw.submissions()
	require.Len(t, subs, 2)
	assert.False(t, subs[0].forced)
	assert.True(t, subs[1].forced)
}

func TestSubmitTerminatesOnPortalRejection(t *testing.T) {
	gw := newFakeGateway(time.Time{})
	gw.submitErrs = []error{
		&GatewayError{Code: CodeAttemptCompleted, Message: "attempt is already submitted"},
	}
	mgr := NewManager(gw)

	sess, err := mgr.Open(context.Background(), "test-1")
	require.NoError(t, err)

	_, err = sess.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, CodeAttemptCompleted, ErrorCode(err))
	assert.Equal(t, StateTerminated, sess.State())

	// The stored outcome is replayed, not retried.
	_, err = sess.Submit(context.Background())
	assert.Equal(t, CodeAttemptCompleted, ErrorCode(err))
	assert.Len(t, gw.submissions(), 1)
}

func TestSubmitReopensOnTransportFailure(t *testing.T) {
	gw := newFakeGateway(time.Time{})
	gw.submitErrs = []error{
		context.DeadlineExceeded,
	}
	mgr := NewManager(gw)

	sess, err := mgr.Open(context.Background(), "test-1")
	require.NoError(t, err)

	_, err = sess.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateActive, sess.State())

	// No outcome is stored while the session remains open.
	result, outErr := sess.Outcome()
	assert.Nil(t, result)
	assert.NoError(t, outErr)

	_, err = sess.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateTerminated, sess.State())
	assert.Len(t, gw.submissions(), 2)
}

func TestExpiryTransportFailureTerminates(t *testing.T) {
	deadline := time.Now().Add(time.Minute)
	gw := newFakeGateway(deadline)
	gw.submitErrs = []error{
		errors.New("connection reset"),
	}
	mgr := NewManager(gw)

	sess, err := mgr.Open(context.Background(), "test-1")
	require.NoError(t, err)

	sess.SelectOption("q1", "q1a")

	// The forced auto-submit fails in transit. Past the deadline the session
	// must never reopen: it terminates carrying the error.
	_, done := sess.Tick(context.Background(), deadline.Add(time.Second))
	assert.True(t, done)
	assert.Equal(t, StateTerminated, sess.State())

	result, outErr := sess.Outcome()
	assert.Nil(t, result)
	require.Error(t, outErr)

	// Frozen: answer mutations after expiry are silently ignored.
	sess.SelectOption("q1", "q1b")
	a, _ := sess.Answers().Get("q1")
	assert.Equal(t, []string{"q1a"}, a.SelectedOptionIDs)

	assert.Len(t, gw.submissions(), 1)
}

func TestAnswersFrozenAfterSubmissionStarts(t *testing.T) {
	gw := newFakeGateway(time.Time{})
	mgr := NewManager(gw)

	sess, err := mgr.Open(context.Background(), "test-1")
	require.NoError(t, err)

	sess.SelectOption("q1", "q1a")
	_, err = sess.Submit(context.Background())
	require.NoError(t, err)

	sess.SelectOption("q1", "q1b")
	sess.SetTextAnswer("q3", "late")

	a, ok := sess.Answers().Get("q1")
	require.True(t, ok)
	assert.Equal(t, []string{"q1a"}, a.SelectedOptionIDs)
	a, _ = sess.Answers().Get("q3")
	assert.Empty(t, a.TextAnswer)
}

func TestResumeKeepsServerDeadline(t *testing.T) {
	// A resumed attempt carries the original deadline: about six minutes
	// left of a longer limit, not a fresh countdown.
	deadline := time.Now().Add(6 * time.Minute)
	gw := newFakeGateway(deadline)
	gw.attempt.Resumed = true
	mgr := NewManager(gw)

	sess, err := mgr.Open(context.Background(), "test-1")
	require.NoError(t, err)

	assert.True(t, sess.Attempt().Resumed)
	remaining := sess.Remaining(time.Now())
	assert.LessOrEqual(t, remaining, 6*time.Minute)
	assert.Greater(t, remaining, 5*time.Minute)
}

func TestUntimedSessionNeverExpires(t *testing.T) {
	gw := newFakeGateway(time.Time{})
	mgr := NewManager(gw)

	sess, err := mgr.Open(context.Background(), "test-1")
	require.NoError(t, err)

	assert.False(t, sess.Timed())
	_, done := sess.Tick(context.Background(), time.Now().Add(24*time.Hour))
	assert.False(t, done)
	assert.Empty(t, gw.submissions())
}
