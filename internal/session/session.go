package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// State is the session's lifecycle phase. Transitions only move forward:
// initializing -> active -> submitting -> terminated.
type State string

const (
	StateInitializing State = "initializing"
	StateActive       State = "active"
	StateSubmitting   State = "submitting"
	StateTerminated   State = "terminated"
)

var ErrNotActive = errors.New("session is not active")

// Manager opens attempt sessions against a portal gateway. Concurrent Open
// calls for the same test are collapsed into one portal round trip, so a
// double-click or a re-render can never race two attempts into existence.
type Manager struct {
	gateway Gateway
	open    singleflight.Group
}

func NewManager(gateway Gateway) *Manager {
	return &Manager{gateway: gateway}
}

// Open starts or resumes the attempt on the test and returns an active
// session holding its question set, answers, and countdown.
func (m *Manager) Open(ctx context.Context, testID string) (*Session, error) {
	v, err, _ := m.open.Do(testID, func() (interface{}, error) {
		return m.openSession(ctx, testID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (m *Manager) openSession(ctx context.Context, testID string) (*Session, error) {
	attempt, err := m.gateway.StartAttempt(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to start attempt: %w", err)
	}

	attempt, questions, err := m.gateway.FetchQuestions(ctx, testID, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch questions: %w", err)
	}

	return &Session{
		gateway:   m.gateway,
		attempt:   attempt,
		questions: questions,
		answers:   NewAnswerStore(questions),
		countdown: NewCountdown(attempt.Deadline),
		state:     StateActive,
	}, nil
}

// Session is one student's run at one attempt: the question set being served,
// the answers recorded so far, and the countdown toward the deadline.
type Session struct {
	mu        sync.Mutex
	gateway   Gateway
	attempt   *Attempt
	questions []Question
	answers   *AnswerStore
	countdown *Countdown

	state State
	// pending is closed when the in-flight submission settles, so a caller
	// racing it can wait and share the outcome.
	pending chan struct{}
	result  *Result
	err     error
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Attempt() *Attempt {
	return s.attempt
}

func (s *Session) Questions() []Question {
	return s.questions
}

func (s *Session) Answers() *AnswerStore {
	return s.answers
}

// Timed reports whether the attempt has a deadline.
func (s *Session) Timed() bool {
	return !s.countdown.Deadline().IsZero()
}

// Remaining returns the time left at now, recomputed from the absolute
// deadline, never negative. Zero for untimed attempts.
func (s *Session) Remaining(now time.Time) time.Duration {
	return s.countdown.Remaining(now)
}

// SelectOption records a choice selection. Ignored once a submission has
// started, so a click racing the auto-submit cannot corrupt the snapshot.
func (s *Session) SelectOption(questionID, optionID string) {
	s.mu.Lock()
	active := s.state == StateActive
	s.mu.Unlock()
	if !active {
		return
	}
	s.answers.SetChoice(questionID, optionID)
}

// SetTextAnswer records a free-text response. Ignored once a submission has
// started.
func (s *Session) SetTextAnswer(questionID, text string) {
	s.mu.Lock()
	active := s.state == StateActive
	s.mu.Unlock()
	if !active {
		return
	}
	s.answers.SetText(questionID, text)
}

// Tick advances the countdown to now. When the deadline passes it submits
// the attempt exactly once, as a forced submission, with whatever answers
// are recorded. It returns the remaining time and whether the session has
// terminated.
func (s *Session) Tick(ctx context.Context, now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	expire := s.state == StateActive && s.countdown.Expired(now)
	s.mu.Unlock()

	if expire {
		s.submit(ctx, true)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countdown.Remaining(now), s.state == StateTerminated
}

// Run drives the countdown with a wall-clock ticker until the session
// terminates or ctx is cancelled. onTick, when non-nil, observes each
// remaining-time reading.
func (s *Session) Run(ctx context.Context, onTick func(remaining time.Duration)) {
	if !s.Timed() {
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			remaining, terminated := s.Tick(ctx, now)
			if onTick != nil {
				onTick(remaining)
			}
			if terminated {
				return
			}
		}
	}
}

// Submit sends the recorded answers to the portal and terminates the
// session. Submission is exactly-once: the first caller performs the portal
// round trip, a caller racing it waits and shares the same outcome, and any
// caller after termination gets the stored outcome. If the portal rejects the
// submission because the deadline passed in flight, it is retried once as a
// forced submission.
func (s *Session) Submit(ctx context.Context) (*Result, error) {
	return s.submit(ctx, false)
}

func (s *Session) submit(ctx context.Context, forced bool) (*Result, error) {
	s.mu.Lock()
	switch s.state {
	case StateTerminated:
		defer s.mu.Unlock()
		return s.result, s.err
	case StateSubmitting:
		wait := s.pending
		s.mu.Unlock()
		<-wait
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.result, s.err
	case StateInitializing:
		s.mu.Unlock()
		return nil, ErrNotActive
	}
	s.state = StateSubmitting
	done := make(chan struct{})
	s.pending = done
	s.mu.Unlock()

	answers := s.answers.Snapshot()

	result, err := s.gateway.SubmitAttempt(ctx, s.attempt.ID, forced, answers)
	retried := false
	if err != nil && !forced && ErrorCode(err) == CodeDeadlineExceeded {
		// The deadline passed between the snapshot and the portal's check.
		// The portal accepts forced submissions while the attempt is open.
		retried = true
		result, err = s.gateway.SubmitAttempt(ctx, s.attempt.ID, true, answers)
	}

	s.mu.Lock()
	defer func() {
		close(done)
		s.mu.Unlock()
	}()

	s.result = result
	s.err = err

	if err != nil && ErrorCode(err) == "" && !forced && !retried {
		// Transport failure on an explicit pre-deadline submission: nothing
		// reached the portal conclusively, so the session stays open and the
		// student can submit again. Once the deadline has been crossed the
		// session must never reopen, so forced submissions terminate on any
		// failure instead.
		s.state = StateActive
		return nil, err
	}

	s.state = StateTerminated
	return result, err
}

// Done reports whether the session has terminated.
func (s *Session) Done() bool {
	return s.State() == StateTerminated
}

// Outcome returns the stored submission result and error. Both are nil while
// the session is still open.
func (s *Session) Outcome() (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateTerminated {
		return nil, nil
	}
	return s.result, s.err
}
