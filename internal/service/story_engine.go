package service

import (
	"context"
	"sync"
	"time"

	"lectio_backend/internal/model"
	"lectio_backend/internal/util"
	"lectio_backend/pkg/logger"
	"lectio_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// Steps of a segment cycle. Two theory steps, two question steps; stepping
// past the last question evaluates the attempt and wraps back to the start.
const (
	StepSlideA    = 0
	StepSlideB    = 1
	StepQuestionA = 2
	StepQuestionB = 3

	stepsPerCycle = 4
)

// ProgressStore is the durable side of the engine. Upsert is keyed by
// (user, lecture, segment); the store decides completion from the score.
type ProgressStore interface {
	Read(ctx context.Context, userID uint, lectureID string, segmentNumber int) (*model.StoryProgress, error)
	Upsert(ctx context.Context, userID uint, lectureID string, segmentNumber, score int) error
}

// segmentState is the in-memory ProgressionState for one segment. It exists
// only for the lifetime of a session and is rebuilt at step 0 whenever the
// segment restarts.
type segmentState struct {
	step  int
	score int
	// settled marks a score carried over from an evaluated attempt. It stays
	// visible through continues, but the next answer starts a fresh attempt
	// from zero so replaying a segment can never accumulate past mastery.
	settled bool
	// failed holds question indices answered wrong and not yet corrected.
	// A wrong answer forces an immediate restart, so at most one index can
	// be added per cycle; correcting the question removes it.
	failed map[int]struct{}
}

// StoryEngine drives one learner through one lecture's story mode. All
// transitions run under a single mutex: each learner action is one atomic
// unit, including the mastery evaluation that the original design deferred
// to a separate continue call.
type StoryEngine struct {
	userID    uint
	lectureID string

	store        ProgressStore
	writeTimeout time.Duration

	mu       sync.Mutex
	segments map[int]*segmentState
}

// StepResult is what a transition reports back to the HTTP layer.
type StepResult struct {
	SegmentNumber int            `json:"segmentNumber"`
	Step          int            `json:"step"`
	Score         int            `json:"score"`
	Completed     bool           `json:"completed"`
	Notifications []Notification `json:"notifications"`
}

func NewStoryEngine(userID uint, lectureID string, store ProgressStore, writeTimeout time.Duration) *StoryEngine {
	return &StoryEngine{
		userID:       userID,
		lectureID:    lectureID,
		store:        store,
		writeTimeout: writeTimeout,
		segments:     make(map[int]*segmentState),
	}
}

func (e *StoryEngine) state(segmentNumber int) *segmentState {
	st, ok := e.segments[segmentNumber]
	if !ok {
		st = &segmentState{failed: make(map[int]struct{})}
		e.segments[segmentNumber] = st
	}
	return st
}

// CurrentStep reports the step the learner is on, 0..3.
func (e *StoryEngine) CurrentStep(segmentNumber int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state(segmentNumber).step
}

// Score reports the running score for the segment's current attempt.
func (e *StoryEngine) Score(segmentNumber int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state(segmentNumber).score
}

// Continue advances the step counter. Stepping past the last question
// evaluates the attempt: with uncorrected wrong answers the cycle restarts
// and the score resets; otherwise it wraps silently, because scoring,
// persistence and the completion toast already happened at the answer step.
// Calling it again after a completed answer therefore never re-persists or
// changes the score.
func (e *StoryEngine) Continue(segmentNumber int) *StepResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state(segmentNumber)
	res := &StepResult{SegmentNumber: segmentNumber}
	e.advance(st, res)

	res.Step = st.step
	res.Score = st.score
	return res
}

func (e *StoryEngine) advance(st *segmentState, res *StepResult) {
	st.step++
	if st.step < stepsPerCycle {
		return
	}

	st.step = StepSlideA
	if len(st.failed) > 0 {
		st.score = 0
		st.settled = false
		res.Notifications = append(res.Notifications, reviewNotification())
		return
	}
	st.settled = true
}

// AnswerQuestion scores the answer for the current question step and, in the
// same transition, evaluates mastery. A fully correct cycle persists the
// score; any wrong answer zeroes the score and forces the segment back to the
// first slide immediately. The first answer after an evaluated attempt starts
// a new attempt from zero.
func (e *StoryEngine) AnswerQuestion(ctx context.Context, segmentNumber int, correct bool) (*StepResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state(segmentNumber)
	if st.step != StepQuestionA && st.step != StepQuestionB {
		return nil, util.ErrNotQuestionStep
	}

	if st.settled {
		st.score = 0
		st.settled = false
	}

	res := &StepResult{SegmentNumber: segmentNumber}
	questionIndex := st.step - StepQuestionA

	if !correct {
		st.failed[questionIndex] = struct{}{}
		st.score = 0
		st.step = StepSlideA
		res.Notifications = append(res.Notifications, reviewNotification())
		monitoring.StoryFailedAttempts.Inc()

		res.Step = st.step
		res.Score = st.score
		return res, nil
	}

	delete(st.failed, questionIndex)
	st.score += model.PointsPerCorrect
	res.Notifications = append(res.Notifications, correctAnswerNotification(st.score))

	if st.step == StepQuestionB && len(st.failed) == 0 && st.score >= model.MasteryScore {
		if err := e.persist(ctx, segmentNumber, st.score); err != nil {
			// Durable state is stale until the next successful write; the
			// in-memory attempt is kept so visible progress is not lost.
			logger.Log.Error("failed to persist story progress",
				zap.Uint("userID", e.userID),
				zap.String("lectureID", e.lectureID),
				zap.Int("segment", segmentNumber),
				zap.Error(err))
			res.Notifications = append(res.Notifications, saveFailedNotification())
		} else {
			res.Completed = true
			res.Notifications = append(res.Notifications, completedNotification())
			monitoring.StoryCompletions.Inc()
		}
	}

	e.advance(st, res)

	res.Step = st.step
	res.Score = st.score
	return res, nil
}

func (e *StoryEngine) persist(ctx context.Context, segmentNumber, score int) error {
	wctx, cancel := context.WithTimeout(ctx, e.writeTimeout)
	defer cancel()
	return e.store.Upsert(wctx, e.userID, e.lectureID, segmentNumber, score)
}
