package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lectio_backend/internal/model"
	"lectio_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWrite struct {
	UserID        uint
	LectureID     string
	SegmentNumber int
	Score         int
}

type fakeProgressStore struct {
	mu     sync.Mutex
	writes []fakeWrite
	err    error
}

func (f *fakeProgressStore) Read(ctx context.Context, userID uint, lectureID string, segmentNumber int) (*model.StoryProgress, error) {
	return nil, nil
}

func (f *fakeProgressStore) Upsert(ctx context.Context, userID uint, lectureID string, segmentNumber, score int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, fakeWrite{userID, lectureID, segmentNumber, score})
	return nil
}

func (f *fakeProgressStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func newTestEngine(store *fakeProgressStore) *StoryEngine {
	return NewStoryEngine(7, "lecture-1", store, time.Second)
}

func hasNotification(res *StepResult, title string) bool {
	for _, n := range res.Notifications {
		if n.Title == title {
			return true
		}
	}
	return false
}

// walkToFirstQuestion advances a fresh segment through both slides.
func walkToFirstQuestion(e *StoryEngine, segment int) {
	e.Continue(segment)
	e.Continue(segment)
}

func TestContinueAdvancesThroughSlides(t *testing.T) {
	e := newTestEngine(&fakeProgressStore{})

	require.Equal(t, StepSlideA, e.CurrentStep(1))

	res := e.Continue(1)
	assert.Equal(t, StepSlideB, res.Step)
	assert.Empty(t, res.Notifications)

	res = e.Continue(1)
	assert.Equal(t, StepQuestionA, res.Step)
	assert.Equal(t, 0, res.Score)
}

func TestFirstCorrectAnswerAwardsFivePoints(t *testing.T) {
	store := &fakeProgressStore{}
	e := newTestEngine(store)
	walkToFirstQuestion(e, 1)

	res, err := e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Score)
	assert.Equal(t, StepQuestionB, res.Step)
	assert.False(t, res.Completed)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, "Correct!", res.Notifications[0].Title)
	assert.Equal(t, "+5 XP! Total: 5/10 XP", res.Notifications[0].Message)
	assert.Equal(t, 0, store.writeCount(), "no persistence before the cycle is complete")
}

func TestFullyCorrectCyclePersistsAndCompletes(t *testing.T) {
	store := &fakeProgressStore{}
	e := newTestEngine(store)
	walkToFirstQuestion(e, 1)

	_, err := e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)

	res, err := e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)

	assert.Equal(t, 10, res.Score)
	assert.True(t, res.Completed)
	assert.Equal(t, StepSlideA, res.Step, "cycle wraps back to the first slide")
	assert.True(t, hasNotification(res, "Node Completed"))
	assert.False(t, hasNotification(res, "Let's review!"))

	require.Equal(t, 1, store.writeCount())
	w := store.writes[0]
	assert.Equal(t, uint(7), w.UserID)
	assert.Equal(t, "lecture-1", w.LectureID)
	assert.Equal(t, 1, w.SegmentNumber)
	assert.Equal(t, 10, w.Score)
}

func TestWrongAnswerResetsImmediately(t *testing.T) {
	store := &fakeProgressStore{}
	e := newTestEngine(store)
	walkToFirstQuestion(e, 1)

	res, err := e.AnswerQuestion(context.Background(), 1, false)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Score)
	assert.Equal(t, StepSlideA, res.Step, "wrong answer forces the segment back to the start")
	assert.True(t, hasNotification(res, "Let's review!"))
	assert.Equal(t, 0, store.writeCount())
}

func TestWrongAnswerInvalidatesWholeAttempt(t *testing.T) {
	// Missing question 1 and then answering question 2 correctly must not
	// count as mastery: the failed question has to be re-answered.
	store := &fakeProgressStore{}
	e := newTestEngine(store)
	walkToFirstQuestion(e, 1)

	_, err := e.AnswerQuestion(context.Background(), 1, false)
	require.NoError(t, err)

	// Skip ahead to the second question without re-answering the first.
	e.Continue(1)
	e.Continue(1)
	e.Continue(1)
	require.Equal(t, StepQuestionB, e.CurrentStep(1))

	res, err := e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Score, "cycle-end evaluation zeroes the score while a failure is outstanding")
	assert.Equal(t, StepSlideA, res.Step)
	assert.False(t, res.Completed)
	assert.True(t, hasNotification(res, "Let's review!"))
	assert.Equal(t, 0, store.writeCount())
}

func TestRecoveryAfterWrongAnswer(t *testing.T) {
	store := &fakeProgressStore{}
	e := newTestEngine(store)
	walkToFirstQuestion(e, 1)

	_, err := e.AnswerQuestion(context.Background(), 1, false)
	require.NoError(t, err)

	// Replay the cycle, correcting the failed question.
	walkToFirstQuestion(e, 1)
	_, err = e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)

	res, err := e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)

	assert.True(t, res.Completed)
	assert.Equal(t, 10, res.Score)
	require.Equal(t, 1, store.writeCount())
	assert.Equal(t, 10, store.writes[0].Score)
}

func TestContinuePastLastQuestionIsIdempotent(t *testing.T) {
	store := &fakeProgressStore{}
	e := newTestEngine(store)
	walkToFirstQuestion(e, 1)

	_, err := e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)
	_, err = e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)
	require.Equal(t, 1, store.writeCount())

	// A full extra lap of continues must not write or change the score.
	for i := 0; i < stepsPerCycle; i++ {
		res := e.Continue(1)
		assert.Equal(t, 10, res.Score)
		assert.False(t, hasNotification(res, "Let's review!"))
	}
	assert.Equal(t, 1, store.writeCount())
}

func TestReplayAfterMasteryStartsFresh(t *testing.T) {
	store := &fakeProgressStore{}
	e := newTestEngine(store)
	walkToFirstQuestion(e, 1)

	_, err := e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)
	_, err = e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)
	require.Equal(t, 1, store.writeCount())

	// Replaying the segment scores a new attempt from zero; the carried 10
	// must not inflate past the mastery cap.
	walkToFirstQuestion(e, 1)
	res, err := e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Score)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, "+5 XP! Total: 5/10 XP", res.Notifications[0].Message)

	res, err = e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Score)
	assert.True(t, res.Completed)

	require.Equal(t, 2, store.writeCount())
	assert.Equal(t, 10, store.writes[0].Score)
	assert.Equal(t, 10, store.writes[1].Score)
}

func TestReplaySkipToLastQuestionDoesNotPersistPartialScore(t *testing.T) {
	store := &fakeProgressStore{}
	e := newTestEngine(store)
	walkToFirstQuestion(e, 1)

	_, err := e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)
	_, err = e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)
	require.Equal(t, 1, store.writeCount())

	// Continue straight to the last question of the replay and answer only it.
	e.Continue(1)
	e.Continue(1)
	e.Continue(1)
	require.Equal(t, StepQuestionB, e.CurrentStep(1))

	res, err := e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Score, "only the answered question counts for the new attempt")
	assert.False(t, res.Completed)
	assert.Equal(t, 1, store.writeCount(), "a partial attempt is never persisted")
}

func TestReplayAfterFailedSaveRepersists(t *testing.T) {
	store := &fakeProgressStore{err: errors.New("store unavailable")}
	e := newTestEngine(store)
	walkToFirstQuestion(e, 1)

	_, err := e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)
	res, err := e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)
	require.True(t, hasNotification(res, "Failed to save progress"))
	require.Equal(t, 0, store.writeCount())

	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()

	walkToFirstQuestion(e, 1)
	_, err = e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)
	res, err = e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)

	assert.True(t, res.Completed)
	require.Equal(t, 1, store.writeCount())
	assert.Equal(t, 10, store.writes[0].Score)
}

func TestPersistenceFailureKeepsInMemoryProgress(t *testing.T) {
	store := &fakeProgressStore{err: errors.New("store unavailable")}
	e := newTestEngine(store)
	walkToFirstQuestion(e, 1)

	_, err := e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)

	res, err := e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err, "a persistence failure must not surface as a transition error")

	assert.Equal(t, 10, res.Score, "in-memory score is kept")
	assert.False(t, res.Completed)
	assert.True(t, hasNotification(res, "Failed to save progress"))
	assert.False(t, hasNotification(res, "Node Completed"))

	// The session keeps working on in-memory state.
	res = e.Continue(1)
	assert.Equal(t, StepSlideB, res.Step)
	assert.Equal(t, 10, res.Score)
}

func TestAnswerOutsideQuestionStepsRejected(t *testing.T) {
	e := newTestEngine(&fakeProgressStore{})

	_, err := e.AnswerQuestion(context.Background(), 1, true)
	assert.ErrorIs(t, err, util.ErrNotQuestionStep)

	e.Continue(1)
	_, err = e.AnswerQuestion(context.Background(), 1, false)
	assert.ErrorIs(t, err, util.ErrNotQuestionStep)
}

func TestScoreStaysWithinBounds(t *testing.T) {
	store := &fakeProgressStore{}
	e := newTestEngine(store)

	check := func(res *StepResult) {
		assert.GreaterOrEqual(t, res.Score, 0)
		assert.LessOrEqual(t, res.Score, model.MasteryScore)
		assert.Zero(t, res.Score%model.PointsPerCorrect)
	}

	// A mixed walk: fail, recover, complete, keep going.
	walkToFirstQuestion(e, 1)
	res, err := e.AnswerQuestion(context.Background(), 1, false)
	require.NoError(t, err)
	check(res)

	walkToFirstQuestion(e, 1)
	res, err = e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)
	check(res)

	res, err = e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)
	check(res)

	for i := 0; i < 6; i++ {
		check(e.Continue(1))
	}
}

func TestSegmentsTrackStateIndependently(t *testing.T) {
	store := &fakeProgressStore{}
	e := newTestEngine(store)

	walkToFirstQuestion(e, 1)
	_, err := e.AnswerQuestion(context.Background(), 1, true)
	require.NoError(t, err)

	assert.Equal(t, 5, e.Score(1))
	assert.Equal(t, 0, e.Score(2))
	assert.Equal(t, StepSlideA, e.CurrentStep(2))
}
