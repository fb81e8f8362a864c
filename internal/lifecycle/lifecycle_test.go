package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Melos47/Urban-Legends-Forum/internal/types"
)

func newStory(state types.StoryState) *types.Story {
	return &types.Story{
		ID:        "01HTEST",
		Title:     "test",
		State:     state,
		CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestTransitionHappyPath(t *testing.T) {
	m := New(Thresholds{})
	s := newStory(types.StateSeed)
	now := s.CreatedAt

	steps := []struct {
		to      types.StoryState
		trigger string
	}{
		{types.StateActive, TriggerAdmitted},
		{types.StateDormant, TriggerInactivity},
		{types.StateConcluding, TriggerMaxAge},
		{types.StateArchived, TriggerSystemArchive},
	}

	for _, step := range steps {
		now = now.Add(time.Hour)
		require.NoError(t, m.Transition(s, step.to, step.trigger, now))
		assert.Equal(t, step.to, s.State)
	}

	// History is append-only and complete.
	require.Len(t, s.StateHistory, len(steps))
	for i, step := range steps {
		assert.Equal(t, step.to, s.StateHistory[i].State)
		assert.Equal(t, step.trigger, s.StateHistory[i].Trigger)
	}
}

func TestArchivedIsTerminal(t *testing.T) {
	m := New(Thresholds{})
	now := time.Now()

	for _, to := range []types.StoryState{
		types.StateSeed, types.StateActive, types.StateDormant, types.StateConcluding,
	} {
		s := newStory(types.StateArchived)
		err := m.Transition(s, to, "anything", now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidTransition))

		var ite *InvalidTransitionError
		require.ErrorAs(t, err, &ite)
		assert.Equal(t, types.StateArchived, ite.From)

		// State and history untouched on rejection.
		assert.Equal(t, types.StateArchived, s.State)
		assert.Empty(t, s.StateHistory)
	}
}

func TestNoBackwardEdges(t *testing.T) {
	m := New(Thresholds{})
	now := time.Now()

	invalid := []struct {
		from, to types.StoryState
	}{
		{types.StateDormant, types.StateActive},
		{types.StateConcluding, types.StateActive},
		{types.StateActive, types.StateSeed},
		{types.StateSeed, types.StateArchived},
	}

	for _, tc := range invalid {
		s := newStory(tc.from)
		err := m.Transition(s, tc.to, "bad", now)
		assert.True(t, errors.Is(err, ErrInvalidTransition),
			"%s -> %s must be rejected", tc.from, tc.to)
		assert.Equal(t, tc.from, s.State)
	}
}

func TestEvaluateDormancy(t *testing.T) {
	m := New(Thresholds{Inactivity: 48 * time.Hour, MaxAge: 168 * time.Hour})
	s := newStory(types.StateActive)

	// Fresh activity: nothing due.
	now := s.CreatedAt.Add(24 * time.Hour)
	_, _, due := m.Evaluate(s, now.Add(-time.Hour), now)
	assert.False(t, due)

	// Silence beyond the window: dormant.
	now = s.CreatedAt.Add(72 * time.Hour)
	next, trigger, due := m.Evaluate(s, s.CreatedAt, now)
	require.True(t, due)
	assert.Equal(t, types.StateDormant, next)
	assert.Equal(t, TriggerInactivity, trigger)
}

func TestEvaluateMaxAge(t *testing.T) {
	m := New(Thresholds{Inactivity: 48 * time.Hour, MaxAge: 168 * time.Hour})

	// Max age wins over dormancy for an active story.
	s := newStory(types.StateActive)
	now := s.CreatedAt.Add(200 * time.Hour)
	next, trigger, due := m.Evaluate(s, s.CreatedAt, now)
	require.True(t, due)
	assert.Equal(t, types.StateConcluding, next)
	assert.Equal(t, TriggerMaxAge, trigger)

	// Dormant stories also age out.
	s = newStory(types.StateDormant)
	next, _, due = m.Evaluate(s, s.CreatedAt, now)
	require.True(t, due)
	assert.Equal(t, types.StateConcluding, next)
}

func TestEvaluateIgnoresTerminalStates(t *testing.T) {
	m := New(Thresholds{Inactivity: time.Minute, MaxAge: time.Minute})
	now := time.Now().Add(1000 * time.Hour)

	for _, state := range []types.StoryState{types.StateConcluding, types.StateArchived, types.StateSeed} {
		s := newStory(state)
		_, _, due := m.Evaluate(s, s.CreatedAt, now)
		assert.False(t, due, "state %s has no time-derived transitions", state)
	}
}

func TestIsFinalUpdate(t *testing.T) {
	assert.True(t, IsFinalUpdate("各位，这是【最终更新】，我不会再回来了"))
	assert.True(t, IsFinalUpdate("This is my FINAL UPDATE on the matter"))
	assert.True(t, IsFinalUpdate("事情结束了【完】"))
	assert.False(t, IsFinalUpdate("今天又有新进展，持续更新中"))
	assert.False(t, IsFinalUpdate(""))
}
