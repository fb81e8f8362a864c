// Package lifecycle owns story state and the valid transitions between
// states. The graph is monotonic: seed → active → dormant → concluding →
// archived, with dormant skippable. Archived is terminal; nothing leaves
// it. Every applied transition appends to the story's state history,
// which is never truncated.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Melos47/Urban-Legends-Forum/internal/types"
)

// Transition triggers recorded in the state history.
const (
	TriggerAdmitted      = "admitted"
	TriggerInactivity    = "inactivity_window"
	TriggerMaxAge        = "max_age"
	TriggerFinalUpdate   = "final_update"
	TriggerSystemArchive = "system_archive"
)

// ErrInvalidTransition is the sentinel for transitions outside the graph.
var ErrInvalidTransition = errors.New("invalid state transition")

// InvalidTransitionError reports a rejected transition. The story is left
// unchanged when this is returned.
type InvalidTransitionError struct {
	From types.StoryState
	To   types.StoryState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// graph maps each state to the states it may move to.
var graph = map[types.StoryState][]types.StoryState{
	types.StateSeed:       {types.StateActive},
	types.StateActive:     {types.StateDormant, types.StateConcluding},
	types.StateDormant:    {types.StateConcluding},
	types.StateConcluding: {types.StateArchived},
	types.StateArchived:   {},
}

// CanTransition reports whether from → to is an edge of the graph.
func CanTransition(from, to types.StoryState) bool {
	for _, next := range graph[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Thresholds are the time-derived transition knobs.
type Thresholds struct {
	Inactivity time.Duration // active → dormant after this much silence
	MaxAge     time.Duration // active/dormant → concluding past this age
}

// Machine applies transitions to stories.
type Machine struct {
	thresholds Thresholds
}

// New creates a Machine with the given time thresholds.
func New(thresholds Thresholds) *Machine {
	return &Machine{thresholds: thresholds}
}

// Transition moves the story to a new state and appends a history entry.
// A transition outside the graph returns an InvalidTransitionError and
// leaves the story untouched.
func (m *Machine) Transition(story *types.Story, to types.StoryState, trigger string, at time.Time) error {
	if !CanTransition(story.State, to) {
		return &InvalidTransitionError{From: story.State, To: to}
	}

	story.State = to
	story.StateHistory = append(story.StateHistory, types.StateChange{
		State:   to,
		Trigger: trigger,
		At:      at,
	})
	return nil
}

// Evaluate computes the time-derived transition due for a story, if any.
// lastActivity is the story's most recent comment time (or creation time
// when it has no comments). Dormancy and aging are evaluated lazily, so
// callers run this on each scheduler tick rather than on a wall-clock
// timer per story.
func (m *Machine) Evaluate(story *types.Story, lastActivity time.Time, now time.Time) (types.StoryState, string, bool) {
	switch story.State {
	case types.StateActive:
		if m.thresholds.MaxAge > 0 && now.Sub(story.CreatedAt) > m.thresholds.MaxAge {
			return types.StateConcluding, TriggerMaxAge, true
		}
		if m.thresholds.Inactivity > 0 && now.Sub(lastActivity) > m.thresholds.Inactivity {
			return types.StateDormant, TriggerInactivity, true
		}
	case types.StateDormant:
		if m.thresholds.MaxAge > 0 && now.Sub(story.CreatedAt) > m.thresholds.MaxAge {
			return types.StateConcluding, TriggerMaxAge, true
		}
	}
	return "", "", false
}

// finalMarkers are the narrator phrases that mark a terminal update.
var finalMarkers = []string{
	"【完】",
	"【最终更新】",
	"最后一次更新",
	"final update",
	"this is my last post",
}

// IsFinalUpdate reports whether narrator text signals the story's
// conclusion. This is a content classification, not a separate API.
func IsFinalUpdate(text string) bool {
	folded := strings.ToLower(text)
	for _, marker := range finalMarkers {
		if strings.Contains(folded, marker) {
			return true
		}
	}
	return false
}
