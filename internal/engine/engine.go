// Package engine orchestrates the narrative lifecycle: admission of new
// stories on each scheduler tick, lazy lifecycle aging, narrator replies
// and threshold-triggered evidence generation. No error escaping this
// package should terminate the scheduler; every failure is scoped to a
// single tick or task.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Melos47/Urban-Legends-Forum/internal/config"
	"github.com/Melos47/Urban-Legends-Forum/internal/generator"
	"github.com/Melos47/Urban-Legends-Forum/internal/lifecycle"
	"github.com/Melos47/Urban-Legends-Forum/internal/similarity"
	"github.com/Melos47/Urban-Legends-Forum/internal/store"
	"github.com/Melos47/Urban-Legends-Forum/internal/types"
)

// Store is the persistence surface the engine needs. *store.Store
// satisfies it; tests may wrap it to inject failures.
type Store interface {
	CreateStory(story *types.Story, trigger string) error
	UpdateStoryState(storyID string, from, to types.StoryState, trigger string, at time.Time) error
	GetStory(id string) (*types.Story, error)
	RecentStories(n int) ([]types.Story, error)
	CountNonTerminal() (int, error)
	ListByStates(states ...types.StoryState) ([]types.Story, error)
	LatestActivity(storyID string) (time.Time, error)
	CreateComment(c *types.Comment) error
	UserCommentCount(storyID string) (int, error)
	RecentComments(storyID string, n int) ([]types.Comment, error)
	CreateEvidence(e *types.Evidence) error
	ClaimEpisode(storyID string, threshold int, now time.Time, ttl time.Duration) (bool, error)
	CompleteEpisode(storyID string, threshold int) error
	ReleaseEpisode(storyID string, threshold int) error
	CreateNotification(n *types.Notification) error
	CommentAuthors(storyID string) ([]string, error)
}

// Engine drives story admission, aging and evidence generation.
type Engine struct {
	cfg     *config.Config
	store   Store
	gen     generator.Generator
	filter  *similarity.Filter
	machine *lifecycle.Machine
	now     func() time.Time

	// group collapses overlapping ticks into one execution.
	group singleflight.Group

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates an Engine. seed drives evidence synthesis seeds and ULID
// entropy; pass a fixed value for reproducible runs.
func New(cfg *config.Config, st Store, gen generator.Generator, seed int64) *Engine {
	return &Engine{
		cfg:   cfg,
		store: st,
		gen:   gen,
		filter: similarity.New(
			cfg.Engine.MaxPerCategory,
			cfg.Engine.TitleThreshold,
			cfg.Engine.PrefixThreshold,
		),
		machine: lifecycle.New(lifecycle.Thresholds{
			Inactivity: cfg.InactivityWindow(),
			MaxAge:     cfg.MaxStoryAge(),
		}),
		now: time.Now,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Tick runs one scheduler tick: lifecycle sweep first, then story
// admission. Overlapping invocations collapse into a single run.
func (e *Engine) Tick(ctx context.Context) error {
	_, err, _ := e.group.Do("tick", func() (any, error) {
		e.sweep(ctx)
		return nil, e.admit(ctx)
	})
	return err
}

// admit enforces the active-story cap and, when under it, requests one
// candidate from the generator, gated by the similarity filter.
func (e *Engine) admit(ctx context.Context) error {
	count, err := e.store.CountNonTerminal()
	if err != nil {
		return fmt.Errorf("count non-terminal stories: %w", err)
	}
	if count >= e.cfg.Engine.MaxActiveStories {
		log.Printf("[engine] %d active stories at cap %d - skipping creation this tick",
			count, e.cfg.Engine.MaxActiveStories)
		return nil
	}

	attempts := e.cfg.Engine.AdmissionRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		genCtx, cancel := context.WithTimeout(ctx, e.cfg.GeneratorTimeout())
		candidate, err := e.gen.GenerateNarrative(genCtx, generator.Constraints{})
		cancel()
		if err != nil {
			// Recoverable: skip this tick, the next one retries.
			log.Printf("[engine] narrative generation failed: %v", err)
			return nil
		}

		recent, err := e.store.RecentStories(e.cfg.Engine.SimilarityWindow)
		if err != nil {
			// Similarity checking is advisory; degrade to an empty window.
			log.Printf("[engine] recent-story read failed, accepting without history: %v", err)
			recent = nil
		}

		ok, reason := e.filter.Accept(*candidate, recent)
		if !ok {
			log.Printf("[engine] candidate rejected (attempt %d/%d): %s", attempt, attempts, reason)
			continue
		}

		return e.createStory(candidate)
	}

	log.Printf("[engine] all candidates rejected this tick")
	return nil
}

// createStory persists an accepted candidate in seed state and promotes
// it to active.
func (e *Engine) createStory(candidate *types.Candidate) error {
	now := e.now()
	story := &types.Story{
		ID:        e.newID(now),
		Title:     candidate.Title,
		Content:   candidate.Content,
		Category:  candidate.Category,
		Location:  candidate.Location,
		Persona:   candidate.Persona,
		State:     types.StateSeed,
		CreatedAt: now,
	}

	if err := e.store.CreateStory(story, "generated"); err != nil {
		return fmt.Errorf("create story: %w", err)
	}

	if err := e.transition(story, types.StateActive, lifecycle.TriggerAdmitted); err != nil {
		return err
	}

	log.Printf("[engine] admitted story %s (%s): %s", story.ID, story.Category, story.Title)
	return nil
}

// sweep applies time-derived lifecycle transitions and finishes any
// concluding stories. Failures affect single stories only.
func (e *Engine) sweep(ctx context.Context) {
	now := e.now()

	stories, err := e.store.ListByStates(types.StateActive, types.StateDormant)
	if err != nil {
		log.Printf("[engine] lifecycle sweep skipped: %v", err)
		return
	}

	for i := range stories {
		story := &stories[i]
		lastActivity, err := e.store.LatestActivity(story.ID)
		if err != nil {
			log.Printf("[engine] activity read failed for %s: %v", story.ID, err)
			continue
		}

		next, trigger, due := e.machine.Evaluate(story, lastActivity, now)
		if !due {
			continue
		}
		if err := e.transition(story, next, trigger); err != nil {
			log.Printf("[engine] transition %s -> %s failed for %s: %v", story.State, next, story.ID, err)
		}
	}

	concluding, err := e.store.ListByStates(types.StateConcluding)
	if err != nil {
		log.Printf("[engine] concluding sweep skipped: %v", err)
		return
	}
	for i := range concluding {
		e.finalize(ctx, &concluding[i])
	}
}

// finalize emits the terminal narration for a concluding story and
// archives it.
func (e *Engine) finalize(ctx context.Context, story *types.Story) {
	narration := e.terminalNarration(ctx, story)

	comment := &types.Comment{
		StoryID:   story.ID,
		Author:    story.Persona,
		IsAI:      true,
		Content:   narration,
		CreatedAt: e.now(),
	}
	if err := e.store.CreateComment(comment); err != nil {
		// Without the narration the story is not archived; retried next tick.
		log.Printf("[engine] terminal narration write failed for %s: %v", story.ID, err)
		return
	}

	if err := e.transition(story, types.StateArchived, lifecycle.TriggerSystemArchive); err != nil {
		log.Printf("[engine] archive failed for %s: %v", story.ID, err)
		return
	}
	log.Printf("[engine] story %s archived", story.ID)
}

// terminalNarration asks the generator for a closing update and falls
// back to a canned one when it is unreachable.
func (e *Engine) terminalNarration(ctx context.Context, story *types.Story) string {
	prompt := &types.Comment{
		StoryID: story.ID,
		Content: "这个故事要结束了。作为讲述者，请写下你的最后一次更新，交代结局但保留悬念。",
	}

	genCtx, cancel := context.WithTimeout(ctx, e.cfg.GeneratorTimeout())
	defer cancel()

	reply, err := e.gen.GenerateReply(genCtx, story, prompt)
	if err != nil {
		log.Printf("[engine] terminal narration generation failed for %s: %v", story.ID, err)
		e.mu.Lock()
		idx := e.rng.Intn(len(closingLines))
		e.mu.Unlock()
		return closingLines[idx]
	}
	return reply + "【完】"
}

// closingLines are canned terminal narrations; each carries a final
// marker so the history reads consistently.
var closingLines = []string{
	"【最终更新】事情到这里就结束了。我不会再回到那个地方，也劝大家不要去。谢谢所有关注过这个帖子的人。【完】",
	"【最终更新】我决定停止调查。有些真相不属于我们。这是我最后一次更新。【完】",
	"【最终更新】一切恢复了平静，就好像什么都没发生过。也许这样最好。【完】",
}

// transition validates a state change against the lifecycle graph, then
// applies it to the store with a compare-and-swap on the previous state.
func (e *Engine) transition(story *types.Story, to types.StoryState, trigger string) error {
	from := story.State
	now := e.now()

	if err := e.machine.Transition(story, to, trigger, now); err != nil {
		return err
	}
	if err := e.store.UpdateStoryState(story.ID, from, to, trigger, now); err != nil {
		// Roll the in-memory copy back so the caller sees the truth.
		story.State = from
		story.StateHistory = story.StateHistory[:len(story.StateHistory)-1]
		return err
	}
	log.Printf("[engine] story %s: %s -> %s (%s)", story.ID, from, to, trigger)
	return nil
}

// IsRecoverable reports whether an engine error is one the scheduler
// should simply retry on a later tick.
func IsRecoverable(err error) bool {
	return errors.Is(err, generator.ErrUnavailable) ||
		errors.Is(err, generator.ErrTimeout) ||
		errors.Is(err, store.ErrUnavailable) ||
		errors.Is(err, store.ErrStateConflict)
}

// newID mints a ULID from the engine clock and random source.
func (e *Engine) newID(now time.Time) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), e.rng).String()
}

// seed mints an evidence synthesis seed.
func (e *Engine) seed() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Int63()
}
