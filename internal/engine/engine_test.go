package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Melos47/Urban-Legends-Forum/internal/config"
	"github.com/Melos47/Urban-Legends-Forum/internal/generator"
	"github.com/Melos47/Urban-Legends-Forum/internal/lifecycle"
	"github.com/Melos47/Urban-Legends-Forum/internal/store"
	"github.com/Melos47/Urban-Legends-Forum/internal/types"
)

type fakeGenerator struct {
	mu             sync.Mutex
	candidate      *types.Candidate
	narrativeErr   error
	reply          string
	replyErr       error
	imageLocator   string
	imageErr       error
	narrativeCalls int
}

func (f *fakeGenerator) GenerateNarrative(ctx context.Context, _ generator.Constraints) (*types.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.narrativeCalls++
	if f.narrativeErr != nil {
		return nil, f.narrativeErr
	}
	c := *f.candidate
	return &c, nil
}

func (f *fakeGenerator) GenerateReply(ctx context.Context, _ *types.Story, _ *types.Comment) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replyErr != nil {
		return "", f.replyErr
	}
	return f.reply, nil
}

func (f *fakeGenerator) GenerateImage(ctx context.Context, _ types.PromptSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.imageErr != nil {
		return "", f.imageErr
	}
	return f.imageLocator, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.MediaDir = t.TempDir()
	cfg.Generator.TimeoutSeconds = 5
	return cfg
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func defaultCandidate() *types.Candidate {
	return &types.Candidate{
		Title:    "深夜港铁的最后一班车",
		Content:  "那天晚上我错过了尾班车，站台上只剩下我一个人，然后我听到了敲击声...",
		Category: types.CategorySubwayGhost,
		Location: "旺角金鱼街",
		Persona:  "👁️ 深夜目击者",
	}
}

func activeStory(t *testing.T, st *store.Store, e *Engine, id string, category types.Category) *types.Story {
	t.Helper()
	now := e.now()
	story := &types.Story{
		ID:        id,
		Title:     "existing " + id,
		Content:   "existing content " + id,
		Category:  category,
		Location:  "重庆大厦",
		Persona:   "🔍 都市调查员",
		State:     types.StateSeed,
		CreatedAt: now,
	}
	require.NoError(t, st.CreateStory(story, "generated"))
	require.NoError(t, st.UpdateStoryState(id, types.StateSeed, types.StateActive, lifecycle.TriggerAdmitted, now))
	story.State = types.StateActive
	return story
}

func addUserComment(t *testing.T, st *store.Store, e *Engine, storyID, author, content string) {
	t.Helper()
	c := &types.Comment{
		StoryID:   storyID,
		Author:    author,
		Content:   content,
		CreatedAt: e.now(),
	}
	require.NoError(t, st.CreateComment(c))
	require.NoError(t, e.OnComment(context.Background(), c))
}

func TestTickAdmitsStory(t *testing.T) {
	st := testStore(t)
	gen := &fakeGenerator{candidate: defaultCandidate()}
	e := New(testConfig(t), st, gen, 1)

	require.NoError(t, e.Tick(context.Background()))

	recent, err := st.RecentStories(10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, types.StateActive, recent[0].State)
	assert.Equal(t, types.CategorySubwayGhost, recent[0].Category)

	// Full audit path: seed then active.
	history, err := st.StateHistory(recent[0].ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, types.StateSeed, history[0].State)
	assert.Equal(t, types.StateActive, history[1].State)
	assert.Equal(t, lifecycle.TriggerAdmitted, history[1].Trigger)
}

func TestTickRespectsCap(t *testing.T) {
	st := testStore(t)
	gen := &fakeGenerator{candidate: defaultCandidate()}
	cfg := testConfig(t)
	cfg.Engine.MaxActiveStories = 1
	e := New(cfg, st, gen, 1)

	activeStory(t, st, e, "EXISTING", types.CategoryCursedObject)

	require.NoError(t, e.Tick(context.Background()))

	// No new story even though the generator would have succeeded.
	count, err := st.CountNonTerminal()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Zero(t, gen.narrativeCalls, "generator must not be called at the cap")
}

func TestTickGeneratorDownIsRecoverable(t *testing.T) {
	st := testStore(t)
	gen := &fakeGenerator{narrativeErr: fmt.Errorf("boom: %w", generator.ErrUnavailable)}
	e := New(testConfig(t), st, gen, 1)

	// The tick neither errors nor creates anything.
	require.NoError(t, e.Tick(context.Background()))

	count, err := st.CountNonTerminal()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTickSimilarityRejection(t *testing.T) {
	st := testStore(t)
	gen := &fakeGenerator{candidate: defaultCandidate()}
	cfg := testConfig(t)
	cfg.Engine.AdmissionRetries = 1
	e := New(cfg, st, gen, 1)

	// Fill the window with three stories of the candidate's category.
	for i := 0; i < 3; i++ {
		activeStory(t, st, e, fmt.Sprintf("S%d", i), types.CategorySubwayGhost)
	}

	require.NoError(t, e.Tick(context.Background()))

	count, err := st.CountNonTerminal()
	require.NoError(t, err)
	assert.Equal(t, 3, count, "category quota must block admission")
	assert.Equal(t, 2, gen.narrativeCalls, "one retry within the tick")
}

func TestEvidenceTriggerThresholds(t *testing.T) {
	st := testStore(t)
	gen := &fakeGenerator{
		candidate:    defaultCandidate(),
		reply:        "【楼主回复】我昨晚又听到了同样的声音。",
		imageLocator: "/generated/evidence_test.png",
	}
	e := New(testConfig(t), st, gen, 7)

	story := activeStory(t, st, e, "EV", types.CategorySubwayGhost)

	// Zero comments: nothing fires.
	evidence, err := st.EvidenceByStory(story.ID)
	require.NoError(t, err)
	assert.Empty(t, evidence)

	// First comment: below threshold.
	addUserComment(t, st, e, story.ID, "alice", "太可怕了，后来呢？")
	evidence, err = st.EvidenceByStory(story.ID)
	require.NoError(t, err)
	assert.Empty(t, evidence)

	// Second comment: threshold 2 fires exactly once (audio + image).
	addUserComment(t, st, e, story.ID, "bob", "我也在那个站听过敲击声")
	evidence, err = st.EvidenceByStory(story.ID)
	require.NoError(t, err)
	require.Len(t, evidence, 2)
	for _, ev := range evidence {
		assert.Equal(t, 2, ev.Threshold)
		assert.NotEmpty(t, ev.SynthesisType)
	}

	// Third comment: odd count, no new episode.
	addUserComment(t, st, e, story.ID, "carol", "有照片吗？")
	evidence, err = st.EvidenceByStory(story.ID)
	require.NoError(t, err)
	assert.Len(t, evidence, 2)

	// Fourth comment: a second, distinct episode at threshold 4.
	addUserComment(t, st, e, story.ID, "dave", "昨晚我去看了，站台灯一直在闪")
	evidence, err = st.EvidenceByStory(story.ID)
	require.NoError(t, err)
	require.Len(t, evidence, 4)
	thresholds := map[int]int{}
	for _, ev := range evidence {
		thresholds[ev.Threshold]++
	}
	assert.Equal(t, map[int]int{2: 2, 4: 2}, thresholds)
}

func TestEvidenceAudioOnlyWhenImageFails(t *testing.T) {
	st := testStore(t)
	gen := &fakeGenerator{
		candidate: defaultCandidate(),
		reply:     "【楼主回复】先别过来，这里不对劲。",
		imageErr:  fmt.Errorf("no image backend: %w", generator.ErrUnavailable),
	}
	e := New(testConfig(t), st, gen, 7)

	story := activeStory(t, st, e, "AUD", types.CategoryHauntedElectronics)
	addUserComment(t, st, e, story.ID, "alice", "电视里的雜訊有规律吗？")
	addUserComment(t, st, e, story.ID, "bob", "把声音录下来！")

	evidence, err := st.EvidenceByStory(story.ID)
	require.NoError(t, err)
	require.Len(t, evidence, 1)
	assert.Equal(t, types.EvidenceAudio, evidence[0].Kind)

	// The episode still completed; threshold 2 never fires again.
	done, err := st.EpisodeCompleted(story.ID, 2)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestConcurrentEvidenceExactlyOnce(t *testing.T) {
	st := testStore(t)
	gen := &fakeGenerator{
		candidate:    defaultCandidate(),
		reply:        "【楼主回复】收到。",
		imageLocator: "/generated/evidence_x.png",
	}
	e := New(testConfig(t), st, gen, 7)

	story := activeStory(t, st, e, "CONC", types.CategoryShadowFigure)
	for i, author := range []string{"alice", "bob"} {
		c := &types.Comment{
			StoryID:   story.ID,
			Author:    author,
			Content:   fmt.Sprintf("comment %d", i),
			CreatedAt: e.now(),
		}
		require.NoError(t, st.CreateComment(c))
	}

	// Two concurrent evaluations of the same threshold.
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.maybeGenerateEvidence(context.Background(), story)
		}(i)
	}
	wg.Wait()

	for _, err := range results {
		assert.NoError(t, err)
	}

	evidence, err := st.EvidenceByStory(story.ID)
	require.NoError(t, err)
	counts := map[types.EvidenceKind]int{}
	for _, ev := range evidence {
		counts[ev.Kind]++
	}
	assert.LessOrEqual(t, counts[types.EvidenceAudio], 1, "audio at most once")
	assert.LessOrEqual(t, counts[types.EvidenceImage], 1, "image at most once")
	require.NotEmpty(t, evidence, "exactly one episode must have run")
}

func TestReplyFallbackWhenGeneratorDown(t *testing.T) {
	st := testStore(t)
	gen := &fakeGenerator{
		candidate: defaultCandidate(),
		replyErr:  fmt.Errorf("down: %w", generator.ErrUnavailable),
		imageErr:  fmt.Errorf("down: %w", generator.ErrUnavailable),
	}
	e := New(testConfig(t), st, gen, 7)

	story := activeStory(t, st, e, "FB", types.CategoryTimeAnomaly)
	addUserComment(t, st, e, story.ID, "alice", "时间跳跃持续多久？")

	comments, err := st.RecentComments(story.ID, 10)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.True(t, comments[1].IsAI)
	assert.Contains(t, comments[1].Content, "【楼主回复】", "fallback reply keeps the thread moving")

	// The commenter was notified about the reply.
	unread, err := st.UnreadNotifications("alice")
	require.NoError(t, err)
	assert.NotEmpty(t, unread)
}

func TestFinalUpdateConcludesAndArchives(t *testing.T) {
	st := testStore(t)
	gen := &fakeGenerator{
		candidate:    defaultCandidate(),
		reply:        "【楼主回复】这是我最后一次更新，谢谢大家。【完】",
		imageLocator: "/generated/e.png",
	}
	cfg := testConfig(t)
	cfg.Engine.MaxActiveStories = 1 // keep the sweep tick from admitting
	e := New(cfg, st, gen, 7)

	story := activeStory(t, st, e, "FIN", types.CategoryMissingPerson)
	addUserComment(t, st, e, story.ID, "alice", "你还好吗？")

	got, err := st.GetStory(story.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateConcluding, got.State)

	// Next tick finalizes: terminal narration plus archive.
	require.NoError(t, e.Tick(context.Background()))

	got, err = st.GetStory(story.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateArchived, got.State)

	last := got.StateHistory[len(got.StateHistory)-1]
	assert.Equal(t, lifecycle.TriggerSystemArchive, last.Trigger)

	comments, err := st.RecentComments(story.ID, 10)
	require.NoError(t, err)
	final := comments[len(comments)-1]
	assert.True(t, final.IsAI)
	assert.True(t, lifecycle.IsFinalUpdate(final.Content))
}

func TestSweepDormancyAndAging(t *testing.T) {
	st := testStore(t)
	gen := &fakeGenerator{candidate: defaultCandidate(), reply: "【楼主回复】……"}
	cfg := testConfig(t)
	cfg.Engine.MaxActiveStories = 1
	e := New(cfg, st, gen, 7)

	story := activeStory(t, st, e, "OLD", types.CategoryAbandonedBuilding)

	// Jump the engine clock past the inactivity window.
	base := story.CreatedAt
	e.now = func() time.Time { return base.Add(cfg.InactivityWindow() + time.Hour) }

	require.NoError(t, e.Tick(context.Background()))
	got, err := st.GetStory(story.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateDormant, got.State)

	// Past max age the dormant story concludes, then archives on the
	// same sweep pass.
	e.now = func() time.Time { return base.Add(cfg.MaxStoryAge() + time.Hour) }
	require.NoError(t, e.Tick(context.Background()))

	got, err = st.GetStory(story.ID)
	require.NoError(t, err)
	assert.Contains(t, []types.StoryState{types.StateConcluding, types.StateArchived}, got.State)

	// One more tick settles it in archived.
	require.NoError(t, e.Tick(context.Background()))
	got, err = st.GetStory(story.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateArchived, got.State)
}

func TestCommentOnArchivedStoryIsIgnored(t *testing.T) {
	st := testStore(t)
	gen := &fakeGenerator{candidate: defaultCandidate(), reply: "【楼主回复】？"}
	e := New(testConfig(t), st, gen, 7)

	story := activeStory(t, st, e, "ARCH", types.CategoryCursedObject)
	now := e.now()
	require.NoError(t, st.UpdateStoryState(story.ID, types.StateActive, types.StateConcluding, lifecycle.TriggerMaxAge, now))
	require.NoError(t, st.UpdateStoryState(story.ID, types.StateConcluding, types.StateArchived, lifecycle.TriggerSystemArchive, now))

	c := &types.Comment{StoryID: story.ID, Author: "alice", Content: "hello?", CreatedAt: now}
	require.NoError(t, st.CreateComment(c))
	require.NoError(t, e.OnComment(context.Background(), c))

	// No reply, no evidence.
	comments, err := st.RecentComments(story.ID, 10)
	require.NoError(t, err)
	assert.Len(t, comments, 1)

	evidence, err := st.EvidenceByStory(story.ID)
	require.NoError(t, err)
	assert.Empty(t, evidence)
}
