package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Melos47/Urban-Legends-Forum/internal/classify"
	"github.com/Melos47/Urban-Legends-Forum/internal/generator/providers"
	"github.com/Melos47/Urban-Legends-Forum/internal/lifecycle"
	"github.com/Melos47/Urban-Legends-Forum/internal/synth"
	"github.com/Melos47/Urban-Legends-Forum/internal/types"
)

// commentContextSize is how many recent comments feed classification.
const commentContextSize = 6

// OnComment handles a newly appended user comment: the narrator replies,
// notifications fan out, a final-update reply concludes the story, and
// the evidence trigger policy is evaluated. AI comments are ignored so
// the narrator never replies to itself.
func (e *Engine) OnComment(ctx context.Context, comment *types.Comment) error {
	if comment.IsAI {
		return nil
	}

	story, err := e.store.GetStory(comment.StoryID)
	if err != nil {
		return fmt.Errorf("load story for comment: %w", err)
	}
	if story.State != types.StateActive {
		log.Printf("[engine] story %s is %s - comment does not drive the engine", story.ID, story.State)
		return nil
	}

	reply := e.reply(ctx, story, comment)

	aiComment := &types.Comment{
		StoryID:   story.ID,
		ParentID:  &comment.ID,
		Author:    story.Persona,
		IsAI:      true,
		Content:   reply,
		CreatedAt: e.now(),
	}
	if err := e.store.CreateComment(aiComment); err != nil {
		log.Printf("[engine] narrator reply write failed for %s: %v", story.ID, err)
	} else {
		e.notify(story, comment.Author, "楼主回复了你的评论")
		if lifecycle.IsFinalUpdate(reply) {
			if err := e.transition(story, types.StateConcluding, lifecycle.TriggerFinalUpdate); err != nil {
				log.Printf("[engine] conclude on final update failed for %s: %v", story.ID, err)
			}
		}
	}

	return e.maybeGenerateEvidence(ctx, story)
}

// reply asks the generator for the narrator's reply, falling back to a
// canned one so threads keep moving while the provider is down.
func (e *Engine) reply(ctx context.Context, story *types.Story, comment *types.Comment) string {
	genCtx, cancel := context.WithTimeout(ctx, e.cfg.GeneratorTimeout())
	defer cancel()

	reply, err := e.gen.GenerateReply(genCtx, story, comment)
	if err != nil {
		log.Printf("[engine] reply generation failed for %s, using fallback: %v", story.ID, err)
		e.mu.Lock()
		defer e.mu.Unlock()
		return providers.FallbackReply(e.rng)
	}
	return reply
}

// maybeGenerateEvidence evaluates the evidence trigger policy: fire when
// the user-comment count crosses a multiple of the configured step and
// that exact threshold has not fired before. Exclusivity comes from the
// episode claim, so concurrent evaluations of the same threshold yield
// one generation.
func (e *Engine) maybeGenerateEvidence(ctx context.Context, story *types.Story) error {
	count, err := e.store.UserCommentCount(story.ID)
	if err != nil {
		return fmt.Errorf("count user comments: %w", err)
	}

	step := e.cfg.Engine.EvidenceStep
	if count < step || count%step != 0 {
		return nil
	}

	claimed, err := e.store.ClaimEpisode(story.ID, count, e.now(), e.cfg.EpisodeLease())
	if err != nil {
		return fmt.Errorf("claim evidence episode: %w", err)
	}
	if !claimed {
		log.Printf("[engine] evidence episode (%s, %d) already claimed or completed", story.ID, count)
		return nil
	}

	return e.generateEvidence(ctx, story, count)
}

// generateEvidence runs one evidence episode: classify the story text,
// then produce audio and image evidence in parallel. The claim is
// completed when at least one artifact lands and released otherwise so a
// later evaluation can retry.
func (e *Engine) generateEvidence(ctx context.Context, story *types.Story, threshold int) error {
	text := e.classificationText(story)
	synthType, intensity := classify.Classify(text)
	seed := e.seed()

	log.Printf("[engine] evidence episode (%s, %d): type=%s intensity=%.2f seed=%d",
		story.ID, threshold, synthType, intensity, seed)

	created := make(chan types.EvidenceKind, 2)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := e.audioEvidence(story, threshold, synthType, intensity, seed); err != nil {
			log.Printf("[engine] audio evidence failed for %s: %v", story.ID, err)
			return nil // image may still succeed
		}
		created <- types.EvidenceAudio
		return nil
	})

	g.Go(func() error {
		if err := e.imageEvidence(gctx, story, threshold, synthType, intensity, seed, text); err != nil {
			log.Printf("[engine] image evidence failed for %s: %v", story.ID, err)
			return nil
		}
		created <- types.EvidenceImage
		return nil
	})

	g.Wait()
	close(created)

	kinds := make([]string, 0, 2)
	for kind := range created {
		kinds = append(kinds, string(kind))
	}

	if len(kinds) == 0 {
		if err := e.store.ReleaseEpisode(story.ID, threshold); err != nil {
			log.Printf("[engine] episode release failed for (%s, %d): %v", story.ID, threshold, err)
		}
		return fmt.Errorf("evidence episode (%s, %d) produced nothing", story.ID, threshold)
	}

	if err := e.store.CompleteEpisode(story.ID, threshold); err != nil {
		return fmt.Errorf("complete evidence episode: %w", err)
	}

	e.notifyThread(story, fmt.Sprintf("新的证据出现在故事《%s》", story.Title))
	log.Printf("[engine] evidence episode (%s, %d) complete: %s", story.ID, threshold, strings.Join(kinds, ", "))
	return nil
}

// audioEvidence renders the procedural waveform to a WAV file under the
// media dir and records the evidence row.
func (e *Engine) audioEvidence(story *types.Story, threshold int, synthType classify.SynthesisType, intensity float64, seed int64) error {
	waveform := synth.Synthesize(synthType, intensity, seed)
	data := synth.RenderWAV(waveform)

	if err := os.MkdirAll(e.cfg.Storage.MediaDir, 0700); err != nil {
		return err
	}
	filename := fmt.Sprintf("audio_%s.wav", uuid.NewString())
	if err := os.WriteFile(filepath.Join(e.cfg.Storage.MediaDir, filename), data, 0600); err != nil {
		return err
	}

	return e.store.CreateEvidence(&types.Evidence{
		StoryID:       story.ID,
		Kind:          types.EvidenceAudio,
		Path:          "/generated/" + filename,
		SynthesisType: string(synthType),
		Intensity:     intensity,
		Seed:          seed,
		Threshold:     threshold,
		CreatedAt:     e.now(),
	})
}

// imageEvidence asks the generator for a content-grounded image and
// records the evidence row pointing at the returned locator.
func (e *Engine) imageEvidence(ctx context.Context, story *types.Story, threshold int, synthType classify.SynthesisType, intensity float64, seed int64, text string) error {
	spec := synth.ComposeScene(synthType, intensity, text)

	genCtx, cancel := context.WithTimeout(ctx, e.cfg.GeneratorTimeout())
	defer cancel()

	locator, err := e.gen.GenerateImage(genCtx, spec)
	if err != nil {
		return err
	}

	return e.store.CreateEvidence(&types.Evidence{
		StoryID:       story.ID,
		Kind:          types.EvidenceImage,
		Path:          locator,
		SynthesisType: string(synthType),
		Intensity:     intensity,
		Seed:          seed,
		Threshold:     threshold,
		CreatedAt:     e.now(),
	})
}

// ForceEvidence runs an evidence episode for a story outside the normal
// trigger, still honoring the exactly-once claim for the current
// comment count. Used by the maintenance CLI.
func (e *Engine) ForceEvidence(ctx context.Context, storyID string) error {
	story, err := e.store.GetStory(storyID)
	if err != nil {
		return err
	}
	if story.State.IsTerminal() {
		return fmt.Errorf("story %s is archived", storyID)
	}

	count, err := e.store.UserCommentCount(storyID)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("story %s has no user comments to ground evidence in", storyID)
	}

	claimed, err := e.store.ClaimEpisode(storyID, count, e.now(), e.cfg.EpisodeLease())
	if err != nil {
		return err
	}
	if !claimed {
		return fmt.Errorf("evidence episode (%s, %d) already claimed or completed", storyID, count)
	}

	return e.generateEvidence(ctx, story, count)
}

// classificationText concatenates story content with recent comment
// context so evidence reflects the thread, not just the opening post.
func (e *Engine) classificationText(story *types.Story) string {
	var sb strings.Builder
	sb.WriteString(story.Content)

	comments, err := e.store.RecentComments(story.ID, commentContextSize)
	if err != nil {
		// Evidence still grounds in the story body alone.
		log.Printf("[engine] comment context read failed for %s: %v", story.ID, err)
		return sb.String()
	}
	for _, c := range comments {
		sb.WriteString("\n")
		sb.WriteString(c.Content)
	}
	return sb.String()
}

// notify records a notification for one user.
func (e *Engine) notify(story *types.Story, userID, content string) {
	if userID == "" {
		return
	}
	n := &types.Notification{
		UserID:    userID,
		StoryID:   story.ID,
		Content:   content,
		CreatedAt: e.now(),
	}
	if err := e.store.CreateNotification(n); err != nil {
		log.Printf("[engine] notification write failed for %s: %v", userID, err)
	}
}

// notifyThread notifies every user who commented on the story.
func (e *Engine) notifyThread(story *types.Story, content string) {
	authors, err := e.store.CommentAuthors(story.ID)
	if err != nil {
		log.Printf("[engine] thread notification skipped for %s: %v", story.ID, err)
		return
	}
	for _, author := range authors {
		e.notify(story, author, content)
	}
}
