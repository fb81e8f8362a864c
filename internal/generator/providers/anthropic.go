package providers

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Melos47/Urban-Legends-Forum/internal/generator"
	"github.com/Melos47/Urban-Legends-Forum/internal/types"
)

// AnthropicProvider implements the Generator interface using Claude.
// Claude has no image endpoint, so GenerateImage reports unavailability
// and the engine degrades to audio-only evidence.
type AnthropicProvider struct {
	client *anthropic.Client
	model  string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, model string, seed int64) *AnthropicProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &AnthropicProvider{
		client: &client,
		model:  model,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// GenerateNarrative produces a candidate story, content first and then a
// title for it.
func (p *AnthropicProvider) GenerateNarrative(ctx context.Context, constraints generator.Constraints) (*types.Candidate, error) {
	p.mu.Lock()
	category, location, persona := pickConstraints(p.rng, constraints.Category, constraints.Location)
	p.mu.Unlock()

	content, err := p.message(ctx, buildStoryPrompt(category, location, persona), 800)
	if err != nil {
		return nil, fmt.Errorf("generate story content: %w", err)
	}

	title, err := p.message(ctx, buildTitlePrompt(content), 30)
	if err != nil {
		return nil, fmt.Errorf("generate story title: %w", err)
	}

	return &types.Candidate{
		Title:    cleanTitle(title),
		Content:  content,
		Category: category,
		Location: location,
		Persona:  fmt.Sprintf("%s %s", persona.Emoji, persona.Name),
	}, nil
}

// GenerateReply produces the narrator's reply to a user comment.
func (p *AnthropicProvider) GenerateReply(ctx context.Context, story *types.Story, comment *types.Comment) (string, error) {
	reply, err := p.message(ctx, buildReplyPrompt(story, comment), 200)
	if err != nil {
		return "", err
	}
	return ReplyPrefix + reply, nil
}

// GenerateImage is not supported by this provider.
func (p *AnthropicProvider) GenerateImage(ctx context.Context, spec types.PromptSpec) (string, error) {
	return "", fmt.Errorf("%w: anthropic provider has no image endpoint", generator.ErrUnavailable)
}

// message sends a single-turn prompt and returns the text response.
func (p *AnthropicProvider) message(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", generator.ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", generator.ErrUnavailable, err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("%w: empty response", generator.ErrUnavailable)
}
