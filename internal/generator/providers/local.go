package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Melos47/Urban-Legends-Forum/internal/generator"
	"github.com/Melos47/Urban-Legends-Forum/internal/types"
)

// LocalProvider talks to an OpenAI-compatible server (LM Studio, or the
// real OpenAI API) over plain HTTP.
type LocalProvider struct {
	baseURL  string
	apiKey   string
	model    string
	mediaDir string
	client   *http.Client

	mu  sync.Mutex
	rng *rand.Rand
}

// NewLocalProvider creates a provider against an OpenAI-compatible base
// URL. mediaDir is where generated images are saved; seed drives
// category/location/persona selection.
func NewLocalProvider(baseURL, apiKey, model, mediaDir string, seed int64) *LocalProvider {
	return &LocalProvider{
		baseURL:  baseURL,
		apiKey:   apiKey,
		model:    model,
		mediaDir: mediaDir,
		client: &http.Client{
			Timeout: 120 * time.Second, // LLM calls can be slow
		},
		rng: rand.New(rand.NewSource(seed)),
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// GenerateNarrative produces a candidate story in two steps, content
// first and then a title for it.
func (p *LocalProvider) GenerateNarrative(ctx context.Context, constraints generator.Constraints) (*types.Candidate, error) {
	p.mu.Lock()
	category, location, persona := pickConstraints(p.rng, constraints.Category, constraints.Location)
	p.mu.Unlock()

	content, err := p.chat(ctx, narratorSystemPrompt, buildStoryPrompt(category, location, persona), 0.9, 800)
	if err != nil {
		return nil, fmt.Errorf("generate story content: %w", err)
	}

	title, err := p.chat(ctx, "", buildTitlePrompt(content), 0.7, 30)
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
func (p *LocalProvider) GenerateReply(ctx context.Context, story *types.Story, comment *types.Comment) (string, error) {
	reply, err := p.chat(ctx, "", buildReplyPrompt(story, comment), 0.8, 200)
	if err != nil {
		return "", err
	}
	return ReplyPrefix + reply, nil
}

type imageRequest struct {
	Model          string `json:"model,omitempty"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// GenerateImage renders an evidence image via the images endpoint and
// saves it under the media dir, returning its locator.
func (p *LocalProvider) GenerateImage(ctx context.Context, spec types.PromptSpec) (string, error) {
	req := imageRequest{
		Prompt:         buildImagePrompt(spec),
		N:              1,
		Size:           "1024x1024",
		ResponseFormat: "b64_json",
	}

	var resp imageResponse
	if err := p.post(ctx, "/images/generations", req, &resp); err != nil {
		return "", fmt.Errorf("generate image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", fmt.Errorf("generate image: %w: empty response", generator.ErrUnavailable)
	}

	raw, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	if err := os.MkdirAll(p.mediaDir, 0700); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("evidence_%s.png", uuid.NewString())
	if err := os.WriteFile(filepath.Join(p.mediaDir, filename), raw, 0600); err != nil {
		return "", err
	}

	return "/generated/" + filename, nil
}

// chat performs a chat completion and returns the first choice's text.
func (p *LocalProvider) chat(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	var messages []chatMessage
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	req := chatRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	var resp chatResponse
	if err := p.post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", generator.ErrUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// post sends a JSON request and decodes the JSON response, mapping
// transport failures to the generator sentinels.
func (p *LocalProvider) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return fmt.Errorf("%w: %v", generator.ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", generator.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", generator.ErrUnavailable, resp.StatusCode, raw)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
