// Package generator defines the external narrative generator consumed by
// the engine. Implementations live in the providers subpackage.
package generator

import (
	"context"
	"errors"

	"github.com/Melos47/Urban-Legends-Forum/internal/types"
)

// Sentinel failures. Both are recoverable: callers skip the current tick
// or task and retry later.
var (
	ErrUnavailable = errors.New("generator unavailable")
	ErrTimeout     = errors.New("generator timeout")
)

// Constraints narrows what GenerateNarrative may produce.
type Constraints struct {
	Category types.Category // empty means provider's choice
	Location string         // empty means provider's choice
}

// Generator produces narrative content, replies and evidence imagery.
// Every method may block on the network; callers apply timeouts via ctx
// and must treat expiry as recoverable.
type Generator interface {
	// GenerateNarrative returns a fresh candidate story.
	GenerateNarrative(ctx context.Context, constraints Constraints) (*types.Candidate, error)

	// GenerateReply returns the narrator's reply to a user comment.
	GenerateReply(ctx context.Context, story *types.Story, comment *types.Comment) (string, error)

	// GenerateImage produces an evidence image for the prompt spec and
	// returns a storage locator for the resulting blob.
	GenerateImage(ctx context.Context, spec types.PromptSpec) (string, error)
}
