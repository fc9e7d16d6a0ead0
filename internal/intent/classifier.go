package intent

import (
	"context"
	"fmt"
	"time"

	"github.com/kalambet/bookwise/internal/ollama"
)

const defaultClassifyTimeout = 10 * time.Second

// Chatter is the interface for chat completion against the local model.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []ollama.Message) (string, error)
}

// Classifier maps an utterance to an intent label via a single model call.
type Classifier struct {
	client  Chatter
	model   string
	timeout time.Duration
}

// NewClassifier creates a Classifier using the given client and model name.
// timeout <= 0 selects the default.
func NewClassifier(client Chatter, model string, timeout time.Duration) *Classifier {
	if timeout <= 0 {
		timeout = defaultClassifyTimeout
	}
	return &Classifier{client: client, model: model, timeout: timeout}
}

// Classify returns the label for the utterance. The label is the normalized
// first token of the model response and may lie outside the intent
// enumeration; callers map it with FromLabel. Model failures are returned as
// errors for the orchestrator to convert into a user-visible message.
func (c *Classifier) Classify(ctx context.Context, utterance string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.Chat(ctx, c.model, BuildPrompt(utterance))
	if err != nil {
		return "", fmt.Errorf("classifying intent: %w", err)
	}
	return ParseLabel(raw), nil
}
