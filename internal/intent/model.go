package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/agenttwo/internal/ollama"
)

const modelGuessTimeout = 3 * time.Second

// Chatter is the chat completion call ModelRule needs.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []ollama.Message, jsonSchema *ollama.Schema) (string, error)
}

// ModelRule asks a small local model to pick an intent when the cheap rules
// found nothing. Any failure counts as no match so classification never
// blocks on the model.
type ModelRule struct {
	client  Chatter
	model   string
	window  int
	timeout time.Duration
}

// NewModelRule creates a ModelRule using the given client and model name.
func NewModelRule(client Chatter, model string) *ModelRule {
	return &ModelRule{client: client, model: model, window: 5, timeout: modelGuessTimeout}
}

func (*ModelRule) Method() string      { return MethodModel }
func (*ModelRule) Confidence() float64 { return 0.3 }

type modelGuess struct {
	Intent string `json:"intent"`
}

func (r *ModelRule) Match(ctx context.Context, message string, st State) (string, bool) {
	if strings.TrimSpace(message) == "" {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.client.Chat(ctx, r.model, BuildPrompt(message, st.RecentSuccessful(r.window)), guessSchema())
	if err != nil {
		slog.Warn("model intent guess failed", "model", r.model, "error", err)
		return "", false
	}

	var g modelGuess
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		slog.Warn("failed to unmarshal intent guess", "error", err, "response", raw)
		return "", false
	}
	if !IsKnown(g.Intent) {
		slog.Debug("model guessed no actionable intent", "intent", g.Intent)
		return "", false
	}
	return g.Intent, true
}

func guessSchema() *ollama.Schema {
	return &ollama.Schema{
		Type: "object",
		Properties: map[string]ollama.SchemaProperty{
			"intent": {Type: "string", Description: "One of the listed intent labels, or unknown"},
		},
		Required: []string{"intent"},
	}
}
