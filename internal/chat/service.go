// Package chat runs one conversational turn against the local model:
// spelling fixes, model selection, memory-aware prompting and fallback to
// smaller models when the requested one does not fit in memory.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/agenttwo/internal/attempt"
	"github.com/kalambet/agenttwo/internal/memory"
	"github.com/kalambet/agenttwo/internal/ollama"
	"github.com/kalambet/agenttwo/internal/storage"
)

// ModelAuto asks the service to pick the fastest installed model.
const ModelAuto = "auto"

// DefaultTimeout bounds each model attempt when Config leaves it unset.
const DefaultTimeout = 30 * time.Second

// Generator is the subset of the Ollama client used for chat.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, opts *ollama.Options) (string, error)
	GenerateStream(ctx context.Context, model, prompt string, opts *ollama.Options, onChunk func(string) error) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

// Memory is the preferences and behavior store consulted and updated per turn.
type Memory interface {
	Preferences() memory.Preferences
	BuildContext() string
	TrackBehavior(action string, ev memory.Event) error
	AppendHistory(role, content, model string) error
}

// Transcript stores chat turns durably. Implemented by storage.Store.
type Transcript interface {
	SaveChatTurn(t storage.ChatTurn) error
}

// Config holds the chat settings.
type Config struct {
	FastModel string
	Timeout   time.Duration
}

// Service sends chat messages to Ollama.
type Service struct {
	gen        Generator
	mem        Memory
	transcript Transcript
	cfg        Config
}

// New creates a Service. transcript may be nil.
func New(gen Generator, mem Memory, transcript Transcript, cfg Config) *Service {
	if cfg.FastModel == "" {
		cfg.FastModel = DefaultFastModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Service{gen: gen, mem: mem, transcript: transcript, cfg: cfg}
}

// Request is one user message. Empty Model and SpeedMode fall back to the
// stored preferences. When OnChunk is set the reply is streamed through it.
type Request struct {
	Message   string
	Model     string
	SpeedMode string
	OnChunk   func(string) error
}

// Reply is the model's answer. Original and Corrected are set only when the
// spelling pass changed the message.
type Reply struct {
	Response     string        `json:"response"`
	Model        string        `json:"usedModel"`
	Requested    string        `json:"requestedModel"`
	UsedFallback bool          `json:"usedFallback"`
	Original     string        `json:"original,omitempty"`
	Corrected    string        `json:"corrected,omitempty"`
	DurationMS   int64         `json:"durationMs"`
	Duration     time.Duration `json:"-"`
}

// Send runs one chat turn. Failures are returned as *Error.
func (s *Service) Send(ctx context.Context, req Request) (Reply, error) {
	if strings.TrimSpace(req.Message) == "" {
		return Reply{}, ErrEmptyMessage
	}

	prefs := s.mem.Preferences()
	model := req.Model
	if model == "" {
		model = prefs.PreferredModel
	}
	speed := req.SpeedMode
	if speed == "" {
		speed = prefs.SpeedMode
	}

	corrected := Spellcheck(req.Message)
	if model == ModelAuto || model == "" {
		model = s.ResolveAuto(ctx)
	}
	prompt := buildPrompt(corrected, prefs.ResponseStyle, s.mem.BuildContext())

	chain := FallbackChain(model)
	attempts := make([]attempt.Attempt[string], len(chain))
	for i, m := range chain {
		attempts[i] = attempt.Attempt[string]{Name: m, Run: s.runModel(m, prompt, speed, req.OnChunk)}
	}

	start := time.Now()
	text, used, err := attempt.First(ctx, attempts,
		attempt.Retryable(ollama.IsOutOfMemory),
		attempt.Timeout(s.cfg.Timeout),
	)
	elapsed := time.Since(start)
	if err != nil {
		slog.Warn("chat turn failed", "model", model, "error", err)
		return Reply{}, userError(err, s.cfg.Timeout)
	}
	if used != model {
		slog.Info("used fallback model", "requested", model, "used", used)
	}

	reply := Reply{
		Response:     text,
		Model:        used,
		Requested:    model,
		UsedFallback: used != model,
		Duration:     elapsed,
		DurationMS:   elapsed.Milliseconds(),
	}
	if corrected != req.Message {
		reply.Original = req.Message
		reply.Corrected = corrected
	}

	s.record(corrected, reply)
	return reply, nil
}

func (s *Service) runModel(model, prompt, speed string, onChunk func(string) error) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		opts := SpeedParams(model, speed)
		slog.Debug("generating", "model", model, "num_predict", opts.NumPredict, "temperature", opts.Temperature)
		if onChunk != nil {
			return s.gen.GenerateStream(ctx, model, prompt, &opts, onChunk)
		}
		return s.gen.Generate(ctx, model, prompt, &opts)
	}
}

// ResolveAuto picks the configured fast model when it is installed, else the
// first installed model in speed order. When the installed list cannot be
// read the fast model is returned and the generate call reports the problem.
func (s *Service) ResolveAuto(ctx context.Context) string {
	installed, err := s.gen.ListModels(ctx)
	if err != nil {
		slog.Debug("listing models for auto selection failed", "error", err)
		return s.cfg.FastModel
	}
	candidates := append([]string{s.cfg.FastModel}, speedOrder...)
	for _, c := range candidates {
		if name, ok := installedName(installed, c); ok {
			return name
		}
	}
	return s.cfg.FastModel
}

// installedName returns the installed tag for a bare or tagged model name.
func installedName(installed []string, name string) (string, bool) {
	for _, m := range installed {
		if m == name {
			return m, true
		}
	}
	for _, m := range installed {
		if strings.HasPrefix(m, name+":") {
			return m, true
		}
	}
	return "", false
}

// record persists the turn. Storage problems are logged and do not fail the
// reply the user already has.
func (s *Service) record(message string, r Reply) {
	if err := s.mem.AppendHistory("user", message, ""); err != nil {
		slog.Warn("saving chat history", "error", err)
	}
	if err := s.mem.AppendHistory("assistant", r.Response, r.Model); err != nil {
		slog.Warn("saving chat history", "error", err)
	}
	if err := s.mem.TrackBehavior("message_sent", memory.Event{
		Topic:        memory.ExtractTopic(message),
		Model:        r.Model,
		ResponseTime: r.Duration,
	}); err != nil {
		slog.Warn("tracking behavior", "error", err)
	}

	if s.transcript == nil {
		return
	}
	now := time.Now().UTC()
	turns := []storage.ChatTurn{
		{ID: uuid.NewString(), CreatedAt: now, Role: "user", Content: message},
		{ID: uuid.NewString(), CreatedAt: now.Add(time.Nanosecond), Role: "assistant", Content: r.Response, Model: r.Model, ResponseMS: r.Duration.Milliseconds()},
	}
	for _, t := range turns {
		if err := s.transcript.SaveChatTurn(t); err != nil {
			slog.Warn("saving chat transcript", "error", err)
		}
	}
}
