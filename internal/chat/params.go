package chat

import (
	"regexp"
	"strings"

	"github.com/kalambet/agenttwo/internal/memory"
	"github.com/kalambet/agenttwo/internal/ollama"
)

// DefaultFastModel is used for "auto" when nothing else is configured.
const DefaultFastModel = "qwen2.5:0.5b"

// speedOrder lists local models from fastest to slowest.
var speedOrder = []string{
	"qwen2.5:0.5b",
	"tinyllama",
	"llama2:7b-chat-q4_K_M",
	"phi3:mini",
	"mistral",
	"llama3",
}

var baseParams = map[string]ollama.Options{
	"qwen2.5:0.5b":     {NumPredict: 128, Temperature: 0.6, TopP: 0.9, RepeatPenalty: 1.1},
	"tinyllama:latest": {NumPredict: 256, Temperature: 0.7, TopP: 0.9, RepeatPenalty: 1.1},
}

// SpeedParams returns the sampling options for model under the given speed
// mode. Models without their own entry use the qwen2.5:0.5b base.
func SpeedParams(model, speedMode string) ollama.Options {
	opts, ok := baseParams[model]
	if !ok {
		opts = baseParams[DefaultFastModel]
	}
	switch speedMode {
	case memory.SpeedFast:
		opts.NumPredict = opts.NumPredict / 2
		opts.Temperature = 0.6
	case memory.SpeedQuality:
		opts.NumPredict = opts.NumPredict * 3 / 2
		opts.Temperature = 0.9
	}
	return opts
}

var smallerModels = []string{"llama3:1b", "llama3:3b", "llama2:7b", "llama2:3b"}

// FallbackChain returns model followed by the smaller models to try when it
// does not fit in memory.
func FallbackChain(model string) []string {
	chain := []string{model}
	if model == "llama3" || model == "llama3:8b" {
		chain = append(chain, smallerModels...)
	}
	return chain
}

type typo struct {
	re      *regexp.Regexp
	correct string
}

var typos = func() []typo {
	pairs := [][2]string{
		{"teh", "the"},
		{"recieve", "receive"},
		{"seperate", "separate"},
		{"definately", "definitely"},
		{"occured", "occurred"},
		{"neccessary", "necessary"},
		{"accomodate", "accommodate"},
		{"begining", "beginning"},
		{"beleive", "believe"},
		{"calender", "calendar"},
	}
	out := make([]typo, len(pairs))
	for i, p := range pairs {
		out[i] = typo{re: regexp.MustCompile(`(?i)\b` + p[0] + `\b`), correct: p[1]}
	}
	return out
}()

// Spellcheck replaces known typos, matched as whole words in any case, with
// their lower-case correction.
func Spellcheck(text string) string {
	for _, t := range typos {
		text = t.re.ReplaceAllLiteralString(text, t.correct)
	}
	return text
}

// buildPrompt renders the single-turn prompt sent to /api/generate.
func buildPrompt(message, style, memoryContext string) string {
	if style == "" {
		style = "friendly"
	}
	var b strings.Builder
	b.WriteString("You are a helpful AI assistant running on the user's machine. ")
	b.WriteString("You can create files and run commands when the user asks, and you remember their preferences.\n")
	b.WriteString("Respond in a " + style + " manner.\n\n")
	if memoryContext != "" {
		b.WriteString(memoryContext)
		b.WriteString("\n\n")
	}
	b.WriteString("User: ")
	b.WriteString(message)
	b.WriteString("\nAssistant:")
	return b.String()
}
