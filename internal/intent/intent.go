// Package intent maps free-text requests to one of a fixed set of actions
// using an ordered table of rules. The first rule that matches decides.
package intent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kalambet/agenttwo/internal/profile"
)

// Intent labels understood by the action dispatcher.
const (
	OpenWordDocument   = "open_word_document"
	CreateWordDocument = "create_word_document"
	CreateTextFile     = "create_text_file"
	EditLastFile       = "edit_last_file"
	OpenLastFile       = "open_last_file"
	AddLinkToFile      = "add_link_to_file"
	AddLink            = "add_link"
	AddChatGPTLink     = "add_chatgpt_link"
	EditFile           = "edit_file"
	OpenFile           = "open_file"
	Unknown            = "unknown"
)

// Known returns every actionable intent label.
func Known() []string {
	return []string{
		OpenWordDocument, CreateWordDocument, CreateTextFile,
		EditLastFile, OpenLastFile, AddLinkToFile, AddLink,
		AddChatGPTLink, EditFile, OpenFile,
	}
}

// IsKnown reports whether label is an actionable intent.
func IsKnown(label string) bool {
	for _, k := range Known() {
		if k == label {
			return true
		}
	}
	return false
}

// Method labels reported in Result.Method.
const (
	MethodExact   = "exact_match"
	MethodPartial = "partial_match"
	MethodKeyword = "keyword_match"
	MethodContext = "context_guess"
	MethodModel   = "model_guess"
	MethodUnknown = "unknown"
)

const fallbackConfidence = 0.1

// Result is the outcome of classifying one message.
type Result struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// State is the learned data rules read from. Implemented by profile.Manager.
type State interface {
	Lookup(message string) (string, bool)
	Patterns() []profile.Mapping
	RecentSuccessful(n int) []profile.LearningEntry
}

// Classifier evaluates its rules in order against a State.
type Classifier struct {
	state State
	rules []Rule
}

// New creates a Classifier with DefaultRules followed by any extra rules.
func New(state State, extra ...Rule) *Classifier {
	return &Classifier{state: state, rules: append(DefaultRules(), extra...)}
}

// NewWithRules creates a Classifier with exactly the given rule table.
func NewWithRules(state State, rules []Rule) *Classifier {
	return &Classifier{state: state, rules: rules}
}

// Rules returns the rule table in evaluation order.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Classify returns the first rule match for message, or Unknown with
// confidence 0.1. It never modifies the state.
func (c *Classifier) Classify(ctx context.Context, message string) Result {
	lower := strings.ToLower(message)
	for _, r := range c.rules {
		if label, ok := r.Match(ctx, lower, c.state); ok {
			res := Result{Intent: label, Confidence: r.Confidence(), Method: r.Method()}
			slog.Debug("classified", "intent", res.Intent, "method", res.Method, "confidence", res.Confidence)
			return res
		}
	}
	return Result{Intent: Unknown, Confidence: fallbackConfidence, Method: MethodUnknown}
}
