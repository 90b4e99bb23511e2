package intent

import (
	"context"
	"strings"
)

// Rule is one tier of the classifier. Match receives the lower-cased message.
type Rule interface {
	Method() string
	Confidence() float64
	Match(ctx context.Context, message string, st State) (string, bool)
}

// DefaultRules returns exact, partial, keyword and context rules in that order.
func DefaultRules() []Rule {
	return []Rule{
		ExactRule{},
		SubstringRule{},
		KeywordRule{Keywords: DefaultKeywords()},
		ContextRule{Window: 5},
	}
}

// ExactRule matches when the message itself is a learned pattern.
type ExactRule struct{}

func (ExactRule) Method() string      { return MethodExact }
func (ExactRule) Confidence() float64 { return 0.9 }

func (ExactRule) Match(_ context.Context, message string, st State) (string, bool) {
	return st.Lookup(message)
}

// SubstringRule walks the learned patterns in insertion order and matches
// when the message contains a pattern or a pattern contains the message.
type SubstringRule struct{}

func (SubstringRule) Method() string      { return MethodPartial }
func (SubstringRule) Confidence() float64 { return 0.7 }

func (SubstringRule) Match(_ context.Context, message string, st State) (string, bool) {
	if message == "" {
		return "", false
	}
	for _, p := range st.Patterns() {
		if p.Pattern == "" {
			continue
		}
		if strings.Contains(message, p.Pattern) || strings.Contains(p.Pattern, message) {
			return p.Intent, true
		}
	}
	return "", false
}

// Keyword pairs a substring with the intent it implies.
type Keyword struct {
	Substring string
	Intent    string
}

// DefaultKeywords returns the built-in keyword table. Specific phrases come
// before the general words they contain.
func DefaultKeywords() []Keyword {
	return []Keyword{
		{"microsoft word", OpenWordDocument},
		{"word", OpenWordDocument},
		{"document", CreateWordDocument},
		{"text file", CreateTextFile},
		{"edit file", EditFile},
		{"open file", OpenFile},
		{"link", AddLink},
		{"chatgbt", AddChatGPTLink},
		{"chatgpt", AddChatGPTLink},
	}
}

// KeywordRule matches the first keyword found in the message.
type KeywordRule struct {
	Keywords []Keyword
}

func (KeywordRule) Method() string      { return MethodKeyword }
func (KeywordRule) Confidence() float64 { return 0.6 }

func (r KeywordRule) Match(_ context.Context, message string, _ State) (string, bool) {
	for _, k := range r.Keywords {
		if strings.Contains(message, k.Substring) {
			return k.Intent, true
		}
	}
	return "", false
}

// ContextRule guesses from the last Window successful interactions: recent
// file work plus an editing verb means edit_last_file, recent Word work plus
// a file noun means open_word_document.
type ContextRule struct {
	Window int
}

func (ContextRule) Method() string      { return MethodContext }
func (ContextRule) Confidence() float64 { return 0.4 }

func (r ContextRule) Match(_ context.Context, message string, st State) (string, bool) {
	recent := st.RecentSuccessful(r.Window)

	var sawFile, sawWord bool
	for _, e := range recent {
		sawFile = sawFile || strings.Contains(e.Intent, "file")
		sawWord = sawWord || strings.Contains(e.Intent, "word")
	}

	if sawFile && containsAny(message, "edit", "change", "add") {
		return EditLastFile, true
	}
	if sawWord && containsAny(message, "file", "document") {
		return OpenWordDocument, true
	}
	return "", false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
