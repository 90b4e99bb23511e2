package intent

import (
	"context"
	"strings"
	"testing"

	"github.com/kalambet/agenttwo/internal/profile"
)

// fakeState is an in-memory State seeded like a fresh profile.
type fakeState struct {
	mapping profile.IntentMapping
	recent  []profile.LearningEntry
}

func newFakeState() *fakeState {
	return &fakeState{mapping: profile.Default().IntentMapping}
}

func (s *fakeState) Lookup(message string) (string, bool) {
	return s.mapping.Get(strings.ToLower(message))
}

func (s *fakeState) Patterns() []profile.Mapping { return s.mapping.Entries() }

func (s *fakeState) RecentSuccessful(n int) []profile.LearningEntry {
	if n < len(s.recent) {
		return s.recent[len(s.recent)-n:]
	}
	return s.recent
}

func TestClassify_Tiers(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name       string
		message    string
		recent     []string
		wantIntent string
		wantConf   float64
		wantMethod string
	}{
		{"exact seed", "Open Word", nil, OpenWordDocument, 0.9, MethodExact},
		{"message contains pattern", "please open that file now", nil, OpenLastFile, 0.7, MethodPartial},
		{"pattern contains message", "put a link", nil, AddLinkToFile, 0.7, MethodPartial},
		{"specific keyword first", "open microsoft word", nil, OpenWordDocument, 0.6, MethodKeyword},
		{"text file keyword", "write me a text file", nil, CreateTextFile, 0.6, MethodKeyword},
		{"chatgpt keyword", "drop in chatgpt", nil, AddChatGPTLink, 0.6, MethodKeyword},
		{"context edit after file", "change it a bit", []string{CreateTextFile}, EditLastFile, 0.4, MethodContext},
		{"context word after word", "another file please", []string{OpenWordDocument}, OpenWordDocument, 0.4, MethodContext},
		{"no context without history", "change it a bit", nil, Unknown, 0.1, MethodUnknown},
		{"fallback", "what time is it", nil, Unknown, 0.1, MethodUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newFakeState()
			for _, i := range tt.recent {
				st.recent = append(st.recent, profile.LearningEntry{Intent: i, Success: true})
			}
			got := New(st).Classify(ctx, tt.message)
			if got.Intent != tt.wantIntent || got.Confidence != tt.wantConf || got.Method != tt.wantMethod {
				t.Errorf("Classify(%q) = %+v, want {%s %v %s}", tt.message, got, tt.wantIntent, tt.wantConf, tt.wantMethod)
			}
		})
	}
}

func TestClassify_ExactBeatsKeyword(t *testing.T) {
	st := newFakeState()
	st.mapping.Set("open microsoft word please", CreateTextFile)

	got := New(st).Classify(context.Background(), "Open Microsoft Word Please")
	if got.Intent != CreateTextFile || got.Confidence != 0.9 {
		t.Errorf("Classify = %+v, want create_text_file at 0.9", got)
	}
}

func TestClassify_PartialUsesInsertionOrder(t *testing.T) {
	st := &fakeState{mapping: profile.NewIntentMapping(
		profile.Mapping{Pattern: "report", Intent: OpenFile},
		profile.Mapping{Pattern: "quarterly report", Intent: CreateWordDocument},
	)}

	got := New(st).Classify(context.Background(), "find the quarterly report draft")
	if got.Intent != OpenFile {
		t.Errorf("Intent = %q, want first inserted pattern's intent %q", got.Intent, OpenFile)
	}
}

func TestClassify_EmptyMessage(t *testing.T) {
	got := New(newFakeState()).Classify(context.Background(), "")
	if got.Intent != Unknown {
		t.Errorf("Classify(\"\") = %+v, want unknown", got)
	}
}

func TestClassify_DoesNotMutateState(t *testing.T) {
	st := newFakeState()
	before := st.mapping.Len()
	New(st).Classify(context.Background(), "a brand new message about a document")
	if st.mapping.Len() != before {
		t.Error("Classify changed the mapping")
	}
}

func TestDefaultKeywordOrder(t *testing.T) {
	kw := DefaultKeywords()
	pos := map[string]int{}
	for i, k := range kw {
		pos[k.Substring] = i
	}
	if pos["microsoft word"] > pos["word"] {
		t.Error(`"microsoft word" must precede "word"`)
	}
	if pos["edit file"] < pos["text file"] || pos["open file"] < pos["text file"] {
		t.Error("keyword table order changed")
	}
}

func TestRuleTableContracts(t *testing.T) {
	want := []struct {
		method string
		conf   float64
	}{
		{MethodExact, 0.9},
		{MethodPartial, 0.7},
		{MethodKeyword, 0.6},
		{MethodContext, 0.4},
	}
	rules := New(newFakeState()).Rules()
	if len(rules) != len(want) {
		t.Fatalf("got %d default rules, want %d", len(rules), len(want))
	}
	for i, w := range want {
		if rules[i].Method() != w.method || rules[i].Confidence() != w.conf {
			t.Errorf("rule %d = (%s, %v), want (%s, %v)", i, rules[i].Method(), rules[i].Confidence(), w.method, w.conf)
		}
	}
}
