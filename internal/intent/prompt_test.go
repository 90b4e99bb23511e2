package intent

import (
	"strings"
	"testing"

	"github.com/kalambet/agenttwo/internal/profile"
)

func TestPromptListsEveryIntent(t *testing.T) {
	system := BuildPrompt("make a note", nil)[0].Content
	for _, label := range Known() {
		if label == AddLink {
			continue
		}
		if !strings.Contains(system, label) {
			t.Errorf("system prompt does not mention %s", label)
		}
	}
	if strings.Contains(system, "[Recent successful requests]") {
		t.Error("recent section rendered with no history")
	}
}

func TestPromptRecentRequests(t *testing.T) {
	recent := []profile.LearningEntry{
		{Message: "create a text file", Intent: CreateTextFile},
		{Message: "open that file", Intent: OpenLastFile},
	}
	messages := BuildPrompt("now put a link in", recent)

	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	system := messages[0].Content
	if !strings.Contains(system, `"open that file" -> open_last_file`) {
		t.Errorf("recent request missing from prompt:\n%s", system)
	}
	if messages[1].Role != "user" || messages[1].Content != "now put a link in" {
		t.Errorf("user message = %+v", messages[1])
	}
}
