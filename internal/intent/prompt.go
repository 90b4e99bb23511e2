package intent

import (
	"fmt"
	"strings"

	"github.com/kalambet/agenttwo/internal/ollama"
	"github.com/kalambet/agenttwo/internal/profile"
)

const systemPromptTemplate = `You route desktop assistant requests. Pick the single intent label that best matches the user's request. Your output must be ONLY a single valid JSON object that conforms to the provided schema.

Intent labels:
- open_word_document: launch the word processor
- create_word_document: start a new word processor document
- create_text_file: write a new plain text file
- edit_last_file: edit the file created most recently
- open_last_file: open the file created most recently
- add_link_to_file: append a web link to the most recent file
- add_chatgpt_link: append a ChatGPT link to the most recent file
- edit_file: edit a file the user names
- open_file: open a file the user names
- unknown: none of the above

Answer unknown unless the request clearly asks for one of these actions.`

// BuildPrompt constructs the chat messages for a model intent guess.
func BuildPrompt(message string, recent []profile.LearningEntry) []ollama.Message {
	var sb strings.Builder
	sb.WriteString(systemPromptTemplate)

	if len(recent) > 0 {
		sb.WriteString("\n\n[Recent successful requests]")
		for _, e := range recent {
			fmt.Fprintf(&sb, "\n- %q -> %s", e.Message, e.Intent)
		}
	}

	return []ollama.Message{
		{Role: "system", Content: sb.String()},
		{Role: "user", Content: message},
	}
}
