package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/agenttwo/internal/attempt"
	"github.com/kalambet/agenttwo/internal/ollama"
)

// ErrEmptyMessage is returned by Send for a blank message.
var ErrEmptyMessage = errors.New("message is empty")

// Error is a failed chat turn. Message is safe to show to the user; Err
// keeps the underlying cause for logs and errors.Is checks.
type Error struct {
	Message string
	Model   string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// userError converts a model failure into an *Error with a readable message.
func userError(err error, timeout time.Duration) *Error {
	model := ""
	var ae *attempt.Error
	if errors.As(err, &ae) {
		model = ae.Last
	}

	var msg string
	switch ollama.KindOf(err) {
	case ollama.KindNotRunning:
		msg = "Cannot connect to Ollama. Make sure Ollama is running: ollama serve"
	case ollama.KindOutOfMemory:
		msg = fmt.Sprintf("Model %s needs more memory than is available. Try a smaller model such as llama3.2:1b", model)
	case ollama.KindModelNotFound:
		msg = fmt.Sprintf("Model %s not found. Run: ollama pull %s", model, model)
	case ollama.KindTimeout:
		msg = fmt.Sprintf("Request timed out after %s", timeout)
	default:
		msg = "Error: " + err.Error()
	}
	return &Error{Message: msg, Model: model, Err: err}
}
