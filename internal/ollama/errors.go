package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorKind categorizes client errors so callers can react without
// matching on text.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotRunning
	KindTimeout
	KindModelNotFound
	KindOutOfMemory
	KindServer
	KindBadResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotRunning:
		return "not_running"
	case KindTimeout:
		return "timeout"
	case KindModelNotFound:
		return "model_not_found"
	case KindOutOfMemory:
		return "out_of_memory"
	case KindServer:
		return "server_error"
	case KindBadResponse:
		return "bad_response"
	}
	return "unknown"
}

// ClientError is returned by every Client call that reaches the network.
type ClientError struct {
	Kind    ErrorKind
	Model   string
	Status  int
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg = fmt.Sprintf("HTTP %d: %s", e.Status, msg)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error { return e.Cause }

// KindOf returns the kind of a *ClientError in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsNotRunning reports whether err means the server could not be reached.
func IsNotRunning(err error) bool { return KindOf(err) == KindNotRunning }

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool { return KindOf(err) == KindTimeout }

// IsModelNotFound reports whether err means the model is not installed.
func IsModelNotFound(err error) bool { return KindOf(err) == KindModelNotFound }

// IsOutOfMemory reports whether err means the model does not fit in memory.
func IsOutOfMemory(err error) bool { return KindOf(err) == KindOutOfMemory }

// transportError classifies a failure of http.Client.Do.
func transportError(model string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ClientError{Kind: KindTimeout, Model: model, Message: "request timed out", Cause: err}
	}
	return &ClientError{Kind: KindNotRunning, Model: model, Message: "Ollama is not reachable", Cause: err}
}

// statusError classifies a non-200 response. Ollama reports load failures
// such as "model requires more system memory (5.6 GiB) than is available"
// in the error body, so the body text decides out-of-memory before the
// status code is considered.
func statusError(model string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var env struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil && env.Error != "" {
		msg = env.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	e := &ClientError{Model: model, Status: status, Message: msg}
	switch {
	case strings.Contains(msg, "memory") || strings.Contains(msg, "GiB"):
		e.Kind = KindOutOfMemory
	case status == http.StatusNotFound:
		e.Kind = KindModelNotFound
	case status >= 500:
		e.Kind = KindServer
	default:
		e.Kind = KindBadResponse
	}
	return e
}
