// Package api exposes the local HTTP interface used by the desktop UI and
// the command line client, plus an MCP server over stdio.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/kalambet/agenttwo/internal/chat"
	"github.com/kalambet/agenttwo/internal/devtools"
	"github.com/kalambet/agenttwo/internal/intent"
	"github.com/kalambet/agenttwo/internal/memory"
	"github.com/kalambet/agenttwo/internal/session"
)

const maxRequestBodySize = 1 << 20

// Deps holds what the HTTP handlers need.
type Deps struct {
	Session *session.Session
	Token   string
	// ExecLimiter throttles /v1/dev/exec. Nil builds one from the dev
	// config.
	ExecLimiter *rate.Limiter
}

// NewHandler returns the full router. Everything except /health requires
// the bearer token.
func NewHandler(deps Deps) http.Handler {
	if deps.ExecLimiter == nil {
		dev := deps.Session.Config.Dev
		deps.ExecLimiter = rate.NewLimiter(rate.Limit(dev.ExecRate), dev.ExecBurst)
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/v1/chat", handleChat(deps))
		r.Get("/v1/connection", handleConnection(deps))
		r.Get("/v1/preferences", handleGetPreferences(deps))
		r.Patch("/v1/preferences", handlePatchPreferences(deps))
		r.Get("/v1/behavior", handleBehavior(deps))
		r.Post("/v1/dev/exec", handleDevExec(deps))
		r.Post("/v1/files/read", handleReadFile(deps))
		r.Post("/v1/files/write", handleWriteFile(deps))
		r.Delete("/v1/memory", handleClearMemory(deps))
		r.Post("/v1/requests", handleUserRequest(deps))
		r.Post("/v1/corrections", handleCorrection(deps))
		r.Get("/v1/intents/stats", handleIntentStats(deps))
		r.Get("/v1/profile/insights", handleInsights(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	Message   string `json:"message"`
	Model     string `json:"model"`
	SpeedMode string `json:"speedMode"`
	Stream    bool   `json:"stream"`
}

type chatResponse struct {
	Success bool              `json:"success"`
	Reply   *chat.Reply       `json:"reply,omitempty"`
	Dev     *devtools.Outcome `json:"dev,omitempty"`
}

// streamEvent is one NDJSON line of a streamed chat reply.
type streamEvent struct {
	Chunk string      `json:"chunk,omitempty"`
	Done  bool        `json:"done,omitempty"`
	Reply *chat.Reply `json:"reply,omitempty"`
	Error string      `json:"error,omitempty"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		s := deps.Session
		if out, ok := s.Dev.HandleDevCommand(r.Context(), req.Message); ok {
			writeJSON(w, http.StatusOK, chatResponse{Success: out.Success, Dev: &out})
			return
		}

		creq := chat.Request{Message: req.Message, Model: req.Model, SpeedMode: req.SpeedMode}
		if !req.Stream {
			reply, err := s.Chat.Send(r.Context(), creq)
			if err != nil {
				chatError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, chatResponse{Success: true, Reply: &reply})
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)

		enc := json.NewEncoder(w)
		creq.OnChunk = func(chunk string) error {
			if err := enc.Encode(streamEvent{Chunk: chunk}); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		}
		reply, err := s.Chat.Send(r.Context(), creq)
		ev := streamEvent{Done: true}
		if err != nil {
			ev.Error = err.Error()
		} else {
			ev.Reply = &reply
		}
		if err := enc.Encode(ev); err != nil {
			slog.Debug("writing final stream event", "error", err)
		}
		flusher.Flush()
	}
}

func chatError(w http.ResponseWriter, err error) {
	if errors.Is(err, chat.ErrEmptyMessage) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", err.Error())
		return
	}
	var ce *chat.Error
	if errors.As(err, &ce) {
		httpError(w, http.StatusBadGateway, "model_error", "%s", ce.Message)
		return
	}
	httpError(w, http.StatusInternalServerError, "api_error", "%s", err.Error())
}

type connectionResponse struct {
	Success   bool     `json:"success"`
	BaseURL   string   `json:"baseUrl"`
	Models    []string `json:"models"`
	LatencyMS int64    `json:"latencyMs"`
	Error     string   `json:"error,omitempty"`
}

func handleConnection(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := deps.Session.Ollama.TestConnection(r.Context())
		if err != nil {
			writeJSON(w, http.StatusOK, connectionResponse{
				BaseURL: deps.Session.Ollama.BaseURL(),
				Models:  []string{},
				Error:   err.Error(),
			})
			return
		}
		models := conn.Models
		if models == nil {
			models = []string{}
		}
		writeJSON(w, http.StatusOK, connectionResponse{
			Success:   true,
			BaseURL:   conn.BaseURL,
			Models:    models,
			LatencyMS: conn.Latency.Milliseconds(),
		})
	}
}

func handleGetPreferences(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Session.Memory.Preferences())
	}
}

func handlePatchPreferences(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw json.RawMessage
		if !decodeBody(w, r, &raw) {
			return
		}
		prefs, err := deps.Session.Memory.UpdatePreferences(raw)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, memory.ErrUnknownPreference) {
				status = http.StatusUnprocessableEntity
			}
			httpError(w, status, "invalid_request_error", "%s", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	}
}

func handleBehavior(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Session.Memory.Behavior())
	}
}

type execRequest struct {
	Command string `json:"command"`
}

type execResponse struct {
	Success bool                    `json:"success"`
	Result  *devtools.CommandResult `json:"result,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

func handleDevExec(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !deps.ExecLimiter.Allow() {
			w.Header().Set("Retry-After", "1")
			httpError(w, http.StatusTooManyRequests, "rate_limit_error", "too many commands, slow down")
			return
		}
		var req execRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Command == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "command is required")
			return
		}

		res, err := deps.Session.Dev.Runner.Run(r.Context(), req.Command)
		if err != nil {
			if status, ok := devStatus(err); ok {
				httpError(w, status, "permission_error", "%s", devtools.Describe(err))
				return
			}
			out := execResponse{Error: err.Error()}
			if res.Command != "" {
				out.Result = &res
			}
			writeJSON(w, http.StatusOK, out)
			return
		}
		writeJSON(w, http.StatusOK, execResponse{Success: true, Result: &res})
	}
}

type fileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func handleReadFile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fileRequest
		if !decodeBody(w, r, &req) {
			return
		}
		fc, err := deps.Session.Dev.Files.ReadFile(req.Path)
		if err != nil {
			fileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, fc)
	}
}

func handleWriteFile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fileRequest
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := deps.Session.Dev.Files.WriteFile(req.Path, req.Content)
		if err != nil {
			fileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func fileError(w http.ResponseWriter, err error) {
	if status, ok := devStatus(err); ok {
		httpError(w, status, "permission_error", "%s", devtools.Describe(err))
		return
	}
	if errors.Is(err, devtools.ErrFileNotFound) {
		httpError(w, http.StatusNotFound, "not_found_error", "%s", err.Error())
		return
	}
	httpError(w, http.StatusInternalServerError, "api_error", "%s", err.Error())
}

// devStatus maps guard and preference refusals to 403.
func devStatus(err error) (int, bool) {
	if errors.Is(err, devtools.ErrNotAllowed) || errors.Is(err, devtools.ErrDisabled) {
		return http.StatusForbidden, true
	}
	return 0, false
}

func handleClearMemory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cleared, err := deps.Session.ClearMemory()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "clearing memory: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, cleared)
	}
}

type userRequest struct {
	Message string `json:"message"`
}

func handleUserRequest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req userRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}
		writeJSON(w, http.StatusOK, deps.Session.Dispatcher.HandleUserRequest(r.Context(), req.Message))
	}
}

type correctionRequest struct {
	Original        string `json:"originalRequest"`
	CorrectedIntent string `json:"correctedIntent"`
	Feedback        string `json:"feedback"`
}

func handleCorrection(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req correctionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Original == "" || req.CorrectedIntent == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "originalRequest and correctedIntent are required")
			return
		}
		if err := checkIntent(req.CorrectedIntent); err != nil {
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "%s", err.Error())
			return
		}
		if err := deps.Session.Profile.AddCorrection(req.Original, req.CorrectedIntent, req.Feedback); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving correction: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": fmt.Sprintf("Learned: %q means %s", req.Original, req.CorrectedIntent),
		})
	}
}

// checkIntent rejects labels the dispatcher has no handler for, so a typo
// never becomes a learned mapping.
func checkIntent(label string) error {
	if intent.IsKnown(label) {
		return nil
	}
	return fmt.Errorf("unknown intent %q, expected one of: %s", label, strings.Join(intent.Known(), ", "))
}

func handleIntentStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Session.Dispatcher.Stats())
	}
}

func handleInsights(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Session.Profile.Insights())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "error", err)
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func httpError(w http.ResponseWriter, code int, errType, format string, args ...any) {
	writeJSON(w, code, errorBody{Error: errorDetail{
		Message: fmt.Sprintf(format, args...),
		Type:    errType,
		Code:    code,
	}})
}
