package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/kalambet/agenttwo/internal/action"
	"github.com/kalambet/agenttwo/internal/config"
	"github.com/kalambet/agenttwo/internal/memory"
	"github.com/kalambet/agenttwo/internal/ollama"
	"github.com/kalambet/agenttwo/internal/session"
)

const testToken = "test-token"

type nopLauncher struct{}

func (nopLauncher) OpenPath(context.Context, string) error     { return nil }
func (nopLauncher) Exec(context.Context, action.Command) error { return nil }
func (nopLauncher) WordCommands(string) []action.Command       { return []action.Command{{Name: "word"}} }

// fakeOllama answers /api/tags and /api/generate. Streaming replies are
// split into "Hel" and "lo".
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			fmt.Fprint(w, `{"models":[{"name":"llama3:latest"},{"name":"qwen2.5:0.5b"}]}`)
		case "/api/generate":
			var req struct {
				Stream bool `json:"stream"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			if req.Stream {
				fmt.Fprintln(w, `{"response":"Hel","done":false}`)
				fmt.Fprintln(w, `{"response":"lo","done":true}`)
				return
			}
			fmt.Fprint(w, `{"response":"Hello","done":true}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestSession(t *testing.T, ollamaURL string) *session.Session {
	t.Helper()
	cfg := config.Config{
		Ollama:   config.OllamaConfig{BaseURL: ollamaURL, FastModel: "qwen2.5:0.5b"},
		Storage:  config.StorageConfig{DataDir: t.TempDir()},
		Chat:     config.ChatConfig{Timeout: 5 * time.Second, HistoryLimit: 10},
		Learning: config.LearningConfig{MaxLogEntries: 100},
		Dev:      config.DevConfig{CommandTimeout: 5 * time.Second, ExecRate: 10, ExecBurst: 10},
	}
	s, err := session.Open(context.Background(), cfg, session.Options{
		Launcher: nopLauncher{},
		Ollama:   ollama.New(ollamaURL),
	})
	if err != nil {
		t.Fatalf("opening session: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestHandler(t *testing.T) (http.Handler, *session.Session) {
	t.Helper()
	s := newTestSession(t, fakeOllama(t).URL)
	return NewHandler(Deps{Session: s, Token: testToken}), s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	return v
}

func enableDev(t *testing.T, s *session.Session) {
	t.Helper()
	if _, err := s.Memory.UpdatePreferences([]byte(`{"devMode":true,"codeExecution":true,"fileEditing":true}`)); err != nil {
		t.Fatalf("enabling dev mode: %v", err)
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body := decode[map[string]string](t, rr)
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

func TestAuthRequired(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, auth := range []string{"", "Bearer wrong", testToken} {
		req := httptest.NewRequest(http.MethodGet, "/v1/preferences", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("auth %q: status = %d, want 401", auth, rr.Code)
		}
		body := decode[errorBody](t, rr)
		if body.Error.Type != "authentication_error" || body.Error.Code != http.StatusUnauthorized {
			t.Errorf("auth %q: error = %+v", auth, body.Error)
		}
	}
}

func TestChat(t *testing.T) {
	h, s := newTestHandler(t)

	rr := do(t, h, http.MethodPost, "/v1/chat", `{"message":"tell me about anime"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[chatResponse](t, rr)
	if !resp.Success || resp.Reply == nil {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Reply.Response != "Hello" || resp.Reply.Model != "llama3" {
		t.Errorf("reply = %+v", resp.Reply)
	}
	if got := s.Memory.Behavior().TotalMessages; got != 1 {
		t.Errorf("TotalMessages = %d, want 1", got)
	}
}

func TestChatStreaming(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := do(t, h, http.MethodPost, "/v1/chat", `{"message":"hi","stream":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("Content-Type = %q", ct)
	}

	var events []streamEvent
	sc := bufio.NewScanner(rr.Body)
	for sc.Scan() {
		var ev streamEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		events = append(events, ev)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Chunk != "Hel" || events[1].Chunk != "lo" {
		t.Errorf("chunks = %q, %q", events[0].Chunk, events[1].Chunk)
	}
	last := events[2]
	if !last.Done || last.Reply == nil || last.Reply.Response != "Hello" {
		t.Errorf("final event = %+v", last)
	}
}

func TestChatOllamaDown(t *testing.T) {
	s := newTestSession(t, "http://127.0.0.1:1")
	h := NewHandler(Deps{Session: s, Token: testToken})

	rr := do(t, h, http.MethodPost, "/v1/chat", `{"message":"hi","model":"llama3.2:1b"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	body := decode[errorBody](t, rr)
	if !strings.HasPrefix(body.Error.Message, "Cannot connect to Ollama") {
		t.Errorf("message = %q", body.Error.Message)
	}
}

func TestChatEmptyMessage(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := do(t, h, http.MethodPost, "/v1/chat", `{"message":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestChatRunsDevCommand(t *testing.T) {
	h, s := newTestHandler(t)
	enableDev(t, s)

	rr := do(t, h, http.MethodPost, "/v1/chat", `{"message":"create file notes.txt with the text hello"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decode[chatResponse](t, rr)
	if resp.Dev == nil || !resp.Dev.Success {
		t.Fatalf("response = %+v", resp)
	}
	fc, err := s.Dev.Files.ReadFile("notes.txt")
	if err != nil || fc.Content != "hello" {
		t.Errorf("notes.txt = %q, %v", fc.Content, err)
	}
}

func TestConnection(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := do(t, h, http.MethodGet, "/v1/connection", "")
	resp := decode[connectionResponse](t, rr)
	if !resp.Success || len(resp.Models) != 2 {
		t.Errorf("response = %+v", resp)
	}
}

func TestConnectionDown(t *testing.T) {
	s := newTestSession(t, "http://127.0.0.1:1")
	h := NewHandler(Deps{Session: s, Token: testToken})

	rr := do(t, h, http.MethodGet, "/v1/connection", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decode[connectionResponse](t, rr)
	if resp.Success || resp.Error == "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestPreferences(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := do(t, h, http.MethodPatch, "/v1/preferences", `{"speedMode":"fast"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	prefs := decode[memory.Preferences](t, do(t, h, http.MethodGet, "/v1/preferences", ""))
	if prefs.SpeedMode != "fast" || prefs.PreferredModel != "llama3" {
		t.Errorf("prefs = %+v", prefs)
	}

	tests := []struct {
		body string
		want int
	}{
		{`{"nope":1}`, http.StatusUnprocessableEntity},
		{`{"speedMode":"warp"}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rr := do(t, h, http.MethodPatch, "/v1/preferences", tt.body); rr.Code != tt.want {
			t.Errorf("PATCH %s: status = %d, want %d", tt.body, rr.Code, tt.want)
		}
	}
}

func TestBehavior(t *testing.T) {
	h, _ := newTestHandler(t)
	do(t, h, http.MethodPost, "/v1/chat", `{"message":"some anime please"}`)

	b := decode[memory.Behavior](t, do(t, h, http.MethodGet, "/v1/behavior", ""))
	if b.TotalMessages != 1 {
		t.Errorf("TotalMessages = %d, want 1", b.TotalMessages)
	}
}

func TestDevExecDisabled(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := do(t, h, http.MethodPost, "/v1/dev/exec", `{"command":"echo hi"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	body := decode[errorBody](t, rr)
	if body.Error.Type != "permission_error" {
		t.Errorf("type = %q", body.Error.Type)
	}
}

func TestDevExecNotAllowed(t *testing.T) {
	h, s := newTestHandler(t)
	enableDev(t, s)

	rr := do(t, h, http.MethodPost, "/v1/dev/exec", `{"command":"rm -rf /"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	if msg := decode[errorBody](t, rr).Error.Message; msg != "Security: command not allowed" {
		t.Errorf("message = %q", msg)
	}
}

func TestDevExecRateLimited(t *testing.T) {
	s := newTestSession(t, fakeOllama(t).URL)
	h := NewHandler(Deps{Session: s, Token: testToken, ExecLimiter: rate.NewLimiter(0, 1)})

	if rr := do(t, h, http.MethodPost, "/v1/dev/exec", `{"command":"echo hi"}`); rr.Code == http.StatusTooManyRequests {
		t.Fatal("first request should not be limited")
	}
	rr := do(t, h, http.MethodPost, "/v1/dev/exec", `{"command":"echo hi"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestFiles(t *testing.T) {
	h, s := newTestHandler(t)

	if rr := do(t, h, http.MethodPost, "/v1/files/write", `{"path":"a.md","content":"x"}`); rr.Code != http.StatusForbidden {
		t.Fatalf("write with dev off: status = %d, want 403", rr.Code)
	}

	enableDev(t, s)
	if rr := do(t, h, http.MethodPost, "/v1/files/write", `{"path":"a.md","content":"# hi"}`); rr.Code != http.StatusOK {
		t.Fatalf("write: status = %d: %s", rr.Code, rr.Body.String())
	}
	rr := do(t, h, http.MethodPost, "/v1/files/read", `{"path":"a.md"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("read: status = %d", rr.Code)
	}
	if got := decode[map[string]any](t, rr)["content"]; got != "# hi" {
		t.Errorf("content = %v", got)
	}

	tests := []struct {
		body string
		want int
	}{
		{`{"path":"missing.md"}`, http.StatusNotFound},
		{`{"path":"../etc/passwd.txt"}`, http.StatusForbidden},
		{`{"path":"run.sh"}`, http.StatusForbidden},
	}
	for _, tt := range tests {
		rr := do(t, h, http.MethodPost, "/v1/files/read", tt.body)
		if rr.Code != tt.want {
			t.Errorf("read %s: status = %d, want %d", tt.body, rr.Code, tt.want)
			continue
		}
		if tt.want == http.StatusForbidden {
			if msg := decode[errorBody](t, rr).Error.Message; msg != "Security: path not allowed" {
				t.Errorf("read %s: message = %q", tt.body, msg)
			}
		}
	}
}

func TestUserRequestAndCorrection(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := do(t, h, http.MethodPost, "/v1/requests", `{"message":"open that file"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	res := decode[action.Result](t, rr)
	if res.Success || res.Action != "open_last_file" {
		t.Errorf("result = %+v", res)
	}

	rr = do(t, h, http.MethodPost, "/v1/corrections", `{"originalRequest":"pop it","correctedIntent":"open_word_document"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("correction: status = %d", rr.Code)
	}
	res = decode[action.Result](t, do(t, h, http.MethodPost, "/v1/requests", `{"message":"pop it"}`))
	if !res.Success || res.Action != "open_word_document" || res.Method != "exact_match" {
		t.Errorf("after correction: %+v", res)
	}

	stats := decode[action.Stats](t, do(t, h, http.MethodGet, "/v1/intents/stats", ""))
	if stats.Corrections != 1 || stats.IntentCounts["open_word_document"] != 1 {
		t.Errorf("stats = %+v", stats)
	}

	if rr := do(t, h, http.MethodPost, "/v1/corrections", `{"originalRequest":"x"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("incomplete correction: status = %d", rr.Code)
	}
}

func TestCorrectionRejectsUnknownIntent(t *testing.T) {
	h, s := newTestHandler(t)

	rr := do(t, h, http.MethodPost, "/v1/corrections", `{"originalRequest":"zap it","correctedIntent":"open_wrod_document"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
	if msg := decode[errorBody](t, rr).Error.Message; !strings.Contains(msg, `unknown intent "open_wrod_document"`) {
		t.Errorf("message = %q", msg)
	}
	if _, ok := s.Profile.Lookup("zap it"); ok {
		t.Error("rejected correction was learned")
	}
}

func TestInsights(t *testing.T) {
	h, _ := newTestHandler(t)
	do(t, h, http.MethodPost, "/v1/requests", `{"message":"open microsoft word"}`)

	rr := do(t, h, http.MethodGet, "/v1/profile/insights", "")
	in := decode[map[string]any](t, rr)
	if in["successful"] != float64(1) {
		t.Errorf("insights = %v", in)
	}
}

func TestClearMemory(t *testing.T) {
	h, s := newTestHandler(t)
	do(t, h, http.MethodPost, "/v1/chat", `{"message":"hi"}`)
	do(t, h, http.MethodPatch, "/v1/preferences", `{"theme":"dark"}`)

	rr := do(t, h, http.MethodDelete, "/v1/memory", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	cleared := decode[session.Cleared](t, rr)
	if cleared.ChatTurns != 2 {
		t.Errorf("ChatTurns = %d, want 2", cleared.ChatTurns)
	}
	if p := s.Memory.Preferences(); p.Theme != "anime" {
		t.Errorf("theme = %q after clear", p.Theme)
	}
}
