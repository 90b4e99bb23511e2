package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kalambet/agenttwo/internal/config"
)

type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	token, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return nil, fmt.Errorf("getting API token: %w", err)
	}

	// Chat replies can take as long as the model timeout plus fallbacks.
	timeout := 4*cfg.Chat.Timeout + 10*time.Second
	return &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is agenttwo running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *apiClient) patch(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPatch, path, body)
}

func (c *apiClient) delete(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// apiError is the server's error envelope.
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		var ae apiError
		if json.Unmarshal(body, &ae) == nil && ae.Error.Message != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, ae.Error.Message)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// chatEvent mirrors one NDJSON line of a streamed chat reply.
type chatEvent struct {
	Chunk string `json:"chunk"`
	Done  bool   `json:"done"`
	Reply *struct {
		Response     string `json:"response"`
		UsedModel    string `json:"usedModel"`
		UsedFallback bool   `json:"usedFallback"`
		Corrected    string `json:"corrected"`
		DurationMS   int64  `json:"durationMs"`
	} `json:"reply"`
	Error string `json:"error"`
}

// readChatStream writes chunks to w as they arrive and returns the final
// event.
func readChatStream(resp *http.Response, w io.Writer) (chatEvent, error) {
	if resp.StatusCode >= 400 {
		return chatEvent{}, decodeJSON(resp, nil)
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var ev chatEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return chatEvent{}, fmt.Errorf("decoding stream: %w", err)
		}
		if ev.Done {
			if ev.Error != "" {
				return ev, errors.New(ev.Error)
			}
			return ev, nil
		}
		fmt.Fprint(w, ev.Chunk)
	}
	if err := sc.Err(); err != nil {
		return chatEvent{}, fmt.Errorf("reading stream: %w", err)
	}
	return chatEvent{}, errors.New("stream ended without a final event")
}
