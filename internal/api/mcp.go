package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/agenttwo/internal/chat"
	"github.com/kalambet/agenttwo/internal/session"
)

const (
	preferencesURI = "agenttwo://preferences"
	intentStatsURI = "agenttwo://intents/stats"
)

// NewMCPServer creates an MCP server exposing the request handler, the
// learner and chat as tools, and preferences and intent stats as resources.
func NewMCPServer(s *session.Session) *server.MCPServer {
	srv := server.NewMCPServer(
		"agenttwo",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("agenttwo: local assistant that opens and edits files and chats through Ollama."),
		server.WithRecovery(),
	)

	srv.AddTool(
		mcp.NewTool("handle_request",
			mcp.WithDescription("Classify a natural-language request and perform the matching file action."),
			mcp.WithString("message", mcp.Description("The request, e.g. \"create a text file\""), mcp.Required()),
		),
		mcpHandleRequest(s),
	)

	srv.AddTool(
		mcp.NewTool("add_correction",
			mcp.WithDescription("Teach the assistant which intent a phrase should map to."),
			mcp.WithString("original", mcp.Description("The phrase that was misunderstood"), mcp.Required()),
			mcp.WithString("intent", mcp.Description("The intent it should map to, e.g. open_last_file"), mcp.Required()),
			mcp.WithString("feedback", mcp.Description("Optional note")),
		),
		mcpAddCorrection(s),
	)

	srv.AddTool(
		mcp.NewTool("chat",
			mcp.WithDescription("Send a message to the local model using the stored preferences."),
			mcp.WithString("message", mcp.Description("The message"), mcp.Required()),
			mcp.WithString("model", mcp.Description("Model override, or \"auto\"")),
		),
		mcpChat(s),
	)

	srv.AddTool(
		mcp.NewTool("set_preference",
			mcp.WithDescription("Update one preference (e.g. speedMode, devMode)."),
			mcp.WithString("key", mcp.Description("Preference key"), mcp.Required()),
			mcp.WithString("value", mcp.Description("Value to set"), mcp.Required()),
		),
		mcpSetPreference(s),
	)

	srv.AddResource(
		mcp.NewResource(
			preferencesURI,
			"Preferences",
			mcp.WithResourceDescription("Current preferences as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpJSONResource(func() any { return s.Memory.Preferences() }),
	)

	srv.AddResource(
		mcp.NewResource(
			intentStatsURI,
			"Intent Stats",
			mcp.WithResourceDescription("File activity and learned intent counts"),
			mcp.WithMIMEType("application/json"),
		),
		mcpJSONResource(func() any { return s.Dispatcher.Stats() }),
	)

	return srv
}

func mcpHandleRequest(s *session.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}
		res := s.Dispatcher.HandleUserRequest(ctx, message)
		b, err := json.Marshal(res)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		if !res.Success {
			return mcpError(string(b)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAddCorrection(s *session.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		original, err := req.RequireString("original")
		if err != nil {
			return mcpError("original is required"), nil
		}
		in, err := req.RequireString("intent")
		if err != nil {
			return mcpError("intent is required"), nil
		}
		if err := checkIntent(in); err != nil {
			return mcpError(err.Error()), nil
		}
		feedback := req.GetString("feedback", "")

		if err := s.Profile.AddCorrection(original, in, feedback); err != nil {
			return mcpError(fmt.Sprintf("failed to save correction: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Learned: %q means %s", original, in)), nil
	}
}

func mcpChat(s *session.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}
		reply, err := s.Chat.Send(ctx, chat.Request{
			Message: message,
			Model:   req.GetString("model", ""),
		})
		if err != nil {
			var ce *chat.Error
			if errors.As(err, &ce) {
				return mcpError(ce.Message), nil
			}
			return mcpError(err.Error()), nil
		}
		return mcpText(reply.Response), nil
	}
}

func mcpSetPreference(s *session.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}

		if _, err := s.Memory.SetPreference(key, value); err != nil {
			return mcpError(fmt.Sprintf("failed to set preference: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Set %s = %s", key, value)), nil
	}
}

func mcpJSONResource(get func() any) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(get())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", req.Params.URI, err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
