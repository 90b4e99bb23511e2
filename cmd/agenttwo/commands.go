package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/kalambet/agenttwo/internal/config"
	"github.com/kalambet/agenttwo/internal/memory"
)

// --- chat ---

type chatOptions struct {
	model    string
	speed    string
	noStream bool
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the local model (interactive when no message is given)",
	Long: `Chat with the local model.

Examples:
  agenttwo chat "what is a goroutine?"
  agenttwo chat --model auto
  agenttwo chat --speed fast "summarize this in one line"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts chatOptions
		opts.model, _ = cmd.Flags().GetString("model")
		opts.speed, _ = cmd.Flags().GetString("speed")
		opts.noStream, _ = cmd.Flags().GetBool("no-stream")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if len(args) > 0 {
			return sendChat(cmd.Context(), client, strings.Join(args, " "), opts, os.Stdout)
		}
		return chatREPL(cmd.Context(), client, opts)
	},
}

func init() {
	chatCmd.Flags().String("model", "", "model to use, or \"auto\" (default: preferred model)")
	chatCmd.Flags().String("speed", "", "fast, balanced or quality (default: preference)")
	chatCmd.Flags().Bool("no-stream", false, "wait for the full reply instead of streaming")
}

type chatBody struct {
	Message   string `json:"message"`
	Model     string `json:"model,omitempty"`
	SpeedMode string `json:"speedMode,omitempty"`
	Stream    bool   `json:"stream"`
}

type chatResult struct {
	Success bool `json:"success"`
	Reply   *struct {
		Response     string `json:"response"`
		UsedModel    string `json:"usedModel"`
		UsedFallback bool   `json:"usedFallback"`
		Corrected    string `json:"corrected"`
	} `json:"reply"`
	Dev *struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	} `json:"dev"`
}

func sendChat(ctx context.Context, client *apiClient, message string, opts chatOptions, w io.Writer) error {
	body := chatBody{Message: message, Model: opts.model, SpeedMode: opts.speed, Stream: !opts.noStream}
	resp, err := client.post(ctx, "/v1/chat", body)
	if err != nil {
		return err
	}

	if body.Stream && resp.Header.Get("Content-Type") == "application/x-ndjson" {
		ev, err := readChatStream(resp, w)
		fmt.Fprintln(w)
		if err != nil {
			return err
		}
		if ev.Reply != nil && ev.Reply.UsedFallback {
			printWarning("answered by fallback model %s", ev.Reply.UsedModel)
		}
		return nil
	}

	var res chatResult
	if err := decodeJSON(resp, &res); err != nil {
		return err
	}
	switch {
	case res.Dev != nil:
		printOutcome(res.Dev.Success, res.Dev.Message)
	case res.Reply != nil:
		fmt.Fprintln(w, res.Reply.Response)
		if res.Reply.UsedFallback {
			printWarning("answered by fallback model %s", res.Reply.UsedModel)
		}
	}
	return nil
}

func chatREPL(ctx context.Context, client *apiClient, opts chatOptions) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyFile := filepath.Join(os.TempDir(), "agenttwo_chat_history")
	if cfg, err := config.Load(); err == nil {
		historyFile = filepath.Join(cfg.Storage.DataDir, "chat_history")
	}
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintln(os.Stderr, colorize(colorBold, "agenttwo chat")+"  (/do <request>, /model <name>, /quit)")
	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		switch {
		case input == "/quit" || input == "/exit":
			return nil
		case strings.HasPrefix(input, "/model "):
			opts.model = strings.TrimSpace(strings.TrimPrefix(input, "/model "))
			printSuccess("model set to %s", opts.model)
			continue
		case strings.HasPrefix(input, "/do "):
			if err := runRequest(ctx, client, strings.TrimPrefix(input, "/do ")); err != nil {
				printError("%v", err)
			}
			continue
		}

		if err := sendChat(ctx, client, input, opts, os.Stdout); err != nil {
			printError("%v", err)
		}
	}
}

// --- requests and corrections ---

var doCmd = &cobra.Command{
	Use:   "do <request>",
	Short: "Perform a plain-language request such as \"create a text file\"",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runRequest(cmd.Context(), client, strings.Join(args, " "))
	},
}

type requestResult struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

func runRequest(ctx context.Context, client *apiClient, message string) error {
	resp, err := client.post(ctx, "/v1/requests", map[string]string{"message": message})
	if err != nil {
		return err
	}
	var res requestResult
	if err := decodeJSON(resp, &res); err != nil {
		return err
	}
	printOutcome(res.Success, res.Message)
	printStatus("Intent", "%s (%.0f%%, %s)", res.Action, res.Confidence*100, res.Method)
	return nil
}

var correctCmd = &cobra.Command{
	Use:   "correct <request> <intent> [feedback]",
	Short: "Teach which intent a request should map to",
	Long: `Teach which intent a request should map to.

Example:
  agenttwo correct "pop open word" open_word_document`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{"originalRequest": args[0], "correctedIntent": args[1]}
		if len(args) == 3 {
			body["feedback"] = args[2]
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/v1/corrections", body)
		if err != nil {
			return err
		}
		var res struct {
			Message string `json:"message"`
		}
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		printSuccess("%s", res.Message)
		return nil
	},
}

// --- preferences ---

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change preferences",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current preferences as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getAndPrint(cmd.Context(), "/v1/preferences")
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a preference (" + strings.Join(memory.PreferenceKeys(), ", ") + ")",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		v, err := memory.ParsePreference(key, value)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.patch(cmd.Context(), "/v1/preferences", map[string]any{key: v})
		if err != nil {
			return err
		}
		var prefs memory.Preferences
		if err := decodeJSON(resp, &prefs); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsSetCmd)
}

// --- stats ---

var behaviorCmd = &cobra.Command{
	Use:   "behavior",
	Short: "Show chat usage statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/v1/behavior")
		if err != nil {
			return err
		}
		var b memory.Behavior
		if err := decodeJSON(resp, &b); err != nil {
			return err
		}
		printBehavior(b)
		return nil
	},
}

func printBehavior(b memory.Behavior) {
	printStatus("Messages", "%d", b.TotalMessages)
	printStatus("Avg response", "%.0f ms", b.AverageResponseTime)
	for _, t := range b.CommonTopics {
		printStatus("Topic", "%s (%d)", t.Name, t.Count)
	}
	hours := make([]int, 0, len(b.ActiveHours))
	for h := range b.ActiveHours {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	for _, h := range hours {
		printStatus(fmt.Sprintf("%02d:00", h), "%d", b.ActiveHours[h])
	}
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show file activity and learned intent counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getAndPrint(cmd.Context(), "/v1/intents/stats")
	},
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show what has been learned about how you phrase requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getAndPrint(cmd.Context(), "/v1/profile/insights")
	},
}

func getAndPrint(ctx context.Context, path string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	resp, err := client.get(ctx, path)
	if err != nil {
		return err
	}
	var v any
	if err := decodeJSON(resp, &v); err != nil {
		return err
	}
	return printJSON(os.Stdout, v)
}

// --- memory ---

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage stored memory",
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset preferences, usage statistics and chat history",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will reset preferences and delete chat history. Use --confirm to proceed.")
			return nil
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/v1/memory")
		if err != nil {
			return err
		}
		var res struct {
			ChatTurns int64 `json:"chatTurns"`
		}
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		printSuccess("Memory cleared (%d chat turns deleted)", res.ChatTurns)
		return nil
	},
}

func init() {
	memoryClearCmd.Flags().Bool("confirm", false, "confirm memory reset")
	memoryCmd.AddCommand(memoryClearCmd)
}

// --- dev tools ---

var execCmd = &cobra.Command{
	Use:   "exec <command>",
	Short: "Run an allow-listed command in the dev workspace (dev mode only)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/v1/dev/exec", map[string]string{"command": strings.Join(args, " ")})
		if err != nil {
			return err
		}
		var res struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
			Result  *struct {
				Stdout   string `json:"stdout"`
				Stderr   string `json:"stderr"`
				ExitCode int    `json:"exitCode"`
			} `json:"result"`
		}
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		if res.Result != nil {
			fmt.Fprint(os.Stdout, res.Result.Stdout)
			fmt.Fprint(os.Stderr, res.Result.Stderr)
		}
		if !res.Success {
			return errors.New(res.Error)
		}
		return nil
	},
}

var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Read or write files in the dev workspace",
}

var fileReadCmd = &cobra.Command{
	Use:   "read <path>",
	Short: "Print a workspace file (PDFs are converted to text)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/v1/files/read", map[string]string{"path": args[0]})
		if err != nil {
			return err
		}
		var res struct {
			Content   string `json:"content"`
			Truncated bool   `json:"truncated"`
		}
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, res.Content)
		if res.Truncated {
			printWarning("output truncated")
		}
		return nil
	},
}

var fileWriteCmd = &cobra.Command{
	Use:   "write <path>",
	Short: "Replace a workspace file with --content or stdin (a backup is kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, _ := cmd.Flags().GetString("content")
		if !cmd.Flags().Changed("content") {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			content = string(data)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/v1/files/write", map[string]string{"path": args[0], "content": content})
		if err != nil {
			return err
		}
		var res struct {
			Path       string `json:"path"`
			BackupPath string `json:"backupPath"`
		}
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		printSuccess("Wrote %s", res.Path)
		if res.BackupPath != "" {
			printStatus("Backup", "%s", res.BackupPath)
		}
		return nil
	},
}

func init() {
	fileWriteCmd.Flags().String("content", "", "new file content (default: read stdin)")
	fileCmd.AddCommand(fileReadCmd)
	fileCmd.AddCommand(fileWriteCmd)
}

var connectionCmd = &cobra.Command{
	Use:   "connection",
	Short: "Test the connection to Ollama and list installed models",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/v1/connection")
		if err != nil {
			return err
		}
		var res struct {
			Success   bool     `json:"success"`
			BaseURL   string   `json:"baseUrl"`
			Models    []string `json:"models"`
			LatencyMS int64    `json:"latencyMs"`
			Error     string   `json:"error"`
		}
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		if !res.Success {
			printError("Ollama at %s: %s", res.BaseURL, res.Error)
			return nil
		}
		printSuccess("Ollama at %s (%d ms)", res.BaseURL, res.LatencyMS)
		for _, m := range res.Models {
			printStatus("Model", "%s", m)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
