// Package boundarybytesctl is the command line client of the text-to-sql API.
package boundarybytesctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }

// Run executes one command and returns the process exit code: 0 on success,
// 1 when the request fails and 2 for usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	cmd := NewRootCmd(defaults)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		var usage usageError
		if errors.As(err, &usage) {
			return 2
		}
		return 1
	}
	return 0
}

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewRootCmd(defaults Options) *cobra.Command {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	var (
		baseURL string
		apiKey  string
		timeout time.Duration
	)
	newClient := func() *client {
		httpClient := defaults.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: timeout}
		}
		return &client{baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"), apiKey: strings.TrimSpace(apiKey), http: httpClient}
	}

	root := &cobra.Command{
		Use:           "boundarybytesctl",
		Short:         "Ask WPL cricket questions and manage query feedback",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError{fmt.Errorf("unknown command %q", args[0])}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return usageError{errors.New("a command is required")}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	root.PersistentFlags().StringVar(&baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "API base URL")
	root.PersistentFlags().StringVar(&apiKey, "api-key", defaults.APIKey, "API key for authenticated requests")
	root.PersistentFlags().DurationVar(&timeout, "timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 30s)")

	root.AddCommand(
		newAskCmd(newClient, stdout, stderr),
		newGetCmd("health", "Check API liveness", "/v1/health", newClient, stdout),
		newGetCmd("ready", "Check API readiness", "/v1/ready", newClient, stdout),
		newFeedbackCmd(newClient, stdout),
		newGetCmd("accuracy-stats", "Show reviewed query accuracy", "/v1/query-logs/accuracy-stats", newClient, stdout),
	)
	return root
}

func newGetCmd(use, short, path string, newClient func() *client, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := newClient().doJSON(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			printJSON(stdout, body)
			return nil
		},
	}
}

func newFeedbackCmd(newClient func() *client, stdout io.Writer) *cobra.Command {
	var (
		accurate bool
		note     string
	)
	cmd := &cobra.Command{
		Use:     "feedback <query-log-id>",
		Short:   "Mark an answered question as accurate or inaccurate",
		Example: "  boundarybytesctl feedback 6f1c2b4e-8d0a-4c3b-9f5e-1a2b3c4d5e6f --accurate=false --note \"wrong season\"",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("accurate") {
				return usageError{errors.New("--accurate is required")}
			}
			payload, err := json.Marshal(map[string]any{"is_accurate": accurate, "note": note})
			if err != nil {
				return err
			}
			path := "/v1/query-logs/" + strings.TrimSpace(args[0]) + "/accuracy"
			body, err := newClient().doJSON(cmd.Context(), http.MethodPost, path, payload)
			if err != nil {
				return err
			}
			printJSON(stdout, body)
			return nil
		},
	}
	cmd.Flags().BoolVar(&accurate, "accurate", false, "whether the generated answer was correct")
	cmd.Flags().StringVar(&note, "note", "", "optional reviewer note")
	return cmd
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func (c *client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return req, nil
}

func (c *client) doJSON(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func printJSON(w io.Writer, raw []byte) {
	if pretty, ok := prettyJSON(raw); ok {
		_, _ = fmt.Fprintln(w, pretty)
		return
	}
	if len(raw) > 0 {
		_, _ = fmt.Fprintln(w, string(raw))
	}
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
