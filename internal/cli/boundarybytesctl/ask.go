package boundarybytesctl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/boundarybytes/boundarybytes/internal/pipeline"
)

const maxEventBytes = 8 << 20

func newAskCmd(newClient func() *client, stdout, stderr io.Writer) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question and stream the answer",
		Example: `  boundarybytesctl ask "Who are the top 5 run scorers in WPL 2023?"
  boundarybytesctl ask --quiet How many wickets did Kerr take`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usageError{errors.New("a question is required")}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			status := stderr
			if quiet {
				status = io.Discard
			}
			return newClient().ask(cmd.Context(), question, stdout, status)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress status events")
	return cmd
}

type sseEvent struct {
	name string
	data string
}

func (c *client) ask(ctx context.Context, question string, stdout, status io.Writer) error {
	payload, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/text-to-sql", payload)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	terminal := false
	err = readEvents(resp.Body, func(ev sseEvent) error {
		switch ev.name {
		case pipeline.EventStatus:
			var p pipeline.StatusPayload
			if err := json.Unmarshal([]byte(ev.data), &p); err != nil {
				return fmt.Errorf("decode status event: %w", err)
			}
			_, _ = fmt.Fprintf(status, "[%s] %s\n", p.Stage, p.Message)
		case pipeline.EventResult:
			var p pipeline.ResultPayload
			if err := json.Unmarshal([]byte(ev.data), &p); err != nil {
				return fmt.Errorf("decode result event: %w", err)
			}
			terminal = true
			printResult(stdout, status, p)
		case pipeline.EventError:
			var p pipeline.ErrorPayload
			if err := json.Unmarshal([]byte(ev.data), &p); err != nil {
				return fmt.Errorf("decode error event: %w", err)
			}
			terminal = true
			for _, s := range p.Error.Suggestions {
				_, _ = fmt.Fprintf(status, "suggestion: %s\n", s)
			}
			for _, tip := range p.Error.Tips {
				_, _ = fmt.Fprintf(status, "tip: %s\n", tip)
			}
			return fmt.Errorf("%s (%s, status %d)", p.Error.Message, p.Error.Code, p.Status)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !terminal {
		return errors.New("stream ended without a result")
	}
	return nil
}

func printResult(stdout, status io.Writer, p pipeline.ResultPayload) {
	data, err := json.MarshalIndent(p.Data, "", "  ")
	if err != nil {
		data = []byte("[]")
	}
	_, _ = fmt.Fprintln(stdout, string(data))
	_, _ = fmt.Fprintf(status, "rows: %d  time: %dms\n", p.Metadata.RowCount, p.Metadata.ExecutionTime)
	_, _ = fmt.Fprintf(status, "sql: %s\n", p.Metadata.GeneratedSQL)
	if p.Metadata.QueryLogID != "" {
		_, _ = fmt.Fprintf(status, "query log: %s\n", p.Metadata.QueryLogID)
	}
}

// readEvents decodes a text/event-stream body and calls fn for every complete
// event. Multiple data lines are joined with newlines.
func readEvents(r io.Reader, fn func(sseEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxEventBytes)

	var (
		current sseEvent
		data    []string
	)
	dispatch := func() error {
		if current.name == "" && len(data) == 0 {
			return nil
		}
		if current.name == "" {
			current.name = "message"
		}
		current.data = strings.Join(data, "\n")
		err := fn(current)
		current, data = sseEvent{}, nil
		return err
	}
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			current.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	return dispatch()
}
