package boundarybytesctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRunHealthCommand(t *testing.T) {
	var gotMethod, gotPath, gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "--api-key", "k1", "health"}, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotMethod != http.MethodGet || gotPath != "/v1/health" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotAPIKey != "k1" {
		t.Fatalf("api key = %q", gotAPIKey)
	}
	if !strings.Contains(stdout.String(), `"status": "ok"`) {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestRunFeedbackCommand(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"id":"abc","is_accurate":false}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"--base-url", srv.URL, "feedback", "abc", "--accurate=false", "--note", "wrong season",
	}, Options{Stderr: &stderr})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotPath != "/v1/query-logs/abc/accuracy" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody["is_accurate"] != false || gotBody["note"] != "wrong season" {
		t.Fatalf("body = %#v", gotBody)
	}
}

func TestRunFeedbackRequiresAccurateFlag(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", "http://127.0.0.1:1", "feedback", "abc"}, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "--accurate") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error_code":"UNAUTHORIZED"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "accuracy-stats"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "http 401") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"unknown"},
		{"--bogus", "health"},
		{"ask"},
		{"health", "extra"},
	} {
		if code := Run(context.Background(), args, Options{}); code != 2 {
			t.Fatalf("Run(%q) exit code = %d, want 2", args, code)
		}
	}
}

func sseServer(t *testing.T, frames string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-sql" || r.Method != http.MethodPost {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["question"] != "Who scored most runs?" {
			t.Errorf("question = %q", body["question"])
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, frames)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAskPrintsResult(t *testing.T) {
	srv := sseServer(t, "event: status\ndata: {\"message\":\"Generating SQL query...\",\"stage\":\"generating\"}\n\n"+
		"event: result\ndata: {\"data\":[{\"striker\":\"HC Kaur\",\"runs\":281}],\"metadata\":{\"rowCount\":1,\"executionTime\":12,\"generatedSql\":\"SELECT 1\",\"queryLogId\":\"log-1\"}}\n\n")

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "ask", "Who", "scored", "most", "runs?"}, Options{
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), `"striker": "HC Kaur"`) {
		t.Fatalf("stdout = %q", stdout.String())
	}
	for _, want := range []string{"[generating] Generating SQL query...", "rows: 1", "query log: log-1"} {
		if !strings.Contains(stderr.String(), want) {
			t.Fatalf("stderr missing %q: %q", want, stderr.String())
		}
	}
}

func TestAskReturnsErrorEvent(t *testing.T) {
	srv := sseServer(t, "event: error\ndata: {\"error\":{\"message\":\"Player not found\",\"code\":\"SQL_ERROR\",\"suggestions\":[\"Try the surname\"]},\"status\":404}\n\n")

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "ask", "Who scored most runs?"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	for _, want := range []string{"suggestion: Try the surname", "Player not found (SQL_ERROR, status 404)"} {
		if !strings.Contains(stderr.String(), want) {
			t.Fatalf("stderr missing %q: %q", want, stderr.String())
		}
	}
}

func TestAskFailsWhenStreamEndsEarly(t *testing.T) {
	srv := sseServer(t, "event: status\ndata: {\"message\":\"Executing query...\",\"stage\":\"executing\"}\n\n")
	code := Run(context.Background(), []string{"--base-url", srv.URL, "ask", "-q", "Who scored most runs?"}, Options{})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestReadEventsJoinsDataLines(t *testing.T) {
	var got []sseEvent
	err := readEvents(strings.NewReader(": comment\nevent: status\ndata: a\ndata: b\n\ndata: tail"), func(ev sseEvent) error {
		got = append(got, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("readEvents() error = %v", err)
	}
	if len(got) != 2 || got[0] != (sseEvent{name: "status", data: "a\nb"}) || got[1] != (sseEvent{name: "message", data: "tail"}) {
		t.Fatalf("events = %#v", got)
	}
}
