package question

import (
	"errors"
	"strings"
	"testing"
)

func TestParseAcceptsValidQuestion(t *testing.T) {
	got, err := Parse([]byte(`{"question":"Who are the top 5 run scorers in WPL 2023?"}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got != "Who are the top 5 run scorers in WPL 2023?" {
		t.Fatalf("Parse() = %q", got)
	}
}

func TestParseRejectsInvalidBodies(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "empty body", body: "", message: "request body is required"},
		{name: "not json", body: "question=hi", message: "must be a JSON object"},
		{name: "json array", body: `["hi"]`, message: "must be a JSON object"},
		{name: "null", body: `null`, message: "must be a JSON object"},
		{name: "missing field", body: `{"q":"hi"}`, message: "question is required"},
		{name: "wrong type", body: `{"question":42}`, message: "must be a string"},
		{name: "blank", body: `{"question":"   "}`, message: "cannot be empty"},
		{name: "too long", body: `{"question":"` + strings.Repeat("a", MaxLength+1) + `"}`, message: "500 characters"},
		{name: "bad chars", body: `{"question":"runs; DROP TABLE wpl_match"}`, message: "invalid characters"},
		{name: "angle brackets", body: `{"question":"<script>"}`, message: "invalid characters"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.body))
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Parse() error = %v, want *ValidationError", err)
			}
			if !strings.Contains(vErr.Message, tc.message) {
				t.Fatalf("message = %q, want substring %q", vErr.Message, tc.message)
			}
		})
	}
}

func TestValidateFirstRuleWins(t *testing.T) {
	// Both too long and containing invalid characters: length is checked first.
	err := Validate(strings.Repeat("#", MaxLength+1))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Validate() error = %v", err)
	}
	if !strings.Contains(vErr.Message, "characters or fewer") {
		t.Fatalf("message = %q", vErr.Message)
	}
}

func TestValidateCountsRunesNotBytes(t *testing.T) {
	if err := Validate(strings.Repeat("a", MaxLength)); err != nil {
		t.Fatalf("Validate() at limit error = %v", err)
	}
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"  How many   runs did\tKaur score?  ": "How many runs did Kaur score?",
		"runs; DROP TABLE x":                   "runs DROP TABLE x",
		"strike rate > 150":                    "strike rate 150",
		"a\u00a0b":                             "ab",
		"":                                     "",
		" \n\t ":                               "",
		"O'Brien's 50% & 4s (2024)":            "O'Brien's 50% & 4s (2024)",
	}
	for in, want := range tests {
		if got := Sanitize(in); got != want {
			t.Fatalf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"  Who   scored <b>most</b> runs?? ",
		"\x00\x01 runs   by  Mandhana",
		"; -- '' OR 1=1",
		"ümlaut  ünd\r\nnewlines",
		strings.Repeat(" x ", 40),
	}
	for _, in := range inputs {
		once := Sanitize(in)
		if twice := Sanitize(once); twice != once {
			t.Fatalf("Sanitize not idempotent for %q: %q then %q", in, once, twice)
		}
		if once != "" && Validate(once) != nil {
			t.Fatalf("Sanitize(%q) = %q does not pass Validate", in, once)
		}
	}
}
