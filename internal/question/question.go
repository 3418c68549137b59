package question

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const MaxLength = 500

var allowedPattern = regexp.MustCompile(`^[A-Za-z0-9\s?.,\-'"()/:%+&]+$`)

// ValidationError describes the first rule a request body violated.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Parse validates a raw request body and returns the question it carries.
func Parse(body []byte) (string, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", &ValidationError{Message: "request body is required"}
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		return "", &ValidationError{Message: "request body must be a JSON object"}
	}
	raw, ok := payload["question"]
	if !ok {
		return "", &ValidationError{Field: "question", Message: "question is required"}
	}
	var q string
	if err := json.Unmarshal(raw, &q); err != nil {
		return "", &ValidationError{Field: "question", Message: "question must be a string"}
	}
	return q, Validate(q)
}

func Validate(q string) error {
	if strings.TrimSpace(q) == "" {
		return &ValidationError{Field: "question", Message: "question cannot be empty"}
	}
	if utf8.RuneCountInString(q) > MaxLength {
		return &ValidationError{Field: "question", Message: fmt.Sprintf("question must be %d characters or fewer", MaxLength)}
	}
	if !allowedPattern.MatchString(q) {
		return &ValidationError{Field: "question", Message: "question contains invalid characters"}
	}
	return nil
}

// Sanitize drops characters outside the allow-list, collapses whitespace and trims.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case strings.ContainsRune(" \t\n\f\r", r):
			pendingSpace = true
		case allowedRune(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allowedRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune(`?.,-'"()/:%+&`, r)
}
