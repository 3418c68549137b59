package pipeline

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/boundarybytes/boundarybytes/internal/nl2sql"
	"github.com/boundarybytes/boundarybytes/internal/query"
	"github.com/boundarybytes/boundarybytes/internal/question"
)

const (
	CodeValidation = "VALIDATION_ERROR"
	CodeAI         = "AI_ERROR"
	CodeSQL        = "SQL_ERROR"
	CodeDatabase   = "DATABASE_ERROR"
	CodeRateLimit  = "RATE_LIMIT_ERROR"
)

// Failure is the user-facing form of a pipeline error.
type Failure struct {
	Code        string
	Status      int
	Message     string
	Suggestions []string
	Tips        []string
}

var exampleQuestions = []string{
	"Who are the top 5 run scorers in WPL 2023?",
	"Which bowler has the best economy rate in death overs?",
	"How many sixes did Harmanpreet Kaur hit?",
	"Which team won the most matches in 2024?",
}

// Classify maps any pipeline error to a Failure with a sanitised message.
func Classify(err error) Failure {
	var (
		validationErr *question.ValidationError
		unsafeErr     *UnsafeSQLError
		generationErr *GenerationError
		dbErr         *query.DatabaseError
	)
	switch {
	case errors.As(err, &validationErr):
		return Failure{
			Code:        CodeValidation,
			Status:      http.StatusBadRequest,
			Message:     validationErr.Message,
			Suggestions: exampleQuestions[:2],
			Tips:        []string{"Keep questions under 500 characters.", "Use letters, numbers and basic punctuation only."},
		}
	case errors.Is(err, nl2sql.ErrGeneratorNotConfigured):
		return Failure{
			Code:    CodeAI,
			Status:  http.StatusServiceUnavailable,
			Message: "The AI service is not configured. Please contact the administrator.",
		}
	case errors.As(err, &unsafeErr):
		return Failure{
			Code:        CodeSQL,
			Status:      http.StatusBadRequest,
			Message:     SanitizeMessage("Generated query failed safety validation: " + strings.Join(unsafeErr.Errors, "; ")),
			Suggestions: exampleQuestions,
			Tips:        []string{"Try rephrasing your question.", "Ask about runs, wickets, teams or matches."},
		}
	case errors.Is(err, nl2sql.ErrMalformedLookupQuery), errors.Is(err, nl2sql.ErrNonSelectInSequence),
		errors.Is(err, ErrInvalidSequence), errors.Is(err, ErrUnresolvedPlaceholder):
		return Failure{
			Code:        CodeSQL,
			Status:      http.StatusBadRequest,
			Message:     SanitizeMessage("Generated query has an invalid structure: " + err.Error()),
			Suggestions: exampleQuestions,
			Tips:        []string{"Try rephrasing your question.", "Mention one player at a time."},
		}
	case errors.As(err, &generationErr):
		return generationFailure(generationErr.Err)
	case errors.Is(err, ErrPlayerNotFound):
		return Failure{
			Code:        CodeDatabase,
			Status:      http.StatusNotFound,
			Message:     "Could not find a player matching the name in your question.",
			Suggestions: []string{"How many runs did Mandhana score?", "What is Ecclestone's economy rate?"},
			Tips:        []string{"Try using only the player's surname.", "Check the spelling of the player's name."},
		}
	case errors.Is(err, ErrNoStatistics):
		return Failure{
			Code:        CodeDatabase,
			Status:      http.StatusNotFound,
			Message:     SanitizeMessage("Found the player but no statistics matched your question (" + strings.TrimPrefix(err.Error(), ErrNoStatistics.Error()+" for ") + ")."),
			Suggestions: exampleQuestions[:2],
			Tips:        []string{"Try a different season or a broader question.", "Check that the player played in the matches you asked about."},
		}
	case errors.As(err, &dbErr):
		status := http.StatusInternalServerError
		switch dbErr.Kind {
		case query.KindTimeout:
			status = http.StatusRequestTimeout
		case query.KindConnection:
			status = http.StatusServiceUnavailable
		}
		return Failure{
			Code:        CodeDatabase,
			Status:      status,
			Message:     SanitizeMessage(dbErr.Message),
			Suggestions: exampleQuestions[:2],
			Tips:        []string{"Try a simpler or more specific question."},
		}
	default:
		return internalFailure()
	}
}

func generationFailure(err error) Failure {
	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "rate limit"), strings.Contains(text, "quota"):
		return Failure{
			Code:    CodeRateLimit,
			Status:  http.StatusTooManyRequests,
			Message: "The AI service is receiving too many requests. Please wait a moment and try again.",
			Tips:    []string{"Wait a few seconds before retrying."},
		}
	case strings.Contains(text, "unavailable"), strings.Contains(text, "service"):
		return Failure{
			Code:    CodeAI,
			Status:  http.StatusServiceUnavailable,
			Message: "The AI service is temporarily unavailable. Please try again later.",
		}
	default:
		return Failure{
			Code:        CodeAI,
			Status:      http.StatusInternalServerError,
			Message:     "Failed to generate a SQL query for your question.",
			Suggestions: exampleQuestions,
			Tips:        []string{"Try rephrasing your question."},
		}
	}
}

func internalFailure() Failure {
	return Failure{
		Code:    CodeDatabase,
		Status:  http.StatusInternalServerError,
		Message: "An unexpected error occurred while processing your question.",
		Tips:    []string{"Please try again."},
	}
}

var messageRedactions = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.\-]*://\S+`), "[redacted]"},
	{regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?::\d+)?\b`), "[redacted]"},
	{regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|token|api[_-]?key|user(?:name)?|host|dbname)\s*[=:]\s*\S+`), "$1=[redacted]"},
	{regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{8,}`), "[redacted]"},
}

// SanitizeMessage strips addresses, connection strings and credential-like pairs.
func SanitizeMessage(message string) string {
	for _, r := range messageRedactions {
		message = r.pattern.ReplaceAllString(message, r.replace)
	}
	return message
}
