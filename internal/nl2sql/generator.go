package nl2sql

import (
	"context"
	"errors"
)

var (
	ErrGeneratorNotConfigured = errors.New("text generation credentials are not configured")
	ErrEmptyResponse          = errors.New("model returned an empty response")
	ErrNoStatementsParsed     = errors.New("no SQL statements could be parsed from the model response")
	ErrMalformedLookupQuery   = errors.New("player lookup query must use ILIKE matching with ORDER BY CASE prioritisation")
	ErrNonSelectInSequence    = errors.New("every statement in a multi-statement response must be a SELECT")
)

// Prompt is one request to a text-generation model.
type Prompt struct {
	System      string
	User        string
	Temperature float64
}

// TextGenerator turns a prompt into free text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}
