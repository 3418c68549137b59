package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPlayerNotFound        = errors.New("player not found")
	ErrNoStatistics          = errors.New("player found but no matching statistics")
	ErrInvalidSequence       = errors.New("expected up to two player lookups followed by exactly one main query")
	ErrUnresolvedPlaceholder = errors.New("query still contains an unresolved player placeholder")
)

// UnsafeSQLError is a statement rejected by the safety validator.
type UnsafeSQLError struct {
	Stage  string
	Errors []string
}

func (e *UnsafeSQLError) Error() string {
	return fmt.Sprintf("%s query failed validation: %s", e.Stage, strings.Join(e.Errors, "; "))
}

// GenerationError wraps failures of the text-generation step.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
