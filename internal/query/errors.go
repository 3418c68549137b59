package query

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
)

type ErrorKind string

const (
	KindTimeout       ErrorKind = "timeout"
	KindConnection    ErrorKind = "connection"
	KindConstraint    ErrorKind = "constraint"
	KindUnknownObject ErrorKind = "unknown_object"
	KindOther         ErrorKind = "other"
)

var kindMessages = map[ErrorKind]string{
	KindTimeout:       "The query took too long to execute. Try a more specific question.",
	KindConnection:    "Unable to reach the statistics database. Please try again later.",
	KindConstraint:    "The query violated a data constraint.",
	KindUnknownObject: "The query referenced a table or column that does not exist.",
	KindOther:         "The query could not be executed.",
}

// DatabaseError is an execution failure with a message that is safe to show users.
// The underlying engine error is kept for logging only.
type DatabaseError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DatabaseError) Error() string {
	return e.Message
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

func NewDatabaseError(kind ErrorKind, err error) *DatabaseError {
	message, ok := kindMessages[kind]
	if !ok {
		kind = KindOther
		message = kindMessages[KindOther]
	}
	return &DatabaseError{Kind: kind, Message: message, Err: err}
}

// Classify maps an execution error to a DatabaseError. Errors already
// classified by an engine are returned unchanged.
func Classify(err error) *DatabaseError {
	if err == nil {
		return nil
	}
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewDatabaseError(KindTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewDatabaseError(KindTimeout, err)
	}
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return NewDatabaseError(KindConnection, err)
	}
	return NewDatabaseError(classifyMessage(err.Error()), err)
}

func classifyMessage(message string) ErrorKind {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"),
		strings.Contains(lower, "canceling statement"), strings.Contains(lower, "interrupted"):
		return KindTimeout
	case strings.Contains(lower, "connection"), strings.Contains(lower, "connect"),
		strings.Contains(lower, "econnrefused"), strings.Contains(lower, "database is closed"):
		return KindConnection
	case strings.Contains(lower, "constraint"), strings.Contains(lower, "violates"):
		return KindConstraint
	case strings.Contains(lower, "does not exist"), strings.Contains(lower, "not found"),
		strings.Contains(lower, "unknown"), strings.Contains(lower, "no such"):
		return KindUnknownObject
	default:
		return KindOther
	}
}
