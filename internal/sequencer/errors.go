package sequencer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes sequencing errors.
type ErrorCode string

const (
	// ErrCodeUnrecognizedStatement indicates derived DDL output contains a
	// statement the parser could not recognize.
	ErrCodeUnrecognizedStatement ErrorCode = "UNRECOGNIZED_STATEMENT"

	// ErrCodeDdlProblem indicates derived DDL output carries a problem
	// marker.
	ErrCodeDdlProblem ErrorCode = "DDL_PROBLEM"

	// ErrCodeInvocationFailed indicates the derivation engine returned an
	// error. These are logged, never reported to listeners.
	ErrCodeInvocationFailed ErrorCode = "INVOCATION_FAILED"

	// ErrCodeBatchFailed indicates an unexpected failure while processing
	// a batch.
	ErrCodeBatchFailed ErrorCode = "BATCH_FAILED"
)

// SequencingError is the error reported to listeners when a batch fails.
type SequencingError struct {
	Code    ErrorCode
	Message string

	// Token is the correlation token of the failing batch.
	Token string

	// Kind and Path identify the run involved, when there was one.
	Kind Kind
	Path string

	// Detail carries the offending raw text for structural errors.
	Detail string

	Err error
}

// Error implements the error interface. Detail, when present, follows on
// its own line so the raw text stays intact.
func (e *SequencingError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Path != "" {
		fmt.Fprintf(&b, " (path=%s)", e.Path)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Detail != "" {
		b.WriteString("\n")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *SequencingError) Unwrap() error {
	return e.Err
}

// IsStructuralError reports whether err is a DDL validation failure.
// Uses errors.As to handle wrapped errors.
func IsStructuralError(err error) bool {
	var se *SequencingError
	if errors.As(err, &se) {
		return se.Code == ErrCodeUnrecognizedStatement || se.Code == ErrCodeDdlProblem
	}
	return false
}

// asSequencingError converts any batch failure into a SequencingError
// stamped with the batch token.
func asSequencingError(err error, token string) *SequencingError {
	var se *SequencingError
	if errors.As(err, &se) {
		if se.Token == "" {
			se.Token = token
		}
		return se
	}
	return &SequencingError{
		Code:    ErrCodeBatchFailed,
		Message: "batch processing failed",
		Token:   token,
		Err:     err,
	}
}
