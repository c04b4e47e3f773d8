package isolate

import (
	"fmt"

	"github.com/corvid-labs/legalscout/pkg/failure"
)

type IsolationErrorCause string

const (
	ErrCauseUnparseableHTML IsolationErrorCause = "unparseable HTML"
	ErrCauseEmptyContent    IsolationErrorCause = "no content after isolation"
)

type IsolationError struct {
	Message   string
	Retryable bool
	Cause     IsolationErrorCause
}

func (e *IsolationError) Error() string {
	return fmt.Sprintf("isolation error: %s: %s", e.Cause, e.Message)
}

func (e *IsolationError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *IsolationError) IsRetryable() bool {
	return e.Retryable
}
