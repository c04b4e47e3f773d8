package store

import (
	"fmt"

	"github.com/corvid-labs/legalscout/pkg/failure"
)

type StoreErrorCause string

const (
	ErrCauseBackendUnavailable StoreErrorCause = "backend unavailable"
	ErrCauseMigrationFailed    StoreErrorCause = "migration failed"
	ErrCauseNotProcessing      StoreErrorCause = "row not in PROCESSING"
	ErrCauseUnknownDomain      StoreErrorCause = "unknown domain"
	ErrCauseBadTransition      StoreErrorCause = "illegal status transition"
)

type StoreError struct {
	Message   string
	Retryable bool
	Cause     StoreErrorCause
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: %s: %s", e.Cause, e.Message)
}

func (e *StoreError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *StoreError) IsRetryable() bool {
	return e.Retryable
}

// Unavailable reports whether err means the backend itself is unreachable,
// which obliges the orchestrator to halt new leases (exit code 3 path).
func Unavailable(err error) bool {
	se, ok := err.(*StoreError)
	return ok && se.Cause == ErrCauseBackendUnavailable
}
