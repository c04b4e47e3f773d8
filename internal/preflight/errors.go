package preflight

import (
	"fmt"

	"github.com/corvid-labs/legalscout/pkg/failure"
)

type PreflightErrorCause string

const (
	ErrCauseNXDomain    PreflightErrorCause = "nxdomain"
	ErrCauseServFail    PreflightErrorCause = "servfail"
	ErrCauseDNSTimeout  PreflightErrorCause = "dns timeout"
	ErrCauseNoResolver  PreflightErrorCause = "no resolver configured"
	ErrCauseBlacklisted PreflightErrorCause = "blacklisted"
)

type PreflightError struct {
	Message   string
	Retryable bool
	Cause     PreflightErrorCause
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("preflight error: %s: %s", e.Cause, e.Message)
}

func (e *PreflightError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *PreflightError) IsRetryable() bool {
	return e.Retryable
}
