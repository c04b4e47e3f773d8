package fetcher

import (
	"fmt"

	"github.com/corvid-labs/legalscout/pkg/failure"
)

type FetchErrorCause string

const (
	ErrCauseTimeout               FetchErrorCause = "timeout"
	ErrCauseConnectionFailed      FetchErrorCause = "connection failed"
	ErrCauseReadResponseBodyError FetchErrorCause = "failed to read response body"
	ErrCauseContentTypeInvalid    FetchErrorCause = "non-HTML content"
	ErrCauseBodyTooLarge          FetchErrorCause = "body exceeds byte cap"
	ErrCauseRedirectLimitExceeded FetchErrorCause = "reached redirect limit"
	ErrCauseRedirectCycle         FetchErrorCause = "redirect cycle"
	ErrCauseSchemeDowngrade       FetchErrorCause = "cross-scheme downgrade"
	ErrCauseHttpClient            FetchErrorCause = "4xx"
	ErrCauseHttpServer            FetchErrorCause = "5xx"
	ErrCauseTooManyRequests       FetchErrorCause = "too many requests"
	ErrCauseBlockedByPolicy       FetchErrorCause = "blocked by policy"
	ErrCauseUnrenderable          FetchErrorCause = "unrenderable"
	ErrCauseNoArchiveSnapshot     FetchErrorCause = "no archive snapshot"
)

type FetchError struct {
	Message    string
	Retryable  bool
	Cause      FetchErrorCause
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetcher error: %s: %s", e.Cause, e.Message)
}

func (e *FetchError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *FetchError) IsRetryable() bool {
	return e.Retryable
}

// FailureCause maps fetcher-local error semantics onto the pipeline-wide
// taxonomy the orchestrator derives terminal statuses from.
func (e *FetchError) FailureCause() failure.Cause {
	switch e.Cause {
	case ErrCauseTimeout, ErrCauseConnectionFailed, ErrCauseRedirectLimitExceeded,
		ErrCauseRedirectCycle, ErrCauseNoArchiveSnapshot:
		return failure.CauseConnectionFailure
	case ErrCauseHttpClient, ErrCauseTooManyRequests:
		return failure.CauseHttpClientError
	case ErrCauseHttpServer:
		return failure.CauseHttpServerError
	case ErrCauseUnrenderable:
		return failure.CauseRenderFailure
	case ErrCauseBlockedByPolicy, ErrCauseSchemeDowngrade:
		return failure.CauseBlockedByRobots
	case ErrCauseContentTypeInvalid, ErrCauseBodyTooLarge, ErrCauseReadResponseBodyError:
		return failure.CauseExtractionEmpty
	default:
		return failure.CauseConnectionFailure
	}
}
