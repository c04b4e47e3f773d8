package scheduler

import (
	"github.com/corvid-labs/legalscout/internal/store"
	"github.com/corvid-labs/legalscout/pkg/failure"
)

// RunExecution is the terminal summary of one orchestrator run.
type RunExecution struct {
	Leased    int
	Completed int
	Failed    int
	Deferred  int
}

// statusFor maps the pipeline error taxonomy onto terminal queue statuses.
func statusFor(cause failure.Cause) store.Status {
	switch cause {
	case failure.CauseDnsFailure:
		return store.StatusFailedDNS
	case failure.CauseBlockedByRobots:
		return store.StatusBlockedRobots
	case failure.CauseBlockedByBlacklist:
		return store.StatusBlacklisted
	case failure.CauseParkedDomain:
		return store.StatusParked
	case failure.CauseHttpClientError:
		return store.StatusFailedHTTP4xx
	case failure.CauseHttpServerError:
		return store.StatusFailedHTTP5xx
	case failure.CauseExtractionEmpty, failure.CauseValidationRejected:
		return store.StatusFailedExtraction
	case failure.CauseConnectionFailure, failure.CauseRenderFailure, failure.CauseCancelled:
		return store.StatusFailedConnection
	default:
		return store.StatusFailedConnection
	}
}
