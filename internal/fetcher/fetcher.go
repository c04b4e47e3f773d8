package fetcher

import (
	"context"

	"github.com/corvid-labs/legalscout/internal/preflight"
	"github.com/corvid-labs/legalscout/pkg/failure"
	"github.com/corvid-labs/legalscout/pkg/retry"
)

type Fetcher interface {
	Fetch(
		ctx context.Context,
		fetchParam FetchParam,
		policy preflight.HostPolicy,
		retryParam retry.RetryParam,
	) (FetchResult, failure.ClassifiedError)
}
