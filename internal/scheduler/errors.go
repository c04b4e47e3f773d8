package scheduler

import "errors"

// Sentinel errors the CLI maps onto process exit codes.
var (
	ErrStorageUnavailable = errors.New("queue store unavailable")
	ErrHaltedByBreaker    = errors.New("halted by circuit breaker beyond recovery budget")
)
