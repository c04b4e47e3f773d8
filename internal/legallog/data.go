package legallog

import (
	"time"

	"github.com/corvid-labs/legalscout/pkg/failure"
)

/*
Diagnostic event stream for the crawl pipeline.

Rules:
 - Events are observability-only.
 - They must never be used to derive retry, continuation, or abort decisions.
 - Pipeline packages emit events through the Sink interface and never
   import the logging backend directly.

Allowed attribute values:
 - Primitive values
 - Timestamps
 - URLs and hosts (as strings)
 - Status codes
 - Durations
 - Identifiers (domain, run ID)
*/

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrURL        AttributeKey = "url"
	AttrHost       AttributeKey = "host"
	AttrDomain     AttributeKey = "domain"
	AttrStatus     AttributeKey = "status"
	AttrHTTPStatus AttributeKey = "http_status"
	AttrField      AttributeKey = "field"
	AttrTier       AttributeKey = "tier"
	AttrRunID      AttributeKey = "run_id"
	AttrReason     AttributeKey = "reason"
	AttrCount      AttributeKey = "count"
	AttrMessage    AttributeKey = "message"
	AttrWritePath  AttributeKey = "write_path"
)

// Sink receives diagnostic events from every pipeline stage.
type Sink interface {
	RecordEvent(
		observedAt time.Time,
		packageName string,
		action string,
		message string,
		attrs []Attribute,
	)
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause failure.Cause,
		errorString string,
		attrs []Attribute,
	)
	RecordFetch(
		fetchUrl string,
		httpStatus int,
		duration time.Duration,
		tier string,
		retryCount int,
	)
}

// RunFinalizer records the terminal, derived summary of a completed run.
// It is computed by the orchestrator after run termination, recorded exactly
// once, and must not influence scheduling, retries, or run termination.
type RunFinalizer interface {
	RecordFinalRunStats(
		leased int,
		completed int,
		failed int,
		deferred int,
		duration time.Duration,
	)
}
