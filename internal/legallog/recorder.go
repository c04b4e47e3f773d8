package legallog

import (
	"time"

	"go.uber.org/zap"

	"github.com/corvid-labs/legalscout/pkg/failure"
)

// ZapRecorder is the production Sink, writing structured events through a
// shared zap logger. One recorder serves the whole process; it is safe for
// concurrent use because zap is.
type ZapRecorder struct {
	logger *zap.SugaredLogger
	runID  string
}

func NewZapRecorder(logger *zap.Logger, runID string) *ZapRecorder {
	return &ZapRecorder{
		logger: logger.Sugar(),
		runID:  runID,
	}
}

// NewDevelopmentRecorder builds a recorder on a zap development logger.
// Intended for the CLI entrypoint; library code receives the Sink instead.
func NewDevelopmentRecorder(runID string) (*ZapRecorder, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return NewZapRecorder(logger, runID), nil
}

func (r *ZapRecorder) RecordEvent(
	observedAt time.Time,
	packageName string,
	action string,
	message string,
	attrs []Attribute,
) {
	r.logger.Infow(message, r.fields(observedAt, packageName, action, attrs)...)
}

func (r *ZapRecorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause failure.Cause,
	errorString string,
	attrs []Attribute,
) {
	fields := r.fields(observedAt, packageName, action, attrs)
	fields = append(fields, "cause", cause.String())
	r.logger.Errorw(errorString, fields...)
}

func (r *ZapRecorder) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	tier string,
	retryCount int,
) {
	r.logger.Debugw("fetch",
		"run_id", r.runID,
		"url", fetchUrl,
		"http_status", httpStatus,
		"duration_ms", duration.Milliseconds(),
		"tier", tier,
		"retries", retryCount,
	)
}

func (r *ZapRecorder) RecordFinalRunStats(
	leased int,
	completed int,
	failed int,
	deferred int,
	duration time.Duration,
) {
	r.logger.Infow("run finished",
		"run_id", r.runID,
		"leased", leased,
		"completed", completed,
		"failed", failed,
		"deferred", deferred,
		"duration_ms", duration.Milliseconds(),
	)
}

func (r *ZapRecorder) Sync() {
	_ = r.logger.Sync()
}

func (r *ZapRecorder) fields(
	observedAt time.Time,
	packageName string,
	action string,
	attrs []Attribute,
) []interface{} {
	fields := make([]interface{}, 0, 2*(len(attrs)+4))
	fields = append(fields,
		"run_id", r.runID,
		"observed_at", observedAt.Format(time.RFC3339Nano),
		"package", packageName,
		"action", action,
	)
	for _, attr := range attrs {
		fields = append(fields, string(attr.Key), attr.Value)
	}
	return fields
}

// NopSink discards every event. Tests that do not assert on diagnostics
// inject this instead of building a logger.
type NopSink struct{}

func (NopSink) RecordEvent(time.Time, string, string, string, []Attribute)                 {}
func (NopSink) RecordError(time.Time, string, string, failure.Cause, string, []Attribute) {}
func (NopSink) RecordFetch(string, int, time.Duration, string, int)                        {}
func (NopSink) RecordFinalRunStats(int, int, int, int, time.Duration)                      {}
