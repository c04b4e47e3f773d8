package scheduler

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/corvid-labs/legalscout/internal/assemble"
	"github.com/corvid-labs/legalscout/internal/extract"
	"github.com/corvid-labs/legalscout/internal/fetcher"
	"github.com/corvid-labs/legalscout/internal/legallog"
	"github.com/corvid-labs/legalscout/internal/preflight"
	"github.com/corvid-labs/legalscout/internal/store"
	"github.com/corvid-labs/legalscout/internal/validate"
	"github.com/corvid-labs/legalscout/pkg/failure"
	"github.com/corvid-labs/legalscout/pkg/retry"
	"github.com/corvid-labs/legalscout/pkg/timeutil"
	"github.com/corvid-labs/legalscout/pkg/urlutil"
)

// errBudgetFailure marks outcomes that feed the circuit breaker's failure
// count: infrastructure-shaped failures, not policy outcomes.
var errBudgetFailure = errors.New("entry failed against error budget")

// processEntry runs the full pipeline for one leased entry under the
// per-entry deadline. The returned error is only for the error budget and
// storage propagation; every queue outcome is committed in here.
func (s *Scheduler) processEntry(parent context.Context, entry store.QueueEntry) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.PerEntryDeadline())
	defer cancel()

	decision, checkErr := s.checker.Check(entry.Domain)
	if checkErr != nil {
		// pre-flight infrastructure failure: relinquish, let TTL retry
		return s.release(parent, entry.Domain)
	}

	if !decision.Allowed {
		status := statusForDecision(decision.Reason)
		if err := s.fail(ctx, entry.Domain, status); err != nil {
			return err
		}
		if status == store.StatusFailedDNS || status == store.StatusFailedConnection {
			return errBudgetFailure
		}
		return nil
	}

	s.rateLimiter.SetCrawlDelay(decision.Policy.Host, decision.Policy.MinDelay)

	homeURL := url.URL{Scheme: "https", Host: decision.Policy.Host, Path: "/"}
	retryParam := s.retryParam()

	homeResult, homeErr := s.htmlFetcher.Fetch(ctx, fetcher.NewFetchParam(homeURL, decision.Policy.UserAgent), decision.Policy, retryParam)
	if homeErr != nil {
		if stopCancelled(parent) {
			return s.release(parent, entry.Domain)
		}
		if ctx.Err() != nil {
			// per-entry deadline: most specific failure observed wins
			if err := s.fail(parent, entry.Domain, statusFor(causeOfError(homeErr))); err != nil {
				return err
			}
			return errBudgetFailure
		}
		status := statusFor(causeOfError(homeErr))
		if err := s.fail(ctx, entry.Domain, status); err != nil {
			return err
		}
		if status == store.StatusFailedConnection || status == store.StatusFailedHTTP5xx {
			return errBudgetFailure
		}
		return nil
	}

	if looksParked(homeResult.Body()) {
		return s.fail(ctx, entry.Domain, store.StatusParked)
	}

	legalURLs := s.discoverer.Discover(homeURL, homeResult.Body())
	if len(legalURLs) == 0 {
		// no legal link found: the home page itself is the legal source
		legalURLs = []url.URL{homeURL}
	}

	for _, legalURL := range legalURLs {
		pageResult := homeResult
		if legalURL.String() != homeURL.String() {
			fetched, fetchErr := s.htmlFetcher.Fetch(ctx, fetcher.NewFetchParam(legalURL, decision.Policy.UserAgent), decision.Policy, retryParam)
			if fetchErr != nil {
				if stopCancelled(parent) {
					return s.release(parent, entry.Domain)
				}
				if ctx.Err() != nil {
					break
				}
				continue
			}
			pageResult = fetched
		}

		result, ok := s.extractPage(entry.Domain, pageResult, decision)
		if ok {
			if err := s.queue.Complete(ctx, entry.Domain, result, store.StatusCompleted); err != nil {
				return err
			}
			s.bump(func(r *RunExecution) { r.Completed++ })
			s.sink.RecordEvent(time.Now(), "scheduler", "Scheduler.processEntry", "domain completed", []legallog.Attribute{
				legallog.NewAttr(legallog.AttrDomain, entry.Domain),
				legallog.NewAttr(legallog.AttrURL, result.LegalSourceURL),
			})
			return nil
		}
	}

	if stopCancelled(parent) {
		return s.release(parent, entry.Domain)
	}
	return s.fail(ctx, entry.Domain, store.StatusFailedExtraction)
}

// extractPage runs the structured pass on the raw HTML, isolates the legal
// section, runs the country and generic pattern passes, and assembles.
func (s *Scheduler) extractPage(
	domain string,
	pageResult fetcher.FetchResult,
	decision preflight.Decision,
) (store.CrawlResult, bool) {
	candidates := extract.Structured(pageResult.Body())

	var lines []string
	if section, err := s.isolator.Isolate(pageResult.Body()); err == nil {
		lines = section.Lines()
	}

	extractCtx := extract.Context{
		Domain:      domain,
		Lines:       lines,
		FromArchive: pageResult.Tier() == fetcher.TierArchive,
	}
	pack := s.registry.Detect(domain, lines)
	extractCtx.CountryCode = pack.Code

	if len(lines) > 0 {
		candidates = append(candidates, s.registry.Extract(pack, extractCtx)...)
		if generic := s.registry.Generic(); generic != pack {
			candidates = append(candidates, s.registry.Extract(generic, extractCtx)...)
		}
	}

	finalURL := pageResult.FinalURL()
	meta := assemble.Meta{
		Domain:         domain,
		LegalSourceURL: finalURL.String(),
		RunID:          s.runID,
		CrawledAt:      pageResult.FetchedAt(),
		FromArchive:    pageResult.Tier() == fetcher.TierArchive,
		RobotsAllowed:  decision.Reason != preflight.DisallowedByRobots,
		RobotsReason:   decision.RobotsReason,
	}
	vctx := validate.Context{
		Pack:        pack,
		Domain:      domain,
		DomainLabel: urlutil.RegistrableLabel(domain),
		OnLegalPage: true,
	}
	return s.assembler.Assemble(candidates, vctx, meta)
}

func (s *Scheduler) fail(ctx context.Context, domain string, status store.Status) error {
	if err := s.queue.Fail(ctx, domain, status); err != nil {
		return err
	}
	s.bump(func(r *RunExecution) { r.Failed++ })
	s.sink.RecordEvent(time.Now(), "scheduler", "Scheduler.processEntry", "domain failed", []legallog.Attribute{
		legallog.NewAttr(legallog.AttrDomain, domain),
		legallog.NewAttr(legallog.AttrStatus, string(status)),
	})
	return nil
}

func (s *Scheduler) release(ctx context.Context, domain string) error {
	if err := s.queue.Release(ctx, domain); err != nil {
		return err
	}
	s.bump(func(r *RunExecution) { r.Deferred++ })
	return nil
}

func (s *Scheduler) retryParam() retry.RetryParam {
	return retry.NewRetryParam(
		s.cfg.BackoffBase(),
		s.cfg.Jitter(),
		s.cfg.RandomSeed(),
		s.cfg.MaxRetries(),
		timeutil.NewBackoffParam(s.cfg.BackoffBase(), s.cfg.BackoffFactor(), s.cfg.BackoffCap()),
	)
}

func statusForDecision(reason preflight.DecisionReason) store.Status {
	switch reason {
	case preflight.MatchedBlacklist:
		return store.StatusBlacklisted
	case preflight.DNSFailed:
		return store.StatusFailedDNS
	case preflight.DNSTimedOut:
		return store.StatusFailedConnection
	case preflight.DisallowedByRobots:
		return store.StatusBlockedRobots
	default:
		return store.StatusFailedConnection
	}
}

// stopCancelled distinguishes a run-level stop from a per-entry deadline.
func stopCancelled(parent context.Context) bool {
	return parent.Err() != nil
}

func causeOfError(err failure.ClassifiedError) failure.Cause {
	var fetchErr *fetcher.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.FailureCause()
	}
	if cause := failure.CauseOf(err); cause != failure.CauseNone {
		return cause
	}
	return failure.CauseConnectionFailure
}
