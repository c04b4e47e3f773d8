package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/sony/gobreaker"

	"github.com/corvid-labs/legalscout/internal/assemble"
	"github.com/corvid-labs/legalscout/internal/config"
	"github.com/corvid-labs/legalscout/internal/discover"
	"github.com/corvid-labs/legalscout/internal/extract"
	"github.com/corvid-labs/legalscout/internal/fetcher"
	"github.com/corvid-labs/legalscout/internal/isolate"
	"github.com/corvid-labs/legalscout/internal/legallog"
	"github.com/corvid-labs/legalscout/internal/preflight"
	"github.com/corvid-labs/legalscout/internal/store"
	"github.com/corvid-labs/legalscout/internal/validate"
	"github.com/corvid-labs/legalscout/pkg/failure"
	"github.com/corvid-labs/legalscout/pkg/limiter"
	"github.com/corvid-labs/legalscout/pkg/timeutil"
	"github.com/corvid-labs/legalscout/pkg/urlutil"
)

/*
 The Scheduler is the sole control-plane authority of the crawl.

 Guarantees:
 - Only the scheduler mutates queue rows; pipeline stages classify
   failure but never decide retry, continuation, or abortion.
 - At most one worker holds a given registered host at any instant.
   Workers that lease a domain whose host is held defer: the lease is
   released and the worker moves on.
 - All writes for a domain within one lease commit as a single unit
   through the store.
 - A stop signal (context, OS signal via context, sentinel file, or an
   exhausted error budget) lets workers finish their current entry and
   exit; outstanding leases resurface by TTL.

 Event emission is observational only and never influences scheduling.
*/

// maxBreakerTrips bounds consecutive open->open transitions before the run
// halts for good rather than oscillating.
const maxBreakerTrips = 3

// QueueStore is the slice of the store the scheduler drives.
type QueueStore interface {
	Lease(ctx context.Context, n int, ttl time.Duration) ([]store.QueueEntry, error)
	Complete(ctx context.Context, domain string, result store.CrawlResult, terminal store.Status) error
	Fail(ctx context.Context, domain string, terminal store.Status) error
	Release(ctx context.Context, domain string) error
}

// PreflightChecker gates a domain before any page fetch.
type PreflightChecker interface {
	Check(domain string) (preflight.Decision, failure.ClassifiedError)
}

type Scheduler struct {
	sink        legallog.Sink
	finalizer   legallog.RunFinalizer
	queue       QueueStore
	checker     PreflightChecker
	htmlFetcher fetcher.Fetcher
	discoverer  *discover.Discoverer
	isolator    isolate.Isolator
	registry    *extract.Registry
	assembler   *assemble.Assembler
	rateLimiter limiter.RateLimiter
	sleeper     timeutil.Sleeper
	cfg         config.Config
	runID       string

	hostLocks *xsync.Map[string, *sync.Mutex]
	breaker   *gobreaker.CircuitBreaker

	mu    sync.Mutex
	stats RunExecution
}

func NewScheduler(
	sink legallog.Sink,
	finalizer legallog.RunFinalizer,
	queue QueueStore,
	checker PreflightChecker,
	htmlFetcher fetcher.Fetcher,
	isolator isolate.Isolator,
	rateLimiter limiter.RateLimiter,
	sleeper timeutil.Sleeper,
	cfg config.Config,
	runID string,
) *Scheduler {
	validator := validate.NewValidator(sink, cfg.MxCheck(), cfg.FuzzyNameRatio())
	s := &Scheduler{
		sink:        sink,
		finalizer:   finalizer,
		queue:       queue,
		checker:     checker,
		htmlFetcher: htmlFetcher,
		discoverer:  discover.NewDiscoverer(sink, discover.DefaultMaxCandidates),
		isolator:    isolator,
		registry:    extract.NewRegistry(cfg.FuzzyNameRatio()),
		assembler:   assemble.NewAssembler(sink, validator),
		rateLimiter: rateLimiter,
		sleeper:     sleeper,
		cfg:         cfg,
		runID:       runID,
		hostLocks:   xsync.NewMap[string, *sync.Mutex](),
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "crawl-error-budget",
		MaxRequests: uint32(cfg.Workers()/2 + 1),
		Interval:    time.Minute,
		Timeout:     cfg.ErrorBudgetPause(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.ErrorBudgetRate()
		},
	})
	return s
}

// Run drives the worker pool until the context is cancelled, the stop
// sentinel appears, the store goes away, or the breaker halts the run.
func (s *Scheduler) Run(ctx context.Context) (RunExecution, error) {
	startTime := time.Now()
	defer func() {
		duration := time.Since(startTime)
		final := s.snapshot()
		s.finalizer.RecordFinalRunStats(
			final.Leased, final.Completed, final.Failed, final.Deferred, duration,
		)
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var runErr error
	var errOnce sync.Once
	halt := func(err error) {
		errOnce.Do(func() { runErr = err })
		cancel()
	}

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.workerLoop(runCtx, halt)
		}()
	}
	wg.Wait()
	return s.snapshot(), runErr
}

func (s *Scheduler) workerLoop(ctx context.Context, halt func(error)) {
	breakerTrips := 0
	for {
		if s.stopRequested(ctx) {
			return
		}
		if s.breaker.State() == gobreaker.StateOpen {
			breakerTrips++
			if breakerTrips > maxBreakerTrips {
				halt(ErrHaltedByBreaker)
				return
			}
			s.sleeper.Sleep(s.cfg.ErrorBudgetPause())
			continue
		}

		entries, err := s.queue.Lease(ctx, 1, s.cfg.LeaseTTL())
		if err != nil {
			if store.Unavailable(err) {
				halt(ErrStorageUnavailable)
				return
			}
			s.sleeper.Sleep(s.leaseBackoff())
			continue
		}
		if len(entries) == 0 {
			s.sleeper.Sleep(s.leaseBackoff())
			continue
		}
		entry := entries[0]
		s.bump(func(r *RunExecution) { r.Leased++ })

		hostKey := urlutil.RegistrableLabel(entry.Domain) + "." + urlutil.CcTLD(entry.Domain)
		lock, _ := s.hostLocks.LoadOrStore(hostKey, &sync.Mutex{})
		if !lock.TryLock() {
			// another worker holds this host: defer, don't wait
			if releaseErr := s.queue.Release(ctx, entry.Domain); releaseErr != nil && store.Unavailable(releaseErr) {
				halt(ErrStorageUnavailable)
				return
			}
			s.bump(func(r *RunExecution) { r.Deferred++ })
			continue
		}

		// breaker counts one request per processed entry; terminal
		// failures feed the error budget
		_, breakerErr := s.breaker.Execute(func() (interface{}, error) {
			return nil, s.processEntry(ctx, entry)
		})
		lock.Unlock()

		if breakerErr != nil && store.Unavailable(breakerErr) {
			halt(ErrStorageUnavailable)
			return
		}
		breakerTrips = 0
	}
}

// stopRequested consults the context and the stop sentinel file.
func (s *Scheduler) stopRequested(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
	}
	if path := s.cfg.StopSentinelPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			s.sink.RecordEvent(time.Now(), "scheduler", "Scheduler.Run", "stop sentinel present", []legallog.Attribute{
				legallog.NewAttr(legallog.AttrWritePath, path),
			})
			return true
		}
	}
	return false
}

func (s *Scheduler) leaseBackoff() time.Duration {
	return s.cfg.MinDelay() + s.cfg.Jitter()
}

func (s *Scheduler) bump(mutate func(*RunExecution)) {
	s.mu.Lock()
	mutate(&s.stats)
	s.mu.Unlock()
}

func (s *Scheduler) snapshot() RunExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
