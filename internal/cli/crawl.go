package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/corvid-labs/legalscout/internal/config"
	"github.com/corvid-labs/legalscout/internal/fetcher"
	"github.com/corvid-labs/legalscout/internal/isolate"
	"github.com/corvid-labs/legalscout/internal/legallog"
	"github.com/corvid-labs/legalscout/internal/preflight"
	"github.com/corvid-labs/legalscout/internal/render"
	"github.com/corvid-labs/legalscout/internal/scheduler"
	"github.com/corvid-labs/legalscout/internal/store"
	"github.com/corvid-labs/legalscout/pkg/limiter"
	"github.com/corvid-labs/legalscout/pkg/timeutil"
)

const robotsCacheTTL = time.Hour

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run the worker pool until the queue drains or a stop signal arrives",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return newExitError(ExitConfigError, "config: %v", err)
		}
		return runCrawl(cfg)
	},
}

func runCrawl(cfg config.Config) error {
	runID := uuid.NewString()
	recorder, err := legallog.NewDevelopmentRecorder(runID)
	if err != nil {
		return newExitError(ExitConfigError, "logger: %v", err)
	}
	defer recorder.Sync()

	queueStore, err := store.Open(cfg.StoreDSN(), recorder)
	if err != nil {
		return newExitError(ExitStorageUnavailable, "store: %v", err)
	}
	defer queueStore.Close()

	resolver, err := preflight.NewDNSResolver(cfg.DnsTimeout())
	if err != nil {
		return newExitError(ExitConfigError, "resolver: %v", err)
	}

	userAgent := ""
	if pool := cfg.UserAgentPool(); len(pool) > 0 {
		userAgent = pool[0]
	}
	robotsFetcher, err := preflight.NewCachedRobotsFetcher(userAgent, cfg.FetchTimeout(), robotsCacheTTL)
	if err != nil {
		return newExitError(ExitConfigError, "robots cache: %v", err)
	}
	defer robotsFetcher.Close()

	checker := preflight.NewChecker(recorder, cfg, resolver, robotsFetcher)

	rateLimiter := limiter.NewConcurrentRateLimiter()
	rateLimiter.SetBaseDelay(cfg.MinDelay())
	rateLimiter.SetJitter(cfg.Jitter())
	rateLimiter.SetRandomSeed(cfg.RandomSeed())
	sleeper := timeutil.NewRealSleeper()

	var renderer render.Renderer
	if withRenderer {
		rodRenderer, renderErr := render.NewRodRenderer(2)
		if renderErr != nil {
			fmt.Fprintf(os.Stderr, "renderer unavailable, continuing with raw HTTP: %v\n", renderErr)
		} else {
			renderer = rodRenderer
			defer rodRenderer.Close()
		}
	}

	htmlFetcher := fetcher.NewLadderFetcher(recorder, cfg, rateLimiter, &sleeper, renderer)
	isolator := isolate.NewSectionIsolator(recorder)

	sched := scheduler.NewScheduler(
		recorder, recorder, queueStore, checker, htmlFetcher, isolator,
		rateLimiter, &sleeper, cfg, runID,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	execution, runErr := sched.Run(ctx)
	fmt.Printf("run %s: leased=%d completed=%d failed=%d deferred=%d\n",
		runID, execution.Leased, execution.Completed, execution.Failed, execution.Deferred)

	switch {
	case errors.Is(runErr, scheduler.ErrStorageUnavailable):
		return newExitError(ExitStorageUnavailable, "%v", runErr)
	case errors.Is(runErr, scheduler.ErrHaltedByBreaker):
		return newExitError(ExitBreakerHalt, "%v", runErr)
	case runErr != nil:
		return newExitError(ExitConfigError, "%v", runErr)
	}
	return nil
}
