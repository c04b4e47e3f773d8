// Package cmd wires configuration, the store and the pipeline together
// behind a cobra command tree. Argument semantics stay thin: flags map
// one-to-one onto config fields and everything else lives in the pipeline.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/legalscout/internal/build"
	"github.com/corvid-labs/legalscout/internal/config"
)

// Exit codes surfaced by Execute.
const (
	ExitOK                 = 0
	ExitConfigError        = 2
	ExitStorageUnavailable = 3
	ExitBreakerHalt        = 4
)

var (
	cfgFile       string
	workers       int
	storeDSN      string
	exportDir     string
	exportProfile string
	respectRobots string
	minDelay      time.Duration
	leaseTTL      time.Duration
	blacklist     []string
	proxyPool     []string
	withRenderer  bool
)

var rootCmd = &cobra.Command{
	Use:     "legalscout",
	Short:   "Discover business websites and extract validated legal-entity records",
	Version: build.FullVersion(),
	Long: `legalscout crawls business-entity websites under one or more ccTLDs,
fetches their home page and legal-disclosure pages (Impressum, mentions
légales, aviso legal, ...), extracts a validated legal-entity record and
persists it to a local store for tabular export.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to JSON config file")
	rootCmd.PersistentFlags().StringVar(&storeDSN, "store", "", "SQLite DSN of the queue store")

	crawlCmd.Flags().IntVar(&workers, "workers", 0, "worker count")
	crawlCmd.Flags().DurationVar(&minDelay, "min-delay", 0, "per-host politeness delay")
	crawlCmd.Flags().DurationVar(&leaseTTL, "lease-ttl", 0, "queue lease TTL")
	crawlCmd.Flags().StringVar(&respectRobots, "respect-robots", "", "robots policy: respect or ignore")
	crawlCmd.Flags().StringSliceVar(&blacklist, "blacklist", nil, "blacklist patterns (exact, .suffix, keyword)")
	crawlCmd.Flags().StringSliceVar(&proxyPool, "proxy", nil, "proxy endpoints for the fallback tier")
	crawlCmd.Flags().BoolVar(&withRenderer, "render", false, "enable the headless browser renderer")

	exportCmd.Flags().StringVar(&exportDir, "out", "", "export directory")
	exportCmd.Flags().StringVar(&exportProfile, "profile", "", "export profile: strict or permissive")

	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(statsCmd)
}

// buildConfig layers file, environment and flag values, in that order.
func buildConfig() (config.Config, error) {
	cfg, err := config.WithConfigFile(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	builder := &cfg
	if workers > 0 {
		builder = builder.WithWorkers(workers)
	}
	if minDelay > 0 {
		builder = builder.WithMinDelay(minDelay)
	}
	if leaseTTL > 0 {
		builder = builder.WithLeaseTTL(leaseTTL)
	}
	if respectRobots != "" {
		builder = builder.WithRespectRobots(config.RobotsPolicy(respectRobots))
	}
	if len(blacklist) > 0 {
		builder = builder.WithBlacklist(blacklist)
	}
	if len(proxyPool) > 0 {
		builder = builder.WithProxyPool(proxyPool)
	}
	if storeDSN != "" {
		builder = builder.WithStoreDSN(storeDSN)
	}
	if exportDir != "" {
		builder = builder.WithExportDir(exportDir)
	}
	if exportProfile != "" {
		builder = builder.WithExportProfile(config.ExportProfile(exportProfile))
	}
	return builder.Build()
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if asExitError(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.message)
			return exitErr.code
		}
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}
	return ExitOK
}

type exitError struct {
	code    int
	message string
}

func (e *exitError) Error() string { return e.message }

func newExitError(code int, format string, args ...interface{}) *exitError {
	return &exitError{code: code, message: fmt.Sprintf(format, args...)}
}

func asExitError(err error, target **exitError) bool {
	for err != nil {
		if ee, ok := err.(*exitError); ok {
			*target = ee
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
