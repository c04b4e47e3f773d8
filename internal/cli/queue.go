package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/corvid-labs/legalscout/internal/legallog"
	"github.com/corvid-labs/legalscout/internal/store"
)

var (
	enqueueSource string
	enqueueFile   string
	resetStatuses []string
)

// openStoreForCommand builds the recorder + store pair shared by the
// queue-management commands.
func openStoreForCommand() (*store.Store, *legallog.ZapRecorder, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, nil, newExitError(ExitConfigError, "config: %v", err)
	}
	recorder, err := legallog.NewDevelopmentRecorder(uuid.NewString())
	if err != nil {
		return nil, nil, newExitError(ExitConfigError, "logger: %v", err)
	}
	queueStore, err := store.Open(cfg.StoreDSN(), recorder)
	if err != nil {
		return nil, nil, newExitError(ExitStorageUnavailable, "store: %v", err)
	}
	return queueStore, recorder, nil
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue [domain ...]",
	Short: "Add domains to the queue (idempotent)",
	RunE: func(cmd *cobra.Command, args []string) error {
		queueStore, recorder, err := openStoreForCommand()
		if err != nil {
			return err
		}
		defer queueStore.Close()
		defer recorder.Sync()

		domains := append([]string(nil), args...)
		if enqueueFile != "" {
			fromFile, err := readDomainsFile(enqueueFile)
			if err != nil {
				return newExitError(ExitConfigError, "reading %s: %v", enqueueFile, err)
			}
			domains = append(domains, fromFile...)
		}
		if len(domains) == 0 {
			return newExitError(ExitConfigError, "no domains given")
		}

		ctx := context.Background()
		for _, domain := range domains {
			if err := queueStore.Enqueue(ctx, strings.ToLower(strings.TrimSpace(domain)), enqueueSource); err != nil {
				return newExitError(ExitStorageUnavailable, "enqueue %s: %v", domain, err)
			}
		}
		fmt.Printf("enqueued %d domains\n", len(domains))
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Transition terminal-failure statuses back to PENDING",
	RunE: func(cmd *cobra.Command, args []string) error {
		queueStore, recorder, err := openStoreForCommand()
		if err != nil {
			return err
		}
		defer queueStore.Close()
		defer recorder.Sync()

		statuses := make([]store.Status, 0, len(resetStatuses))
		for _, raw := range resetStatuses {
			statuses = append(statuses, store.Status(strings.ToUpper(raw)))
		}
		if len(statuses) == 0 {
			// every failure status; COMPLETED rows need an explicit ask
			for _, status := range store.TerminalStatuses {
				if status != store.StatusCompleted {
					statuses = append(statuses, status)
				}
			}
		}

		count, err := queueStore.Reset(context.Background(), statuses)
		if err != nil {
			return newExitError(ExitStorageUnavailable, "reset: %v", err)
		}
		fmt.Printf("reset %d domains to PENDING\n", count)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print queue counts per status",
	RunE: func(cmd *cobra.Command, args []string) error {
		queueStore, recorder, err := openStoreForCommand()
		if err != nil {
			return err
		}
		defer queueStore.Close()
		defer recorder.Sync()

		stats, err := queueStore.SnapshotStats(context.Background())
		if err != nil {
			return newExitError(ExitStorageUnavailable, "stats: %v", err)
		}

		statuses := make([]string, 0, len(stats))
		for status := range stats {
			statuses = append(statuses, string(status))
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			fmt.Printf("%-20s %d\n", status, stats[store.Status(status)])
		}
		fmt.Printf("%-20s %d\n", "TOTAL", stats.Total())
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueSource, "source", "manual", "discovery source tag")
	enqueueCmd.Flags().StringVar(&enqueueFile, "file", "", "file with one domain per line")
	resetCmd.Flags().StringSliceVar(&resetStatuses, "status", nil, "statuses to reset (default: all failure statuses)")
}

func readDomainsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var domains []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	return domains, scanner.Err()
}
