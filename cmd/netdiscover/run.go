package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fieldops/netdiscover/internal/config"
	"github.com/fieldops/netdiscover/internal/daemon"
	"github.com/fieldops/netdiscover/internal/store"
)

// exitCode maps a daemon.Run outcome onto the exit codes: 0 success;
// 2 invalid configuration; 3 all targets unreachable; 4 storage
// unavailable at start. Any other error is a generic failure (1).
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, daemon.ErrInvalidTargetConfig):
		return 2
	case errors.Is(err, daemon.ErrAllTargetsUnreachable):
		return 3
	case errors.Is(err, daemon.ErrStorageUnavailable):
		return 4
	default:
		return 1
	}
}

func cmdRun(args []string) {
	foreground := false
	for _, a := range args {
		if a == "--foreground" || a == "-f" {
			foreground = true
		}
	}

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(2)
	}

	err = daemon.Run(cfg, foreground)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func cmdStop() {
	if err := daemon.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "error stopping: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("netdiscover stopped")
}

func cmdStatus() {
	if err := daemon.Status(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func cmdInitConfig() {
	if err := config.InitConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "error generating config: %v\n", err)
		os.Exit(1)
	}
}

func cmdInstallService() {
	if err := daemon.InstallService(); err != nil {
		fmt.Fprintf(os.Stderr, "error installing service: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Service installed successfully")
}

func cmdUninstallService() {
	if err := daemon.UninstallService(); err != nil {
		fmt.Fprintf(os.Stderr, "error uninstalling service: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Service uninstalled")
}

func cmdConfigExport(args []string) {
	path := "netdiscover-export.toml"
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := config.Load(""); err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(2)
	}
	if err := config.ExportConfig(path); err != nil {
		fmt.Fprintf(os.Stderr, "error exporting config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config exported to %s\n", path)
}

// cmdRedactions prints the most recent rows logged by validation-time
// field redactions, newest first. Args: optional limit (default 20) and
// offset (default 0).
func cmdRedactions(args []string) {
	limit := 20
	offset := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			fmt.Fprintln(os.Stderr, "usage: netdiscover redactions [limit] [offset]")
			os.Exit(1)
		}
		limit = n
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			fmt.Fprintln(os.Stderr, "usage: netdiscover redactions [limit] [offset]")
			os.Exit(1)
		}
		offset = n
	}

	st, _ := openStore()
	defer st.Close()

	entries, err := st.ListRedactionLog(limit, offset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error listing redaction log: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("no redactions logged")
		return
	}
	for _, e := range entries {
		fmt.Printf("%s  asset=%s  field=%s  reason=%s\n", e.Timestamp, e.AssetID, e.FieldPath, e.Reason)
	}
}

// openStore loads the config and opens the store at its configured path,
// exiting with code 4 (storage unavailable) on failure.
func openStore() (*store.Store, *config.Config) {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(2)
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening store: %v\n", err)
		os.Exit(4)
	}
	return st, cfg
}

// cmdRuns lists recent scan runs, newest first. Args: optional limit
// (default 20) and offset (default 0).
func cmdRuns(args []string) {
	limit, offset := 20, 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			fmt.Fprintln(os.Stderr, "usage: netdiscover runs [limit] [offset]")
			os.Exit(1)
		}
		limit = n
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			fmt.Fprintln(os.Stderr, "usage: netdiscover runs [limit] [offset]")
			os.Exit(1)
		}
		offset = n
	}

	st, _ := openStore()
	defer st.Close()

	runs, err := st.ListScanRuns(limit, offset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error listing scan runs: %v\n", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Println("no scan runs recorded")
		return
	}
	for _, r := range runs {
		fmt.Printf("%s  started=%s  finished=%s  expanded=%d alive=%d classified=%d collected=%d reconciled=%d dropped=%d retries=%d exit=%d\n",
			r.ID, r.StartedAt, r.FinishedAt, r.TargetsExpanded, r.AliveCount,
			r.ClassifiedCount, r.CollectedCount, r.ReconciledCount,
			r.DroppedUnreachable, r.RetryCount, r.ExitCode)
	}
}

// cmdRunShow prints the full detail of a single scan run by ID.
func cmdRunShow(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: netdiscover run-show <run-id>")
		os.Exit(1)
	}

	st, _ := openStore()
	defer st.Close()

	r, err := st.GetScanRun(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error getting scan run: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("id=%s\nstarted=%s\nfinished=%s\nexpanded=%d\nalive=%d\nclassified=%d\ncollected=%d\nreconciled=%d\ndropped_unreachable=%d\nretries=%d\nexit_code=%d\n",
		r.ID, r.StartedAt, r.FinishedAt, r.TargetsExpanded, r.AliveCount,
		r.ClassifiedCount, r.CollectedCount, r.ReconciledCount,
		r.DroppedUnreachable, r.RetryCount, r.ExitCode)
}

// cmdRunStats prints aggregate scan run statistics since the given
// duration ago (default 24h), e.g. "netdiscover run-stats 168h".
func cmdRunStats(args []string) {
	since := 24 * time.Hour
	if len(args) > 0 {
		d, err := time.ParseDuration(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, "usage: netdiscover run-stats [duration] (e.g. 24h, 168h)")
			os.Exit(1)
		}
		since = d
	}

	st, _ := openStore()
	defer st.Close()

	stats, err := st.GetScanRunStats(time.Now().Add(-since))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error computing scan run stats: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("runs=%d alive=%d reconciled=%d retries=%d failed=%d\n",
		stats.TotalRuns, stats.TotalAlive, stats.TotalReconciled, stats.TotalRetries, stats.FailedRuns)
}

// cmdArchive explicitly archives an asset by ID with a reason. Archiving
// is never automatic: an operator (or a future inventory UI) must call
// this deliberately once a device is confirmed decommissioned.
func cmdArchive(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: netdiscover archive <asset-id> <reason>")
		os.Exit(1)
	}

	st, _ := openStore()
	defer st.Close()

	if err := st.ArchiveAsset(context.Background(), args[0], args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "error archiving asset: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("asset %s archived: %s\n", args[0], args[1])
}

// cmdResetBudget resets the scanned count for a scan_budget period back
// to zero, e.g. "netdiscover reset-budget daily 2026-07-30".
func cmdResetBudget(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: netdiscover reset-budget <period> <period-start>")
		os.Exit(1)
	}

	st, _ := openStore()
	defer st.Close()

	if err := st.ResetScanBudget(args[0], args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "error resetting scan budget: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("scan budget %s/%s reset\n", args[0], args[1])
}

func cmdConfigImport(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: netdiscover config-import <file>")
		os.Exit(1)
	}
	if err := config.ImportConfig(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "error importing config: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("Config imported from %s\n", args[0])
}
