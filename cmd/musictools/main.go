package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loungecrasher/music-tools/internal/config"
	"github.com/loungecrasher/music-tools/internal/dedupe"
	"github.com/loungecrasher/music-tools/internal/errs"
	"github.com/loungecrasher/music-tools/internal/indexer"
	"github.com/loungecrasher/music-tools/internal/store"
	"github.com/loungecrasher/music-tools/internal/vetter"
)

// Exit codes per spec §6.
const (
	exitSuccess   = 0
	exitUserError = 2
	exitIntegrity = 3
	exitPartial   = 4
	exitCancelled = 130
)

var flagDB string

var rootCmd = &cobra.Command{
	Use:   "musictools",
	Short: "Index, vet, and curate a local music library",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", config.DatabasePath(), "Path to the embedded library index")
	rootCmd.AddCommand(indexCmd, vetCmd, verifyCmd, statsCmd, historyCmd)
}

func main() {
	os.Exit(run())
}

// run executes the parsed command and maps the result to an exit
// code; Cobra's own RunE error path is not used directly because each
// subcommand needs to distinguish user/integrity/partial outcomes
// rather than collapsing everything to exit 1.
func run() int {
	code := exitSuccess
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		code = exitCodeFor(err)
		if code == exitIntegrity || code == exitUserError {
			fmt.Fprintln(os.Stderr, "musictools:", err)
		}
	}
	return lastExitCode(code)
}

// exitOverride lets a RunE set a more specific exit code (e.g.
// exitPartial or exitCancelled) than a plain error return allows.
var exitOverride = exitSuccess

func lastExitCode(fallback int) int {
	if exitOverride != exitSuccess {
		return exitOverride
	}
	return fallback
}

func exitCodeFor(err error) int {
	var e *errs.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case errs.KindUser, errs.KindValidation:
			return exitUserError
		case errs.KindIntegrity:
			return exitIntegrity
		}
	}
	return exitUserError
}

// interruptContext returns a context cancelled on SIGINT/SIGTERM, and
// a function reporting whether cancellation actually happened (used
// to select exit code 130 per spec §6).
func interruptContext() (context.Context, func() bool) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx, func() bool {
		// Read ctx.Err() before stop(): stop itself cancels ctx.
		cancelled := ctx.Err() != nil
		stop()
		return cancelled
	}
}

func openStore(ctx context.Context) (*store.Store, error) {
	db, err := store.Connect(ctx, flagDB)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// ---------------------------------------------------------------------------
// index
// ---------------------------------------------------------------------------

var (
	indexRescan bool
)

var indexCmd = &cobra.Command{
	Use:   "index <root>",
	Short: "Scan a directory and upsert every supported audio file into the index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, done := interruptContext()
		defer done()

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		report, err := indexer.New(db).Scan(ctx, args[0], indexer.ScanOptions{Rescan: indexRescan})
		if done() {
			exitOverride = exitCancelled
		}
		if err != nil {
			return err
		}

		slog.Info("index complete", "added", report.Added, "updated", report.Updated,
			"skipped", report.Skipped, "errored", report.Errored, "duration", report.Duration)
		for _, w := range report.Warnings {
			slog.Warn("index warning", "message", w)
		}
		if report.Errored > 0 {
			for _, e := range report.Errors {
				slog.Error("index file error", "message", e)
			}
			exitOverride = exitPartial
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&indexRescan, "rescan", false, "Re-read every file even when mtime/size are unchanged")
}

// ---------------------------------------------------------------------------
// verify
// ---------------------------------------------------------------------------

var verifyCmd = &cobra.Command{
	Use:   "verify <root>",
	Short: "Re-index root and deactivate any previously-indexed file no longer present",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, done := interruptContext()
		defer done()

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		report, err := indexer.New(db).Scan(ctx, args[0], indexer.ScanOptions{DeactivateMissing: true})
		if done() {
			exitOverride = exitCancelled
		}
		if err != nil {
			return err
		}

		slog.Info("verify complete", "added", report.Added, "updated", report.Updated,
			"skipped", report.Skipped, "deactivated", report.Deactivated,
			"errored", report.Errored, "duration", report.Duration)
		if report.Errored > 0 {
			for _, e := range report.Errors {
				slog.Error("verify file error", "message", e)
			}
			exitOverride = exitPartial
		}
		return nil
	},
}

// ---------------------------------------------------------------------------
// vet
// ---------------------------------------------------------------------------

var (
	vetThreshold    float64
	vetExportDir    string
	vetExportNew    bool
	vetExportDupes  bool
	vetExportUncert bool
)

var vetCmd = &cobra.Command{
	Use:   "vet <import_root>",
	Short: "Classify an import directory against the library as new/duplicate/uncertain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if vetThreshold < 0 || vetThreshold > 1 {
			return errs.Validation(fmt.Sprintf("threshold %v must be in [0,1]", vetThreshold))
		}

		ctx, done := interruptContext()
		defer done()

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		checker := dedupe.New(db)
		v := vetter.New(checker, db)
		report, err := v.Vet(ctx, args[0], vetThreshold)
		if done() {
			exitOverride = exitCancelled
		}
		if err != nil {
			return err
		}

		slog.Info("vet complete", "total", report.TotalFiles, "new", report.NewCount,
			"duplicates", report.DuplicateCount, "uncertain", report.UncertainCount,
			"errored", len(report.ErroredPaths), "duration", report.Duration)

		if vetExportNew || vetExportDupes || vetExportUncert {
			dir := vetExportDir
			if dir == "" {
				dir = args[0]
			}
			if err := report.WriteExports(dir, vetExportNew, vetExportDupes, vetExportUncert); err != nil {
				return errs.User("write export artifacts", err)
			}
		}

		if len(report.ErroredPaths) > 0 {
			for _, e := range report.Errors {
				slog.Error("vet file error", "message", e)
			}
			exitOverride = exitPartial
		}
		return nil
	},
}

func init() {
	vetCmd.Flags().Float64Var(&vetThreshold, "threshold", 0.85, "Minimum fuzzy-match similarity (0-1) for a duplicate/uncertain classification")
	vetCmd.Flags().StringVar(&vetExportDir, "export-dir", "", "Directory to write export artifacts into (default: import_root)")
	vetCmd.Flags().BoolVar(&vetExportNew, "export-new", false, "Write new_songs.txt")
	vetCmd.Flags().BoolVar(&vetExportDupes, "export-dupes", false, "Write duplicates.txt")
	vetCmd.Flags().BoolVar(&vetExportUncert, "export-uncertain", false, "Write uncertain.txt")
}

// ---------------------------------------------------------------------------
// stats
// ---------------------------------------------------------------------------

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the most recent library_stats snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		snap, err := db.Statistics(ctx, 0)
		if err != nil {
			return err
		}
		fmt.Printf("total_files:    %d\n", snap.TotalFiles)
		fmt.Printf("total_bytes:    %d\n", snap.TotalBytes)
		fmt.Printf("unique_artists: %d\n", snap.UniqueArtists)
		fmt.Printf("unique_albums:  %d\n", snap.UniqueAlbums)
		fmt.Printf("last_scan_at:   %s\n", snap.LastScanAt.Format("2006-01-02T15:04:05Z07:00"))
		for format, count := range snap.FormatCounts {
			fmt.Printf("format[%s]:      %d\n", format, count)
		}
		return nil
	},
}

// ---------------------------------------------------------------------------
// history
// ---------------------------------------------------------------------------

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the most recent vetting runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListVettingHistory(ctx, historyLimit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Printf("%s  %-40s  total=%-6d new=%-6d dup=%-6d uncertain=%-6d threshold=%.2f\n",
				r.CompletedAt.Format("2006-01-02T15:04:05Z07:00"), r.ImportRoot,
				r.TotalFiles, r.NewCount, r.DuplicateCount, r.UncertainCount, r.SimilarityThreshold)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of vetting runs to list")
}
