package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/foxzi/listctl/internal/journal"
)

var (
	journalListEndpoint string
	journalListOutcome  string
	journalListSince    time.Duration
	journalListLimit    int
	journalListOffset   int
	journalMaxAge       time.Duration
	journalMaxCount     int
	journalJSON         bool
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Call journal commands",
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded API calls",
	RunE:  runJournalList,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <call_id>",
	Short: "Show call details",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show journal statistics",
	RunE:  runJournalStats,
}

var journalCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old call records",
	RunE:  runJournalCleanup,
}

func init() {
	journalCmd.PersistentFlags().BoolVar(&journalJSON, "json", false, "print JSON output")

	journalListCmd.Flags().StringVar(&journalListEndpoint, "endpoint", "", "Filter by endpoint (e.g. List/GetSublists)")
	journalListCmd.Flags().StringVar(&journalListOutcome, "outcome", "", "Filter by outcome (ok, remote_error, parse_error, transport_error)")
	journalListCmd.Flags().DurationVar(&journalListSince, "since", 0, "Only calls newer than this (e.g. 24h)")
	journalListCmd.Flags().IntVar(&journalListLimit, "limit", 50, "Maximum number of calls to show")
	journalListCmd.Flags().IntVar(&journalListOffset, "offset", 0, "Number of calls to skip")

	journalCleanupCmd.Flags().DurationVar(&journalMaxAge, "max-age", 0, "Delete calls older than this (default: journal.max_age)")
	journalCleanupCmd.Flags().IntVar(&journalMaxCount, "max-count", 0, "Keep at most this many calls (default: journal.max_count)")

	journalCmd.AddCommand(journalListCmd, journalShowCmd, journalStatsCmd, journalCleanupCmd)
	rootCmd.AddCommand(journalCmd)
}

func openJournal() (*journal.BoltStorage, func(), error) {
	application, err := newApp()
	if err != nil {
		return nil, nil, err
	}

	storage, err := application.Journal()
	if err != nil {
		application.Close()
		return nil, nil, fmt.Errorf("failed to open journal: %w", err)
	}

	return storage, func() { application.Close() }, nil
}

func runJournalList(cmd *cobra.Command, args []string) error {
	storage, closeFn, err := openJournal()
	if err != nil {
		return err
	}
	defer closeFn()

	filter := journal.Filter{
		Endpoint: journalListEndpoint,
		Outcome:  journalListOutcome,
		Limit:    journalListLimit,
		Offset:   journalListOffset,
	}
	if journalListSince > 0 {
		filter.Since = time.Now().Add(-journalListSince)
	}

	records, err := storage.List(context.Background(), filter)
	if err != nil {
		return fmt.Errorf("failed to list calls: %w", err)
	}

	if journalJSON {
		return printJSON(records)
	}

	if len(records) == 0 {
		fmt.Println("Journal is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tENDPOINT\tOUTCOME\tSTATUS\tDURATION")
	fmt.Fprintln(w, "--\t----\t--------\t-------\t------\t--------")

	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			truncateID(rec.ID),
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Endpoint,
			rec.Outcome,
			rec.StatusCode,
			rec.Duration.Round(time.Millisecond),
		)
	}

	w.Flush()
	fmt.Printf("\nTotal: %d calls\n", len(records))
	return nil
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	storage, closeFn, err := openJournal()
	if err != nil {
		return err
	}
	defer closeFn()

	id := args[0]
	rec, err := storage.Get(context.Background(), id)
	if err != nil {
		return fmt.Errorf("failed to get call: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("call not found: %s", id)
	}

	if journalJSON {
		return printJSON(rec)
	}

	fmt.Printf("Call: %s\n\n", rec.ID)
	fmt.Printf("Request ID: %s\n", rec.RequestID)
	fmt.Printf("Endpoint:   %s\n", rec.Endpoint)
	fmt.Printf("Outcome:    %s\n", rec.Outcome)
	fmt.Printf("Status:     %d\n", rec.StatusCode)
	fmt.Printf("Started:    %s\n", rec.StartedAt.Format(time.RFC3339))
	fmt.Printf("Duration:   %s\n", rec.Duration)

	if len(rec.Params) > 0 {
		fmt.Println("\nParameters:")
		for _, key := range rec.Params.Keys() {
			fmt.Printf("  %s = %s\n", key, rec.Params[key])
		}
	}

	if rec.Error != "" {
		fmt.Printf("\nError:\n  %s\n", rec.Error)
	}

	return nil
}

func runJournalStats(cmd *cobra.Command, args []string) error {
	storage, closeFn, err := openJournal()
	if err != nil {
		return err
	}
	defer closeFn()

	stats, err := storage.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get journal stats: %w", err)
	}

	if journalJSON {
		return printJSON(stats)
	}

	fmt.Println("Journal Statistics")
	fmt.Println("==================")
	fmt.Printf("Total:  %d\n", stats.Total)
	if !stats.OldestAt.IsZero() {
		fmt.Printf("Oldest: %s\n", stats.OldestAt.Format(time.RFC3339))
		fmt.Printf("Newest: %s\n", stats.NewestAt.Format(time.RFC3339))
	}

	printCounts("By outcome", stats.ByOutcome)
	printCounts("By endpoint", stats.ByEndpoint)
	return nil
}

func printCounts(title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("\n%s\n", title)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s\t%d\n", k, counts[k])
	}
	w.Flush()
}

func runJournalCleanup(cmd *cobra.Command, args []string) error {
	application, err := newApp()
	if err != nil {
		return err
	}
	defer application.Close()

	cfg := application.Config()
	maxAge := cfg.Journal.MaxAge
	if cmd.Flags().Changed("max-age") {
		maxAge = journalMaxAge
	}
	maxCount := cfg.Journal.MaxCount
	if cmd.Flags().Changed("max-count") {
		maxCount = journalMaxCount
	}
	if maxAge <= 0 && maxCount <= 0 {
		return fmt.Errorf("nothing to clean up (set --max-age or --max-count)")
	}

	storage, err := application.Journal()
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	deleted, err := storage.Cleanup(context.Background(), maxAge, maxCount)
	if err != nil {
		return fmt.Errorf("failed to clean up journal: %w", err)
	}

	fmt.Printf("Deleted %d calls\n", deleted)
	return nil
}

func truncateID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12] + "..."
}
