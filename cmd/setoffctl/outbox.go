package main

import (
	"context"
	"fmt"

	eventapp "github.com/erp/setoff/internal/application/event"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/event"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var flagRetryAll bool

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect the event outbox and revive dead letters",
}

var outboxStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count outbox entries per status",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeDB, err := openOutbox(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		stats, err := svc.GetStats(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-12s %8d\n", "Pending", stats.Pending)
		fmt.Fprintf(out, "%-12s %8d\n", "Processing", stats.Processing)
		fmt.Fprintf(out, "%-12s %8d\n", "Sent", stats.Sent)
		fmt.Fprintf(out, "%-12s %8d\n", "Failed", stats.Failed)
		fmt.Fprintf(out, "%-12s %8d\n", "Dead", stats.Dead)
		fmt.Fprintf(out, "%-12s %8d\n", "Total", stats.Total)
		return nil
	},
}

var outboxDeadCmd = &cobra.Command{
	Use:   "dead",
	Short: "List dead-lettered events",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeDB, err := openOutbox(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		page, err := svc.GetDeadLetterEntries(cmd.Context(), shared.PageRequest{Page: flagPage, PageSize: flagPageSize})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-36s %-24s %-36s %s\n", "Entry", "Event", "Aggregate", "Last error")
		for _, e := range page.Items {
			fmt.Fprintf(out, "%-36s %-24s %-36s %s\n", e.ID, e.EventType, e.AggregateID, e.LastError)
		}
		fmt.Fprintf(out, "page %d of %d, %d dead\n", page.Page, page.TotalPages, page.Total)
		return nil
	},
}

var outboxRetryCmd = &cobra.Command{
	Use:   "retry [<entry-id>]",
	Short: "Put a dead entry, or all of them with --all, back in the queue",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagRetryAll == (len(args) == 1) {
			return fmt.Errorf("pass either an entry id or --all")
		}

		svc, closeDB, err := openOutbox(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		out := cmd.OutOrStdout()
		if flagRetryAll {
			count, err := svc.RetryAllDeadEntries(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d entries requeued\n", count)
			return nil
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid entry id: %w", err)
		}
		entry, err := svc.RetryDeadEntry(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s requeued\n", entry.EventType, entry.ID)
		return nil
	},
}

func init() {
	outboxDeadCmd.Flags().IntVar(&flagPage, "page", 1, "page number")
	outboxDeadCmd.Flags().IntVar(&flagPageSize, "page-size", 20, "entries per page")
	outboxRetryCmd.Flags().BoolVar(&flagRetryAll, "all", false, "requeue every dead entry")

	outboxCmd.AddCommand(outboxStatsCmd)
	outboxCmd.AddCommand(outboxDeadCmd)
	outboxCmd.AddCommand(outboxRetryCmd)
}

func openOutbox(ctx context.Context) (*eventapp.OutboxService, func() error, error) {
	db, err := openDatabase(ctx)
	if err != nil {
		return nil, nil, err
	}
	return eventapp.NewOutboxService(event.NewGormOutboxRepository(db.DB), zap.NewNop()), db.Close, nil
}
