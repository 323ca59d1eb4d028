package main

import (
	"fmt"
	"io"

	financeapp "github.com/erp/setoff/internal/application/finance"
	"github.com/erp/setoff/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	flagParty     string
	flagDirection string
	flagPage      int
	flagPageSize  int
)

var outstandingCmd = &cobra.Command{
	Use:   "outstanding [<source-kind> <source-id>]",
	Short: "Show one source line or list a party's open lines",
	Example: `  setoffctl outstanding --tenant <id> DELIVERY_LINE <line-id>
  setoffctl outstanding --tenant <id> --party <id> --direction RECEIVABLE`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("expected no arguments or <source-kind> <source-id>")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := tenant()
		if err != nil {
			return err
		}

		svc, err := openServices(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.close()

		out := cmd.OutOrStdout()
		if len(args) == 2 {
			ref, err := finance.ParseSourceRef(args[0], args[1])
			if err != nil {
				return err
			}
			line, err := svc.setoff.GetOutstandingBalance(cmd.Context(), tenantID, ref)
			if err != nil {
				return err
			}
			printLines(out, []financeapp.SourceLineResponse{*line})
			return nil
		}

		partyID, err := uuid.Parse(flagParty)
		if err != nil {
			return fmt.Errorf("invalid --party: %w", err)
		}
		page, err := svc.lines.ListOutstanding(cmd.Context(), tenantID, financeapp.OutstandingListFilter{
			PartyID:   partyID,
			Direction: flagDirection,
			Page:      flagPage,
			PageSize:  flagPageSize,
		})
		if err != nil {
			return err
		}
		printLines(out, page.Items)
		fmt.Fprintf(out, "%d of %d open lines\n", len(page.Items), page.Total)
		return nil
	},
}

func init() {
	outstandingCmd.Flags().StringVar(&flagParty, "party", "", "party id")
	outstandingCmd.Flags().StringVar(&flagDirection, "direction", "RECEIVABLE", "RECEIVABLE or PAYABLE")
	outstandingCmd.Flags().IntVar(&flagPage, "page", 1, "page number")
	outstandingCmd.Flags().IntVar(&flagPageSize, "page-size", 20, "lines per page")
}

func printLines(w io.Writer, lines []financeapp.SourceLineResponse) {
	fmt.Fprintf(w, "%-20s %-36s %14s %14s %14s %14s\n", "Kind", "Source", "Original", "Settled", "Allowance", "Outstanding")
	for _, l := range lines {
		fmt.Fprintf(w, "%-20s %-36s %14s %14s %14s %14s\n",
			l.SourceKind, l.SourceID,
			l.OriginalAmount.StringFixed(2), l.SettledTotal.StringFixed(2),
			l.AllowanceTotal.StringFixed(2), l.Outstanding.StringFixed(2))
	}
}
