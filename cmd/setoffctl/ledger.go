package main

import (
	"fmt"

	"github.com/erp/setoff/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance <account-kind> <account-id>",
	Short: "Show the running balance of a ledger account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := tenant()
		if err != nil {
			return err
		}
		account, err := finance.ParseAccountRef(args[0], args[1])
		if err != nil {
			return err
		}

		svc, err := openServices(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.close()

		bal, err := svc.ledger.GetBalance(cmd.Context(), tenantID, account)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-10s %s\n", "Account", account)
		fmt.Fprintf(out, "%-10s %s\n", "Balance", bal.Balance.StringFixed(2))
		fmt.Fprintf(out, "%-10s %d\n", "Sequence", bal.Sequence)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check stored invariants",
}

var verifyLedgerCmd = &cobra.Command{
	Use:   "ledger <account-kind> <account-id>",
	Short: "Replay an account's entries and report the first break",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := tenant()
		if err != nil {
			return err
		}
		account, err := finance.ParseAccountRef(args[0], args[1])
		if err != nil {
			return err
		}

		svc, err := openServices(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.close()

		check, err := svc.ledger.VerifyAccountChain(cmd.Context(), tenantID, account)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-10s %s\n", "Account", account)
		fmt.Fprintf(out, "%-10s %d\n", "Entries", check.Entries)
		fmt.Fprintf(out, "%-10s %s\n", "Balance", check.Balance.StringFixed(2))
		if check.Intact {
			fmt.Fprintln(out, "chain intact")
			return nil
		}
		fmt.Fprintf(out, "chain broken at sequence %d (%s): %s\n", *check.BreakAt, check.BreakID, check.Reason)
		return fmt.Errorf("ledger chain of %s is broken", account)
	},
}

var verifyPrepaymentCmd = &cobra.Command{
	Use:   "prepayment <prepayment-id>",
	Short: "Compare a prepayment's used amount with its active usages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := tenant()
		if err != nil {
			return err
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid prepayment id: %w", err)
		}

		svc, err := openServices(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.close()

		check, err := svc.prepayments.VerifyPrepayment(cmd.Context(), tenantID, id)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-12s %s\n", "Prepayment", check.PrepaymentID)
		fmt.Fprintf(out, "%-12s %s\n", "Used", check.UsedAmount.StringFixed(2))
		fmt.Fprintf(out, "%-12s %s\n", "Usages", check.UsageTotal.StringFixed(2))
		if !check.Consistent {
			return fmt.Errorf("prepayment %s used amount drifted from its usages", id)
		}
		fmt.Fprintln(out, "consistent")
		return nil
	},
}

func init() {
	verifyCmd.AddCommand(verifyLedgerCmd)
	verifyCmd.AddCommand(verifyPrepaymentCmd)
}
