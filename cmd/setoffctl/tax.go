package main

import (
	"fmt"
	"io"
	"strings"

	financeapp "github.com/erp/setoff/internal/application/finance"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	flagTaxMode  string
	flagTaxRate  string
	flagTaxLines []string
)

var taxCmd = &cobra.Command{
	Use:   "tax",
	Short: "Calculate untaxed total and tax for a set of lines",
	Example: `  setoffctl tax --mode EXCLUSIVE --rate 13 --line 100 --line 200:6
  setoffctl tax --mode INCLUSIVE --rate 13 --line 113`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := parseTaxRequest(flagTaxMode, flagTaxRate, flagTaxLines)
		if err != nil {
			return err
		}

		resp, err := financeapp.NewTaxService().Calculate(cmd.Context(), req)
		if err != nil {
			return err
		}

		printTax(cmd.OutOrStdout(), resp)
		return nil
	},
}

func init() {
	taxCmd.Flags().StringVar(&flagTaxMode, "mode", "EXCLUSIVE", "EXCLUSIVE, INCLUSIVE or NONE")
	taxCmd.Flags().StringVar(&flagTaxRate, "rate", "0", "default rate in percent")
	taxCmd.Flags().StringArrayVar(&flagTaxLines, "line", nil, "line subtotal, optionally subtotal:rate")
}

// parseTaxRequest reads lines of the form "subtotal" or "subtotal:rate"
func parseTaxRequest(mode, rate string, lines []string) (financeapp.CalculateTaxRequest, error) {
	defaultRate, err := decimal.NewFromString(rate)
	if err != nil {
		return financeapp.CalculateTaxRequest{}, fmt.Errorf("invalid --rate %q", rate)
	}

	req := financeapp.CalculateTaxRequest{
		DefaultRate: defaultRate,
		Mode:        strings.ToUpper(mode),
	}
	for _, raw := range lines {
		subtotalText, rateText, hasRate := strings.Cut(raw, ":")
		subtotal, err := decimal.NewFromString(subtotalText)
		if err != nil {
			return req, fmt.Errorf("invalid --line %q", raw)
		}
		line := financeapp.TaxLineRequest{Subtotal: subtotal}
		if hasRate {
			r, err := decimal.NewFromString(rateText)
			if err != nil {
				return req, fmt.Errorf("invalid rate in --line %q", raw)
			}
			line.Rate = &r
		}
		req.Lines = append(req.Lines, line)
	}
	return req, nil
}

func printTax(w io.Writer, resp *financeapp.CalculateTaxResponse) {
	fmt.Fprintf(w, "%-4s %15s %8s %15s\n", "#", "Subtotal", "Rate", "Tax")
	for i, line := range resp.Lines {
		fmt.Fprintf(w, "%-4d %15s %8s %15s\n", i+1, line.Subtotal.StringFixed(2), line.Rate.String(), line.Tax.StringFixed(2))
	}
	fmt.Fprintln(w, strings.Repeat("-", 45))
	fmt.Fprintf(w, "%-13s %31s\n", "Mode", resp.Mode)
	fmt.Fprintf(w, "%-13s %31s\n", "Untaxed", resp.Untaxed.StringFixed(2))
	fmt.Fprintf(w, "%-13s %31s\n", "Tax", resp.Tax.StringFixed(2))
	fmt.Fprintf(w, "%-13s %31s\n", "Total", resp.Total.StringFixed(2))
}
