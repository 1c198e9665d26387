package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yourorg/payment-settlement/internal/payment"
	"github.com/yourorg/payment-settlement/internal/reporting"
)

func reportCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise stored payments by status, provider and failure code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			repo, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			ps, err := loadPayments(ctx, repo, payment.Statuses...)
			if err != nil {
				return err
			}
			report := reporting.NewSettlementReporter().Generate(ps)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Fprintln(out, "Settlement Report")
			fmt.Fprintln(out, strings.Repeat("=", 40))
			fmt.Fprintf(out, "Payments:        %d\n", report.TotalPayments)
			if report.TotalPayments > 0 {
				fmt.Fprintf(out, "Window:          %s .. %s\n", report.DateFrom.Format("2006-01-02 15:04"), report.DateTo.Format("2006-01-02 15:04"))
			}
			fmt.Fprintf(out, "Settled amount:  %d\n", report.SettledAmount)
			fmt.Fprintf(out, "Pending orphans: %d\n", report.PendingOrphans)

			fmt.Fprintln(out, "\nBy status:")
			for _, st := range payment.Statuses {
				if n := report.ByStatus[st]; n > 0 {
					fmt.Fprintf(out, "  %-18s %d\n", st, n)
				}
			}
			if len(report.AmountByPGType) > 0 {
				fmt.Fprintln(out, "\nSettled by provider:")
				for _, pg := range sortedKeys(report.AmountByPGType) {
					fmt.Fprintf(out, "  %-18s %d\n", pg, report.AmountByPGType[pg])
				}
			}
			if len(report.FailureBreakdown) > 0 {
				fmt.Fprintln(out, "\nFailures by result code:")
				for _, code := range sortedKeys(report.FailureBreakdown) {
					fmt.Fprintf(out, "  %-18s %d\n", code, report.FailureBreakdown[code])
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
