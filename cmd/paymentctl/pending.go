package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/payment-settlement/internal/payment"
	"github.com/yourorg/payment-settlement/internal/reporting"
)

func pendingCmd() *cobra.Command {
	var (
		olderThan time.Duration
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List PENDING payments that need reconciliation",
		Long: `List payments still PENDING after the cutoff, oldest first.

A payment stays PENDING when the order service or the provider callback
never completed. Payments without an order id are flagged.

Examples:
  paymentctl pending
  paymentctl pending --older-than 2h --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			repo, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			ps, err := loadPayments(ctx, repo, payment.StatusPending)
			if err != nil {
				return err
			}
			stale := reporting.NewSettlementReporter().StalePending(ps, olderThan)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stale)
			}
			if len(stale) == 0 {
				fmt.Fprintf(out, "No PENDING payments older than %s\n", olderThan)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PG ORDER ID\tUSER\tAMOUNT\tORDER\tCREATED")
			for _, p := range stale {
				order := p.OrderID
				if order == "" {
					order = "(none)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", p.PgOrderID, p.UserID, p.TotalAmount, order, p.CreatedAt.Format(time.RFC3339))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d payment(s)\n", len(stale))
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*time.Minute, "minimum age of a PENDING payment")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
