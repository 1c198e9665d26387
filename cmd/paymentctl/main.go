// Command paymentctl is the operator tool for reconciling and reporting on payments.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourorg/payment-settlement/internal/config"
	"github.com/yourorg/payment-settlement/internal/payment"
	"github.com/yourorg/payment-settlement/internal/repository"
)

var Version = "dev"

// openStore opens the configured payment store. Tests replace it.
var openStore = func(ctx context.Context) (repository.PaymentRepository, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, errors.New("DATABASE_URL is required")
	}
	return repository.Open(ctx, cfg.DatabaseURL)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "paymentctl",
		Short:         "paymentctl - operator tool for the payment settlement service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(pendingCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(tokenCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadPayments returns every stored payment with one of statuses.
func loadPayments(ctx context.Context, repo repository.PaymentRepository, statuses ...payment.Status) ([]*payment.Payment, error) {
	var all []*payment.Payment
	for _, st := range statuses {
		ps, err := repo.FindByStatus(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("loading %s payments: %w", st, err)
		}
		all = append(all, ps...)
	}
	return all, nil
}
