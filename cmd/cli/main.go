// Command cashflow-cli talks to the entries and balances services over HTTP.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type options struct {
	entriesURL  string
	balancesURL string
	timeout     time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "cashflow-cli",
		Short:         "Cashflow CLI tool",
		Long:          `A command line interface for the cashflow entries and balances APIs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.entriesURL, "entries-url", "http://localhost:8080", "Base URL of the entries API")
	rootCmd.PersistentFlags().StringVar(&opts.balancesURL, "balances-url", "http://localhost:8081", "Base URL of the balances API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(entriesCmd(opts), balancesCmd(opts), outboxCmd(opts))

	return rootCmd
}
