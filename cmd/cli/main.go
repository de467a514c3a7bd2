package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const defaultBaseURL = "http://localhost:8080"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &clientOptions{}

	rootCmd := &cobra.Command{
		Use:           "pdvctl",
		Short:         "PDV pricing and cash register tool",
		Long:          `Offline pricing and reconciliation calculator, plus commands for the PDV service's cash session API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", defaultBaseURL, "Base URL of the PDV service")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Print JSON instead of text")

	rootCmd.AddCommand(
		priceCmd(opts),
		reconcileCmd(opts),
		maskCmd(opts),
		sessionCmd(opts),
	)

	return rootCmd
}

type clientOptions struct {
	baseURL    string
	timeout    time.Duration
	jsonOutput bool
}
