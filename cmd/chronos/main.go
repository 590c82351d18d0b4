// Package main implements the chronos FTM console entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "chronos",
		Short: "Wi-Fi FTM ranging console",
		Long: `chronos exposes a Wi-Fi station over a single TCP console.

Clients send ';'-terminated JSON commands to scan for access points or
run fine timing measurement sessions, and receive the textual report.
Running chronos without a subcommand starts the console.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file")

	rootCmd.AddCommand(
		serveCmd(&configPath),
		queryCmd(),
		versionCmd(),
	)
	return rootCmd
}
