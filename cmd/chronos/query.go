package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cezmen/chronos/internal/console"
)

func queryCmd() *cobra.Command {
	var (
		addr    string
		idle    time.Duration
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "query <command>",
		Short: "Send one command to a running console and print the reply",
		Example: `  chronos query '{"function":"scan"}'
  chronos query --idle 40s '{"function":"ftm","parameters":{"ssid":"lab-ap","count":16}}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			err := console.Query(ctx, addr, strings.Join(args, " "), idle, cmd.OutOrStdout())
			if errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:3333", "Console address")
	cmd.Flags().DurationVar(&idle, "idle", 2*time.Second, "Stop after the console is silent this long")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall time limit (0 for none)")

	return cmd
}
