package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ReloadPilot/internal/notifier"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one reload pass over every configured card",
		Long: "Run one reload pass. Intended to be invoked periodically (e.g. daily from cron); " +
			"each card reloads only when it is due.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			accounts, err := a.cfg.Accounts()
			if err != nil {
				return err
			}
			sum := a.runner.RunAll(ctx, accounts, force)

			if a.notifier.Enabled() {
				if err := a.notifier.SendWithRetry(context.WithoutCancel(ctx), notifier.FormatRunSummary(sum), 3); err != nil {
					a.log.Error().Err(err).Msg("send run summary")
				}
			}
			if n := sum.Failed(); n > 0 {
				return fmt.Errorf("%d of %d accounts failed", n, len(sum.Results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "ignore day limits and next run dates (monthly quota still applies)")
	return cmd
}
