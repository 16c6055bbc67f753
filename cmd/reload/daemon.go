package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"ReloadPilot/internal/config"
	"ReloadPilot/internal/scheduler"
)

func newDaemonCmd(opts *rootOptions) *cobra.Command {
	var runOnStart bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run reload passes on the configured cron schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			log := a.log

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			sched := scheduler.NewScheduler(ctx, a.runner, a.notifier, a.cfg, log)
			if err := sched.Register(a.cfg.Schedule.Cron); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			go func() {
				err := config.Watch(ctx, a.cfgPaths, log, func(cfg *config.Config) {
					if cfg.Schedule.Cron != a.cfg.Schedule.Cron {
						log.Warn().Msg("schedule.cron changed; restart the daemon to apply it")
					}
					sched.UpdateConfig(cfg)
				})
				if err != nil {
					log.Warn().Err(err).Msg("config hot reload disabled")
				}
			}()

			if a.notifier.Enabled() {
				go a.notifier.StartPolling(ctx, sched.HandleCommand)
				log.Info().Msg("telegram polling started")
			}

			if runOnStart || os.Getenv("RUN_ON_START") == "true" {
				log.Info().Msg("run-on-start enabled, executing reload pass now")
				go sched.RunNow(false)
			}

			if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
				log.Warn().Err(err).Msg("systemd notify failed")
			} else if ok {
				log.Debug().Msg("systemd notified ready")
			}
			log.Info().Str("cron", a.cfg.Schedule.Cron).Msg("reload daemon running, press Ctrl+C to stop")

			<-ctx.Done()
			log.Info().Msg("shutdown signal received, stopping...")
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
			return nil
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "run a reload pass immediately after start")
	return cmd
}
