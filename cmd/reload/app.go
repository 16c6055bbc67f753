package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"ReloadPilot/internal/config"
	"ReloadPilot/internal/executor"
	"ReloadPilot/internal/logging"
	"ReloadPilot/internal/notifier"
	"ReloadPilot/internal/recorder"
	"ReloadPilot/internal/runner"
	"ReloadPilot/internal/store"
)

// app wires the collaborators shared by every command.
type app struct {
	cfgPaths []string
	cfg      *config.Config
	log      zerolog.Logger
	store    store.Store
	recorder recorder.Recorder
	runner   *runner.Runner
	notifier *notifier.TelegramNotifier

	closers []func() error
}

func newApp(opts *rootOptions) (*app, error) {
	a := &app{cfgPaths: opts.configPaths}

	cfg, err := config.LoadFiles(opts.configPaths...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	a.cfg = cfg

	logFile := cfg.Log.File
	if opts.logFile != "" {
		logFile = opts.logFile
	}
	log, closeLog, err := logging.New(logging.Config{Level: cfg.Log.Level, File: logFile, Verbose: opts.verbose}, os.Stderr)
	if err != nil {
		return nil, err
	}
	a.log = log
	a.closers = append(a.closers, closeLog)

	statePath := cfg.State.File
	if cfg.State.Backend == store.BackendSQLite {
		statePath = cfg.Database.SQLitePath
	}
	st, err := store.Open(cfg.State.Backend, statePath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open state store: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, st.Close)
	log.Info().Str("backend", cfg.State.Backend).Str("path", statePath).Msg("state store opened")

	// The audit trail is best effort: a broken database falls back to no recording.
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			a.recorder = recorder.NewNoopRecorder()
		} else {
			a.recorder = sr
		}
	} else {
		a.recorder = recorder.NewNoopRecorder()
	}
	a.closers = append(a.closers, a.recorder.Close)

	var exec executor.Executor
	switch cfg.Executor.Kind {
	case "dryrun":
		exec = executor.NewDryRun(log)
	default:
		exec = executor.NewHTTPExecutor(cfg.Executor.BaseURL, cfg.Executor.APIKey, cfg.Proxy, cfg.Executor.RatePerSec, log)
	}
	log.Info().Str("executor", exec.Name()).Int("accounts", len(cfg.Cards)).Msg("reload executor ready")

	a.runner = runner.New(st, exec, a.recorder, log)
	a.notifier = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
