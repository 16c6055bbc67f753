package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"ReloadPilot/internal/config"
	"ReloadPilot/internal/model"
	"ReloadPilot/internal/notifier"
	"ReloadPilot/internal/runner"
)

// Scheduler triggers reload passes on a cron schedule.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   *runner.Runner
	Notifier *notifier.TelegramNotifier
	Log      zerolog.Logger
	Ctx      context.Context

	mu  sync.RWMutex
	cfg *config.Config

	// held for the duration of a pass; passes never overlap
	running sync.Mutex
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, r *runner.Runner, tn *notifier.TelegramNotifier, cfg *config.Config, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Runner:   r,
		Notifier: tn,
		Log:      log,
		Ctx:      ctx,
		cfg:      cfg,
	}
}

// Register adds the reload pass under the given cron spec (with seconds).
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.reloadTask); err != nil {
		return fmt.Errorf("register reload task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Log.Info().Int("entries", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	// wait for a manual pass
	s.running.Lock()
	s.running.Unlock()
	s.Log.Info().Msg("scheduler stopped")
}

// UpdateConfig swaps the configuration used by the next pass. A running pass keeps
// the accounts it started with.
func (s *Scheduler) UpdateConfig(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Scheduler) accounts() ([]model.AccountConfig, error) {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()
	return cfg.Accounts()
}

// RunNow executes a pass immediately. ok is false when another pass is in progress.
func (s *Scheduler) RunNow(force bool) (sum runner.Summary, ok bool) {
	if !s.running.TryLock() {
		s.Log.Warn().Msg("reload pass already running, skipping")
		return runner.Summary{}, false
	}
	defer s.running.Unlock()

	accounts, err := s.accounts()
	if err != nil {
		s.Log.Error().Err(err).Msg("invalid account config")
		s.trySend(fmt.Sprintf("❌ Reload config invalid: %v", err))
		return runner.Summary{}, true
	}
	sum = s.Runner.RunAll(s.Ctx, accounts, force)
	return sum, true
}

func (s *Scheduler) reloadTask() {
	s.Log.Info().Msg("running scheduled reload pass")
	sum, ok := s.RunNow(false)
	if !ok || len(sum.Results) == 0 {
		return
	}
	// quiet passes where every account was simply waiting
	if sum.Reloads() == 0 && sum.Failed() == 0 && !anyAttempt(sum) {
		return
	}
	s.trySend(notifier.FormatRunSummary(sum))
}

func anyAttempt(sum runner.Summary) bool {
	for _, r := range sum.Results {
		if r.Report.Attempts > 0 {
			return true
		}
	}
	return false
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch commandName(command) {
	case "/status":
		accounts, err := s.accounts()
		if err != nil {
			return fmt.Sprintf("config error: %v", err)
		}
		statuses, err := s.Runner.Status(s.Ctx, accounts)
		if err != nil {
			return fmt.Sprintf("status error: %v", err)
		}
		return notifier.FormatStatus(statuses)
	case "/run":
		sum, ok := s.RunNow(false)
		if !ok {
			return "A reload pass is already running."
		}
		return notifier.FormatRunSummary(sum)
	default:
		return "Available commands:\n• /status\n• /run"
	}
}

// commandName strips arguments and a trailing @botname.
func commandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(name)
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.Log.Error().Err(err).Msg("send notification")
	}
}
