package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ReloadPilot/internal/engine"
	"ReloadPilot/internal/executor"
	"ReloadPilot/internal/model"
	"ReloadPilot/internal/recorder"
	"ReloadPilot/internal/store"
)

// Result is the outcome of one account in a pass.
type Result struct {
	Account string
	Drift   engine.Drift
	Report  engine.Report
	State   *model.ScheduleState
	Err     error
}

// Summary is the outcome of a full pass over all accounts.
type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Results  []Result
}

// Failed returns the number of accounts whose run failed.
func (s Summary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Reloads returns the number of successful reloads in the pass.
func (s Summary) Reloads() int {
	n := 0
	for _, r := range s.Results {
		n += r.Report.Succeeded
	}
	return n
}

// Runner reconciles, schedules and persists every configured account.
type Runner struct {
	Store    store.Store
	Executor executor.Executor
	Recorder recorder.Recorder
	Log      zerolog.Logger
	Clock    func() time.Time

	// Optional overrides for the scheduler's random source and sleeper.
	Rand  engine.Rand
	Sleep engine.Sleeper
}

func New(st store.Store, exec executor.Executor, rec recorder.Recorder, log zerolog.Logger) *Runner {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Runner{
		Store:    st,
		Executor: exec,
		Recorder: rec,
		Log:      log,
		Clock:    time.Now,
	}
}

// RunAll processes accounts one after another. A failing account never stops the others;
// a cancelled ctx marks the remaining accounts as failed.
func (r *Runner) RunAll(ctx context.Context, accounts []model.AccountConfig, force bool) Summary {
	sum := Summary{RunID: uuid.NewString(), Started: r.Clock()}
	log := r.Log.With().Str("run_id", sum.RunID).Logger()

	sched := engine.NewScheduler(r.Executor, log)
	sched.RunID = sum.RunID
	sched.Force = force
	sched.Clock = r.Clock
	if r.Rand != nil {
		sched.Rand = r.Rand
	}
	if r.Sleep != nil {
		sched.Sleep = r.Sleep
	}

	log.Info().Int("accounts", len(accounts)).Bool("force", force).Str("executor", r.Executor.Name()).Msg("reload pass started")
	for _, acc := range accounts {
		if err := ctx.Err(); err != nil {
			sum.Results = append(sum.Results, Result{Account: acc.Name, Err: err})
			continue
		}
		res := r.runAccount(ctx, sched, acc, log)
		r.record(sum.RunID, res)
		sum.Results = append(sum.Results, res)
	}
	sum.Finished = r.Clock()

	log.Info().
		Int("reloads", sum.Reloads()).
		Int("failed", sum.Failed()).
		Dur("took", sum.Finished.Sub(sum.Started)).
		Msg("reload pass finished")
	return sum
}

func (r *Runner) runAccount(ctx context.Context, sched *engine.Scheduler, acc model.AccountConfig, log zerolog.Logger) Result {
	log = log.With().Str("account", acc.Name).Logger()
	res := Result{Account: acc.Name}
	now := r.Clock()

	loaded, err := r.Store.Load(ctx, acc.Name)
	if err != nil {
		res.Err = fmt.Errorf("load state: %w", err)
		log.Error().Err(res.Err).Msg("account skipped")
		return res
	}

	st, drift := engine.Reconcile(loaded, acc, now)
	res.Drift, res.State = drift, st
	switch drift {
	case engine.DriftNew:
		log.Info().Msg("new account, starting fresh state")
	case engine.DriftCardChanged:
		log.Info().Msg("card changed, progress reset")
	case engine.DriftEdited:
		log.Info().Int("completed", st.Completed).Msg("config edited, progress kept")
	}

	rep, runErr := sched.Run(ctx, st, now)
	res.Report = rep
	if runErr != nil {
		log.Error().Err(runErr).Int("completed", st.Completed).Msg("reload run failed")
	}

	if rep.Attempts > 0 || drift != engine.DriftNone {
		// reloads done before a cancellation must still reach the store
		if err := r.Store.Save(context.WithoutCancel(ctx), acc.Name, st); err != nil {
			// the reloads may already have happened; a retry without the saved
			// counter could repeat them
			err = fmt.Errorf("save state: %w", err)
			log.Error().Err(err).Int("attempts", rep.Attempts).Msg("state not persisted")
			runErr = errors.Join(runErr, err)
		}
	}
	res.Err = runErr
	return res
}

func (r *Runner) record(runID string, res Result) {
	evt := &recorder.RunEvent{
		RunID:        runID,
		Account:      res.Account,
		Drift:        res.Drift.String(),
		Eligible:     res.Report.Eligible,
		Reason:       res.Report.Reason,
		Burst:        res.Report.Burst,
		Succeeded:    res.Report.Succeeded,
		Failed:       res.Report.Failed,
		Aborted:      res.Report.Aborted,
		Shortfall:    res.Report.Shortfall,
		Rollover:     res.Report.Rollover,
		NextEligible: res.Report.NextEligible,
	}
	if res.State != nil {
		evt.Completed = res.State.Completed
	}
	if res.Err != nil {
		evt.Error = res.Err.Error()
	}
	if err := r.Recorder.RecordRun(evt); err != nil {
		r.Log.Error().Err(err).Str("account", res.Account).Msg("record run")
	}

	if res.State == nil || res.Report.Attempts == 0 {
		return
	}
	hist := res.State.History
	for _, p := range hist[len(hist)-res.Report.Attempts:] {
		if err := r.Recorder.RecordPurchase(&recorder.PurchaseEvent{
			RunID:     runID,
			Account:   res.Account,
			Timestamp: p.Timestamp,
			Amount:    p.Amount,
			Succeeded: p.Succeeded,
			Completed: p.CompletedAtTime,
			Error:     p.Error,
		}); err != nil {
			r.Log.Error().Err(err).Str("account", res.Account).Msg("record purchase")
		}
	}
}
