package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ReloadPilot/internal/executor"
	"ReloadPilot/internal/model"
)

// ErrSessionBroken is returned when the executor reports a session-fatal failure.
var ErrSessionBroken = errors.New("session broken")

// Default bounds of the pause between reloads of one burst.
const (
	DefaultMinDelay = 1 * time.Second
	DefaultMaxDelay = 5 * time.Second
)

// Reasons a run was skipped.
const (
	ReasonOutsideDays = "outside day range"
	ReasonNotYet      = "before next eligible date"
	ReasonQuotaMet    = "monthly quota met"
)

// Report summarises one Scheduler.Run.
type Report struct {
	Eligible     bool
	Reason       string
	Burst        int
	Attempts     int
	Succeeded    int
	Failed       int
	Aborted      bool
	Rollover     bool
	Shortfall    bool
	NextEligible time.Time
}

// Scheduler decides whether an account reloads now and drives the executor.
type Scheduler struct {
	Executor executor.Executor
	Rand     Rand
	Sleep    Sleeper
	Clock    func() time.Time
	Log      zerolog.Logger

	MinDelay time.Duration
	MaxDelay time.Duration

	// RunID tags every purchase record written by this scheduler.
	RunID string
	// Force skips the day range and date checks. The quota check always applies.
	Force bool
}

// NewScheduler returns a Scheduler with the default random source, sleeper and delays.
func NewScheduler(exec executor.Executor, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Executor: exec,
		Rand:     globalRand{},
		Sleep:    SleepContext,
		Clock:    time.Now,
		Log:      log,
		MinDelay: DefaultMinDelay,
		MaxDelay: DefaultMaxDelay,
	}
}

// Eligible reports why st may not run at now, or "" when it may.
func (s *Scheduler) Eligible(st *model.ScheduleState, now time.Time) string {
	cfg := st.Config
	if st.Completed >= cfg.Purchases {
		return ReasonQuotaMet
	}
	if s.Force {
		return ""
	}
	if !cfg.Days.Contains(now.Day()) {
		return ReasonOutsideDays
	}
	if st.NextEligible != nil && DateOf(now).Before(DateOf(st.NextEligible.In(now.Location()))) {
		return ReasonNotYet
	}
	return ""
}

// Run executes the reloads st is owed at now and advances st in place.
//
// A skipped run leaves st untouched. A session-fatal failure or a cancelled ctx stops
// the burst early; completed reloads are kept but the next eligible date is not moved,
// so the next invocation retries the remainder.
func (s *Scheduler) Run(ctx context.Context, st *model.ScheduleState, now time.Time) (Report, error) {
	cfg := st.Config
	log := s.Log.With().Str("account", cfg.Name).Logger()

	var rep Report
	if st.NextEligible != nil {
		rep.NextEligible = *st.NextEligible
	}
	if reason := s.Eligible(st, now); reason != "" {
		rep.Reason = reason
		log.Debug().Str("reason", reason).Int("completed", st.Completed).Msg("not eligible")
		return rep, nil
	}
	rep.Eligible = true
	rep.Burst = DrawBurst(s.rand(), cfg.Burst, st.Remaining())

	if err := ctx.Err(); err != nil {
		rep.Aborted = true
		return rep, err
	}
	sess, err := s.Executor.Open(ctx, cfg.Credentials)
	if err != nil {
		rep.Aborted = true
		return rep, fmt.Errorf("%w: open: %v", ErrSessionBroken, err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn().Err(err).Msg("close session")
		}
	}()

	log.Info().Int("burst", rep.Burst).Int("completed", st.Completed).Int("target", cfg.Purchases).Msg("starting reloads")
	for i := 0; i < rep.Burst; i++ {
		if i > 0 {
			if err := s.sleep(ctx, DrawDelay(s.rand(), s.MinDelay, s.MaxDelay)); err != nil {
				rep.Aborted = true
				log.Warn().Err(err).Int("done", rep.Attempts).Msg("burst interrupted")
				return rep, err
			}
		}

		amount := DrawAmount(s.rand(), cfg.Amounts)
		res := sess.Reload(ctx, amount)
		rec := model.PurchaseRecord{
			Timestamp: s.now(),
			RunID:     s.RunID,
			Amount:    amount,
			Succeeded: res.OK,
		}
		rep.Attempts++
		if res.OK {
			st.Completed++
			rep.Succeeded++
			log.Info().Float64("amount", amount).Int("completed", st.Completed).Msg("reload succeeded")
		} else {
			rep.Failed++
			if res.Err != nil {
				rec.Error = res.Err.Error()
			}
			log.Warn().Err(res.Err).Float64("amount", amount).Bool("fatal", res.Fatal).Msg("reload failed")
		}
		rec.CompletedAtTime = st.Completed
		st.History = append(st.History, rec)

		if !res.OK && res.Fatal {
			rep.Aborted = true
			return rep, fmt.Errorf("%w: %v", ErrSessionBroken, res.Err)
		}
	}

	s.advance(st, now, &rep, log)
	return rep, nil
}

// advance moves the next eligible date after a completed burst.
func (s *Scheduler) advance(st *model.ScheduleState, now time.Time, rep *Report, log zerolog.Logger) {
	cfg := st.Config
	var next time.Time
	switch {
	case st.Completed >= cfg.Purchases:
		next = NextCycleStart(now, cfg.Days)
		st.Completed = 0
		rep.Rollover = true
		log.Info().Time("next", next).Msg("monthly quota met")
	default:
		next = DateOf(now).AddDate(0, 0, 1)
		if next.Month() != now.Month() || next.Day() > cfg.Days.Max {
			next = NextCycleStart(now, cfg.Days)
			rep.Shortfall = true
			log.Warn().
				Int("completed", st.Completed).
				Int("target", cfg.Purchases).
				Time("next", next).
				Msg("day range exhausted before quota met, carrying progress into next month")
		}
	}
	st.NextEligible = &next
	rep.NextEligible = next
}

func (s *Scheduler) rand() Rand {
	if s.Rand == nil {
		return globalRand{}
	}
	return s.Rand
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep == nil {
		return SleepContext(ctx, d)
	}
	return s.Sleep(ctx, d)
}

func (s *Scheduler) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}
