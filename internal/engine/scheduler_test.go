package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ReloadPilot/internal/executor"
	"ReloadPilot/internal/model"
)

type fakeRand struct {
	ints   []int
	floats []float64
}

func (r *fakeRand) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	if v >= n {
		v = n - 1
	}
	return v
}

func (r *fakeRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.5
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

type fakeExecutor struct {
	results []executor.Result
	openErr error
	amounts []float64
	opens   int
	closes  int
}

func (f *fakeExecutor) Name() string { return "fake" }

func (f *fakeExecutor) Open(_ context.Context, _ model.Credentials) (executor.Session, error) {
	f.opens++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &fakeSession{f: f}, nil
}

type fakeSession struct{ f *fakeExecutor }

func (s *fakeSession) Reload(_ context.Context, amount float64) executor.Result {
	s.f.amounts = append(s.f.amounts, amount)
	i := len(s.f.amounts) - 1
	if i < len(s.f.results) {
		return s.f.results[i]
	}
	return executor.Success()
}

func (s *fakeSession) Close() error {
	s.f.closes++
	return nil
}

func baseConfig() model.AccountConfig {
	return model.AccountConfig{
		Name:        "main",
		Credentials: model.Credentials{Username: "user", Password: "secret"},
		Card:        "1234",
		Purchases:   3,
		Amounts:     model.AmountRange{Min: 5, Max: 10},
		Days:        model.DayRange{Min: 1, Max: 28},
	}
}

func newTestScheduler(exec executor.Executor, r Rand) (*Scheduler, *[]time.Duration) {
	var slept []time.Duration
	s := NewScheduler(exec, zerolog.Nop())
	s.Rand = r
	s.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	s.Clock = func() time.Time { return time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC) }
	return s, &slept
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 30, 0, 0, time.UTC)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, ReferenceHour, 0, 0, 0, time.UTC)
}

func TestRun_ScenarioA_FirstRun(t *testing.T) {
	exec := &fakeExecutor{}
	s, _ := newTestScheduler(exec, &fakeRand{})
	now := day(2026, 3, 5)

	st, _ := Reconcile(nil, baseConfig(), now)
	rep, err := s.Run(context.Background(), st, now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !rep.Eligible || rep.Attempts != 1 {
		t.Fatalf("expected one eligible attempt, got %+v", rep)
	}
	if st.Completed != 1 {
		t.Errorf("expected completed 1, got %d", st.Completed)
	}
	if !st.NextEligible.Equal(date(2026, 3, 6)) {
		t.Errorf("expected next eligible 2026-03-06, got %v", st.NextEligible)
	}
	if len(st.History) != 1 || !st.History[0].Succeeded || st.History[0].CompletedAtTime != 1 {
		t.Errorf("unexpected history: %+v", st.History)
	}
	if exec.amounts[0] != 5 {
		t.Errorf("expected amount 5.00 from zero draw, got %.2f", exec.amounts[0])
	}
	if exec.opens != 1 || exec.closes != 1 {
		t.Errorf("expected session opened and closed once, got %d/%d", exec.opens, exec.closes)
	}
}

func TestRun_ScenarioB_QuotaMet(t *testing.T) {
	exec := &fakeExecutor{}
	s, _ := newTestScheduler(exec, &fakeRand{})
	next := date(2026, 4, 1)
	st := &model.ScheduleState{Config: baseConfig(), Completed: 3, NextEligible: &next}

	rep, err := s.Run(context.Background(), st, day(2026, 3, 20))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Eligible || rep.Reason != ReasonQuotaMet {
		t.Fatalf("expected quota-met skip, got %+v", rep)
	}
	if exec.opens != 0 {
		t.Error("executor must not be touched when ineligible")
	}
	if st.Completed != 3 || !st.NextEligible.Equal(next) {
		t.Errorf("state changed on skip: %+v", st)
	}
}

func TestRun_ScenarioC_DayRangeExhausted(t *testing.T) {
	cfg := baseConfig()
	cfg.Days = model.DayRange{Min: 1, Max: 15}

	tests := []struct {
		name      string
		results   []executor.Result
		completed int
	}{
		{"failed reload keeps count", []executor.Result{executor.Failure(errors.New("declined"))}, 1},
		{"successful reload carries count", nil, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{results: tt.results}
			s, _ := newTestScheduler(exec, &fakeRand{})
			prev := date(2026, 3, 14)
			st := &model.ScheduleState{Config: cfg, Completed: 1, NextEligible: &prev}

			rep, err := s.Run(context.Background(), st, day(2026, 3, 15))
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if !rep.Shortfall {
				t.Error("expected shortfall to be reported")
			}
			if st.Completed != tt.completed {
				t.Errorf("expected completed %d, got %d", tt.completed, st.Completed)
			}
			if !st.NextEligible.Equal(date(2026, 4, 1)) {
				t.Errorf("expected next eligible 2026-04-01, got %v", st.NextEligible)
			}
		})
	}
}

func TestRun_OutsideDayRangeAndNotYet(t *testing.T) {
	exec := &fakeExecutor{}
	s, _ := newTestScheduler(exec, &fakeRand{})

	st := &model.ScheduleState{Config: baseConfig()}
	rep, _ := s.Run(context.Background(), st, day(2026, 3, 30))
	if rep.Eligible || rep.Reason != ReasonOutsideDays {
		t.Errorf("expected outside-days skip, got %+v", rep)
	}

	next := date(2026, 3, 10)
	st.NextEligible = &next
	rep, _ = s.Run(context.Background(), st, day(2026, 3, 9))
	if rep.Eligible || rep.Reason != ReasonNotYet {
		t.Errorf("expected not-yet skip, got %+v", rep)
	}

	rep, _ = s.Run(context.Background(), st, day(2026, 3, 10))
	if !rep.Eligible {
		t.Errorf("expected eligible on the next eligible date, got %+v", rep)
	}
	if exec.opens != 1 {
		t.Errorf("expected exactly one session, got %d", exec.opens)
	}
}

func TestRun_Force(t *testing.T) {
	exec := &fakeExecutor{}
	s, _ := newTestScheduler(exec, &fakeRand{})
	s.Force = true

	next := date(2026, 4, 1)
	st := &model.ScheduleState{Config: baseConfig(), NextEligible: &next}
	rep, err := s.Run(context.Background(), st, day(2026, 3, 30))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !rep.Eligible || st.Completed != 1 {
		t.Fatalf("expected forced run to reload once, got %+v", rep)
	}

	st.Completed = 3
	rep, _ = s.Run(context.Background(), st, day(2026, 3, 30))
	if rep.Eligible {
		t.Error("force must not bypass the quota")
	}
}

func TestRun_QuotaMetRollsOverAndResets(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"mid year", day(2026, 3, 12), date(2026, 4, 1)},
		{"december wraps", day(2026, 12, 12), date(2027, 1, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{}
			s, _ := newTestScheduler(exec, &fakeRand{})
			st := &model.ScheduleState{Config: baseConfig(), Completed: 2}

			rep, err := s.Run(context.Background(), st, tt.now)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if !rep.Rollover {
				t.Error("expected rollover")
			}
			if st.Completed != 0 {
				t.Errorf("expected completed reset to 0, got %d", st.Completed)
			}
			if !st.NextEligible.Equal(tt.want) {
				t.Errorf("expected next %v, got %v", tt.want, st.NextEligible)
			}
			if got := st.History[len(st.History)-1].CompletedAtTime; got != 3 {
				t.Errorf("record should capture count before reset, got %d", got)
			}
		})
	}
}

func TestRun_LastDayOfShortMonth(t *testing.T) {
	cfg := baseConfig()
	cfg.Days = model.DayRange{Min: 3, Max: 31}
	s, _ := newTestScheduler(&fakeExecutor{}, &fakeRand{})
	st := &model.ScheduleState{Config: cfg}

	rep, err := s.Run(context.Background(), st, day(2026, 2, 28))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !rep.Shortfall {
		t.Error("expected shortfall when the next day leaves the month")
	}
	if st.Completed != 1 {
		t.Errorf("expected completed 1, got %d", st.Completed)
	}
	if !st.NextEligible.Equal(date(2026, 3, 3)) {
		t.Errorf("expected next 2026-03-03, got %v", st.NextEligible)
	}
}

func TestRun_BurstDrawAndDelays(t *testing.T) {
	cfg := baseConfig()
	cfg.Purchases = 4
	cfg.Burst = true
	exec := &fakeExecutor{}
	// burst draw IntN(3)=2 -> 3 reloads; amounts 0, 250, 500 cents above min
	r := &fakeRand{ints: []int{2, 0, 250, 500}, floats: []float64{0, 1}}
	s, slept := newTestScheduler(exec, r)
	st := &model.ScheduleState{Config: cfg, Completed: 1}

	rep, err := s.Run(context.Background(), st, day(2026, 3, 5))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Burst != 3 || rep.Attempts != 3 {
		t.Fatalf("expected burst of 3, got %+v", rep)
	}
	want := []float64{5, 7.5, 10}
	for i, a := range exec.amounts {
		if a != want[i] {
			t.Errorf("amount %d: expected %.2f, got %.2f", i, want[i], a)
		}
	}
	if len(*slept) != 2 {
		t.Fatalf("expected 2 delays between 3 reloads, got %d", len(*slept))
	}
	if (*slept)[0] != time.Second || (*slept)[1] != 5*time.Second {
		t.Errorf("unexpected delays: %v", *slept)
	}
	if st.Completed != 0 || !rep.Rollover {
		t.Errorf("expected quota met and reset, got completed=%d rep=%+v", st.Completed, rep)
	}
}

func TestRun_RetryableFailureContinuesBurst(t *testing.T) {
	cfg := baseConfig()
	cfg.Burst = true
	exec := &fakeExecutor{results: []executor.Result{
		executor.Success(),
		executor.Failure(errors.New("timeout")),
		executor.Success(),
	}}
	s, _ := newTestScheduler(exec, &fakeRand{ints: []int{2}})
	st := &model.ScheduleState{Config: cfg}

	rep, err := s.Run(context.Background(), st, day(2026, 3, 5))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Attempts != 3 || rep.Failed != 1 || rep.Succeeded != 2 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if st.Completed != 2 {
		t.Errorf("expected completed 2, got %d", st.Completed)
	}
	if len(st.History) != 3 || st.History[1].Succeeded || st.History[1].Error != "timeout" {
		t.Errorf("expected failed record in history, got %+v", st.History)
	}
	if !st.NextEligible.Equal(date(2026, 3, 6)) {
		t.Errorf("expected next day, got %v", st.NextEligible)
	}
}

func TestRun_FatalFailureAbortsAndKeepsDate(t *testing.T) {
	cfg := baseConfig()
	cfg.Burst = true
	exec := &fakeExecutor{results: []executor.Result{
		executor.Success(),
		executor.FatalFailure(errors.New("signed out")),
	}}
	s, _ := newTestScheduler(exec, &fakeRand{ints: []int{2}})
	prev := date(2026, 3, 5)
	st := &model.ScheduleState{Config: cfg, NextEligible: &prev}

	rep, err := s.Run(context.Background(), st, day(2026, 3, 5))
	if !errors.Is(err, ErrSessionBroken) {
		t.Fatalf("expected ErrSessionBroken, got %v", err)
	}
	if !rep.Aborted || rep.Attempts != 2 {
		t.Errorf("expected abort after 2 attempts, got %+v", rep)
	}
	if st.Completed != 1 {
		t.Errorf("expected completed 1, got %d", st.Completed)
	}
	if !st.NextEligible.Equal(prev) {
		t.Errorf("next eligible date must not move, got %v", st.NextEligible)
	}
	if exec.closes != 1 {
		t.Error("session must be closed after a fatal failure")
	}
}

func TestRun_OpenFailure(t *testing.T) {
	exec := &fakeExecutor{openErr: errors.New("bad password")}
	s, _ := newTestScheduler(exec, &fakeRand{})
	st := &model.ScheduleState{Config: baseConfig()}

	_, err := s.Run(context.Background(), st, day(2026, 3, 5))
	if !errors.Is(err, ErrSessionBroken) {
		t.Fatalf("expected ErrSessionBroken, got %v", err)
	}
	if st.Completed != 0 || len(st.History) != 0 || st.NextEligible != nil {
		t.Errorf("state must be untouched, got %+v", st)
	}
}

func TestRun_CancelBetweenReloads(t *testing.T) {
	cfg := baseConfig()
	cfg.Burst = true
	exec := &fakeExecutor{}
	s, _ := newTestScheduler(exec, &fakeRand{ints: []int{2}})
	ctx, cancel := context.WithCancel(context.Background())
	s.Sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	st := &model.ScheduleState{Config: cfg}

	rep, err := s.Run(ctx, st, day(2026, 3, 5))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if rep.Attempts != 1 || st.Completed != 1 || !rep.Aborted {
		t.Errorf("expected one reload before cancel, got %+v", rep)
	}
	if st.NextEligible != nil {
		t.Errorf("next eligible date must not move on cancel, got %v", st.NextEligible)
	}
	if exec.closes != 1 {
		t.Error("session must be closed on cancel")
	}
}

func TestRun_CompletedNeverExceedsTarget(t *testing.T) {
	cfg := baseConfig()
	cfg.Burst = true
	cfg.Purchases = 5
	s, _ := newTestScheduler(&fakeExecutor{}, globalRand{})
	st, _ := Reconcile(nil, cfg, day(2026, 3, 1))

	total := 0
	for d := 1; d <= 28; d++ {
		rep, err := s.Run(context.Background(), st, day(2026, 3, d))
		if err != nil {
			t.Fatalf("day %d: %v", d, err)
		}
		total += rep.Succeeded
		if st.Completed > cfg.Purchases {
			t.Fatalf("day %d: completed %d exceeds target", d, st.Completed)
		}
		if rep.Eligible && (rep.Burst < 1 || rep.Burst > cfg.Purchases) {
			t.Fatalf("day %d: burst %d out of range", d, rep.Burst)
		}
	}
	if total != cfg.Purchases {
		t.Errorf("expected exactly %d reloads in the month, got %d", cfg.Purchases, total)
	}
}
