package engine

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"ReloadPilot/internal/model"
)

// Rand is the random source behind amount, burst and delay draws.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type globalRand struct{}

func (globalRand) IntN(n int) int   { return rand.IntN(n) }
func (globalRand) Float64() float64 { return rand.Float64() }

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DrawAmount picks a uniformly random whole-cent amount within r.
func DrawAmount(src Rand, r model.AmountRange) float64 {
	lo := decimal.NewFromFloat(r.Min).Shift(2).Ceil().IntPart()
	hi := decimal.NewFromFloat(r.Max).Shift(2).Floor().IntPart()
	if hi < lo {
		// no whole cent inside the range; config validation rejects this
		return decimal.NewFromFloat(r.Min).Round(2).InexactFloat64()
	}
	cents := lo + int64(src.IntN(int(hi-lo+1)))
	return decimal.New(cents, -2).InexactFloat64()
}

// DrawBurst returns how many reloads to run this invocation.
func DrawBurst(src Rand, burst bool, remaining int) int {
	if !burst || remaining <= 1 {
		return 1
	}
	return 1 + src.IntN(remaining)
}

// DrawDelay returns a uniformly random duration in [min, max].
func DrawDelay(src Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(src.Float64()*float64(max-min))
}
