package executor

import (
	"context"

	"github.com/rs/zerolog"

	"ReloadPilot/internal/model"
)

// DryRun accepts every valid reload without contacting a backend.
type DryRun struct {
	Log zerolog.Logger
}

func NewDryRun(log zerolog.Logger) *DryRun { return &DryRun{Log: log} }

func (d *DryRun) Name() string { return "dryrun" }

func (d *DryRun) Open(_ context.Context, creds model.Credentials) (Session, error) {
	d.Log.Debug().Str("username", creds.Username).Msg("dry-run session opened")
	return &dryRunSession{log: d.Log.With().Str("username", creds.Username).Logger()}, nil
}

type dryRunSession struct {
	log    zerolog.Logger
	closed bool
}

func (s *dryRunSession) Reload(ctx context.Context, amount float64) Result {
	if s.closed {
		return FatalFailure(ErrSessionClosed)
	}
	if err := ctx.Err(); err != nil {
		return FatalFailure(err)
	}
	if err := CheckAmount(amount); err != nil {
		return Failure(err)
	}
	s.log.Info().Float64("amount", amount).Msg("dry-run reload")
	return Success()
}

func (s *dryRunSession) Close() error {
	s.closed = true
	return nil
}
