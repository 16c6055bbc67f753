package runner

import (
	"context"
	"fmt"
	"time"

	"ReloadPilot/internal/model"
)

// Status is the persisted progress of one account.
type Status struct {
	Account      string
	Known        bool
	Completed    int
	Target       int
	NextEligible *time.Time
	LastReload   *model.PurchaseRecord
}

// Status reads the stored progress of every configured account without changing it.
func (r *Runner) Status(ctx context.Context, accounts []model.AccountConfig) ([]Status, error) {
	out := make([]Status, 0, len(accounts))
	for _, acc := range accounts {
		st, err := r.Store.Load(ctx, acc.Name)
		if err != nil {
			return nil, fmt.Errorf("load state %q: %w", acc.Name, err)
		}
		s := Status{Account: acc.Name, Target: acc.Purchases}
		if st != nil {
			s.Known = true
			s.Completed = st.Completed
			s.NextEligible = st.NextEligible
			if n := len(st.History); n > 0 {
				last := st.History[n-1]
				s.LastReload = &last
			}
		}
		out = append(out, s)
	}
	return out, nil
}
