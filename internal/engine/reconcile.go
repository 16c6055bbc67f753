package engine

import (
	"time"

	"ReloadPilot/internal/model"
)

// Drift describes how a persisted state related to the live config.
type Drift int

const (
	DriftNone Drift = iota
	DriftNew
	DriftEdited
	DriftCardChanged
)

func (d Drift) String() string {
	switch d {
	case DriftNew:
		return "new"
	case DriftEdited:
		return "edited"
	case DriftCardChanged:
		return "card_changed"
	default:
		return "none"
	}
}

// Reconcile turns a possibly stale persisted state into a valid state for cfg.
// loaded is never modified.
//
// A changed card means a different underlying account: progress and history are
// dropped. Any other edit keeps progress. A state without a next eligible date
// becomes eligible today.
func Reconcile(loaded *model.ScheduleState, cfg model.AccountConfig, now time.Time) (*model.ScheduleState, Drift) {
	var (
		st    *model.ScheduleState
		drift Drift
	)
	switch {
	case loaded == nil:
		st, drift = model.NewScheduleState(cfg), DriftNew
	case loaded.Config == cfg:
		st, drift = loaded.Clone(), DriftNone
		st.Config = cfg
	case loaded.Config.Card == cfg.Card:
		st, drift = loaded.Clone(), DriftEdited
		st.Config = cfg
		if st.Completed >= cfg.Purchases {
			// quota lowered to what this cycle already delivered
			st.Completed = 0
			next := NextCycleStart(now, cfg.Days)
			st.NextEligible = &next
		}
	default:
		st, drift = model.NewScheduleState(cfg), DriftCardChanged
	}
	if st.History == nil {
		st.History = []model.PurchaseRecord{}
	}
	if st.NextEligible == nil {
		today := DateOf(now)
		st.NextEligible = &today
	}
	return st, drift
}
