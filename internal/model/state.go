package model

import "time"

// PurchaseRecord is one attempted reload.
type PurchaseRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	RunID           string    `json:"run_id,omitempty"`
	Amount          float64   `json:"amount"`
	CompletedAtTime int       `json:"completed_at_time"`
	Succeeded       bool      `json:"succeeded"`
	Error           string    `json:"error,omitempty"`
}

// ScheduleState tracks reload progress of one account within the current month cycle.
type ScheduleState struct {
	Config       AccountConfig    `json:"config"`
	Completed    int              `json:"completed"`
	NextEligible *time.Time       `json:"next_eligible,omitempty"`
	History      []PurchaseRecord `json:"history"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// NewScheduleState returns a fresh state for cfg that is eligible immediately.
func NewScheduleState(cfg AccountConfig) *ScheduleState {
	return &ScheduleState{
		Config:  cfg,
		History: []PurchaseRecord{},
	}
}

// Remaining is the number of reloads still owed this cycle.
func (s *ScheduleState) Remaining() int {
	if n := s.Config.Purchases - s.Completed; n > 0 {
		return n
	}
	return 0
}

// Clone returns a deep copy of the state.
func (s *ScheduleState) Clone() *ScheduleState {
	c := *s
	if s.NextEligible != nil {
		t := *s.NextEligible
		c.NextEligible = &t
	}
	c.History = append([]PurchaseRecord(nil), s.History...)
	return &c
}
