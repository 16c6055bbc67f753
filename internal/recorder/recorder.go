package recorder

import "time"

// RunEvent summarises one account's part of a reload pass.
type RunEvent struct {
	RunID        string
	Account      string
	Drift        string // "none", "new", "edited", "card_changed"
	Eligible     bool
	Reason       string
	Burst        int
	Succeeded    int
	Failed       int
	Aborted      bool
	Shortfall    bool
	Rollover     bool
	Completed    int
	NextEligible time.Time
	Error        string
}

// PurchaseEvent records a single reload attempt.
type PurchaseEvent struct {
	RunID     string
	Account   string
	Timestamp time.Time
	Amount    float64
	Succeeded bool
	Completed int
	Error     string
}

// Recorder keeps an audit trail of reload passes for later analysis.
type Recorder interface {
	RecordRun(evt *RunEvent) error
	RecordPurchase(evt *PurchaseEvent) error
	Close() error
}
