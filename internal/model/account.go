package model

// MinAmount is the smallest reload amount a backend accepts.
const MinAmount = 0.50

// Credentials are handed to the executor untouched.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AmountRange bounds a single reload amount. Min == Max means a fixed amount.
type AmountRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DayRange bounds the calendar days (inclusive) on which reloads may run.
type DayRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether day lies within the range.
func (r DayRange) Contains(day int) bool {
	return day >= r.Min && day <= r.Max
}

// AccountConfig describes the reload rules of one account for a run.
type AccountConfig struct {
	Name        string      `json:"name"`
	Credentials Credentials `json:"credentials"`
	Card        string      `json:"card"`
	Purchases   int         `json:"purchases"`
	Amounts     AmountRange `json:"amounts"`
	Days        DayRange    `json:"days"`
	Burst       bool        `json:"burst"`
}
