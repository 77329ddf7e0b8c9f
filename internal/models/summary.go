package models

// ItemError captures a single failed item inside a batch run. Batch jobs
// never abort on item failures; they accumulate here instead.
type ItemError struct {
	StudentID    string `json:"student_id,omitempty"`
	MonthlyFeeID string `json:"monthly_fee_id,omitempty"`
	Reason       string `json:"reason"`
}

// GenerationSummary reports one fee generation run.
type GenerationSummary struct {
	Year    int         `json:"year"`
	Month   int         `json:"month"`
	Created int         `json:"created"`
	Skipped int         `json:"skipped"`
	Errors  []ItemError `json:"errors,omitempty"`
}

// SweepSummary reports one reminder sweep run.
type SweepSummary struct {
	Date    string         `json:"date"`
	Sent    int            `json:"sent"`
	Skipped int            `json:"skipped"`
	Failed  int            `json:"failed"`
	ByType  map[string]int `json:"by_type"`
	Errors  []ItemError    `json:"errors,omitempty"`
}
