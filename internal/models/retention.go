package models

// RetentionPolicy is the configured size ceiling and per-world minimum-keep
// count governing automatic eviction.
type RetentionPolicy struct {
	MaxAggregateBytes int64 `json:"maxAggregateBytes"`
	MinKeepPerWorld   int   `json:"minKeepPerWorld"`
}

// EvictionReport describes what a retention pass actually did.
type EvictionReport struct {
	Deleted             []Backup `json:"deleted"`
	FinalAggregateBytes int64    `json:"finalAggregateBytes"`

	// BudgetStillExceeded means every world is at or below the minimum-keep
	// floor and the aggregate is still over budget. The caller is expected to
	// surface this as a warning: raise the limit or free space manually.
	BudgetStillExceeded bool `json:"budgetStillExceeded"`
}
