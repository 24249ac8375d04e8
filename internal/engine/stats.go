package engine

// Stats summarizes one request.
type Stats struct {
	// Evaluations is the number of contexts pushed onto the stack.
	Evaluations int `json:"evaluations"`
	// Untracked is the number of evaluations dropped because the stack was full.
	Untracked int `json:"untracked"`
	// Finalized is the number of contexts converted to records.
	Finalized int `json:"finalized"`
	// Failed is the number of finalized contexts marked as failures.
	Failed int `json:"failed"`
	// Duplicates is the number of records suppressed by the filter group.
	Duplicates int `json:"duplicates"`
	// Attempts, Stored and Dropped mirror the log buffer counters.
	Attempts int `json:"attempts"`
	Stored   int `json:"stored"`
	Dropped  int `json:"dropped"`
	// CleanupSweeps is the number of sweeps that finalized at least one
	// context; Swept is the number of contexts they finalized.
	CleanupSweeps int `json:"cleanup_sweeps"`
	Swept         int `json:"swept"`
	// Flushed is the number of contexts still open at FinishRequest.
	Flushed int `json:"flushed"`
	// Rotations is the number of filters cleared by the filter group.
	Rotations int `json:"rotations"`
	// FilterSaturated is set when the filter group's current filter held
	// more records than its design capacity at the end of the request.
	FilterSaturated bool `json:"filter_saturated,omitempty"`
}
