package events

// Typed payloads for the events the analysis services emit. Keeping these as
// structs (rather than loose maps) documents what each stream consumer can
// rely on.

// PricesSyncedData contains data for PricesSynced events
type PricesSyncedData struct {
	Symbols []string `json:"symbols"`
	Bars    int      `json:"bars"`
}

// ChainAnalyzedData contains data for ChainAnalyzed events
type ChainAnalyzedData struct {
	Underlying string  `json:"underlying"`
	Contracts  int     `json:"contracts"`
	Spot       float64 `json:"spot"`
}

// RiskAnalyzedData contains data for RiskAnalyzed events
type RiskAnalyzedData struct {
	Symbols      int     `json:"symbols"`
	Observations int     `json:"observations"`
	Sharpe       float64 `json:"sharpe"`
}

// OptimizationCompletedData contains data for OptimizationCompleted events
type OptimizationCompletedData struct {
	Assets    int     `json:"assets"`
	Sharpe    float64 `json:"sharpe"`
	Converged bool    `json:"converged"`
}

// RebalancePlannedData contains data for RebalancePlanned events
type RebalancePlannedData struct {
	PlanID    string  `json:"plan_id"`
	Sells     int     `json:"sells"`
	Buys      int     `json:"buys"`
	TaxImpact float64 `json:"tax_impact"`
}

// SnapshotSavedData contains data for SnapshotSaved events
type SnapshotSavedData struct {
	SnapshotID string  `json:"snapshot_id"`
	TotalValue float64 `json:"total_value"`
	Positions  int     `json:"positions"`
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Filename  string  `json:"filename"`
	SizeBytes int64   `json:"size_bytes"`
	Seconds   float64 `json:"seconds"`
}

// JobStatusData contains data for job lifecycle events
type JobStatusData struct {
	Job    string  `json:"job"`
	Status string  `json:"status"` // started | completed | failed
	Error  string  `json:"error,omitempty"`
	Took   float64 `json:"took_seconds,omitempty"`
}
