package models

// RequestStats aggregates help-request counts and resolution latency.
// AvgResolutionMinutes covers resolved requests only; timed-out
// requests never contribute to the average.
type RequestStats struct {
	Total                int     `json:"total"`
	Pending              int     `json:"pending"`
	Resolved             int     `json:"resolved"`
	Timeout              int     `json:"timeout"`
	AvgResolutionMinutes float64 `json:"avg_resolution_minutes"`
}
