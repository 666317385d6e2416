package crawler

// RunPhase is the lifecycle state of a submitted run.
type RunPhase string

const (
	RunPending   RunPhase = "pending"
	RunRunning   RunPhase = "running"
	RunSucceeded RunPhase = "succeeded"
	RunFailed    RunPhase = "failed"
	RunCanceled  RunPhase = "canceled"
)

// Terminal reports whether the phase is final.
func (p RunPhase) Terminal() bool {
	switch p {
	case RunSucceeded, RunFailed, RunCanceled:
		return true
	default:
		return false
	}
}

// RunRequest describes one submitted crawl run. Either Items is set directly
// or ListingURL names a region listing for discovery to expand.
type RunRequest struct {
	RunID string `json:"run_id"`
	// Region labels the run's items for persistence and export.
	Region string `json:"region,omitempty"`
	// ListingURL, when set, is walked by discovery to produce the work items.
	ListingURL string `json:"listing_url,omitempty"`
	// Items are crawled as-is when provided.
	Items []WorkItem `json:"items,omitempty"`
	// DefaultCount is the resolver fallback review count per item.
	DefaultCount int `json:"default_count,omitempty"`
}
