package dto

// SetIntervalRequest changes a queue's refresh cadence.
type SetIntervalRequest struct {
	Seconds int `json:"seconds"`
}

// AvailabilityRequest toggles an agent within a queue.
type AvailabilityRequest struct {
	Available       bool   `json:"available"`
	Reason          string `json:"reason"`
	ExpectedVersion int64  `json:"expected_version"`
}

// WatchResponse reports the monitor state of a queue.
type WatchResponse struct {
	QueueID         string `json:"queue_id"`
	Watched         bool   `json:"watched"`
	IntervalSeconds int    `json:"interval_seconds,omitempty"`
}
