package audit

import "time"

// EventType labels a lifecycle transition worth keeping a trail of.
type EventType string

const (
	EventScanSubmitted    EventType = "scan_submitted"
	EventScanIndexed      EventType = "scan_indexed"
	EventScanOrphaned     EventType = "scan_orphaned"
	EventScanResolved     EventType = "scan_resolved"
	EventResolutionFailed EventType = "scan_resolution_failed"
	EventScanVerified     EventType = "scan_verified"
)

// Event is one append-only audit entry for a scan.
type Event struct {
	Type      EventType `json:"type"`
	ScanID    string    `json:"scan_id"`
	Owner     string    `json:"owner,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
