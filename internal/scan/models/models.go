// Package models defines the scan registry's domain types and the persisted
// record layout.
package models

import (
	"fmt"
	"time"
)

// Status is a record's lifecycle state. It starts at Processing and
// transitions exactly once, to Safe or Breached, never back.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusSafe       Status = "safe"
	StatusBreached   Status = "breached"
)

// Valid reports whether s is a known status. Unknown values in stored
// payloads decode as Processing, matching the registry's historical data.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusSafe, StatusBreached:
		return true
	}
	return false
}

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusSafe || s == StatusBreached
}

// ScanRecord is one password-fingerprint scan. Identity fields (ID,
// EncryptedFingerprint, CreatedAt, Owner) never change after creation; only
// the terminal fields transition, exactly once.
//
// The JSON tags are the persisted value layout; the ID lives in the storage
// key, not the value.
type ScanRecord struct {
	ID                   string `json:"-"`
	EncryptedFingerprint string `json:"hash"`
	CreatedAt            int64  `json:"timestamp"`
	Owner                string `json:"owner"`
	Status               Status `json:"status"`
	Severity             *int   `json:"severity,omitempty"`
	BreachSource         string `json:"breachSource,omitempty"`
}

// MatchResult is the breach-match collaborator's verdict.
type MatchResult struct {
	Breached bool
	Severity int
	Source   string
}

// Resolved returns a copy of the record with the single allowed terminal
// transition applied. It fails if the record already left Processing or if
// the verdict violates the severity contract.
func (r ScanRecord) Resolved(verdict MatchResult) (ScanRecord, error) {
	if r.Status.Terminal() {
		return ScanRecord{}, fmt.Errorf("record %s already resolved to %s", r.ID, r.Status)
	}
	out := r
	if !verdict.Breached {
		out.Status = StatusSafe
		out.Severity = nil
		out.BreachSource = ""
		return out, nil
	}
	if verdict.Severity < 0 || verdict.Severity > 99 {
		return ScanRecord{}, fmt.Errorf("severity %d out of range [0,99]", verdict.Severity)
	}
	if verdict.Source == "" {
		return ScanRecord{}, fmt.Errorf("breached verdict requires a source label")
	}
	out.Status = StatusBreached
	sev := verdict.Severity
	out.Severity = &sev
	out.BreachSource = verdict.Source
	return out, nil
}

// CreatedTime converts the stored epoch seconds to time.Time.
func (r ScanRecord) CreatedTime() time.Time {
	return time.Unix(r.CreatedAt, 0)
}

// SeverityBand buckets a severity score the way the dashboard displays it.
func SeverityBand(severity int) string {
	switch {
	case severity > 70:
		return "high"
	case severity > 30:
		return "medium"
	default:
		return "low"
	}
}

// Stats aggregates record counts by status.
type Stats struct {
	Total      int `json:"total"`
	Safe       int `json:"safe"`
	Breached   int `json:"breached"`
	Processing int `json:"processing"`
}

// Tally computes stats over a batch of records.
func Tally(records []ScanRecord) Stats {
	s := Stats{Total: len(records)}
	for _, r := range records {
		switch r.Status {
		case StatusSafe:
			s.Safe++
		case StatusBreached:
			s.Breached++
		default:
			s.Processing++
		}
	}
	return s
}
