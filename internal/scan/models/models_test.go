package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func processingRecord() ScanRecord {
	return ScanRecord{
		ID:                   "1700000000000-abc1234",
		EncryptedFingerprint: "v1:deadbeef:payload",
		CreatedAt:            1700000000,
		Owner:                "0xAA",
		Status:               StatusProcessing,
	}
}

func TestResolved_Safe(t *testing.T) {
	rec, err := processingRecord().Resolved(MatchResult{Breached: false})
	require.NoError(t, err)

	assert.Equal(t, StatusSafe, rec.Status)
	assert.Nil(t, rec.Severity)
	assert.Empty(t, rec.BreachSource)
}

func TestResolved_Breached(t *testing.T) {
	rec, err := processingRecord().Resolved(MatchResult{Breached: true, Severity: 87, Source: "Known breach database"})
	require.NoError(t, err)

	assert.Equal(t, StatusBreached, rec.Status)
	require.NotNil(t, rec.Severity)
	assert.Equal(t, 87, *rec.Severity)
	assert.Equal(t, "Known breach database", rec.BreachSource)
}

func TestResolved_TransitionsAtMostOnce(t *testing.T) {
	safe, err := processingRecord().Resolved(MatchResult{})
	require.NoError(t, err)

	_, err = safe.Resolved(MatchResult{Breached: true, Severity: 10, Source: "x"})
	assert.Error(t, err)

	breached, err := processingRecord().Resolved(MatchResult{Breached: true, Severity: 10, Source: "x"})
	require.NoError(t, err)
	_, err = breached.Resolved(MatchResult{})
	assert.Error(t, err)
}

func TestResolved_SeverityContract(t *testing.T) {
	_, err := processingRecord().Resolved(MatchResult{Breached: true, Severity: 100, Source: "x"})
	assert.Error(t, err)

	_, err = processingRecord().Resolved(MatchResult{Breached: true, Severity: -1, Source: "x"})
	assert.Error(t, err)

	_, err = processingRecord().Resolved(MatchResult{Breached: true, Severity: 50})
	assert.Error(t, err, "breached verdict without a source must be rejected")

	rec, err := processingRecord().Resolved(MatchResult{Breached: true, Severity: 0, Source: "x"})
	require.NoError(t, err)
	assert.Equal(t, 0, *rec.Severity)
}

func TestPersistedLayout(t *testing.T) {
	rec := processingRecord()
	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Contains(t, payload, "hash")
	assert.Contains(t, payload, "timestamp")
	assert.Contains(t, payload, "owner")
	assert.Contains(t, payload, "status")
	assert.NotContains(t, payload, "severity", "severity is absent unless breached")
	assert.NotContains(t, payload, "id", "the id lives in the storage key")
}

func TestSeverityBand(t *testing.T) {
	assert.Equal(t, "high", SeverityBand(71))
	assert.Equal(t, "medium", SeverityBand(70))
	assert.Equal(t, "medium", SeverityBand(31))
	assert.Equal(t, "low", SeverityBand(30))
	assert.Equal(t, "low", SeverityBand(0))
}

func TestTally(t *testing.T) {
	sev := 5
	records := []ScanRecord{
		{Status: StatusSafe},
		{Status: StatusSafe},
		{Status: StatusBreached, Severity: &sev},
		{Status: StatusProcessing},
	}
	stats := Tally(records)
	assert.Equal(t, Stats{Total: 4, Safe: 2, Breached: 1, Processing: 1}, stats)

	assert.Equal(t, Stats{}, Tally(nil))
}
