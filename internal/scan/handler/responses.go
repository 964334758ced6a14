package handler

import (
	"encoding/json"
	"net/http"

	"breachscan/internal/scan/models"
	"breachscan/internal/scan/txstatus"
	domainerrors "breachscan/pkg/domain-errors"
)

// recordResponse is the wire shape of a scan record. The encrypted
// fingerprint stays server-side; clients only need lifecycle fields.
type recordResponse struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	CreatedAt    int64  `json:"createdAt"`
	Status       string `json:"status"`
	Severity     *int   `json:"severity,omitempty"`
	SeverityBand string `json:"severityBand,omitempty"`
	BreachSource string `json:"breachSource,omitempty"`
}

type statusResponse struct {
	Visible bool            `json:"visible"`
	Update  txstatus.Update `json:"update"`
}

func toRecordResponse(rec models.ScanRecord) recordResponse {
	out := recordResponse{
		ID:        rec.ID,
		Owner:     rec.Owner,
		CreatedAt: rec.CreatedAt,
		Status:    string(rec.Status),
	}
	if rec.Severity != nil {
		out.Severity = rec.Severity
		out.SeverityBand = models.SeverityBand(*rec.Severity)
	}
	out.BreachSource = rec.BreachSource
	return out
}

func toRecordResponses(records []models.ScanRecord) []recordResponse {
	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordResponse(rec))
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError centralizes domain error translation to HTTP responses so every
// handler emits the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := domainerrors.CodeOf(err)
	writeJSONStatus(w, domainerrors.ToHTTPStatus(code), map[string]string{
		"error": string(code),
	})
}
