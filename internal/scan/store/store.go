// Package store persists individual scan records, one key-value entry per
// identifier. It does not distinguish create from update; the lifecycle
// engine enforces the single terminal transition by construction.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"breachscan/internal/kvstore"
	"breachscan/internal/scan/models"
	"breachscan/pkg/sentinel"
)

// RecordStore reads and writes serialized scan records.
type RecordStore struct {
	store  kvstore.Store
	logger *slog.Logger
}

func New(store kvstore.Store, logger *slog.Logger) *RecordStore {
	return &RecordStore{store: store, logger: logger}
}

// CreateOrReplace serializes the record and writes it under its key. Used for
// both initial creation and the single resolution update.
func (s *RecordStore) CreateOrReplace(ctx context.Context, rec models.ScanRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.ID, err)
	}
	if err := s.store.Set(ctx, kvstore.RecordKey(rec.ID), payload); err != nil {
		return fmt.Errorf("write record %s: %w", rec.ID, err)
	}
	return nil
}

// Read returns the record for id. A malformed payload is logged and reported
// as sentinel.ErrNotFound, never as a fatal error.
func (s *RecordStore) Read(ctx context.Context, id string) (models.ScanRecord, error) {
	if !s.store.IsAvailable(ctx) {
		return models.ScanRecord{}, sentinel.ErrNotFound
	}
	raw, err := s.store.Get(ctx, kvstore.RecordKey(id))
	if errors.Is(err, sentinel.ErrUnavailable) {
		return models.ScanRecord{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.ScanRecord{}, err
	}

	var rec models.ScanRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.logger.WarnContext(ctx, "record payload undecodable",
			"id", id,
			"error", err,
		)
		return models.ScanRecord{}, sentinel.ErrNotFound
	}
	rec.ID = id
	if !rec.Status.Valid() {
		rec.Status = models.StatusProcessing
	}
	return rec, nil
}

// ReadAll reads each id independently. A failed or malformed read is skipped,
// not fatal to the batch; result order follows the input ids.
func (s *RecordStore) ReadAll(ctx context.Context, ids []string) ([]models.ScanRecord, error) {
	records := make([]models.ScanRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Read(ctx, id)
		if err != nil {
			if !errors.Is(err, sentinel.ErrNotFound) {
				s.logger.WarnContext(ctx, "skipping unreadable record",
					"id", id,
					"error", err,
				)
			}
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
