// Package service drives scan records through their lifecycle: encrypt the
// input, create the record, register it in the index, and resolve it
// asynchronously after a fixed delay. The engine exclusively owns record
// creation and the single resolution mutation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"breachscan/internal/audit"
	"breachscan/internal/fingerprint"
	"breachscan/internal/match"
	"breachscan/internal/platform/metrics"
	"breachscan/internal/scan/index"
	"breachscan/internal/scan/models"
	"breachscan/internal/scan/store"
	"breachscan/internal/scan/txstatus"
	domainerrors "breachscan/pkg/domain-errors"
	"breachscan/pkg/sentinel"
)

// Operation names reported through the transaction status channel.
const (
	OpSubmit = "submit"
	OpVerify = "verify"
)

// Engine orchestrates the scan lifecycle. Within one record, creation
// happens-before index registration happens-before the resolution write;
// across records there is no ordering guarantee.
type Engine struct {
	records   *store.RecordStore
	index     *index.Manager
	encrypter fingerprint.Encrypter
	matcher   match.Matcher
	status    *txstatus.Reporter
	metrics   *metrics.Metrics
	logger    *slog.Logger
	auditC    chan<- audit.Event

	resolutionDelay time.Duration
	opTimeout       time.Duration
	now             func() time.Time

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
	closed  bool
}

// Config wires the engine's collaborators.
type Config struct {
	Records         *store.RecordStore
	Index           *index.Manager
	Encrypter       fingerprint.Encrypter
	Matcher         match.Matcher
	Status          *txstatus.Reporter
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
	Audit           chan<- audit.Event
	ResolutionDelay time.Duration
	OpTimeout       time.Duration
}

func New(cfg Config) *Engine {
	e := &Engine{
		records:         cfg.Records,
		index:           cfg.Index,
		encrypter:       cfg.Encrypter,
		matcher:         cfg.Matcher,
		status:          cfg.Status,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		auditC:          cfg.Audit,
		resolutionDelay: cfg.ResolutionDelay,
		opTimeout:       cfg.OpTimeout,
		now:             time.Now,
		pending:         make(map[string]*time.Timer),
	}
	if e.resolutionDelay <= 0 {
		e.resolutionDelay = 3 * time.Second
	}
	if e.opTimeout <= 0 {
		e.opTimeout = 5 * time.Second
	}
	return e
}

// Submit runs the synchronous half of a scan: encrypt, create, register.
// It returns as soon as the record is indexed; resolution is scheduled and
// runs independently. On a partial failure (record written, index append
// failed) the id is still returned alongside the error so the orphaned record
// stays directly readable.
func (e *Engine) Submit(ctx context.Context, owner, plaintext string) (string, error) {
	if owner == "" {
		return "", domainerrors.New(domainerrors.CodeBadRequest, "owner is required")
	}
	if plaintext == "" {
		return "", domainerrors.New(domainerrors.CodeBadRequest, "password input is required")
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", domainerrors.New(domainerrors.CodeUnavailable, "engine is shutting down")
	}
	e.mu.Unlock()

	e.status.Begin(OpSubmit, "Encrypting password fingerprint...")

	sealed, err := e.encrypter.Encrypt(plaintext)
	if err != nil {
		e.status.Fail(OpSubmit, "Encryption failed: "+err.Error())
		e.metrics.IncSubmitFailure("encrypt")
		return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "encrypt fingerprint")
	}

	created := e.now()
	rec := models.ScanRecord{
		ID:                   newID(created),
		EncryptedFingerprint: sealed,
		CreatedAt:            created.Unix(),
		Owner:                owner,
		Status:               models.StatusProcessing,
	}

	opCtx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	if err := e.records.CreateOrReplace(opCtx, rec); err != nil {
		code, msg := classifyWriteError(err)
		e.status.Fail(OpSubmit, msg)
		e.metrics.IncSubmitFailure("create")
		e.logger.ErrorContext(ctx, "record creation failed",
			"id", rec.ID,
			"owner", owner,
			"error", err,
		)
		return "", domainerrors.Wrap(err, code, "create scan record")
	}

	if err := e.index.Append(opCtx, rec.ID); err != nil {
		// Documented partial-failure state: the record exists but is not
		// discoverable by listing. No automatic retry.
		e.status.Fail(OpSubmit, "Record stored but could not be indexed; it remains readable by id "+rec.ID)
		e.metrics.IncSubmitFailure("index")
		e.publishAudit(audit.Event{Type: audit.EventScanOrphaned, ScanID: rec.ID, Owner: owner, Detail: err.Error()})
		e.logger.ErrorContext(ctx, "index append failed, record orphaned",
			"id", rec.ID,
			"error", err,
		)
		return rec.ID, domainerrors.Wrap(
			errors.Join(sentinel.ErrPartialFailure, err),
			domainerrors.CodePartialFailure,
			"scan record created but not indexed",
		)
	}

	e.metrics.IncSubmitted()
	e.publishAudit(audit.Event{Type: audit.EventScanSubmitted, ScanID: rec.ID, Owner: owner})
	e.publishAudit(audit.Event{Type: audit.EventScanIndexed, ScanID: rec.ID, Owner: owner})
	e.status.Succeed(OpSubmit, "Password encrypted and submitted for analysis")

	e.scheduleResolution(rec)
	return rec.ID, nil
}

// scheduleResolution arms the deferred resolution step. The timer is
// non-cancelable once fired; Close stops timers that have not fired yet, in
// which case the record stays Processing.
func (e *Engine) scheduleResolution(rec models.ScanRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.wg.Add(1)
	e.pending[rec.ID] = time.AfterFunc(e.resolutionDelay, func() {
		defer e.wg.Done()
		e.mu.Lock()
		delete(e.pending, rec.ID)
		e.mu.Unlock()
		e.resolve(rec)
	})
}

// resolve executes the single allowed post-creation mutation. Failures are
// logged and broadcast to status subscribers but never shown in the slot:
// resolution is not user-initiated, and the Processing record is not rolled
// back.
func (e *Engine) resolve(rec models.ScanRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), e.opTimeout)
	defer cancel()

	verdict, err := e.matcher.Match(ctx, rec.EncryptedFingerprint)
	if err != nil {
		e.resolutionFailed(ctx, rec, fmt.Errorf("match fingerprint: %w", err))
		return
	}
	resolved, err := rec.Resolved(verdict)
	if err != nil {
		e.resolutionFailed(ctx, rec, err)
		return
	}
	if err := e.records.CreateOrReplace(ctx, resolved); err != nil {
		e.resolutionFailed(ctx, rec, fmt.Errorf("write resolution: %w", err))
		return
	}

	e.metrics.IncResolved(string(resolved.Status))
	e.publishAudit(audit.Event{
		Type:   audit.EventScanResolved,
		ScanID: rec.ID,
		Owner:  rec.Owner,
		Detail: string(resolved.Status),
	})
	e.logger.InfoContext(ctx, "scan resolved",
		"id", rec.ID,
		"status", string(resolved.Status),
	)
}

func (e *Engine) resolutionFailed(ctx context.Context, rec models.ScanRecord, err error) {
	e.metrics.IncResolved("failed")
	e.publishAudit(audit.Event{
		Type:   audit.EventResolutionFailed,
		ScanID: rec.ID,
		Owner:  rec.Owner,
		Detail: err.Error(),
	})
	// The record may now stay Processing forever; that is accepted.
	e.logger.ErrorContext(ctx, "scan resolution failed",
		"id", rec.ID,
		"error", err,
	)
	e.status.Broadcast(OpSubmit, txstatus.StateError, "Resolution failed for scan "+rec.ID)
}

// Verify is a read-only re-check of a record: it must be readable and
// discoverable. It performs no mutation and never re-runs resolution.
func (e *Engine) Verify(ctx context.Context, id string) (models.ScanRecord, error) {
	e.status.Begin(OpVerify, "Re-checking encrypted record...")

	opCtx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	rec, err := e.records.Read(opCtx, id)
	if err != nil {
		e.status.Fail(OpVerify, "Verification failed: record not found")
		return models.ScanRecord{}, domainerrors.Wrap(err, domainerrors.CodeNotFound, "scan record not found")
	}

	ids, err := e.index.ListIDs(opCtx)
	if err != nil {
		e.status.Fail(OpVerify, "Verification failed: "+err.Error())
		return models.ScanRecord{}, domainerrors.Wrap(err, domainerrors.CodeUnavailable, "read index")
	}
	if !slices.Contains(ids, id) {
		e.status.Fail(OpVerify, "Record exists but is not discoverable by listing")
		return rec, domainerrors.Wrap(sentinel.ErrPartialFailure, domainerrors.CodePartialFailure, "record not indexed")
	}

	e.publishAudit(audit.Event{Type: audit.EventScanVerified, ScanID: id, Owner: rec.Owner})
	e.status.Succeed(OpVerify, "Verification completed successfully")
	return rec, nil
}

// Get reads a single record by id.
func (e *Engine) Get(ctx context.Context, id string) (models.ScanRecord, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()
	rec, err := e.records.Read(opCtx, id)
	if err != nil {
		return models.ScanRecord{}, domainerrors.Wrap(err, domainerrors.CodeNotFound, "scan record not found")
	}
	return rec, nil
}

// List returns all discoverable records, newest first. Read failures degrade
// to fewer results, never to an error: listing must not crash on a freshly
// initialized or unavailable store.
func (e *Engine) List(ctx context.Context) ([]models.ScanRecord, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	ids, err := e.index.ListIDs(opCtx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUnavailable, "list scan ids")
	}
	records, err := e.records.ReadAll(opCtx, ids)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "read scan records")
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt > records[j].CreatedAt
		}
		return records[i].ID > records[j].ID
	})
	return records, nil
}

// Stats aggregates record counts by status over all discoverable records.
func (e *Engine) Stats(ctx context.Context) (models.Stats, error) {
	records, err := e.List(ctx)
	if err != nil {
		return models.Stats{}, err
	}
	return models.Tally(records), nil
}

// Status exposes the transaction status slot.
func (e *Engine) Status() (txstatus.Update, bool) {
	return e.status.Current()
}

// Close stops accepting submissions and disarms resolutions that have not
// fired yet; those records stay Processing, as when an owning session ends.
// In-flight resolutions are waited for.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for id, timer := range e.pending {
		if timer.Stop() {
			e.wg.Done()
		}
		delete(e.pending, id)
	}
	e.mu.Unlock()
	e.wg.Wait()
}

// WaitResolutions blocks until every scheduled resolution has run. Test hook.
func (e *Engine) WaitResolutions() {
	e.wg.Wait()
}

// newID builds a time-based identifier with a random suffix, unique across
// concurrent submissions.
func newID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}

func classifyWriteError(err error) (domainerrors.Code, string) {
	switch {
	case errors.Is(err, sentinel.ErrRejected):
		return domainerrors.CodeRejected, "Submission rejected: write was declined"
	case errors.Is(err, sentinel.ErrUnavailable):
		return domainerrors.CodeUnavailable, "Submission failed: store unavailable"
	default:
		return domainerrors.CodeInternal, "Submission failed: " + err.Error()
	}
}

func (e *Engine) publishAudit(event audit.Event) {
	if e.auditC == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	select {
	case e.auditC <- event:
	default:
		e.logger.Warn("audit inbox full, dropping event",
			"type", string(event.Type),
			"scan_id", event.ScanID,
		)
	}
}
