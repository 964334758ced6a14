// Package handler is the thin HTTP layer over the lifecycle engine. It
// delegates to the engine without embedding business logic so transport
// concerns remain isolated.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"breachscan/internal/platform/metrics"
	"breachscan/internal/platform/middleware"
	"breachscan/internal/scan/models"
	"breachscan/internal/scan/txstatus"
	domainerrors "breachscan/pkg/domain-errors"
)

// Service defines the engine operations the transport needs.
type Service interface {
	Submit(ctx context.Context, owner, plaintext string) (string, error)
	Verify(ctx context.Context, id string) (models.ScanRecord, error)
	Get(ctx context.Context, id string) (models.ScanRecord, error)
	List(ctx context.Context) ([]models.ScanRecord, error)
	Stats(ctx context.Context) (models.Stats, error)
	Status() (txstatus.Update, bool)
}

// Handler handles scan registry endpoints.
type Handler struct {
	logger    *slog.Logger
	scans     Service
	metrics   *metrics.Metrics
	validator middleware.OwnerValidator
}

// New creates a new scan Handler.
func New(scans Service, logger *slog.Logger, m *metrics.Metrics, validator middleware.OwnerValidator) *Handler {
	return &Handler{
		logger:    logger,
		scans:     scans,
		metrics:   m,
		validator: validator,
	}
}

// Register mounts the scan routes on the chi router.
func (h *Handler) Register(r chi.Router) {
	scanRouter := chi.NewRouter()
	scanRouter.Use(middleware.Recovery(h.logger))
	scanRouter.Use(middleware.RequestID)
	scanRouter.Use(middleware.Logger(h.logger))
	scanRouter.Use(middleware.Timeout(30 * time.Second))
	scanRouter.Use(middleware.ContentTypeJSON)
	if h.metrics != nil {
		scanRouter.Use(middleware.Latency(h.metrics))
	}
	scanRouter.Use(middleware.RequireAuth(h.validator, h.logger))

	scanRouter.Post("/scans", h.handleSubmit)
	scanRouter.Get("/scans", h.handleList)
	scanRouter.Get("/scans/stats", h.handleStats)
	scanRouter.Get("/scans/status", h.handleStatus)
	scanRouter.Get("/scans/{id}", h.handleGet)
	scanRouter.Post("/scans/{id}/verify", h.handleVerify)

	r.Mount("/", scanRouter)
}

type submitRequest struct {
	Password string `json:"password"`
}

type submitResponse struct {
	ID string `json:"id"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := middleware.GetOwner(ctx)
	if owner == "" {
		h.logger.ErrorContext(ctx, "owner missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		writeError(w, domainerrors.New(domainerrors.CodeInternal, "authentication context error"))
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "invalid request body"))
		return
	}

	id, err := h.scans.Submit(ctx, owner, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "scan submission failed",
			"request_id", middleware.GetRequestID(ctx),
			"owner", owner,
			"error", err.Error(),
		)
		// Partial failures still carry the id so the caller can read the
		// orphaned record directly.
		if domainerrors.CodeOf(err) == domainerrors.CodePartialFailure && id != "" {
			writeJSONStatus(w, http.StatusInternalServerError, map[string]string{
				"error": string(domainerrors.CodePartialFailure),
				"id":    id,
			})
			return
		}
		writeError(w, err)
		return
	}

	writeJSONStatus(w, http.StatusAccepted, submitResponse{ID: id})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := h.scans.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	records = filterRecords(records, r.URL.Query().Get("status"), r.URL.Query().Get("q"))
	writeJSON(w, toRecordResponses(records))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.scans.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, toRecordResponse(rec))
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	rec, err := h.scans.Verify(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, toRecordResponse(rec))
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.scans.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, stats)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	update, visible := h.scans.Status()
	writeJSON(w, statusResponse{Visible: visible, Update: update})
}

// filterRecords applies the listing's status and substring filters.
func filterRecords(records []models.ScanRecord, status, q string) []models.ScanRecord {
	if status == "" && q == "" {
		return records
	}
	q = strings.ToLower(q)
	out := records[:0:0]
	for _, rec := range records {
		if status != "" && string(rec.Status) != status {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(rec.ID), q) &&
			!strings.Contains(strings.ToLower(rec.Owner), q) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
