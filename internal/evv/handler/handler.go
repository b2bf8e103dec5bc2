// Package handler exposes the EVV compliance operations over HTTP. Handlers
// decode, delegate, and map errors; all compliance logic lives in the
// orchestrator.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"carebridge/internal/evv/models"
	"carebridge/internal/evv/orchestrator"
	"carebridge/internal/evv/ports"
	"carebridge/internal/integration"
	"carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/platform/audit"
	"carebridge/pkg/platform/httputil"
	"carebridge/pkg/platform/sentinel"
	"carebridge/pkg/requestcontext"
)

// Orchestrator is the compliance surface the handler delegates to.
type Orchestrator interface {
	ValidateWithFeedback(ctx context.Context, record *models.EVVRecord, state domain.StateCode) (*models.RealTimeValidationFeedback, error)
	ValidateAndSubmit(ctx context.Context, record *models.EVVRecord, state domain.StateCode) (*models.RealTimeValidationFeedback, error)
	ValidateBatch(ctx context.Context, items []orchestrator.BatchItem) []orchestrator.BatchResult
	GenerateComplianceDashboard(state domain.StateCode, start, end time.Time, records []*models.EVVRecord) models.StateComplianceDashboard
}

// Handler wires EVV endpoints to the orchestrator and its stores.
type Handler struct {
	orchestrator Orchestrator
	records      ports.RecordStore
	visits       integration.Client
	lock         ports.SubmissionLock
	audits       ports.AuditPublisher
	logger       *slog.Logger
}

func New(orch Orchestrator, records ports.RecordStore, visits integration.Client, lock ports.SubmissionLock, audits ports.AuditPublisher, logger *slog.Logger) *Handler {
	return &Handler{
		orchestrator: orch,
		records:      records,
		visits:       visits,
		lock:         lock,
		audits:       audits,
		logger:       logger,
	}
}

// Register mounts EVV endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Put("/evv/records", h.HandleIngestRecord)
	r.Get("/evv/records/{visitID}", h.HandleGetRecord)
	r.Post("/evv/records/{visitID}/validate", h.HandleValidate)
	r.Post("/evv/records/{visitID}/submit", h.HandleValidateAndSubmit)
	r.Post("/evv/records/validate-batch", h.HandleValidateBatch)
	r.Get("/evv/dashboard/{state}", h.HandleDashboard)
}

// HandleIngestRecord handles PUT /evv/records. Schedule context missing from
// the request is hydrated from the scheduling system.
func (h *Handler) HandleIngestRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IngestRecordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := req.ToRecord()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if existing, err := h.records.Get(ctx, record.VisitID); err == nil {
		if !h.rejectArchived(w, existing) {
			return
		}
	}

	if err := h.hydrateRecord(ctx, record); err != nil {
		h.logger.ErrorContext(ctx, "visit context hydration failed",
			"request_id", requestID,
			"visit_id", record.VisitID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	if err := h.records.Put(ctx, record); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "store EVV record"))
		return
	}

	h.logger.InfoContext(ctx, "EVV record ingested",
		"request_id", requestID,
		"visit_id", record.VisitID,
		"state", record.State,
	)
	httputil.WriteJSON(w, http.StatusCreated, record)
}

// hydrateRecord fills schedule and address context from the scheduling system
// when the request omitted them.
func (h *Handler) hydrateRecord(ctx context.Context, record *models.EVVRecord) error {
	needsAddress := record.ServiceAddress.Latitude == 0 && record.ServiceAddress.Longitude == 0
	if !record.ScheduledStart.IsZero() && !record.ServiceDate.IsZero() && !needsAddress {
		return nil
	}

	visit, err := h.visits.GetVisitData(ctx, record.VisitID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "visit not found in scheduling system")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "fetch visit context")
	}

	if record.ScheduledStart.IsZero() {
		record.ScheduledStart = visit.ScheduledStart
	}
	if record.ServiceDate.IsZero() {
		record.ServiceDate = visit.ServiceDate
	}
	if needsAddress {
		record.ServiceAddress = visit.ServiceAddress
	}
	return nil
}

// HandleGetRecord handles GET /evv/records/{visitID}.
func (h *Handler) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	record, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleValidate handles POST /evv/records/{visitID}/validate. The computed
// flags are folded back onto the stored record; no submission happens.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	record, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	if !h.rejectArchived(w, record) {
		return
	}

	feedback, err := h.orchestrator.ValidateWithFeedback(ctx, record, record.State)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	orchestrator.ApplyFeedback(record, feedback)
	if err := h.records.Put(ctx, record); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "store validated record"))
		return
	}

	ports.LogAudit(ctx, h.logger, h.audits, audit.EventVisitValidated,
		"request_id", requestcontext.RequestID(ctx),
		"visit_id", record.VisitID.String(),
		"state", record.State.String(),
		"status", string(feedback.Status),
		"regulatory_context", feedback.RegulatoryContext,
	)
	httputil.WriteJSON(w, http.StatusOK, feedback)
}

// HandleValidateAndSubmit handles POST /evv/records/{visitID}/submit. The
// per-visit lock gives at-most-once submission under concurrent requests.
func (h *Handler) HandleValidateAndSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	record, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	if !h.rejectArchived(w, record) {
		return
	}

	acquired, err := h.lock.Acquire(ctx, record.VisitID)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "acquire submission lock"))
		return
	}
	if !acquired {
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "a submission for this visit is already in progress"))
		return
	}
	defer func() {
		if err := h.lock.Release(ctx, record.VisitID); err != nil {
			h.logger.WarnContext(ctx, "submission lock release failed",
				"request_id", requestID,
				"visit_id", record.VisitID,
				"error", err,
			)
		}
	}()

	feedback, err := h.orchestrator.ValidateAndSubmit(ctx, record, record.State)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	orchestrator.ApplyFeedback(record, feedback)
	if err := h.records.Put(ctx, record); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "store submitted record"))
		return
	}

	h.logger.InfoContext(ctx, "EVV submission processed",
		"request_id", requestID,
		"visit_id", record.VisitID,
		"state", record.State,
		"status", feedback.Status,
		"submission_state", feedback.SubmissionState,
	)
	httputil.WriteJSON(w, http.StatusOK, feedback)
}

// HandleValidateBatch handles POST /evv/records/validate-batch. Items fail
// independently; one bad visit never poisons the batch.
func (h *Handler) HandleValidateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ValidateBatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if len(req.Items) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "batch must contain at least one item"))
		return
	}

	response := BatchResponse{Results: make([]BatchItemResponse, len(req.Items))}

	var items []orchestrator.BatchItem
	var itemIndex []int
	for i, item := range req.Items {
		response.Results[i].VisitID = item.VisitID

		visitID, err := domain.ParseVisitID(item.VisitID)
		if err != nil {
			response.Results[i].Error = "invalid visit_id"
			continue
		}
		state, err := domain.ParseStateCode(item.State)
		if err != nil {
			response.Results[i].Error = "invalid state code"
			continue
		}
		record, err := h.records.Get(ctx, visitID)
		if err != nil {
			response.Results[i].Error = "record not found"
			continue
		}
		items = append(items, orchestrator.BatchItem{Record: record, State: state})
		itemIndex = append(itemIndex, i)
	}

	for j, result := range h.orchestrator.ValidateBatch(ctx, items) {
		i := itemIndex[j]
		if result.Err != nil {
			response.Results[i].Error = result.Err.Error()
			continue
		}
		response.Results[i].Feedback = result.Feedback
	}

	httputil.WriteJSON(w, http.StatusOK, response)
}

// HandleDashboard handles GET /evv/dashboard/{state}?start=&end=. The range
// defaults to the trailing 30 days.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state, err := domain.ParseStateCode(chi.URLParam(r, "state"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	end := requestcontext.Now(ctx).Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -30)
	if raw := r.URL.Query().Get("start"); raw != "" {
		if start, err = time.Parse("2006-01-02", raw); err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "parse start date"))
			return
		}
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		if end, err = time.Parse("2006-01-02", raw); err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "parse end date"))
			return
		}
	}
	if end.Before(start) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "end date precedes start date"))
		return
	}

	records, err := h.records.ListByStateAndRange(ctx, state, start, end)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list records for dashboard"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, h.orchestrator.GenerateComplianceDashboard(state, start, end, records))
}

// rejectArchived enforces the archived-record lifecycle rule: once archived,
// a record only changes through the correction unlock workflow, never through
// validation or submission. Returns false after writing the conflict response.
func (h *Handler) rejectArchived(w http.ResponseWriter, record *models.EVVRecord) bool {
	if record.Archived {
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict,
			"record is archived; corrections require an unlock request"))
		return false
	}
	return true
}

func (h *Handler) loadRecord(w http.ResponseWriter, r *http.Request) (*models.EVVRecord, bool) {
	visitID, err := domain.ParseVisitID(chi.URLParam(r, "visitID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "parse visit id"))
		return nil, false
	}
	record, err := h.records.Get(r.Context(), visitID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "EVV record not found"))
			return nil, false
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "load EVV record"))
		return nil, false
	}
	return record, true
}
