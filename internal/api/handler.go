package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/tube-cutter/internal/cutting"
	"github.com/eugenenazirov/tube-cutter/internal/export"
	"github.com/eugenenazirov/tube-cutter/internal/metrics"
	"github.com/eugenenazirov/tube-cutter/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// PlannerFactory builds a planner for a stock capacity.
type PlannerFactory func(capacity float64) cutting.Planner

// Handler wires planner and storage dependencies into HTTP handlers.
type Handler struct {
	newPlanner PlannerFactory
	storage    storage.Storage
	logger     *zap.Logger
	metrics    *metrics.Metrics

	clock func() time.Time

	mu                sync.RWMutex
	capacityUpdatedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithLogger sets the logger used to report optimization runs.
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMetrics records every planner run on m.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(newPlanner PlannerFactory, store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		newPlanner: newPlanner,
		storage:    store,
		logger:     zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.capacityUpdatedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	h.respond(w, r, http.StatusOK, resp)
}

func (h *Handler) handleGetCapacity(w http.ResponseWriter, r *http.Request) {
	capacity, err := h.storage.GetCapacity()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := capacityResponse{
		Capacity:  capacity,
		UpdatedAt: h.currentCapacityUpdatedAt(),
	}
	h.respond(w, r, http.StatusOK, resp)
}

func (h *Handler) handlePutCapacity(w http.ResponseWriter, r *http.Request) {
	var req capacityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	if err := h.storage.SetCapacity(req.Capacity); err != nil {
		if errors.Is(err, storage.ErrInvalidCapacity) {
			writeError(w, http.StatusBadRequest, "Invalid capacity", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	h.markCapacityUpdated()

	resp := capacityResponse{
		Capacity:  req.Capacity,
		UpdatedAt: h.currentCapacityUpdatedAt(),
		Message:   "Stock capacity updated successfully",
	}
	h.respond(w, r, http.StatusOK, resp)
}

func (h *Handler) handleListDetails(w http.ResponseWriter, r *http.Request) {
	rows, err := h.storage.ListDetails()
	if err != nil {
		writeInternalError(w, err)
		return
	}
	h.respond(w, r, http.StatusOK, detailsResponse{Details: rows})
}

func (h *Handler) handleAddDetail(w http.ResponseWriter, r *http.Request) {
	var req addDetailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	row, err := h.storage.AddDetail(req.Name, req.Length, req.Quantity)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidDetail) {
			writeError(w, http.StatusBadRequest, "Invalid detail", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}
	h.respond(w, r, http.StatusCreated, row)
}

func (h *Handler) handleRemoveDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.storage.RemoveDetail(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Not found", fmt.Sprintf("no detail with id %q", id))
			return
		}
		writeInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClearDetails(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.ClearDetails(); err != nil {
		writeInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	details, capacity, ok := h.resolveInput(w, req.Details, req.Capacity)
	if !ok {
		return
	}

	start := time.Now()
	plan, planErr := h.newPlanner(capacity).Optimize(details)
	elapsed := time.Since(start)

	h.logRun(r.Context(), plan, elapsed, planErr)

	var unplaceable *cutting.UnplaceableDetailError
	switch {
	case planErr == nil:
		h.respond(w, r, http.StatusOK, newPlanResponse(plan, elapsed))
	case errors.As(planErr, &unplaceable):
		h.respond(w, r, http.StatusUnprocessableEntity, unplaceableResponse{
			errorResponse: errorResponse{
				Error:      "Unplaceable details",
				Details:    planErr.Error(),
				Suggestion: fmt.Sprintf("Every detail must be at most %g long; split or remove the listed details", capacity),
			},
			Unplaceable: unplaceable.Details,
			Plan:        newPlanResponse(plan, elapsed),
		})
	default:
		writePlannerError(w, planErr)
	}
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "pdf" {
		writeError(w, http.StatusBadRequest, "Invalid request", fmt.Sprintf("unsupported export format %q", format), "Use format=xlsx or format=pdf")
		return
	}

	details, capacity, ok := h.resolveInput(w, nil, 0)
	if !ok {
		return
	}

	plan, planErr := h.newPlanner(capacity).Optimize(details)
	h.logRun(r.Context(), plan, 0, planErr)
	if planErr != nil && !errors.Is(planErr, cutting.ErrUnplaceableDetail) {
		writePlannerError(w, planErr)
		return
	}

	var (
		buf         bytes.Buffer
		err         error
		contentType string
	)
	if format == "pdf" {
		err = export.WritePDF(&buf, plan)
		contentType = "application/pdf"
	} else {
		err = export.WriteXLSX(&buf, plan)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		writeInternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "cutting-plan."+format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// resolveInput returns the details and capacity to plan with. Inline values
// win over stored ones. It writes an error response and returns false when
// there is nothing valid to plan.
func (h *Handler) resolveInput(w http.ResponseWriter, inline []cutting.Detail, inlineCapacity float64) ([]cutting.Detail, float64, bool) {
	details := inline
	if len(details) == 0 {
		rows, err := h.storage.ListDetails()
		if err != nil {
			writeInternalError(w, err)
			return nil, 0, false
		}
		details = storage.ToDetails(rows)
	}
	if len(details) == 0 {
		writeError(w, http.StatusBadRequest, "Invalid request", "no details to optimize", "Add some details first")
		return nil, 0, false
	}
	for _, d := range details {
		if strings.TrimSpace(d.Name) == "" || !cutting.ValidLength(d.Length) || d.Amount <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid detail", fmt.Sprintf("detail %q: %s", d.Name, storage.ErrInvalidDetail.Error()))
			return nil, 0, false
		}
	}

	capacity := inlineCapacity
	if capacity == 0 {
		stored, err := h.storage.GetCapacity()
		if err != nil {
			writeInternalError(w, err)
			return nil, 0, false
		}
		capacity = stored
	}
	return details, capacity, true
}

func (h *Handler) logRun(ctx context.Context, plan cutting.CuttingPlan, elapsed time.Duration, err error) {
	fields := []zap.Field{
		zap.Float64("capacity", plan.Capacity),
		zap.Int("units", plan.TotalUnitsUsed),
		zap.Int("groups", len(plan.Groups)),
		zap.Float64("waste", plan.TotalWaste),
		zap.Bool("complete", plan.Complete),
		zap.Duration("duration", elapsed),
		zap.String("request_id", requestIDFromContext(ctx)),
	}
	if h.metrics != nil {
		h.metrics.ObservePlan(plan, elapsed, err)
	}
	if err != nil {
		h.logger.Warn("optimization incomplete", append(fields, zap.Error(err))...)
		return
	}
	h.logger.Info("optimization completed", fields...)
}

func writePlannerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cutting.ErrDuplicateDetail):
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error(), "Give every detail a unique name")
	case errors.Is(err, cutting.ErrTooManyPieces):
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error(), fmt.Sprintf("Split the request into runs of at most %d pieces", cutting.MaxPieces))
	case errors.Is(err, cutting.ErrInvalidCapacity):
		writeError(w, http.StatusBadRequest, "Invalid capacity", err.Error())
	default:
		writeInternalError(w, err)
	}
}

func (h *Handler) currentCapacityUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.capacityUpdatedAt
}

func (h *Handler) markCapacityUpdated() {
	h.mu.Lock()
	h.capacityUpdatedAt = h.clock()
	h.mu.Unlock()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// encodeFailureBody is sent when a response payload cannot be encoded.
const encodeFailureBody = `{"error":"Internal error","details":"failed to encode response"}` + "\n"

// respond writes payload as JSON and logs any failure to encode or send it.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := writeJSON(w, status, payload); err != nil {
		h.logger.Error("failed to write response",
			zap.Error(err),
			zap.Int("status", status),
			zap.String("request_id", requestIDFromContext(r.Context())),
		)
	}
}

// writeJSON encodes payload before touching the response, so an encoding
// failure turns into a 500 instead of a truncated success.
func writeJSON(w http.ResponseWriter, status int, payload any) error {
	data, err := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, encodeFailureBody)
		return fmt.Errorf("encode response: %w", err)
	}

	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	// errorResponse holds only strings and always encodes.
	_ = writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
