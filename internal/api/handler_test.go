package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eugenenazirov/tube-cutter/internal/cutting"
	"github.com/eugenenazirov/tube-cutter/internal/storage"
)

type controllableClock struct {
	mu  sync.RWMutex
	now time.Time
}

func newControllableClock(initial time.Time) *controllableClock {
	return &controllableClock{now: initial}
}

func (c *controllableClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *controllableClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setupTestRouter(t *testing.T) (http.Handler, *controllableClock, *storage.MemoryStorage) {
	t.Helper()

	store := storage.NewMemoryStorage()
	clock := newControllableClock(time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC))
	logger := zaptest.NewLogger(t)

	handler := NewHandler(cutting.New, store, WithClock(clock.Now), WithLogger(logger))
	router := NewRouter(handler, logger, WithLogging(false))

	return router, clock, store
}

func doJSON(t *testing.T, router http.Handler, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	resp := httptest.NewRecorder()
	writeInternalError(resp, assertError("boom"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.Code)
	}
}

type assertError string

func (a assertError) Error() string { return string(a) }

func TestHealthEndpoint(t *testing.T) {
	router, clock, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := decode[healthResponse](t, rec)
	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %s", body.Status)
	}
	if !body.Timestamp.Equal(clock.Now()) {
		t.Fatalf("expected timestamp %s, got %s", clock.Now(), body.Timestamp)
	}
}

func TestCapacityEndpoints(t *testing.T) {
	router, clock, store := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/capacity", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	got := decode[capacityResponse](t, rec)
	if got.Capacity != cutting.DefaultCapacity {
		t.Fatalf("expected default capacity, got %v", got.Capacity)
	}

	clock.Advance(time.Hour)
	rec = doJSON(t, router, http.MethodPut, "/api/capacity", map[string]any{"capacity": 6000})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	got = decode[capacityResponse](t, rec)
	if got.Capacity != 6000 || got.Message == "" {
		t.Fatalf("unexpected response %+v", got)
	}
	if !got.UpdatedAt.Equal(clock.Now()) {
		t.Fatalf("expected updatedAt %s, got %s", clock.Now(), got.UpdatedAt)
	}
	if stored, _ := store.GetCapacity(); stored != 6000 {
		t.Fatalf("expected stored capacity 6000, got %v", stored)
	}

	rec = doJSON(t, router, http.MethodPut, "/api/capacity", map[string]any{"capacity": 0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPut, "/api/capacity", bytes.NewReader([]byte("{")))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestDetailEndpoints(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/details", map[string]any{"name": "A", "length": 300, "quantity": 2})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	created := decode[storage.Row](t, rec)
	if created.ID == "" || created.Name != "A" || created.Quantity != 2 {
		t.Fatalf("unexpected row %+v", created)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/details", map[string]any{"name": "", "length": 300, "quantity": 2})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for invalid detail, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/details", nil)
	list := decode[detailsResponse](t, rec)
	if len(list.Details) != 1 || list.Details[0] != created {
		t.Fatalf("unexpected list %+v", list.Details)
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/details/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodDelete, "/api/details/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	doJSON(t, router, http.MethodPost, "/api/details", map[string]any{"name": "B", "length": 900, "quantity": 1})
	rec = doJSON(t, router, http.MethodDelete, "/api/details", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	list = decode[detailsResponse](t, doJSON(t, router, http.MethodGet, "/api/details", nil))
	if len(list.Details) != 0 {
		t.Fatalf("expected empty list, got %+v", list.Details)
	}
}

func TestOptimizeInlineDetails(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/optimize", map[string]any{
		"details": []map[string]any{
			{"name": "B", "length": 500, "amount": 3},
			{"name": "A", "length": 2500, "amount": 3},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := decode[planResponse](t, rec)
	if body.TubesNeeded != 2 || body.TotalWaste != 2000 || !body.Complete {
		t.Fatalf("unexpected plan %+v", body)
	}
	if len(body.Groups) != 2 || body.Groups[0].Label != "Type 1 (A, B)" {
		t.Fatalf("unexpected groups %+v", body.Groups)
	}
	if body.Groups[0].WastePerUnit != 0 || len(body.Groups[0].Pieces) != 3 {
		t.Fatalf("unexpected first group %+v", body.Groups[0])
	}
	wantEfficiency := (1 - 2000.0/11000.0) * 100
	if diff := body.EfficiencyPercent - wantEfficiency; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected efficiency %v, got %v", wantEfficiency, body.EfficiencyPercent)
	}
}

func TestOptimizeUsesStoredDetailsAndCapacity(t *testing.T) {
	router, _, store := setupTestRouter(t)

	if err := store.SetCapacity(1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.AddDetail("A", 400, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.AddDetail("A", 400, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := doJSON(t, router, http.MethodPost, "/api/optimize", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := decode[planResponse](t, rec)
	if body.Capacity != 1000 || body.TubesNeeded != 2 || body.TotalWaste != 800 {
		t.Fatalf("unexpected plan %+v", body)
	}
}

func TestOptimizeUnplaceable(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/optimize", map[string]any{
		"details": []map[string]any{
			{"name": "Y", "length": 5600, "amount": 1},
			{"name": "Z", "length": 1000, "amount": 1},
		},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rec.Code)
	}

	var body struct {
		Suggestion  string                      `json:"suggestion"`
		Unplaceable []cutting.UnplaceableDetail `json:"unplaceable"`
		Plan        planResponse                `json:"plan"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Suggestion == "" {
		t.Fatalf("expected suggestion to be populated")
	}
	if len(body.Unplaceable) != 1 || body.Unplaceable[0] != (cutting.UnplaceableDetail{Name: "Y", Length: 5600}) {
		t.Fatalf("unexpected unplaceable list %+v", body.Unplaceable)
	}
	if body.Plan.Complete || body.Plan.TubesNeeded != 1 || len(body.Plan.LeftoverDetails) != 1 {
		t.Fatalf("unexpected partial plan %+v", body.Plan)
	}
}

func TestOptimizeRejectsBadInput(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	tests := []struct {
		name    string
		payload any
	}{
		{name: "NothingToOptimize", payload: nil},
		{name: "EmptyDetails", payload: map[string]any{"details": []any{}}},
		{name: "ZeroLength", payload: map[string]any{"details": []map[string]any{{"name": "A", "length": 0, "amount": 1}}}},
		{name: "ZeroAmount", payload: map[string]any{"details": []map[string]any{{"name": "A", "length": 10, "amount": 0}}}},
		{name: "DuplicateNames", payload: map[string]any{"details": []map[string]any{
			{"name": "A", "length": 10, "amount": 1},
			{"name": "A", "length": 20, "amount": 1},
		}}},
		{name: "TooManyPieces", payload: map[string]any{"details": []map[string]any{{"name": "A", "length": 10, "amount": int64(1e12)}}}},
		{name: "NegativeCapacity", payload: map[string]any{
			"capacity": -5,
			"details":  []map[string]any{{"name": "A", "length": 10, "amount": 1}},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/optimize", tc.payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/optimize", bytes.NewReader([]byte("{nope")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestStoredListOverPieceLimit(t *testing.T) {
	router, _, store := setupTestRouter(t)

	if _, err := store.AddDetail("A", 10, cutting.MaxPieces); err != nil {
		t.Fatalf("AddDetail returned error: %v", err)
	}
	if _, err := store.AddDetail("B", 20, 1); err != nil {
		t.Fatalf("AddDetail returned error: %v", err)
	}

	for _, target := range []string{"/api/optimize", "/api/optimize/export?format=xlsx"} {
		method := http.MethodPost
		if target != "/api/optimize" {
			method = http.MethodGet
		}
		rec := doJSON(t, router, method, target, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", target, rec.Code)
		}
		body := decode[errorResponse](t, rec)
		if body.Suggestion == "" {
			t.Fatalf("%s: expected a suggestion in %+v", target, body)
		}
	}
}

func TestRespondReportsEncodeFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := NewHandler(cutting.New, storage.NewMemoryStorage(), WithLogger(zap.New(core)))

	req := httptest.NewRequest(http.MethodGet, "/api/capacity", nil)
	req = req.WithContext(contextWithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()
	h.respond(rec, req, http.StatusOK, capacityResponse{Capacity: math.NaN()})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	body := decode[errorResponse](t, rec)
	if body.Error != "Internal error" {
		t.Fatalf("unexpected body %+v", body)
	}

	entries := logs.FilterMessage("failed to write response").All()
	if len(entries) != 1 {
		t.Fatalf("expected one logged failure, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["request_id"]; got != "req-1" {
		t.Fatalf("expected request id in log, got %v", got)
	}
}

func TestExportEndpoint(t *testing.T) {
	router, _, store := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/optimize/export", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without stored details, got %d", rec.Code)
	}

	if _, err := store.AddDetail("A", 2500, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.AddDetail("Long", 9000, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		target      string
		contentType string
		prefix      string
	}{
		{target: "/api/optimize/export", contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", prefix: "PK"},
		{target: "/api/optimize/export?format=PDF", contentType: "application/pdf", prefix: "%PDF-"},
	}
	for _, tc := range tests {
		rec := doJSON(t, router, http.MethodGet, tc.target, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", tc.target, rec.Code)
		}
		if got := rec.Header().Get("Content-Type"); got != tc.contentType {
			t.Fatalf("%s: expected content type %s, got %s", tc.target, tc.contentType, got)
		}
		if rec.Header().Get("Content-Disposition") == "" {
			t.Fatalf("%s: expected Content-Disposition header", tc.target)
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte(tc.prefix)) {
			t.Fatalf("%s: unexpected body prefix", tc.target)
		}
	}

	rec = doJSON(t, router, http.MethodGet, "/api/optimize/export?format=docx", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown format, got %d", rec.Code)
	}
}

func TestCorsPreflight(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/optimize", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("expected Access-Control-Allow-Origin header to be set")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "test-request-id")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "test-request-id" {
		t.Fatalf("expected X-Request-ID header to be echoed, got %s", got)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a generated X-Request-ID")
	}
}
