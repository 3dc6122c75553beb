package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vanshika/finbridge/internal/cache"
	"github.com/vanshika/finbridge/internal/domain"
	"github.com/vanshika/finbridge/internal/service"
	"github.com/vanshika/finbridge/internal/store"
)

const testWebhookSecret = "test-secret"

type stubWireDispatcher struct {
	result service.DispatchResult
}

func (s *stubWireDispatcher) Execute(context.Context, service.WireRequest, domain.SystemConfig) service.DispatchResult {
	return s.result
}

func newTestRouter(t *testing.T) (http.Handler, *store.MemoryStore) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemoryStore()

	ctx := context.Background()
	systems := []domain.SystemConfig{
		{
			SystemName: "stripe_gateway",
			SystemType: domain.SystemTypeFinancialProvider,
			BaseURL:    "http://stripe.internal",
			AuthType:   domain.AuthTypeAPIKey,
			APIKey:     "secret-key",
			APISecret:  "secret-hmac",
			Timeout:    30 * time.Second,
			RetryCount: 3,
			IsActive:   true,
		},
		{
			SystemName: "core_banking",
			SystemType: domain.SystemTypeBankingSystem,
			BaseURL:    "http://bank.internal",
			AuthType:   domain.AuthTypeNone,
			Timeout:    30 * time.Second,
			RetryCount: 3,
			IsActive:   true,
		},
	}
	for _, sys := range systems {
		if err := st.UpsertSystemConfig(ctx, sys); err != nil {
			t.Fatalf("seed system %s: %v", sys.SystemName, err)
		}
	}

	dispatcher := &stubWireDispatcher{result: service.DispatchResult{
		StatusCode: http.StatusOK,
		Body:       map[string]any{"status": "SUCCESS"},
	}}
	mediator := service.NewMediator(st, cache.NewMemoryCache(), dispatcher, logger, nil, 300*time.Second)
	api := NewAPIHandlers(logger, mediator, testWebhookSecret)

	router := NewRouter(logger, RouterDependencies{
		Health: StoreHealthService{Store: st},
		API:    api,
	})
	return router, st
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response body: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestTransactionEndpointSuccess(t *testing.T) {
	router, st := newTestRouter(t)

	rec := postJSON(t, router, "/transaction", map[string]any{
		"source_system":    "stripe_gateway",
		"target_system":    "core_banking",
		"transaction_type": "payment",
		"amount":           100.5,
		"currency":         "USD",
		"payload": map[string]any{
			"beneficiary": map[string]any{
				"name":           "Acme Corp",
				"account_number": "ACC-42",
			},
			"source_account": "ACC-1",
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	txnID, _ := body["transaction_id"].(string)
	if txnID == "" {
		t.Fatalf("response must carry the transaction id: %v", body)
	}

	record, err := st.GetTransaction(context.Background(), txnID)
	if err != nil {
		t.Fatalf("ledger record missing: %v", err)
	}
	if record.Status != domain.StatusCompleted {
		t.Fatalf("expected completed record, got %s", record.Status)
	}
}

func TestTransactionEndpointToleratesUnknownFields(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postJSON(t, router, "/transaction", map[string]any{
		"source_system":    "stripe_gateway",
		"target_system":    "core_banking",
		"transaction_type": "balance",
		"payload":          map[string]any{"account_number": "ACC-9"},
		"client_version":   "4.2.0",
		"trace_id":         "abc-123",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("unknown top-level fields must not reject the request, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTransactionEndpointValidationFailure(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postJSON(t, router, "/transaction", map[string]any{
		"source_system":    "stripe_gateway",
		"target_system":    "core_banking",
		"transaction_type": "payment",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	errList, ok := body["errors"].([]any)
	if !ok || len(errList) == 0 {
		t.Fatalf("expected a list of violations: %v", body)
	}
}

func TestTransactionEndpointUnknownSystem(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postJSON(t, router, "/transaction", map[string]any{
		"source_system":    "ghost_gateway",
		"target_system":    "core_banking",
		"transaction_type": "balance",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if msg, _ := body["error"].(string); !strings.Contains(msg, "ghost_gateway") {
		t.Fatalf("error must name the unknown system: %v", body)
	}
}

func TestTransactionEndpointRejectsGet(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/transaction", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	router, st := newTestRouter(t)

	err := st.CreateTransaction(context.Background(), domain.TransactionRecord{
		ID:              "node-1",
		TransactionID:   "txn-1",
		SourceSystem:    "stripe_gateway",
		TargetSystem:    "core_banking",
		TransactionType: "balance",
		Status:          domain.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/status/txn-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["transaction_id"] != "txn-1" || body["status"] != "completed" {
		t.Fatalf("unexpected status body: %v", body)
	}
}

func TestStatusEndpointNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/status/txn-missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListTransactionsEndpoint(t *testing.T) {
	router, st := newTestRouter(t)

	ctx := context.Background()
	for i, status := range []domain.Status{domain.StatusCompleted, domain.StatusFailed, domain.StatusCompleted} {
		err := st.CreateTransaction(ctx, domain.TransactionRecord{
			TransactionID:   "txn-" + string(rune('a'+i)),
			SourceSystem:    "stripe_gateway",
			TargetSystem:    "core_banking",
			TransactionType: "payment",
			Status:          status,
			CreatedAt:       time.Now().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("seed record: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/transactions?status=completed&per_page=1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	items, _ := body["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 item on the page: %v", body)
	}
	pagination, _ := body["pagination"].(map[string]any)
	if pagination["total_items"] != float64(2) {
		t.Fatalf("unexpected pagination: %v", pagination)
	}
}

func TestWebhookEndpoint(t *testing.T) {
	router, st := newTestRouter(t)

	err := st.CreateTransaction(context.Background(), domain.TransactionRecord{
		TransactionID:   "txn-1",
		SourceSystem:    "stripe_gateway",
		TargetSystem:    "core_banking",
		TransactionType: "payment",
		Status:          domain.StatusPending,
	})
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}

	rec := postJSON(t, router, "/webhook", map[string]any{
		"transaction_id": "txn-1",
		"event_type":     "transaction_completed",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	record, _ := st.GetTransaction(context.Background(), "txn-1")
	if record.Status != domain.StatusCompleted {
		t.Fatalf("webhook not applied: %s", record.Status)
	}
}

func TestWebhookEndpointSignature(t *testing.T) {
	router, _ := newTestRouter(t)

	payload := []byte(`{"transaction_id":"txn-1","event_type":"transaction_completed"}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	req.Header.Set("X-Signature", "deadbeef")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature must be rejected, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	req.Header.Set("X-Signature", service.SignPayload(payload, testWebhookSecret))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid signature must be accepted, got %d", rec.Code)
	}
}

func TestWebhookEndpointMissingEventType(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postJSON(t, router, "/webhook", map[string]any{"transaction_id": "txn-1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWebhookEndpointUnknownTransaction(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postJSON(t, router, "/webhook", map[string]any{
		"transaction_id": "txn-missing",
		"event_type":     "transaction_completed",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown transactions must still be acknowledged, got %d", rec.Code)
	}
}

func TestConfigEndpointRedactsSecrets(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); strings.Contains(body, "secret-key") || strings.Contains(body, "secret-hmac") {
		t.Fatalf("credentials leaked into the config listing: %s", body)
	}

	body := decodeBody(t, rec)
	systems, _ := body["systems"].([]any)
	if len(systems) != 2 {
		t.Fatalf("expected 2 active systems: %v", body)
	}
}
