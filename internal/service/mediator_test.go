package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/vanshika/finbridge/internal/cache"
	"github.com/vanshika/finbridge/internal/domain"
	"github.com/vanshika/finbridge/internal/store"
)

type stubDispatcher struct {
	calls   int
	result  DispatchResult
	lastReq WireRequest
}

func (s *stubDispatcher) Execute(_ context.Context, req WireRequest, _ domain.SystemConfig) DispatchResult {
	s.calls++
	s.lastReq = req
	return s.result
}

type mediatorFixture struct {
	mediator   *Mediator
	store      *store.MemoryStore
	cache      *cache.MemoryCache
	dispatcher *stubDispatcher
}

func newMediatorFixture(t *testing.T) *mediatorFixture {
	t.Helper()

	st := store.NewMemoryStore()
	ctx := context.Background()
	systems := []domain.SystemConfig{
		{
			SystemName: "stripe_gateway",
			SystemType: domain.SystemTypeFinancialProvider,
			BaseURL:    "http://stripe.internal",
			AuthType:   domain.AuthTypeAPIKey,
			RetryCount: 3,
			IsActive:   true,
		},
		{
			SystemName: "core_banking",
			SystemType: domain.SystemTypeBankingSystem,
			BaseURL:    "http://bank.internal",
			AuthType:   domain.AuthTypeNone,
			RetryCount: 3,
			IsActive:   true,
		},
	}
	for _, sys := range systems {
		if err := st.UpsertSystemConfig(ctx, sys); err != nil {
			t.Fatalf("seed system %s: %v", sys.SystemName, err)
		}
	}

	dispatcher := &stubDispatcher{result: DispatchResult{
		StatusCode: http.StatusOK,
		Body:       map[string]any{"status": "SUCCESS"},
	}}
	memCache := cache.NewMemoryCache()

	m := NewMediator(st, memCache, dispatcher, testLogger(), nil, 300*time.Second)
	seq := 0
	m.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}

	return &mediatorFixture{mediator: m, store: st, cache: memCache, dispatcher: dispatcher}
}

func balanceRequest() domain.TransactionRequest {
	return domain.TransactionRequest{
		SourceSystem:    "stripe_gateway",
		TargetSystem:    "core_banking",
		TransactionType: "balance",
		Payload:         map[string]any{"account_number": "ACC-9"},
		Cacheable:       true,
	}
}

func TestProcessSuccessCreatesCompletedRecord(t *testing.T) {
	ctx := context.Background()
	f := newMediatorFixture(t)

	req := validPaymentRequest()
	result, err := f.mediator.Process(ctx, req)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", result.StatusCode)
	}
	if result.FromCache {
		t.Fatalf("first call cannot come from cache")
	}
	if result.Body["processed_by"] != "finbridge" {
		t.Fatalf("response must carry mediator metadata: %v", result.Body)
	}

	rec, err := f.store.GetTransaction(ctx, result.TransactionID)
	if err != nil {
		t.Fatalf("record not created: %v", err)
	}
	if rec.Status != domain.StatusCompleted {
		t.Fatalf("expected completed record, got %s", rec.Status)
	}
	if rec.ResponseData == nil {
		t.Fatalf("completed record must carry the response")
	}
}

func TestProcessValidationFailureLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	f := newMediatorFixture(t)

	req := validPaymentRequest()
	delete(req.Payload, "beneficiary")

	_, err := f.mediator.Process(ctx, req)
	var vErr *ValidationFailedError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationFailedError, got %v", err)
	}
	if len(vErr.Errors) == 0 {
		t.Fatalf("expected violations in the error")
	}
	if f.dispatcher.calls != 0 {
		t.Fatalf("invalid requests must never be dispatched")
	}

	page, err := f.mediator.List(ctx, ListParams{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.Pagination.TotalItems != 0 {
		t.Fatalf("rejected requests must leave no ledger record")
	}
}

func TestProcessUnknownSystem(t *testing.T) {
	ctx := context.Background()
	f := newMediatorFixture(t)

	req := validPaymentRequest()
	req.TargetSystem = "ghost_bank"

	_, err := f.mediator.Process(ctx, req)
	var sysErr *SystemNotFoundError
	if !errors.As(err, &sysErr) {
		t.Fatalf("expected SystemNotFoundError, got %v", err)
	}
	if sysErr.Name != "ghost_bank" {
		t.Fatalf("unexpected system name: %s", sysErr.Name)
	}
}

func TestProcessServesSecondCallFromCache(t *testing.T) {
	ctx := context.Background()
	f := newMediatorFixture(t)

	first, err := f.mediator.Process(ctx, balanceRequest())
	if err != nil {
		t.Fatalf("first Process returned error: %v", err)
	}
	if first.FromCache {
		t.Fatalf("first call must be a cache miss")
	}

	second, err := f.mediator.Process(ctx, balanceRequest())
	if err != nil {
		t.Fatalf("second Process returned error: %v", err)
	}
	if !second.FromCache {
		t.Fatalf("second identical call must hit the cache")
	}
	if f.dispatcher.calls != 1 {
		t.Fatalf("cache hit must not dispatch, got %d calls", f.dispatcher.calls)
	}

	// Both runs still produce completed ledger records.
	for _, id := range []string{first.TransactionID, second.TransactionID} {
		rec, err := f.store.GetTransaction(ctx, id)
		if err != nil {
			t.Fatalf("record %s missing: %v", id, err)
		}
		if rec.Status != domain.StatusCompleted {
			t.Fatalf("record %s not completed: %s", id, rec.Status)
		}
	}
	if first.TransactionID == second.TransactionID {
		t.Fatalf("each run must get its own transaction id")
	}
}

func TestProcessNeverCachesMonetaryTypes(t *testing.T) {
	ctx := context.Background()
	f := newMediatorFixture(t)

	req := validPaymentRequest()
	req.Cacheable = true

	if _, err := f.mediator.Process(ctx, req); err != nil {
		t.Fatalf("first Process returned error: %v", err)
	}
	if _, err := f.mediator.Process(ctx, req); err != nil {
		t.Fatalf("second Process returned error: %v", err)
	}

	if f.dispatcher.calls != 2 {
		t.Fatalf("monetary requests must always dispatch, got %d calls", f.dispatcher.calls)
	}
	if f.cache.Len() != 0 {
		t.Fatalf("monetary responses must never be cached")
	}
}

func TestProcessDownstreamFailureMarksRecordFailed(t *testing.T) {
	ctx := context.Background()
	f := newMediatorFixture(t)
	f.dispatcher.result = DispatchResult{
		StatusCode: http.StatusGatewayTimeout,
		Body:       map[string]any{"error": "Request timeout after retries"},
	}

	result, err := f.mediator.Process(ctx, validPaymentRequest())
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if result.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", result.StatusCode)
	}
	if result.Body["error"] != "Request timeout after retries" {
		t.Fatalf("downstream body must pass through: %v", result.Body)
	}

	rec, err := f.store.GetTransaction(ctx, result.TransactionID)
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	if rec.Status != domain.StatusFailed {
		t.Fatalf("expected failed record, got %s", rec.Status)
	}
	if rec.ErrorMessage != "Request timeout after retries" {
		t.Fatalf("error message not recorded: %q", rec.ErrorMessage)
	}
}

func TestProcessFailedResponsesAreNotCached(t *testing.T) {
	ctx := context.Background()
	f := newMediatorFixture(t)
	f.dispatcher.result = DispatchResult{
		StatusCode: http.StatusBadGateway,
		Body:       map[string]any{"error": "downstream broken"},
	}

	if _, err := f.mediator.Process(ctx, balanceRequest()); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if f.cache.Len() != 0 {
		t.Fatalf("failed responses must never be cached")
	}

	// Once the downstream recovers, the next call dispatches again.
	f.dispatcher.result = DispatchResult{StatusCode: http.StatusOK, Body: map[string]any{"status": "ok"}}
	if _, err := f.mediator.Process(ctx, balanceRequest()); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if f.dispatcher.calls != 2 {
		t.Fatalf("expected a fresh dispatch after the failure, got %d calls", f.dispatcher.calls)
	}
}

func TestProcessPreservesExplicitTransactionID(t *testing.T) {
	ctx := context.Background()
	f := newMediatorFixture(t)

	req := validPaymentRequest()
	req.TransactionID = "txn-client-7"

	result, err := f.mediator.Process(ctx, req)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if result.TransactionID != "txn-client-7" {
		t.Fatalf("client transaction id must be kept, got %s", result.TransactionID)
	}
	if f.dispatcher.lastReq.TransactionID != "txn-client-7" {
		t.Fatalf("wire request must carry the client id")
	}
}

func TestApplyWebhookTransitions(t *testing.T) {
	ctx := context.Background()
	f := newMediatorFixture(t)

	result, err := f.mediator.Process(ctx, validPaymentRequest())
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	err = f.mediator.ApplyWebhook(ctx, domain.WebhookEvent{
		TransactionID: result.TransactionID,
		EventType:     domain.EventTransactionFailed,
		ErrorMessage:  "settlement reversed",
	})
	if err != nil {
		t.Fatalf("ApplyWebhook returned error: %v", err)
	}

	rec, _ := f.store.GetTransaction(ctx, result.TransactionID)
	if rec.Status != domain.StatusFailed || rec.ErrorMessage != "settlement reversed" {
		t.Fatalf("webhook transition not applied: %+v", rec)
	}

	// A later event can move the record back to pending.
	err = f.mediator.ApplyWebhook(ctx, domain.WebhookEvent{
		TransactionID: result.TransactionID,
		EventType:     domain.EventTransactionPending,
	})
	if err != nil {
		t.Fatalf("ApplyWebhook returned error: %v", err)
	}
	rec, _ = f.store.GetTransaction(ctx, result.TransactionID)
	if rec.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", rec.Status)
	}
}

func TestApplyWebhookUnknownTransactionIsAcknowledged(t *testing.T) {
	ctx := context.Background()
	f := newMediatorFixture(t)

	err := f.mediator.ApplyWebhook(ctx, domain.WebhookEvent{
		TransactionID: "txn-missing",
		EventType:     domain.EventTransactionCompleted,
	})
	if err != nil {
		t.Fatalf("unknown transactions must be acknowledged, got %v", err)
	}
}

func TestApplyWebhookRequiresEventType(t *testing.T) {
	ctx := context.Background()
	f := newMediatorFixture(t)

	err := f.mediator.ApplyWebhook(ctx, domain.WebhookEvent{TransactionID: "txn-1"})
	if !errors.Is(err, ErrMissingEventType) {
		t.Fatalf("expected ErrMissingEventType, got %v", err)
	}
}

func TestApplyWebhookIgnoresUnknownEventTypes(t *testing.T) {
	ctx := context.Background()
	f := newMediatorFixture(t)

	err := f.mediator.ApplyWebhook(ctx, domain.WebhookEvent{
		TransactionID: "txn-1",
		EventType:     "transaction_exploded",
	})
	if err != nil {
		t.Fatalf("unknown event types must be ignored, got %v", err)
	}
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	f := newMediatorFixture(t)

	for i := 0; i < 5; i++ {
		if _, err := f.mediator.Process(ctx, validPaymentRequest()); err != nil {
			t.Fatalf("Process returned error: %v", err)
		}
	}

	page, err := f.mediator.List(ctx, ListParams{Page: 2, PerPage: 2})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.Pagination.TotalItems != 5 || page.Pagination.TotalPages != 3 {
		t.Fatalf("unexpected pagination: %+v", page.Pagination)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}

	// Out-of-range values fall back to defaults.
	page, err = f.mediator.List(ctx, ListParams{Page: -1, PerPage: 1000})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.Pagination.Page != 1 || page.Pagination.PerPage != 100 {
		t.Fatalf("expected clamped pagination, got %+v", page.Pagination)
	}
}
