package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vanshika/finbridge/internal/cache"
	"github.com/vanshika/finbridge/internal/domain"
	"github.com/vanshika/finbridge/internal/metrics"
	"github.com/vanshika/finbridge/internal/store"
)

// ErrMissingEventType indicates a webhook payload without an event_type.
var ErrMissingEventType = errors.New("event_type is required")

// WireDispatcher is the outbound execution contract consumed by the mediator.
type WireDispatcher interface {
	Execute(ctx context.Context, req WireRequest, target domain.SystemConfig) DispatchResult
}

// MediationResult is the outcome of one pipeline run. StatusCode mirrors what
// the external HTTP layer should return: 200 on success (cached or live),
// the downstream status on failure, 504 on exhausted timeouts.
type MediationResult struct {
	TransactionID string
	StatusCode    int
	Body          map[string]any
	FromCache     bool
}

// PaginationMeta captures pagination metadata returned to API clients.
type PaginationMeta struct {
	Page       int
	PerPage    int
	TotalItems int64
	TotalPages int
}

// TransactionsPage is a paginated slice of ledger records.
type TransactionsPage struct {
	Items      []domain.TransactionRecord
	Pagination PaginationMeta
}

// ListParams defines filters for listing ledger records.
type ListParams struct {
	Status          string
	SourceSystem    string
	TargetSystem    string
	TransactionType string
	Page            int
	PerPage         int
}

// Mediator composes validation, caching, transformation and dispatch into
// the end-to-end mediation pipeline, and owns the ledger's status
// transitions.
type Mediator struct {
	store       store.Store
	cache       cache.Cache
	validator   *Validator
	transformer *Transformer
	dispatcher  WireDispatcher
	logger      *slog.Logger
	metrics     *metrics.Metrics
	cacheTTL    time.Duration
	nowFn       func() time.Time
	newID       func() string
}

// NewMediator wires the pipeline components together.
func NewMediator(st store.Store, c cache.Cache, dispatcher WireDispatcher, logger *slog.Logger, m *metrics.Metrics, cacheTTL time.Duration) *Mediator {
	if cacheTTL <= 0 {
		cacheTTL = cache.DefaultTTL
	}
	return &Mediator{
		store:       st,
		cache:       c,
		validator:   NewValidator(),
		transformer: NewTransformer(),
		dispatcher:  dispatcher,
		logger:      logger,
		metrics:     m,
		cacheTTL:    cacheTTL,
		nowFn:       time.Now,
		newID:       uuid.NewString,
	}
}

// Process runs the full pipeline for one request. Validation and system
// resolution failures are returned as errors and leave no record behind;
// once a record exists, every failure path marks it before returning, so the
// ledger never diverges from what the caller was told.
func (m *Mediator) Process(ctx context.Context, req domain.TransactionRequest) (MediationResult, error) {
	start := m.nowFn()
	defer func() {
		m.metrics.ObserveRequestDuration(m.nowFn().Sub(start).Seconds())
	}()

	if errs := m.validator.Validate(req); len(errs) > 0 {
		m.metrics.ObserveTransaction("rejected")
		return MediationResult{}, &ValidationFailedError{Errors: errs}
	}

	if req.TransactionID == "" {
		req.TransactionID = m.newID()
	}
	if req.Method == "" {
		req.Method = http.MethodPost
	}

	source, err := m.resolveSystem(ctx, req.SourceSystem)
	if err != nil {
		m.metrics.ObserveTransaction("rejected")
		return MediationResult{}, err
	}
	target, err := m.resolveSystem(ctx, req.TargetSystem)
	if err != nil {
		m.metrics.ObserveTransaction("rejected")
		return MediationResult{}, err
	}

	now := m.nowFn()
	record := domain.TransactionRecord{
		ID:              m.newID(),
		TransactionID:   req.TransactionID,
		SourceSystem:    req.SourceSystem,
		TargetSystem:    req.TargetSystem,
		TransactionType: req.TransactionType,
		Status:          domain.StatusPending,
		Amount:          req.Amount,
		Currency:        req.Currency,
		RequestData:     requestData(req),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := m.store.CreateTransaction(ctx, record); err != nil {
		return MediationResult{}, fmt.Errorf("create transaction record: %w", err)
	}

	useCache := cache.Cacheable(req)
	var fingerprint string
	if useCache {
		fingerprint = cache.Fingerprint(req)
		if cached, ok := m.cache.Get(ctx, fingerprint); ok {
			m.metrics.ObserveCacheHit()
			m.metrics.ObserveTransaction("completed")
			m.completeRecord(ctx, req.TransactionID, cached)
			return MediationResult{
				TransactionID: req.TransactionID,
				StatusCode:    http.StatusOK,
				Body:          cached,
				FromCache:     true,
			}, nil
		}
		m.metrics.ObserveCacheMiss()
	}

	wireReq := m.transformer.ToWire(req, source, target)
	result := m.dispatcher.Execute(ctx, wireReq, target)

	if result.StatusCode >= 200 && result.StatusCode < 300 {
		response := m.transformer.FromWire(result.Body, source, target)
		m.completeRecord(ctx, req.TransactionID, response)
		if useCache {
			m.cache.Put(ctx, fingerprint, response, m.cacheTTL)
		}
		m.metrics.ObserveTransaction("completed")
		return MediationResult{
			TransactionID: req.TransactionID,
			StatusCode:    http.StatusOK,
			Body:          response,
		}, nil
	}

	m.failRecord(ctx, req.TransactionID, downstreamErrorMessage(result))
	m.metrics.ObserveTransaction("failed")
	return MediationResult{
		TransactionID: req.TransactionID,
		StatusCode:    result.StatusCode,
		Body:          result.Body,
	}, nil
}

// Status returns the ledger record for a transaction id.
func (m *Mediator) Status(ctx context.Context, transactionID string) (domain.TransactionRecord, error) {
	return m.store.GetTransaction(ctx, transactionID)
}

// List returns a filtered, paginated view of the ledger.
func (m *Mediator) List(ctx context.Context, params ListParams) (TransactionsPage, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	perPage := params.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	result, err := m.store.ListTransactions(ctx, store.ListOptions{
		Status:          params.Status,
		SourceSystem:    params.SourceSystem,
		TargetSystem:    params.TargetSystem,
		TransactionType: params.TransactionType,
		Offset:          (page - 1) * perPage,
		Limit:           perPage,
	})
	if err != nil {
		return TransactionsPage{}, fmt.Errorf("list transactions: %w", err)
	}

	totalPages := int(math.Ceil(float64(result.Total) / float64(perPage)))
	return TransactionsPage{
		Items: result.Items,
		Pagination: PaginationMeta{
			Page:       page,
			PerPage:    perPage,
			TotalItems: result.Total,
			TotalPages: totalPages,
		},
	}, nil
}

// ApplyWebhook applies an asynchronous status event to the ledger. Events for
// unknown transaction ids are acknowledged without any state change so
// upstream senders do not retry-storm records this ledger never created.
func (m *Mediator) ApplyWebhook(ctx context.Context, event domain.WebhookEvent) error {
	if event.EventType == "" {
		return ErrMissingEventType
	}

	var update store.TransactionUpdate
	switch event.EventType {
	case domain.EventTransactionCompleted:
		update.Status = statusPtr(domain.StatusCompleted)
	case domain.EventTransactionFailed:
		update.Status = statusPtr(domain.StatusFailed)
		update.ErrorMessage = &event.ErrorMessage
	case domain.EventTransactionPending:
		update.Status = statusPtr(domain.StatusPending)
	default:
		m.logger.Debug("ignoring webhook with unknown event type", "event_type", event.EventType)
		return nil
	}

	if event.TransactionID == "" {
		return nil
	}

	err := m.store.UpdateTransaction(ctx, event.TransactionID, update)
	if errors.Is(err, store.ErrNotFound) {
		m.logger.Info("webhook for unknown transaction acknowledged",
			"transaction_id", event.TransactionID,
			"event_type", event.EventType,
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply webhook: %w", err)
	}

	m.logger.Info("webhook applied",
		"transaction_id", event.TransactionID,
		"event_type", event.EventType,
	)
	return nil
}

// ActiveSystems lists the configured active systems.
func (m *Mediator) ActiveSystems(ctx context.Context) ([]domain.SystemConfig, error) {
	return m.store.ListSystemConfigs(ctx)
}

func (m *Mediator) resolveSystem(ctx context.Context, name string) (domain.SystemConfig, error) {
	cfg, err := m.store.GetSystemConfig(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrSystemNotFound) {
			return domain.SystemConfig{}, &SystemNotFoundError{Name: name}
		}
		return domain.SystemConfig{}, fmt.Errorf("resolve system %s: %w", name, err)
	}
	return cfg, nil
}

func (m *Mediator) completeRecord(ctx context.Context, transactionID string, response map[string]any) {
	status := domain.StatusCompleted
	err := m.store.UpdateTransaction(ctx, transactionID, store.TransactionUpdate{
		Status:       &status,
		ResponseData: response,
	})
	if err != nil {
		m.logger.Error("failed to mark transaction completed",
			"transaction_id", transactionID,
			"error", err,
		)
	}
}

func (m *Mediator) failRecord(ctx context.Context, transactionID, message string) {
	status := domain.StatusFailed
	err := m.store.UpdateTransaction(ctx, transactionID, store.TransactionUpdate{
		Status:       &status,
		ErrorMessage: &message,
	})
	if err != nil {
		m.logger.Error("failed to mark transaction failed",
			"transaction_id", transactionID,
			"error", err,
		)
	}
}

func requestData(req domain.TransactionRequest) map[string]any {
	data := map[string]any{
		"transaction_id":   req.TransactionID,
		"source_system":    req.SourceSystem,
		"target_system":    req.TargetSystem,
		"transaction_type": req.TransactionType,
		"method":           req.Method,
		"cacheable":        req.Cacheable,
	}
	if req.Amount != 0 {
		data["amount"] = req.Amount
	}
	if req.Currency != "" {
		data["currency"] = req.Currency
	}
	if req.UserID != "" {
		data["user_id"] = req.UserID
	}
	if req.Payload != nil {
		data["payload"] = req.Payload
	}
	if len(req.Params) > 0 {
		data["params"] = req.Params
	}
	return data
}

func downstreamErrorMessage(result DispatchResult) string {
	if msg, ok := result.Body["error"].(string); ok && msg != "" {
		return msg
	}
	return fmt.Sprintf("downstream error (status %d)", result.StatusCode)
}

func statusPtr(s domain.Status) *domain.Status {
	return &s
}
