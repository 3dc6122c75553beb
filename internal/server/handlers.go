package server

import (
	"crypto/hmac"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vanshika/finbridge/internal/domain"
	"github.com/vanshika/finbridge/internal/service"
	"github.com/vanshika/finbridge/internal/store"
)

// APIHandlers exposes HTTP handlers for the mediation API.
type APIHandlers struct {
	logger        *slog.Logger
	mediator      *service.Mediator
	webhookSecret string
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, mediator *service.Mediator, webhookSecret string) *APIHandlers {
	return &APIHandlers{
		logger:        logger,
		mediator:      mediator,
		webhookSecret: webhookSecret,
	}
}

func (h *APIHandlers) handleTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req domain.TransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.mediator.Process(r.Context(), req)
	if err != nil {
		var validationErr *service.ValidationFailedError
		if errors.As(err, &validationErr) {
			respondJSON(w, http.StatusBadRequest, validationErrorResponse{
				Error:  "validation failed",
				Errors: toValidationItems(validationErr.Errors),
			})
			return
		}
		var systemErr *service.SystemNotFoundError
		if errors.As(err, &systemErr) {
			writeError(w, http.StatusBadRequest, systemErr.Error())
			return
		}
		h.logger.Error("mediation pipeline failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process transaction")
		return
	}

	// Copy before annotating; the mediator may hold the same map in the
	// cache and the ledger.
	body := make(map[string]any, len(result.Body)+1)
	for k, v := range result.Body {
		body[k] = v
	}
	body["transaction_id"] = result.TransactionID
	respondJSON(w, result.StatusCode, body)
}

func (h *APIHandlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	transactionID := strings.TrimPrefix(r.URL.Path, "/status/")
	transactionID = strings.Trim(transactionID, "/")
	if transactionID == "" {
		writeError(w, http.StatusBadRequest, "transaction ID is required")
		return
	}

	record, err := h.mediator.Status(r.Context(), transactionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		h.logger.Error("failed to fetch transaction status", "error", err, "transaction_id", transactionID)
		writeError(w, http.StatusInternalServerError, "failed to fetch transaction status")
		return
	}

	respondJSON(w, http.StatusOK, toRecordResponse(record))
}

func (h *APIHandlers) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	query := r.URL.Query()
	page, err := h.mediator.List(r.Context(), service.ListParams{
		Status:          query.Get("status"),
		SourceSystem:    query.Get("source_system"),
		TargetSystem:    query.Get("target_system"),
		TransactionType: query.Get("transaction_type"),
		Page:            parseInt(query.Get("page"), 1),
		PerPage:         parseInt(query.Get("per_page"), 20),
	})
	if err != nil {
		h.logger.Error("failed to list transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	resp := listTransactionsResponse{
		Items: []transactionRecordResponse{},
		Pagination: paginationResponse{
			Page:       page.Pagination.Page,
			PerPage:    page.Pagination.PerPage,
			TotalItems: page.Pagination.TotalItems,
			TotalPages: page.Pagination.TotalPages,
		},
	}
	for _, item := range page.Items {
		resp.Items = append(resp.Items, toRecordResponse(item))
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *APIHandlers) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	if signature := r.Header.Get("X-Signature"); signature != "" {
		expected := service.SignPayload(body, h.webhookSecret)
		if !hmac.Equal([]byte(signature), []byte(expected)) {
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	var event domain.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	if err := h.mediator.ApplyWebhook(r.Context(), event); err != nil {
		if errors.Is(err, service.ErrMissingEventType) {
			writeError(w, http.StatusBadRequest, "event_type is required")
			return
		}
		h.logger.Error("failed to apply webhook", "error", err, "transaction_id", event.TransactionID)
		writeError(w, http.StatusInternalServerError, "failed to process webhook")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (h *APIHandlers) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	systems, err := h.mediator.ActiveSystems(r.Context())
	if err != nil {
		h.logger.Error("failed to list system configs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list system configs")
		return
	}

	resp := make([]systemConfigResponse, 0, len(systems))
	for _, cfg := range systems {
		resp = append(resp, systemConfigResponse{
			SystemName:     cfg.SystemName,
			SystemType:     string(cfg.SystemType),
			BaseURL:        cfg.BaseURL,
			AuthType:       string(cfg.AuthType),
			TimeoutSeconds: int(cfg.Timeout / time.Second),
			RetryCount:     cfg.RetryCount,
			IsActive:       cfg.IsActive,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{"systems": resp})
}

// --- Response DTOs ---

type validationErrorResponse struct {
	Error  string                `json:"error"`
	Errors []validationErrorItem `json:"errors"`
}

type validationErrorItem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type transactionRecordResponse struct {
	TransactionID   string         `json:"transaction_id"`
	SourceSystem    string         `json:"source_system"`
	TargetSystem    string         `json:"target_system"`
	TransactionType string         `json:"transaction_type"`
	Status          string         `json:"status"`
	Amount          float64        `json:"amount,omitempty"`
	Currency        string         `json:"currency,omitempty"`
	RequestData     map[string]any `json:"request_data,omitempty"`
	ResponseData    map[string]any `json:"response_data,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
}

type paginationResponse struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

type listTransactionsResponse struct {
	Items      []transactionRecordResponse `json:"items"`
	Pagination paginationResponse          `json:"pagination"`
}

type systemConfigResponse struct {
	SystemName     string `json:"system_name"`
	SystemType     string `json:"system_type"`
	BaseURL        string `json:"base_url"`
	AuthType       string `json:"auth_type"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	RetryCount     int    `json:"retry_count"`
	IsActive       bool   `json:"is_active"`
}

// --- Helpers ---

func toValidationItems(errs []service.ValidationError) []validationErrorItem {
	items := make([]validationErrorItem, 0, len(errs))
	for _, e := range errs {
		items = append(items, validationErrorItem{Field: e.Field, Message: e.Message})
	}
	return items
}

func toRecordResponse(rec domain.TransactionRecord) transactionRecordResponse {
	return transactionRecordResponse{
		TransactionID:   rec.TransactionID,
		SourceSystem:    rec.SourceSystem,
		TargetSystem:    rec.TargetSystem,
		TransactionType: rec.TransactionType,
		Status:          string(rec.Status),
		Amount:          rec.Amount,
		Currency:        rec.Currency,
		RequestData:     rec.RequestData,
		ResponseData:    rec.ResponseData,
		ErrorMessage:    rec.ErrorMessage,
		CreatedAt:       formatTime(rec.CreatedAt),
		UpdatedAt:       formatTime(rec.UpdatedAt),
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	// Unknown top-level fields are tolerated so lenient senders keep
	// working across schema additions.
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return nil
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
