package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a mediated transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ValidTransactionTypes is the closed set of operations the mediator accepts.
var ValidTransactionTypes = []string{
	"payment",
	"transfer",
	"withdrawal",
	"deposit",
	"balance",
	"account_info",
	"statement",
	"kyc",
	"loan_application",
	"investment",
	"insurance",
	"test",
}

// monetaryTypes move funds and therefore require amount/currency and are
// excluded from response caching.
var monetaryTypes = map[string]struct{}{
	"payment":    {},
	"transfer":   {},
	"withdrawal": {},
	"deposit":    {},
}

// IsValidTransactionType reports whether t is a supported transaction type.
func IsValidTransactionType(t string) bool {
	for _, v := range ValidTransactionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsMonetary reports whether the transaction type moves funds.
func IsMonetary(t string) bool {
	_, ok := monetaryTypes[strings.TrimSpace(t)]
	return ok
}

// TransactionRequest is the canonical inbound request prior to any
// system-specific wire transformation.
type TransactionRequest struct {
	TransactionID   string            `json:"transaction_id,omitempty"`
	SourceSystem    string            `json:"source_system" validate:"required"`
	TargetSystem    string            `json:"target_system" validate:"required"`
	TransactionType string            `json:"transaction_type" validate:"required"`
	Amount          float64           `json:"amount,omitempty"`
	Currency        string            `json:"currency,omitempty" validate:"omitempty,len=3"`
	Payload         map[string]any    `json:"payload,omitempty"`
	Params          map[string]string `json:"params,omitempty"`
	Method          string            `json:"method,omitempty" validate:"omitempty,oneof=GET POST"`
	Cacheable       bool              `json:"cacheable,omitempty"`
	UserID          string            `json:"user_id,omitempty"`
}

// TransactionRecord is the persisted ledger entry for one mediated request.
// Records are created pending at pipeline start and transitioned only by the
// mediator or by webhook events; they are never deleted.
type TransactionRecord struct {
	ID              string
	TransactionID   string
	SourceSystem    string
	TargetSystem    string
	TransactionType string
	Status          Status
	Amount          float64
	Currency        string
	RequestData     map[string]any
	ResponseData    map[string]any
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Webhook event types understood by the ledger.
const (
	EventTransactionCompleted = "transaction_completed"
	EventTransactionFailed    = "transaction_failed"
	EventTransactionPending   = "transaction_pending"
)

// WebhookEvent is an asynchronous status notification from a downstream system.
type WebhookEvent struct {
	TransactionID string `json:"transaction_id,omitempty"`
	EventType     string `json:"event_type"`
	ErrorMessage  string `json:"error_message,omitempty"`
}
