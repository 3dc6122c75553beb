// Package store persists transaction records and system configurations for
// the mediation pipeline.
package store

import (
	"context"
	"errors"

	"github.com/vanshika/finbridge/internal/domain"
)

var (
	// ErrNotFound indicates a transaction record does not exist.
	ErrNotFound = errors.New("transaction not found")
	// ErrSystemNotFound indicates a system config is missing or inactive.
	ErrSystemNotFound = errors.New("system not found or inactive")
	// ErrDuplicateTransaction indicates a transaction_id collision on create.
	ErrDuplicateTransaction = errors.New("transaction id already exists")
)

// TransactionUpdate describes a partial mutation applied to a record. Nil
// fields are left untouched; updated_at is always refreshed.
type TransactionUpdate struct {
	Status       *domain.Status
	ResponseData map[string]any
	ErrorMessage *string
}

// ListOptions defines filters and pagination for transaction listing.
type ListOptions struct {
	Status          string
	SourceSystem    string
	TargetSystem    string
	TransactionType string
	Offset          int
	Limit           int
}

// Store is the record-store contract consumed by the mediator.
type Store interface {
	// GetSystemConfig resolves an active system by name; inactive or unknown
	// systems return ErrSystemNotFound.
	GetSystemConfig(ctx context.Context, name string) (domain.SystemConfig, error)
	// ListSystemConfigs returns all active systems.
	ListSystemConfigs(ctx context.Context) ([]domain.SystemConfig, error)
	// UpsertSystemConfig creates or replaces a system configuration.
	UpsertSystemConfig(ctx context.Context, cfg domain.SystemConfig) error

	CreateTransaction(ctx context.Context, rec domain.TransactionRecord) error
	UpdateTransaction(ctx context.Context, transactionID string, update TransactionUpdate) error
	GetTransaction(ctx context.Context, transactionID string) (domain.TransactionRecord, error)
	ListTransactions(ctx context.Context, opts ListOptions) (domain.TransactionListResult, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
