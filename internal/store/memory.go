package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vanshika/finbridge/internal/domain"
)

// MemoryStore is a mutex-guarded in-process Store used for development and
// tests. Records survive only for the lifetime of the process.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions map[string]domain.TransactionRecord
	systems      map[string]domain.SystemConfig
	nowFn        func() time.Time
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[string]domain.TransactionRecord),
		systems:      make(map[string]domain.SystemConfig),
		nowFn:        time.Now,
	}
}

func (s *MemoryStore) GetSystemConfig(_ context.Context, name string) (domain.SystemConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.systems[name]
	if !ok || !cfg.IsActive {
		return domain.SystemConfig{}, ErrSystemNotFound
	}
	return cfg, nil
}

func (s *MemoryStore) ListSystemConfigs(context.Context) ([]domain.SystemConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	configs := make([]domain.SystemConfig, 0, len(s.systems))
	for _, cfg := range s.systems {
		if cfg.IsActive {
			configs = append(configs, cfg)
		}
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].SystemName < configs[j].SystemName
	})
	return configs, nil
}

func (s *MemoryStore) UpsertSystemConfig(_ context.Context, cfg domain.SystemConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systems[cfg.SystemName] = cfg
	return nil
}

func (s *MemoryStore) CreateTransaction(_ context.Context, rec domain.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[rec.TransactionID]; exists {
		return ErrDuplicateTransaction
	}
	now := s.nowFn()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	s.transactions[rec.TransactionID] = rec
	return nil
}

func (s *MemoryStore) UpdateTransaction(_ context.Context, transactionID string, update TransactionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.transactions[transactionID]
	if !ok {
		return ErrNotFound
	}
	if update.Status != nil {
		rec.Status = *update.Status
	}
	if update.ResponseData != nil {
		rec.ResponseData = update.ResponseData
	}
	if update.ErrorMessage != nil {
		rec.ErrorMessage = *update.ErrorMessage
	}
	rec.UpdatedAt = s.nowFn()
	s.transactions[transactionID] = rec
	return nil
}

func (s *MemoryStore) GetTransaction(_ context.Context, transactionID string) (domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.transactions[transactionID]
	if !ok {
		return domain.TransactionRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, opts ListOptions) (domain.TransactionListResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.TransactionRecord, 0, len(s.transactions))
	for _, rec := range s.transactions {
		if opts.Status != "" && string(rec.Status) != opts.Status {
			continue
		}
		if opts.SourceSystem != "" && rec.SourceSystem != opts.SourceSystem {
			continue
		}
		if opts.TargetSystem != "" && rec.TargetSystem != opts.TargetSystem {
			continue
		}
		if opts.TransactionType != "" && rec.TransactionType != opts.TransactionType {
			continue
		}
		matched = append(matched, rec)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].TransactionID < matched[j].TransactionID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	return domain.TransactionListResult{
		Items: append([]domain.TransactionRecord(nil), matched[offset:end]...),
		Total: total,
	}, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close(context.Context) error { return nil }
