package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/vanshika/finbridge/internal/domain"
)

// GraphOptions configures the graph-backed store.
type GraphOptions struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// GraphStore persists records and system configs as graph nodes over Bolt.
type GraphStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewGraphStore establishes a Bolt connection using the official Neo4j driver.
func NewGraphStore(ctx context.Context, opts GraphOptions) (*GraphStore, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("graph URI is required")
	}

	auth := neo4j.NoAuth()
	if opts.Username != "" {
		auth = neo4j.BasicAuth(opts.Username, opts.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(opts.URI, auth, func(c *neo4j.Config) {
		if opts.MaxConnections > 0 {
			c.MaxConnectionPoolSize = opts.MaxConnections
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify graph connectivity: %w", err)
	}

	return &GraphStore{
		driver:   driver,
		database: opts.Database,
	}, nil
}

const getSystemConfigCypher = `
MATCH (s:SystemConfig {systemName: $name})
WHERE s.isActive
RETURN s`

const listSystemConfigsCypher = `
MATCH (s:SystemConfig)
WHERE s.isActive
RETURN s
ORDER BY s.systemName`

const upsertSystemConfigCypher = `
MERGE (s:SystemConfig {systemName: $name})
SET s += $props`

const createTransactionCypher = `
OPTIONAL MATCH (existing:Transaction {transactionId: $transactionId})
WITH existing
WHERE existing IS NULL
CREATE (t:Transaction)
SET t = $props
RETURN t.transactionId AS id`

const updateTransactionCypher = `
MATCH (t:Transaction {transactionId: $transactionId})
SET t += $props
RETURN t.transactionId AS id`

const getTransactionCypher = `
MATCH (t:Transaction {transactionId: $transactionId})
RETURN t`

const listTransactionsCypher = `
MATCH (t:Transaction)
WHERE ($status = '' OR t.status = $status)
  AND ($sourceSystem = '' OR t.sourceSystem = $sourceSystem)
  AND ($targetSystem = '' OR t.targetSystem = $targetSystem)
  AND ($transactionType = '' OR t.transactionType = $transactionType)
RETURN t
ORDER BY t.createdAt DESC, t.transactionId
SKIP $offset LIMIT $limit`

const countTransactionsCypher = `
MATCH (t:Transaction)
WHERE ($status = '' OR t.status = $status)
  AND ($sourceSystem = '' OR t.sourceSystem = $sourceSystem)
  AND ($targetSystem = '' OR t.targetSystem = $targetSystem)
  AND ($transactionType = '' OR t.transactionType = $transactionType)
RETURN count(t) AS total`

func (s *GraphStore) GetSystemConfig(ctx context.Context, name string) (domain.SystemConfig, error) {
	records, err := s.execute(ctx, neo4j.AccessModeRead, getSystemConfigCypher, map[string]any{"name": name})
	if err != nil {
		return domain.SystemConfig{}, fmt.Errorf("get system config %s: %w", name, err)
	}
	if len(records) == 0 {
		return domain.SystemConfig{}, ErrSystemNotFound
	}
	return systemConfigFromNode(records[0], "s")
}

func (s *GraphStore) ListSystemConfigs(ctx context.Context) ([]domain.SystemConfig, error) {
	records, err := s.execute(ctx, neo4j.AccessModeRead, listSystemConfigsCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("list system configs: %w", err)
	}

	configs := make([]domain.SystemConfig, 0, len(records))
	for _, rec := range records {
		cfg, err := systemConfigFromNode(rec, "s")
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (s *GraphStore) UpsertSystemConfig(ctx context.Context, cfg domain.SystemConfig) error {
	params := map[string]any{
		"name": cfg.SystemName,
		"props": map[string]any{
			"systemName":     cfg.SystemName,
			"systemType":     string(cfg.SystemType),
			"baseUrl":        cfg.BaseURL,
			"authType":       string(cfg.AuthType),
			"apiKey":         cfg.APIKey,
			"apiSecret":      cfg.APISecret,
			"timeoutSeconds": int64(cfg.Timeout / time.Second),
			"retryCount":     int64(cfg.RetryCount),
			"isActive":       cfg.IsActive,
		},
	}
	if _, err := s.execute(ctx, neo4j.AccessModeWrite, upsertSystemConfigCypher, params); err != nil {
		return fmt.Errorf("upsert system config %s: %w", cfg.SystemName, err)
	}
	return nil
}

func (s *GraphStore) CreateTransaction(ctx context.Context, rec domain.TransactionRecord) error {
	requestJSON, err := json.Marshal(rec.RequestData)
	if err != nil {
		return fmt.Errorf("encode request data: %w", err)
	}
	responseJSON, err := json.Marshal(rec.ResponseData)
	if err != nil {
		return fmt.Errorf("encode response data: %w", err)
	}

	params := map[string]any{
		"transactionId": rec.TransactionID,
		"props": map[string]any{
			"id":              rec.ID,
			"transactionId":   rec.TransactionID,
			"sourceSystem":    rec.SourceSystem,
			"targetSystem":    rec.TargetSystem,
			"transactionType": rec.TransactionType,
			"status":          string(rec.Status),
			"amount":          rec.Amount,
			"currency":        rec.Currency,
			"requestData":     string(requestJSON),
			"responseData":    string(responseJSON),
			"errorMessage":    rec.ErrorMessage,
			"createdAt":       formatTime(rec.CreatedAt),
			"updatedAt":       formatTime(rec.UpdatedAt),
		},
	}

	records, err := s.execute(ctx, neo4j.AccessModeWrite, createTransactionCypher, params)
	if err != nil {
		return fmt.Errorf("create transaction %s: %w", rec.TransactionID, err)
	}
	if len(records) == 0 {
		return ErrDuplicateTransaction
	}
	return nil
}

func (s *GraphStore) UpdateTransaction(ctx context.Context, transactionID string, update TransactionUpdate) error {
	props := map[string]any{
		"updatedAt": formatTime(time.Now()),
	}
	if update.Status != nil {
		props["status"] = string(*update.Status)
	}
	if update.ResponseData != nil {
		responseJSON, err := json.Marshal(update.ResponseData)
		if err != nil {
			return fmt.Errorf("encode response data: %w", err)
		}
		props["responseData"] = string(responseJSON)
	}
	if update.ErrorMessage != nil {
		props["errorMessage"] = *update.ErrorMessage
	}

	records, err := s.execute(ctx, neo4j.AccessModeWrite, updateTransactionCypher, map[string]any{
		"transactionId": transactionID,
		"props":         props,
	})
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", transactionID, err)
	}
	if len(records) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GraphStore) GetTransaction(ctx context.Context, transactionID string) (domain.TransactionRecord, error) {
	records, err := s.execute(ctx, neo4j.AccessModeRead, getTransactionCypher, map[string]any{
		"transactionId": transactionID,
	})
	if err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("get transaction %s: %w", transactionID, err)
	}
	if len(records) == 0 {
		return domain.TransactionRecord{}, ErrNotFound
	}
	return transactionFromNode(records[0], "t")
}

func (s *GraphStore) ListTransactions(ctx context.Context, opts ListOptions) (domain.TransactionListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	filters := map[string]any{
		"status":          opts.Status,
		"sourceSystem":    opts.SourceSystem,
		"targetSystem":    opts.TargetSystem,
		"transactionType": opts.TransactionType,
	}

	countRecords, err := s.execute(ctx, neo4j.AccessModeRead, countTransactionsCypher, filters)
	if err != nil {
		return domain.TransactionListResult{}, fmt.Errorf("count transactions: %w", err)
	}
	var total int64
	if len(countRecords) > 0 {
		if v, ok := countRecords[0]["total"].(int64); ok {
			total = v
		}
	}

	pageParams := map[string]any{
		"offset": int64(offset),
		"limit":  int64(limit),
	}
	for k, v := range filters {
		pageParams[k] = v
	}

	records, err := s.execute(ctx, neo4j.AccessModeRead, listTransactionsCypher, pageParams)
	if err != nil {
		return domain.TransactionListResult{}, fmt.Errorf("list transactions: %w", err)
	}

	items := make([]domain.TransactionRecord, 0, len(records))
	for _, rec := range records {
		tx, err := transactionFromNode(rec, "t")
		if err != nil {
			return domain.TransactionListResult{}, err
		}
		items = append(items, tx)
	}

	return domain.TransactionListResult{Items: items, Total: total}, nil
}

func (s *GraphStore) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

func (s *GraphStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *GraphStore) execute(ctx context.Context, mode neo4j.AccessMode, cypher string, params map[string]any) ([]map[string]any, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   mode,
	})
	defer session.Close(ctx)

	res, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	var records []map[string]any
	for res.Next(ctx) {
		rec := res.Record()
		record := make(map[string]any, len(rec.Keys))
		for _, key := range rec.Keys {
			value, _ := rec.Get(key)
			record[key] = value
		}
		records = append(records, record)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func systemConfigFromNode(record map[string]any, key string) (domain.SystemConfig, error) {
	props, err := nodeProps(record, key)
	if err != nil {
		return domain.SystemConfig{}, err
	}

	return domain.SystemConfig{
		SystemName: stringProp(props, "systemName"),
		SystemType: domain.SystemType(stringProp(props, "systemType")),
		BaseURL:    stringProp(props, "baseUrl"),
		AuthType:   domain.AuthType(stringProp(props, "authType")),
		APIKey:     stringProp(props, "apiKey"),
		APISecret:  stringProp(props, "apiSecret"),
		Timeout:    time.Duration(intProp(props, "timeoutSeconds")) * time.Second,
		RetryCount: int(intProp(props, "retryCount")),
		IsActive:   boolProp(props, "isActive"),
	}, nil
}

func transactionFromNode(record map[string]any, key string) (domain.TransactionRecord, error) {
	props, err := nodeProps(record, key)
	if err != nil {
		return domain.TransactionRecord{}, err
	}

	rec := domain.TransactionRecord{
		ID:              stringProp(props, "id"),
		TransactionID:   stringProp(props, "transactionId"),
		SourceSystem:    stringProp(props, "sourceSystem"),
		TargetSystem:    stringProp(props, "targetSystem"),
		TransactionType: stringProp(props, "transactionType"),
		Status:          domain.Status(stringProp(props, "status")),
		Amount:          floatProp(props, "amount"),
		Currency:        stringProp(props, "currency"),
		ErrorMessage:    stringProp(props, "errorMessage"),
		CreatedAt:       parseTime(stringProp(props, "createdAt")),
		UpdatedAt:       parseTime(stringProp(props, "updatedAt")),
	}

	if raw := stringProp(props, "requestData"); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &rec.RequestData); err != nil {
			return domain.TransactionRecord{}, fmt.Errorf("decode request data for %s: %w", rec.TransactionID, err)
		}
	}
	if raw := stringProp(props, "responseData"); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &rec.ResponseData); err != nil {
			return domain.TransactionRecord{}, fmt.Errorf("decode response data for %s: %w", rec.TransactionID, err)
		}
	}
	return rec, nil
}

func nodeProps(record map[string]any, key string) (map[string]any, error) {
	value, ok := record[key]
	if !ok {
		return nil, fmt.Errorf("result is missing %q", key)
	}
	node, ok := value.(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("result %q is not a node", key)
	}
	return node.Props, nil
}

func stringProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func intProp(props map[string]any, key string) int64 {
	switch v := props[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func boolProp(props map[string]any, key string) bool {
	if v, ok := props[key].(bool); ok {
		return v
	}
	return false
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
