package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/finbridge/internal/domain"
)

const mediatorName = "finbridge"

// WireRequest is the outbound request shape handed to the dispatcher.
type WireRequest struct {
	TransactionID   string
	TransactionType string
	Method          string
	Payload         map[string]any
	Params          map[string]string
}

// Transformer maps the canonical transaction model to and from
// system-specific wire formats. It is a pure mapping layer: inputs are never
// mutated and the same input always yields the same output (modulo the
// stamped timestamp).
type Transformer struct {
	nowFn func() time.Time
}

// NewTransformer constructs a Transformer using the wall clock.
func NewTransformer() *Transformer {
	return &Transformer{nowFn: time.Now}
}

// ToWire stamps mediator metadata onto the canonical request and reshapes the
// payload into the envelope expected by the target's system type. Transaction
// types without a specific mapping pass through with metadata only.
func (t *Transformer) ToWire(req domain.TransactionRequest, source, target domain.SystemConfig) WireRequest {
	method := req.Method
	if method == "" {
		method = "POST"
	}

	stamped := cloneMap(req.Payload)
	stamped["origin_system"] = source.SystemName
	stamped["request_timestamp"] = t.nowFn().UTC().Format(time.RFC3339)

	var payload map[string]any
	switch target.SystemType {
	case domain.SystemTypeFinancialProvider:
		payload = toProviderPayload(req, stamped)
	case domain.SystemTypeBankingSystem:
		payload = toBankingPayload(req, stamped)
	default:
		payload = stamped
	}

	return WireRequest{
		TransactionID:   req.TransactionID,
		TransactionType: req.TransactionType,
		Method:          method,
		Payload:         payload,
		Params:          cloneParams(req.Params),
	}
}

// FromWire reshapes a downstream response into the canonical shape expected
// by the source system, keyed on the (source, target) system type pair and on
// which top-level wire key is present. Unrecognized shapes pass through with
// only added metadata.
func (t *Transformer) FromWire(wireResp map[string]any, source, target domain.SystemConfig) map[string]any {
	out := reshapeResponse(wireResp, source.SystemType, target.SystemType)
	out["processed_by"] = mediatorName
	out["processed_at"] = t.nowFn().UTC().Format(time.RFC3339)
	return out
}

func toProviderPayload(req domain.TransactionRequest, stamped map[string]any) map[string]any {
	switch req.TransactionType {
	case "payment":
		beneficiary := subMap(req.Payload, "beneficiary")
		envelope := map[string]any{
			"amount": map[string]any{
				"value":    formatAmount(req.Amount),
				"currency": req.Currency,
			},
			"beneficiary": map[string]any{
				"name":          beneficiary["name"],
				"accountNumber": beneficiary["account_number"],
				"bankDetails": map[string]any{
					"bankCode": beneficiary["bank_code"],
				},
			},
			"reference": req.TransactionID,
		}
		if src, ok := req.Payload["source_account"]; ok {
			envelope["sourceAccount"] = src
		}
		return withMetadata(map[string]any{"paymentRequest": envelope}, stamped)
	case "balance":
		envelope := map[string]any{
			"accountNumber": req.Payload["account_number"],
		}
		return withMetadata(map[string]any{"balanceRequest": envelope}, stamped)
	default:
		return stamped
	}
}

func toBankingPayload(req domain.TransactionRequest, stamped map[string]any) map[string]any {
	switch req.TransactionType {
	case "payment":
		beneficiary := subMap(req.Payload, "beneficiary")
		envelope := map[string]any{
			"type":          "payment",
			"amount":        formatAmount(req.Amount),
			"currencyCode":  req.Currency,
			"debitAccount":  req.Payload["source_account"],
			"creditAccount": beneficiary["account_number"],
			"narrative":     beneficiary["name"],
			"reference":     req.TransactionID,
		}
		return withMetadata(map[string]any{"transaction": envelope}, stamped)
	case "balance":
		envelope := map[string]any{
			"type":    "balance",
			"account": req.Payload["account_number"],
		}
		return withMetadata(map[string]any{"transaction": envelope}, stamped)
	default:
		return stamped
	}
}

func reshapeResponse(resp map[string]any, sourceType, targetType domain.SystemType) map[string]any {
	switch {
	case targetType == domain.SystemTypeFinancialProvider && sourceType == domain.SystemTypeBankingSystem:
		if pr, ok := resp["paymentResponse"].(map[string]any); ok {
			out := map[string]any{
				"status":                pr["status"],
				"transaction_reference": pr["transactionReference"],
			}
			if amount, ok := pr["amount"].(map[string]any); ok {
				out["amount"] = amount["value"]
				out["currency"] = amount["currency"]
			}
			return out
		}
		if br, ok := resp["balanceResponse"].(map[string]any); ok {
			return map[string]any{
				"account_number": br["accountNumber"],
				"balance":        br["balance"],
				"currency":       br["currency"],
			}
		}
	case targetType == domain.SystemTypeBankingSystem && sourceType == domain.SystemTypeFinancialProvider:
		if tx, ok := resp["transaction"].(map[string]any); ok {
			return map[string]any{
				"status":    tx["status"],
				"reference": tx["reference"],
				"amount":    tx["amount"],
				"currency":  tx["currencyCode"],
			}
		}
		if ai, ok := resp["accountInfo"].(map[string]any); ok {
			return map[string]any{
				"account_number": ai["account"],
				"account_name":   ai["name"],
				"balance":        ai["balance"],
				"currency":       ai["currency"],
			}
		}
	}
	return cloneMap(resp)
}

func withMetadata(payload, stamped map[string]any) map[string]any {
	if v, ok := stamped["origin_system"]; ok {
		payload["origin_system"] = v
	}
	if v, ok := stamped["request_timestamp"]; ok {
		payload["request_timestamp"] = v
	}
	return payload
}

func formatAmount(amount float64) string {
	return decimal.NewFromFloat(amount).String()
}

func subMap(payload map[string]any, key string) map[string]any {
	if payload == nil {
		return map[string]any{}
	}
	if m, ok := payload[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func cloneMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src)+2)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func cloneParams(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
