package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/vanshika/finbridge/internal/domain"
)

// Fingerprint returns a deterministic digest of the canonical subset of a
// request. Fields outside the subset (method, params, cacheable flag) do not
// influence the key, so semantically identical requests collide while
// differing payloads never do. The digest is not a security boundary.
func Fingerprint(req domain.TransactionRequest) string {
	subset := map[string]any{
		"transaction_type": req.TransactionType,
		"source_system":    req.SourceSystem,
		"target_system":    req.TargetSystem,
		"payload":          req.Payload,
	}
	if req.UserID != "" {
		subset["user_id"] = req.UserID
	}
	if domain.IsMonetary(req.TransactionType) {
		subset["amount"] = req.Amount
		subset["currency"] = req.Currency
	}

	// encoding/json sorts map keys, giving a canonical byte ordering for the
	// subset and any nested payload maps.
	data, err := json.Marshal(subset)
	if err != nil {
		// Payloads decoded from JSON always re-marshal; fall back to an
		// empty-object digest for the pathological case.
		data = []byte("{}")
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
