package cache

import (
	"testing"

	"github.com/vanshika/finbridge/internal/domain"
)

func baseRequest() domain.TransactionRequest {
	return domain.TransactionRequest{
		SourceSystem:    "stripe_gateway",
		TargetSystem:    "core_banking",
		TransactionType: "balance",
		Payload:         map[string]any{"account_number": "ACC-100"},
		Cacheable:       true,
	}
}

func TestFingerprintStableAcrossIdenticalRequests(t *testing.T) {
	a := Fingerprint(baseRequest())
	b := Fingerprint(baseRequest())
	if a != b {
		t.Fatalf("expected identical fingerprints, got %s and %s", a, b)
	}
}

func TestFingerprintIgnoresNonCanonicalFields(t *testing.T) {
	base := Fingerprint(baseRequest())

	modified := baseRequest()
	modified.Method = "GET"
	modified.Params = map[string]string{"verbose": "true"}
	modified.Cacheable = false
	modified.TransactionID = "txn-explicit"

	if got := Fingerprint(modified); got != base {
		t.Fatalf("method/params/cacheable/transaction_id should not change the fingerprint")
	}
}

func TestFingerprintChangesWithPayload(t *testing.T) {
	base := Fingerprint(baseRequest())

	modified := baseRequest()
	modified.Payload = map[string]any{"account_number": "ACC-200"}

	if got := Fingerprint(modified); got == base {
		t.Fatalf("different payloads must not collide")
	}
}

func TestFingerprintChangesWithSystems(t *testing.T) {
	base := Fingerprint(baseRequest())

	modified := baseRequest()
	modified.TargetSystem = "legacy_bank"

	if got := Fingerprint(modified); got == base {
		t.Fatalf("different target systems must not collide")
	}
}

func TestFingerprintIncludesUserWhenSet(t *testing.T) {
	base := Fingerprint(baseRequest())

	modified := baseRequest()
	modified.UserID = "user-7"

	if got := Fingerprint(modified); got == base {
		t.Fatalf("user_id must be part of the key when present")
	}
}

func TestFingerprintIncludesAmountForMonetaryTypes(t *testing.T) {
	first := baseRequest()
	first.TransactionType = "payment"
	first.Amount = 100
	first.Currency = "USD"

	second := first
	second.Amount = 250

	if Fingerprint(first) == Fingerprint(second) {
		t.Fatalf("monetary amounts must differentiate fingerprints")
	}

	// For non-monetary types the amount is outside the canonical subset.
	third := baseRequest()
	third.Amount = 1
	if Fingerprint(third) != Fingerprint(baseRequest()) {
		t.Fatalf("amount must not affect non-monetary fingerprints")
	}
}

func TestCacheableExcludesMonetaryTypes(t *testing.T) {
	cases := []struct {
		transactionType string
		cacheable       bool
		want            bool
	}{
		{"balance", true, true},
		{"balance", false, false},
		{"payment", true, false},
		{"transfer", true, false},
		{"withdrawal", true, false},
		{"deposit", true, false},
		{"account_info", true, true},
	}

	for _, tc := range cases {
		req := baseRequest()
		req.TransactionType = tc.transactionType
		req.Cacheable = tc.cacheable
		if got := Cacheable(req); got != tc.want {
			t.Errorf("Cacheable(%s, cacheable=%v) = %v, want %v", tc.transactionType, tc.cacheable, got, tc.want)
		}
	}
}
