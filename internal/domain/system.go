package domain

import "time"

// SystemType distinguishes the two wire dialects the mediator speaks.
type SystemType string

const (
	SystemTypeFinancialProvider SystemType = "financial_provider"
	SystemTypeBankingSystem     SystemType = "banking_system"
)

// AuthType selects the authentication scheme used when calling a system.
type AuthType string

const (
	AuthTypeAPIKey AuthType = "api_key"
	AuthTypeBearer AuthType = "bearer"
	AuthTypeBasic  AuthType = "basic"
	AuthTypeHMAC   AuthType = "hmac"
	AuthTypeNone   AuthType = "none"
)

// SystemConfig describes a source or target system the mediator can talk to.
// It is read-only to the mediation core.
type SystemConfig struct {
	SystemName string
	SystemType SystemType
	BaseURL    string
	AuthType   AuthType
	APIKey     string
	APISecret  string
	Timeout    time.Duration
	RetryCount int
	IsActive   bool
}
