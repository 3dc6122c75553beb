package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vanshika/finbridge/internal/domain"
	"github.com/vanshika/finbridge/internal/metrics"
)

// timeoutMessage is the synthetic body returned once retries are exhausted.
const timeoutMessage = "Request timeout after retries"

// DispatchResult carries the downstream response body and HTTP status code.
// Transport-level failures are reported as synthetic bodies with status 500
// (or 504 once retries are exhausted), never as Go errors.
type DispatchResult struct {
	StatusCode int
	Body       map[string]any
}

// Dispatcher executes outbound wire requests against downstream systems with
// auth-header construction, a per-attempt timeout and timeout-only retry.
type Dispatcher struct {
	client  *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics

	// backoffUnit scales the 2^attempt retry delay; one second in
	// production, shortened in tests.
	backoffUnit time.Duration
}

// NewDispatcher constructs a Dispatcher. The per-attempt timeout comes from
// each target's SystemConfig, so the underlying client carries none.
func NewDispatcher(logger *slog.Logger, m *metrics.Metrics, backoffUnit time.Duration) *Dispatcher {
	if backoffUnit <= 0 {
		backoffUnit = time.Second
	}
	return &Dispatcher{
		client:      &http.Client{},
		logger:      logger,
		metrics:     m,
		backoffUnit: backoffUnit,
	}
}

// Execute performs up to target.RetryCount+1 attempts. Only timeouts are
// retried, with a cancellable 2^attempt delay between attempts; any other
// transport failure is reported on first occurrence. Retries carry no
// idempotency token, so a downstream that applied a timed-out attempt may
// observe a duplicate (flagged correctness risk, pending a product decision).
func (d *Dispatcher) Execute(ctx context.Context, req WireRequest, target domain.SystemConfig) DispatchResult {
	attempts := target.RetryCount + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		d.metrics.ObserveDispatchAttempt()

		result, err := d.attempt(ctx, req, target)
		if err == nil {
			return result
		}

		if !isTimeout(err) {
			d.logger.Error("dispatch failed",
				"target", target.SystemName,
				"transaction_id", req.TransactionID,
				"error", err,
			)
			return DispatchResult{
				StatusCode: http.StatusInternalServerError,
				Body:       map[string]any{"error": fmt.Sprintf("Request failed: %v", err)},
			}
		}

		d.logger.Warn("dispatch attempt timed out",
			"target", target.SystemName,
			"transaction_id", req.TransactionID,
			"attempt", attempt,
			"max_attempts", attempts,
		)

		if attempt == attempts {
			break
		}

		d.metrics.ObserveDispatchRetry()
		delay := d.backoffUnit * time.Duration(1<<uint(attempt))
		if !sleepCtx(ctx, delay) {
			return DispatchResult{
				StatusCode: http.StatusInternalServerError,
				Body:       map[string]any{"error": "Request canceled"},
			}
		}
	}

	return DispatchResult{
		StatusCode: http.StatusGatewayTimeout,
		Body:       map[string]any{"error": timeoutMessage},
	}
}

func (d *Dispatcher) attempt(ctx context.Context, req WireRequest, target domain.SystemConfig) (DispatchResult, error) {
	timeout := target.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint, err := buildEndpoint(target.BaseURL, req)
	if err != nil {
		return DispatchResult{}, err
	}

	var body []byte
	if req.Method != http.MethodGet {
		body, err = json.Marshal(req.Payload)
		if err != nil {
			return DispatchResult{}, fmt.Errorf("encode request body: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, endpoint, bytes.NewReader(body))
	if err != nil {
		return DispatchResult{}, fmt.Errorf("build request: %w", err)
	}
	if req.Method != http.MethodGet {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	applyAuth(httpReq, target, body)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return DispatchResult{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("read response body: %w", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed == nil {
		parsed = map[string]any{"raw_response": string(raw)}
	}

	return DispatchResult{
		StatusCode: resp.StatusCode,
		Body:       parsed,
	}, nil
}

// buildEndpoint appends "/api/<type>" to the target base URL and encodes
// query params.
func buildEndpoint(baseURL string, req WireRequest) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/api/" + strings.ToLower(req.TransactionType))
	if err != nil {
		return "", fmt.Errorf("invalid target url: %w", err)
	}

	if len(req.Params) > 0 {
		query := u.Query()
		for k, v := range req.Params {
			query.Set(k, v)
		}
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

func applyAuth(httpReq *http.Request, target domain.SystemConfig, body []byte) {
	switch target.AuthType {
	case domain.AuthTypeAPIKey:
		httpReq.Header.Set("X-API-Key", target.APIKey)
	case domain.AuthTypeBearer:
		httpReq.Header.Set("Authorization", "Bearer "+target.APIKey)
	case domain.AuthTypeBasic:
		httpReq.SetBasicAuth(target.APIKey, target.APISecret)
	case domain.AuthTypeHMAC:
		httpReq.Header.Set("X-Signature", SignPayload(body, target.APISecret))
	case domain.AuthTypeNone:
	}
}

// SignPayload computes the hex HMAC-SHA256 signature of a serialized payload.
// The same scheme authenticates inbound webhooks.
func SignPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// sleepCtx waits for the delay on a cancellable timer; it reports false when
// the context was canceled first.
func sleepCtx(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
