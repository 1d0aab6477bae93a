// Package provider adapts the PawaPay mobile-money network: deposit
// initiation, status polling, webhook signature checks, and translation of
// the vendor's status vocabulary into ours.
package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/olamidemziyad/marketplace-cmr/domain"
)

type Config struct {
	BaseURL       string
	APIToken      string
	WebhookSecret string
	Timeout       time.Duration
}

type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiToken      string
	webhookSecret string
	breaker       *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "pawapay",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiToken:      cfg.APIToken,
		webhookSecret: cfg.WebhookSecret,
		breaker:       breaker,
	}
}

// DepositRequest describes one inbound mobile-money charge.
type DepositRequest struct {
	PhoneNumber string
	Amount      decimal.Decimal
	Currency    string
	OrderRef    string
	PayerRef    string
	Method      domain.PaymentMethod
}

// DepositResult carries the id we generated plus the vendor's first status.
type DepositResult struct {
	DepositID    string
	VendorStatus string
}

// DepositStatus is the vendor's current view of a deposit.
type DepositStatus struct {
	DepositID      string `json:"depositId"`
	Status         string `json:"status"`
	FailureReason  string `json:"failureReason"`
	ReceivedAmount string `json:"receivedAmount"`
}

// InitiateDeposit asks the provider to charge the payer. The deposit id is
// generated on our side before the call goes out, so the idempotency key is
// ours even when the response is lost.
func (c *Client) InitiateDeposit(ctx context.Context, req DepositRequest) (*DepositResult, error) {
	depositID := domain.NewDepositID()

	payload := map[string]any{
		"depositId":     depositID,
		"amount":        req.Amount.StringFixed(2),
		"currency":      req.Currency,
		"correspondent": correspondentFor(req.Method),
		"payer": map[string]any{
			"type": "MSISDN",
			"address": map[string]any{
				"value": strings.ReplaceAll(req.PhoneNumber, " ", ""),
			},
		},
		"customerTimestamp":    time.Now().UTC().Format(time.RFC3339),
		"statementDescription": fmt.Sprintf("Order %s", req.OrderRef),
		"metadata": []map[string]string{
			{"fieldName": "orderRef", "fieldValue": req.OrderRef},
			{"fieldName": "payerRef", "fieldValue": req.PayerRef},
		},
	}

	body, err := c.do(ctx, http.MethodPost, "/deposits", payload)
	if err != nil {
		return nil, &domain.ProviderError{Op: "initiate", Reason: "deposit request failed", Err: err}
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &domain.ProviderError{Op: "initiate", Reason: "malformed provider response", Err: err}
	}

	return &DepositResult{DepositID: depositID, VendorStatus: resp.Status}, nil
}

// GetDepositStatus polls the provider for the current state of a deposit.
func (c *Client) GetDepositStatus(ctx context.Context, depositID string) (*DepositStatus, error) {
	body, err := c.do(ctx, http.MethodGet, "/deposits/"+depositID, nil)
	if err != nil {
		return nil, &domain.ProviderError{Op: "status", Reason: "status request failed", Err: err}
	}

	// The vendor wraps single lookups in an array.
	var list []DepositStatus
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 {
		return &list[0], nil
	}
	var status DepositStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, &domain.ProviderError{Op: "status", Reason: "malformed provider response", Err: err}
	}
	return &status, nil
}

// VerifyWebhookSignature checks the HMAC-SHA256 of the raw request body.
// When no secret is configured verification is skipped; that is an explicit
// relaxed mode for development setups, and it is logged every time.
func (c *Client) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	if c.webhookSecret == "" {
		log.Println("webhook secret not configured, accepting unsigned callback")
		return true
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		var reqBody io.Reader
		if payload != nil {
			raw, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("marshal request: %w", err)
			}
			reqBody = bytes.NewReader(raw)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", c.apiToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("call provider: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read provider response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, providerMessage(body))
		}
		return body, nil
	})
}

func providerMessage(body []byte) string {
	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Message != "" {
		return resp.Message
	}
	return string(body)
}

func correspondentFor(method domain.PaymentMethod) string {
	switch method {
	case domain.PaymentMethodMTN:
		return "MTN_MOMO_CMR"
	case domain.PaymentMethodOrange:
		return "ORANGE_CMR"
	default:
		return "MTN_MOMO_CMR"
	}
}

// PayerReference derives a stable opaque customer reference from a user id,
// so internal ids never leave our systems.
func PayerReference(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return "customer_" + hex.EncodeToString(sum[:4])
}

// MapProviderStatus collapses the vendor vocabulary into the payment state
// machine's statuses. Unrecognized values map to pending rather than failing
// closed, matching how the live system treats new vendor statuses.
func MapProviderStatus(vendorStatus string) domain.PaymentStatus {
	switch vendorStatus {
	case "ACCEPTED", "SUBMITTED", "ENQUEUED":
		return domain.PaymentStatusProcessing
	case "COMPLETED":
		return domain.PaymentStatusSuccess
	case "FAILED", "REJECTED":
		return domain.PaymentStatusFailed
	default:
		return domain.PaymentStatusPending
	}
}

var failureReasons = map[string]string{
	"INSUFFICIENT_BALANCE":  "Insufficient balance",
	"INVALID_MSISDN":        "Invalid phone number",
	"TIMEOUT":               "Confirmation timed out",
	"REJECTED_BY_PAYER":     "Transaction rejected by the payer",
	"BLOCKED_MSISDN":        "Phone number is blocked",
	"DUPLICATE_TRANSACTION": "Duplicate transaction",
	"GENERAL_ERROR":         "General provider error",
}

// ReadableFailureReason maps a vendor failure code to a human-readable
// string. Unknown codes pass through verbatim.
func ReadableFailureReason(code string) string {
	if code == "" {
		return ""
	}
	if reason, ok := failureReasons[code]; ok {
		return reason
	}
	return code
}
