/**
 * @description
 * This package provides a client for the Flutterwave transaction verification
 * endpoint. It encapsulates the logic for making authenticated HTTP requests,
 * parsing responses, and normalizing amounts into kobo. The server-held
 * secret key is the only credential ever used; nothing the paying client
 * claims about amount or status is consulted.
 *
 * @dependencies
 * - context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package flutterwave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Payment statuses reported by the gateway.
const (
	StatusSuccessful = "successful"
	StatusFailed     = "failed"
	StatusPending    = "pending"
)

// ErrTransactionNotFound is returned when the gateway does not know the
// transaction id at all.
var ErrTransactionNotFound = errors.New("transaction not found at gateway")

// Client is a client for the Flutterwave v3 API.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewClient creates a new Flutterwave API client with a bounded timeout on
// every outbound call.
func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:   baseURL,
		SecretKey: secretKey,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// VerificationResult is the normalized outcome of one verification call.
// Amount is converted from the gateway's naira figure to kobo.
type VerificationResult struct {
	PaymentStatus string
	Amount        int64 // kobo
	Currency      string
	TxRef         string
	FlwRef        string
	TransactionID string
}

// verifyResponse mirrors the relevant parts of the gateway's verification
// payload: a top-level request status plus the nested payment record.
type verifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID       int64   `json:"id"`
		TxRef    string  `json:"tx_ref"`
		FlwRef   string  `json:"flw_ref"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
		Status   string  `json:"status"`
	} `json:"data"`
}

// ErrorResponse represents a non-2xx reply from the Flutterwave API.
type ErrorResponse struct {
	StatusCode int
	Status     string `json:"status"`
	Message    string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("flutterwave api error (status %d): %s", e.StatusCode, e.Message)
}

// VerifyTransaction performs one GET against the verification endpoint for
// the given gateway transaction id. It returns the normalized result even
// when the payment itself failed; callers decide what a non-successful
// payment status means. Transport failures and non-2xx responses come back
// as errors.
func (c *Client) VerifyTransaction(ctx context.Context, transactionID string) (*VerificationResult, error) {
	endpoint := fmt.Sprintf("%s/v3/transactions/%s/verify", c.BaseURL, url.PathEscape(transactionID))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create verification request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute verification request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read verification response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTransactionNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errResp := ErrorResponse{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=flutterwave_client op=verify status=%d msg=\"non-2xx response (unparsable error body)\"", resp.StatusCode)
			return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=flutterwave_client op=verify status=%d message=%q", resp.StatusCode, errResp.Message)
		return nil, &errResp
	}

	var payload verifyResponse
	if err := json.Unmarshal(bodyBytes, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode verification response: %w", err)
	}

	if payload.Status != "success" {
		// The request itself was rejected (e.g. unknown reference); surface
		// it as a declined verification rather than a transport failure.
		return nil, &ErrorResponse{StatusCode: resp.StatusCode, Status: payload.Status, Message: payload.Message}
	}

	return &VerificationResult{
		PaymentStatus: payload.Data.Status,
		Amount:        int64(math.Round(payload.Data.Amount * 100)),
		Currency:      payload.Data.Currency,
		TxRef:         payload.Data.TxRef,
		FlwRef:        payload.Data.FlwRef,
		TransactionID: strconv.FormatInt(payload.Data.ID, 10),
	}, nil
}
