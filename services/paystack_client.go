package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// PaystackClient handles communication with the Paystack REST API
type PaystackClient struct {
	BaseURL    string
	HTTPClient *http.Client

	secretKey string
}

// NewPaystackClient creates a new Paystack client
func NewPaystackClient(baseURL, secretKey string) *PaystackClient {
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}

	return &PaystackClient{
		BaseURL:   baseURL,
		secretKey: secretKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// PaystackCustomer is the customer attached to a provider transaction
type PaystackCustomer struct {
	Email string `json:"email"`
}

// PaystackMetadata is the metadata the checkout attached to the charge.
// Paystack serializes absent metadata as "" or null instead of an object,
// so decoding has to tolerate non-object values.
type PaystackMetadata struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id"`
}

func (m *PaystackMetadata) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" || string(b) == `""` {
		return nil
	}

	type plain PaystackMetadata
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		// Non-object metadata carries no identity signal; treat it as absent
		return nil
	}

	*m = PaystackMetadata(p)
	return nil
}

// PaystackTransaction is the provider's view of one payment attempt.
// Amount is in the smallest currency subunit (kobo, cents).
type PaystackTransaction struct {
	ID       int64            `json:"id"`
	Status   string           `json:"status"`
	Amount   int64            `json:"amount"`
	Currency string           `json:"currency"`
	Customer PaystackCustomer `json:"customer"`
	Metadata PaystackMetadata `json:"metadata"`
}

// IsSuccessful reports whether the provider settled the transaction
func (t *PaystackTransaction) IsSuccessful() bool {
	return t.Status == "success"
}

type verifyEnvelope struct {
	Status  bool                 `json:"status"`
	Message string               `json:"message"`
	Data    *PaystackTransaction `json:"data"`
}

// VerifyTransaction fetches the authoritative state of a transaction by its
// reference. It returns the transaction regardless of its settlement status;
// interpreting that status is the caller's job.
func (c *PaystackClient) VerifyTransaction(ctx context.Context, reference string) (*PaystackTransaction, error) {
	endpoint := c.BaseURL + "/transaction/verify/" + url.PathEscape(reference)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paystack request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("paystack returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var envelope verifyEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode paystack response: %w", err)
	}

	if !envelope.Status || envelope.Data == nil {
		return nil, fmt.Errorf("paystack rejected verification: %s", envelope.Message)
	}

	return envelope.Data, nil
}
