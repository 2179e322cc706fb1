package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EmailService sends transactional email through an HTTP email API.
// It is strictly best-effort: callers log failures and move on.
type EmailService struct {
	BaseURL    string
	HTTPClient *http.Client

	apiKey  string
	from    string
	appName string
}

// NewEmailService creates a new email service instance. An empty apiKey
// leaves the service unconfigured, which disables confirmation emails.
func NewEmailService(apiKey, from, appName string) *EmailService {
	return &EmailService{
		BaseURL: "https://api.resend.com",
		apiKey:  apiKey,
		from:    from,
		appName: appName,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// IsConfigured checks if the email provider is set up
func (e *EmailService) IsConfigured() bool {
	return e.apiKey != ""
}

type emailPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// SendEnrollmentConfirmation sends a plaintext enrollment confirmation
func (e *EmailService) SendEnrollmentConfirmation(ctx context.Context, toEmail, name, courseTitle string) error {
	if !e.IsConfigured() {
		return fmt.Errorf("email provider not configured")
	}

	if name == "" {
		name = "there"
	}

	payload := emailPayload{
		From:    e.from,
		To:      []string{toEmail},
		Subject: fmt.Sprintf("You're enrolled in %s", courseTitle),
		Text: fmt.Sprintf(
			"Hi %s,\n\nYour payment was confirmed and you are now enrolled in %s.\n"+
				"You can access the course from your dashboard.\n\nThe %s Team\n",
			name, courseTitle, e.appName,
		),
	}

	return e.send(ctx, payload)
}

func (e *EmailService) send(ctx context.Context, payload emailPayload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.BaseURL+"/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("email provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("email provider returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return nil
}
