package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const emailTimeout = 15 * time.Second

// EmailClient delivers messages through a transactional email HTTP API.
// Used by cmd/worker; request paths never call it directly.
type EmailClient struct {
	APIKey     string
	BaseURL    string
	From       string
	HTTPClient *http.Client
}

// NewEmailClient returns a client for the provider at baseURL.
func NewEmailClient(apiKey, baseURL, from string) *EmailClient {
	return &EmailClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		From:       from,
		HTTPClient: &http.Client{Timeout: emailTimeout},
	}
}

// Deliver renders the message and posts it to the provider. Does not log
// credentials or generated passwords.
func (c *EmailClient) Deliver(ctx context.Context, msg *Message) error {
	if c.APIKey == "" || c.BaseURL == "" {
		return fmt.Errorf("notification: email provider not configured")
	}
	subject, text := render(msg)
	body := map[string]string{
		"from":    c.From,
		"to":      msg.To,
		"subject": subject,
		"text":    text,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/messages", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notification: email request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

func render(msg *Message) (subject, text string) {
	switch msg.Kind {
	case KindAccountCreated:
		subject = fmt.Sprintf("Your %s account", msg.OrgName)
		text = fmt.Sprintf(
			"An account was created for you at %s.\n\nTemporary password: %s\n\nSign in and change it right away.",
			msg.OrgName, msg.TempPassword,
		)
	case KindAddedToFirm:
		subject = fmt.Sprintf("You have been added to %s", msg.OrgName)
		text = fmt.Sprintf("You now have access to %s. Sign in with your existing account.", msg.OrgName)
	case KindInvitation:
		subject = fmt.Sprintf("Invitation to join %s", msg.OrgName)
		text = fmt.Sprintf("You have been invited to join %s. Use this token to accept: %s", msg.OrgName, msg.InviteToken)
	default:
		subject = "Notification"
		text = fmt.Sprintf("You have a new notification from %s.", msg.OrgName)
	}
	return subject, text
}
