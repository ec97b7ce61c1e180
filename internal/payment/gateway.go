package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// GatewayClient implements Verifier against the payment gateway's HTTP API.
type GatewayClient struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewGatewayClient returns a client for the gateway at baseURL using apiKey
// for authorization.
func NewGatewayClient(apiKey, baseURL string) *GatewayClient {
	return &GatewayClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Fetch returns the payment for paymentID, or nil when the gateway responds
// 404. Does not log amounts or keys.
func (c *GatewayClient) Fetch(ctx context.Context, paymentID string) (*Payment, error) {
	if c.APIKey == "" || c.BaseURL == "" {
		return nil, fmt.Errorf("payment: gateway not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/payments/"+paymentID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var p Payment
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return nil, fmt.Errorf("payment: decode response: %w", err)
		}
		return &p, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("payment: gateway request failed status=%d body=%s", resp.StatusCode, string(b))
	}
}
