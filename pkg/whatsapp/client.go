package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const addressPrefix = "whatsapp:"

// Client sends WhatsApp messages through a Twilio-compatible REST API
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new client with the given configuration
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

// Send delivers one message and returns the gateway's message resource
func (c *Client) Send(ctx context.Context, msg Message) (*MessageResponse, error) {
	if msg.To == "" || msg.Body == "" {
		return nil, ErrInvalidRequest
	}

	form := url.Values{}
	form.Set("From", address(c.config.From))
	form.Set("To", address(msg.To))
	form.Set("Body", msg.Body)

	body, err := c.doRequest(ctx, fmt.Sprintf("Accounts/%s/Messages.json", c.config.AccountSID), form)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	var resp MessageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message response: %w", err)
	}
	return &resp, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	endpointURL := fmt.Sprintf("%s/%s", strings.TrimRight(c.config.BaseURL, "/"), endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.config.AccountSID, c.config.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil {
			return nil, fmt.Errorf("%w: unexpected status code: %d, body: %s", ErrSendFailed, resp.StatusCode, string(body))
		}

		errorMsg := fmt.Sprintf("status: %d, code: %d, message: %s", resp.StatusCode, errResp.Code, errResp.Message)
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, errorMsg)
		case http.StatusBadRequest:
			return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, errorMsg)
		default:
			return nil, fmt.Errorf("%w: %s", ErrSendFailed, errorMsg)
		}
	}

	return body, nil
}

func address(number string) string {
	if strings.HasPrefix(number, addressPrefix) {
		return number
	}
	return addressPrefix + number
}
