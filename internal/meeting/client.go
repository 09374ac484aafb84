package meeting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client requests connection data from a remote call-setup endpoint.
type Client struct {
	url  string
	http *http.Client
}

var _ Setup = (*Client)(nil)

// NewClient creates a client for the endpoint at url.
func NewClient(url string) *Client {
	return &Client{url: url, http: &http.Client{Timeout: 15 * time.Second}}
}

type setupRequest struct {
	Attributes Attributes `json:"attributes"`
}

type setupResponse struct {
	Success        bool            `json:"success"`
	ConnectionData *ConnectionData `json:"connectionData,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// Setup posts the caller attributes and validates the returned connection data.
func (c *Client) Setup(ctx context.Context, attrs Attributes) (ConnectionData, error) {
	body, err := json.Marshal(setupRequest{Attributes: attrs.WithDefaults()})
	if err != nil {
		return ConnectionData{}, fmt.Errorf("encoding setup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return ConnectionData{}, fmt.Errorf("building setup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ConnectionData{}, fmt.Errorf("setup request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ConnectionData{}, fmt.Errorf("reading setup response: %w", err)
	}

	var out setupResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return ConnectionData{}, fmt.Errorf("decoding setup response (%d): %w", resp.StatusCode, err)
	}
	if !out.Success {
		return ConnectionData{}, &SetupError{Message: out.Error}
	}
	if out.ConnectionData == nil {
		return ConnectionData{}, ErrInvalidConnectionData
	}
	if err := out.ConnectionData.Validate(); err != nil {
		return ConnectionData{}, err
	}
	return *out.ConnectionData, nil
}
