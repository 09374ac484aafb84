// Package identity looks up a registered customer by phone number.
package identity

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"

	"github.com/soyeahso/sharkchat/internal/config"
	"github.com/soyeahso/sharkchat/internal/logging"
)

// ErrNotConfigured is returned when no lookup endpoint is set.
var ErrNotConfigured = errors.New("identity: endpoint not configured")

// Record is the stored customer profile returned by a lookup. Zip is empty
// when the number is not registered.
type Record struct {
	Zip   string
	Phone string
}

// Client calls the customer lookup API, signing requests with SigV4 for
// API Gateway (execute-api).
type Client struct {
	url      string
	language string
	region   string
	creds    aws.CredentialsProvider
	signer   *v4.Signer
	http     *http.Client
	now      func() time.Time
	log      *logging.Logger
}

// New creates a lookup client. Requests are left unsigned when awsCfg has
// no credentials provider.
func New(cfg config.IdentityConfig, awsCfg aws.Config, log *logging.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	url := ""
	if cfg.Endpoint != "" {
		url = strings.TrimRight(cfg.Endpoint, "/") + cfg.Path
	}
	return &Client{
		url:      url,
		language: cfg.Language,
		region:   awsCfg.Region,
		creds:    awsCfg.Credentials,
		signer:   v4.NewSigner(),
		http:     &http.Client{Timeout: timeout},
		now:      time.Now,
		log:      log.Sub("identity"),
	}
}

type lookupRequest struct {
	Details lookupDetails `json:"Details"`
	Name    string        `json:"Name"`
}

type lookupDetails struct {
	Parameters lookupParameters `json:"Parameters"`
}

type lookupParameters struct {
	UserPhoneNumber string `json:"userPhoneNumber"`
	Language        string `json:"language"`
}

type lookupResponse struct {
	ContactMailingZip flexString `json:"contactMailingZip"`
	ContactPhone      flexString `json:"contactPhone"`
}

// Lookup fetches the record registered for an E.164 phone number. It makes
// exactly one request; retrying is left to the user.
func (c *Client) Lookup(ctx context.Context, phone string) (Record, error) {
	if c.url == "" {
		return Record{}, ErrNotConfigured
	}

	body, err := json.Marshal(lookupRequest{
		Details: lookupDetails{Parameters: lookupParameters{UserPhoneNumber: phone, Language: c.language}},
		Name:    "ContactFlowEvent",
	})
	if err != nil {
		return Record{}, fmt.Errorf("encoding lookup: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Record{}, fmt.Errorf("building lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.sign(ctx, req, body); err != nil {
		return Record{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Record{}, fmt.Errorf("lookup request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Record{}, fmt.Errorf("reading lookup response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Record{}, fmt.Errorf("lookup returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out lookupResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return Record{}, fmt.Errorf("decoding lookup response: %w", err)
	}

	c.log.Debug().Bool("found", out.ContactMailingZip != "").Msg("lookup complete")
	return Record{Zip: string(out.ContactMailingZip), Phone: string(out.ContactPhone)}, nil
}

func (c *Client) sign(ctx context.Context, req *http.Request, body []byte) error {
	if c.creds == nil {
		return nil
	}
	creds, err := c.creds.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("retrieving credentials: %w", err)
	}
	sum := sha256.Sum256(body)
	if err := c.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]), "execute-api", c.region, c.now()); err != nil {
		return fmt.Errorf("signing lookup request: %w", err)
	}
	return nil
}

// flexString accepts a JSON string or number; null decodes as empty.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	return fmt.Errorf("unexpected value %s", b)
}
