package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2"

	"github.com/higgsflow/catalog-sync/internal/domain"
)

const defaultTimeout = 60 * time.Second

// ErrNotConfigured is returned when the client has no endpoint to call.
var ErrNotConfigured = errors.New("imagegen: endpoint is not configured")

// HTTPDoer abstracts the HTTP transport for tests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the external image-generation worker over HTTP. The wire
// contract is deliberately small so the concrete provider can change without
// touching the sync pipeline.
type Client struct {
	endpoint  string
	authToken string
	doer      HTTPDoer
	attempts  int
	sleep     func(context.Context, time.Duration) error
}

// ClientOption customises Client construction.
type ClientOption func(*Client)

// WithHTTPDoer overrides the HTTP transport (primarily for tests).
func WithHTTPDoer(doer HTTPDoer) ClientOption {
	return func(c *Client) {
		if doer != nil {
			c.doer = doer
		}
	}
}

// WithAttempts bounds the transient-failure retries per call.
func WithAttempts(attempts int) ClientOption {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
	}
}

// NewClient constructs a Client against the configured endpoint.
func NewClient(endpoint, authToken string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &Client{
		endpoint:  strings.TrimSpace(endpoint),
		authToken: strings.TrimSpace(authToken),
		doer:      &http.Client{Timeout: timeout},
		attempts:  2,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

type generateRequest struct {
	ProductID   string `json:"productId"`
	Name        string `json:"name"`
	Brand       string `json:"brand,omitempty"`
	SKU         string `json:"sku,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

type generateResponse struct {
	Primary     string   `json:"primary"`
	Technical   string   `json:"technical"`
	Application string   `json:"application"`
	Gallery     []string `json:"gallery"`
}

// GenerateImages requests a fresh image set for the product. Transient HTTP
// failures are retried with exponential backoff before the error is surfaced
// to the image pipeline (which applies its own bounded re-enqueue policy).
func (c *Client) GenerateImages(ctx context.Context, product domain.InternalProduct) (domain.ImageSet, error) {
	if c == nil || c.endpoint == "" {
		return domain.ImageSet{}, ErrNotConfigured
	}

	payload, err := json.Marshal(generateRequest{
		ProductID:   product.ID,
		Name:        product.Name,
		Brand:       product.Brand,
		SKU:         product.SKU,
		Category:    product.Category,
		Description: product.Description,
	})
	if err != nil {
		return domain.ImageSet{}, fmt.Errorf("imagegen: marshal request: %w", err)
	}

	backoff := gax.Backoff{
		Initial:    500 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2,
	}

	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, backoff.Pause()); err != nil {
				return domain.ImageSet{}, err
			}
		}

		images, retryable, err := c.generate(ctx, payload)
		if err == nil {
			return images, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return domain.ImageSet{}, lastErr
}

func (c *Client) generate(ctx context.Context, payload []byte) (domain.ImageSet, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.ImageSet{}, false, fmt.Errorf("imagegen: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.ImageSet{}, false, err
		}
		return domain.ImageSet{}, true, fmt.Errorf("imagegen: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("imagegen: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
		return domain.ImageSet{}, retryable, err
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.ImageSet{}, false, fmt.Errorf("imagegen: decode response: %w", err)
	}
	if strings.TrimSpace(decoded.Primary) == "" {
		return domain.ImageSet{}, false, errors.New("imagegen: response missing primary image")
	}

	return domain.ImageSet{
		Primary:     decoded.Primary,
		Technical:   decoded.Technical,
		Application: decoded.Application,
		Gallery:     decoded.Gallery,
	}, false, nil
}
