package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// ErrNotFound is returned when the platform has no record for the
// requested booking or customer id.
var ErrNotFound = errors.New("booking: not found")

// Client is a read-only client for the scheduling platform's booking
// and customer records.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        zerolog.Logger
}

// NewClient creates a booking directory client. When token is set,
// requests carry it as an OAuth bearer token.
func NewClient(ctx context.Context, baseURL, token string, logger zerolog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("booking API base URL is not set")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid booking API base URL: %w", err)
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	if token != "" {
		source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, source)
		httpClient.Timeout = 15 * time.Second
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		log:        logger.With().Str("component", "booking-client").Logger(),
	}, nil
}

// GetBooking fetches the current snapshot of a booking.
func (c *Client) GetBooking(ctx context.Context, id string) (*Booking, error) {
	var b Booking
	if err := c.getJSON(ctx, "/bookings/"+url.PathEscape(id), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetCustomer fetches the current snapshot of a customer.
func (c *Client) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	var cust Customer
	if err := c.getJSON(ctx, "/customers/"+url.PathEscape(id), &cust); err != nil {
		return nil, err
	}
	return &cust, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch %s: HTTP %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
