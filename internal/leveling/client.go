// Package leveling talks to the external leveling service that ranks players.
// A player's tier level scales how many homes they may own.
package leveling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/cory-johannsen/simplehome/internal/metrics"
)

// DefaultTimeout bounds a lookup when the caller does not configure one.
const DefaultTimeout = 2 * time.Second

// ErrUnexpectedStatus is returned for non-200, non-404 responses.
var ErrUnexpectedStatus = errors.New("unexpected status from leveling service")

// LevelResponse is the body of GET /players/{id}/level.
type LevelResponse struct {
	Player string `json:"player"`
	Level  int    `json:"level"`
}

// HTTPClient queries the leveling service over HTTP. It implements home.TierSource.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPClient creates a client for the service rooted at baseURL.
//
// Precondition: baseURL must be an absolute http(s) URL.
// Postcondition: Returns a client whose requests time out after timeout
// (DefaultTimeout when timeout <= 0).
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Tier returns the player's level. A 404 means the service has no record
// for the player, which counts as level 0.
func (c *HTTPClient) Tier(ctx context.Context, playerID string) (int, error) {
	start := time.Now()
	tier, status, err := c.fetch(ctx, playerID)
	metrics.LevelingRequestDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	metrics.LevelingRequests.WithLabelValues(status).Inc()
	return tier, err
}

// fetch performs the lookup and reports a status label for metrics.
func (c *HTTPClient) fetch(ctx context.Context, playerID string) (int, string, error) {
	u := fmt.Sprintf("%s/players/%s/level", c.baseURL, url.PathEscape(playerID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, "error", fmt.Errorf("building level request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "error", fmt.Errorf("fetch level for %s: %w", playerID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return 0, strconv.Itoa(resp.StatusCode), nil
	default:
		return 0, strconv.Itoa(resp.StatusCode), fmt.Errorf("fetch level for %s: %w: %d", playerID, ErrUnexpectedStatus, resp.StatusCode)
	}

	var body LevelResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, "decode_error", fmt.Errorf("decode level for %s: %w", playerID, err)
	}
	return body.Level, "200", nil
}
