package vue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.emporiaenergy.com"

// Client interface for Emporia cloud communication
type Client interface {
	GetDevices(ctx context.Context) ([]Device, error)
	GetDeviceListUsage(ctx context.Context, deviceGids []int, instant time.Time, scale, unit string) ([]DeviceUsage, error)
}

// TokenSource supplies the ID token sent in the authtoken header.
type TokenSource interface {
	// Token returns a currently valid ID token, logging in or refreshing
	// as needed.
	Token(ctx context.Context) (string, error)
	// Invalidate drops the cached token so the next Token call
	// re-authenticates. Called after the API rejects a token.
	Invalidate()
}

// HTTPClient talks to the Emporia cloud API over HTTPS.
type HTTPClient struct {
	baseURL string
	tokens  TokenSource
	httpc   *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a client for the Emporia cloud API.
func NewHTTPClient(tokens TokenSource, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: defaultBaseURL,
		tokens:  tokens,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// GetDevices lists the devices on the account.
func (c *HTTPClient) GetDevices(ctx context.Context) ([]Device, error) {
	var resp devicesResponse
	if err := c.get(ctx, "/customers/devices", &resp); err != nil {
		return nil, fmt.Errorf("get devices: %w", err)
	}
	return resp.Devices, nil
}

// GetDeviceListUsage fetches per-channel usage for the listed devices at the
// given instant.
func (c *HTTPClient) GetDeviceListUsage(ctx context.Context, deviceGids []int, instant time.Time, scale, unit string) ([]DeviceUsage, error) {
	if len(deviceGids) == 0 {
		return nil, nil
	}

	gids := make([]string, len(deviceGids))
	for i, gid := range deviceGids {
		gids[i] = strconv.Itoa(gid)
	}

	// The API expects the gid list joined with literal '+' characters.
	path := fmt.Sprintf("/AppAPI?apiMethod=getDeviceListUsage&deviceGids=%s&instant=%s&scale=%s&energyUnit=%s",
		strings.Join(gids, "+"),
		instant.UTC().Format("2006-01-02T15:04:05Z"),
		scale, unit)

	var resp usageResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("get device list usage: %w", err)
	}
	return resp.DeviceListUsages.Devices, nil
}

// get performs an authenticated GET and decodes the JSON response. A 401
// invalidates the cached token and retries once with a fresh one.
func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	status, err := c.do(ctx, path, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		c.logger.Info("Token rejected, re-authenticating")
		c.tokens.Invalidate()
		status, err = c.do(ctx, path, out)
		if err != nil {
			return err
		}
	}
	if status != http.StatusOK {
		return fmt.Errorf("unexpected status %d", status)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, path string, out any) (int, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("authtoken", token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.StatusCode, nil
}
