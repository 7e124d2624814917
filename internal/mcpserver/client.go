package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to a DataSentinel server.
type Config struct {
	APIURL      string // Base URL, e.g. "http://localhost:8080"
	APIKey      string // Shared API key sent as X-API-Key
	AdminSecret string // Optional, sent as X-Admin-Secret
}

// SentinelClient is a read-only HTTP client for the admin API.
type SentinelClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewSentinelClient creates a new admin API client.
func NewSentinelClient(cfg Config) *SentinelClient {
	return &SentinelClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the server.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// get makes an authenticated GET request and returns the response body.
func (c *SentinelClient) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	if c.cfg.AdminSecret != "" {
		req.Header.Set("X-Admin-Secret", c.cfg.AdminSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	return json.RawMessage(body), nil
}

// GetPartner returns a partner's risk profile.
func (c *SentinelClient) GetPartner(ctx context.Context, partnerID string) (json.RawMessage, error) {
	return c.get(ctx, "/admin/partners/"+url.PathEscape(partnerID), nil)
}

// ActivitySummary returns every tracked partner's summary.
func (c *SentinelClient) ActivitySummary(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/admin/partner_activity_summary", nil)
}

// Restrictions returns the restriction ledger with scores.
func (c *SentinelClient) Restrictions(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/admin/restricted_partners_detailed", nil)
}

// TrapLogs returns a page of trap events, optionally for one partner.
func (c *SentinelClient) TrapLogs(ctx context.Context, partnerID string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if partnerID != "" {
		q.Set("partner_id", partnerID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.get(ctx, "/admin/trap_logs", q)
}

// PartnerAlerts returns a page of the partner alert log.
func (c *SentinelClient) PartnerAlerts(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.get(ctx, "/admin/alerts", q)
}

// FileAlerts returns every file alert.
func (c *SentinelClient) FileAlerts(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/admin/file-alerts", nil)
}
