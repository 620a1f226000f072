// Package instagram is the HTTP client for the external profile-data
// provider. It only maps typed responses; scraping, pagination and rate
// limiting happen on the provider side.
package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/instatrack/instatrack/internal/models"
	"github.com/instatrack/instatrack/pkg/logger"
)

type Client struct {
	logger *logger.Logger

	baseURL string
	// reportWebhookURL is where the provider delivers finished reports.
	reportWebhookURL string
	http             *http.Client
	cache            *SnapshotCache
}

func NewClient(baseURL, reportWebhookURL string, cache *SnapshotCache, logger *logger.Logger) *Client {
	return &Client{
		baseURL:          baseURL,
		reportWebhookURL: reportWebhookURL,
		http:             &http.Client{Timeout: 30 * time.Second},
		cache:            cache,
		logger:           logger,
	}
}

// decodeSoft turns a 400 with a detail string into a SoftProviderError: an
// expected branch shown to the user verbatim, not a failure.
func decodeSoft(body []byte) error {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return &models.SoftProviderError{Detail: payload.Detail}
	}
	return &models.ProviderError{Status: http.StatusBadRequest, Body: string(body)}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build provider request: %s", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read provider response: %s", err)
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return json.Unmarshal(body, out)
	case http.StatusNotFound:
		return fmt.Errorf("provider has no data for %s: %w", path, models.ErrNotFound)
	case http.StatusBadRequest:
		return decodeSoft(body)
	default:
		return &models.ProviderError{Status: resp.StatusCode, Body: string(body)}
	}
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal provider payload: %s", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build provider request: %s", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read provider response: %s", err)
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		if out == nil {
			return nil
		}
		return json.Unmarshal(body, out)
	case http.StatusNotFound:
		return fmt.Errorf("provider has no data for %s: %w", path, models.ErrNotFound)
	case http.StatusBadRequest:
		return decodeSoft(body)
	default:
		return &models.ProviderError{Status: resp.StatusCode, Body: string(body)}
	}
}

// StartTracking registers the account with the provider. The first
// registration kicks off a full data collection on the provider side.
func (c *Client) StartTracking(ctx context.Context, username string) (*models.ProfileInfo, error) {
	var info models.ProfileInfo
	err := c.post(ctx, "/api/user", map[string]string{"instagram_username": username}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// GetProfile returns the current snapshot. Snapshots are served from the
// cache when one is fresh enough.
func (c *Client) GetProfile(ctx context.Context, username string) (*models.ProfileInfo, error) {
	if c.cache != nil {
		if info, ok := c.cache.Get(ctx, username); ok {
			return info, nil
		}
	}
	var info models.ProfileInfo
	err := c.get(ctx, "/api/user", url.Values{"username": {username}}, &info)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Set(ctx, &info)
	}
	return &info, nil
}

func (c *Client) StatsDiff(ctx context.Context, username string, days int) (*models.ProfileStatsDiff, error) {
	var diff models.ProfileStatsDiff
	err := c.get(ctx, "/api/user/"+username+"/change", url.Values{"days": {strconv.Itoa(days)}}, &diff)
	if err != nil {
		return nil, err
	}
	return &diff, nil
}

func (c *Client) MediaStats(ctx context.Context, username string, days int) (*models.MediaUserStats, error) {
	var stats models.MediaUserStats
	err := c.get(ctx, "/api/media/stats", url.Values{
		"username": {username},
		"days":     {strconv.Itoa(days)},
	}, &stats)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) FollowersDiff(ctx context.Context, username string) ([]*models.FollowDifference, error) {
	var diffs []*models.FollowDifference
	if err := c.get(ctx, "/api/user/"+username+"/followers", nil, &diffs); err != nil {
		return nil, err
	}
	return diffs, nil
}

func (c *Client) FollowingDiff(ctx context.Context, username string) ([]*models.FollowDifference, error) {
	var diffs []*models.FollowDifference
	if err := c.get(ctx, "/api/user/"+username+"/following", nil, &diffs); err != nil {
		return nil, err
	}
	return diffs, nil
}

// CreateReport asks the provider to collect fresh data. The finished report
// comes back through the report webhook, tagged with the user's id.
func (c *Client) CreateReport(ctx context.Context, userTelegramID int64, username string) error {
	webhook := fmt.Sprintf("%s/api/v1/users/%d/report", c.reportWebhookURL, userTelegramID)
	return c.post(ctx, "/api/user/"+username+"/report", map[string]interface{}{
		"webhook_url": webhook,
	}, nil)
}
