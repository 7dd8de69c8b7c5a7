// Package backend talks to the cloud service: polling for content updates,
// fetching the scene manifest and media, and listening for pushed commands.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/lumenplay/agent/internal/config"
	"github.com/lumenplay/agent/internal/logger"
	"github.com/lumenplay/agent/internal/models"
)

const (
	maxRequestAttempts = 3
	retryBaseDelay     = time.Second
)

// Backend client errors
var (
	ErrNotConfigured = errors.New("backend base URL not configured")
	ErrUnauthorized  = errors.New("backend rejected the device token")
)

// UpdatePoll is the backend's answer to "has my content changed"
type UpdatePoll struct {
	UpdateAvailable bool   `json:"update_available"`
	ContentVersion  string `json:"content_version"`
}

// SceneDescriptor is one scene as delivered by the backend, with the media
// still living behind a URL
type SceneDescriptor struct {
	ID              string                  `json:"id"`
	Order           int                     `json:"order"`
	MediaURL        string                  `json:"media_url"`
	MediaType       models.MediaType        `json:"media_type"`
	DurationSeconds float64                 `json:"duration"`
	Schedule        []models.ScheduleWindow `json:"days_scheduled,omitempty"`
}

// ContentResponse is the full manifest for a device
type ContentResponse struct {
	ContentVersion string            `json:"content_version"`
	Scenes         []SceneDescriptor `json:"scenes"`
}

// Client is the REST client for the signage backend. Authentication is a
// bearer token read from disk at construction time.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a backend client from configuration. A missing token
// file is not an error; the device simply polls unauthenticated until
// registration completes.
func NewClient(cfg config.BackendConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNotConfigured
	}

	token := ""
	if cfg.TokenPath != "" {
		data, err := os.ReadFile(cfg.TokenPath)
		if err == nil {
			token = strings.TrimSpace(string(data))
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read device token: %w", err)
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}, nil
}

// PollUpdates asks the backend whether new content is available
func (c *Client) PollUpdates(ctx context.Context, deviceUUID string) (*UpdatePoll, error) {
	var poll UpdatePoll
	endpoint := fmt.Sprintf("/api/devices/%s/update-poll", url.PathEscape(deviceUUID))
	if err := c.getJSON(ctx, endpoint, &poll); err != nil {
		return nil, err
	}
	return &poll, nil
}

// FetchContent downloads the device's current scene manifest
func (c *Client) FetchContent(ctx context.Context, deviceUUID string) (*ContentResponse, error) {
	var content ContentResponse
	endpoint := fmt.Sprintf("/api/devices/%s/content", url.PathEscape(deviceUUID))
	if err := c.getJSON(ctx, endpoint, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

// FetchDeviceInfo retrieves the backend's view of this device
func (c *Client) FetchDeviceInfo(ctx context.Context, deviceUUID string) (*models.DeviceInfo, error) {
	var info models.DeviceInfo
	endpoint := fmt.Sprintf("/api/devices/%s", url.PathEscape(deviceUUID))
	if err := c.getJSON(ctx, endpoint, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DownloadMedia streams a media URL to the given writer
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string, dest io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create media request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("media download returned status %d", resp.StatusCode)
	}

	if _, err := io.Copy(dest, resp.Body); err != nil {
		return fmt.Errorf("failed to write media body: %w", err)
	}
	return nil
}

// getJSON performs a GET with retries and decodes a JSON response.
// Transient failures back off exponentially; auth failures do not retry.
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt < maxRequestAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			logger.Log.Debug().
				Str("endpoint", endpoint).
				Dur("delay", delay).
				Int("attempt", attempt+1).
				Msg("Retrying backend request")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = c.doGetJSON(ctx, endpoint, out)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrUnauthorized) || ctx.Err() != nil {
			return lastErr
		}
	}
	return fmt.Errorf("backend request failed after %d attempts: %w", maxRequestAttempts, lastErr)
}

// doGetJSON performs a single GET request
func (c *Client) doGetJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("backend returned status %d for %s", resp.StatusCode, endpoint)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// authorize attaches the bearer token when one is present
func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
