package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lumenplay/agent/internal/logger"
	"github.com/lumenplay/agent/internal/models"
)

const infoCacheFile = "device_info.json"

// InfoProvider supplies the backend's view of this device
type InfoProvider interface {
	Info(ctx context.Context) (*models.DeviceInfo, error)
}

// LiveInfoProvider fetches device info from the backend and keeps a local
// cache so later lookups survive network outages
type LiveInfoProvider struct {
	client     *Client
	deviceUUID string
	cachePath  string
}

// NewLiveInfoProvider creates a provider that prefers the backend and falls
// back to the cache file in stateDir
func NewLiveInfoProvider(client *Client, deviceUUID, stateDir string) *LiveInfoProvider {
	return &LiveInfoProvider{
		client:     client,
		deviceUUID: deviceUUID,
		cachePath:  filepath.Join(stateDir, infoCacheFile),
	}
}

// Info fetches fresh device info, updating the cache on success. When the
// backend is unreachable the cached copy is served instead.
func (p *LiveInfoProvider) Info(ctx context.Context) (*models.DeviceInfo, error) {
	info, err := p.client.FetchDeviceInfo(ctx, p.deviceUUID)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Msg("Device info fetch failed, trying cache")
		return readInfoCache(p.cachePath)
	}

	if err := writeInfoCache(p.cachePath, info); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("path", p.cachePath).
			Msg("Failed to cache device info")
	}
	return info, nil
}

// CachedInfoProvider serves device info from the local cache only. Used
// when the agent runs without a configured backend.
type CachedInfoProvider struct {
	cachePath string
}

// NewCachedInfoProvider creates a cache-only provider reading from stateDir
func NewCachedInfoProvider(stateDir string) *CachedInfoProvider {
	return &CachedInfoProvider{cachePath: filepath.Join(stateDir, infoCacheFile)}
}

// Info returns the cached device info
func (p *CachedInfoProvider) Info(_ context.Context) (*models.DeviceInfo, error) {
	return readInfoCache(p.cachePath)
}

// readInfoCache loads the cached device info file
func readInfoCache(path string) (*models.DeviceInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device info cache: %w", err)
	}
	var info models.DeviceInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to decode device info cache: %w", err)
	}
	return &info, nil
}

// writeInfoCache writes the cache atomically via a temp file rename
func writeInfoCache(path string, info *models.DeviceInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode device info: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write device info cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace device info cache: %w", err)
	}
	return nil
}
