package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumenplay/agent/internal/playback"
	syncctl "github.com/lumenplay/agent/internal/sync"
)

// PlaybackStatusSource supplies the orchestrator's state snapshot
type PlaybackStatusSource interface {
	Status() playback.Status
}

// SyncStatusSource supplies the sync controller's state snapshot
type SyncStatusSource interface {
	Snapshot() syncctl.Status
}

// StatusResponse is the full device status for diagnostics
type StatusResponse struct {
	DeviceUUID string          `json:"device_uuid"`
	Time       string          `json:"time"`
	Playback   playback.Status `json:"playback"`
	Sync       syncctl.Status  `json:"sync"`
}

// StatusHandler handles device status requests
type StatusHandler struct {
	deviceUUID  string
	playbackSrc PlaybackStatusSource
	syncSrc     SyncStatusSource
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(deviceUUID string, playbackSrc PlaybackStatusSource, syncSrc SyncStatusSource) *StatusHandler {
	return &StatusHandler{
		deviceUUID:  deviceUUID,
		playbackSrc: playbackSrc,
		syncSrc:     syncSrc,
	}
}

// Get handles the status endpoint
func (h *StatusHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		DeviceUUID: h.deviceUUID,
		Time:       time.Now().UTC().Format(time.RFC3339),
		Playback:   h.playbackSrc.Status(),
		Sync:       h.syncSrc.Snapshot(),
	})
}

// SetupStatusRoutes registers device status routes
func SetupStatusRoutes(apiGroup *gin.RouterGroup, deviceUUID string, playbackSrc PlaybackStatusSource, syncSrc SyncStatusSource) {
	handler := NewStatusHandler(deviceUUID, playbackSrc, syncSrc)
	apiGroup.GET("/status", handler.Get)
}
