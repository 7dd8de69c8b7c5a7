package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumenplay/agent/internal/models"
)

// DeviceStateRepository handles database operations for device state.
// Device state is a single row; a fresh database gets a generated UUID.
type DeviceStateRepository struct {
	db *DB
}

// NewDeviceStateRepository creates a new device state repository
func NewDeviceStateRepository(db *DB) *DeviceStateRepository {
	return &DeviceStateRepository{db: db}
}

// Get retrieves the device state, creating an unregistered row with a fresh
// device UUID on first run
func (r *DeviceStateRepository) Get(ctx context.Context) (*models.DeviceState, error) {
	var state models.DeviceState
	result := r.db.WithContext(ctx).First(&state)
	if result.Error != nil {
		if !IsNotFound(result.Error) {
			return nil, fmt.Errorf("failed to load device state: %w", MapGormError(result.Error))
		}
		state = models.DeviceState{
			DeviceUUID: uuid.NewString(),
			Registered: false,
			UpdatedAt:  time.Now().UTC(),
		}
		if err := r.db.WithContext(ctx).Create(&state).Error; err != nil {
			return nil, fmt.Errorf("failed to create device state: %w", MapGormError(err))
		}
	}
	return &state, nil
}

// Update persists changes to the device state row
func (r *DeviceStateRepository) Update(ctx context.Context, state *models.DeviceState) error {
	state.UpdatedAt = time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&models.DeviceState{}).
		Where("device_uuid = ?", state.DeviceUUID).
		Updates(map[string]interface{}{
			"registered":   state.Registered,
			"screen_id":    state.ScreenID,
			"orientation":  state.Orientation,
			"last_pull_at": state.LastPullAt,
			"updated_at":   state.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update device state: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkContentPull records the time of the last successful content pull
func (r *DeviceStateRepository) MarkContentPull(ctx context.Context, deviceUUID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.DeviceState{}).
		Where("device_uuid = ?", deviceUUID).
		Updates(map[string]interface{}{
			"last_pull_at": at.UTC(),
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record content pull: %w", MapGormError(result.Error))
	}
	return nil
}
