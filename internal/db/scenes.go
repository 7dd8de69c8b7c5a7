package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/lumenplay/agent/internal/models"
)

// SceneRepository handles database operations for the cached scene manifest
type SceneRepository struct {
	db *DB
}

// NewSceneRepository creates a new scene repository
func NewSceneRepository(db *DB) *SceneRepository {
	return &SceneRepository{db: db}
}

// List returns all cached scenes in playback order
func (r *SceneRepository) List(ctx context.Context) ([]*models.Scene, error) {
	var scenes []*models.Scene
	result := r.db.WithContext(ctx).Order("position ASC").Find(&scenes)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", MapGormError(result.Error))
	}
	return scenes, nil
}

// ReplaceAll swaps the cached manifest for a new scene list in one
// transaction, mirroring the atomic playlist replacement in memory
func (r *SceneRepository) ReplaceAll(ctx context.Context, scenes []*models.Scene) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Scene{}).Error; err != nil {
			return fmt.Errorf("failed to clear scenes: %w", err)
		}
		if len(scenes) == 0 {
			return nil
		}
		if err := tx.Create(scenes).Error; err != nil {
			return fmt.Errorf("failed to insert scenes: %w", err)
		}
		return nil
	})
	if err != nil {
		return MapGormError(err)
	}
	return nil
}
