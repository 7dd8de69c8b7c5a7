package db

// Repositories provides access to all database repositories
type Repositories struct {
	Scenes      *SceneRepository
	DeviceState *DeviceStateRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Scenes:      NewSceneRepository(db),
		DeviceState: NewDeviceStateRepository(db),
	}
}
