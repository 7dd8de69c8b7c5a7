package models

import "time"

// DeviceState is the persisted registration and linkage state of this
// device. A single row keyed by DeviceUUID.
type DeviceState struct {
	DeviceUUID  string     `json:"device_uuid" gorm:"type:text;primaryKey;column:device_uuid"`
	Registered  bool       `json:"registered" gorm:"type:integer;not null;default:0;column:registered"`
	ScreenID    string     `json:"screen_id" gorm:"type:text;column:screen_id"`
	Orientation string     `json:"orientation" gorm:"type:text;column:orientation"`
	LastPullAt  *time.Time `json:"last_pull_at,omitempty" gorm:"type:datetime;column:last_pull_at"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

// DeviceInfo is the backend's view of this device, fetched live when the
// network is up or served from the local cache when it is not.
type DeviceInfo struct {
	DeviceUUID  string `json:"device_uuid"`
	ScreenID    string `json:"screen_id"`
	Orientation string `json:"orientation"`
	Name        string `json:"name"`
}

// RotationAngle maps the device orientation to a video rotation in degrees
func (i *DeviceInfo) RotationAngle() int {
	switch i.Orientation {
	case "PORTRAIT":
		return 90
	case "LANDSCAPE_FLIPPED":
		return 180
	case "PORTRAIT_FLIPPED":
		return 270
	default:
		return 0
	}
}
