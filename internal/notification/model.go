package notification

import (
	"time"

	"gorm.io/datatypes"
)

// InAppNotification is the per-user bell entry. Category carries the event type.
type InAppNotification struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	Title     string         `gorm:"size:150;not null" json:"title"`
	Message   string         `gorm:"type:text;not null" json:"message"`
	Category  string         `gorm:"size:50;not null;index" json:"category"`
	Payload   datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`
	IsRead    bool           `gorm:"not null;default:false" json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// FCMDeviceToken belongs to whichever user registered it last.
type FCMDeviceToken struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	DeviceToken string    `gorm:"size:255;not null;uniqueIndex" json:"device_token"`
	DeviceType  string    `gorm:"size:20" json:"device_type"` // android, ios, web
	DeviceName  string    `gorm:"size:100" json:"device_name"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	LastUsedAt  time.Time `json:"last_used_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Message struct {
	UserID   uint
	Title    string
	Body     string
	Category string
	Data     map[string]string
}

type DeviceInput struct {
	DeviceToken string `json:"device_token" binding:"required"`
	DeviceType  string `json:"device_type"`
	DeviceName  string `json:"device_name"`
}

type Page struct {
	Results     []InAppNotification `json:"results"`
	UnreadCount int64               `json:"unread_count"`
}
