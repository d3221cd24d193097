package models

const NotificationCategoryMessage = "message"

// Notification is the durable record produced by the fan-out bridge. The
// messaging core creates it once and never mutates it; the read flag is
// owned by the notification endpoints.
type Notification struct {
	Model
	UserID   uint   `gorm:"not null;index" json:"user_id"`
	SenderID uint   `json:"sender_id"`
	Category string `gorm:"not null;default:message" json:"category"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	DeepLink string `json:"deep_link,omitempty"`
	IsRead   bool   `gorm:"not null;default:false" json:"is_read"`
}
