package models

import (
	"time"
	"unicode/utf8"
)

const (
	MessageKindText     = "text"
	MessageKindImage    = "image"
	MessageKindDocument = "document"
)

const previewRunes = 100

// Attachment describes a file stored by the blob store. It is produced by
// the media service and carried verbatim on the message.
type Attachment struct {
	URL       string `json:"url,omitempty"`
	StorageID string `json:"storage_id,omitempty"`
	Filename  string `json:"filename,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// Message is one entry in a conversation's append-only log. Only the read
// receipts change after creation.
type Message struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	ConversationID uint          `gorm:"not null;index:idx_messages_conversation_created,priority:1" json:"conversation_id"`
	SenderID       uint          `gorm:"not null" json:"sender_id"`
	Content        string        `json:"content" conform:"trim"`
	Kind           string        `gorm:"not null;default:text" json:"kind"`
	Attachment     *Attachment   `gorm:"embedded;embeddedPrefix:attachment_" json:"attachment,omitempty"`
	CreatedAt      time.Time     `gorm:"index:idx_messages_conversation_created,priority:2" json:"created_at"`
	Reads          []MessageRead `gorm:"foreignKey:MessageID" json:"reads,omitempty"`
}

// MessageRead records the first time a user read a message. Rows are
// insert-only; a timestamp is never cleared or moved earlier.
type MessageRead struct {
	MessageID uint      `gorm:"primaryKey" json:"message_id"`
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	ReadAt    time.Time `gorm:"not null" json:"read_at"`
}

// ReadBy materializes the receipts as reader id -> timestamp.
func (m *Message) ReadBy() map[uint]time.Time {
	readBy := make(map[uint]time.Time, len(m.Reads))
	for _, r := range m.Reads {
		readBy[r.UserID] = r.ReadAt
	}
	return readBy
}

// Preview returns the short summary denormalized onto the conversation.
func (m *Message) Preview() string {
	if m.Content == "" && m.Attachment != nil {
		switch m.Kind {
		case MessageKindImage:
			return "[image]"
		default:
			return "[file] " + m.Attachment.Filename
		}
	}
	if utf8.RuneCountInString(m.Content) <= previewRunes {
		return m.Content
	}
	runes := []rune(m.Content)
	return string(runes[:previewRunes]) + "…"
}

// ValidMessageKind reports whether kind is one of the accepted values.
func ValidMessageKind(kind string) bool {
	switch kind {
	case MessageKindText, MessageKindImage, MessageKindDocument:
		return true
	}
	return false
}
