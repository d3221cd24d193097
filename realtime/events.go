package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/fitpair/coachlink/models"
)

// Event names carried on the realtime channel.
const (
	EventMessageSend         = "message:send"
	EventMessageNew          = "message:new"
	EventConversationUpdated = "conversation:updated"
	EventTypingStart         = "typing:start"
	EventTypingStop          = "typing:stop"
	EventMessageRead         = "message:read"
	EventConversationJoin    = "conversation:join"
	EventConversationLeave   = "conversation:leave"
	EventNotificationNew     = "notification:new"
	EventError               = "error"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeEvent marshals an outbound frame.
func EncodeEvent(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// ConversationRoom names the broadcast group shared by a conversation's
// participants.
func ConversationRoom(conversationID uint) string {
	return fmt.Sprintf("conversation:%d", conversationID)
}

// UserRoom names a user's private room, one per user across all devices.
func UserRoom(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// ConversationRef is the inbound payload of typing, read and join/leave
// events.
type ConversationRef struct {
	ConversationID uint `json:"conversation_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type MessageNewPayload struct {
	ConversationID uint            `json:"conversation_id"`
	Message        *models.Message `json:"message"`
}

type ConversationUpdatedPayload struct {
	Conversation *models.ConversationResponse `json:"conversation"`
}

type TypingPayload struct {
	ConversationID uint   `json:"conversation_id"`
	UserID         uint   `json:"user_id"`
	UserName       string `json:"user_name"`
}

type ReadReceiptPayload struct {
	ConversationID uint `json:"conversation_id"`
	UserID         uint `json:"user_id"`
}

type NotificationPayload struct {
	Notification *models.Notification `json:"notification"`
}
