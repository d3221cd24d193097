package models

// SendMessageRequest is the payload of a message:send event.
type SendMessageRequest struct {
	ConversationID uint        `json:"conversation_id" binding:"required"`
	Content        string      `json:"content" conform:"trim"`
	Kind           string      `json:"kind"`
	Attachment     *Attachment `json:"attachment,omitempty"`
}

type CreateDirectConversationRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

type CreateGroupConversationRequest struct {
	Name           string `json:"name" binding:"required,min=2" conform:"trim"`
	ParticipantIDs []uint `json:"participant_ids" binding:"required,min=1"`
}
