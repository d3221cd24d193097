package models

import (
	"fmt"
	"time"
)

const (
	ConversationKindDirect = "direct"
	ConversationKindGroup  = "group"
)

// Conversation groups participants and carries a denormalized summary of
// their exchange. Direct conversations are unique per unordered participant
// pair, enforced by the ParticipantKey unique index.
type Conversation struct {
	Model
	Kind string `gorm:"not null;default:direct" json:"kind"`
	Name string `json:"name,omitempty" conform:"trim"`

	// ParticipantKey is "<minID>:<maxID>" for direct conversations and NULL
	// for groups, so the unique index only binds direct pairs.
	ParticipantKey *string `gorm:"uniqueIndex" json:"-"`

	LastMessagePreview  string     `json:"-"`
	LastMessageSenderID uint       `json:"-"`
	LastMessageKind     string     `json:"-"`
	LastMessageAt       *time.Time `json:"-"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants"`
}

// ConversationParticipant is one membership row, carrying the per-user
// unread counter.
type ConversationParticipant struct {
	ConversationID uint       `gorm:"primaryKey" json:"conversation_id"`
	UserID         uint       `gorm:"primaryKey" json:"user_id"`
	UnreadCount    int        `gorm:"not null;default:0" json:"unread_count"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
	User           *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// DirectParticipantKey returns the canonical lookup key for an unordered
// participant pair.
func DirectParticipantKey(a, b uint) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

func (c *Conversation) HasParticipant(userID uint) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (c *Conversation) ParticipantIDs() []uint {
	ids := make([]uint, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// UnreadCounts materializes the per-participant counters as a map keyed by
// user id. Wire use only.
func (c *Conversation) UnreadCounts() map[uint]int {
	counts := make(map[uint]int, len(c.Participants))
	for _, p := range c.Participants {
		counts[p.UserID] = p.UnreadCount
	}
	return counts
}

// LastMessageSummary is the denormalized preview broadcast with
// conversation:updated events.
type LastMessageSummary struct {
	Preview  string     `json:"preview"`
	SenderID uint       `json:"sender_id"`
	SentAt   *time.Time `json:"sent_at,omitempty"`
	Kind     string     `json:"kind,omitempty"`
}

// ConversationResponse is the wire form of a conversation.
type ConversationResponse struct {
	ID           uint                `json:"id"`
	Kind         string              `json:"kind"`
	Name         string              `json:"name,omitempty"`
	Participants []UserBrief         `json:"participants"`
	LastMessage  *LastMessageSummary `json:"last_message,omitempty"`
	UnreadCounts map[uint]int        `json:"unread_counts"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func (c *Conversation) Response() *ConversationResponse {
	resp := &ConversationResponse{
		ID:           c.ID,
		Kind:         c.Kind,
		Name:         c.Name,
		Participants: make([]UserBrief, 0, len(c.Participants)),
		UnreadCounts: c.UnreadCounts(),
		UpdatedAt:    c.UpdatedAt,
	}
	for _, p := range c.Participants {
		if p.User != nil {
			resp.Participants = append(resp.Participants, p.User.Brief())
		} else {
			resp.Participants = append(resp.Participants, UserBrief{ID: p.UserID})
		}
	}
	if c.LastMessageAt != nil {
		resp.LastMessage = &LastMessageSummary{
			Preview:  c.LastMessagePreview,
			SenderID: c.LastMessageSenderID,
			SentAt:   c.LastMessageAt,
			Kind:     c.LastMessageKind,
		}
	}
	return resp
}
