package db

import (
	"context"
	"time"

	"github.com/fitpair/coachlink/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	apiError "github.com/fitpair/coachlink/errors"
)

type ConversationRepository interface {
	// GetOrCreateDirect returns the single direct conversation for the
	// unordered pair, creating it on first contact. The second return
	// value reports whether a new conversation was created.
	GetOrCreateDirect(ctx context.Context, userA, userB uint) (*models.Conversation, bool, error)
	CreateGroup(ctx context.Context, name string, participantIDs []uint) (*models.Conversation, error)
	FindConversationByID(ctx context.Context, id uint) (*models.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID uint) ([]models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error)
	// RecordMessage updates the denormalized summary and increments the
	// unread counter of every participant except the sender, atomically.
	RecordMessage(ctx context.Context, conversationID, senderID uint, preview, kind string, sentAt time.Time) error
	ResetUnread(ctx context.Context, conversationID, userID uint, readAt time.Time) error
}

type conversationRepo struct {
	DB *gorm.DB
}

func NewConversationRepo(db *GormDB) ConversationRepository {
	return &conversationRepo{db.DB}
}

func (r *conversationRepo) GetOrCreateDirect(ctx context.Context, userA, userB uint) (*models.Conversation, bool, error) {
	key := models.DirectParticipantKey(userA, userB)

	conv, err := r.findByParticipantKey(ctx, key)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, apiError.ErrRecordNotFound) {
		return nil, false, err
	}

	fresh := &models.Conversation{
		Kind:           models.ConversationKindDirect,
		ParticipantKey: &key,
		Participants: []models.ConversationParticipant{
			{UserID: userA},
			{UserID: userB},
		},
	}
	if err := r.DB.WithContext(ctx).Create(fresh).Error; err != nil {
		// Lost a creation race: the unique index on participant_key
		// guarantees the winner's row is the one to use.
		conv, ferr := r.findByParticipantKey(ctx, key)
		if ferr == nil {
			return conv, false, nil
		}
		return nil, false, errors.Wrap(err, "could not create direct conversation")
	}

	conv, err = r.FindConversationByID(ctx, fresh.ID)
	if err != nil {
		return nil, false, err
	}
	return conv, true, nil
}

func (r *conversationRepo) findByParticipantKey(ctx context.Context, key string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.DB.WithContext(ctx).
		Preload("Participants.User").
		Where("participant_key = ?", key).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apiError.ErrRecordNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not look up direct conversation")
	}
	return &conv, nil
}

func (r *conversationRepo) CreateGroup(ctx context.Context, name string, participantIDs []uint) (*models.Conversation, error) {
	participants := make([]models.ConversationParticipant, 0, len(participantIDs))
	seen := make(map[uint]bool, len(participantIDs))
	for _, id := range participantIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		participants = append(participants, models.ConversationParticipant{UserID: id})
	}

	conv := &models.Conversation{
		Kind:         models.ConversationKindGroup,
		Name:         name,
		Participants: participants,
	}
	if err := r.DB.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, errors.Wrap(err, "could not create group conversation")
	}
	return r.FindConversationByID(ctx, conv.ID)
}

func (r *conversationRepo) FindConversationByID(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.DB.WithContext(ctx).
		Preload("Participants.User").
		First(&conv, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apiError.ErrRecordNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not find conversation")
	}
	return &conv, nil
}

func (r *conversationRepo) ListConversationsForUser(ctx context.Context, userID uint) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.DB.WithContext(ctx).
		Preload("Participants.User").
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", userID).
		Order("conversations.updated_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, errors.Wrap(err, "could not list conversations")
	}
	return convs, nil
}

func (r *conversationRepo) IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "could not check participation")
	}
	return count > 0, nil
}

func (r *conversationRepo) RecordMessage(ctx context.Context, conversationID, senderID uint, preview, kind string, sentAt time.Time) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Updates(map[string]interface{}{
				"last_message_preview":   preview,
				"last_message_sender_id": senderID,
				"last_message_kind":      kind,
				"last_message_at":        sentAt,
				"updated_at":             sentAt,
			}).Error
		if err != nil {
			return err
		}
		// Atomic increment so concurrent sends never lose counts.
		return tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id <> ?", conversationID, senderID).
			Update("unread_count", gorm.Expr("unread_count + 1")).Error
	})
	return errors.Wrap(err, "could not record message on conversation")
}

func (r *conversationRepo) ResetUnread(ctx context.Context, conversationID, userID uint, readAt time.Time) error {
	err := r.DB.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(map[string]interface{}{
			"unread_count": 0,
			"last_read_at": readAt,
		}).Error
	return errors.Wrap(err, "could not reset unread count")
}
