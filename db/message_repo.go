package db

import (
	"context"
	"time"

	"github.com/fitpair/coachlink/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type MessageRepository interface {
	// CreateMessage persists the message and pre-seeds the sender's read
	// receipt in the same transaction: a sender has implicitly read their
	// own message.
	CreateMessage(ctx context.Context, msg *models.Message) error
	// ListMessages returns one page of the conversation's log, newest
	// first, along with the total count.
	ListMessages(ctx context.Context, conversationID uint, page, pageSize int) ([]models.Message, int64, error)
	// MarkConversationRead inserts a read receipt for every message in the
	// conversation authored by someone else and not yet read by the user.
	// Existing receipts are untouched, so timestamps are monotonic and the
	// call is idempotent. Returns the number of receipts inserted.
	MarkConversationRead(ctx context.Context, conversationID, userID uint, readAt time.Time) (int64, error)
	// CountUnread counts messages authored by others with no receipt for
	// the user.
	CountUnread(ctx context.Context, conversationID, userID uint) (int64, error)
}

type messageRepo struct {
	DB *gorm.DB
}

func NewMessageRepo(db *GormDB) MessageRepository {
	return &messageRepo{db.DB}
}

func (r *messageRepo) CreateMessage(ctx context.Context, msg *models.Message) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		read := models.MessageRead{
			MessageID: msg.ID,
			UserID:    msg.SenderID,
			ReadAt:    msg.CreatedAt,
		}
		if err := tx.Create(&read).Error; err != nil {
			return err
		}
		msg.Reads = append(msg.Reads, read)
		return nil
	})
	return errors.Wrap(err, "could not create message")
}

func (r *messageRepo) ListMessages(ctx context.Context, conversationID uint, page, pageSize int) ([]models.Message, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	err := r.DB.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&total).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "could not count messages")
	}

	var messages []models.Message
	err = r.DB.WithContext(ctx).
		Preload("Reads").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&messages).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "could not list messages")
	}
	return messages, total, nil
}

func (r *messageRepo) MarkConversationRead(ctx context.Context, conversationID, userID uint, readAt time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Exec(`
		INSERT INTO message_reads (message_id, user_id, read_at)
		SELECT m.id, ?, ?
		FROM messages m
		WHERE m.conversation_id = ? AND m.sender_id <> ?
		ON CONFLICT (message_id, user_id) DO NOTHING`,
		userID, readAt, conversationID, userID)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "could not mark conversation read")
	}
	return res.RowsAffected, nil
}

func (r *messageRepo) CountUnread(ctx context.Context, conversationID, userID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ?", conversationID, userID).
		Where("NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = messages.id AND mr.user_id = ?)", userID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "could not count unread messages")
	}
	return count, nil
}
