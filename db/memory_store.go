package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fitpair/coachlink/models"

	apiError "github.com/fitpair/coachlink/errors"
)

// MemoryStore is an in-memory implementation of every repository interface.
// It backs the service and handler tests and mirrors the semantics of the
// gorm implementations: canonical direct-pair lookup, atomic unread
// increments and insert-only read receipts.
type MemoryStore struct {
	mu sync.Mutex

	users         map[uint]*models.User
	conversations map[uint]*models.Conversation
	directIndex   map[string]uint
	messages      map[uint]*models.Message
	convMessages  map[uint][]uint
	reads         map[uint]map[uint]time.Time
	notifications map[uint]*models.Notification

	nextUserID, nextConvID, nextMsgID, nextNotifID uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[uint]*models.User),
		conversations: make(map[uint]*models.Conversation),
		directIndex:   make(map[string]uint),
		messages:      make(map[uint]*models.Message),
		convMessages:  make(map[uint][]uint),
		reads:         make(map[uint]map[uint]time.Time),
		notifications: make(map[uint]*models.Notification),
	}
}

var (
	_ UserRepository         = (*MemoryStore)(nil)
	_ ConversationRepository = (*MemoryStore)(nil)
	_ MessageRepository      = (*MemoryStore)(nil)
	_ NotificationRepository = (*MemoryStore)(nil)
)

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextUserID++
	user.ID = s.nextUserID
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	clone := *user
	s.users[user.ID] = &clone
	return user, nil
}

func (s *MemoryStore) FindUserByID(_ context.Context, id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, apiError.ErrRecordNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *MemoryStore) FindUsersByIDs(_ context.Context, ids []uint) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			users = append(users, *u)
		}
	}
	return users, nil
}

func (s *MemoryStore) UpdatePushToken(_ context.Context, userID uint, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return apiError.ErrRecordNotFound
	}
	user.PushToken = token
	return nil
}

func (s *MemoryStore) GetOrCreateDirect(_ context.Context, userA, userB uint) (*models.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.DirectParticipantKey(userA, userB)
	if id, ok := s.directIndex[key]; ok {
		return s.cloneConversation(id), false, nil
	}

	s.nextConvID++
	now := time.Now()
	conv := &models.Conversation{
		Model:          models.Model{ID: s.nextConvID, CreatedAt: now, UpdatedAt: now},
		Kind:           models.ConversationKindDirect,
		ParticipantKey: &key,
		Participants: []models.ConversationParticipant{
			{ConversationID: s.nextConvID, UserID: userA},
			{ConversationID: s.nextConvID, UserID: userB},
		},
	}
	s.conversations[conv.ID] = conv
	s.directIndex[key] = conv.ID
	return s.cloneConversation(conv.ID), true, nil
}

func (s *MemoryStore) CreateGroup(_ context.Context, name string, participantIDs []uint) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextConvID++
	now := time.Now()
	conv := &models.Conversation{
		Model: models.Model{ID: s.nextConvID, CreatedAt: now, UpdatedAt: now},
		Kind:  models.ConversationKindGroup,
		Name:  name,
	}
	seen := make(map[uint]bool, len(participantIDs))
	for _, id := range participantIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		conv.Participants = append(conv.Participants, models.ConversationParticipant{
			ConversationID: conv.ID,
			UserID:         id,
		})
	}
	s.conversations[conv.ID] = conv
	return s.cloneConversation(conv.ID), nil
}

func (s *MemoryStore) FindConversationByID(_ context.Context, id uint) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return nil, apiError.ErrRecordNotFound
	}
	return s.cloneConversation(id), nil
}

func (s *MemoryStore) ListConversationsForUser(_ context.Context, userID uint) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var convs []models.Conversation
	for id, conv := range s.conversations {
		for _, p := range conv.Participants {
			if p.UserID == userID {
				convs = append(convs, *s.cloneConversation(id))
				break
			}
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

func (s *MemoryStore) IsParticipant(_ context.Context, conversationID, userID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return false, nil
	}
	for _, p := range conv.Participants {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) RecordMessage(_ context.Context, conversationID, senderID uint, preview, kind string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return apiError.ErrRecordNotFound
	}
	conv.LastMessagePreview = preview
	conv.LastMessageSenderID = senderID
	conv.LastMessageKind = kind
	at := sentAt
	conv.LastMessageAt = &at
	conv.UpdatedAt = sentAt
	for i := range conv.Participants {
		if conv.Participants[i].UserID != senderID {
			conv.Participants[i].UnreadCount++
		}
	}
	return nil
}

func (s *MemoryStore) ResetUnread(_ context.Context, conversationID, userID uint, readAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return apiError.ErrRecordNotFound
	}
	for i := range conv.Participants {
		if conv.Participants[i].UserID == userID {
			conv.Participants[i].UnreadCount = 0
			at := readAt
			conv.Participants[i].LastReadAt = &at
		}
	}
	return nil
}

func (s *MemoryStore) CreateMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMsgID++
	msg.ID = s.nextMsgID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	clone := *msg
	s.messages[msg.ID] = &clone
	s.convMessages[msg.ConversationID] = append(s.convMessages[msg.ConversationID], msg.ID)
	s.reads[msg.ID] = map[uint]time.Time{msg.SenderID: msg.CreatedAt}
	msg.Reads = append(msg.Reads, models.MessageRead{
		MessageID: msg.ID,
		UserID:    msg.SenderID,
		ReadAt:    msg.CreatedAt,
	})
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, conversationID uint, page, pageSize int) ([]models.Message, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	ids := s.convMessages[conversationID]
	total := int64(len(ids))

	// Newest first.
	start := len(ids) - page*pageSize
	end := len(ids) - (page-1)*pageSize
	if end < 0 {
		end = 0
	}
	if start < 0 {
		start = 0
	}

	messages := make([]models.Message, 0, end-start)
	for i := end - 1; i >= start; i-- {
		messages = append(messages, *s.cloneMessage(ids[i]))
	}
	return messages, total, nil
}

func (s *MemoryStore) MarkConversationRead(_ context.Context, conversationID, userID uint, readAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var inserted int64
	for _, id := range s.convMessages[conversationID] {
		msg := s.messages[id]
		if msg.SenderID == userID {
			continue
		}
		if _, ok := s.reads[id][userID]; ok {
			continue
		}
		s.reads[id][userID] = readAt
		inserted++
	}
	return inserted, nil
}

func (s *MemoryStore) CountUnread(_ context.Context, conversationID, userID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, id := range s.convMessages[conversationID] {
		msg := s.messages[id]
		if msg.SenderID == userID {
			continue
		}
		if _, ok := s.reads[id][userID]; !ok {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextNotifID++
	n.ID = s.nextNotifID
	now := time.Now()
	n.CreatedAt, n.UpdatedAt = now, now
	clone := *n
	s.notifications[n.ID] = &clone
	return nil
}

func (s *MemoryStore) ListNotificationsForUser(_ context.Context, userID uint, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit < 1 || limit > 100 {
		limit = 50
	}
	var notifications []models.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			notifications = append(notifications, *n)
		}
	}
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].ID > notifications[j].ID
	})
	if len(notifications) > limit {
		notifications = notifications[:limit]
	}
	return notifications, nil
}

func (s *MemoryStore) MarkNotificationRead(_ context.Context, id, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return apiError.ErrRecordNotFound
	}
	n.IsRead = true
	return nil
}

func (s *MemoryStore) CountUnreadNotifications(_ context.Context, userID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) cloneConversation(id uint) *models.Conversation {
	conv := s.conversations[id]
	clone := *conv
	clone.Participants = make([]models.ConversationParticipant, len(conv.Participants))
	copy(clone.Participants, conv.Participants)
	for i := range clone.Participants {
		if user, ok := s.users[clone.Participants[i].UserID]; ok {
			u := *user
			clone.Participants[i].User = &u
		}
	}
	return &clone
}

func (s *MemoryStore) cloneMessage(id uint) *models.Message {
	msg := s.messages[id]
	clone := *msg
	clone.Reads = make([]models.MessageRead, 0, len(s.reads[id]))
	for userID, readAt := range s.reads[id] {
		clone.Reads = append(clone.Reads, models.MessageRead{
			MessageID: id,
			UserID:    userID,
			ReadAt:    readAt,
		})
	}
	return &clone
}
