package services

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/leebenson/conform"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/fitpair/coachlink/db"
	apiError "github.com/fitpair/coachlink/errors"
	"github.com/fitpair/coachlink/models"
	"github.com/fitpair/coachlink/realtime"
)

// ChatService runs the conversational messaging core: the send pipeline,
// read acknowledgement, typing relay and conversation access.
type ChatService interface {
	GetOrCreateDirectConversation(ctx context.Context, userID, otherID uint) (*models.Conversation, *apiError.Error)
	CreateGroupConversation(ctx context.Context, creatorID uint, req *models.CreateGroupConversationRequest) (*models.Conversation, *apiError.Error)
	ListConversations(ctx context.Context, userID uint) ([]models.Conversation, *apiError.Error)
	ListMessages(ctx context.Context, userID, conversationID uint, page, pageSize int) ([]models.Message, int64, *apiError.Error)
	SendMessage(ctx context.Context, sender *models.User, req *models.SendMessageRequest) (*models.Message, *apiError.Error)
	MarkRead(ctx context.Context, userID, conversationID uint) *apiError.Error
	Typing(ctx context.Context, user *models.User, conversationID uint, active bool) *apiError.Error
	AuthorizeParticipant(ctx context.Context, userID, conversationID uint) *apiError.Error
}

type chatService struct {
	conversationRepo db.ConversationRepository
	messageRepo      db.MessageRepository
	notifier         NotificationService
	broadcaster      Broadcaster

	// locks serializes persist -> counter -> broadcast-enqueue per
	// conversation so broadcast order equals persistence order.
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewChatService(conversationRepo db.ConversationRepository, messageRepo db.MessageRepository, notifier NotificationService, broadcaster Broadcaster) ChatService {
	return &chatService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		notifier:         notifier,
		broadcaster:      broadcaster,
		locks:            make(map[uint]*sync.Mutex),
	}
}

func (s *chatService) conversationLock(conversationID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[conversationID] = lock
	}
	return lock
}

func (s *chatService) GetOrCreateDirectConversation(ctx context.Context, userID, otherID uint) (*models.Conversation, *apiError.Error) {
	if otherID == 0 || otherID == userID {
		return nil, apiError.New("invalid conversation partner", http.StatusBadRequest)
	}
	conv, created, err := s.conversationRepo.GetOrCreateDirect(ctx, userID, otherID)
	if err != nil {
		log.Error().Err(err).Msg("could not get or create direct conversation")
		return nil, apiError.ErrInternalServerError
	}
	if created {
		log.Info().Uint("conversation_id", conv.ID).Uint("user_id", userID).Uint("other_id", otherID).Msg("direct conversation created")
	}
	return conv, nil
}

func (s *chatService) CreateGroupConversation(ctx context.Context, creatorID uint, req *models.CreateGroupConversationRequest) (*models.Conversation, *apiError.Error) {
	if err := conform.Strings(req); err != nil {
		return nil, apiError.ErrBadRequest
	}
	ids := append([]uint{creatorID}, req.ParticipantIDs...)
	conv, err := s.conversationRepo.CreateGroup(ctx, req.Name, ids)
	if err != nil {
		log.Error().Err(err).Msg("could not create group conversation")
		return nil, apiError.ErrInternalServerError
	}
	return conv, nil
}

func (s *chatService) ListConversations(ctx context.Context, userID uint) ([]models.Conversation, *apiError.Error) {
	convs, err := s.conversationRepo.ListConversationsForUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("could not list conversations")
		return nil, apiError.ErrInternalServerError
	}
	return convs, nil
}

func (s *chatService) ListMessages(ctx context.Context, userID, conversationID uint, page, pageSize int) ([]models.Message, int64, *apiError.Error) {
	if apiErr := s.AuthorizeParticipant(ctx, userID, conversationID); apiErr != nil {
		return nil, 0, apiErr
	}
	messages, total, err := s.messageRepo.ListMessages(ctx, conversationID, page, pageSize)
	if err != nil {
		log.Error().Err(err).Uint("conversation_id", conversationID).Msg("could not list messages")
		return nil, 0, apiError.ErrInternalServerError
	}
	return messages, total, nil
}

// SendMessage runs the pipeline: authorize, persist, update summary and
// counters, broadcast, then fan out notifications. Failures before the
// broadcast abort this send only; fan-out failures never unwind the
// committed message.
func (s *chatService) SendMessage(ctx context.Context, sender *models.User, req *models.SendMessageRequest) (*models.Message, *apiError.Error) {
	if err := conform.Strings(req); err != nil {
		return nil, apiError.ErrBadRequest
	}
	if req.Kind == "" {
		req.Kind = models.MessageKindText
	}
	if !models.ValidMessageKind(req.Kind) {
		return nil, apiError.New("unknown message kind", http.StatusBadRequest)
	}
	if req.Content == "" && req.Attachment == nil {
		return nil, apiError.New("message is empty", http.StatusBadRequest)
	}

	// Membership is re-checked on every send; it can change between sends.
	conv, apiErr := s.findAuthorized(ctx, sender.ID, req.ConversationID)
	if apiErr != nil {
		return nil, apiErr
	}

	msg, conv, apiErr := s.persistAndBroadcast(ctx, sender.ID, conv.ID, req)
	if apiErr != nil {
		return nil, apiErr
	}

	recipients := make([]uint, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		if p.UserID != sender.ID {
			recipients = append(recipients, p.UserID)
		}
	}
	s.notifier.NotifyNewMessage(ctx, sender, conv, msg, recipients)

	return msg, nil
}

func (s *chatService) persistAndBroadcast(ctx context.Context, senderID, conversationID uint, req *models.SendMessageRequest) (*models.Message, *models.Conversation, *apiError.Error) {
	lock := s.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        req.Content,
		Kind:           req.Kind,
		Attachment:     req.Attachment,
		CreatedAt:      time.Now(),
	}
	if err := s.messageRepo.CreateMessage(ctx, msg); err != nil {
		log.Error().Err(err).Uint("conversation_id", conversationID).Msg("could not persist message")
		return nil, nil, apiError.ErrInternalServerError
	}

	if err := s.conversationRepo.RecordMessage(ctx, conversationID, senderID, msg.Preview(), msg.Kind, msg.CreatedAt); err != nil {
		log.Error().Err(err).Uint("conversation_id", conversationID).Msg("could not update conversation summary")
		return nil, nil, apiError.ErrInternalServerError
	}

	conv, err := s.conversationRepo.FindConversationByID(ctx, conversationID)
	if err != nil {
		log.Error().Err(err).Uint("conversation_id", conversationID).Msg("could not reload conversation")
		return nil, nil, apiError.ErrInternalServerError
	}

	room := realtime.ConversationRoom(conversationID)
	if err := s.broadcaster.ToRoom(room, realtime.EventMessageNew, realtime.MessageNewPayload{
		ConversationID: conversationID,
		Message:        msg,
	}, 0); err != nil {
		log.Error().Err(err).Msg("could not broadcast message")
	}
	if err := s.broadcaster.ToRoom(room, realtime.EventConversationUpdated, realtime.ConversationUpdatedPayload{
		Conversation: conv.Response(),
	}, 0); err != nil {
		log.Error().Err(err).Msg("could not broadcast conversation update")
	}

	return msg, conv, nil
}

// MarkRead backfills read receipts, resets the caller's unread counter and
// emits one receipt event. Idempotent: a second consecutive call changes
// nothing and broadcasts nothing.
func (s *chatService) MarkRead(ctx context.Context, userID, conversationID uint) *apiError.Error {
	if apiErr := s.AuthorizeParticipant(ctx, userID, conversationID); apiErr != nil {
		return apiErr
	}

	lock := s.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()
	marked, err := s.messageRepo.MarkConversationRead(ctx, conversationID, userID, now)
	if err != nil {
		log.Error().Err(err).Uint("conversation_id", conversationID).Msg("could not mark conversation read")
		return apiError.ErrInternalServerError
	}
	if err := s.conversationRepo.ResetUnread(ctx, conversationID, userID, now); err != nil {
		log.Error().Err(err).Uint("conversation_id", conversationID).Msg("could not reset unread counter")
		return apiError.ErrInternalServerError
	}

	if marked > 0 {
		err := s.broadcaster.ToRoom(realtime.ConversationRoom(conversationID), realtime.EventMessageRead, realtime.ReadReceiptPayload{
			ConversationID: conversationID,
			UserID:         userID,
		}, userID)
		if err != nil {
			log.Error().Err(err).Msg("could not broadcast read receipt")
		}
	}
	return nil
}

// Typing relays a start or stop indicator to the room, excluding the
// sender. Nothing is persisted and nothing is acknowledged.
func (s *chatService) Typing(ctx context.Context, user *models.User, conversationID uint, active bool) *apiError.Error {
	if apiErr := s.AuthorizeParticipant(ctx, user.ID, conversationID); apiErr != nil {
		return apiErr
	}

	event := realtime.EventTypingStop
	if active {
		event = realtime.EventTypingStart
	}
	err := s.broadcaster.ToRoom(realtime.ConversationRoom(conversationID), event, realtime.TypingPayload{
		ConversationID: conversationID,
		UserID:         user.ID,
		UserName:       user.Fullname,
	}, user.ID)
	if err != nil {
		log.Error().Err(err).Msg("could not relay typing event")
	}
	return nil
}

func (s *chatService) AuthorizeParticipant(ctx context.Context, userID, conversationID uint) *apiError.Error {
	ok, err := s.conversationRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		log.Error().Err(err).Uint("conversation_id", conversationID).Msg("could not check membership")
		return apiError.ErrInternalServerError
	}
	if !ok {
		return apiError.New("not a participant of this conversation", http.StatusForbidden)
	}
	return nil
}

func (s *chatService) findAuthorized(ctx context.Context, userID, conversationID uint) (*models.Conversation, *apiError.Error) {
	conv, err := s.conversationRepo.FindConversationByID(ctx, conversationID)
	if errors.Is(err, apiError.ErrRecordNotFound) {
		return nil, apiError.New("conversation not found", http.StatusNotFound)
	}
	if err != nil {
		log.Error().Err(err).Uint("conversation_id", conversationID).Msg("could not load conversation")
		return nil, apiError.ErrInternalServerError
	}
	if !conv.HasParticipant(userID) {
		return nil, apiError.New("not a participant of this conversation", http.StatusForbidden)
	}
	return conv, nil
}
