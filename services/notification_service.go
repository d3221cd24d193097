package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fitpair/coachlink/db"
	apiError "github.com/fitpair/coachlink/errors"
	"github.com/fitpair/coachlink/models"
	"github.com/fitpair/coachlink/realtime"
)

// NotificationService is the fan-out bridge: it converts a messaging event
// into durable notification records and requests external push delivery.
// Everything here is best-effort; a committed message is never unwound.
type NotificationService interface {
	NotifyNewMessage(ctx context.Context, sender *models.User, conv *models.Conversation, msg *models.Message, recipientIDs []uint)
	ListNotifications(ctx context.Context, userID uint, limit int) ([]models.Notification, *apiError.Error)
	MarkNotificationRead(ctx context.Context, id, userID uint) *apiError.Error
}

type notificationService struct {
	notificationRepo db.NotificationRepository
	userRepo         db.UserRepository
	push             PushGateway
	broadcaster      Broadcaster
}

// NewNotificationService wires the bridge. push may be nil when no push
// provider is configured.
func NewNotificationService(notificationRepo db.NotificationRepository, userRepo db.UserRepository, push PushGateway, broadcaster Broadcaster) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		push:             push,
		broadcaster:      broadcaster,
	}
}

func (s *notificationService) NotifyNewMessage(ctx context.Context, sender *models.User, conv *models.Conversation, msg *models.Message, recipientIDs []uint) {
	title := sender.Fullname
	if conv.Kind == models.ConversationKindGroup && conv.Name != "" {
		title = fmt.Sprintf("%s · %s", sender.Fullname, conv.Name)
	}
	body := msg.Preview()
	deepLink := fmt.Sprintf("/conversations/%d", conv.ID)

	// Failures are isolated per recipient.
	for _, recipientID := range recipientIDs {
		n := &models.Notification{
			UserID:   recipientID,
			SenderID: sender.ID,
			Category: models.NotificationCategoryMessage,
			Title:    title,
			Body:     body,
			DeepLink: deepLink,
		}
		if err := s.notificationRepo.CreateNotification(ctx, n); err != nil {
			log.Error().Err(err).Uint("recipient_id", recipientID).Msg("could not create notification")
			continue
		}

		if err := s.broadcaster.ToUser(recipientID, realtime.EventNotificationNew, realtime.NotificationPayload{Notification: n}); err != nil {
			log.Error().Err(err).Uint("recipient_id", recipientID).Msg("could not emit notification event")
		}

		s.pushToUser(ctx, recipientID, title, body, map[string]string{
			"category":        models.NotificationCategoryMessage,
			"conversation_id": fmt.Sprintf("%d", conv.ID),
		})
	}
}

func (s *notificationService) pushToUser(ctx context.Context, userID uint, title, body string, data map[string]string) {
	if s.push == nil {
		return
	}
	user, err := s.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Uint("recipient_id", userID).Msg("could not load recipient for push")
		return
	}
	if user.PushToken == "" {
		return
	}
	if err := s.push.Send(ctx, user.PushToken, title, body, data); err != nil {
		log.Error().Err(err).Uint("recipient_id", userID).Msg("push delivery failed")
	}
}

func (s *notificationService) ListNotifications(ctx context.Context, userID uint, limit int) ([]models.Notification, *apiError.Error) {
	notifications, err := s.notificationRepo.ListNotificationsForUser(ctx, userID, limit)
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("could not list notifications")
		return nil, apiError.ErrInternalServerError
	}
	return notifications, nil
}

func (s *notificationService) MarkNotificationRead(ctx context.Context, id, userID uint) *apiError.Error {
	err := s.notificationRepo.MarkNotificationRead(ctx, id, userID)
	if err == apiError.ErrRecordNotFound {
		return apiError.ErrNotFound
	}
	if err != nil {
		log.Error().Err(err).Uint("notification_id", id).Msg("could not mark notification read")
		return apiError.ErrInternalServerError
	}
	return nil
}
