package main

import (
	"context"
	"log"

	"github.com/rs/zerolog"

	"github.com/fitpair/coachlink/config"
	"github.com/fitpair/coachlink/db"
	"github.com/fitpair/coachlink/realtime"
	"github.com/fitpair/coachlink/server"
	"github.com/fitpair/coachlink/services"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if conf.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	gormDB := db.GetDB(conf)
	userRepo := db.NewUserRepo(gormDB)
	conversationRepo := db.NewConversationRepo(gormDB)
	messageRepo := db.NewMessageRepo(gormDB)
	notificationRepo := db.NewNotificationRepo(gormDB)

	presence := realtime.NewPresenceRegistry()
	hub := realtime.NewHub(presence)

	var push services.PushGateway
	switch conf.PushProvider {
	case "expo":
		push = services.NewExpoPushGateway()
	case "fcm":
		fcm, err := services.NewFCMPushGateway(context.Background(), conf.GoogleApplicationCredentials)
		if err != nil {
			log.Fatalf("error initializing FCM push gateway: %v", err)
		}
		push = fcm
	case "":
		log.Println("no push provider configured, push delivery disabled")
	default:
		log.Fatalf("unknown push provider: %q", conf.PushProvider)
	}

	notificationService := services.NewNotificationService(notificationRepo, userRepo, push, hub)
	chatService := services.NewChatService(conversationRepo, messageRepo, notificationService, hub)

	s3Client, err := services.NewS3Client(context.Background(), conf)
	if err != nil {
		log.Fatalf("error initializing S3 client: %v", err)
	}
	mediaService := services.NewMediaService(s3Client, conf)

	s := &server.Server{
		Config:                 conf,
		UserRepository:         userRepo,
		ConversationRepository: conversationRepo,
		ChatService:            chatService,
		NotificationService:    notificationService,
		MediaService:           mediaService,
		Hub:                    hub,
		Presence:               presence,
	}
	s.Start()
}
