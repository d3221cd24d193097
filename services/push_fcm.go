package services

import (
	"context"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"
)

// FCMPushGateway delivers through Firebase Cloud Messaging.
type FCMPushGateway struct {
	client *messaging.Client
}

func NewFCMPushGateway(ctx context.Context, credentialsFile string) (*FCMPushGateway, error) {
	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, err
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}
	return &FCMPushGateway{client: client}, nil
}

func (g *FCMPushGateway) Send(ctx context.Context, deviceToken, title, body string, data map[string]string) error {
	message := &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}
	_, err := g.client.Send(ctx, message)
	return err
}
