package services

import (
	"context"
	"fmt"
	"strings"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
)

// ExpoPushGateway delivers through Expo's push service.
type ExpoPushGateway struct {
	client *expo.PushClient
}

func NewExpoPushGateway() *ExpoPushGateway {
	return &ExpoPushGateway{
		client: expo.NewPushClient(nil),
	}
}

func isValidExpoPushToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken")
}

func (g *ExpoPushGateway) Send(_ context.Context, deviceToken, title, body string, data map[string]string) error {
	if !isValidExpoPushToken(deviceToken) {
		return fmt.Errorf("invalid Expo push token")
	}

	message := &expo.PushMessage{
		To:       []expo.ExponentPushToken{expo.ExponentPushToken(deviceToken)},
		Sound:    "default",
		Title:    title,
		Body:     body,
		Data:     data,
		Priority: expo.DefaultPriority,
	}

	response, err := g.client.Publish(message)
	if err != nil {
		return err
	}
	return response.ValidateResponse()
}
