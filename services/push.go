package services

import "context"

// PushGateway delivers a notification to a device that holds no open
// realtime connection. Delivery is best-effort by contract.
type PushGateway interface {
	Send(ctx context.Context, deviceToken, title, body string, data map[string]string) error
}
