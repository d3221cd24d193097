package services

// Broadcaster is the room fan-out primitive the services drive. Implemented
// by realtime.Hub.
type Broadcaster interface {
	ToRoom(room, event string, data interface{}, excludeUser uint) error
	ToUser(userID uint, event string, data interface{}) error
}
