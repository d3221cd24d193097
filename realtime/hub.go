package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub routes frames between rooms and connections. A single Run goroutine
// consumes the register/unregister/broadcast channels, so frames enqueued
// for one room are delivered in enqueue order.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomFrame

	presence *PresenceRegistry
}

type roomFrame struct {
	room        string
	frame       []byte
	excludeUser uint
}

func NewHub(presence *PresenceRegistry) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomFrame, 256),
		presence:   presence,
	}
}

// Run owns all membership transitions. It exits when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.presence.Register(client.UserID, client.ID)
			log.Debug().Str("conn_id", client.ID).Uint("user_id", client.UserID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			_, known := h.clients[client.ID]
			if known {
				for room, members := range h.rooms {
					delete(members, client.ID)
					if len(members) == 0 {
						delete(h.rooms, room)
					}
				}
				delete(h.clients, client.ID)
			}
			h.mu.Unlock()
			// Membership check above makes a racing double-close a no-op.
			if known {
				client.closeSend()
				h.presence.Unregister(client.UserID, client.ID)
				log.Debug().Str("conn_id", client.ID).Uint("user_id", client.UserID).Msg("client unregistered")
			}

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.rooms[msg.room] {
				if msg.excludeUser != 0 && client.UserID == msg.excludeUser {
					continue
				}
				client.enqueue(msg.frame)
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) JoinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[client.ID] = client
}

func (h *Hub) LeaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// ToRoom broadcasts one event to every connection in the room, skipping
// every connection of excludeUser when non-zero. Delivery per connection is
// fire-and-forget with drop-on-overflow.
func (h *Hub) ToRoom(room, event string, data interface{}, excludeUser uint) error {
	frame, err := EncodeEvent(event, data)
	if err != nil {
		return err
	}
	h.broadcast <- &roomFrame{room: room, frame: frame, excludeUser: excludeUser}
	return nil
}

// ToUser delivers an event to every open connection of one user.
func (h *Hub) ToUser(userID uint, event string, data interface{}) error {
	return h.ToRoom(UserRoom(userID), event, data, 0)
}

// RoomSize reports how many connections a room currently holds.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
