package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	apiError "github.com/fitpair/coachlink/errors"
	"github.com/fitpair/coachlink/models"
	"github.com/fitpair/coachlink/realtime"
	"github.com/fitpair/coachlink/services/jwt"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWS is the realtime gateway entry point. The credential is verified
// before the upgrade: a connection that fails authentication never reaches
// event routing.
func (s *Server) handleWS() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = getTokenFromHeader(c)
		}
		if token == "" {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, apiError.ErrUnauthorized)
			return
		}

		claims, err := jwt.ValidateAndGetClaims(token, s.Config.JWTSecret)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, apiError.ErrUnauthorized)
			return
		}
		userID, err := jwt.UserIDFromClaims(claims)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, apiError.ErrUnauthorized)
			return
		}
		user, err := s.UserRepository.FindUserByID(c.Request.Context(), userID)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, apiError.ErrUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Error().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := realtime.NewClient(s.Hub, conn, user)
		s.Hub.Register(client)

		// Private room for direct delivery, then one room per conversation
		// the user participates in right now. Conversations created later
		// are reachable through conversation:join.
		s.Hub.JoinRoom(client, realtime.UserRoom(user.ID))
		convs, err := s.ConversationRepository.ListConversationsForUser(c.Request.Context(), user.ID)
		if err != nil {
			log.Error().Err(err).Uint("user_id", user.ID).Msg("could not join conversation rooms")
		} else {
			for i := range convs {
				s.Hub.JoinRoom(client, realtime.ConversationRoom(convs[i].ID))
			}
		}

		go client.WritePump()
		go client.ReadPump(s.routeEvent)
	}
}

// routeEvent dispatches one inbound frame. Every failure is scoped to the
// originating connection; the room never sees another client's errors.
func (s *Server) routeEvent(client *realtime.Client, raw []byte) {
	ctx := context.Background()

	var env realtime.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		client.SendError("invalid event frame")
		return
	}

	switch env.Event {
	case realtime.EventMessageSend:
		var req models.SendMessageRequest
		if err := json.Unmarshal(env.Data, &req); err != nil || req.ConversationID == 0 {
			client.SendError("invalid message:send payload")
			return
		}
		sender, err := s.UserRepository.FindUserByID(ctx, client.UserID)
		if err != nil {
			client.SendError("could not resolve sender")
			return
		}
		if _, apiErr := s.ChatService.SendMessage(ctx, sender, &req); apiErr != nil {
			client.SendError(apiErr.Message)
		}

	case realtime.EventTypingStart, realtime.EventTypingStop:
		ref, ok := decodeConversationRef(client, env.Data)
		if !ok {
			return
		}
		user := &models.User{Model: models.Model{ID: client.UserID}, Fullname: client.UserName}
		if apiErr := s.ChatService.Typing(ctx, user, ref.ConversationID, env.Event == realtime.EventTypingStart); apiErr != nil {
			client.SendError(apiErr.Message)
		}

	case realtime.EventMessageRead:
		ref, ok := decodeConversationRef(client, env.Data)
		if !ok {
			return
		}
		if apiErr := s.ChatService.MarkRead(ctx, client.UserID, ref.ConversationID); apiErr != nil {
			client.SendError(apiErr.Message)
		}

	case realtime.EventConversationJoin:
		ref, ok := decodeConversationRef(client, env.Data)
		if !ok {
			return
		}
		if apiErr := s.ChatService.AuthorizeParticipant(ctx, client.UserID, ref.ConversationID); apiErr != nil {
			client.SendError(apiErr.Message)
			return
		}
		s.Hub.JoinRoom(client, realtime.ConversationRoom(ref.ConversationID))

	case realtime.EventConversationLeave:
		ref, ok := decodeConversationRef(client, env.Data)
		if !ok {
			return
		}
		s.Hub.LeaveRoom(client, realtime.ConversationRoom(ref.ConversationID))

	default:
		client.SendError("unknown event: " + env.Event)
	}
}

func decodeConversationRef(client *realtime.Client, data json.RawMessage) (realtime.ConversationRef, bool) {
	var ref realtime.ConversationRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.ConversationID == 0 {
		client.SendError("invalid payload: conversation_id is required")
		return ref, false
	}
	return ref, true
}
