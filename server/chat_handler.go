package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apiError "github.com/fitpair/coachlink/errors"
	"github.com/fitpair/coachlink/models"
	"github.com/fitpair/coachlink/server/response"
)

const (
	DefaultPageSize = 20
	DefaultPage     = 1
)

func (s *Server) handleCreateDirectConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, apiError.ErrUnauthorized)
			return
		}
		var req models.CreateDirectConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "invalid request body", http.StatusBadRequest, nil, []string{err.Error()})
			return
		}

		conv, apiErr := s.ChatService.GetOrCreateDirectConversation(c.Request.Context(), user.ID, req.UserID)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, []string{apiErr.Message})
			return
		}
		response.JSON(c, "", http.StatusOK, conv.Response(), nil)
	}
}

func (s *Server) handleCreateGroupConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, apiError.ErrUnauthorized)
			return
		}
		var req models.CreateGroupConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "invalid request body", http.StatusBadRequest, nil, []string{err.Error()})
			return
		}

		conv, apiErr := s.ChatService.CreateGroupConversation(c.Request.Context(), user.ID, &req)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, []string{apiErr.Message})
			return
		}
		response.JSON(c, "conversation created", http.StatusCreated, conv.Response(), nil)
	}
}

func (s *Server) handleListConversations() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, apiError.ErrUnauthorized)
			return
		}

		convs, apiErr := s.ChatService.ListConversations(c.Request.Context(), user.ID)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, []string{apiErr.Message})
			return
		}
		resp := make([]*models.ConversationResponse, 0, len(convs))
		for i := range convs {
			resp = append(resp, convs[i].Response())
		}
		response.JSON(c, "", http.StatusOK, resp, nil)
	}
}

func (s *Server) handleListMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, apiError.ErrUnauthorized)
			return
		}
		conversationID, ok := uintParam(c, "id")
		if !ok {
			response.JSON(c, "invalid conversation id", http.StatusBadRequest, nil, nil)
			return
		}

		page := intQuery(c, "page", DefaultPage)
		pageSize := intQuery(c, "page_size", DefaultPageSize)

		messages, total, apiErr := s.ChatService.ListMessages(c.Request.Context(), user.ID, conversationID, page, pageSize)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, []string{apiErr.Message})
			return
		}
		response.JSON(c, "", http.StatusOK, gin.H{
			"messages":  messages,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		}, nil)
	}
}

func (s *Server) handleMarkConversationRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, apiError.ErrUnauthorized)
			return
		}
		conversationID, ok := uintParam(c, "id")
		if !ok {
			response.JSON(c, "invalid conversation id", http.StatusBadRequest, nil, nil)
			return
		}

		if apiErr := s.ChatService.MarkRead(c.Request.Context(), user.ID, conversationID); apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, []string{apiErr.Message})
			return
		}
		response.JSON(c, "conversation marked read", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleGetOnlineUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.JSON(c, "", http.StatusOK, gin.H{"online": s.Presence.ListOnline()}, nil)
	}
}

func (s *Server) handleUpdatePushToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, apiError.ErrUnauthorized)
			return
		}
		var req struct {
			PushToken string `json:"push_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "invalid request body", http.StatusBadRequest, nil, []string{err.Error()})
			return
		}
		if err := s.UserRepository.UpdatePushToken(c.Request.Context(), user.ID, req.PushToken); err != nil {
			response.JSON(c, "", http.StatusInternalServerError, nil, []string{"could not update push token"})
			return
		}
		response.JSON(c, "push token updated", http.StatusOK, nil, nil)
	}
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

func intQuery(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
