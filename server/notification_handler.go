package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apiError "github.com/fitpair/coachlink/errors"
	"github.com/fitpair/coachlink/server/response"
)

func (s *Server) handleListNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, apiError.ErrUnauthorized)
			return
		}

		limit := intQuery(c, "limit", 50)
		notifications, apiErr := s.NotificationService.ListNotifications(c.Request.Context(), user.ID, limit)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, []string{apiErr.Message})
			return
		}
		response.JSON(c, "", http.StatusOK, notifications, nil)
	}
}

func (s *Server) handleMarkNotificationRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, apiError.ErrUnauthorized)
			return
		}
		id, ok := uintParam(c, "id")
		if !ok {
			response.JSON(c, "invalid notification id", http.StatusBadRequest, nil, nil)
			return
		}

		if apiErr := s.NotificationService.MarkNotificationRead(c.Request.Context(), id, user.ID); apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, []string{apiErr.Message})
			return
		}
		response.JSON(c, "notification marked read", http.StatusOK, nil, nil)
	}
}
