package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apiError "github.com/fitpair/coachlink/errors"
	"github.com/fitpair/coachlink/server/response"
	"github.com/fitpair/coachlink/services"
)

// handleUploadAttachment stores a file with the blob store and returns the
// attachment descriptor the client should carry on its message:send event.
func (s *Server) handleUploadAttachment() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := GetUserFromContext(c); err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, apiError.ErrUnauthorized)
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			response.JSON(c, "file is required", http.StatusBadRequest, nil, []string{err.Error()})
			return
		}

		attachment, err := s.MediaService.UploadAttachment(c.Request.Context(), fileHeader)
		if err != nil {
			response.JSON(c, "upload failed", http.StatusInternalServerError, nil, []string{err.Error()})
			return
		}

		response.JSON(c, "", http.StatusOK, gin.H{
			"attachment": attachment,
			"kind":       services.AttachmentKind(attachment.MimeType),
		}, nil)
	}
}
