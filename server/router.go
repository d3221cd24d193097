package server

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/fitpair/coachlink/server/response"
)

func (s *Server) setupRouter() *gin.Engine {
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "test" {
		r := gin.New()
		s.defineRoutes(r)
		return r
	}

	r := gin.New()
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.MaxMultipartMemory = 32 << 20
	s.defineRoutes(r)

	return r
}

func (s *Server) defineRoutes(router *gin.Engine) {
	apirouter := router.Group("/api/v1")
	apirouter.GET("/healthz", func(c *gin.Context) {
		response.JSON(c, "ok", http.StatusOK, nil, nil)
	})

	// The websocket gateway authenticates the credential itself, before
	// upgrading.
	apirouter.GET("/ws", s.handleWS())

	authorized := apirouter.Group("/")
	authorized.Use(s.Authorize())
	authorized.GET("/conversations", s.handleListConversations())
	authorized.POST("/conversations/direct", s.handleCreateDirectConversation())
	authorized.POST("/conversations/group", s.handleCreateGroupConversation())
	authorized.GET("/conversations/:id/messages", s.handleListMessages())
	authorized.POST("/conversations/:id/read", s.handleMarkConversationRead())
	authorized.GET("/notifications", s.handleListNotifications())
	authorized.POST("/notifications/:id/read", s.handleMarkNotificationRead())
	authorized.GET("/users/online", s.handleGetOnlineUsers())
	authorized.POST("/uploads", s.uploadRateLimiter(), s.handleUploadAttachment())
	authorized.PUT("/me/push-token", s.handleUpdatePushToken())
}
