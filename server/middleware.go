package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	apiError "github.com/fitpair/coachlink/errors"
	"github.com/fitpair/coachlink/models"
	"github.com/fitpair/coachlink/server/response"
	"github.com/fitpair/coachlink/services/jwt"
)

// Authorize validates the bearer credential and binds the authenticated
// user to the request context.
func (s *Server) Authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := getTokenFromHeader(c)
		if accessToken == "" {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, apiError.New("unauthorized", http.StatusUnauthorized))
			return
		}

		claims, err := jwt.ValidateAndGetClaims(accessToken, s.Config.JWTSecret)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, apiError.New("unauthorized", http.StatusUnauthorized))
			return
		}

		userID, err := jwt.UserIDFromClaims(claims)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, apiError.New("invalid token claims", http.StatusUnauthorized))
			return
		}

		user, err := s.UserRepository.FindUserByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, apiError.ErrRecordNotFound) {
				respondAndAbort(c, "user not found", http.StatusUnauthorized, nil, apiError.New("unauthorized", http.StatusUnauthorized))
				return
			}
			respondAndAbort(c, "", http.StatusInternalServerError, nil, apiError.ErrInternalServerError)
			return
		}

		c.Set("user", user)
		c.Set("userID", user.ID)
		c.Next()
	}
}

func getTokenFromHeader(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}

func respondAndAbort(c *gin.Context, message string, status int, data interface{}, e *apiError.Error) {
	response.JSON(c, message, status, data, []string{e.Message})
	c.Abort()
}

// GetUserFromContext returns the user bound by Authorize.
func GetUserFromContext(c *gin.Context) (*models.User, error) {
	if userI, exists := c.Get("user"); exists {
		if user, ok := userI.(*models.User); ok {
			return user, nil
		}
	}
	return nil, apiError.New("user is not logged in", http.StatusUnauthorized)
}

// uploadRateLimiter bounds upload requests per user. Redis-backed when a
// redis address is configured so limits hold across instances.
func (s *Server) uploadRateLimiter() gin.HandlerFunc {
	limit := uint(s.Config.UploadRateLimit)
	if limit == 0 {
		limit = 20
	}

	var store ratelimit.Store
	if s.Config.RedisAddr != "" {
		store = ratelimit.RedisStore(&ratelimit.RedisOptions{
			RedisClient: redis.NewClient(&redis.Options{Addr: s.Config.RedisAddr}),
			Rate:        time.Minute,
			Limit:       limit,
		})
	} else {
		store = ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
			Rate:  time.Minute,
			Limit: limit,
		})
	}

	return ratelimit.RateLimiter(store, &ratelimit.Options{
		KeyFunc: func(c *gin.Context) string {
			if userID, exists := c.Get("userID"); exists {
				return fmt.Sprintf("user:%v", userID)
			}
			return c.ClientIP()
		},
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			respondAndAbort(c, "too many uploads", http.StatusTooManyRequests, nil,
				apiError.New("rate limit exceeded, retry at "+info.ResetTime.Format(time.RFC3339), http.StatusTooManyRequests))
		},
	})
}
