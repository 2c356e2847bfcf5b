package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/emrgen/notebook/internal/metrics"
	"github.com/emrgen/notebook/internal/service"
	"github.com/emrgen/notebook/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderSessionID = "X-Session-ID"

	userKey = "notebook.user"
)

// RequestTimeMiddleware logs and records the duration of every request.
func RequestTimeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		reqTime := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := strconv.Itoa(c.Writer.Status())
		metrics.RequestDuration.WithLabelValues(c.Request.Method, route, code).Observe(reqTime.Seconds())
		logrus.Infof("request time: %v %v: %v", c.Request.Method, route, reqTime)
	}
}

// IdentityMiddleware reads the caller identity set by the authentication proxy and
// marks the session active.
func IdentityMiddleware(sessions *session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := service.User{
			ID:        c.GetHeader(HeaderUserID),
			SessionID: c.GetHeader(HeaderSessionID),
		}
		if user.ID == "" || user.SessionID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user or session identity"})
			return
		}

		sessions.Touch(user.SessionID, user.ID)
		c.Set(userKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) service.User {
	user, _ := c.MustGet(userKey).(service.User)
	return user
}
