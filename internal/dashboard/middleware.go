package dashboard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stageboard/stageboard/internal/metrics"
	"github.com/stageboard/stageboard/internal/models"
)

// requestLogger logs each request and feeds the request metrics.
func requestLogger(log zerolog.Logger, rec *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		took := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		ev := log.Debug()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("took", took).
			Msg("request")

		if rec != nil {
			rec.ObserveRequest(c.Request.Method, route, status, took)
		}
	}
}

const userKey = "user"

func (h *handlers) requireUser(c *gin.Context) {
	u := h.store.CurrentUser()
	if u == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}
	c.Set(userKey, u)
	c.Next()
}

func (h *handlers) requireManager(c *gin.Context) {
	u, _ := c.Get(userKey)
	if user, ok := u.(*models.User); !ok || !user.IsManager() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "manager role required"})
		return
	}
	c.Next()
}
