package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CallerHeader carries the id of the acting user
const CallerHeader = "X-User-ID"

const callerKey = "caller_id"

// requireCaller rejects requests without a caller id. Whether the id
// resolves to an active user is decided by the engine and services.
func requireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := strings.TrimSpace(c.GetHeader(CallerHeader))
		if caller == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing " + CallerHeader + " header",
				Code:    CodeUnauthorized,
			})
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

func callerID(c *gin.Context) string {
	return c.GetString(callerKey)
}
