package ratelimit

import (
	"fmt"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mezonai/starnotary/errors"
	"github.com/mezonai/starnotary/logx"
)

// PerIP rejects requests from a client IP that exceeded rl's window with 429
// and a Retry-After header in whole seconds.
func PerIP(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		ok, wait := rl.Reserve(ip)
		if !ok {
			logx.Warn("API", fmt.Sprintf("Rate limit exceeded | ip=%s | path=%s | retry_after=%s", ip, c.FullPath(), wait))
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			ne := &errors.NetworkError{Code: errors.ErrCodeRateLimited, Message: errors.ErrMsgRateLimited}
			c.AbortWithStatusJSON(ne.HTTPStatus(), ne)
			return
		}
		c.Next()
	}
}
