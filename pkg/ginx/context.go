package ginx

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader 请求 ID 所在的 header
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "ginx.request_id"

// RequestLogger 为每个请求分配请求 ID，并把带有该 ID 的 logger 放入请求 context
// engine 需开启 ContextWithFallback，handler 中的 zerolog.Ctx(c) 才能取到该 logger
func RequestLogger(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		logger := base.With().
			Str("request_id", requestID).
			Str("path", c.FullPath()).
			Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		c.Next()

		logger.Debug().Int("status", c.Writer.Status()).Msg("Request finished")
	}
}

// RequestID 返回当前请求的 ID
func RequestID(c *gin.Context) string {
	id, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	s, _ := id.(string)
	return s
}
