package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"novelistan/internal/pkg/response"
)

const requestIDHeader = "X-Request-ID"

// RequestID reuses the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs every request and recovers from panics. 5xx responses and
// handler errors are logged at error level; panic details and stacks are only
// returned to clients outside production.
func RequestLogger(log *zap.Logger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		defer func() {
			if recovered := recover(); recovered != nil {
				err := fmt.Errorf("%v", recovered)
				stack := debug.Stack()
				log.Error("panic recovered", append(requestFields(c, start), zap.Error(err), zap.ByteString("stack", stack))...)

				if production {
					response.AbortError(c, http.StatusInternalServerError, response.CodeInternal, "Internal Server Error")
					return
				}
				response.ErrorWithDetails(c, http.StatusInternalServerError, response.CodeInternal, "Internal Server Error (Panic)",
					gin.H{"panic": err.Error(), "stack": string(stack)})
				c.Abort()
				return
			}

			fields := requestFields(c, start)
			switch {
			case len(c.Errors) > 0:
				log.Error("request failed", append(fields, zap.String("errors", c.Errors.String()))...)
			case c.Writer.Status() >= http.StatusInternalServerError:
				log.Error("request failed", fields...)
			case c.Writer.Status() >= http.StatusBadRequest:
				log.Warn("request rejected", fields...)
			default:
				log.Info("request", fields...)
			}
		}()

		c.Next()
	}
}

func requestFields(c *gin.Context, start time.Time) []zap.Field {
	return []zap.Field{
		zap.Int("status", c.Writer.Status()),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("query", c.Request.URL.RawQuery),
		zap.String("client_ip", c.ClientIP()),
		zap.Int64("user_id", c.GetInt64("user_id")),
		zap.String("role", c.GetString("role")),
		zap.String("request_id", c.GetString("request_id")),
		zap.Duration("latency", time.Since(start)),
	}
}
