package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/tripgate/tripgate/internal/apierror"
	"github.com/tripgate/tripgate/internal/observability"
)

// Recovery returns a middleware that converts panics into the standard
// 500 error envelope instead of killing the connection.
func Recovery(logger observability.Logger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				fields := []observability.Field{
					observability.Any("panic", r),
					observability.String("method", c.Request.Method),
					observability.String("path", c.Request.URL.Path),
					observability.String("stack", string(debug.Stack())),
				}
				if requestID := GetRequestID(c); requestID != "" {
					fields = append(fields, observability.String("request_id", requestID))
				}
				logger.Error("panic recovered", fields...)

				c.Abort()
				apierror.Write(c.Writer, apierror.Internal(fmt.Errorf("panic: %v", r)), production)
			}
		}()

		c.Next()
	}
}

// AbortWithError writes the standard error envelope for err and stops
// the handler chain.
func AbortWithError(c *gin.Context, err error, production bool) {
	c.Abort()
	apierror.Write(c.Writer, err, production)
}
