// Package middleware provides the gin middleware chain for the gateway:
// request identification, logging, panic recovery, authentication, tier
// gating, and rate limiting.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tripgate/tripgate/internal/observability"
)

const (
	// RequestIDHeader is the request id header, honored when the client
	// supplies one and generated otherwise.
	RequestIDHeader = "X-Request-Id"

	// DeviceIDHeader carries the client's device identifier.
	DeviceIDHeader = "X-Device-Id"

	requestIDKey = "request-id"
)

// RequestID returns a middleware that ensures every request carries a
// request id, echoing it back in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		ctx := observability.ContextWithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetRequestID returns the request id assigned to the request.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// GetDeviceID returns the device id presented by the client, if any.
func GetDeviceID(c *gin.Context) string {
	return c.GetHeader(DeviceIDHeader)
}
