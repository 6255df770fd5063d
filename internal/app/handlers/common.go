package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys for middleware
const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"
)

// GetRequestID retrieves request ID from gin context
func GetRequestID(c *gin.Context) string {
	if value, exists := c.Get(RequestIDKey); exists {
		if requestID, ok := value.(string); ok {
			return requestID
		}
	}
	return ""
}

// SetRequestID sets request ID in gin context
func SetRequestID(c *gin.Context, requestID string) {
	c.Set(RequestIDKey, requestID)
}

// RequestIDMiddleware tags every request with an id, reusing the inbound one
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		SetRequestID(c, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// optionalUUID parses an optional id field; empty means absent
func optionalUUID(value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
