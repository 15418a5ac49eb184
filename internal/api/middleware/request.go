package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally/internal/types"
)

// RequestIDMiddleware tags every request with an id, either the one the
// SDK sent in X-Request-ID or a freshly minted one, and echoes it back
// in the response headers.
func RequestIDMiddleware(c *gin.Context) {
	ctx := c.Request.Context()

	requestID := c.GetHeader(types.HeaderRequestID)
	if requestID == "" {
		requestID = types.GenerateUUID()
	}

	ctx = context.WithValue(ctx, types.CtxRequestID, requestID)
	c.Request = c.Request.WithContext(ctx)

	c.Header(types.HeaderRequestID, requestID)

	c.Next()
}
