package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
	// Restart tells the client to start the booking wizard over from Step.
	Restart bool `json:"restart,omitempty"`
	Step    int  `json:"step,omitempty"`
}

// LoggerFrom returns the request-scoped logger set by middleware.RequestLogger,
// or the process logger outside a request.
func LoggerFrom(c *gin.Context) *zap.Logger {
	if l, ok := c.Get("logger"); ok {
		if logger, ok := l.(*zap.Logger); ok {
			return logger
		}
	}
	return GetLogger()
}

// ErrorHandler turns a panic in a later handler into a 500 with no internals.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				LoggerFrom(c).Error("unhandled panic",
					zap.Any("panic", rec),
					zap.String("method", c.Request.Method),
					zap.String("route", c.FullPath()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Message: "Internal Server Error",
					Code:    "internal",
				})
			}
		}()
		c.Next()
	}
}

// JSONError aborts with a message-only error body.
func JSONError(c *gin.Context, status int, message string, details string) {
	JSONErrorResponse(c, status, ErrorResponse{Message: message, Details: details})
}

// JSONErrorResponse aborts with resp. Server errors log at Error, client errors at Warn.
func JSONErrorResponse(c *gin.Context, status int, resp ErrorResponse) {
	fields := []zap.Field{
		zap.Int("status", status),
		zap.String("code", resp.Code),
		zap.String("details", resp.Details),
		zap.String("route", c.FullPath()),
	}
	if status >= http.StatusInternalServerError {
		LoggerFrom(c).Error(resp.Message, fields...)
	} else {
		LoggerFrom(c).Warn(resp.Message, fields...)
	}
	c.AbortWithStatusJSON(status, resp)
}
