package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/billdesk/internal/observability/context"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-Id"

// ErrorClassifier maps a handler error to the (type, code) pair logged with it.
type ErrorClassifier func(err error) (errorType string, errorCode string)

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	Debug           bool
	ErrorClassifier ErrorClassifier
}

// GinMiddleware assigns a request id and logs one http_request line per request.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFor(c)
		c.Request = c.Request.WithContext(obscontext.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		fields = append(fields, errorFields(c, cfg)...)

		// Org and actor are attached by auth middleware further down the chain,
		// so the logger is derived from the final request context.
		log := FromContext(c.Request.Context())
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("http_request", fields...)
		case route == "/health" || route == "/metrics":
			log.Debug("http_request", fields...)
		default:
			log.Info("http_request", fields...)
		}
	}
}

func requestIDFor(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
	if requestID == "" || len(requestID) > 128 {
		requestID = uuid.NewString()
	}
	c.Set("request_id", requestID)
	c.Header(RequestIDHeader, requestID)
	return requestID
}

func errorFields(c *gin.Context, cfg MiddlewareConfig) []zap.Field {
	last := c.Errors.Last()
	if last == nil {
		return nil
	}
	errorType, errorCode := "error", ""
	if cfg.ErrorClassifier != nil {
		errorType, errorCode = cfg.ErrorClassifier(last.Err)
	}
	fields := []zap.Field{zap.String("error_type", errorType)}
	if errorCode != "" {
		fields = append(fields, zap.String("error_code", errorCode))
	}
	if cfg.Debug {
		fields = append(fields, zap.Error(last.Err))
	}
	return fields
}
