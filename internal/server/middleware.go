package server

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/billdesk/internal/auth"
	"github.com/smallbiznis/billdesk/internal/authorization"
	obscontext "github.com/smallbiznis/billdesk/internal/observability/context"
	"github.com/smallbiznis/billdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/billdesk/internal/observability/metrics"
	"github.com/smallbiznis/billdesk/internal/orgcontext"
	"go.uber.org/zap"
)

const (
	contextUserIDKey = "user_id"
	actorTypeUser    = "user"

	rateLimitReasonOrgWrite = "org-write"
)

// AuthRequired resolves the bearer token into the request identity.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.tokens == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		identity, err := s.tokens.Verify(raw)
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug("bearer token rejected", zap.Error(err))
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := orgcontext.WithIdentity(c.Request.Context(), identity)
		ctx = obscontext.WithActor(ctx, actorTypeUser, identity.UserID.String())
		if identity.OrgID != 0 {
			ctx = obscontext.WithOrgID(ctx, identity.OrgID.String())
		}

		c.Set(contextUserIDKey, identity.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// requirePermission rejects callers outside an organization or without perm
// before the request body is read.
func (s *Server) requirePermission(perm authorization.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if _, ok := orgcontext.IdentityFromContext(ctx); !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if orgID, ok := orgcontext.OrgIDFromContext(ctx); !ok || orgID == 0 {
			AbortWithError(c, ErrNotInOrganization)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(ctx, perm); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// WriteRateLimit consumes one token from the organization's write bucket for
// every mutating request.
func (s *Server) WriteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isWriteMethod(c.Request.Method) || s.writeLimiter == nil || !s.writeLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		orgID, ok := orgcontext.OrgIDFromContext(ctx)
		if !ok || orgID == 0 {
			c.Next()
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		result, err := s.writeLimiter.Allow(ctx, orgID.String())
		if err != nil {
			logger.FromContext(ctx).Warn("write rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if result == nil || !result.Allowed {
			retryAfter := "1"
			if result != nil && result.RetryAfter > 0 {
				retryAfter = strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds())))
			}
			denyWriteRateLimit(c, endpoint, orgID.String(), retryAfter, s.obsMetrics)
			return
		}

		recordRateLimitAllowed(ctx, endpoint, orgID.String(), s.obsMetrics)
		if result.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		c.Next()
	}
}

func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	route := strings.TrimSpace(c.FullPath())
	if route == "" {
		route = "unknown"
	}
	return c.Request.Method + " " + route
}

func denyWriteRateLimit(c *gin.Context, endpoint, orgID, retryAfter string, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("write rate limit exceeded",
		zap.String("reason", rateLimitReasonOrgWrite),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, orgID, rateLimitReasonOrgWrite, metrics)

	c.Header("Retry-After", retryAfter)
	AbortWithError(c, ErrRateLimited)
}

func recordRateLimitAllowed(ctx context.Context, endpoint, orgID string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, orgID, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, orgID, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, orgID, endpoint, reason)
}
