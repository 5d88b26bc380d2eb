package orgcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// OrgContextKey is the request context key for the active organization ID.
type OrgContextKey struct{}

type identityContextKey struct{}

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID snowflake.ID `json:"user_id"`
	OrgID  snowflake.ID `json:"org_id"`
	Role   string       `json:"role"`
}

// WithOrgID stores the org ID in the context.
func WithOrgID(ctx context.Context, orgID int64) context.Context {
	return context.WithValue(ctx, OrgContextKey{}, orgID)
}

// WithIdentity stores the caller identity, and its organization, in the context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	identity.Role = strings.ToLower(strings.TrimSpace(identity.Role))
	ctx = context.WithValue(ctx, identityContextKey{}, identity)
	if identity.OrgID != 0 {
		ctx = context.WithValue(ctx, OrgContextKey{}, identity.OrgID)
	}
	return ctx
}

// IdentityFromContext returns the caller identity, if set.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || identity.UserID == 0 {
		return Identity{}, false
	}
	return identity, true
}

// OrgIDFromContext returns the org ID from context, if set.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	switch typed := ctx.Value(OrgContextKey{}).(type) {
	case int64:
		return snowflake.ID(typed), true
	case snowflake.ID:
		return typed, true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}
