package authorization

import "context"

// Service gates operations on the role carried by the request identity.
type Service interface {
	// Authorize returns nil when the identity in ctx holds perm.
	Authorize(ctx context.Context, perm Permission) error
	// Can is Authorize for an explicit role.
	Can(role string, perm Permission) (bool, error)
}
