package authorization

import "errors"

var (
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidPermission   = errors.New("invalid_permission")
)
