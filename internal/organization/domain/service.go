package domain

import (
	"context"
	"errors"
)

const DefaultCurrency = "USD"

type Service interface {
	// Create bootstraps a new tenant. It does not require a request identity.
	Create(ctx context.Context, req CreateOrganizationRequest) (*Organization, error)
	Get(ctx context.Context) (*Organization, error)
	Update(ctx context.Context, req UpdateOrganizationRequest) (*Organization, error)
}

type CreateOrganizationRequest struct {
	Name     string
	Currency string
}

type UpdateOrganizationRequest struct {
	Name     string
	Currency *string
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("not_found")
)
