package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/billdesk/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Item, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Get(ctx context.Context, id string) (*Item, error)
	Update(ctx context.Context, req UpdateRequest) (*Item, error)
	Delete(ctx context.Context, id string) error
}

type ListRequest struct {
	Search string
	Page   int
	Limit  int
}

type ListResponse struct {
	pagination.PageInfo
	Data []Item `json:"data"`
}

type CreateRequest struct {
	Name        string
	Description *string
	Price       int64
}

type UpdateRequest struct {
	ID          string
	Name        *string
	Description *string
	Price       *int64
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidPrice        = errors.New("invalid_price")
	ErrNotFound            = errors.New("not_found")
	ErrInvalidID           = errors.New("invalid_id")
)
