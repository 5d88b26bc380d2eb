package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/billdesk/pkg/db/pagination"
)

type ListCustomerRequest struct {
	Search string
	Page   int
	Limit  int
}

type ListCustomerFilter struct {
	Search string
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Data []Customer `json:"data"`
}

type CreateCustomerRequest struct {
	Name     string
	Email    string
	Phone    string
	Address  string
	Notes    string
	Metadata map[string]interface{}
}

// UpdateCustomerRequest is a partial update. Nil fields are left unchanged.
type UpdateCustomerRequest struct {
	ID       string
	Name     *string
	Email    *string
	Phone    *string
	Address  *string
	Notes    *string
	Metadata map[string]interface{}
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(ctx context.Context, id string) (Customer, error)
	Update(context.Context, UpdateCustomerRequest) (Customer, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
	ErrInUse               = errors.New("customer_in_use")
)
