package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/billdesk/pkg/db/pagination"
)

type ItemInput struct {
	Description string
	Quantity    int64
	Rate        int64
	Tax         int64
}

type CreateQuoteRequest struct {
	CustomerID string
	IssueDate  *time.Time
	ExpiryDate *time.Time
	Status     string
	Items      []ItemInput
}

// UpdateQuoteRequest is a partial update. A non-nil Items replaces every line.
type UpdateQuoteRequest struct {
	ID         string
	CustomerID *string
	IssueDate  *time.Time
	ExpiryDate *time.Time
	Status     *string
	Items      []ItemInput
}

type ListQuoteRequest struct {
	Status     string
	CustomerID string
	Page       int
	Limit      int
}

type ListQuoteResponse struct {
	Data []Quote             `json:"data"`
	Meta pagination.PageInfo `json:"meta"`
}

type Service interface {
	Create(context.Context, CreateQuoteRequest) (Quote, error)
	List(context.Context, ListQuoteRequest) (ListQuoteResponse, error)
	GetByID(ctx context.Context, id string) (Quote, error)
	Update(context.Context, UpdateQuoteRequest) (Quote, error)
	Delete(ctx context.Context, id string) error
	RenderPDF(ctx context.Context, id string) (Document, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidCustomerID   = errors.New("invalid_customer_id")
	ErrInvalidDescription  = errors.New("invalid_description")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidExpiryDate   = errors.New("invalid_expiry_date")
	ErrNumberUnavailable   = errors.New("quote_number_unavailable")
	ErrNotFound            = errors.New("not_found")
)
