package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/billdesk/pkg/db/pagination"
)

type ItemInput struct {
	Description string
	Quantity    int64
	Price       int64
}

type CreateInvoiceRequest struct {
	CustomerID string
	IssueDate  *time.Time
	DueDate    *time.Time
	Items      []ItemInput
	TaxRate    decimal.Decimal
}

// UpdateInvoiceRequest is a partial update. A non-nil Items replaces every line.
type UpdateInvoiceRequest struct {
	ID         string
	CustomerID *string
	IssueDate  *time.Time
	DueDate    *time.Time
	Items      []ItemInput
	TaxRate    *decimal.Decimal
	Status     *string
}

type ListInvoiceRequest struct {
	Status       string
	CustomerID   string
	AssignedToID string
	StartDate    *time.Time
	EndDate      *time.Time
	Page         int
	Limit        int
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Data []Invoice `json:"data"`
}

type Service interface {
	Create(context.Context, CreateInvoiceRequest) (Invoice, error)
	List(context.Context, ListInvoiceRequest) (ListInvoiceResponse, error)
	GetByID(ctx context.Context, id string) (InvoiceDetail, error)
	Update(context.Context, UpdateInvoiceRequest) (InvoiceDetail, error)
	UpdateStatus(ctx context.Context, id string, status string) (Invoice, error)
	Delete(ctx context.Context, id string) error
	RenderPDF(ctx context.Context, id string) (Document, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidCustomerID   = errors.New("invalid_customer_id")
	ErrInvalidDescription  = errors.New("invalid_description")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidDueDate      = errors.New("invalid_due_date")
	ErrInvalidDateRange    = errors.New("invalid_date_range")
	ErrNotFound            = errors.New("not_found")
)
