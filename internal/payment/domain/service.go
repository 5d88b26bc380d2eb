package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Record(ctx context.Context, req RecordPaymentRequest) (Payment, error)
	ListForInvoice(ctx context.Context, invoiceID string) ([]Payment, error)
	Delete(ctx context.Context, req DeletePaymentRequest) error
}

type RecordPaymentRequest struct {
	InvoiceID   string
	Amount      int64
	Method      string
	PaymentDate *time.Time
}

// DeletePaymentRequest removes one payment. A non-empty AssignedToID limits the
// delete to invoices whose customer is assigned to that user.
type DeletePaymentRequest struct {
	ID           string
	AssignedToID string
}

// MaxMethodLength bounds the free-text payment method.
const MaxMethodLength = 64

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidMethod       = errors.New("invalid_method")
	ErrInvalidAssignee     = errors.New("invalid_assigned_to_id")
	ErrNotFound            = errors.New("not_found")
)
