// Package domain contains persistence models for invoicing.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/billdesk/internal/customer/domain"
	paymentdomain "github.com/smallbiznis/billdesk/internal/payment/domain"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "DRAFT"
	InvoiceStatusSent  InvoiceStatus = "SENT"
	InvoiceStatusPaid  InvoiceStatus = "PAID"
	// InvoiceStatusOverdue is only ever derived at read time.
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

// ParseInvoiceStatus accepts any of the four statuses, case-insensitively.
func ParseInvoiceStatus(raw string) (InvoiceStatus, error) {
	status := InvoiceStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue:
		return status, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Storable reports whether the status may be written to the database.
func (s InvoiceStatus) Storable() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid:
		return true
	default:
		return false
	}
}

// Invoice represents a billed document. Status holds the stored value until
// WithDisplayStatus is applied.
type Invoice struct {
	ID         snowflake.ID  `json:"id" gorm:"primaryKey"`
	OrgID      snowflake.ID  `json:"organization_id" gorm:"not null;index"`
	CustomerID snowflake.ID  `json:"customer_id" gorm:"not null;index"`
	IssueDate  time.Time     `json:"issue_date" gorm:"not null"`
	DueDate    time.Time     `json:"due_date" gorm:"not null"`
	Subtotal   int64         `json:"subtotal" gorm:"not null;default:0"`
	Tax        int64         `json:"tax" gorm:"not null;default:0"`
	Total      int64         `json:"total" gorm:"not null;default:0"`
	Status     InvoiceStatus `json:"status" gorm:"size:16;not null;default:'DRAFT'"`
	CreatedAt  time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time     `json:"updated_at" gorm:"not null"`

	Items    []InvoiceItem            `json:"items,omitempty" gorm:"-"`
	Customer *customerdomain.Customer `json:"customer,omitempty" gorm:"-"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// DisplayStatus derives OVERDUE for sent invoices whose due date has passed.
func (i Invoice) DisplayStatus(now time.Time) InvoiceStatus {
	if i.Status != InvoiceStatusPaid && i.Status != InvoiceStatusDraft && i.DueDate.Before(now) {
		return InvoiceStatusOverdue
	}
	return i.Status
}

// WithDisplayStatus returns a copy whose Status is the display status.
func (i Invoice) WithDisplayStatus(now time.Time) Invoice {
	i.Status = i.DisplayStatus(now)
	return i
}

// InvoiceItem represents a line on an invoice.
type InvoiceItem struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID `json:"organization_id" gorm:"not null;index"`
	InvoiceID   snowflake.ID `json:"invoice_id" gorm:"not null;index"`
	Description string       `json:"description" gorm:"type:text;not null"`
	Quantity    int64        `json:"quantity" gorm:"not null"`
	Price       int64        `json:"price" gorm:"not null"`
	Total       int64        `json:"total" gorm:"not null"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// InvoiceDetail is an invoice with everything the detail view shows.
type InvoiceDetail struct {
	Invoice
	Payments   []paymentdomain.Payment `json:"payments"`
	AmountPaid int64                   `json:"amount_paid"`
	AmountDue  int64                   `json:"amount_due"`
}

// Document is a rendered file ready for download.
type Document struct {
	FileName    string
	ContentType string
	Content     []byte
}
