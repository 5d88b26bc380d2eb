package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/billdesk/internal/customer/domain"
)

type QuoteStatus string

const (
	QuoteStatusDraft     QuoteStatus = "DRAFT"
	QuoteStatusSent      QuoteStatus = "SENT"
	QuoteStatusConverted QuoteStatus = "CONVERTED"
	QuoteStatusRejected  QuoteStatus = "REJECTED"
)

func ParseQuoteStatus(raw string) (QuoteStatus, error) {
	status := QuoteStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case QuoteStatusDraft, QuoteStatusSent, QuoteStatusConverted, QuoteStatusRejected:
		return status, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Quote is a priced proposal sent to a customer before invoicing.
type Quote struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID `json:"organization_id" gorm:"not null;uniqueIndex:ux_quotes_org_number,priority:1"`
	CustomerID  snowflake.ID `json:"customer_id" gorm:"not null;index"`
	CreatedByID snowflake.ID `json:"created_by_id" gorm:"not null"`
	QuoteNumber string       `json:"quote_number" gorm:"size:32;not null;uniqueIndex:ux_quotes_org_number,priority:2"`
	IssueDate   time.Time    `json:"issue_date" gorm:"not null"`
	ExpiryDate  *time.Time   `json:"expiry_date"`
	Status      QuoteStatus  `json:"status" gorm:"size:16;not null;default:'DRAFT'"`
	Subtotal    int64        `json:"subtotal" gorm:"not null;default:0"`
	Tax         int64        `json:"tax" gorm:"not null;default:0"`
	Total       int64        `json:"total" gorm:"not null;default:0"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`

	Items    []QuoteItem              `json:"items,omitempty" gorm:"-"`
	Customer *customerdomain.Customer `json:"customer,omitempty" gorm:"-"`
}

func (Quote) TableName() string { return "quotes" }

// QuoteItem carries an absolute tax amount rather than a rate.
type QuoteItem struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID `json:"organization_id" gorm:"not null;index"`
	QuoteID     snowflake.ID `json:"quote_id" gorm:"not null;index"`
	Description string       `json:"description" gorm:"type:text;not null"`
	Quantity    int64        `json:"quantity" gorm:"not null"`
	Rate        int64        `json:"rate" gorm:"not null"`
	Tax         int64        `json:"tax" gorm:"not null;default:0"`
	Total       int64        `json:"total" gorm:"not null"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
}

func (QuoteItem) TableName() string { return "quote_items" }

// QuoteSequence is the per-organization quote number counter.
type QuoteSequence struct {
	OrgID     snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	LastValue int64        `gorm:"not null;default:0"`
	UpdatedAt time.Time    `gorm:"not null"`
}

func (QuoteSequence) TableName() string { return "quote_sequences" }

type Document struct {
	FileName    string
	ContentType string
	Content     []byte
}
