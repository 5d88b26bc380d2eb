package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Payment is an amount received against one invoice. Rows are never edited.
type Payment struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID `json:"organization_id" gorm:"not null;index"`
	InvoiceID   snowflake.ID `json:"invoice_id" gorm:"not null;index"`
	Amount      int64        `json:"amount" gorm:"not null"`
	Method      string       `json:"method" gorm:"size:64;not null;default:''"`
	PaymentDate time.Time    `json:"payment_date" gorm:"not null"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

// InvoiceRef is the slice of an invoice row the ledger reads and writes.
type InvoiceRef struct {
	ID           snowflake.ID
	OrgID        snowflake.ID
	CustomerID   snowflake.ID
	Status       string
	Total        int64
	DueDate      time.Time
	AssignedToID *snowflake.ID
}
