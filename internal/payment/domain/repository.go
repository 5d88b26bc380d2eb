package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Payment, error)
	ListByInvoice(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) ([]Payment, error)
	SumByInvoice(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (int64, error)
	DeleteByInvoice(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) (int64, error)

	// LoadInvoice reads the invoice with its customer's assignee. With forUpdate
	// the row stays locked until the transaction ends on dialects that support it.
	LoadInvoice(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID, forUpdate bool) (*InvoiceRef, error)
	UpdateInvoiceStatus(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID, status string, updatedAt time.Time) error
}
