package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListInvoiceFilter struct {
	Status       InvoiceStatus
	CustomerID   snowflake.ID
	AssignedToID snowflake.ID
	StartDate    *time.Time
	EndDate      *time.Time
	// Now splits SENT from the derived OVERDUE when filtering by status.
	Now time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	InsertItems(ctx context.Context, db *gorm.DB, items []InvoiceItem) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, forUpdate bool) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListInvoiceFilter, page pagination.Pagination) ([]*Invoice, int64, error)
	ListItems(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) ([]InvoiceItem, error)
	Update(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	UpdateStatus(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, status InvoiceStatus, updatedAt time.Time) (int64, error)
	DeleteItems(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (int64, error)
}
