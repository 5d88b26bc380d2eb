package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListQuoteFilter struct {
	Status     QuoteStatus
	CustomerID snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, quote *Quote) error
	InsertItems(ctx context.Context, db *gorm.DB, items []QuoteItem) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, forUpdate bool) (*Quote, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListQuoteFilter, page pagination.Pagination) ([]*Quote, int64, error)
	ListItems(ctx context.Context, db *gorm.DB, orgID, quoteID snowflake.ID) ([]QuoteItem, error)
	Update(ctx context.Context, db *gorm.DB, quote *Quote) error
	DeleteItems(ctx context.Context, db *gorm.DB, orgID, quoteID snowflake.ID) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (int64, error)
	// NextSequence increments and returns the organization's quote counter.
	// Call it inside the transaction that inserts the quote.
	NextSequence(ctx context.Context, db *gorm.DB, orgID snowflake.ID, now time.Time) (int64, error)
}
