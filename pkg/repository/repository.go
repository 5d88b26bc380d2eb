package repository

import (
	"context"

	"github.com/smallbiznis/billdesk/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic gorm store. Queries are struct filters: zero-valued
// fields are ignored, so callers always set the tenant column.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	// FindOne returns nil, nil when nothing matches.
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	BatchCreate(ctx context.Context, resources []*T) error
	// Update applies values to the rows matching query and returns rows affected.
	Update(ctx context.Context, query *T, values map[string]interface{}) (int64, error)
	// Delete removes the rows matching query and returns rows affected.
	Delete(ctx context.Context, query *T) (int64, error)
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}
