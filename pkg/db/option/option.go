package option

import (
	"strings"

	"github.com/smallbiznis/billdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a query before it runs.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

// QueryOptionFunc adapts a function to QueryOption.
type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// ApplyPagination limits the query to one normalized page.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Offset(p.Offset()).Limit(p.Limit)
	})
}

// WithSortBy orders by an allowlisted column expression.
func WithSortBy(order string) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if strings.TrimSpace(order) == "" {
			return db
		}
		return db.Order(order)
	})
}

// WithSearch matches term case-insensitively against any of columns.
// Column names must come from code, never from request input.
func WithSearch(term string, columns ...string) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || len(columns) == 0 {
			return db
		}
		pattern := "%" + escapeLike(term) + "%"
		clauses := make([]string, 0, len(columns))
		args := make([]interface{}, 0, len(columns))
		for _, column := range columns {
			clauses = append(clauses, "LOWER("+column+") LIKE ? ESCAPE '!'")
			args = append(args, pattern)
		}
		return db.Where("("+strings.Join(clauses, " OR ")+")", args...)
	})
}

// WithWhere adds a raw condition.
func WithWhere(query string, args ...interface{}) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

func escapeLike(term string) string {
	replacer := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return replacer.Replace(term)
}
