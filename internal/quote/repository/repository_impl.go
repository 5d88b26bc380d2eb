package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billdesk/internal/quote/domain"
	"github.com/smallbiznis/billdesk/pkg/db"
	"github.com/smallbiznis/billdesk/pkg/db/option"
	"github.com/smallbiznis/billdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, quote *domain.Quote) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO quotes (
			id, org_id, customer_id, created_by_id, quote_number, issue_date, expiry_date,
			status, subtotal, tax, total, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		quote.ID,
		quote.OrgID,
		quote.CustomerID,
		quote.CreatedByID,
		quote.QuoteNumber,
		quote.IssueDate,
		quote.ExpiryDate,
		quote.Status,
		quote.Subtotal,
		quote.Tax,
		quote.Total,
		quote.CreatedAt,
		quote.UpdatedAt,
	).Error
}

func (r *repo) InsertItems(ctx context.Context, tx *gorm.DB, items []domain.QuoteItem) error {
	for _, item := range items {
		err := tx.WithContext(ctx).Exec(
			`INSERT INTO quote_items (
				id, org_id, quote_id, description, quantity, rate, tax, total, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.OrgID,
			item.QuoteID,
			item.Description,
			item.Quantity,
			item.Rate,
			item.Tax,
			item.Total,
			item.CreatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID, forUpdate bool) (*domain.Quote, error) {
	query := `SELECT id, org_id, customer_id, created_by_id, quote_number, issue_date, expiry_date,
		        status, subtotal, tax, total, created_at, updated_at
		 FROM quotes
		 WHERE org_id = ? AND id = ?`
	if forUpdate {
		query += db.ForUpdate(tx)
	}

	var quote domain.Quote
	err := tx.WithContext(ctx).Raw(query, orgID, id).Scan(&quote).Error
	if err != nil {
		return nil, err
	}
	if quote.ID == 0 {
		return nil, nil
	}
	return &quote, nil
}

func (r *repo) List(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, filter domain.ListQuoteFilter, page pagination.Pagination) ([]*domain.Quote, int64, error) {
	options := []option.QueryOption{
		option.WithWhere("org_id = ?", orgID),
	}
	if filter.Status != "" {
		options = append(options, option.WithWhere("status = ?", filter.Status))
	}
	if filter.CustomerID != 0 {
		options = append(options, option.WithWhere("customer_id = ?", filter.CustomerID))
	}

	stmt := tx.WithContext(ctx).Model(&domain.Quote{})
	for _, opt := range options {
		stmt = opt.Apply(stmt)
	}
	stmt = stmt.Session(&gorm.Session{})

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []*domain.Quote
	err := option.ApplyPagination(page).Apply(
		option.WithSortBy("created_at desc, id desc").Apply(stmt),
	).Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repo) ListItems(ctx context.Context, tx *gorm.DB, orgID, quoteID snowflake.ID) ([]domain.QuoteItem, error) {
	var items []domain.QuoteItem
	err := tx.WithContext(ctx).Raw(
		`SELECT id, org_id, quote_id, description, quantity, rate, tax, total, created_at
		 FROM quote_items
		 WHERE org_id = ? AND quote_id = ?
		 ORDER BY created_at ASC, id ASC`,
		orgID,
		quoteID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, tx *gorm.DB, quote *domain.Quote) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE quotes
		 SET customer_id = ?, issue_date = ?, expiry_date = ?, status = ?,
		     subtotal = ?, tax = ?, total = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		quote.CustomerID,
		quote.IssueDate,
		quote.ExpiryDate,
		quote.Status,
		quote.Subtotal,
		quote.Tax,
		quote.Total,
		quote.UpdatedAt,
		quote.OrgID,
		quote.ID,
	).Error
}

func (r *repo) DeleteItems(ctx context.Context, tx *gorm.DB, orgID, quoteID snowflake.ID) (int64, error) {
	res := tx.WithContext(ctx).Exec(
		`DELETE FROM quote_items WHERE org_id = ? AND quote_id = ?`,
		orgID,
		quoteID,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) Delete(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (int64, error) {
	res := tx.WithContext(ctx).Exec(
		`DELETE FROM quotes WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	)
	return res.RowsAffected, res.Error
}

// NextSequence bumps the counter row, which holds its lock until the
// transaction ends. The first quote of an organization seeds the row from the
// number of quotes already stored. Two first inserts racing each other end in
// a duplicate key error for the loser.
func (r *repo) NextSequence(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, now time.Time) (int64, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE quote_sequences
		 SET last_value = last_value + 1, updated_at = ?
		 WHERE org_id = ?`,
		now,
		orgID,
	)
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected == 0 {
		var existing int64
		err := tx.WithContext(ctx).Raw(
			`SELECT COUNT(*) FROM quotes WHERE org_id = ?`,
			orgID,
		).Scan(&existing).Error
		if err != nil {
			return 0, err
		}

		next := existing + 1
		err = tx.WithContext(ctx).Exec(
			`INSERT INTO quote_sequences (org_id, last_value, updated_at) VALUES (?, ?, ?)`,
			orgID,
			next,
			now,
		).Error
		if err != nil {
			return 0, err
		}
		return next, nil
	}

	var value int64
	err := tx.WithContext(ctx).Raw(
		`SELECT last_value FROM quote_sequences WHERE org_id = ?`,
		orgID,
	).Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}
