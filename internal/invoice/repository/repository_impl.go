package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billdesk/internal/invoice/domain"
	"github.com/smallbiznis/billdesk/pkg/db"
	"github.com/smallbiznis/billdesk/pkg/db/option"
	"github.com/smallbiznis/billdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO invoices (
			id, org_id, customer_id, issue_date, due_date,
			subtotal, tax, total, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.OrgID,
		invoice.CustomerID,
		invoice.IssueDate,
		invoice.DueDate,
		invoice.Subtotal,
		invoice.Tax,
		invoice.Total,
		invoice.Status,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) InsertItems(ctx context.Context, tx *gorm.DB, items []domain.InvoiceItem) error {
	for _, item := range items {
		err := tx.WithContext(ctx).Exec(
			`INSERT INTO invoice_items (
				id, org_id, invoice_id, description, quantity, price, total, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.OrgID,
			item.InvoiceID,
			item.Description,
			item.Quantity,
			item.Price,
			item.Total,
			item.CreatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID, forUpdate bool) (*domain.Invoice, error) {
	query := `SELECT id, org_id, customer_id, issue_date, due_date,
		        subtotal, tax, total, status, created_at, updated_at
		 FROM invoices
		 WHERE org_id = ? AND id = ?`
	if forUpdate {
		query += db.ForUpdate(tx)
	}

	var invoice domain.Invoice
	err := tx.WithContext(ctx).Raw(query, orgID, id).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, filter domain.ListInvoiceFilter, page pagination.Pagination) ([]*domain.Invoice, int64, error) {
	options := []option.QueryOption{
		option.WithWhere("org_id = ?", orgID),
	}

	switch filter.Status {
	case "":
	case domain.InvoiceStatusSent:
		options = append(options, option.WithWhere("status = ? AND due_date >= ?", domain.InvoiceStatusSent, filter.Now))
	case domain.InvoiceStatusOverdue:
		options = append(options, option.WithWhere("status = ? AND due_date < ?", domain.InvoiceStatusSent, filter.Now))
	default:
		options = append(options, option.WithWhere("status = ?", filter.Status))
	}
	if filter.CustomerID != 0 {
		options = append(options, option.WithWhere("customer_id = ?", filter.CustomerID))
	}
	if filter.AssignedToID != 0 {
		options = append(options, option.WithWhere(
			"customer_id IN (SELECT id FROM customers WHERE org_id = ? AND assigned_to_id = ?)",
			orgID,
			filter.AssignedToID,
		))
	}
	if filter.StartDate != nil {
		options = append(options, option.WithWhere("issue_date >= ?", *filter.StartDate))
	}
	if filter.EndDate != nil {
		options = append(options, option.WithWhere("issue_date <= ?", *filter.EndDate))
	}

	stmt := tx.WithContext(ctx).Model(&domain.Invoice{})
	for _, opt := range options {
		stmt = opt.Apply(stmt)
	}
	stmt = stmt.Session(&gorm.Session{})

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []*domain.Invoice
	err := option.ApplyPagination(page).Apply(
		option.WithSortBy("issue_date desc, id desc").Apply(stmt),
	).Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repo) ListItems(ctx context.Context, tx *gorm.DB, orgID, invoiceID snowflake.ID) ([]domain.InvoiceItem, error) {
	var items []domain.InvoiceItem
	err := tx.WithContext(ctx).Raw(
		`SELECT id, org_id, invoice_id, description, quantity, price, total, created_at
		 FROM invoice_items
		 WHERE org_id = ? AND invoice_id = ?
		 ORDER BY created_at ASC, id ASC`,
		orgID,
		invoiceID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET customer_id = ?, issue_date = ?, due_date = ?,
		     subtotal = ?, tax = ?, total = ?, status = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		invoice.CustomerID,
		invoice.IssueDate,
		invoice.DueDate,
		invoice.Subtotal,
		invoice.Tax,
		invoice.Total,
		invoice.Status,
		invoice.UpdatedAt,
		invoice.OrgID,
		invoice.ID,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID, status domain.InvoiceStatus, updatedAt time.Time) (int64, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		status,
		updatedAt,
		orgID,
		id,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) DeleteItems(ctx context.Context, tx *gorm.DB, orgID, invoiceID snowflake.ID) (int64, error) {
	res := tx.WithContext(ctx).Exec(
		`DELETE FROM invoice_items WHERE org_id = ? AND invoice_id = ?`,
		orgID,
		invoiceID,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) Delete(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (int64, error) {
	res := tx.WithContext(ctx).Exec(
		`DELETE FROM invoices WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	)
	return res.RowsAffected, res.Error
}
