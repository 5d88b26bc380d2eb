package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billdesk/internal/payment/domain"
	"github.com/smallbiznis/billdesk/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, payment *domain.Payment) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO payments (id, org_id, invoice_id, amount, method, payment_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.OrgID,
		payment.InvoiceID,
		payment.Amount,
		payment.Method,
		payment.PaymentDate,
		payment.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (*domain.Payment, error) {
	var item domain.Payment
	err := tx.WithContext(ctx).Raw(
		`SELECT id, org_id, invoice_id, amount, method, payment_date, created_at
		 FROM payments
		 WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListByInvoice(ctx context.Context, tx *gorm.DB, orgID, invoiceID snowflake.ID) ([]domain.Payment, error) {
	var items []domain.Payment
	err := tx.WithContext(ctx).Raw(
		`SELECT id, org_id, invoice_id, amount, method, payment_date, created_at
		 FROM payments
		 WHERE org_id = ? AND invoice_id = ?
		 ORDER BY payment_date DESC, id DESC`,
		orgID,
		invoiceID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SumByInvoice(ctx context.Context, tx *gorm.DB, orgID, invoiceID snowflake.ID) (int64, error) {
	var total int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0)
		 FROM payments
		 WHERE org_id = ? AND invoice_id = ?`,
		orgID,
		invoiceID,
	).Scan(&total).Error
	return total, err
}

func (r *repo) Delete(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (int64, error) {
	res := tx.WithContext(ctx).Exec(
		`DELETE FROM payments WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) DeleteByInvoice(ctx context.Context, tx *gorm.DB, orgID, invoiceID snowflake.ID) (int64, error) {
	res := tx.WithContext(ctx).Exec(
		`DELETE FROM payments WHERE org_id = ? AND invoice_id = ?`,
		orgID,
		invoiceID,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) LoadInvoice(ctx context.Context, tx *gorm.DB, orgID, invoiceID snowflake.ID, forUpdate bool) (*domain.InvoiceRef, error) {
	query := `SELECT i.id, i.org_id, i.customer_id, i.status, i.total, i.due_date,
		        c.assigned_to_id
		 FROM invoices i
		 LEFT JOIN customers c ON c.id = i.customer_id AND c.org_id = i.org_id
		 WHERE i.org_id = ? AND i.id = ?`
	if forUpdate {
		// Postgres refuses FOR UPDATE on the nullable side of an outer join.
		query += db.ForUpdate(tx)
		if tx.Dialector.Name() == db.TypePostgres {
			query += " OF i"
		}
	}

	var ref domain.InvoiceRef
	err := tx.WithContext(ctx).Raw(query, orgID, invoiceID).Scan(&ref).Error
	if err != nil {
		return nil, err
	}
	if ref.ID == 0 {
		return nil, nil
	}
	return &ref, nil
}

func (r *repo) UpdateInvoiceStatus(ctx context.Context, tx *gorm.DB, orgID, invoiceID snowflake.ID, status string, updatedAt time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		status,
		updatedAt,
		orgID,
		invoiceID,
	).Error
}
