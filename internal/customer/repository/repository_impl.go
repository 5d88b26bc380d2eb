package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billdesk/internal/customer/domain"
	"github.com/smallbiznis/billdesk/pkg/db/option"
	"github.com/smallbiznis/billdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

const customerColumns = `id, org_id, name, email, phone, address, notes, assigned_to_id, metadata, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO customers (`+customerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		customer.ID,
		customer.OrgID,
		customer.Name,
		customer.Email,
		customer.Phone,
		customer.Address,
		customer.Notes,
		customer.AssignedToID,
		customer.Metadata,
		customer.CreatedAt,
		customer.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT `+customerColumns+`
		 FROM customers WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) ([]*domain.Customer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var customers []*domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT `+customerColumns+`
		 FROM customers WHERE org_id = ? AND id IN ?`,
		orgID,
		ids,
	).Scan(&customers).Error
	return customers, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListCustomerFilter, page pagination.Pagination) ([]*domain.Customer, int64, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("org_id = ?", orgID)
	stmt = option.WithSearch(filter.Search, "name", "email").Apply(stmt).Session(&gorm.Session{})

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var customers []*domain.Customer
	err := option.ApplyPagination(page).Apply(stmt).
		Order("created_at desc, id desc").
		Find(&customers).Error
	if err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`UPDATE customers
		 SET name = ?, email = ?, phone = ?, address = ?, notes = ?, metadata = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		customer.Name,
		customer.Email,
		customer.Phone,
		customer.Address,
		customer.Notes,
		customer.Metadata,
		customer.UpdatedAt,
		customer.OrgID,
		customer.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM customers WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) CountReferences(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (int64, error) {
	var row struct {
		Invoices int64
		Quotes   int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT
			(SELECT COUNT(1) FROM invoices WHERE org_id = ? AND customer_id = ?) AS invoices,
			(SELECT COUNT(1) FROM quotes WHERE org_id = ? AND customer_id = ?) AS quotes`,
		orgID, id,
		orgID, id,
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	return row.Invoices + row.Quotes, nil
}
