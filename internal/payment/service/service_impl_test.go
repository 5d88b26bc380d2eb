package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/billdesk/internal/authorization"
	"github.com/smallbiznis/billdesk/internal/clock"
	"github.com/smallbiznis/billdesk/internal/orgcontext"
	paymentdomain "github.com/smallbiznis/billdesk/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/billdesk/internal/payment/repository"
	paymentservice "github.com/smallbiznis/billdesk/internal/payment/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	orgA       snowflake.ID = 1001
	orgB       snowflake.ID = 2002
	customerID snowflake.ID = 5001
	invoiceID  snowflake.ID = 7001
	staffUser  snowflake.ID = 12
	otherStaff snowflake.ID = 13
)

var baseTime = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func TestRecordFullPaymentMarksPaid(t *testing.T) {
	svc, db, _ := newTestServiceWithDB(t)
	seedInvoice(t, db, "SENT", 11000, baseTime.AddDate(0, 0, 30))

	payment, err := svc.Record(adminContext(orgA), paymentdomain.RecordPaymentRequest{
		InvoiceID: invoiceID.String(),
		Amount:    11000,
		Method:    " bank transfer ",
	})
	require.NoError(t, err)
	assert.Equal(t, "bank transfer", payment.Method)
	assert.True(t, payment.PaymentDate.Equal(baseTime))

	assert.Equal(t, "PAID", invoiceStatus(t, db))
}

func TestRecordPartialPaymentKeepsStatus(t *testing.T) {
	svc, db, _ := newTestServiceWithDB(t)
	seedInvoice(t, db, "SENT", 11000, baseTime.AddDate(0, 0, 30))
	ctx := staffContext(orgA, staffUser)

	_, err := svc.Record(ctx, paymentdomain.RecordPaymentRequest{InvoiceID: invoiceID.String(), Amount: 5000})
	require.NoError(t, err)
	assert.Equal(t, "SENT", invoiceStatus(t, db))

	_, err = svc.Record(ctx, paymentdomain.RecordPaymentRequest{InvoiceID: invoiceID.String(), Amount: 6000})
	require.NoError(t, err)
	assert.Equal(t, "PAID", invoiceStatus(t, db))
}

func TestRecordPartialPaymentOnDraft(t *testing.T) {
	svc, db, _ := newTestServiceWithDB(t)
	seedInvoice(t, db, "DRAFT", 11000, baseTime.AddDate(0, 0, 30))

	_, err := svc.Record(adminContext(orgA), paymentdomain.RecordPaymentRequest{InvoiceID: invoiceID.String(), Amount: 50})
	require.NoError(t, err)
	assert.Equal(t, "DRAFT", invoiceStatus(t, db))
}

func TestRecordValidation(t *testing.T) {
	svc, db, _ := newTestServiceWithDB(t)
	seedInvoice(t, db, "SENT", 11000, baseTime.AddDate(0, 0, 30))
	ctx := adminContext(orgA)

	_, err := svc.Record(ctx, paymentdomain.RecordPaymentRequest{InvoiceID: invoiceID.String(), Amount: 0})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)

	long := make([]byte, paymentdomain.MaxMethodLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = svc.Record(ctx, paymentdomain.RecordPaymentRequest{InvoiceID: invoiceID.String(), Amount: 1, Method: string(long)})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidMethod)

	_, err = svc.Record(adminContext(orgB), paymentdomain.RecordPaymentRequest{InvoiceID: invoiceID.String(), Amount: 100})
	assert.ErrorIs(t, err, paymentdomain.ErrNotFound)

	_, err = svc.Record(ctx, paymentdomain.RecordPaymentRequest{InvoiceID: "not-an-id", Amount: 100})
	assert.ErrorIs(t, err, paymentdomain.ErrNotFound)

	assertCount(t, db, "SELECT COUNT(*) FROM payments", 0)
}

func TestListForInvoiceOrdersByPaymentDate(t *testing.T) {
	svc, db, _ := newTestServiceWithDB(t)
	seedInvoice(t, db, "SENT", 11000, baseTime.AddDate(0, 0, 30))
	ctx := adminContext(orgA)

	for i, day := range []int{3, 1, 2} {
		date := baseTime.AddDate(0, 0, day)
		_, err := svc.Record(ctx, paymentdomain.RecordPaymentRequest{
			InvoiceID:   invoiceID.String(),
			Amount:      int64(100 * (i + 1)),
			PaymentDate: &date,
		})
		require.NoError(t, err)
	}

	payments, err := svc.ListForInvoice(ctx, invoiceID.String())
	require.NoError(t, err)
	require.Len(t, payments, 3)
	assert.Equal(t, int64(100), payments[0].Amount)
	assert.Equal(t, int64(300), payments[1].Amount)
	assert.Equal(t, int64(200), payments[2].Amount)

	_, err = svc.ListForInvoice(adminContext(orgB), invoiceID.String())
	assert.ErrorIs(t, err, paymentdomain.ErrNotFound)
}

func TestDeleteRevertsPaidToSent(t *testing.T) {
	svc, db, _ := newTestServiceWithDB(t)
	seedInvoice(t, db, "SENT", 11000, baseTime.AddDate(0, 0, 30))
	ctx := adminContext(orgA)

	payment, err := svc.Record(ctx, paymentdomain.RecordPaymentRequest{InvoiceID: invoiceID.String(), Amount: 11000})
	require.NoError(t, err)
	require.Equal(t, "PAID", invoiceStatus(t, db))

	require.NoError(t, svc.Delete(ctx, paymentdomain.DeletePaymentRequest{ID: payment.ID.String()}))
	assert.Equal(t, "SENT", invoiceStatus(t, db))
	assertCount(t, db, "SELECT COUNT(*) FROM payments", 0)

	err = svc.Delete(ctx, paymentdomain.DeletePaymentRequest{ID: payment.ID.String()})
	assert.ErrorIs(t, err, paymentdomain.ErrNotFound)
}

func TestDeletePastDueStoresSent(t *testing.T) {
	svc, db, fake := newTestServiceWithDB(t)
	seedInvoice(t, db, "SENT", 11000, baseTime.AddDate(0, 0, 1))
	ctx := adminContext(orgA)

	payment, err := svc.Record(ctx, paymentdomain.RecordPaymentRequest{InvoiceID: invoiceID.String(), Amount: 11000})
	require.NoError(t, err)

	fake.Advance(48 * time.Hour)
	require.NoError(t, svc.Delete(ctx, paymentdomain.DeletePaymentRequest{ID: payment.ID.String()}))

	// Stored as SENT; the invoice reads back as OVERDUE because it is past due.
	assert.Equal(t, "SENT", invoiceStatus(t, db))
}

func TestDeleteKeepsPaidWhileCovered(t *testing.T) {
	svc, db, _ := newTestServiceWithDB(t)
	seedInvoice(t, db, "SENT", 1000, baseTime.AddDate(0, 0, 30))
	ctx := adminContext(orgA)

	_, err := svc.Record(ctx, paymentdomain.RecordPaymentRequest{InvoiceID: invoiceID.String(), Amount: 1000})
	require.NoError(t, err)
	extra, err := svc.Record(ctx, paymentdomain.RecordPaymentRequest{InvoiceID: invoiceID.String(), Amount: 500})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, paymentdomain.DeletePaymentRequest{ID: extra.ID.String()}))
	assert.Equal(t, "PAID", invoiceStatus(t, db))
}

func TestDeleteHonorsAssigneeFilter(t *testing.T) {
	svc, db, _ := newTestServiceWithDB(t)
	seedInvoice(t, db, "SENT", 11000, baseTime.AddDate(0, 0, 30))
	ctx := adminContext(orgA)

	payment, err := svc.Record(ctx, paymentdomain.RecordPaymentRequest{InvoiceID: invoiceID.String(), Amount: 100})
	require.NoError(t, err)

	err = svc.Delete(ctx, paymentdomain.DeletePaymentRequest{ID: payment.ID.String(), AssignedToID: otherStaff.String()})
	assert.ErrorIs(t, err, paymentdomain.ErrNotFound)
	assertCount(t, db, "SELECT COUNT(*) FROM payments", 1)

	err = svc.Delete(ctx, paymentdomain.DeletePaymentRequest{ID: payment.ID.String(), AssignedToID: "abc"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAssignee)

	err = svc.Delete(staffContext(orgA, staffUser), paymentdomain.DeletePaymentRequest{ID: payment.ID.String()})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	err = svc.Delete(adminContext(orgB), paymentdomain.DeletePaymentRequest{ID: payment.ID.String()})
	assert.ErrorIs(t, err, paymentdomain.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, paymentdomain.DeletePaymentRequest{ID: payment.ID.String(), AssignedToID: staffUser.String()}))
	assertCount(t, db, "SELECT COUNT(*) FROM payments", 0)
}

func blockStatusUpdates(t *testing.T, db *gorm.DB) {
	t.Helper()
	trigger := `CREATE TRIGGER block_status_update BEFORE UPDATE OF status ON invoices
		BEGIN SELECT RAISE(ABORT, 'status update blocked'); END`
	require.NoError(t, db.Exec(trigger).Error)
}

func TestRecordRollsBackWhenStatusUpdateFails(t *testing.T) {
	svc, db, _ := newTestServiceWithDB(t)
	seedInvoice(t, db, "SENT", 11000, baseTime.AddDate(0, 0, 30))
	blockStatusUpdates(t, db)

	_, err := svc.Record(adminContext(orgA), paymentdomain.RecordPaymentRequest{
		InvoiceID: invoiceID.String(),
		Amount:    11000,
	})
	require.Error(t, err)

	assertCount(t, db, "SELECT COUNT(*) FROM payments", 0)
	assert.Equal(t, "SENT", invoiceStatus(t, db))
}

func TestDeleteRollsBackWhenStatusUpdateFails(t *testing.T) {
	svc, db, _ := newTestServiceWithDB(t)
	seedInvoice(t, db, "SENT", 11000, baseTime.AddDate(0, 0, 30))
	ctx := adminContext(orgA)

	payment, err := svc.Record(ctx, paymentdomain.RecordPaymentRequest{InvoiceID: invoiceID.String(), Amount: 11000})
	require.NoError(t, err)
	require.Equal(t, "PAID", invoiceStatus(t, db))
	blockStatusUpdates(t, db)

	err = svc.Delete(ctx, paymentdomain.DeletePaymentRequest{ID: payment.ID.String()})
	require.Error(t, err)

	assertCount(t, db, "SELECT COUNT(*) FROM payments WHERE id = "+payment.ID.String(), 1)
	assert.Equal(t, "PAID", invoiceStatus(t, db))
}

func newTestServiceWithDB(t *testing.T) (paymentdomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(10)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	enforcer, err := authorization.NewEnforcer()
	if err != nil {
		t.Fatalf("new enforcer: %v", err)
	}
	fake := clock.NewFakeClock(baseTime)

	svc := paymentservice.NewService(paymentservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  paymentrepo.Provide(),
		Authz: authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		Clock: fake,
	})
	return svc, db, fake
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE customers (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			assigned_to_id BIGINT
		)`,
		`CREATE TABLE invoices (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			customer_id BIGINT NOT NULL,
			issue_date TIMESTAMP NOT NULL,
			due_date TIMESTAMP NOT NULL,
			subtotal BIGINT NOT NULL DEFAULT 0,
			tax BIGINT NOT NULL DEFAULT 0,
			total BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'DRAFT',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE payments (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			invoice_id BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			method TEXT NOT NULL DEFAULT '',
			payment_date TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	if err := db.Exec(
		`INSERT INTO customers (id, org_id, name, assigned_to_id) VALUES (?, ?, ?, ?)`,
		customerID, orgA, "Globex", staffUser,
	).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return db
}

func seedInvoice(t *testing.T, db *gorm.DB, status string, total int64, dueDate time.Time) {
	t.Helper()
	err := db.Exec(
		`INSERT INTO invoices (id, org_id, customer_id, issue_date, due_date, subtotal, tax, total, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoiceID, orgA, customerID, baseTime, dueDate, total, 0, total, status, baseTime, baseTime,
	).Error
	if err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
}

func invoiceStatus(t *testing.T, db *gorm.DB) string {
	t.Helper()
	var status string
	if err := db.Raw(`SELECT status FROM invoices WHERE id = ?`, invoiceID).Scan(&status).Error; err != nil {
		t.Fatalf("load status: %v", err)
	}
	return status
}

func assertCount(t *testing.T, db *gorm.DB, query string, expected int64) {
	t.Helper()
	var count int64
	if err := db.Raw(query).Scan(&count).Error; err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != expected {
		t.Fatalf("expected %d rows for %q, got %d", expected, query, count)
	}
}

func adminContext(orgID snowflake.ID) context.Context {
	return orgcontext.WithIdentity(context.Background(), orgcontext.Identity{UserID: 11, OrgID: orgID, Role: authorization.RoleAdmin})
}

func staffContext(orgID, userID snowflake.ID) context.Context {
	return orgcontext.WithIdentity(context.Background(), orgcontext.Identity{UserID: userID, OrgID: orgID, Role: authorization.RoleStaff})
}

