package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/billdesk/internal/authorization"
	"github.com/smallbiznis/billdesk/internal/clock"
	"github.com/smallbiznis/billdesk/internal/customer/domain"
	"github.com/smallbiznis/billdesk/internal/customer/repository"
	"github.com/smallbiznis/billdesk/internal/customer/service"
	"github.com/smallbiznis/billdesk/internal/orgcontext"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	orgA = snowflake.ID(100)
	orgB = snowflake.ID(200)
)

func TestCreateAssignsStaffCreator(t *testing.T) {
	svc, _ := newTestService(t)

	staffCtx := withIdentity(orgA, 7, authorization.RoleStaff)
	created, err := svc.Create(staffCtx, domain.CreateCustomerRequest{Name: " Acme ", Email: "Ops@Acme.test"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Name != "Acme" || created.Email != "ops@acme.test" {
		t.Fatalf("unexpected normalized fields: %+v", created)
	}
	if created.AssignedToID == nil || *created.AssignedToID != 7 {
		t.Fatalf("expected staff creator to be assigned, got %v", created.AssignedToID)
	}

	adminCtx := withIdentity(orgA, 1, authorization.RoleAdmin)
	byAdmin, err := svc.Create(adminCtx, domain.CreateCustomerRequest{Name: "Globex"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if byAdmin.AssignedToID != nil {
		t.Fatalf("expected admin-created customer to be unassigned")
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := withIdentity(orgA, 1, authorization.RoleAdmin)

	if _, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "  "}); !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("expected invalid name, got %v", err)
	}
	if _, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "A", Email: "nope"}); !errors.Is(err, domain.ErrInvalidEmail) {
		t.Fatalf("expected invalid email, got %v", err)
	}
	if _, err := svc.Create(context.Background(), domain.CreateCustomerRequest{Name: "A"}); !errors.Is(err, domain.ErrInvalidOrganization) {
		t.Fatalf("expected invalid organization, got %v", err)
	}
}

func TestListSearchAndPagination(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := withIdentity(orgA, 1, authorization.RoleAdmin)

	for _, name := range []string{"Alpha Corp", "Beta LLC", "alphabet inc"} {
		if _, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: name}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		clk.Advance(time.Minute)
	}
	if _, err := svc.Create(withIdentity(orgB, 1, authorization.RoleAdmin), domain.CreateCustomerRequest{Name: "Alpha Other Org"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	resp, err := svc.List(ctx, domain.ListCustomerRequest{Search: "ALPHA", Page: 1, Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.Total != 2 || resp.TotalPages != 2 || len(resp.Data) != 1 {
		t.Fatalf("unexpected page: total=%d pages=%d len=%d", resp.Total, resp.TotalPages, len(resp.Data))
	}
	if resp.Data[0].Name != "alphabet inc" {
		t.Fatalf("expected newest first, got %s", resp.Data[0].Name)
	}
}

func TestCrossTenantAccessIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.Create(withIdentity(orgA, 1, authorization.RoleAdmin), domain.CreateCustomerRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	other := withIdentity(orgB, 1, authorization.RoleAdmin)
	if _, err := svc.GetByID(other, created.ID.String()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	name := "Hijack"
	if _, err := svc.Update(other, domain.UpdateCustomerRequest{ID: created.ID.String(), Name: &name}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Delete(other, created.ID.String()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdatePartial(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := withIdentity(orgA, 1, authorization.RoleAdmin)

	created, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "Acme", Phone: "123"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	notes := "net 15"
	updated, err := svc.Update(ctx, domain.UpdateCustomerRequest{ID: created.ID.String(), Notes: &notes})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Acme" || updated.Phone != "123" || updated.Notes != "net 15" {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	got, err := svc.GetByID(ctx, created.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Notes != "net 15" {
		t.Fatalf("expected persisted notes, got %q", got.Notes)
	}
}

func TestDeleteRequiresPermission(t *testing.T) {
	svc, _ := newTestService(t)

	adminCtx := withIdentity(orgA, 1, authorization.RoleAdmin)
	created, err := svc.Create(adminCtx, domain.CreateCustomerRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	staffCtx := withIdentity(orgA, 7, authorization.RoleStaff)
	if err := svc.Delete(staffCtx, created.ID.String()); !errors.Is(err, authorization.ErrForbidden) {
		t.Fatalf("expected forbidden for staff, got %v", err)
	}
	if err := svc.Delete(adminCtx, created.ID.String()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetByID(adminCtx, created.ID.String()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestDeleteReferencedCustomerConflicts(t *testing.T) {
	svc, db, _ := newTestServiceWithDB(t)
	ctx := withIdentity(orgA, 1, authorization.RoleAdmin)

	created, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.Exec(
		`INSERT INTO invoices (id, org_id, customer_id, status) VALUES (?, ?, ?, 'DRAFT')`,
		9001, orgA, created.ID,
	).Error; err != nil {
		t.Fatalf("insert invoice: %v", err)
	}

	if err := svc.Delete(ctx, created.ID.String()); !errors.Is(err, domain.ErrInUse) {
		t.Fatalf("expected customer in use, got %v", err)
	}
	assertCount(t, db, "SELECT COUNT(1) FROM customers", 1)
}

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	svc, _, clk := newTestServiceWithDB(t)
	return svc, clk
}

func newTestServiceWithDB(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	enforcer, err := authorization.NewEnforcer()
	if err != nil {
		t.Fatalf("new enforcer: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	svc := service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Authz: authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		Clock: clk,
	})
	return svc, db, clk
}

func withIdentity(orgID snowflake.ID, userID snowflake.ID, role string) context.Context {
	return orgcontext.WithIdentity(context.Background(), orgcontext.Identity{
		UserID: userID,
		OrgID:  orgID,
		Role:   role,
	})
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
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			assigned_to_id BIGINT,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE invoices (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			customer_id BIGINT NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE TABLE quotes (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			customer_id BIGINT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func assertCount(t *testing.T, db *gorm.DB, query string, expected int64) {
	t.Helper()
	var count int64
	if err := db.Raw(query).Scan(&count).Error; err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != expected {
		t.Fatalf("expected %d rows, got %d for %s", expected, count, query)
	}
}
