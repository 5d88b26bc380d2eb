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
	"github.com/smallbiznis/billdesk/internal/organization/domain"
	"github.com/smallbiznis/billdesk/internal/organization/repository"
	"github.com/smallbiznis/billdesk/internal/organization/service"
	"github.com/smallbiznis/billdesk/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestCreateDefaultsCurrency(t *testing.T) {
	svc := newTestService(t)

	org, err := svc.Create(context.Background(), domain.CreateOrganizationRequest{Name: "  Acme Studio "})
	require.NoError(t, err)
	assert.Equal(t, "Acme Studio", org.Name)
	assert.Equal(t, "acme-studio", org.Slug)
	assert.Equal(t, "USD", org.Currency)

	_, err = svc.Create(context.Background(), domain.CreateOrganizationRequest{Name: "X", Currency: "EURO"})
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)
}

func TestGetAndUpdate(t *testing.T) {
	svc := newTestService(t)

	org, err := svc.Create(context.Background(), domain.CreateOrganizationRequest{Name: "Acme", Currency: "usd"})
	require.NoError(t, err)

	admin := identityContext(org.ID, authorization.RoleAdmin)
	currency := "eur"
	updated, err := svc.Update(admin, domain.UpdateOrganizationRequest{Name: "Acme GmbH", Currency: &currency})
	require.NoError(t, err)
	assert.Equal(t, "EUR", updated.Currency)

	got, err := svc.Get(identityContext(org.ID, authorization.RoleStaff))
	require.NoError(t, err)
	assert.Equal(t, "Acme GmbH", got.Name)
	assert.Equal(t, "EUR", got.Currency)
}

func TestUpdateRules(t *testing.T) {
	svc := newTestService(t)

	org, err := svc.Create(context.Background(), domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	_, err = svc.Update(identityContext(org.ID, authorization.RoleStaff), domain.UpdateOrganizationRequest{Name: "Nope"})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = svc.Update(identityContext(org.ID, authorization.RoleAdmin), domain.UpdateOrganizationRequest{Name: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	noOrg := orgcontext.WithIdentity(context.Background(), orgcontext.Identity{UserID: 1, Role: authorization.RoleAdmin})
	_, err = svc.Get(noOrg)
	if !errors.Is(err, domain.ErrInvalidOrganization) {
		t.Fatalf("expected invalid organization, got %v", err)
	}
}

func newTestService(t *testing.T) domain.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE organizations (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	enforcer, err := authorization.NewEnforcer()
	require.NoError(t, err)

	return service.NewService(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.NewRepository(db),
		Authz: authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		Clock: clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
}

func identityContext(orgID snowflake.ID, role string) context.Context {
	return orgcontext.WithIdentity(context.Background(), orgcontext.Identity{UserID: 5, OrgID: orgID, Role: role})
}
