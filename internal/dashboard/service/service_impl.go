package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billdesk/internal/authorization"
	"github.com/smallbiznis/billdesk/internal/clock"
	dashboarddomain "github.com/smallbiznis/billdesk/internal/dashboard/domain"
	invoicedomain "github.com/smallbiznis/billdesk/internal/invoice/domain"
	"github.com/smallbiznis/billdesk/internal/orgcontext"
	organizationdomain "github.com/smallbiznis/billdesk/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dayLayout = "2006-01-02"

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Authz authorization.Service
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	authz authorization.Service
	clock clock.Clock
}

func NewService(p Params) dashboarddomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("dashboard.service"),
		authz: p.Authz,
		clock: clock.OrSystem(p.Clock),
	}
}

// Summary totals the organization's invoices. Overdue is derived from SENT
// invoices past their due date, the same way invoice reads derive it.
func (s *Service) Summary(ctx context.Context) (dashboarddomain.SummaryResponse, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return dashboarddomain.SummaryResponse{}, err
	}
	if err := s.authz.Authorize(ctx, authorization.ReportView); err != nil {
		return dashboarddomain.SummaryResponse{}, err
	}

	var row struct {
		TotalRevenue int64 `gorm:"column:total_revenue"`
		TotalPending int64 `gorm:"column:total_pending"`
		OverdueTotal int64 `gorm:"column:overdue_total"`
		InvoiceCount int64 `gorm:"column:invoice_count"`
	}
	err = s.db.WithContext(ctx).Raw(
		`SELECT
			COALESCE(SUM(CASE WHEN status = 'PAID' THEN total ELSE 0 END), 0) AS total_revenue,
			COALESCE(SUM(CASE WHEN status IN ('DRAFT', 'SENT') THEN total ELSE 0 END), 0) AS total_pending,
			COALESCE(SUM(CASE WHEN status = 'SENT' AND due_date < ? THEN total ELSE 0 END), 0) AS overdue_total,
			COUNT(*) AS invoice_count
		 FROM invoices
		 WHERE org_id = ?`,
		s.clock.Now(),
		orgID,
	).Scan(&row).Error
	if err != nil {
		s.log.Error("failed to load dashboard summary", zap.Error(err), zap.String("org_id", orgID.String()))
		return dashboarddomain.SummaryResponse{}, err
	}

	currency, err := s.loadOrgCurrency(ctx, orgID)
	if err != nil {
		return dashboarddomain.SummaryResponse{}, err
	}

	return dashboarddomain.SummaryResponse{
		Currency:     currency,
		TotalRevenue: row.TotalRevenue,
		TotalPending: row.TotalPending,
		OverdueTotal: row.OverdueTotal,
		InvoiceCount: row.InvoiceCount,
	}, nil
}

// Revenue sums PAID invoice totals per UTC issue day, oldest first.
func (s *Service) Revenue(ctx context.Context, rawRange string) (dashboarddomain.RevenueResponse, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return dashboarddomain.RevenueResponse{}, err
	}
	if err := s.authz.Authorize(ctx, authorization.ReportView); err != nil {
		return dashboarddomain.RevenueResponse{}, err
	}
	rng, err := dashboarddomain.ParseRange(rawRange)
	if err != nil {
		return dashboarddomain.RevenueResponse{}, err
	}

	query := s.db.WithContext(ctx).
		Table("invoices").
		Select("issue_date, total").
		Where("org_id = ? AND status = ?", orgID, invoicedomain.InvoiceStatusPaid)
	if days := rng.Days(); days > 0 {
		query = query.Where("issue_date >= ?", s.clock.Now().AddDate(0, 0, -days))
	}

	var rows []struct {
		IssueDate time.Time `gorm:"column:issue_date"`
		Total     int64     `gorm:"column:total"`
	}
	if err := query.Order("issue_date asc").Scan(&rows).Error; err != nil {
		s.log.Error("failed to load revenue series", zap.Error(err), zap.String("org_id", orgID.String()))
		return dashboarddomain.RevenueResponse{}, err
	}

	series := make([]dashboarddomain.RevenuePoint, 0, len(rows))
	for _, row := range rows {
		day := row.IssueDate.UTC().Format(dayLayout)
		if n := len(series); n > 0 && series[n-1].Date == day {
			series[n-1].Revenue += row.Total
			continue
		}
		series = append(series, dashboarddomain.RevenuePoint{Date: day, Revenue: row.Total})
	}

	currency, err := s.loadOrgCurrency(ctx, orgID)
	if err != nil {
		return dashboarddomain.RevenueResponse{}, err
	}

	return dashboarddomain.RevenueResponse{
		Currency: currency,
		Range:    rng,
		Series:   series,
	}, nil
}

func (s *Service) loadOrgCurrency(ctx context.Context, orgID snowflake.ID) (string, error) {
	var row struct {
		Currency string `gorm:"column:currency"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT currency FROM organizations WHERE id = ? LIMIT 1`,
		orgID,
	).Scan(&row).Error; err != nil {
		return "", err
	}
	currency := strings.ToUpper(strings.TrimSpace(row.Currency))
	if currency == "" {
		currency = organizationdomain.DefaultCurrency
	}
	return currency, nil
}

func (s *Service) orgIDFromContext(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, dashboarddomain.ErrInvalidOrganization
	}
	return orgID, nil
}
