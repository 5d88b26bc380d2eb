package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billdesk/internal/authorization"
	"github.com/smallbiznis/billdesk/internal/clock"
	"github.com/smallbiznis/billdesk/internal/config"
	customerdomain "github.com/smallbiznis/billdesk/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/billdesk/internal/invoice/domain"
	"github.com/smallbiznis/billdesk/internal/money"
	obsmetrics "github.com/smallbiznis/billdesk/internal/observability/metrics"
	"github.com/smallbiznis/billdesk/internal/orgcontext"
	organizationdomain "github.com/smallbiznis/billdesk/internal/organization/domain"
	paymentdomain "github.com/smallbiznis/billdesk/internal/payment/domain"
	"github.com/smallbiznis/billdesk/internal/providers/pdf"
	"github.com/smallbiznis/billdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         invoicedomain.Repository
	CustomerRepo customerdomain.Repository
	PaymentRepo  paymentdomain.Repository
	OrgRepo      organizationdomain.Repository
	Authz        authorization.Service
	PDF          pdf.Provider                  `optional:"true"`
	Clock        clock.Clock                   `optional:"true"`
	Invoicing    *config.InvoicingConfigHolder `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics           `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID        *snowflake.Node
	repo         invoicedomain.Repository
	customerRepo customerdomain.Repository
	paymentRepo  paymentdomain.Repository
	orgRepo      organizationdomain.Repository
	authz        authorization.Service
	pdf          pdf.Provider
	clock        clock.Clock
	invoicing    *config.InvoicingConfigHolder
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("invoice.service"),

		genID:        p.GenID,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		paymentRepo:  p.PaymentRepo,
		orgRepo:      p.OrgRepo,
		authz:        p.Authz,
		pdf:          p.PDF,
		clock:        clock.OrSystem(p.Clock),
		invoicing:    p.Invoicing,
		obsMetrics:   p.ObsMetrics,
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.Invoice, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if err := s.authz.Authorize(ctx, authorization.InvoiceCreate); err != nil {
		return invoicedomain.Invoice{}, err
	}

	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil || customerID == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidCustomerID
	}
	lines, err := normalizeItems(req.Items)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	totals, err := money.Calculate(moneyLines(lines), req.TaxRate)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	now := s.clock.Now()
	issueDate := now
	if req.IssueDate != nil && !req.IssueDate.IsZero() {
		issueDate = req.IssueDate.UTC()
	}
	dueDate := now.AddDate(0, 0, s.invoicing.Get().DefaultDueDays)
	if req.DueDate != nil && !req.DueDate.IsZero() {
		dueDate = req.DueDate.UTC()
	}
	if dueDate.Before(issueDate) {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidDueDate
	}

	invoice := invoicedomain.Invoice{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		CustomerID: customerID,
		IssueDate:  issueDate,
		DueDate:    dueDate,
		Subtotal:   totals.Subtotal,
		Tax:        totals.Tax,
		Total:      totals.Total,
		Status:     invoicedomain.InvoiceStatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	invoice.Items = s.buildItems(orgID, invoice.ID, lines, now)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureCustomer(ctx, tx, orgID, customerID); err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		if err := s.repo.InsertItems(ctx, tx, invoice.Items); err != nil {
			return fmt.Errorf("insert invoice items: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure("failed to create invoice", err, orgID, invoice.ID)
		return invoicedomain.Invoice{}, err
	}

	s.obsMetrics.RecordInvoiceCreated(ctx, orgID.String())
	return invoice.WithDisplayStatus(now), nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}
	if err := s.authz.Authorize(ctx, authorization.InvoiceView); err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	now := s.clock.Now()
	filter := invoicedomain.ListInvoiceFilter{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Now:       now,
	}
	if strings.TrimSpace(req.Status) != "" {
		status, err := invoicedomain.ParseInvoiceStatus(req.Status)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, err
		}
		filter.Status = status
	}
	if strings.TrimSpace(req.CustomerID) != "" {
		customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidCustomerID
		}
		filter.CustomerID = customerID
	}
	if strings.TrimSpace(req.AssignedToID) != "" {
		assignee, err := snowflake.ParseString(strings.TrimSpace(req.AssignedToID))
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidID
		}
		filter.AssignedToID = assignee
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidDateRange
	}

	cfg := s.invoicing.Get()
	page := pagination.Pagination{Page: req.Page, Limit: req.Limit}.Normalize(cfg.DefaultPageSize, cfg.MaxPageSize)

	items, total, err := s.repo.List(ctx, s.db, orgID, filter, page)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	customerIDs := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		if item != nil {
			customerIDs = append(customerIDs, item.CustomerID)
		}
	}
	customers, err := s.customerRepo.FindByIDs(ctx, s.db, orgID, customerIDs)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}
	byID := make(map[snowflake.ID]*customerdomain.Customer, len(customers))
	for _, customer := range customers {
		if customer != nil {
			byID[customer.ID] = customer
		}
	}

	invoices := make([]invoicedomain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		item.Customer = byID[item.CustomerID]
		invoices = append(invoices, item.WithDisplayStatus(now))
	}

	return invoicedomain.ListInvoiceResponse{
		PageInfo: pagination.BuildPageInfo(page, total),
		Data:     invoices,
	}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.InvoiceDetail, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	if err := s.authz.Authorize(ctx, authorization.InvoiceView); err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	return s.loadDetail(ctx, s.db, orgID, invoiceID)
}

// Update applies a partial update. New items replace the old set; without an
// explicit tax rate the rate implied by the stored subtotal and tax is reused.
func (s *Service) Update(ctx context.Context, req invoicedomain.UpdateInvoiceRequest) (invoicedomain.InvoiceDetail, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	if err := s.authz.Authorize(ctx, authorization.InvoiceUpdate); err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	invoiceID, err := parseID(req.ID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	var customerID snowflake.ID
	if req.CustomerID != nil {
		customerID, err = snowflake.ParseString(strings.TrimSpace(*req.CustomerID))
		if err != nil || customerID == 0 {
			return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvalidCustomerID
		}
	}
	var status invoicedomain.InvoiceStatus
	if req.Status != nil {
		status, err = parseStorableStatus(*req.Status)
		if err != nil {
			return invoicedomain.InvoiceDetail{}, err
		}
	}
	var lines []invoicedomain.ItemInput
	if req.Items != nil {
		lines, err = normalizeItems(req.Items)
		if err != nil {
			return invoicedomain.InvoiceDetail{}, err
		}
	}
	if req.TaxRate != nil {
		if err := money.ValidateTaxRate(*req.TaxRate); err != nil {
			return invoicedomain.InvoiceDetail{}, err
		}
	}

	now := s.clock.Now()
	var previous invoicedomain.InvoiceStatus
	var detail invoicedomain.InvoiceDetail
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByID(ctx, tx, orgID, invoiceID, true)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrNotFound
		}
		previous = invoice.Status

		if req.CustomerID != nil {
			if err := s.ensureCustomer(ctx, tx, orgID, customerID); err != nil {
				return err
			}
			invoice.CustomerID = customerID
		}
		if req.IssueDate != nil && !req.IssueDate.IsZero() {
			invoice.IssueDate = req.IssueDate.UTC()
		}
		if req.DueDate != nil && !req.DueDate.IsZero() {
			invoice.DueDate = req.DueDate.UTC()
		}
		if invoice.DueDate.Before(invoice.IssueDate) {
			return invoicedomain.ErrInvalidDueDate
		}
		if status != "" {
			invoice.Status = status
		}

		switch {
		case req.Items != nil:
			rate := money.ImpliedTaxRate(invoice.Subtotal, invoice.Tax)
			if req.TaxRate != nil {
				rate = *req.TaxRate
			}
			totals, err := money.Calculate(moneyLines(lines), rate)
			if err != nil {
				return err
			}
			invoice.Subtotal, invoice.Tax, invoice.Total = totals.Subtotal, totals.Tax, totals.Total

			if _, err := s.repo.DeleteItems(ctx, tx, orgID, invoice.ID); err != nil {
				return fmt.Errorf("delete invoice items: %w", err)
			}
			if err := s.repo.InsertItems(ctx, tx, s.buildItems(orgID, invoice.ID, lines, now)); err != nil {
				return fmt.Errorf("insert invoice items: %w", err)
			}
		case req.TaxRate != nil:
			totals, err := money.ApplyTaxRate(invoice.Subtotal, *req.TaxRate)
			if err != nil {
				return err
			}
			invoice.Tax, invoice.Total = totals.Tax, totals.Total
		}

		invoice.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, invoice); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}

		detail, err = s.loadDetail(ctx, tx, orgID, invoice.ID)
		return err
	})
	if err != nil {
		s.logFailure("failed to update invoice", err, orgID, invoiceID)
		return invoicedomain.InvoiceDetail{}, err
	}

	if status != "" && status != previous {
		s.obsMetrics.RecordInvoiceStatus(ctx, string(previous), string(status))
	}
	return detail, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id string, rawStatus string) (invoicedomain.Invoice, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if err := s.authz.Authorize(ctx, authorization.InvoiceUpdate); err != nil {
		return invoicedomain.Invoice{}, err
	}

	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	status, err := parseStorableStatus(rawStatus)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	now := s.clock.Now()
	var updated invoicedomain.Invoice
	var previous invoicedomain.InvoiceStatus
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByID(ctx, tx, orgID, invoiceID, true)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrNotFound
		}
		previous = invoice.Status

		rows, err := s.repo.UpdateStatus(ctx, tx, orgID, invoiceID, status, now)
		if err != nil {
			return fmt.Errorf("update invoice status: %w", err)
		}
		if rows == 0 {
			return invoicedomain.ErrNotFound
		}
		invoice.Status = status
		invoice.UpdatedAt = now
		updated = *invoice
		return nil
	})
	if err != nil {
		s.logFailure("failed to update invoice status", err, orgID, invoiceID)
		return invoicedomain.Invoice{}, err
	}

	if previous != status {
		s.obsMetrics.RecordInvoiceStatus(ctx, string(previous), string(status))
	}
	return updated.WithDisplayStatus(now), nil
}

// Delete removes the invoice with its items and payments.
func (s *Service) Delete(ctx context.Context, id string) error {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, authorization.InvoiceDelete); err != nil {
		return err
	}

	invoiceID, err := parseID(id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByID(ctx, tx, orgID, invoiceID, true)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrNotFound
		}
		if _, err := s.paymentRepo.DeleteByInvoice(ctx, tx, orgID, invoiceID); err != nil {
			return fmt.Errorf("delete payments: %w", err)
		}
		if _, err := s.repo.DeleteItems(ctx, tx, orgID, invoiceID); err != nil {
			return fmt.Errorf("delete invoice items: %w", err)
		}
		rows, err := s.repo.Delete(ctx, tx, orgID, invoiceID)
		if err != nil {
			return fmt.Errorf("delete invoice: %w", err)
		}
		if rows == 0 {
			return invoicedomain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		s.logFailure("failed to delete invoice", err, orgID, invoiceID)
		return err
	}
	return nil
}

func (s *Service) loadDetail(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) (invoicedomain.InvoiceDetail, error) {
	invoice, err := s.repo.FindByID(ctx, db, orgID, invoiceID, false)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	if invoice == nil {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrNotFound
	}

	items, err := s.repo.ListItems(ctx, db, orgID, invoice.ID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	invoice.Items = items

	customer, err := s.customerRepo.FindByID(ctx, db, orgID, invoice.CustomerID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	invoice.Customer = customer

	payments, err := s.paymentRepo.ListByInvoice(ctx, db, orgID, invoice.ID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	if payments == nil {
		payments = []paymentdomain.Payment{}
	}

	var paid int64
	for _, payment := range payments {
		paid += payment.Amount
	}
	due := invoice.Total - paid
	if due < 0 {
		due = 0
	}

	return invoicedomain.InvoiceDetail{
		Invoice:    invoice.WithDisplayStatus(s.clock.Now()),
		Payments:   payments,
		AmountPaid: paid,
		AmountDue:  due,
	}, nil
}

func (s *Service) ensureCustomer(ctx context.Context, tx *gorm.DB, orgID, customerID snowflake.ID) error {
	customer, err := s.customerRepo.FindByID(ctx, tx, orgID, customerID)
	if err != nil {
		return err
	}
	if customer == nil {
		return invoicedomain.ErrInvalidCustomerID
	}
	return nil
}

func (s *Service) buildItems(orgID, invoiceID snowflake.ID, lines []invoicedomain.ItemInput, now time.Time) []invoicedomain.InvoiceItem {
	items := make([]invoicedomain.InvoiceItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, invoicedomain.InvoiceItem{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			InvoiceID:   invoiceID,
			Description: line.Description,
			Quantity:    line.Quantity,
			Price:       line.Price,
			Total:       line.Quantity * line.Price,
			CreatedAt:   now,
		})
	}
	return items
}

func (s *Service) logFailure(msg string, err error, orgID, invoiceID snowflake.ID) {
	if isDomainError(err) {
		return
	}
	s.log.Error(msg,
		zap.Error(err),
		zap.String("org_id", orgID.String()),
		zap.String("invoice_id", invoiceID.String()),
	)
}

func (s *Service) orgIDFromContext(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, invoicedomain.ErrInvalidOrganization
	}
	return orgID, nil
}

// normalizeItems trims descriptions and runs the line checks before any write.
func normalizeItems(items []invoicedomain.ItemInput) ([]invoicedomain.ItemInput, error) {
	if len(items) == 0 {
		return nil, money.ErrInvalidItems
	}
	lines := make([]invoicedomain.ItemInput, 0, len(items))
	for _, item := range items {
		description := strings.TrimSpace(item.Description)
		if description == "" {
			return nil, invoicedomain.ErrInvalidDescription
		}
		if _, err := money.LineTotal(item.Quantity, item.Price); err != nil {
			return nil, err
		}
		lines = append(lines, invoicedomain.ItemInput{
			Description: description,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return lines, nil
}

func moneyLines(items []invoicedomain.ItemInput) []money.Line {
	lines := make([]money.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, money.Line{Quantity: item.Quantity, UnitPrice: item.Price})
	}
	return lines
}

func parseStorableStatus(raw string) (invoicedomain.InvoiceStatus, error) {
	status, err := invoicedomain.ParseInvoiceStatus(raw)
	if err != nil {
		return "", err
	}
	if !status.Storable() {
		return "", invoicedomain.ErrInvalidStatus
	}
	return status, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, invoicedomain.ErrInvalidID
	}
	return id, nil
}

func isDomainError(err error) bool {
	for _, target := range []error{
		invoicedomain.ErrNotFound,
		invoicedomain.ErrInvalidCustomerID,
		invoicedomain.ErrInvalidDueDate,
		money.ErrInvalidItems,
		money.ErrInvalidTaxRate,
		money.ErrAmountOutOfRange,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

