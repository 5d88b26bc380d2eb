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
	"github.com/smallbiznis/billdesk/internal/money"
	"github.com/smallbiznis/billdesk/internal/numbering"
	obsmetrics "github.com/smallbiznis/billdesk/internal/observability/metrics"
	"github.com/smallbiznis/billdesk/internal/orgcontext"
	organizationdomain "github.com/smallbiznis/billdesk/internal/organization/domain"
	"github.com/smallbiznis/billdesk/internal/providers/pdf"
	quotedomain "github.com/smallbiznis/billdesk/internal/quote/domain"
	"github.com/smallbiznis/billdesk/pkg/db"
	"github.com/smallbiznis/billdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         quotedomain.Repository
	CustomerRepo customerdomain.Repository
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
	repo         quotedomain.Repository
	customerRepo customerdomain.Repository
	orgRepo      organizationdomain.Repository
	authz        authorization.Service
	pdf          pdf.Provider
	clock        clock.Clock
	invoicing    *config.InvoicingConfigHolder
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) quotedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("quote.service"),

		genID:        p.GenID,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		orgRepo:      p.OrgRepo,
		authz:        p.Authz,
		pdf:          p.PDF,
		clock:        clock.OrSystem(p.Clock),
		invoicing:    p.Invoicing,
		obsMetrics:   p.ObsMetrics,
	}
}

// Create stores a quote under the next number of its organization. Numbers
// are allocated inside the insert transaction; a duplicate key restarts the
// whole transaction.
func (s *Service) Create(ctx context.Context, req quotedomain.CreateQuoteRequest) (quotedomain.Quote, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return quotedomain.Quote{}, err
	}
	if err := s.authz.Authorize(ctx, authorization.QuoteCreate); err != nil {
		return quotedomain.Quote{}, err
	}
	identity, ok := orgcontext.IdentityFromContext(ctx)
	if !ok {
		return quotedomain.Quote{}, authorization.ErrUnauthenticated
	}

	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil || customerID == 0 {
		return quotedomain.Quote{}, quotedomain.ErrInvalidCustomerID
	}
	status := quotedomain.QuoteStatusDraft
	if strings.TrimSpace(req.Status) != "" {
		status, err = quotedomain.ParseQuoteStatus(req.Status)
		if err != nil {
			return quotedomain.Quote{}, err
		}
	}
	lines, err := normalizeItems(req.Items)
	if err != nil {
		return quotedomain.Quote{}, err
	}
	totals, err := money.CalculateWithItemTax(moneyLines(lines))
	if err != nil {
		return quotedomain.Quote{}, err
	}

	now := s.clock.Now()
	issueDate := now
	if req.IssueDate != nil && !req.IssueDate.IsZero() {
		issueDate = req.IssueDate.UTC()
	}
	expiryDate, err := normalizeExpiry(req.ExpiryDate, issueDate)
	if err != nil {
		return quotedomain.Quote{}, err
	}

	cfg := s.invoicing.Get()
	attempts := cfg.QuoteNumberAttempts
	if attempts < 1 {
		attempts = 1
	}

	var quote quotedomain.Quote
	for attempt := 1; attempt <= attempts; attempt++ {
		quote = quotedomain.Quote{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			CustomerID:  customerID,
			CreatedByID: identity.UserID,
			IssueDate:   issueDate,
			ExpiryDate:  expiryDate,
			Status:      status,
			Subtotal:    totals.Subtotal,
			Tax:         totals.Tax,
			Total:       totals.Total,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		quote.Items = s.buildItems(orgID, quote.ID, lines, now)

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.ensureCustomer(ctx, tx, orgID, customerID); err != nil {
				return err
			}

			seq, err := s.repo.NextSequence(ctx, tx, orgID, now)
			if err != nil {
				return fmt.Errorf("allocate quote number: %w", err)
			}
			number, err := numbering.FormatNumber(cfg.QuoteNumberTemplate, issueDate, seq)
			if err != nil {
				return fmt.Errorf("format quote number: %w", err)
			}
			quote.QuoteNumber = number

			if err := s.repo.Insert(ctx, tx, &quote); err != nil {
				return fmt.Errorf("insert quote: %w", err)
			}
			if err := s.repo.InsertItems(ctx, tx, quote.Items); err != nil {
				return fmt.Errorf("insert quote items: %w", err)
			}
			return nil
		})
		if err == nil || !db.IsDuplicateKeyErr(err) {
			break
		}
		s.log.Warn("quote number collision, retrying",
			zap.String("org_id", orgID.String()),
			zap.String("quote_number", quote.QuoteNumber),
			zap.Int("attempt", attempt),
		)
	}
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			err = quotedomain.ErrNumberUnavailable
		}
		s.logFailure("failed to create quote", err, orgID, quote.ID)
		return quotedomain.Quote{}, err
	}

	s.obsMetrics.RecordQuoteCreated(ctx, orgID.String())
	return quote, nil
}

func (s *Service) List(ctx context.Context, req quotedomain.ListQuoteRequest) (quotedomain.ListQuoteResponse, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return quotedomain.ListQuoteResponse{}, err
	}
	if err := s.authz.Authorize(ctx, authorization.QuoteView); err != nil {
		return quotedomain.ListQuoteResponse{}, err
	}

	var filter quotedomain.ListQuoteFilter
	if strings.TrimSpace(req.Status) != "" {
		status, err := quotedomain.ParseQuoteStatus(req.Status)
		if err != nil {
			return quotedomain.ListQuoteResponse{}, err
		}
		filter.Status = status
	}
	if strings.TrimSpace(req.CustomerID) != "" {
		customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
		if err != nil {
			return quotedomain.ListQuoteResponse{}, quotedomain.ErrInvalidCustomerID
		}
		filter.CustomerID = customerID
	}

	cfg := s.invoicing.Get()
	page := pagination.Pagination{Page: req.Page, Limit: req.Limit}.Normalize(cfg.DefaultPageSize, cfg.MaxPageSize)

	items, total, err := s.repo.List(ctx, s.db, orgID, filter, page)
	if err != nil {
		return quotedomain.ListQuoteResponse{}, err
	}

	customerIDs := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		if item != nil {
			customerIDs = append(customerIDs, item.CustomerID)
		}
	}
	customers, err := s.customerRepo.FindByIDs(ctx, s.db, orgID, customerIDs)
	if err != nil {
		return quotedomain.ListQuoteResponse{}, err
	}
	byID := make(map[snowflake.ID]*customerdomain.Customer, len(customers))
	for _, customer := range customers {
		if customer != nil {
			byID[customer.ID] = customer
		}
	}

	quotes := make([]quotedomain.Quote, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		item.Customer = byID[item.CustomerID]
		quotes = append(quotes, *item)
	}

	return quotedomain.ListQuoteResponse{
		Data: quotes,
		Meta: pagination.BuildPageInfo(page, total),
	}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (quotedomain.Quote, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return quotedomain.Quote{}, err
	}
	if err := s.authz.Authorize(ctx, authorization.QuoteView); err != nil {
		return quotedomain.Quote{}, err
	}

	quoteID, err := parseID(id)
	if err != nil {
		return quotedomain.Quote{}, err
	}
	return s.loadQuote(ctx, s.db, orgID, quoteID)
}

// Update applies a partial update. Only admins and the quote's creator may
// change it. New items replace the old set and the totals are recomputed.
func (s *Service) Update(ctx context.Context, req quotedomain.UpdateQuoteRequest) (quotedomain.Quote, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return quotedomain.Quote{}, err
	}
	if err := s.authz.Authorize(ctx, authorization.QuoteUpdate); err != nil {
		return quotedomain.Quote{}, err
	}
	identity, ok := orgcontext.IdentityFromContext(ctx)
	if !ok {
		return quotedomain.Quote{}, authorization.ErrUnauthenticated
	}

	quoteID, err := parseID(req.ID)
	if err != nil {
		return quotedomain.Quote{}, err
	}
	var customerID snowflake.ID
	if req.CustomerID != nil {
		customerID, err = snowflake.ParseString(strings.TrimSpace(*req.CustomerID))
		if err != nil || customerID == 0 {
			return quotedomain.Quote{}, quotedomain.ErrInvalidCustomerID
		}
	}
	var status quotedomain.QuoteStatus
	if req.Status != nil {
		status, err = quotedomain.ParseQuoteStatus(*req.Status)
		if err != nil {
			return quotedomain.Quote{}, err
		}
	}
	var lines []quotedomain.ItemInput
	var totals money.Totals
	if req.Items != nil {
		lines, err = normalizeItems(req.Items)
		if err != nil {
			return quotedomain.Quote{}, err
		}
		totals, err = money.CalculateWithItemTax(moneyLines(lines))
		if err != nil {
			return quotedomain.Quote{}, err
		}
	}

	now := s.clock.Now()
	var updated quotedomain.Quote
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quote, err := s.repo.FindByID(ctx, tx, orgID, quoteID, true)
		if err != nil {
			return err
		}
		if quote == nil {
			return quotedomain.ErrNotFound
		}
		if !canModify(identity, quote) {
			return authorization.ErrForbidden
		}

		if req.CustomerID != nil {
			if err := s.ensureCustomer(ctx, tx, orgID, customerID); err != nil {
				return err
			}
			quote.CustomerID = customerID
		}
		if req.IssueDate != nil && !req.IssueDate.IsZero() {
			quote.IssueDate = req.IssueDate.UTC()
		}
		if req.ExpiryDate != nil {
			quote.ExpiryDate = req.ExpiryDate
		}
		quote.ExpiryDate, err = normalizeExpiry(quote.ExpiryDate, quote.IssueDate)
		if err != nil {
			return err
		}
		if status != "" {
			quote.Status = status
		}

		if req.Items != nil {
			quote.Subtotal, quote.Tax, quote.Total = totals.Subtotal, totals.Tax, totals.Total
			if _, err := s.repo.DeleteItems(ctx, tx, orgID, quote.ID); err != nil {
				return fmt.Errorf("delete quote items: %w", err)
			}
			if err := s.repo.InsertItems(ctx, tx, s.buildItems(orgID, quote.ID, lines, now)); err != nil {
				return fmt.Errorf("insert quote items: %w", err)
			}
		}

		quote.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, quote); err != nil {
			return fmt.Errorf("update quote: %w", err)
		}

		updated, err = s.loadQuote(ctx, tx, orgID, quote.ID)
		return err
	})
	if err != nil {
		s.logFailure("failed to update quote", err, orgID, quoteID)
		return quotedomain.Quote{}, err
	}
	return updated, nil
}

// Delete removes the quote and its items. The quote number is not released.
func (s *Service) Delete(ctx context.Context, id string) error {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, authorization.QuoteDelete); err != nil {
		return err
	}
	identity, ok := orgcontext.IdentityFromContext(ctx)
	if !ok {
		return authorization.ErrUnauthenticated
	}

	quoteID, err := parseID(id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quote, err := s.repo.FindByID(ctx, tx, orgID, quoteID, true)
		if err != nil {
			return err
		}
		if quote == nil {
			return quotedomain.ErrNotFound
		}
		if !canModify(identity, quote) {
			return authorization.ErrForbidden
		}

		if _, err := s.repo.DeleteItems(ctx, tx, orgID, quoteID); err != nil {
			return fmt.Errorf("delete quote items: %w", err)
		}
		rows, err := s.repo.Delete(ctx, tx, orgID, quoteID)
		if err != nil {
			return fmt.Errorf("delete quote: %w", err)
		}
		if rows == 0 {
			return quotedomain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		s.logFailure("failed to delete quote", err, orgID, quoteID)
		return err
	}
	return nil
}

func (s *Service) loadQuote(ctx context.Context, db *gorm.DB, orgID, quoteID snowflake.ID) (quotedomain.Quote, error) {
	quote, err := s.repo.FindByID(ctx, db, orgID, quoteID, false)
	if err != nil {
		return quotedomain.Quote{}, err
	}
	if quote == nil {
		return quotedomain.Quote{}, quotedomain.ErrNotFound
	}

	items, err := s.repo.ListItems(ctx, db, orgID, quote.ID)
	if err != nil {
		return quotedomain.Quote{}, err
	}
	quote.Items = items

	customer, err := s.customerRepo.FindByID(ctx, db, orgID, quote.CustomerID)
	if err != nil {
		return quotedomain.Quote{}, err
	}
	quote.Customer = customer
	return *quote, nil
}

func (s *Service) ensureCustomer(ctx context.Context, tx *gorm.DB, orgID, customerID snowflake.ID) error {
	customer, err := s.customerRepo.FindByID(ctx, tx, orgID, customerID)
	if err != nil {
		return err
	}
	if customer == nil {
		return quotedomain.ErrInvalidCustomerID
	}
	return nil
}

func (s *Service) buildItems(orgID, quoteID snowflake.ID, lines []quotedomain.ItemInput, now time.Time) []quotedomain.QuoteItem {
	items := make([]quotedomain.QuoteItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, quotedomain.QuoteItem{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			QuoteID:     quoteID,
			Description: line.Description,
			Quantity:    line.Quantity,
			Rate:        line.Rate,
			Tax:         line.Tax,
			Total:       line.Quantity*line.Rate + line.Tax,
			CreatedAt:   now,
		})
	}
	return items
}

func (s *Service) logFailure(msg string, err error, orgID, quoteID snowflake.ID) {
	if isDomainError(err) {
		return
	}
	s.log.Error(msg,
		zap.Error(err),
		zap.String("org_id", orgID.String()),
		zap.String("quote_id", quoteID.String()),
	)
}

func (s *Service) orgIDFromContext(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, quotedomain.ErrInvalidOrganization
	}
	return orgID, nil
}

// canModify allows admins, and otherwise only the user who created the quote.
func canModify(identity orgcontext.Identity, quote *quotedomain.Quote) bool {
	if identity.Role == authorization.RoleAdmin {
		return true
	}
	return quote.CreatedByID == identity.UserID
}

func normalizeExpiry(expiry *time.Time, issueDate time.Time) (*time.Time, error) {
	if expiry == nil || expiry.IsZero() {
		return nil, nil
	}
	value := expiry.UTC()
	if value.Before(issueDate) {
		return nil, quotedomain.ErrInvalidExpiryDate
	}
	return &value, nil
}

func normalizeItems(items []quotedomain.ItemInput) ([]quotedomain.ItemInput, error) {
	if len(items) == 0 {
		return nil, money.ErrInvalidItems
	}
	lines := make([]quotedomain.ItemInput, 0, len(items))
	for _, item := range items {
		description := strings.TrimSpace(item.Description)
		if description == "" {
			return nil, quotedomain.ErrInvalidDescription
		}
		line := quotedomain.ItemInput{
			Description: description,
			Quantity:    item.Quantity,
			Rate:        item.Rate,
			Tax:         item.Tax,
		}
		if _, err := money.TaxedLineTotal(money.TaxedLine{Quantity: line.Quantity, Rate: line.Rate, Tax: line.Tax}); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func moneyLines(items []quotedomain.ItemInput) []money.TaxedLine {
	lines := make([]money.TaxedLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, money.TaxedLine{Quantity: item.Quantity, Rate: item.Rate, Tax: item.Tax})
	}
	return lines
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, quotedomain.ErrInvalidID
	}
	return id, nil
}

func isDomainError(err error) bool {
	for _, target := range []error{
		quotedomain.ErrNotFound,
		quotedomain.ErrInvalidCustomerID,
		quotedomain.ErrInvalidExpiryDate,
		authorization.ErrForbidden,
		money.ErrInvalidItems,
		money.ErrAmountOutOfRange,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
