package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billdesk/internal/authorization"
	"github.com/smallbiznis/billdesk/internal/clock"
	"github.com/smallbiznis/billdesk/internal/config"
	"github.com/smallbiznis/billdesk/internal/customer/domain"
	"github.com/smallbiznis/billdesk/internal/orgcontext"
	"github.com/smallbiznis/billdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Authz     authorization.Service
	Clock     clock.Clock                   `optional:"true"`
	Invoicing *config.InvoicingConfigHolder `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	authz     authorization.Service
	clock     clock.Clock
	invoicing *config.InvoicingConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("customer.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		authz:     p.Authz,
		clock:     clock.OrSystem(p.Clock),
		invoicing: p.Invoicing,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Customer{}, domain.ErrInvalidOrganization
	}
	if err := s.authz.Authorize(ctx, authorization.CustomerCreate); err != nil {
		return domain.Customer{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, domain.ErrInvalidName
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return domain.Customer{}, err
	}

	now := s.clock.Now()
	customer := domain.Customer{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
		Notes:     strings.TrimSpace(req.Notes),
		Metadata:  datatypes.JSONMap(req.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if customer.Metadata == nil {
		customer.Metadata = datatypes.JSONMap{}
	}

	// Customers created by staff stay assigned to them.
	if identity, ok := orgcontext.IdentityFromContext(ctx); ok && identity.Role == authorization.RoleStaff {
		assignee := identity.UserID
		customer.AssignedToID = &assignee
	}

	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		s.log.Error("failed to insert customer", zap.Error(err), zap.String("org_id", orgID.String()))
		return domain.Customer{}, err
	}

	return customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListCustomerResponse{}, domain.ErrInvalidOrganization
	}
	if err := s.authz.Authorize(ctx, authorization.CustomerView); err != nil {
		return domain.ListCustomerResponse{}, err
	}

	cfg := s.invoicing.Get()
	page := pagination.Pagination{Page: req.Page, Limit: req.Limit}.Normalize(cfg.DefaultPageSize, cfg.MaxPageSize)

	items, total, err := s.repo.List(ctx, s.db, orgID, domain.ListCustomerFilter{
		Search: strings.TrimSpace(req.Search),
	}, page)
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	customers := make([]domain.Customer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		customers = append(customers, *item)
	}

	return domain.ListCustomerResponse{
		PageInfo: pagination.BuildPageInfo(page, total),
		Data:     customers,
	}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Customer, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Customer{}, domain.ErrInvalidOrganization
	}
	if err := s.authz.Authorize(ctx, authorization.CustomerView); err != nil {
		return domain.Customer{}, err
	}

	customer, err := s.find(ctx, orgID, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateCustomerRequest) (domain.Customer, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Customer{}, domain.ErrInvalidOrganization
	}
	if err := s.authz.Authorize(ctx, authorization.CustomerUpdate); err != nil {
		return domain.Customer{}, err
	}

	customer, err := s.find(ctx, orgID, req.ID)
	if err != nil {
		return domain.Customer{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Customer{}, domain.ErrInvalidName
		}
		customer.Name = name
	}
	if req.Email != nil {
		email, err := normalizeEmail(*req.Email)
		if err != nil {
			return domain.Customer{}, err
		}
		customer.Email = email
	}
	if req.Phone != nil {
		customer.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		customer.Address = strings.TrimSpace(*req.Address)
	}
	if req.Notes != nil {
		customer.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.Metadata != nil {
		customer.Metadata = datatypes.JSONMap(req.Metadata)
	}
	customer.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, customer); err != nil {
		s.log.Error("failed to update customer", zap.Error(err), zap.String("customer_id", customer.ID.String()))
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	if err := s.authz.Authorize(ctx, authorization.CustomerDelete); err != nil {
		return err
	}

	customer, err := s.find(ctx, orgID, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		refs, err := s.repo.CountReferences(ctx, tx, orgID, customer.ID)
		if err != nil {
			return err
		}
		if refs > 0 {
			return domain.ErrInUse
		}
		rows, err := s.repo.Delete(ctx, tx, orgID, customer.ID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (s *Service) find(ctx context.Context, orgID snowflake.ID, rawID string) (*domain.Customer, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	customer, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrNotFound
	}
	return customer, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func normalizeEmail(value string) (string, error) {
	email := strings.TrimSpace(value)
	if email == "" {
		return "", nil
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t") {
		return "", domain.ErrInvalidEmail
	}
	return strings.ToLower(email), nil
}
