package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billdesk/internal/authorization"
	"github.com/smallbiznis/billdesk/internal/clock"
	"github.com/smallbiznis/billdesk/internal/config"
	"github.com/smallbiznis/billdesk/internal/item/domain"
	"github.com/smallbiznis/billdesk/internal/orgcontext"
	"github.com/smallbiznis/billdesk/pkg/db/option"
	"github.com/smallbiznis/billdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
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
	repo      domain.Repository
	genID     *snowflake.Node
	authz     authorization.Service
	clock     clock.Clock
	invoicing *config.InvoicingConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("item.service"),
		repo:      p.Repo.WithTrx(p.DB),
		genID:     p.GenID,
		authz:     p.Authz,
		clock:     clock.OrSystem(p.Clock),
		invoicing: p.Invoicing,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListResponse{}, domain.ErrInvalidOrganization
	}
	if err := s.authz.Authorize(ctx, authorization.ItemView); err != nil {
		return domain.ListResponse{}, err
	}

	cfg := s.invoicing.Get()
	page := pagination.Pagination{Page: req.Page, Limit: req.Limit}.Normalize(cfg.DefaultPageSize, cfg.MaxPageSize)

	filter := &domain.Item{OrgID: orgID}
	search := option.WithSearch(req.Search, "name")

	total, err := s.repo.Count(ctx, filter, search)
	if err != nil {
		return domain.ListResponse{}, err
	}
	rows, err := s.repo.Find(ctx, filter,
		search,
		option.WithSortBy("created_at desc, id desc"),
		option.ApplyPagination(page),
	)
	if err != nil {
		return domain.ListResponse{}, err
	}

	items := make([]domain.Item, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		items = append(items, *row)
	}

	return domain.ListResponse{
		PageInfo: pagination.BuildPageInfo(page, total),
		Data:     items,
	}, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Item, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if err := s.authz.Authorize(ctx, authorization.ItemCreate); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.Price < 0 {
		return nil, domain.ErrInvalidPrice
	}

	now := s.clock.Now()
	item := &domain.Item{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		Name:        name,
		Description: trimOptional(req.Description),
		Price:       req.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		s.log.Error("failed to create item", zap.Error(err), zap.String("org_id", orgID.String()))
		return nil, err
	}
	return item, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Item, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if err := s.authz.Authorize(ctx, authorization.ItemView); err != nil {
		return nil, err
	}

	itemID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, orgID, itemID)
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Item, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if err := s.authz.Authorize(ctx, authorization.ItemUpdate); err != nil {
		return nil, err
	}

	itemID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	item, err := s.find(ctx, orgID, itemID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		item.Name = name
	}
	if req.Description != nil {
		item.Description = trimOptional(req.Description)
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, domain.ErrInvalidPrice
		}
		item.Price = *req.Price
	}
	item.UpdatedAt = s.clock.Now()

	_, err = s.repo.Update(ctx, &domain.Item{ID: item.ID, OrgID: orgID}, map[string]interface{}{
		"name":        item.Name,
		"description": item.Description,
		"price":       item.Price,
		"updated_at":  item.UpdatedAt,
	})
	if err != nil {
		s.log.Error("failed to update item", zap.Error(err), zap.String("item_id", item.ID.String()))
		return nil, err
	}
	return item, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	if err := s.authz.Authorize(ctx, authorization.ItemDelete); err != nil {
		return err
	}

	itemID, err := parseID(id)
	if err != nil {
		return err
	}
	rows, err := s.repo.Delete(ctx, &domain.Item{ID: itemID, OrgID: orgID})
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) find(ctx context.Context, orgID, id snowflake.ID) (*domain.Item, error) {
	item, err := s.repo.FindOne(ctx, &domain.Item{ID: id, OrgID: orgID})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
