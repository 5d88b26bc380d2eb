package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/billdesk/internal/authorization"
	"github.com/smallbiznis/billdesk/internal/clock"
	"github.com/smallbiznis/billdesk/internal/organization/domain"
	"github.com/smallbiznis/billdesk/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Authz authorization.Service
	Clock clock.Clock `optional:"true"`
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
	authz authorization.Service
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("organization.service"),
		repo:  p.Repo,
		genID: p.GenID,
		authz: p.Authz,
		clock: clock.OrSystem(p.Clock),
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	currency := domain.DefaultCurrency
	if strings.TrimSpace(req.Currency) != "" {
		normalized, err := normalizeCurrency(req.Currency)
		if err != nil {
			return nil, err
		}
		currency = normalized
	}

	now := s.clock.Now()
	org := domain.Organization{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      slug.Make(name),
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.WithTx(s.db).Create(ctx, org); err != nil {
		return nil, err
	}

	s.log.Info("organization created", zap.String("org_id", org.ID.String()), zap.String("slug", org.Slug))
	return &org, nil
}

func (s *service) Get(ctx context.Context) (*domain.Organization, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if err := s.authz.Authorize(ctx, authorization.OrganizationView); err != nil {
		return nil, err
	}

	org, err := s.repo.WithTx(s.db).FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}
	return org, nil
}

func (s *service) Update(ctx context.Context, req domain.UpdateOrganizationRequest) (*domain.Organization, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if err := s.authz.Authorize(ctx, authorization.OrganizationUpdate); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	var currency string
	if req.Currency != nil {
		normalized, err := normalizeCurrency(*req.Currency)
		if err != nil {
			return nil, err
		}
		currency = normalized
	}

	var updated domain.Organization
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		org, err := repo.FindByID(ctx, orgID)
		if err != nil {
			return err
		}
		if org == nil {
			return domain.ErrNotFound
		}

		org.Name = name
		org.Slug = slug.Make(name)
		if currency != "" {
			org.Currency = currency
		}
		org.UpdatedAt = s.clock.Now()
		if err := repo.Update(ctx, *org); err != nil {
			return err
		}
		updated = *org
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func normalizeCurrency(value string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(value))
	if len(currency) != 3 {
		return "", domain.ErrInvalidCurrency
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return "", domain.ErrInvalidCurrency
		}
	}
	return currency, nil
}
