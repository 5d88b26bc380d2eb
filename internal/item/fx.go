package item

import (
	"github.com/smallbiznis/billdesk/internal/item/domain"
	"github.com/smallbiznis/billdesk/internal/item/service"
	"github.com/smallbiznis/billdesk/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("item.service",
	fx.Provide(repository.ProvideStore[domain.Item]),
	fx.Provide(service.New),
)
