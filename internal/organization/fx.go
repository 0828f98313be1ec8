package organization

import (
	"github.com/gatherly/gatherly/internal/organization/repository"
	"github.com/gatherly/gatherly/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
