package membership

import (
	"github.com/gatherly/gatherly/internal/membership/repository"
	"github.com/gatherly/gatherly/internal/membership/service"
	"go.uber.org/fx"
)

var Module = fx.Module("membership.engine",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
