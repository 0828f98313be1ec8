package account

import (
	"github.com/gatherly/gatherly/internal/account/repository"
	"github.com/gatherly/gatherly/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
