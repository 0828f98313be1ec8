package invitation

import (
	"github.com/gatherly/gatherly/internal/invitation/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("invitation.store",
	fx.Provide(repository.NewRepository),
)
