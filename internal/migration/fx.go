package migration

import (
	accountdomain "github.com/gatherly/gatherly/internal/account/domain"
	invitationdomain "github.com/gatherly/gatherly/internal/invitation/domain"
	membershipdomain "github.com/gatherly/gatherly/internal/membership/domain"
	organizationdomain "github.com/gatherly/gatherly/internal/organization/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Tables are created automatically on startup so the service is usable out
// of the box for local and self-hosted environments.
var Module = fx.Module("migrations",
	fx.Invoke(Run),
)

// Run applies the schema for every owned aggregate.
func Run(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&organizationdomain.Organization{},
		&accountdomain.Account{},
		&membershipdomain.Membership{},
		&invitationdomain.Token{},
	)
}
