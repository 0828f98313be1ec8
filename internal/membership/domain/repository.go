package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/gatherly/gatherly/internal/account/domain"
	organizationdomain "github.com/gatherly/gatherly/internal/organization/domain"
	"gorm.io/gorm"
)

// Repository is the membership ledger. It owns the membership rows and
// guarantees that conflicting operations on the same (org, account) key are
// serialized by the underlying store.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// Add inserts a relation. A row with the identical (org, account, role)
	// tuple yields ErrAlreadyMember.
	Add(ctx context.Context, m Membership) error

	// RemoveOne deletes a single membership row of the account in the
	// organization, regardless of role. Rows for other roles stay. Yields
	// ErrNotAMember when no row matches.
	RemoveOne(ctx context.Context, orgID, accountID snowflake.ID) error

	// ChangeRole mutates the (org, account, from) row to hold to instead.
	// Missing source row yields ErrNotAMember; an existing target row yields
	// ErrAlreadyMember. The change is atomic: no observer sees both or
	// neither role.
	ChangeRole(ctx context.Context, orgID, accountID snowflake.ID, from, to Role) error

	// ListAccounts projects the distinct accounts referenced by the
	// organization's memberships.
	ListAccounts(ctx context.Context, orgID snowflake.ID) ([]accountdomain.Account, error)

	// ManagedOrganizations returns the organizations in which the account
	// holds the admin role.
	ManagedOrganizations(ctx context.Context, accountID snowflake.ID) ([]organizationdomain.Organization, error)

	// RemoveAllForOrg deletes every membership row of the organization.
	// Used when the organization itself is deleted.
	RemoveAllForOrg(ctx context.Context, orgID snowflake.ID) error

	// RemoveAllForAccount deletes every membership row of the account.
	// Used when the account itself is deleted.
	RemoveAllForAccount(ctx context.Context, accountID snowflake.ID) error
}
