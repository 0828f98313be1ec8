package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/gatherly/gatherly/internal/account/domain"
	invitationdomain "github.com/gatherly/gatherly/internal/invitation/domain"
	organizationdomain "github.com/gatherly/gatherly/internal/organization/domain"
)

var (
	ErrAlreadyMember = errors.New("already_member")
	ErrNotAMember    = errors.New("not_a_member")
	ErrInvalidRole   = errors.New("invalid_role")

	// ErrInvalidToken wraps the token store errors on acceptance so callers
	// can treat "unknown", "consumed" and "expired" uniformly.
	ErrInvalidToken = errors.New("invalid_token")
)

// SendInvitationResult carries the issued token together with the outcome of
// the email dispatch. A dispatch failure never invalidates the token.
type SendInvitationResult struct {
	Token         *invitationdomain.Token
	DispatchError error
}

// Delivered reports whether the invitation email went out.
func (r *SendInvitationResult) Delivered() bool {
	return r != nil && r.DispatchError == nil
}

// Service is the membership engine. It composes the token store, the ledger
// and the aggregate resolvers into the invite, join, role-change and removal
// flows. Every operation either fully succeeds or leaves stored state
// unchanged; nothing is retried internally.
type Service interface {
	// SendInvitation mints a single-use token carrying the intended role and
	// asks the email dispatcher to deliver it. The role is deliberately not
	// validated here; the catalog check happens at acceptance.
	SendInvitation(ctx context.Context, orgID snowflake.ID, email, role string) (*SendInvitationResult, error)

	// AcceptInvitation consumes the token and adds the account to the
	// organization with the token's role, as one transaction. A failed add
	// leaves the token unconsumed so the accept can be retried.
	AcceptInvitation(ctx context.Context, orgID, accountID snowflake.ID, tokenID string) error

	// RemoveAccount removes one membership row of the account, initiated by
	// an organization administrator.
	RemoveAccount(ctx context.Context, orgID, accountID snowflake.ID) error

	// LeaveOrganization removes one membership row of the account, initiated
	// by the account itself.
	LeaveOrganization(ctx context.Context, orgID, accountID snowflake.ID) error

	// ChangeRole moves the account from one role to another within the
	// organization.
	ChangeRole(ctx context.Context, orgID, accountID snowflake.ID, from, to Role) error

	// ListAccounts returns the accounts holding any role in the organization.
	ListAccounts(ctx context.Context, orgID snowflake.ID) ([]accountdomain.Account, error)

	// ManagedOrganizations returns the organizations the account administers.
	ManagedOrganizations(ctx context.Context, accountID snowflake.ID) ([]organizationdomain.Organization, error)
}
