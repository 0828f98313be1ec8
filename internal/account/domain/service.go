package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrAccountNotFound = errors.New("account_not_found")
	ErrEmailTaken      = errors.New("email_taken")
	ErrInvalidEmail    = errors.New("invalid_email")
)

type CreateAccountRequest struct {
	FirstName string
	LastName  string
	Email     string
	Secret    string
	Icon      string
}

// Service resolves and manages accounts. GetByID doubles as the account
// resolver consumed by the membership engine.
type Service interface {
	Create(ctx context.Context, req CreateAccountRequest) (*Account, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Update(ctx context.Context, id snowflake.ID, patch Patch) (*Account, error)
	// Delete removes the account and its membership rows.
	Delete(ctx context.Context, id snowflake.ID) error
	// VerifySecret compares a candidate secret against the stored hash.
	VerifySecret(ctx context.Context, id snowflake.ID, secret string) error
}
