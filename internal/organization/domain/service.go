package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrOrganizationNotFound = errors.New("organization_not_found")
	ErrInvalidName          = errors.New("invalid_name")
)

type CreateOrganizationRequest struct {
	Name        string
	Description string
	Address     string
	Phone       string
	Icon        string
}

type Service interface {
	Create(ctx context.Context, req CreateOrganizationRequest) (*Organization, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	List(ctx context.Context) ([]Organization, error)
	Update(ctx context.Context, id snowflake.ID, patch Patch) (*Organization, error)
	// Delete removes the organization together with its membership rows.
	// Destroying memberships with their owner keeps the ledger free of
	// orphaned relations.
	Delete(ctx context.Context, id snowflake.ID) error
}
