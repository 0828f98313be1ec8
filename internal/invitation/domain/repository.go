package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Repository is the invitation token store.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// Create persists a freshly issued token.
	Create(ctx context.Context, token Token) error

	// Get looks a token up without touching its consumed flag.
	Get(ctx context.Context, id string) (*Token, error)

	// Consume atomically flips the token from unconsumed to consumed and
	// returns the record. A missing token yields ErrTokenNotFound; a token
	// consumed before (or concurrently by another caller) yields
	// ErrTokenConsumed. Run inside the caller's transaction when consumption
	// must roll back with downstream failures.
	Consume(ctx context.Context, id string, at time.Time) (*Token, error)
}
